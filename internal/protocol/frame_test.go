package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 255, 256, 257, DefaultMaxFrameSize}

	for _, size := range sizes {
		body := make([]byte, size)
		for i := range body {
			body[i] = byte(i)
		}

		var buf bytes.Buffer
		if err := WriteFrame(&buf, body); err != nil {
			t.Fatalf("WriteFrame() returned an unexpected error for size %d: %v", size, err)
		}

		got, err := ReadFrame(&buf, DefaultMaxFrameSize)
		if err != nil {
			t.Fatalf("ReadFrame() returned an unexpected error for size %d: %v", size, err)
		}
		if !bytes.Equal(got, body) {
			t.Errorf("frame round trip of size %d did not reproduce the body", size)
		}
	}
}

// failOnReadAfterLength asserts that an oversized frame is rejected from its
// length prefix alone, without any attempt to read the body.
type failOnReadAfterLength struct {
	prefix *bytes.Reader
	t      *testing.T
}

func (r *failOnReadAfterLength) Read(p []byte) (int, error) {
	if r.prefix.Len() == 0 {
		r.t.Fatal("ReadFrame() tried to read the body of an oversized frame")
	}
	return r.prefix.Read(p)
}

func TestFrameTooLargeRejectedBeforeBodyRead(t *testing.T) {
	r := &failOnReadAfterLength{
		prefix: bytes.NewReader(AppendVarInt(nil, DefaultMaxFrameSize+1)),
		t:      t,
	}

	_, err := ReadFrame(r, DefaultMaxFrameSize)

	var tooLarge *FrameTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("ReadFrame() error = %v, want FrameTooLargeError", err)
	}
	if tooLarge.Length != DefaultMaxFrameSize+1 {
		t.Errorf("FrameTooLargeError.Length = %d, want %d", tooLarge.Length, DefaultMaxFrameSize+1)
	}
}

func TestFrameNegativeLengthRejected(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(AppendVarInt(nil, -1)), DefaultMaxFrameSize)

	var tooLarge *FrameTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("ReadFrame() error = %v, want FrameTooLargeError", err)
	}
}
