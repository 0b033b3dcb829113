package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 255, 2097151, 1<<31 - 1, 1<<32 - 1}

	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteVarInt(&buf, int32(v)); err != nil {
			t.Fatalf("WriteVarInt(%d) returned an unexpected error: %v", v, err)
		}

		got, err := ReadVarInt(&buf)
		if err != nil {
			t.Fatalf("ReadVarInt() returned an unexpected error for %d: %v", v, err)
		}
		if uint32(got) != v {
			t.Errorf("round trip of %d produced %d", v, uint32(got))
		}
		if buf.Len() != 0 {
			t.Errorf("round trip of %d left %d unread bytes", v, buf.Len())
		}
	}
}

func TestVarIntRoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("decode inverts encode", prop.ForAll(
		func(v uint32) bool {
			got, err := ReadVarInt(bytes.NewReader(AppendVarInt(nil, int32(v))))
			return err == nil && uint32(got) == v
		},
		gen.UInt32(),
	))

	properties.TestingRun(t)
}

func TestVarIntKnownEncodings(t *testing.T) {
	tests := []struct {
		value uint32
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{2097151, []byte{0xff, 0xff, 0x7f}},
		{1<<31 - 1, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{1<<32 - 1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tt := range tests {
		if got := AppendVarInt(nil, int32(tt.value)); !bytes.Equal(got, tt.bytes) {
			t.Errorf("AppendVarInt(%d) = %#v, want %#v", tt.value, got, tt.bytes)
		}
		if got := VarIntLen(int32(tt.value)); got != len(tt.bytes) {
			t.Errorf("VarIntLen(%d) = %d, want %d", tt.value, got, len(tt.bytes))
		}
	}
}

func TestVarIntMalformed(t *testing.T) {
	// A fifth byte with the continuation bit set would push the value past
	// 32 bits.
	_, err := ReadVarInt(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}))
	if !errors.Is(err, ErrMalformedVarInt) {
		t.Errorf("ReadVarInt() error = %v, want ErrMalformedVarInt", err)
	}
}

func TestVarIntTruncatedStream(t *testing.T) {
	// Missing continuation bytes are an I/O condition, not a protocol error:
	// a blocking stream would simply wait for more input.
	_, err := ReadVarInt(bytes.NewReader([]byte{0x80}))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadVarInt() error = %v, want io.ErrUnexpectedEOF", err)
	}
}
