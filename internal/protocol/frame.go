package protocol

import "io"

// DefaultMaxFrameSize is the largest frame body the proxy will accept. It
// matches the limit enforced by the vanilla server (2^21 - 1 bytes).
const DefaultMaxFrameSize = 1<<21 - 1

// ReadFrame reads one length-prefixed frame from r. The length VarInt is
// validated against max before any of the body is read so that an adversarial
// peer cannot force a large allocation.
func ReadFrame(r io.Reader, max int32) ([]byte, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	if length < 0 || length > max {
		return nil, &FrameTooLargeError{Length: length, Max: max}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return body, nil
}

// WriteFrame writes body to w prefixed with its VarInt-encoded length.
func WriteFrame(w io.Writer, body []byte) error {
	buf := make([]byte, 0, VarIntLen(int32(len(body)))+len(body))
	buf = AppendVarInt(buf, int32(len(body)))
	buf = append(buf, body...)

	_, err := w.Write(buf)
	return err
}
