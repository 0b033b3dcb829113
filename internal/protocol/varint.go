package protocol

import "io"

// VarInts are the protocol's variable-length integer encoding: up to five
// bytes, each carrying 7 data bits plus a continuation bit, with the 7-bit
// groups in little-endian order.
const maxVarIntBytes = 5

// ReadVarInt reads one VarInt from r. It blocks until a terminating byte
// (continuation bit unset) arrives and fails with ErrMalformedVarInt if the
// value would exceed 32 bits.
func ReadVarInt(r io.Reader) (int32, error) {
	var buf [1]byte
	var value uint32

	for i := 0; i < maxVarIntBytes; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}

		b := buf[0]
		value |= uint32(b&0x7f) << (7 * i)

		if b&0x80 == 0 {
			return int32(value), nil
		}
	}

	return 0, ErrMalformedVarInt
}

// WriteVarInt writes the VarInt encoding of v to w. It is the exact inverse
// of ReadVarInt for every 32-bit value.
func WriteVarInt(w io.Writer, v int32) error {
	_, err := w.Write(AppendVarInt(nil, v))
	return err
}

// AppendVarInt appends the VarInt encoding of v to dst.
func AppendVarInt(dst []byte, v int32) []byte {
	uv := uint32(v)
	for {
		b := byte(uv & 0x7f)
		uv >>= 7
		if uv != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if uv == 0 {
			return dst
		}
	}
}

// VarIntLen returns the number of bytes the VarInt encoding of v occupies.
func VarIntLen(v int32) int {
	uv := uint32(v)
	n := 1
	for uv >= 0x80 {
		uv >>= 7
		n++
	}
	return n
}
