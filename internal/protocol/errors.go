package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformedVarInt is returned when a VarInt's fifth byte still has its
// continuation bit set, meaning the encoded value would exceed 32 bits.
var ErrMalformedVarInt = errors.New("protocol: malformed VarInt exceeds 5 bytes")

// FrameTooLargeError is returned when a frame declares a length over the
// configured maximum. The body is never read, let alone allocated.
type FrameTooLargeError struct {
	Length int32
	Max    int32
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("protocol: frame length %d exceeds maximum %d", e.Length, e.Max)
}

// CompressionError indicates that a compressed frame could not be inflated
// back to its declared uncompressed length. These are always connection-fatal
// since the stream can no longer be trusted.
type CompressionError struct {
	Declared int32
	Actual   int32
	Err      error
}

func (e *CompressionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: corrupt compressed frame: %v", e.Err)
	}
	return fmt.Sprintf("protocol: compressed frame declared %d bytes, inflated to %d", e.Declared, e.Actual)
}

func (e *CompressionError) Unwrap() error { return e.Err }

// UnexpectedPacketError is returned when a packet identifier is not legal for
// the connection's current state.
type UnexpectedPacketError struct {
	State State
	ID    int32
}

func (e *UnexpectedPacketError) Error() string {
	return fmt.Sprintf("protocol: unexpected packet 0x%02x in %s state", e.ID, e.State)
}
