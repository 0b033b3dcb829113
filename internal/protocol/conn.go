package protocol

import (
	"bufio"
	"fmt"
	"io"
	"net"
)

// Conn wraps one side of a proxied connection and owns its transport
// pipeline: raw socket bytes pass through the cipher (once enabled), then
// the frame codec, then the compression layer. Both optional layers start
// disabled and are switched on by protocol directives during login.
//
// A Conn is owned by exactly one connection task and is not safe for
// concurrent use, matching the protocol's strictly ordered streams.
type Conn struct {
	sock net.Conn
	br   *bufio.Reader

	session   *CryptoSession
	threshold int32
	maxFrame  int32
	state     State
}

// NewConn wraps an established socket. The connection starts in the
// handshake state with compression and encryption disabled.
func NewConn(sock net.Conn) *Conn {
	c := &Conn{
		sock:      sock,
		threshold: -1,
		maxFrame:  DefaultMaxFrameSize,
	}
	c.br = bufio.NewReader(connReader{c})
	return c
}

// connReader decrypts inbound bytes at the moment they leave the socket, so
// no read path can observe ciphertext after encryption is enabled.
type connReader struct{ c *Conn }

func (r connReader) Read(p []byte) (int, error) {
	n, err := r.c.sock.Read(p)
	if n > 0 && r.c.session != nil {
		r.c.session.Decrypt(p[:n])
	}
	return n, err
}

// connWriter is the only outbound path; it encrypts every byte written
// after encryption is enabled.
type connWriter struct{ c *Conn }

func (w connWriter) Write(p []byte) (int, error) {
	if w.c.session == nil {
		return w.c.sock.Write(p)
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	w.c.session.Encrypt(buf)
	return w.c.sock.Write(buf)
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State { return c.state }

// SetState advances the connection state. Backward transitions are protocol
// violations and are refused.
func (c *Conn) SetState(next State) error {
	if next < c.state {
		return fmt.Errorf("protocol: illegal state transition %s -> %s", c.state, next)
	}
	c.state = next
	return nil
}

// SetMaxFrameSize overrides the frame size limit for this connection.
func (c *Conn) SetMaxFrameSize(max int32) { c.maxFrame = max }

// EnableEncryption installs the cipher produced from the finished login key
// exchange. Every byte read or written afterward passes through it; bytes
// already buffered were received in plaintext and are untouched.
func (c *Conn) EnableEncryption(secret []byte) error {
	session, err := NewCryptoSession(secret)
	if err != nil {
		return err
	}
	c.session = session
	return nil
}

// EnableCompression activates the compression layer for all subsequent
// frames in both directions. Frames already read or written are unaffected.
func (c *Conn) EnableCompression(threshold int32) { c.threshold = threshold }

// CompressionThreshold returns the active threshold, or a negative value if
// the compression layer is disabled.
func (c *Conn) CompressionThreshold() int32 { return c.threshold }

// Peek returns the next n inbound bytes without consuming them.
func (c *Conn) Peek(n int) ([]byte, error) { return c.br.Peek(n) }

// ReadFrame reads one frame and undoes the compression layer if it is
// enabled, returning the packet body.
func (c *Conn) ReadFrame() ([]byte, error) {
	frame, err := ReadFrame(c.br, c.maxFrame)
	if err != nil {
		return nil, err
	}

	if c.threshold >= 0 {
		return unpackFrame(frame, c.maxFrame)
	}
	return frame, nil
}

// WriteFrame applies the compression layer to body if it is enabled and
// writes the result as one length-prefixed frame.
func (c *Conn) WriteFrame(body []byte) error {
	if c.threshold >= 0 {
		packed, err := packFrame(body, c.threshold)
		if err != nil {
			return err
		}
		body = packed
	}
	return WriteFrame(connWriter{c}, body)
}

// ReadServerbound reads and decodes the next packet sent by a client, which
// must be legal for the connection's current state.
func (c *Conn) ReadServerbound() (Packet, error) {
	frame, err := c.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeServerbound(c.state, frame)
}

// ReadClientbound reads and decodes the next packet sent by a server.
func (c *Conn) ReadClientbound() (Packet, error) {
	frame, err := c.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeClientbound(c.state, frame)
}

// WritePacket encodes p and sends it as one frame.
func (c *Conn) WritePacket(p Packet) error {
	body, err := EncodePacket(p)
	if err != nil {
		return err
	}
	return c.WriteFrame(body)
}

// Reader exposes the decrypted inbound byte stream, including any buffered
// bytes, for the relay phase's raw copying.
func (c *Conn) Reader() io.Reader { return c.br }

// Writer exposes the encrypting outbound byte stream for the relay phase.
func (c *Conn) Writer() io.Writer { return connWriter{c} }

// RemoteAddr returns the address of the connected peer.
func (c *Conn) RemoteAddr() net.Addr { return c.sock.RemoteAddr() }

// Close releases the underlying socket. The state becomes StateClosed and
// any in-flight read or write on the connection is unblocked.
func (c *Conn) Close() error {
	c.state = StateClosed
	return c.sock.Close()
}
