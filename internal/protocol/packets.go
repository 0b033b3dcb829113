package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// State identifies the phase of a connection's lifecycle. Transitions only
// ever move forward and StateClosed is absorbing.
type State int32

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StateRelay
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	case StateRelay:
		return "relay"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Next-state selectors carried by the handshake packet.
const (
	NextStateStatus int32 = 1
	NextStateLogin  int32 = 2
)

// Packet is implemented by every packet type the proxy understands. Encode
// and Decode operate on the packet body only; the identifier and frame
// length are handled by EncodePacket and the Conn.
type Packet interface {
	ID() int32
	Encode(w io.Writer) error
	Decode(r io.Reader) error
}

const maxStringLength = 32767

func readString(r io.Reader, max int) (string, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if length < 0 || int(length) > max {
		return "", fmt.Errorf("protocol: string length %d exceeds maximum %d", length, max)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeString(w io.Writer, s string, max int) error {
	if len(s) > max {
		return fmt.Errorf("protocol: string length %d exceeds maximum %d", len(s), max)
	}
	if err := WriteVarInt(w, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readByteArray(r io.Reader) ([]byte, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if length < 0 || length > DefaultMaxFrameSize {
		return nil, fmt.Errorf("protocol: byte array length %d out of range", length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeByteArray(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readUUID(r io.Reader) (uuid.UUID, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(buf[:])
}

func writeUUID(w io.Writer, id uuid.UUID) error {
	_, err := w.Write(id[:])
	return err
}

// Handshake is the single packet accepted in the handshake state. The
// next-state selector decides whether the connection proceeds to status
// or login.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

func (*Handshake) ID() int32 { return 0x00 }

func (p *Handshake) Encode(w io.Writer) error {
	if err := WriteVarInt(w, p.ProtocolVersion); err != nil {
		return err
	}
	if err := writeString(w, p.ServerAddress, 255); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, p.ServerPort); err != nil {
		return err
	}
	return WriteVarInt(w, p.NextState)
}

func (p *Handshake) Decode(r io.Reader) error {
	var err error
	if p.ProtocolVersion, err = ReadVarInt(r); err != nil {
		return err
	}
	if p.ServerAddress, err = readString(r, 255); err != nil {
		return err
	}
	if err = binary.Read(r, binary.BigEndian, &p.ServerPort); err != nil {
		return err
	}
	p.NextState, err = ReadVarInt(r)
	return err
}

// StatusRequest has an empty body.
type StatusRequest struct{}

func (*StatusRequest) ID() int32              { return 0x00 }
func (*StatusRequest) Encode(io.Writer) error { return nil }
func (*StatusRequest) Decode(io.Reader) error { return nil }

// StatusResponse carries the JSON status document shown in the client's
// server list.
type StatusResponse struct {
	Status ServerStatus
}

func (*StatusResponse) ID() int32 { return 0x00 }

func (p *StatusResponse) Encode(w io.Writer) error {
	doc, err := json.Marshal(&p.Status)
	if err != nil {
		return err
	}
	return writeString(w, string(doc), maxStringLength)
}

func (p *StatusResponse) Decode(r io.Reader) error {
	doc, err := readString(r, maxStringLength)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(doc), &p.Status)
}

// PingRequest is the client half of the status ping/pong echo.
type PingRequest struct {
	Payload int64
}

func (*PingRequest) ID() int32 { return 0x01 }

func (p *PingRequest) Encode(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, p.Payload)
}

func (p *PingRequest) Decode(r io.Reader) error {
	return binary.Read(r, binary.BigEndian, &p.Payload)
}

// PingResponse echoes the PingRequest payload back verbatim.
type PingResponse struct {
	Payload int64
}

func (*PingResponse) ID() int32 { return 0x01 }

func (p *PingResponse) Encode(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, p.Payload)
}

func (p *PingResponse) Decode(r io.Reader) error {
	return binary.Read(r, binary.BigEndian, &p.Payload)
}

// LoginStart opens the login sequence with the client's requested username
// and profile UUID.
type LoginStart struct {
	Username string
	UUID     uuid.UUID
}

func (*LoginStart) ID() int32 { return 0x00 }

func (p *LoginStart) Encode(w io.Writer) error {
	if err := writeString(w, p.Username, 16); err != nil {
		return err
	}
	return writeUUID(w, p.UUID)
}

func (p *LoginStart) Decode(r io.Reader) error {
	var err error
	if p.Username, err = readString(r, 16); err != nil {
		return err
	}
	p.UUID, err = readUUID(r)
	return err
}

// EncryptionResponse carries the client's encrypted shared secret during the
// login key exchange. The proxy never initiates the exchange itself but must
// be able to frame the packet for the external authenticator.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (*EncryptionResponse) ID() int32 { return 0x01 }

func (p *EncryptionResponse) Encode(w io.Writer) error {
	if err := writeByteArray(w, p.SharedSecret); err != nil {
		return err
	}
	return writeByteArray(w, p.VerifyToken)
}

func (p *EncryptionResponse) Decode(r io.Reader) error {
	var err error
	if p.SharedSecret, err = readByteArray(r); err != nil {
		return err
	}
	p.VerifyToken, err = readByteArray(r)
	return err
}

// LoginAcknowledged has an empty body and closes out the login exchange.
type LoginAcknowledged struct{}

func (*LoginAcknowledged) ID() int32              { return 0x03 }
func (*LoginAcknowledged) Encode(io.Writer) error { return nil }
func (*LoginAcknowledged) Decode(io.Reader) error { return nil }

// LoginDisconnect rejects a login with a JSON chat component explaining why.
type LoginDisconnect struct {
	Reason string
}

func (*LoginDisconnect) ID() int32 { return 0x00 }

func (p *LoginDisconnect) Encode(w io.Writer) error {
	return writeString(w, p.Reason, maxStringLength)
}

func (p *LoginDisconnect) Decode(r io.Reader) error {
	var err error
	p.Reason, err = readString(r, maxStringLength)
	return err
}

// DisconnectReason builds the JSON chat component for a plain-text
// disconnect message.
func DisconnectReason(text string) string {
	doc, _ := json.Marshal(map[string]string{"text": text})
	return string(doc)
}

// EncryptionRequest starts the login key exchange. Handling it is delegated
// to an external authenticator; the proxy only needs to recognize it.
type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

func (*EncryptionRequest) ID() int32 { return 0x01 }

func (p *EncryptionRequest) Encode(w io.Writer) error {
	if err := writeString(w, p.ServerID, 20); err != nil {
		return err
	}
	if err := writeByteArray(w, p.PublicKey); err != nil {
		return err
	}
	return writeByteArray(w, p.VerifyToken)
}

func (p *EncryptionRequest) Decode(r io.Reader) error {
	var err error
	if p.ServerID, err = readString(r, 20); err != nil {
		return err
	}
	if p.PublicKey, err = readByteArray(r); err != nil {
		return err
	}
	p.VerifyToken, err = readByteArray(r)
	return err
}

// LoginSuccess confirms the player's identity and completes login.
type LoginSuccess struct {
	UUID     uuid.UUID
	Username string
}

func (*LoginSuccess) ID() int32 { return 0x02 }

func (p *LoginSuccess) Encode(w io.Writer) error {
	if err := writeUUID(w, p.UUID); err != nil {
		return err
	}
	return writeString(w, p.Username, 16)
}

func (p *LoginSuccess) Decode(r io.Reader) error {
	var err error
	if p.UUID, err = readUUID(r); err != nil {
		return err
	}
	p.Username, err = readString(r, 16)
	return err
}

// SetCompression tells the peer to apply the compression layer to every
// subsequent frame at or above the threshold.
type SetCompression struct {
	Threshold int32
}

func (*SetCompression) ID() int32 { return 0x03 }

func (p *SetCompression) Encode(w io.Writer) error {
	return WriteVarInt(w, p.Threshold)
}

func (p *SetCompression) Decode(r io.Reader) error {
	var err error
	p.Threshold, err = ReadVarInt(r)
	return err
}

// NewServerbound returns an empty packet of the type identified by id in the
// given state, for packets traveling client to server.
func NewServerbound(state State, id int32) (Packet, error) {
	switch state {
	case StateHandshake:
		if id == 0x00 {
			return &Handshake{}, nil
		}
	case StateStatus:
		switch id {
		case 0x00:
			return &StatusRequest{}, nil
		case 0x01:
			return &PingRequest{}, nil
		}
	case StateLogin:
		switch id {
		case 0x00:
			return &LoginStart{}, nil
		case 0x01:
			return &EncryptionResponse{}, nil
		case 0x03:
			return &LoginAcknowledged{}, nil
		}
	}
	return nil, &UnexpectedPacketError{State: state, ID: id}
}

// NewClientbound returns an empty packet of the type identified by id in the
// given state, for packets traveling server to client.
func NewClientbound(state State, id int32) (Packet, error) {
	switch state {
	case StateStatus:
		switch id {
		case 0x00:
			return &StatusResponse{}, nil
		case 0x01:
			return &PingResponse{}, nil
		}
	case StateLogin:
		switch id {
		case 0x00:
			return &LoginDisconnect{}, nil
		case 0x01:
			return &EncryptionRequest{}, nil
		case 0x02:
			return &LoginSuccess{}, nil
		case 0x03:
			return &SetCompression{}, nil
		}
	}
	return nil, &UnexpectedPacketError{State: state, ID: id}
}

// EncodePacket serializes a packet to a frame body: VarInt identifier
// followed by the encoded fields.
func EncodePacket(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteVarInt(&buf, p.ID()); err != nil {
		return nil, err
	}
	if err := p.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeServerbound parses a frame body into a serverbound packet legal for
// the given state.
func DecodeServerbound(state State, frame []byte) (Packet, error) {
	return decodePacket(frame, func(id int32) (Packet, error) {
		return NewServerbound(state, id)
	})
}

// DecodeClientbound parses a frame body into a clientbound packet legal for
// the given state.
func DecodeClientbound(state State, frame []byte) (Packet, error) {
	return decodePacket(frame, func(id int32) (Packet, error) {
		return NewClientbound(state, id)
	})
}

func decodePacket(frame []byte, lookup func(int32) (Packet, error)) (Packet, error) {
	r := bytes.NewReader(frame)

	id, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	p, err := lookup(id)
	if err != nil {
		return nil, err
	}

	if err := p.Decode(r); err != nil {
		return nil, err
	}
	return p, nil
}
