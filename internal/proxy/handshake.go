package proxy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/portcullismc/portcullis/internal/protocol"
)

// errLegacyPing marks a connection that turned out to be a pre-framing server
// list probe. It was answered and closed, so it is a normal outcome.
var errLegacyPing = errors.New("proxy: answered legacy server list ping")

// legacyPingProbe is the first byte of a pre-framing server list ping. It can
// never start a legal frame (it would declare an impossibly large length), so
// one peeked byte is enough to tell the two apart.
const legacyPingProbe = 0xFE

// handleHandshake reads the single packet of the handshake phase. Legacy
// pings are answered inline and reported via errLegacyPing.
func (s *Server) handleHandshake(conn *protocol.Conn) (*protocol.Handshake, error) {
	probe, err := conn.Peek(1)
	if err != nil {
		return nil, err
	}
	if probe[0] == legacyPingProbe {
		if err := s.answerLegacyPing(conn); err != nil {
			return nil, fmt.Errorf("error answering legacy ping: %w", err)
		}
		return nil, errLegacyPing
	}

	packet, err := conn.ReadServerbound()
	if err != nil {
		return nil, err
	}
	handshake := packet.(*protocol.Handshake)
	s.logPacket("client->proxy", handshake)

	return handshake, nil
}

// answerLegacyPing responds to a 0xFE probe with the legacy kick payload: a
// 0xFF type byte followed by a length-prefixed UTF-16BE status string.
func (s *Server) answerLegacyPing(conn *protocol.Conn) error {
	status := strings.Join([]string{
		"§1",
		strconv.Itoa(int(s.Config.ProtocolVersion)),
		s.Config.Status.VersionName,
		s.Config.Status.MOTD,
		strconv.Itoa(s.OnlinePlayers()),
		strconv.Itoa(s.Config.Status.MaxPlayers),
	}, "\x00")

	encoder := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	encoded, err := encoder.Bytes([]byte(status))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteByte(0xFF)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(encoded)/2)); err != nil {
		return err
	}
	buf.Write(encoded)

	if _, err := conn.Writer().Write(buf.Bytes()); err != nil {
		return err
	}
	return conn.Close()
}
