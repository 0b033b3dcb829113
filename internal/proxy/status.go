package proxy

import (
	"errors"
	"io"

	"github.com/portcullismc/portcullis/internal/protocol"
)

// handleStatus answers the server list exchange: a status request followed by
// an optional ping, then the connection closes.
func (s *Server) handleStatus(conn *protocol.Conn) error {
	for {
		packet, err := conn.ReadServerbound()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		s.logPacket("client->proxy", packet)

		switch p := packet.(type) {
		case *protocol.StatusRequest:
			response := &protocol.StatusResponse{Status: s.buildStatus()}
			if err := conn.WritePacket(response); err != nil {
				return err
			}

		case *protocol.PingRequest:
			pong := &protocol.PingResponse{Payload: p.Payload}
			if err := conn.WritePacket(pong); err != nil {
				return err
			}
			return conn.Close()
		}
	}
}

// buildStatus assembles the status document from config and the online
// registry.
func (s *Server) buildStatus() protocol.ServerStatus {
	return protocol.ServerStatus{
		Version: protocol.StatusVersion{
			Name:     s.Config.Status.VersionName,
			Protocol: s.Config.ProtocolVersion,
		},
		Players: protocol.StatusPlayers{
			Max:    int32(s.Config.Status.MaxPlayers),
			Online: int32(s.OnlinePlayers()),
			Sample: s.registry.Sample(),
		},
		Description: protocol.ChatMessage{Text: s.Config.Status.MOTD},
		Favicon:     s.favicon,
	}
}
