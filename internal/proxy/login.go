package proxy

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/portcullismc/portcullis/internal/protocol"
)

// handleLogin vets a login attempt and, if every gate passes, hands the
// connection to the relay. Refused logins are disconnected with a reason and
// are a normal outcome.
func (s *Server) handleLogin(ctx context.Context, conn *protocol.Conn, handshake *protocol.Handshake) error {
	packet, err := conn.ReadServerbound()
	if err != nil {
		return err
	}
	loginStart, ok := packet.(*protocol.LoginStart)
	if !ok {
		return &protocol.UnexpectedPacketError{State: protocol.StateLogin, ID: packet.ID()}
	}
	s.logPacket("client->proxy", loginStart)

	if handshake.ProtocolVersion != s.Config.ProtocolVersion {
		reason := fmt.Sprintf(
			"Incompatible client! Please use protocol version %d", s.Config.ProtocolVersion)
		return s.rejectLogin(conn, loginStart.Username, "protocol_version", reason)
	}

	if verdict := s.Gate.CheckUser(loginStart.Username); verdict.Banned {
		return s.rejectLogin(conn, loginStart.Username, "user_banned", banMessage(verdict.Reason))
	}

	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		if verdict := s.Gate.CheckAddr(tcpAddr.IP); verdict.Banned {
			return s.rejectLogin(conn, loginStart.Username, "ip_banned", banMessage(verdict.Reason))
		}
	}

	if !s.Gate.WhitelistAllows(loginStart.Username) {
		return s.rejectLogin(conn, loginStart.Username, "whitelist", "You are not whitelisted on this server")
	}

	// Clients that omit their profile id get the offline-mode derivation,
	// matching what the proxied server will assign.
	if loginStart.UUID == uuid.Nil {
		loginStart.UUID = protocol.OfflineUUID(loginStart.Username)
	}

	if !s.registry.Add(loginStart.Username, loginStart.UUID) {
		return s.rejectLogin(conn, loginStart.Username, "duplicate_login", "You are already connected to this server")
	}
	defer s.registry.Remove(loginStart.Username)

	return s.relay(ctx, conn, handshake, loginStart)
}

// rejectLogin disconnects a client that failed one of the login gates.
func (s *Server) rejectLogin(conn *protocol.Conn, username, cause, reason string) error {
	s.Logger.Infof("[%s] refused login for %s from %s: %s", s.Name, username, conn.RemoteAddr(), cause)
	s.Metrics.LoginsRejected.WithLabelValues(cause).Inc()

	disconnect := &protocol.LoginDisconnect{Reason: protocol.DisconnectReason(reason)}
	if err := conn.WritePacket(disconnect); err != nil {
		return err
	}
	return conn.Close()
}

func banMessage(reason string) string {
	if reason == "" {
		return "You are banned from this server"
	}
	return "You are banned from this server: " + reason
}
