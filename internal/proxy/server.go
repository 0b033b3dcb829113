// The proxy package implements the connection lifecycle: the handshake,
// status, and login phases handled by the proxy itself, and the relay phase
// that splices an accepted client onto the proxied server.
package proxy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/portcullismc/portcullis/internal/bans"
	"github.com/portcullismc/portcullis/internal/core"
	"github.com/portcullismc/portcullis/internal/core/debug"
	"github.com/portcullismc/portcullis/internal/protocol"
)

// Server drives one proxied connection from handshake through relay.
type Server struct {
	Name    string
	Config  *core.Config
	Logger  *logrus.Logger
	Gate    *bans.Gate
	Metrics *core.Metrics

	registry *Registry
	favicon  string
}

func (s *Server) Identifier() string { return s.Name }

// Init loads the optional server list icon and prepares the online registry.
func (s *Server) Init(ctx context.Context) error {
	s.registry = NewRegistry()

	if path := s.Config.Status.FaviconPath; path != "" {
		icon, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("error reading favicon %s: %w", path, err)
		}
		s.favicon = "data:image/png;base64," + base64.StdEncoding.EncodeToString(icon)
	}
	return nil
}

// Handle runs the connection state machine until the connection closes. It
// returns nil for connections that ended normally (including rejected logins,
// which are a normal outcome) and an error for protocol violations or
// transport failures worth logging.
func (s *Server) Handle(ctx context.Context, conn *protocol.Conn) error {
	handshake, err := s.handleHandshake(conn)
	if err != nil {
		if errors.Is(err, errLegacyPing) || errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	switch handshake.NextState {
	case protocol.NextStateStatus:
		if err := conn.SetState(protocol.StateStatus); err != nil {
			return err
		}
		return s.handleStatus(conn)
	case protocol.NextStateLogin:
		if err := conn.SetState(protocol.StateLogin); err != nil {
			return err
		}
		return s.handleLogin(ctx, conn, handshake)
	}

	return &protocol.UnexpectedPacketError{State: protocol.StateHandshake, ID: handshake.NextState}
}

// CheckAddr reports the ban verdict for a peer before any bytes are read
// from it.
func (s *Server) CheckAddr(addr net.Addr) bans.Verdict {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return bans.Verdict{}
	}
	return s.Gate.CheckAddr(tcpAddr.IP)
}

// OnlinePlayers returns the number of connections currently in the relay
// phase.
func (s *Server) OnlinePlayers() int {
	return s.registry.Count()
}

func (s *Server) logPacket(direction string, packet protocol.Packet) {
	if s.Config.Debugging.PacketLoggingEnabled {
		debug.LogPacket(s.Logger, direction, packet)
	}
}
