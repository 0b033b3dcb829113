package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/portcullismc/portcullis/internal/protocol"
)

const dialTimeout = 5 * time.Second

// errBackendRefused marks a login the proxied server itself turned down. The
// refusal was already forwarded to the client, so it is a normal outcome.
var errBackendRefused = errors.New("proxy: login refused by proxied server")

// relay dials the proxied server, replays the opening packets on the server
// leg, completes the login exchange, and then splices the two connections
// together until either side hangs up.
func (s *Server) relay(ctx context.Context, client *protocol.Conn, handshake *protocol.Handshake, loginStart *protocol.LoginStart) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	sock, err := dialer.DialContext(ctx, "tcp", s.Config.ProxiedAddress())
	if err != nil {
		s.Logger.Warnf("[%s] proxied server %s unreachable: %s", s.Name, s.Config.ProxiedAddress(), err)
		return s.rejectLogin(client, loginStart.Username, "backend_unreachable",
			"The server is currently unavailable. Please try again later")
	}

	backend := protocol.NewConn(sock)
	defer backend.Close()
	defer client.Close()

	if err := backend.WritePacket(handshake); err != nil {
		return err
	}
	if err := backend.SetState(protocol.StateLogin); err != nil {
		return err
	}
	if err := backend.WritePacket(loginStart); err != nil {
		return err
	}

	identity, err := s.completeLogin(client, backend)
	if err != nil {
		if errors.Is(err, errBackendRefused) {
			return nil
		}
		return err
	}

	if err := client.SetState(protocol.StateRelay); err != nil {
		return err
	}
	if err := backend.SetState(protocol.StateRelay); err != nil {
		return err
	}

	s.Logger.Infof("[%s] relaying %s (%s) from %s", s.Name, identity.Username, identity.UUID, client.RemoteAddr())
	s.Metrics.ActiveRelays.Inc()
	defer s.Metrics.ActiveRelays.Dec()

	s.splice(ctx, client, backend)
	return nil
}

// completeLogin forwards the server's login sequence to the client, acting on
// the packets that change connection settings along the way. The client has
// nothing to say between LoginStart and LoginSuccess in offline mode, so a
// single read loop on the server leg suffices.
func (s *Server) completeLogin(client, backend *protocol.Conn) (*protocol.LoginSuccess, error) {
	for {
		packet, err := backend.ReadClientbound()
		if err != nil {
			return nil, err
		}
		s.logPacket("server->proxy", packet)

		switch p := packet.(type) {
		case *protocol.SetCompression:
			// Forward before enabling: the directive itself travels
			// uncompressed, everything after it is subject to the threshold
			// on both legs.
			if err := client.WritePacket(p); err != nil {
				return nil, err
			}
			client.EnableCompression(p.Threshold)
			backend.EnableCompression(p.Threshold)

		case *protocol.LoginDisconnect:
			if err := client.WritePacket(p); err != nil {
				return nil, err
			}
			return nil, errBackendRefused

		case *protocol.EncryptionRequest:
			s.Metrics.LoginsRejected.WithLabelValues("encryption_unsupported").Inc()
			disconnect := &protocol.LoginDisconnect{
				Reason: protocol.DisconnectReason("This proxy does not support online-mode servers"),
			}
			_ = client.WritePacket(disconnect)
			return nil, errors.New("proxied server requested encryption; set online-mode=false")

		case *protocol.LoginSuccess:
			if err := client.WritePacket(p); err != nil {
				return nil, err
			}
			return p, nil
		}
	}
}

// splice copies raw bytes between the two legs until either side closes.
// Closing both sockets is the shared cancellation signal: the first leg to
// finish (or a context cancellation) tears both down, which unblocks the
// other leg's copy.
func (s *Server) splice(ctx context.Context, client, backend *protocol.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		client.Close()
		backend.Close()
	}()

	var wg sync.WaitGroup
	copyLeg := func(dst io.Writer, src io.Reader, direction string) {
		defer wg.Done()

		n, err := io.Copy(dst, src)
		s.Metrics.RelayedBytes.WithLabelValues(direction).Add(float64(n))
		if err != nil && !errors.Is(err, net.ErrClosed) {
			s.Logger.Debugf("[%s] %s copy ended: %s", s.Name, direction, err)
		}

		client.Close()
		backend.Close()
	}

	wg.Add(2)
	go copyLeg(backend.Writer(), client.Reader(), "client_to_server")
	go copyLeg(client.Writer(), backend.Reader(), "server_to_client")
	wg.Wait()
}
