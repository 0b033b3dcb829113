package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/portcullismc/portcullis/internal/protocol"
)

const backendThreshold int32 = 64

// startFakeBackend stands in for the proxied server on a real TCP socket and
// runs handler on the first accepted connection.
func startFakeBackend(t *testing.T, server *Server, handler func(conn *protocol.Conn)) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error starting fake backend: %s", err)
	}
	t.Cleanup(func() { listener.Close() })

	addr := listener.Addr().(*net.TCPAddr)
	server.Config.ProxiedServer.Host = "127.0.0.1"
	server.Config.ProxiedServer.Port = addr.Port

	go func() {
		sock, err := listener.Accept()
		if err != nil {
			return
		}
		conn := protocol.NewConn(sock)
		defer conn.Close()
		handler(conn)
	}()
}

// acceptLogin performs the proxied server's half of the login exchange:
// handshake and LoginStart in, compression directive and LoginSuccess out.
func acceptLogin(t *testing.T, conn *protocol.Conn) bool {
	t.Helper()

	packet, err := conn.ReadServerbound()
	if err != nil {
		t.Errorf("backend: error reading handshake: %s", err)
		return false
	}
	if _, ok := packet.(*protocol.Handshake); !ok {
		t.Errorf("backend: expected a Handshake, got %T", packet)
		return false
	}
	if err := conn.SetState(protocol.StateLogin); err != nil {
		t.Error(err)
		return false
	}

	packet, err = conn.ReadServerbound()
	if err != nil {
		t.Errorf("backend: error reading login start: %s", err)
		return false
	}
	loginStart, ok := packet.(*protocol.LoginStart)
	if !ok {
		t.Errorf("backend: expected a LoginStart, got %T", packet)
		return false
	}

	if err := conn.WritePacket(&protocol.SetCompression{Threshold: backendThreshold}); err != nil {
		t.Errorf("backend: error sending compression directive: %s", err)
		return false
	}
	conn.EnableCompression(backendThreshold)

	if err := conn.WritePacket(&protocol.LoginSuccess{
		UUID:     loginStart.UUID,
		Username: loginStart.Username,
	}); err != nil {
		t.Errorf("backend: error sending login success: %s", err)
		return false
	}
	return conn.SetState(protocol.StateRelay) == nil
}

// completeClientLogin drives the client's side of a successful login through
// the proxy and leaves the connection in the relay state.
func completeClientLogin(t *testing.T, client *protocol.Conn, username string) *protocol.LoginSuccess {
	t.Helper()

	writeHandshake(t, client, testProtocolVersion, protocol.NextStateLogin)
	if err := client.SetState(protocol.StateLogin); err != nil {
		t.Fatal(err)
	}
	if err := client.WritePacket(&protocol.LoginStart{Username: username, UUID: uuid.New()}); err != nil {
		t.Fatalf("error sending login start: %s", err)
	}

	packet, err := client.ReadClientbound()
	if err != nil {
		t.Fatalf("error reading compression directive: %s", err)
	}
	directive, ok := packet.(*protocol.SetCompression)
	if !ok {
		t.Fatalf("expected a SetCompression, got %T", packet)
	}
	client.EnableCompression(directive.Threshold)

	packet, err = client.ReadClientbound()
	if err != nil {
		t.Fatalf("error reading login success: %s", err)
	}
	success, ok := packet.(*protocol.LoginSuccess)
	if !ok {
		t.Fatalf("expected a LoginSuccess, got %T", packet)
	}

	if err := client.SetState(protocol.StateRelay); err != nil {
		t.Fatal(err)
	}
	return success
}

func TestRelay(t *testing.T) {
	server, _ := newTestServer(t)

	startFakeBackend(t, server, func(conn *protocol.Conn) {
		if !acceptLogin(t, conn) {
			return
		}
		// Echo relayed frames back to the client.
		for {
			frame, err := conn.ReadFrame()
			if err != nil {
				return
			}
			if err := conn.WriteFrame(frame); err != nil {
				return
			}
		}
	})

	client, errChan := startHandle(context.Background(), server)

	success := completeClientLogin(t, client, "steve")
	if success.Username != "steve" {
		t.Errorf("login success username = %q", success.Username)
	}

	// A body above the compression threshold exercises the deflate path on
	// all four leg-direction combinations.
	payload := bytes.Repeat([]byte{0xAB}, 256)
	if err := client.WriteFrame(payload); err != nil {
		t.Fatalf("error relaying frame: %s", err)
	}
	echoed, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("error reading echoed frame: %s", err)
	}
	if !bytes.Equal(payload, echoed) {
		t.Error("echoed frame does not match what was sent")
	}

	if online := server.OnlinePlayers(); online != 1 {
		t.Errorf("OnlinePlayers() = %d during relay, want 1", online)
	}

	client.Close()
	if err := waitForHandle(t, errChan); err != nil {
		t.Errorf("Handle() returned an unexpected error: %v", err)
	}

	if online := server.OnlinePlayers(); online != 0 {
		t.Errorf("OnlinePlayers() = %d after disconnect, want 0", online)
	}
	relayed := testutil.ToFloat64(server.Metrics.RelayedBytes.WithLabelValues("client_to_server"))
	if relayed == 0 {
		t.Error("relayed byte counter was not incremented")
	}
}

func TestRelayBackendUnreachable(t *testing.T) {
	server, _ := newTestServer(t)

	// Bind a port and immediately release it so the dial has a dead target.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().(*net.TCPAddr)
	listener.Close()
	server.Config.ProxiedServer.Host = "127.0.0.1"
	server.Config.ProxiedServer.Port = addr.Port

	client, errChan := startHandle(context.Background(), server)
	defer client.Close()

	writeHandshake(t, client, testProtocolVersion, protocol.NextStateLogin)
	if err := client.SetState(protocol.StateLogin); err != nil {
		t.Fatal(err)
	}
	if err := client.WritePacket(&protocol.LoginStart{Username: "steve", UUID: uuid.New()}); err != nil {
		t.Fatalf("error sending login start: %s", err)
	}

	packet, err := client.ReadClientbound()
	if err != nil {
		t.Fatalf("error reading disconnect: %s", err)
	}
	disconnect, ok := packet.(*protocol.LoginDisconnect)
	if !ok {
		t.Fatalf("expected a LoginDisconnect, got %T", packet)
	}
	if !strings.Contains(disconnect.Reason, "unavailable") {
		t.Errorf("disconnect reason %q does not mention unavailability", disconnect.Reason)
	}

	if err := waitForHandle(t, errChan); err != nil {
		t.Errorf("Handle() returned an unexpected error: %v", err)
	}
	rejected := testutil.ToFloat64(server.Metrics.LoginsRejected.WithLabelValues("backend_unreachable"))
	if rejected != 1 {
		t.Errorf("logins_rejected{cause=\"backend_unreachable\"} = %v, want 1", rejected)
	}
}

func TestRelayBackendRefusesLogin(t *testing.T) {
	server, _ := newTestServer(t)

	startFakeBackend(t, server, func(conn *protocol.Conn) {
		if _, err := conn.ReadServerbound(); err != nil {
			return
		}
		if err := conn.SetState(protocol.StateLogin); err != nil {
			return
		}
		if _, err := conn.ReadServerbound(); err != nil {
			return
		}
		_ = conn.WritePacket(&protocol.LoginDisconnect{
			Reason: protocol.DisconnectReason("You are banned upstream"),
		})
	})

	client, errChan := startHandle(context.Background(), server)
	defer client.Close()

	writeHandshake(t, client, testProtocolVersion, protocol.NextStateLogin)
	if err := client.SetState(protocol.StateLogin); err != nil {
		t.Fatal(err)
	}
	if err := client.WritePacket(&protocol.LoginStart{Username: "steve", UUID: uuid.New()}); err != nil {
		t.Fatalf("error sending login start: %s", err)
	}

	packet, err := client.ReadClientbound()
	if err != nil {
		t.Fatalf("error reading disconnect: %s", err)
	}
	disconnect, ok := packet.(*protocol.LoginDisconnect)
	if !ok {
		t.Fatalf("expected a LoginDisconnect, got %T", packet)
	}
	if !strings.Contains(disconnect.Reason, "banned upstream") {
		t.Errorf("disconnect reason %q was not forwarded from the proxied server", disconnect.Reason)
	}

	// An upstream refusal is a normal outcome for the proxy.
	if err := waitForHandle(t, errChan); err != nil {
		t.Errorf("Handle() returned an unexpected error: %v", err)
	}
}

func TestRelayRejectsEncryptionRequest(t *testing.T) {
	server, _ := newTestServer(t)

	startFakeBackend(t, server, func(conn *protocol.Conn) {
		if _, err := conn.ReadServerbound(); err != nil {
			return
		}
		if err := conn.SetState(protocol.StateLogin); err != nil {
			return
		}
		if _, err := conn.ReadServerbound(); err != nil {
			return
		}
		_ = conn.WritePacket(&protocol.EncryptionRequest{
			ServerID:    "",
			PublicKey:   make([]byte, 16),
			VerifyToken: make([]byte, 4),
		})
	})

	client, errChan := startHandle(context.Background(), server)
	defer client.Close()

	writeHandshake(t, client, testProtocolVersion, protocol.NextStateLogin)
	if err := client.SetState(protocol.StateLogin); err != nil {
		t.Fatal(err)
	}
	if err := client.WritePacket(&protocol.LoginStart{Username: "steve", UUID: uuid.New()}); err != nil {
		t.Fatalf("error sending login start: %s", err)
	}

	packet, err := client.ReadClientbound()
	if err != nil {
		t.Fatalf("error reading disconnect: %s", err)
	}
	if _, ok := packet.(*protocol.LoginDisconnect); !ok {
		t.Fatalf("expected a LoginDisconnect, got %T", packet)
	}

	if err := waitForHandle(t, errChan); err == nil {
		t.Error("Handle() = nil, want an error for an online-mode server")
	}
}

func TestRelayContextCancellation(t *testing.T) {
	server, _ := newTestServer(t)

	startFakeBackend(t, server, func(conn *protocol.Conn) {
		if !acceptLogin(t, conn) {
			return
		}
		// Sit on the connection until the proxy tears it down.
		_, _ = conn.ReadFrame()
	})

	ctx, cancel := context.WithCancel(context.Background())
	client, errChan := startHandle(ctx, server)
	defer client.Close()

	completeClientLogin(t, client, "steve")

	cancel()
	if err := waitForHandle(t, errChan); err != nil {
		t.Errorf("Handle() returned an unexpected error: %v", err)
	}

	// The client's leg was closed as part of the shared teardown.
	if _, err := client.ReadFrame(); !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("client read after cancellation = %v, want EOF", err)
	}
}
