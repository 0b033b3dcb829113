package internal

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/portcullismc/portcullis/internal/core"
	"github.com/portcullismc/portcullis/internal/protocol"
)

// frontend implements the concurrent client connection logic.
//
// Connections are accepted from a TCP socket and passed to a backend
// instance, abstracting the lower level connection details away from the
// Backends.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger
	Metrics *core.Metrics

	activeConnections atomic.Int64
}

// Start initializes the server backend and opens a TCP socket for the specified server.
// A blocking loop for accepting client connections is spun off in its own goroutine and
// added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), f.Address)

	connections := make(chan *net.TCPConn)
	go func() {
		for {
			// Poll until we can accept more clients.
			for int(f.activeConnections.Load()) >= f.Config.MaxConnections {
				time.Sleep(time.Second)
			}

			connection, err := socket.AcceptTCP()
			if err != nil {
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			connections <- connection
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			break handleLoop
		case connection := <-connections:
			clientWg.Add(1)
			// Note: If there is eventually a need to implement worker pooling rather than spawning
			// new goroutines for each client, this is where it should be implemented.
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	_ = socket.Close()
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient vets the peer address and, if it passes, hands the wrapped
// connection to the Backend for the rest of its lifetime.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Metrics.ConnectionsAccepted.Inc()

	// Address bans are enforced before a single byte is read.
	if verdict := f.Backend.CheckAddr(connection.RemoteAddr()); verdict.Banned {
		f.Logger.Infof("[%s] dropped connection from banned address %s",
			f.Backend.Identifier(), connection.RemoteAddr())
		_ = connection.Close()
		return
	}

	conn := protocol.NewConn(connection)
	f.Logger.Infof("[%s] accepted connection from %s", f.Backend.Identifier(), conn.RemoteAddr())

	f.activeConnections.Add(1)
	f.handleConnection(ctx, conn)
}

// handleConnection runs the Backend for one connection and only returns once
// the connection has closed.
func (f *frontend) handleConnection(ctx context.Context, conn *protocol.Conn) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), conn)

	if err := f.Backend.Handle(ctx, conn); err != nil {
		f.Logger.Warnf("error in client communication with %s: %s", conn.RemoteAddr(), err)
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics and
// disconnects the client regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, conn *protocol.Conn) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			conn.RemoteAddr(), err, debug.Stack())
	}

	_ = conn.Close()
	f.activeConnections.Add(-1)

	f.Logger.Infof("[%s] disconnected client %s", serverName, conn.RemoteAddr())
}
