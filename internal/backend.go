package internal

import (
	"context"
	"net"

	"github.com/portcullismc/portcullis/internal/bans"
	"github.com/portcullismc/portcullis/internal/protocol"
)

// Backend is an interface for a server component that handles accepted
// connections, abstracting the proxy's state machine away from the
// connection plumbing.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// CheckAddr vets a peer address before any bytes are read from the
	// connection. A banned verdict drops the connection immediately.
	CheckAddr(addr net.Addr) bans.Verdict

	// Handle is the main entry point for a connection and drives it until it
	// closes. The Backend owns the connection for the duration of the call.
	Handle(ctx context.Context, conn *protocol.Conn) error
}
