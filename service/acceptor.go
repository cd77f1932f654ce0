package service

import (
	"context"
	"net"

	ncerr "netsess/internal/errors"
	"netsess/session"
)

// Acceptor accepts inbound connections on an arbitrary net.Listener
// and turns each one into a session. The accept loop itself stays
// thin: shutdown is driven by the context, and everything
// per-connection (framing, writes, handler dispatch) lives in the
// session the new conn is handed to.
type Acceptor struct {
	Service *Service

	// NewHandler is called once per accepted connection to build that
	// session's Handler. Returning the same value for every call is
	// fine — handlers are free to be stateless or to key per-session
	// state off session.Session.Attrs().
	NewHandler func(conn net.Conn) session.Handler

	// KeepOpen accepts connections in a loop, each on a new session; if
	// false, Serve returns after the first connection is accepted and
	// its session reaches StatusClosed.
	KeepOpen bool
}

// Serve listens on address and dispatches accepted connections to the
// Service until ctx is cancelled or (with KeepOpen=false) a single
// session completes.
func (a *Acceptor) Serve(ctx context.Context, network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return ncerr.Wrap("listen", address, err)
	}
	defer ln.Close()

	a.Service.Logger.Verbose("listening on %s (%s)", ln.Addr(), network)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return ncerr.Wrap("accept", address, err)
			}
		}
		a.Service.Logger.Verbose("connection from %s", conn.RemoteAddr())

		h := a.NewHandler(conn)
		sess := a.Service.NewSession(ctx, conn, h, conn.RemoteAddr().String())

		if !a.KeepOpen {
			<-sess.Done()
			return nil
		}
	}
}
