// Package ooacceptor contains the default acceptor
package ooacceptor

import (
	"context"
	"net"

	"github.com/ooni/netsrv/internal/retry"
	"golang.org/x/net/netutil"
)

// Acceptor is the default acceptor. It retries temporary accept
// errors and optionally caps the number of open connections.
type Acceptor struct {
	// Retry tunes the retry of temporary accept errors.
	Retry retry.Config

	listener net.Listener
}

// New returns a new acceptor using listener. When maxConns is positive
// at most maxConns accepted connections may be open at the same time.
func New(listener net.Listener, maxConns int) *Acceptor {
	if maxConns > 0 {
		listener = netutil.LimitListener(listener, maxConns)
	}
	return &Acceptor{listener: listener}
}

// Listen creates a listener and returns an acceptor using it.
func Listen(network, address string, maxConns int) (*Acceptor, error) {
	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	return New(listener, maxConns), nil
}

// Accept accepts the next connection. Closing the acceptor is the
// way to interrupt a pending Accept.
func (a *Acceptor) Accept(ctx context.Context) (net.Conn, error) {
	return retry.Do(ctx, a.Retry, a.listener.Accept)
}

// Addr returns the listening address.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Close closes the listener.
func (a *Acceptor) Close() error {
	return a.listener.Close()
}
