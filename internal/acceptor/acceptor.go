// Package acceptor contains the generic acceptor interface
package acceptor

import (
	"context"
	"net"
)

// Model is the model of any abstract acceptor
type Model interface {
	Accept(ctx context.Context) (net.Conn, error)
	Addr() net.Addr
	Close() error
}
