// Package emittingacceptor contains an acceptor emitting events
package emittingacceptor

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/ooni/netsrv/internal/acceptor"
	"github.com/ooni/netsrv/internal/connx"
	"github.com/ooni/netsrv/model"
)

var connID int64

// Acceptor is an acceptor emitting events
type Acceptor struct {
	acceptor  acceptor.Model
	beginning time.Time
	handler   model.Handler
}

// New returns a new emitting acceptor
func New(acceptor acceptor.Model, beginning time.Time, handler model.Handler) *Acceptor {
	return &Acceptor{acceptor: acceptor, beginning: beginning, handler: handler}
}

// AcceptSession accepts the next connection and returns it as a plain
// session with a process-wide unique ID.
func (a *Acceptor) AcceptSession(ctx context.Context) (model.Session, error) {
	start := time.Now()
	conn, err := a.acceptor.Accept(ctx)
	stop := time.Now()
	var cid int64
	if err == nil {
		cid = atomic.AddInt64(&connID, 1)
	}
	a.handler.OnMeasurement(model.Measurement{
		Accept: &model.AcceptEvent{
			ConnID:        cid,
			Duration:      stop.Sub(start),
			Error:         err,
			LocalAddress:  safeLocalAddress(conn),
			Network:       a.acceptor.Addr().Network(),
			RemoteAddress: safeRemoteAddress(conn),
			Time:          stop.Sub(a.beginning),
		},
	})
	if err != nil {
		return nil, err
	}
	return &connx.MeasuringConn{
		Conn:      conn,
		Beginning: a.beginning,
		Handler:   a.handler,
		ConnID:    cid,
	}, nil
}

// Accept is like AcceptSession but returns a net.Conn.
func (a *Acceptor) Accept(ctx context.Context) (net.Conn, error) {
	session, err := a.AcceptSession(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Addr returns the listening address.
func (a *Acceptor) Addr() net.Addr {
	return a.acceptor.Addr()
}

// Close closes the underlying acceptor.
func (a *Acceptor) Close() error {
	return a.acceptor.Close()
}

func safeLocalAddress(conn net.Conn) (s string) {
	if conn != nil && conn.LocalAddr() != nil {
		s = conn.LocalAddr().String()
	}
	return
}

func safeRemoteAddress(conn net.Conn) (s string) {
	if conn != nil && conn.RemoteAddr() != nil {
		s = conn.RemoteAddr().String()
	}
	return
}

var _ acceptor.Model = &Acceptor{}
