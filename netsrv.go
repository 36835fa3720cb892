// Package netsrv contains OONI's server-side net extensions.
//
// A Server turns plain sessions accepted by a Listener into sessions
// of its own type. NewPlainServer returns a driver that hands back the
// plain session while NewTLSServer returns a driver that terminates
// TLS. Both satisfy the same interface, so the code serving sessions
// does not know which transport it is using.
//
// Servers do not log. They emit measurements to a model.Handler (see
// the handlers package) and increment counters on a model.Stats.
package netsrv

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ooni/netsrv/internal/acceptor/emittingacceptor"
	"github.com/ooni/netsrv/internal/acceptor/ooacceptor"
	"github.com/ooni/netsrv/internal/cryptox"
	"github.com/ooni/netsrv/internal/nohandler"
	"github.com/ooni/netsrv/internal/plainserver"
	"github.com/ooni/netsrv/internal/scope"
	"github.com/ooni/netsrv/internal/tlsserver"
	"github.com/ooni/netsrv/model"
)

// HandshakeTimeout bounds the TLS handshake of every accepted session.
const HandshakeTimeout = tlsserver.HandshakeTimeout

// Scope is an owned cleanup scope. Servers created with WithScope are
// released when their scope is freed.
type Scope = scope.Scope

// ErrScopeFreed indicates that WithScope was given a scope that has
// already been freed.
var ErrScopeFreed = scope.ErrFreed

// NewScope creates a new scope. When parent is not nil, the new scope
// is freed together with parent.
func NewScope(name string, parent *Scope) *Scope {
	return scope.New(name, parent)
}

// Server is a transport driver that can be released.
type Server interface {
	model.Server
	io.Closer
}

type options struct {
	beginning time.Time
	handler   model.Handler
	protocols cryptox.Protocols
	scope     *scope.Scope
	stats     model.Stats
}

// Option configures a Server.
type Option func(*options)

// WithBeginning sets the zero time of the emitted events.
func WithBeginning(beginning time.Time) Option {
	return func(o *options) {
		o.beginning = beginning
	}
}

// WithHandler sets the handler receiving measurements.
func WithHandler(handler model.Handler) Option {
	return func(o *options) {
		o.handler = handler
	}
}

// WithStats sets the collector receiving counters.
func WithStats(stats model.Stats) Option {
	return func(o *options) {
		o.stats = stats
	}
}

// WithScope makes scope the owner of the server.
func WithScope(scope *Scope) Option {
	return func(o *options) {
		o.scope = scope
	}
}

// WithTLSVersions restricts the negotiable TLS versions. Versions are
// written like "TLSv1.2"; an empty string means no restriction. It has
// no effect on plaintext servers.
func WithTLSVersions(min, max string) Option {
	return func(o *options) {
		o.protocols.MinVersion = min
		o.protocols.MaxVersion = max
	}
}

// WithCipherSuites restricts the TLS 1.0-1.2 cipher suites using their
// IANA names. It has no effect on plaintext servers.
func WithCipherSuites(suites ...string) Option {
	return func(o *options) {
		o.protocols.CipherSuites = suites
	}
}

// WithNextProtos sets the protocols advertised via ALPN. It has no
// effect on plaintext servers.
func WithNextProtos(protos ...string) Option {
	return func(o *options) {
		o.protocols.NextProtos = protos
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		beginning: time.Now(),
		handler:   nohandler.S{},
		stats:     nohandler.S{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewTLSServer creates a TLS server for host using the PEM certificate
// in certFile and the PEM private key in keyFile. The timeout bounds
// I/O on accepted sessions, while the handshake is bounded by
// HandshakeTimeout.
func NewTLSServer(
	host, keyFile, certFile string, timeout time.Duration, opts ...Option,
) (Server, error) {
	o := newOptions(opts)
	server, err := tlsserver.New(tlsserver.Config{
		Host:      host,
		KeyFile:   keyFile,
		CertFile:  certFile,
		Timeout:   timeout,
		Protocols: o.protocols,
		Beginning: o.beginning,
		Handler:   o.handler,
		Stats:     o.stats,
		Scope:     o.scope,
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}

// NewPlainServer creates a plaintext server for host.
func NewPlainServer(host string, timeout time.Duration, opts ...Option) (Server, error) {
	o := newOptions(opts)
	if o.scope != nil && o.scope.Freed() {
		return nil, fmt.Errorf("%w: %s", ErrScopeFreed, o.scope.Name())
	}
	server, err := plainserver.New(plainserver.Config{
		Host:    host,
		Timeout: timeout,
		Handler: o.handler,
		Stats:   o.stats,
	})
	if err != nil {
		return nil, err
	}
	if o.scope != nil {
		o.scope.OnFree(func() {
			server.Close()
		})
	}
	return server, nil
}

// Listener accepts plain sessions.
type Listener struct {
	acceptor *emittingacceptor.Acceptor
}

// Listen listens on address. When maxConns is positive, at most
// maxConns accepted sessions may be open at the same time.
func Listen(network, address string, maxConns int, opts ...Option) (*Listener, error) {
	o := newOptions(opts)
	acceptor, err := ooacceptor.Listen(network, address, maxConns)
	if err != nil {
		return nil, err
	}
	return &Listener{
		acceptor: emittingacceptor.New(acceptor, o.beginning, o.handler),
	}, nil
}

// Accept accepts the next plain session. Temporary errors are retried.
func (l *Listener) Accept(ctx context.Context) (model.Session, error) {
	return l.acceptor.AcceptSession(ctx)
}

// Addr returns the listening address.
func (l *Listener) Addr() net.Addr {
	return l.acceptor.Addr()
}

// Close closes the listener.
func (l *Listener) Close() error {
	return l.acceptor.Close()
}

// SessionFunc serves a session. The session is closed after the
// function returns or when the context passed to Serve is done.
type SessionFunc func(ctx context.Context, session model.Session)

// Serve accepts plain sessions from ln, wraps them using server and
// serves each of them with fn in a background goroutine. It returns
// when ctx is done, in which case it closes ln, or when accepting
// fails permanently. Serve waits for all the fn calls to return.
func Serve(ctx context.Context, ln *Listener, server model.Server, fn SessionFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	for {
		plain, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		session, err := server.Accept(plain)
		if err != nil {
			plain.Close()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			stop := context.AfterFunc(ctx, func() {
				session.Close()
			})
			defer stop()
			defer session.Close()
			fn(ctx, session)
		}()
	}
}
