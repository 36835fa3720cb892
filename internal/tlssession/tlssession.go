// Package tlssession contains the TLS session produced by the TLS
// server. The session owns both the TLS handle and the plain session
// below it. The handshake runs on first Read or Write, or explicitly
// by calling Handshake.
package tlssession

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ooni/netsrv/internal/nohandler"
	"github.com/ooni/netsrv/internal/tlshandshaker"
	"github.com/ooni/netsrv/internal/tlshandshaker/emittingtlshandshaker"
	"github.com/ooni/netsrv/internal/tlshandshaker/ootlshandshaker"
	"github.com/ooni/netsrv/internal/tracing"
	"github.com/ooni/netsrv/model"
)

// Config contains the session configuration.
type Config struct {
	// Beginning is the zero time used for events.
	Beginning time.Time

	// Handler receives events. When nil, events are discarded.
	Handler model.Handler

	// HandshakeTimeout bounds the handshake. Zero means no timeout.
	HandshakeTimeout time.Duration

	// IOTimeout bounds each Read and Write after the handshake.
	// Zero means no timeout.
	IOTimeout time.Duration
}

// Session is a TLS session.
type Session struct {
	conn       *tls.Conn
	config     Config
	handshaker tlshandshaker.Model
	plain      model.Session

	closeOnce    sync.Once
	closeErr     error
	handshakeErr error
	handshakeMu  sync.Mutex
	handshaked   atomic.Bool
}

// New creates a new Session. The session takes ownership of both
// conn and plain. The handshake does not start until needed.
func New(conn *tls.Conn, plain model.Session, config Config) *Session {
	if config.Handler == nil {
		config.Handler = nohandler.S{}
	}
	return &Session{
		conn:   conn,
		config: config,
		handshaker: emittingtlshandshaker.New(
			ootlshandshaker.New(config.HandshakeTimeout),
			config.HandshakeTimeout,
		),
		plain: plain,
	}
}

// Handshake runs the server side of the handshake unless it already
// ran, in which case it returns the result of the first run.
func (s *Session) Handshake(ctx context.Context) error {
	if s.handshaked.Load() {
		return s.handshakeErr
	}
	s.handshakeMu.Lock()
	defer s.handshakeMu.Unlock()
	if s.handshaked.Load() {
		return s.handshakeErr
	}
	ctx = tracing.WithInfo(ctx, &tracing.Info{
		Beginning: s.config.Beginning,
		ConnID:    s.plain.ID(),
		Handler:   s.config.Handler,
	})
	s.handshakeErr = s.handshaker.Do(ctx, s.conn)
	s.handshaked.Store(true)
	return s.handshakeErr
}

// ConnectionState returns the TLS connection state.
func (s *Session) ConnectionState() tls.ConnectionState {
	return s.conn.ConnectionState()
}

// ID returns the ID of the underlying plain session.
func (s *Session) ID() int64 {
	return s.plain.ID()
}

// Read reads decrypted data, handshaking first if needed.
func (s *Session) Read(b []byte) (int, error) {
	if err := s.Handshake(context.Background()); err != nil {
		return 0, err
	}
	if s.config.IOTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.config.IOTimeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Read(b)
}

// Write encrypts and writes data, handshaking first if needed.
func (s *Session) Write(b []byte) (int, error) {
	if err := s.Handshake(context.Background()); err != nil {
		return 0, err
	}
	if s.config.IOTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.IOTimeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Write(b)
}

// Close closes the TLS handle and the plain session below it.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		// The TLS handle already closed the plain session, but its
		// Close may have failed before getting there.
		s.plain.Close()
	})
	return s.closeErr
}

// LocalAddr returns the local address.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteAddr returns the remote address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// SetDeadline sets the read and write deadlines.
func (s *Session) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

// SetReadDeadline sets the read deadline.
func (s *Session) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline.
func (s *Session) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}
