// Package tlsserver contains the TLS server driver. The driver builds a
// TLS context once, from a certificate and a private key, and then wraps
// every accepted plain session into a TLS session bound to that context.
//
// The context is released exactly once, when the scope owning the
// server is freed. The context is read-only after New returns, so
// Accept may be called concurrently.
package tlsserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/ooni/netsrv/internal/cryptox"
	"github.com/ooni/netsrv/internal/nohandler"
	"github.com/ooni/netsrv/internal/scope"
	"github.com/ooni/netsrv/internal/tlssession"
	"github.com/ooni/netsrv/model"
)

const (
	// Type is the driver type tag.
	Type = "tls"

	// StatServer counts the constructed servers.
	StatServer = "tls.server"

	// StatSession counts the accepted sessions.
	StatSession = "tls.session"

	// HandshakeTimeout bounds the handshake of every accepted session.
	// It is not derived from Config.Timeout.
	HandshakeTimeout = 5000 * time.Millisecond
)

// Config contains the server configuration.
type Config struct {
	// Host is the server identity. It is used for logging and not
	// for validating certificates. Must not be empty.
	Host string

	// KeyFile is the path of the PEM private key.
	KeyFile string

	// CertFile is the path of the PEM certificate chain.
	CertFile string

	// Timeout bounds reads and writes on accepted sessions. Zero
	// means no timeout. Must not be negative.
	Timeout time.Duration

	// Protocols optionally restricts the negotiation.
	Protocols cryptox.Protocols

	// Beginning is the zero time used for events.
	Beginning time.Time

	// Handler receives events. Optional.
	Handler model.Handler

	// Stats receives counters. Optional.
	Stats model.Stats

	// Scope owns the server. When nil, the server owns itself and
	// is released by Close.
	Scope *scope.Scope

	// ReadFile overrides how credential files are read. Optional.
	ReadFile func(path string) ([]byte, error)
}

// Server is the TLS server driver.
type Server struct {
	beginning time.Time
	context   *cryptox.Context
	handler   model.Handler
	host      string
	scope     *scope.Scope
	stats     model.Stats
	timeout   time.Duration
}

var newContext = cryptox.NewContext

// New creates a new TLS server. On failure, everything allocated so
// far has already been released.
func New(config Config) (*Server, error) {
	if config.Host == "" {
		return nil, errors.New("tlsserver: empty host")
	}
	if config.Timeout < 0 {
		return nil, errors.New("tlsserver: negative timeout")
	}
	if config.Handler == nil {
		config.Handler = nohandler.S{}
	}
	if config.Stats == nil {
		config.Stats = nohandler.S{}
	}
	if config.Beginning.IsZero() {
		config.Beginning = time.Now()
	}
	var server *Server
	_, err := scope.Do(config.Scope, "TlsServer", func(s *scope.Scope) error {
		if err := cryptox.Init(); err != nil {
			return err
		}
		method, err := cryptox.NewMethod(config.Protocols)
		if err != nil {
			return err
		}
		context, err := newContext(method)
		if err != nil {
			return err
		}
		s.OnFree(func() {
			context.Free()
		})
		if config.ReadFile != nil {
			context.ReadFile = config.ReadFile
		}
		if err := context.UseCertificateFile(config.CertFile); err != nil {
			return err
		}
		if err := context.UsePrivateKeyFile(config.KeyFile); err != nil {
			return err
		}
		config.Stats.Inc(StatServer)
		server = &Server{
			beginning: config.Beginning,
			context:   context,
			handler:   config.Handler,
			host:      config.Host,
			scope:     s,
			stats:     config.Stats,
			timeout:   config.Timeout,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	server.handler.OnMeasurement(model.Measurement{
		ServerNew: &model.ServerNewEvent{
			Host:    server.host,
			Timeout: server.timeout,
			Type:    Type,
		},
	})
	return server, nil
}

// Name returns the server identity.
func (s *Server) Name() string {
	return s.host
}

// Type returns the driver type tag.
func (s *Server) Type() string {
	return Type
}

// String returns a representation suitable for logging.
func (s *Server) String() string {
	return fmt.Sprintf("{host: %s, timeout: %d}", s.host, s.timeout.Milliseconds())
}

// Timeout returns the configured I/O timeout.
func (s *Server) Timeout() time.Duration {
	return s.timeout
}

// Context returns the TLS context shared by all sessions.
func (s *Server) Context() *cryptox.Context {
	return s.context
}

// Accept wraps plain into a new TLS session. The handshake does not
// run here. On success the session owns plain; on failure plain is
// still owned by the caller.
func (s *Server) Accept(plain model.Session) (model.Session, error) {
	handle, err := s.context.NewHandle(plain)
	if err != nil {
		return nil, err
	}
	session := tlssession.New(handle, plain, tlssession.Config{
		Beginning:        s.beginning,
		Handler:          s.handler,
		HandshakeTimeout: HandshakeTimeout,
		IOTimeout:        s.timeout,
	})
	s.stats.Inc(StatSession)
	s.handler.OnMeasurement(model.Measurement{
		SessionAccept: &model.SessionAcceptEvent{
			ConnID: plain.ID(),
			Host:   s.host,
			Type:   Type,
		},
	})
	return session, nil
}

// Close releases the server. Sessions already accepted keep working.
// It is safe to call Close more than once, and after the owning scope
// has been freed.
func (s *Server) Close() error {
	s.scope.Free()
	return nil
}

var _ model.Server = &Server{}
