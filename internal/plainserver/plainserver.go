// Package plainserver contains the plaintext server driver. It is the
// counterpart of tlsserver for deployments without TLS: Accept hands
// back the plain session, bounded by the configured I/O timeout.
package plainserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/ooni/netsrv/internal/nohandler"
	"github.com/ooni/netsrv/model"
)

const (
	// Type is the driver type tag.
	Type = "socket"

	// StatServer counts the constructed servers.
	StatServer = "socket.server"

	// StatSession counts the accepted sessions.
	StatSession = "socket.session"
)

// Config contains the server configuration.
type Config struct {
	// Host is the server identity. Must not be empty.
	Host string

	// Timeout bounds reads and writes on accepted sessions. Zero
	// means no timeout. Must not be negative.
	Timeout time.Duration

	// Handler receives events. Optional.
	Handler model.Handler

	// Stats receives counters. Optional.
	Stats model.Stats
}

// Server is the plaintext server driver.
type Server struct {
	handler model.Handler
	host    string
	stats   model.Stats
	timeout time.Duration
}

// New creates a new plaintext server.
func New(config Config) (*Server, error) {
	if config.Host == "" {
		return nil, errors.New("plainserver: empty host")
	}
	if config.Timeout < 0 {
		return nil, errors.New("plainserver: negative timeout")
	}
	if config.Handler == nil {
		config.Handler = nohandler.S{}
	}
	if config.Stats == nil {
		config.Stats = nohandler.S{}
	}
	config.Stats.Inc(StatServer)
	config.Handler.OnMeasurement(model.Measurement{
		ServerNew: &model.ServerNewEvent{
			Host:    config.Host,
			Timeout: config.Timeout,
			Type:    Type,
		},
	})
	return &Server{
		handler: config.Handler,
		host:    config.Host,
		stats:   config.Stats,
		timeout: config.Timeout,
	}, nil
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

// Accept returns plain, wrapped to apply the I/O timeout if any.
func (s *Server) Accept(plain model.Session) (model.Session, error) {
	if plain == nil {
		return nil, errors.New("plainserver: nil session")
	}
	var session model.Session = plain
	if s.timeout > 0 {
		session = &timeoutSession{Session: plain, timeout: s.timeout}
	}
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

// Close is a no-op: the plaintext driver owns no resources.
func (s *Server) Close() error {
	return nil
}

type timeoutSession struct {
	model.Session
	timeout time.Duration
}

func (s *timeoutSession) Read(b []byte) (int, error) {
	if err := s.Session.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return 0, err
	}
	return s.Session.Read(b)
}

func (s *timeoutSession) Write(b []byte) (int, error) {
	if err := s.Session.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return 0, err
	}
	return s.Session.Write(b)
}

var _ model.Server = &Server{}
