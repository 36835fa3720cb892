// Package model contains the data model. Accepted connections are
// tagged using a unique int64 ConnID that is never reused.
//
// Servers are drivers implementing the Server interface. The plaintext
// driver returns the accepted session unchanged while the TLS driver
// wraps it into a TLS session. Callers only ever hold a Server, so
// they do not know which transport they are using.
//
// All events have a Time. This is always the time in which an event
// has been emitted, relative to the moment in which the listener that
// accepted the connection has been created. Duration, where present,
// indicates for how long the code has been blocked waiting for an
// event to happen. When an operation may fail, we also include the Error.
package model

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"time"
)

// Session is an established connection. The plain transport produces
// plaintext sessions and servers may wrap them into other sessions.
type Session interface {
	net.Conn

	// ID returns the unique ID of the underlying connection.
	ID() int64
}

// Server is the capability set of every transport driver.
type Server interface {
	// Name returns the server identity.
	Name() string

	// Type returns the driver type tag (e.g. "socket", "tls").
	Type() string

	// Accept wraps an already accepted plain session. On success the
	// returned session owns plain and the caller must stop using it.
	Accept(plain Session) (Session, error)

	// String returns a representation suitable for logging.
	String() string
}

// Stats collects named counters.
type Stats interface {
	// Inc increments the counter called name.
	Inc(name string)
}

// CloseEvent is emitted when conn.Close returns.
type CloseEvent struct {
	ConnID   int64
	Duration time.Duration
	Error    error
	Time     time.Duration
}

// ReadEvent is emitted when conn.Read returns.
type ReadEvent struct {
	ConnID   int64
	Duration time.Duration
	Error    error
	NumBytes int64
	Time     time.Duration
}

// WriteEvent is emitted when conn.Write returns.
type WriteEvent struct {
	ConnID   int64
	Duration time.Duration
	Error    error
	NumBytes int64
	Time     time.Duration
}

// AcceptEvent is emitted when the plain transport accepts a connection.
type AcceptEvent struct {
	ConnID        int64
	Duration      time.Duration
	Error         error
	LocalAddress  string
	Network       string
	RemoteAddress string
	Time          time.Duration
}

// ServerNewEvent is emitted when a server driver has been constructed.
type ServerNewEvent struct {
	Host    string
	Timeout time.Duration
	Type    string
}

// SessionAcceptEvent is emitted when a server driver has wrapped
// a plain session into a session of its own type.
type SessionAcceptEvent struct {
	ConnID int64
	Host   string
	Type   string
}

// X509Certificate is an x.509 certificate.
type X509Certificate struct {
	// Data contains the certificate bytes in DER format.
	Data []byte
}

// TLSConnectionState contains the TLS connection state.
type TLSConnectionState struct {
	CipherSuite                uint16
	NegotiatedProtocol         string
	NegotiatedProtocolIsMutual bool
	PeerCertificates           []X509Certificate
	ServerName                 string
	Version                    uint16
}

// NewTLSConnectionState creates a new TLSConnectionState.
func NewTLSConnectionState(s tls.ConnectionState) TLSConnectionState {
	return TLSConnectionState{
		CipherSuite:                s.CipherSuite,
		NegotiatedProtocol:         s.NegotiatedProtocol,
		NegotiatedProtocolIsMutual: s.NegotiatedProtocolIsMutual,
		PeerCertificates:           simplifyCerts(s.PeerCertificates),
		ServerName:                 s.ServerName,
		Version:                    s.Version,
	}
}

func simplifyCerts(in []*x509.Certificate) (out []X509Certificate) {
	for _, cert := range in {
		out = append(out, X509Certificate{
			Data: cert.Raw,
		})
	}
	return
}

// TLSHandshakeStartEvent is emitted when the server starts the handshake.
type TLSHandshakeStartEvent struct {
	ConnID  int64
	Timeout time.Duration
	Time    time.Duration
}

// TLSHandshakeDoneEvent is emitted when the handshake returns.
type TLSHandshakeDoneEvent struct {
	ConnID          int64
	ConnectionState TLSConnectionState
	Duration        time.Duration
	Error           error
	Time            time.Duration
}

// Measurement contains zero or more events. Do not assume that at any
// time a Measurement will only contain a single event. When a Measurement
// contains an event, the corresponding pointer is non nil.
type Measurement struct {
	Accept            *AcceptEvent            `json:",omitempty"`
	Close             *CloseEvent             `json:",omitempty"`
	Read              *ReadEvent              `json:",omitempty"`
	ServerNew         *ServerNewEvent         `json:",omitempty"`
	SessionAccept     *SessionAcceptEvent     `json:",omitempty"`
	TLSHandshakeStart *TLSHandshakeStartEvent `json:",omitempty"`
	TLSHandshakeDone  *TLSHandshakeDoneEvent  `json:",omitempty"`
	Write             *WriteEvent             `json:",omitempty"`
}

// Handler handles measurement events.
type Handler interface {
	// OnMeasurement is called when an event occurs. OnMeasurement may
	// be called by background goroutines and OnMeasurement calls may
	// happen concurrently.
	OnMeasurement(Measurement)
}
