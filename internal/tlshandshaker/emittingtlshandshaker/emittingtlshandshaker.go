// Package emittingtlshandshaker contains an event-emitting TLS handshaker
package emittingtlshandshaker

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ooni/netsrv/internal/tlshandshaker"
	"github.com/ooni/netsrv/internal/tracing"
)

// Handshaker is the event emitting TLS handshaker
type Handshaker struct {
	handshaker tlshandshaker.Model
	timeout    time.Duration
}

// New creates a new event emitting handshaker wrapping handshaker. The
// timeout is only reported in the start event.
func New(handshaker tlshandshaker.Model, timeout time.Duration) *Handshaker {
	return &Handshaker{handshaker: handshaker, timeout: timeout}
}

// Do runs the handshake using the wrapped handshaker. When ctx carries
// tracing info, it emits the start and done events.
func (h *Handshaker) Do(ctx context.Context, conn *tls.Conn) error {
	info := tracing.ContextInfo(ctx)
	if info != nil {
		info.EmitTLSHandshakeStart(h.timeout)
	}
	start := time.Now()
	err := h.handshaker.Do(ctx, conn)
	stop := time.Now()
	if info != nil {
		info.EmitTLSHandshakeDone(conn.ConnectionState(), stop.Sub(start), err)
	}
	return err
}
