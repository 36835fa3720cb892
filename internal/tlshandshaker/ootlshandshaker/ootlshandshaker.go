// Package ootlshandshaker contains the default server side TLS handshaker
package ootlshandshaker

import (
	"context"
	"crypto/tls"
	"time"
)

// Handshaker is the default TLS handshaker
type Handshaker struct {
	// Timeout bounds the handshake. Zero means no timeout.
	Timeout time.Duration
}

// New creates a new TLS handshaker
func New(timeout time.Duration) *Handshaker {
	return &Handshaker{Timeout: timeout}
}

// Do runs the server side of the handshake on conn. The handshake is
// interrupted when ctx is done or the timeout expires, in which case
// the returned error is the context error.
func (h *Handshaker) Do(ctx context.Context, conn *tls.Conn) error {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	err := conn.HandshakeContext(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
