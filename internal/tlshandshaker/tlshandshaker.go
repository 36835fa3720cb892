// Package tlshandshaker contains the generic tls handshaker model
package tlshandshaker

import (
	"context"
	"crypto/tls"
)

// Model is the model for all server side TLS handshakers
type Model interface {
	Do(ctx context.Context, conn *tls.Conn) error
}
