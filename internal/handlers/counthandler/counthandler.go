// Package counthandler contains a handler that counts
package counthandler

import (
	"sync/atomic"

	"github.com/ooni/netsrv/model"
)

// Handler is the count handler. Read the fields with Load when
// goroutines may still be emitting.
type Handler struct {
	Count           int64
	HandshakeErrors int64
}

// OnMeasurement counts the emitted measurements and, separately,
// the failed TLS handshakes.
func (h *Handler) OnMeasurement(m model.Measurement) {
	atomic.AddInt64(&h.Count, 1)
	if m.TLSHandshakeDone != nil && m.TLSHandshakeDone.Error != nil {
		atomic.AddInt64(&h.HandshakeErrors, 1)
	}
}

// Load returns the current counters.
func (h *Handler) Load() (count, handshakeErrors int64) {
	return atomic.LoadInt64(&h.Count), atomic.LoadInt64(&h.HandshakeErrors)
}
