// Package tracing allows to trace events.
package tracing

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ooni/netsrv/model"
)

type contextkey struct{}

// Info contains information useful for tracing
type Info struct {
	Beginning time.Time
	ConnID    int64
	Handler   model.Handler
}

// EmitTLSHandshakeStart emits the TLSHandshakeStartEvent event
func (info *Info) EmitTLSHandshakeStart(timeout time.Duration) {
	info.Handler.OnMeasurement(model.Measurement{
		TLSHandshakeStart: &model.TLSHandshakeStartEvent{
			ConnID:  info.ConnID,
			Timeout: timeout,
			Time:    time.Since(info.Beginning),
		},
	})
}

// EmitTLSHandshakeDone emits the TLSHandshakeDoneEvent event
func (info *Info) EmitTLSHandshakeDone(
	state tls.ConnectionState, duration time.Duration, err error,
) {
	info.Handler.OnMeasurement(model.Measurement{
		TLSHandshakeDone: &model.TLSHandshakeDoneEvent{
			ConnID:          info.ConnID,
			ConnectionState: model.NewTLSConnectionState(state),
			Duration:        duration,
			Error:           err,
			Time:            time.Since(info.Beginning),
		},
	})
}

// WithInfo returns a copy of ctx with the specific tracing info
func WithInfo(ctx context.Context, info *Info) context.Context {
	if info == nil {
		panic("nil handler") // like httptrace.WithClientTrace
	}
	return context.WithValue(ctx, contextkey{}, info)
}

// ContextInfo returns the trace info with the context.
func ContextInfo(ctx context.Context) *Info {
	ip, _ := ctx.Value(contextkey{}).(*Info)
	return ip
}
