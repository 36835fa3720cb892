// Package logger is a handler that emits logs
package logger

import (
	"github.com/apex/log"
	"github.com/ooni/netsrv/internal/tlsx"
	"github.com/ooni/netsrv/model"
)

// Handler is a handler that logs events.
type Handler struct {
	logger log.Interface
}

// NewHandler returns a new logging handler.
func NewHandler(logger log.Interface) *Handler {
	return &Handler{logger: logger}
}

// OnMeasurement logs the specific measurement
func (h *Handler) OnMeasurement(m model.Measurement) {
	// Servers
	if m.ServerNew != nil {
		h.logger.WithFields(log.Fields{
			"host":    m.ServerNew.Host,
			"timeout": m.ServerNew.Timeout,
			"type":    m.ServerNew.Type,
		}).Debug("server: new")
	}
	if m.SessionAccept != nil {
		h.logger.WithFields(log.Fields{
			"connID": m.SessionAccept.ConnID,
			"host":   m.SessionAccept.Host,
			"type":   m.SessionAccept.Type,
		}).Debug("server: session accepted")
	}

	// Syscalls
	if m.Accept != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor":    m.Accept.Duration,
			"connID":        m.Accept.ConnID,
			"elapsed":       m.Accept.Time,
			"error":         m.Accept.Error,
			"localAddress":  m.Accept.LocalAddress,
			"network":       m.Accept.Network,
			"remoteAddress": m.Accept.RemoteAddress,
		}).Debug("net: accept done")
	}
	if m.Read != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor": m.Read.Duration,
			"connID":     m.Read.ConnID,
			"elapsed":    m.Read.Time,
			"error":      m.Read.Error,
			"numBytes":   m.Read.NumBytes,
		}).Debug("net: read done")
	}
	if m.Write != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor": m.Write.Duration,
			"connID":     m.Write.ConnID,
			"elapsed":    m.Write.Time,
			"error":      m.Write.Error,
			"numBytes":   m.Write.NumBytes,
		}).Debug("net: write done")
	}
	if m.Close != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor": m.Close.Duration,
			"connID":     m.Close.ConnID,
			"elapsed":    m.Close.Time,
		}).Debug("net: close done")
	}

	// TLS
	if m.TLSHandshakeStart != nil {
		h.logger.WithFields(log.Fields{
			"connID":  m.TLSHandshakeStart.ConnID,
			"elapsed": m.TLSHandshakeStart.Time,
			"timeout": m.TLSHandshakeStart.Timeout,
		}).Debug("tls: start handshake")
	}
	if m.TLSHandshakeDone != nil {
		entry := h.logger.WithFields(log.Fields{
			"alpn":       m.TLSHandshakeDone.ConnectionState.NegotiatedProtocol,
			"blockedFor": m.TLSHandshakeDone.Duration,
			"connID":     m.TLSHandshakeDone.ConnID,
			"elapsed":    m.TLSHandshakeDone.Time,
			"error":      m.TLSHandshakeDone.Error,
			"sni":        m.TLSHandshakeDone.ConnectionState.ServerName,
			"version":    tlsx.VersionString(m.TLSHandshakeDone.ConnectionState.Version),
		})
		if m.TLSHandshakeDone.Error != nil {
			entry.Warn("tls: handshake failed")
		} else {
			entry.Debug("tls: handshake done")
		}
	}
}
