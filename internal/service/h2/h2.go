// Package h2 serves HTTP/2 over accepted sessions. TLS sessions must
// have negotiated "h2" via ALPN; plaintext sessions must speak HTTP/2
// with prior knowledge.
package h2

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ooni/netsrv/internal/tlsx"
	"github.com/ooni/netsrv/model"
	"golang.org/x/net/http2"
)

// Service serves HTTP/2.
type Service struct {
	handler http.Handler
	server  *http2.Server
}

// New creates a new service using handler.
func New(handler http.Handler) *Service {
	return &Service{handler: handler, server: &http2.Server{}}
}

type handshaker interface {
	Handshake(ctx context.Context) error
}

// Serve serves HTTP/2 on session until the peer goes away or ctx
// is done. TLS sessions are handshaked first, because the HTTP/2
// server inspects the connection state before reading.
func (s *Service) Serve(ctx context.Context, session model.Session) error {
	if h, ok := session.(handshaker); ok {
		if err := h.Handshake(ctx); err != nil {
			return err
		}
	}
	s.server.ServeConn(session, &http2.ServeConnOpts{
		Context: ctx,
		Handler: s.handler,
	})
	return nil
}

// Info is the body returned by InfoHandler.
type Info struct {
	ALPN       string `json:"alpn,omitempty"`
	Proto      string `json:"proto"`
	Server     string `json:"server"`
	SNI        string `json:"sni,omitempty"`
	TLSVersion string `json:"tls_version,omitempty"`
}

// InfoHandler replies to every request with the server name and the
// state of the transport as JSON.
func InfoHandler(server string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := Info{Proto: r.Proto, Server: server}
		if r.TLS != nil {
			info.ALPN = r.TLS.NegotiatedProtocol
			info.SNI = r.TLS.ServerName
			info.TLSVersion = tlsx.VersionString(r.TLS.Version)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	})
}
