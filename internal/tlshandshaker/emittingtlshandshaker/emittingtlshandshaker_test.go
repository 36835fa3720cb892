package emittingtlshandshaker

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/ooni/netsrv/internal/handlers/counthandler"
	"github.com/ooni/netsrv/internal/handlers/savinghandler"
	"github.com/ooni/netsrv/internal/testingx"
	"github.com/ooni/netsrv/internal/tlshandshaker/ootlshandshaker"
	"github.com/ooni/netsrv/internal/tracing"
)

func TestIntegrationSuccess(t *testing.T) {
	pair := testingx.WriteKeyPair(t, "db1")
	handler := &savinghandler.Handler{}
	info := &tracing.Info{
		Beginning: time.Now(),
		ConnID:    3,
		Handler:   handler,
	}
	ctx := tracing.WithInfo(context.Background(), info)
	client, server := testingx.ConnPair(t)
	go func() {
		tls.Client(client, pair.ClientConfig()).Handshake()
	}()
	conn := tls.Server(server, pair.ServerConfig())
	defer conn.Close()
	handshaker := New(ootlshandshaker.New(5*time.Second), 5*time.Second)
	if err := handshaker.Do(ctx, conn); err != nil {
		t.Fatal(err)
	}
	all := handler.Snapshot()
	if len(all) != 2 {
		t.Fatal("unexpected number of events")
	}
	if all[0].TLSHandshakeStart == nil || all[0].TLSHandshakeStart.Timeout != 5*time.Second {
		t.Fatal("unexpected start event")
	}
	done := all[1].TLSHandshakeDone
	if done == nil || done.Error != nil || done.ConnID != 3 {
		t.Fatal("unexpected done event")
	}
	if done.ConnectionState.ServerName != "db1" {
		t.Fatal("unexpected SNI")
	}
}

func TestIntegrationTimeout(t *testing.T) {
	pair := testingx.WriteKeyPair(t, "db1")
	info := &tracing.Info{
		Handler: &counthandler.Handler{},
	}
	ctx := tracing.WithInfo(context.Background(), info)
	_, server := testingx.ConnPair(t)
	conn := tls.Server(server, pair.ServerConfig())
	defer conn.Close()
	handshaker := New(ootlshandshaker.New(50*time.Millisecond), 50*time.Millisecond)
	if err := handshaker.Do(ctx, conn); err == nil {
		t.Fatal("expected an error here")
	}
	count, failed := info.Handler.(*counthandler.Handler).Load()
	if count != 2 || failed != 1 {
		t.Fatal("unexpected events")
	}
}

func TestIntegrationWithoutTracing(t *testing.T) {
	pair := testingx.WriteKeyPair(t, "db1")
	_, server := testingx.ConnPair(t)
	conn := tls.Server(server, pair.ServerConfig())
	defer conn.Close()
	handshaker := New(ootlshandshaker.New(50*time.Millisecond), 0)
	if err := handshaker.Do(context.Background(), conn); err == nil {
		t.Fatal("expected an error here")
	}
}
