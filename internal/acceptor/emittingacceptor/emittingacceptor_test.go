package emittingacceptor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ooni/netsrv/internal/acceptor/ooacceptor"
	"github.com/ooni/netsrv/internal/handlers/savinghandler"
)

func TestAcceptEmitsEvents(t *testing.T) {
	inner, err := ooacceptor.Listen("tcp", "127.0.0.1:0", 0)
	if err != nil {
		t.Fatal(err)
	}
	saver := &savinghandler.Handler{}
	acceptor := New(inner, time.Now(), saver)
	defer acceptor.Close()
	var clients []net.Conn
	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", acceptor.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		clients = append(clients, conn)
	}
	first, err := acceptor.AcceptSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := acceptor.Accept(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if first.ID() == 0 || first.ID() == second.(interface{ ID() int64 }).ID() {
		t.Fatal("connection IDs are not unique")
	}
	measurements := saver.Snapshot()
	if len(measurements) != 2 {
		t.Fatal("unexpected number of measurements")
	}
	for _, m := range measurements {
		if m.Accept == nil || m.Accept.Error != nil || m.Accept.Network != "tcp" {
			t.Fatal("unexpected accept event")
		}
	}
	if measurements[0].Accept.RemoteAddress != clients[0].LocalAddr().String() &&
		measurements[0].Accept.RemoteAddress != clients[1].LocalAddr().String() {
		t.Fatal("unexpected remote address")
	}
}

func TestAcceptFailureEmitsEvent(t *testing.T) {
	inner, err := ooacceptor.Listen("tcp", "127.0.0.1:0", 0)
	if err != nil {
		t.Fatal(err)
	}
	saver := &savinghandler.Handler{}
	acceptor := New(inner, time.Now(), saver)
	acceptor.Close()
	session, err := acceptor.AcceptSession(context.Background())
	if err == nil {
		t.Fatal("expected an error here")
	}
	if session != nil {
		t.Fatal("expected nil session here")
	}
	measurements := saver.Snapshot()
	if len(measurements) != 1 || measurements[0].Accept.Error == nil {
		t.Fatal("failed accept not recorded")
	}
	if measurements[0].Accept.ConnID != 0 {
		t.Fatal("failed accept got a connection ID")
	}
}
