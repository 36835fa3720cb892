package ooacceptor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestAcceptSuccess(t *testing.T) {
	acceptor, err := Listen("tcp", "127.0.0.1:0", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer acceptor.Close()
	go func() {
		conn, err := net.Dial("tcp", acceptor.Addr().String())
		if err == nil {
			conn.Close()
		}
	}()
	conn, err := acceptor.Accept(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
}

func TestAcceptAfterClose(t *testing.T) {
	acceptor, err := Listen("tcp", "127.0.0.1:0", 0)
	if err != nil {
		t.Fatal(err)
	}
	acceptor.Close()
	conn, err := acceptor.Accept(context.Background())
	if !errors.Is(err, net.ErrClosed) {
		t.Fatalf("not the error we expected: %+v", err)
	}
	if conn != nil {
		t.Fatal("expected nil conn here")
	}
}

func TestListenFailure(t *testing.T) {
	acceptor, err := Listen("tcp", "127.0.0.1:-1", 0)
	if err == nil {
		t.Fatal("expected an error here")
	}
	if acceptor != nil {
		t.Fatal("expected nil acceptor here")
	}
}

func TestMaxConns(t *testing.T) {
	acceptor, err := Listen("tcp", "127.0.0.1:0", 1)
	if err != nil {
		t.Fatal(err)
	}
	defer acceptor.Close()
	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", acceptor.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
	}
	first, err := acceptor.Accept(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := acceptor.Accept(context.Background())
		if err == nil {
			accepted <- conn
		}
	}()
	select {
	case conn := <-accepted:
		conn.Close()
		t.Fatal("accepted more than maxConns connections")
	case <-time.After(100 * time.Millisecond):
	}
	first.Close()
	select {
	case conn := <-accepted:
		conn.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("second connection not accepted after the first was closed")
	}
}
