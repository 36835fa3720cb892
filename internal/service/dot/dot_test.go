package dot

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/ooni/netsrv/internal/testingx"
	"github.com/ooni/netsrv/internal/tlsserver"
	"github.com/stretchr/testify/require"
)

type session struct {
	net.Conn
}

func (session) ID() int64 {
	return 1
}

func newResponder(t *testing.T) *Responder {
	r, err := New(map[string][]string{
		"db1.example.com":   {"10.0.0.1", "fd00::1"},
		"Empty.example.com": nil,
	}, 60)
	require.NoError(t, err)
	return r
}

func query(name string, qtype uint16) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	return msg
}

func TestNewInvalid(t *testing.T) {
	_, err := New(map[string][]string{"db1.example.com": {"not-an-ip"}}, 0)
	require.Error(t, err)
	_, err = New(map[string][]string{strings.Repeat("a", 64) + ".com": {"10.0.0.1"}}, 0)
	require.Error(t, err)
	r, err := New(nil, 0)
	require.NoError(t, err)
	require.EqualValues(t, DefaultTTL, r.ttl)
}

func TestReply(t *testing.T) {
	r := newResponder(t)

	reply := r.Reply(query("DB1.example.com", dns.TypeA))
	require.Equal(t, dns.RcodeSuccess, reply.Rcode)
	require.Len(t, reply.Answer, 1)
	a := reply.Answer[0].(*dns.A)
	require.Equal(t, "10.0.0.1", a.A.String())
	require.EqualValues(t, 60, a.Hdr.Ttl)

	reply = r.Reply(query("db1.example.com", dns.TypeAAAA))
	require.Len(t, reply.Answer, 1)
	require.Equal(t, "fd00::1", reply.Answer[0].(*dns.AAAA).AAAA.String())

	reply = r.Reply(query("empty.example.com", dns.TypeA))
	require.Equal(t, dns.RcodeSuccess, reply.Rcode)
	require.Empty(t, reply.Answer)

	reply = r.Reply(query("nonexistent.example.com", dns.TypeA))
	require.Equal(t, dns.RcodeNameError, reply.Rcode)

	notify := query("db1.example.com", dns.TypeA)
	notify.Opcode = dns.OpcodeNotify
	require.Equal(t, dns.RcodeNotImplemented, r.Reply(notify).Rcode)

	empty := new(dns.Msg)
	require.Equal(t, dns.RcodeFormatError, r.Reply(empty).Rcode)
}

func TestFraming(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, []byte("abc")))
	require.Equal(t, []byte{0, 3, 'a', 'b', 'c'}, buf.Bytes())
	msg, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), msg)
	_, err = ReadMessage(bytes.NewReader([]byte{0, 3, 'a'}))
	require.Error(t, err)
	require.Error(t, WriteMessage(&buf, make([]byte, dns.MaxMsgSize+1)))
}

func TestServeOverTLS(t *testing.T) {
	pair := testingx.WriteKeyPair(t, "db1")
	server, err := tlsserver.New(tlsserver.Config{
		Host: "db1", KeyFile: pair.KeyFile, CertFile: pair.CertFile,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer server.Close()
	client, plain := testingx.ConnPair(t)
	tlsSession, err := server.Accept(session{Conn: plain})
	require.NoError(t, err)
	defer tlsSession.Close()
	responder := newResponder(t)
	errch := make(chan error, 1)
	go func() {
		errch <- responder.Serve(context.Background(), tlsSession)
	}()
	conn := tls.Client(client, pair.ClientConfig())
	for _, name := range []string{"db1.example.com", "nonexistent.example.com"} {
		data, err := query(name, dns.TypeA).Pack()
		require.NoError(t, err)
		require.NoError(t, WriteMessage(conn, data))
		data, err = ReadMessage(conn)
		require.NoError(t, err)
		reply := new(dns.Msg)
		require.NoError(t, reply.Unpack(data))
		require.True(t, reply.Response)
	}
	conn.CloseWrite()
	require.NoError(t, <-errch)
}

func TestServeGarbage(t *testing.T) {
	client, server := testingx.ConnPair(t)
	responder := newResponder(t)
	errch := make(chan error, 1)
	go func() {
		errch <- responder.Serve(context.Background(), session{Conn: server})
	}()
	require.NoError(t, WriteMessage(client, []byte{1, 2, 3}))
	require.Error(t, <-errch)
}
