package plainserver

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ooni/netsrv/internal/connx"
	"github.com/ooni/netsrv/internal/handlers/savinghandler"
	"github.com/ooni/netsrv/internal/stat"
	"github.com/ooni/netsrv/internal/testingx"
	"github.com/stretchr/testify/require"
)

func newPlain(t *testing.T) (net.Conn, *connx.MeasuringConn) {
	client, server := testingx.ConnPair(t)
	return client, &connx.MeasuringConn{
		Conn:      server,
		Beginning: time.Now(),
		Handler:   &savinghandler.Handler{},
		ConnID:    3,
	}
}

func TestNewAndAccept(t *testing.T) {
	counter := &stat.Counter{}
	saver := &savinghandler.Handler{}
	server, err := New(Config{Host: "db1", Handler: saver, Stats: counter})
	require.NoError(t, err)
	defer server.Close()
	require.Equal(t, "db1", server.Name())
	require.Equal(t, "socket", server.Type())
	require.Equal(t, "{host: db1, timeout: 0}", server.String())
	require.EqualValues(t, 1, counter.Get(StatServer))

	_, plain := newPlain(t)
	session, err := server.Accept(plain)
	require.NoError(t, err)
	require.Same(t, plain, session)
	require.EqualValues(t, 1, counter.Get(StatSession))

	measurements := saver.Snapshot()
	require.Len(t, measurements, 2)
	require.NotNil(t, measurements[0].ServerNew)
	require.NotNil(t, measurements[1].SessionAccept)
	require.EqualValues(t, 3, measurements[1].SessionAccept.ConnID)
}

func TestAcceptAppliesTimeout(t *testing.T) {
	server, err := New(Config{Host: "db1", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, plain := newPlain(t)
	session, err := server.Accept(plain)
	require.NoError(t, err)
	require.EqualValues(t, 3, session.ID())
	_, err = session.Read(make([]byte, 1))
	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	require.True(t, netErr.Timeout())
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{Host: "db1", Timeout: -time.Second})
	require.Error(t, err)
}

func TestAcceptNilSession(t *testing.T) {
	counter := &stat.Counter{}
	server, err := New(Config{Host: "db1", Stats: counter})
	require.NoError(t, err)
	session, err := server.Accept(nil)
	require.Error(t, err)
	require.Nil(t, session)
	require.EqualValues(t, 0, counter.Get(StatSession))
}
