// Package connx contains net.Conn extensions
package connx

import (
	"net"
	"sync"
	"time"

	"github.com/ooni/netsrv/model"
)

// MeasuringConn is an accepted net.Conn used as a plain session. It
// emits events when reading, writing and closing.
type MeasuringConn struct {
	net.Conn
	Beginning time.Time
	Handler   model.Handler
	ConnID    int64

	closeOnce sync.Once
	closeErr  error
}

// ID returns the connection ID.
func (c *MeasuringConn) ID() int64 {
	return c.ConnID
}

// Read reads data from the connection.
func (c *MeasuringConn) Read(b []byte) (n int, err error) {
	start := time.Now()
	n, err = c.Conn.Read(b)
	stop := time.Now()
	c.Handler.OnMeasurement(model.Measurement{
		Read: &model.ReadEvent{
			ConnID:   c.ConnID,
			Duration: stop.Sub(start),
			Error:    err,
			NumBytes: int64(n),
			Time:     stop.Sub(c.Beginning),
		},
	})
	return
}

// Write writes data to the connection
func (c *MeasuringConn) Write(b []byte) (n int, err error) {
	start := time.Now()
	n, err = c.Conn.Write(b)
	stop := time.Now()
	c.Handler.OnMeasurement(model.Measurement{
		Write: &model.WriteEvent{
			ConnID:   c.ConnID,
			Duration: stop.Sub(start),
			Error:    err,
			NumBytes: int64(n),
			Time:     stop.Sub(c.Beginning),
		},
	})
	return
}

// Close closes the connection. Only the first call closes the
// underlying connection and emits an event; later calls return
// the same error.
func (c *MeasuringConn) Close() error {
	c.closeOnce.Do(func() {
		start := time.Now()
		c.closeErr = c.Conn.Close()
		stop := time.Now()
		c.Handler.OnMeasurement(model.Measurement{
			Close: &model.CloseEvent{
				ConnID:   c.ConnID,
				Duration: stop.Sub(start),
				Error:    c.closeErr,
				Time:     stop.Sub(c.Beginning),
			},
		})
	})
	return c.closeErr
}
