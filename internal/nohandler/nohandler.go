// Package nohandler implements a do-nothing handler that is also a
// do-nothing statistics collector.
package nohandler

import "github.com/ooni/netsrv/model"

// S is a nohandler instance
type S struct{}

// OnMeasurement does nothing with the provided measurement.
func (S) OnMeasurement(m model.Measurement) {
}

// Inc does nothing with the provided counter name.
func (S) Inc(name string) {
}

var (
	_ model.Handler = S{}
	_ model.Stats   = S{}
)
