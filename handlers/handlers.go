// Package handlers contains default model.Handler handlers.
package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/m-lab/go/rtx"
	"github.com/ooni/netsrv/internal/nohandler"
	"github.com/ooni/netsrv/model"
)

type stdoutHandler struct{}

func (stdoutHandler) OnMeasurement(m model.Measurement) {
	data, err := json.Marshal(m)
	rtx.Must(err, "unexpected json.Marshal failure")
	fmt.Printf("%s\n", string(data))
}

// StdoutHandler is a Handler that prints events as JSON on stdout.
var StdoutHandler stdoutHandler

// NoHandler is a Handler that ignores events. It is also a
// model.Stats that ignores counters.
var NoHandler nohandler.S
