// Package stat contains model.Stats collectors.
package stat

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/ooni/netsrv/model"
	"go.opentelemetry.io/otel/metric"
)

// Counter is an in-memory collector. The zero value is ready to use.
type Counter struct {
	mu     sync.Mutex
	values map[string]int64
}

// Inc increments the counter called name.
func (c *Counter) Inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]int64)
	}
	c.values[name]++
}

// Get returns the value of the counter called name.
func (c *Counter) Get(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[name]
}

// Names returns the sorted names of all counters.
func (c *Counter) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all counters.
func (c *Counter) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.values))
	for name, value := range c.values {
		out[name] = value
	}
	return out
}

// JSON returns the counters as a JSON object.
func (c *Counter) JSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}

// OTel forwards counters to OpenTelemetry Int64Counter instruments
// named prefix + name. Instruments are created on first use.
type OTel struct {
	meter       metric.Meter
	prefix      string
	mu          sync.Mutex
	instruments map[string]metric.Int64Counter
}

// NewOTel creates a collector using meter.
func NewOTel(meter metric.Meter, prefix string) *OTel {
	return &OTel{
		meter:       meter,
		prefix:      prefix,
		instruments: make(map[string]metric.Int64Counter),
	}
}

// Inc increments the instrument for name. Instrument creation errors
// are ignored because counters are diagnostics only.
func (o *OTel) Inc(name string) {
	counter, err := o.instrument(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), 1)
}

func (o *OTel) instrument(name string) (metric.Int64Counter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if counter, found := o.instruments[name]; found {
		return counter, nil
	}
	counter, err := o.meter.Int64Counter(
		o.prefix+name,
		metric.WithDescription("Total number of "+name+" events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	o.instruments[name] = counter
	return counter, nil
}

// Tee forwards counters to all the collectors.
type Tee []model.Stats

// Inc increments name in all the collectors.
func (t Tee) Inc(name string) {
	for _, s := range t {
		s.Inc(name)
	}
}
