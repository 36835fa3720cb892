package stat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCounter(t *testing.T) {
	var c Counter
	require.Equal(t, int64(0), c.Get("tls.session"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc("tls.session")
		}()
	}
	wg.Wait()
	c.Inc("tls.server")

	require.Equal(t, int64(10), c.Get("tls.session"))
	require.Equal(t, int64(1), c.Get("tls.server"))
	require.Equal(t, []string{"tls.server", "tls.session"}, c.Names())

	snapshot := c.Snapshot()
	c.Inc("tls.server")
	require.Equal(t, int64(1), snapshot["tls.server"])

	data, err := c.JSON()
	require.NoError(t, err)
	var decoded map[string]int64
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, int64(2), decoded["tls.server"])
}

func TestOTel(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	o := NewOTel(provider.Meter("github.com/ooni/netsrv"), "netsrv.")
	o.Inc("tls.session")
	o.Inc("tls.session")
	o.Inc("tls.server")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	values := make(map[string]int64)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok, "unexpected data type for %s", m.Name)
		require.True(t, sum.IsMonotonic)
		require.Len(t, sum.DataPoints, 1)
		values[m.Name] = sum.DataPoints[0].Value
	}
	require.Equal(t, map[string]int64{
		"netsrv.tls.server":  1,
		"netsrv.tls.session": 2,
	}, values)
}

func TestTee(t *testing.T) {
	var a, b Counter
	tee := Tee{&a, &b}
	tee.Inc("socket.session")
	require.Equal(t, int64(1), a.Get("socket.session"))
	require.Equal(t, int64(1), b.Get("socket.session"))
}
