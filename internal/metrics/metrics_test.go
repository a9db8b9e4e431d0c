package metrics

import (
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	statsd.NoOpClient
	gauges map[string]float64
}

func (r *recordingClient) Gauge(name string, value float64, tags []string, rate float64) error {
	if r.gauges == nil {
		r.gauges = map[string]float64{}
	}
	r.gauges[name] = value
	return nil
}

func TestNewDefaultsToNoOpAndDoesNotPanic(t *testing.T) {
	r := New(nil)
	require.NotNil(t, r.client)
	r.Report(Snapshot{Sites: 1, LiveBytes: 2, SampledAllocs: 3, SampledBytes: 4})
}

func TestNewAcceptsExplicitClient(t *testing.T) {
	r := New(&recordingClient{})
	require.NotNil(t, r.client)
	r.Report(Snapshot{Sites: 5})

	rc := r.client.(*recordingClient)
	require.Equal(t, float64(5), rc.gauges["heapster.sites"])
}
