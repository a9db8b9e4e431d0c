// Package metrics reports the agent's own operational health — how many
// call sites are live, how many sampled bytes are outstanding, how many
// allocations the live sites have sampled — to a statsd client. This is purely an
// observability surface; it has no bearing on the profiler's own
// correctness and defaults to a no-op client exactly as the teacher's
// profiler package defaults cfg.statsd to *statsd.NoOpClient.
package metrics

import "github.com/DataDog/datadog-go/v5/statsd"

// Reporter emits gauges describing the call-site table and sampler.
type Reporter struct {
	client statsd.ClientInterface
}

// New returns a Reporter that emits through client. A nil client is
// replaced with statsd.NoOpClient{}.
func New(client statsd.ClientInterface) *Reporter {
	if client == nil {
		client = &statsd.NoOpClient{}
	}
	return &Reporter{client: client}
}

// Snapshot is the set of values reported on each call to Report.
type Snapshot struct {
	Sites         int64
	LiveBytes     int64
	SampledAllocs int64
	SampledBytes  int64
}

// Report emits one gauge per Snapshot field, tagged "component:heapster".
func (r *Reporter) Report(s Snapshot) {
	tags := []string{"component:heapster"}
	_ = r.client.Gauge("heapster.sites", float64(s.Sites), tags, 1)
	_ = r.client.Gauge("heapster.live_bytes", float64(s.LiveBytes), tags, 1)
	_ = r.client.Gauge("heapster.sampled.allocs", float64(s.SampledAllocs), tags, 1)
	_ = r.client.Gauge("heapster.sampled.bytes", float64(s.SampledBytes), tags, 1)
}
