package heapster

import (
	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/mariusae/heapster/internal/hostvm"
)

// Option configures the agent started by Start.
type Option func(*config)

// WithHost supplies the managed-runtime binding the agent drives. There
// is no usable default: a production build's cgo shim supplies a real
// JVMTI-backed Host; tests supply hostvm.NewFake().
func WithHost(host hostvm.Host) Option {
	return func(c *config) { c.host = host }
}

// WithTransform supplies the bytecode-rewriting collaborator (spec.md
// §6). As with WithHost, there is no usable default.
func WithTransform(t hostvm.Transform) Option {
	return func(c *config) { c.transform = t }
}

// WithSamplePeriod sets the mean number of bytes between samples,
// overriding both the default and HEAPSTER_SAMPLE_PERIOD.
func WithSamplePeriod(bytes int64) Option {
	return func(c *config) { c.samplePeriod = bytes }
}

// WithProfilePath sets the file path the profile is written to on VM
// death, overriding HEAPSTER_PROFILE. An empty path disables dump-on-death.
func WithProfilePath(path string) Option {
	return func(c *config) { c.profilePath = path }
}

// WithMaxFrames overrides the maximum number of stack frames captured
// per sampled allocation (default callsite.MaxFrames, 100). The call-site
// table still truncates every stack to callsite.MaxFrames, so a value
// above 100 retains no more frames than the default.
func WithMaxFrames(n int) Option {
	return func(c *config) { c.maxFrames = n }
}

// WithStatsd sets the statsd client used to report the agent's own
// operational health (site count, live bytes, sampled-allocation count).
// Defaults to
// a no-op client, so profiling works identically whether or not a
// statsd endpoint is reachable.
func WithStatsd(client statsd.ClientInterface) Option {
	return func(c *config) { c.statsd = client }
}
