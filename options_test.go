package heapster

import (
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"

	"github.com/mariusae/heapster/internal/hostvm"
)

type fakeStatsdClient struct {
	statsd.NoOpClient
}

func TestOptionsOverrideDefaults(t *testing.T) {
	host := hostvm.NewFake()
	client := &fakeStatsdClient{}

	cfg := &config{}
	for _, opt := range []Option{
		WithHost(host),
		WithTransform(host),
		WithSamplePeriod(4096),
		WithProfilePath("/tmp/out.prof"),
		WithMaxFrames(50),
		WithStatsd(client),
	} {
		opt(cfg)
	}

	assert.Same(t, host, cfg.host)
	assert.Same(t, host, cfg.transform)
	assert.Equal(t, int64(4096), cfg.samplePeriod)
	assert.Equal(t, "/tmp/out.prof", cfg.profilePath)
	assert.Equal(t, 50, cfg.maxFrames)
	assert.Same(t, client, cfg.statsd)
}
