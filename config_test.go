package heapster

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariusae/heapster/internal/callsite"
)

func TestDefaultConfigUsesBuiltInDefaults(t *testing.T) {
	os.Unsetenv("HEAPSTER_SAMPLE_PERIOD")
	os.Unsetenv("HEAPSTER_PROFILE")

	cfg, err := defaultConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(defaultSamplePeriod), cfg.samplePeriod)
	assert.Equal(t, "", cfg.profilePath)
	assert.Equal(t, callsite.MaxFrames, cfg.maxFrames)
}

func TestDefaultConfigReadsEnvironment(t *testing.T) {
	t.Setenv("HEAPSTER_SAMPLE_PERIOD", "1024")
	t.Setenv("HEAPSTER_PROFILE", "/tmp/heap.prof")

	cfg, err := defaultConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(1024), cfg.samplePeriod)
	assert.Equal(t, "/tmp/heap.prof", cfg.profilePath)
}

func TestDefaultConfigRejectsMalformedSamplePeriod(t *testing.T) {
	t.Setenv("HEAPSTER_SAMPLE_PERIOD", "not-a-number")

	_, err := defaultConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEAPSTER_SAMPLE_PERIOD")
}
