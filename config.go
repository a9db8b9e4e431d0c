package heapster

import (
	"os"
	"strconv"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/mariusae/heapster/internal/callsite"
	"github.com/mariusae/heapster/internal/hostvm"
)

// defaultSamplePeriod is the mean number of allocated bytes between
// samples when HEAPSTER_SAMPLE_PERIOD is unset: 512 KiB.
const defaultSamplePeriod = 1 << 19

// config holds everything Start needs to bring up an Agent. It is built
// by defaultConfig and then mutated by the Options passed to Start,
// mirroring the teacher's profiler.config/profiler.Option pattern.
type config struct {
	samplePeriod int64
	profilePath  string
	maxFrames    int

	host      hostvm.Host
	transform hostvm.Transform
	statsd    statsd.ClientInterface
}

// defaultConfig builds a config from the process environment, per
// spec.md §6: HEAPSTER_SAMPLE_PERIOD (bytes, default 512 KiB) and
// HEAPSTER_PROFILE (a file path; if set, the profile is dumped there on
// VM death).
func defaultConfig() (*config, error) {
	cfg := &config{
		samplePeriod: defaultSamplePeriod,
		profilePath:  os.Getenv("HEAPSTER_PROFILE"),
		maxFrames:    callsite.MaxFrames,
		statsd:       &statsd.NoOpClient{},
	}

	if v, ok := os.LookupEnv("HEAPSTER_SAMPLE_PERIOD"); ok {
		period, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, &envError{name: "HEAPSTER_SAMPLE_PERIOD", value: v, err: err}
		}
		cfg.samplePeriod = period
	}

	return cfg, nil
}

type envError struct {
	name, value string
	err         error
}

func (e *envError) Error() string {
	return "heapster: invalid " + e.name + " value " + strconv.Quote(e.value) + ": " + e.err.Error()
}

func (e *envError) Unwrap() error { return e.err }
