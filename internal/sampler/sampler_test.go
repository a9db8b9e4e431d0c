package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplePeriodOne(t *testing.T) {
	s := New(0, 1)
	// With period 1 the budget is re-seeded with a mean of 1 byte; with
	// seed 0 it never exceeds 8, so every 8-byte allocation debits it to
	// <= 0 and is sampled.
	for i := 0; i < 100; i++ {
		assert.True(t, s.SampleAllocation(8))
	}
}

func TestSampleAllocationDebitsBudget(t *testing.T) {
	s := &Sampler{}
	s.Init(1, 1000)
	s.remaining = 100
	assert.False(t, s.SampleAllocation(50))
	assert.Equal(t, int64(50), s.remaining)
	assert.True(t, s.SampleAllocation(50))
	assert.Greater(t, s.remaining, int64(0))
}

func TestSampleMeanWithinTolerance(t *testing.T) {
	const period = 524288
	const objSize = 8
	const totalBytes = 10 * period

	s := New(42, period)
	var sampled int
	for n := 0; n < totalBytes/objSize; n++ {
		if s.SampleAllocation(objSize) {
			sampled++
		}
	}
	// Expected mean is 10 samples; a generous tolerance keeps this test
	// from flaking while still catching a badly broken sampler.
	assert.InDelta(t, 10, sampled, 8)
}

func TestInitReseedsDeterministically(t *testing.T) {
	a := New(0, 4096)
	b := New(0, 4096)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.SampleAllocation(16), b.SampleAllocation(16))
	}
}
