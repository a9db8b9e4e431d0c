// Package sampler implements the geometric byte-sampler that decides
// whether a given allocation should be recorded. The algorithm mirrors
// the one used by tcmalloc and google-perftools: a remaining-bytes
// budget is debited by the size of every allocation; once it reaches
// zero or below, the allocation that crossed the threshold is sampled
// and the budget is re-seeded from a geometric distribution whose mean
// equals the configured sample period.
package sampler

import (
	"math"
	"math/rand"
)

// Sampler is not safe for concurrent use; callers must serialize access
// to SampleAllocation and Init themselves (the agent does so with its
// own sampler mutex, per the lock-ordering rule that the sampler mutex
// is acquired before, and released before, the call-site table mutex).
type Sampler struct {
	period    int64
	remaining int64
	rng       *rand.Rand
}

// New constructs a Sampler with the given seed and period, equivalent to
// calling Init on a zero Sampler.
func New(seed int64, period int64) *Sampler {
	s := &Sampler{}
	s.Init(seed, period)
	return s
}

// Init resets both the PRNG state and the remaining-bytes budget. A
// period <= 0 is treated as 1, sampling every allocation.
func (s *Sampler) Init(seed int64, period int64) {
	if period <= 0 {
		period = 1
	}
	s.period = period
	s.rng = rand.New(rand.NewSource(seed))
	s.remaining = s.pickNextSample()
}

// Period returns the currently configured mean sample period in bytes.
func (s *Sampler) Period() int64 {
	return s.period
}

// SampleAllocation debits size from the remaining budget. It returns true
// at most once per ~period bytes in expectation: when the budget is
// debited to zero or below, it re-seeds the budget and reports the
// allocation that crossed the threshold as sampled.
func (s *Sampler) SampleAllocation(size int64) bool {
	s.remaining -= size
	if s.remaining > 0 {
		return false
	}
	s.remaining = s.pickNextSample()
	return true
}

// pickNextSample draws from an exponential distribution with mean
// s.period via inverse transform sampling, the continuous analogue of
// the geometric distribution the spec calls for over a byte stream.
func (s *Sampler) pickNextSample() int64 {
	u := s.rng.Float64()
	for u == 0 {
		u = s.rng.Float64()
	}
	next := -math.Log(u) * float64(s.period)
	if next < 1 {
		return 1
	}
	return int64(next)
}
