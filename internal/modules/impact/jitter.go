package impact

import (
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/aristath/ecovest/internal/domain"
)

// DefaultJitterAmplitude is the ± fraction applied to each metric.
const DefaultJitterAmplitude = 0.05

// Jitter perturbs each metric independently so near-identical projects do not
// show identical figures.
type Jitter struct {
	Enabled   bool
	Amplitude float64
}

// DefaultJitter returns the production jitter settings.
func DefaultJitter() Jitter {
	return Jitter{Enabled: true, Amplitude: DefaultJitterAmplitude}
}

// Apply multiplies each metric by an independent factor in
// [1-Amplitude, 1+Amplitude] drawn from a generator seeded with seed.
func (j Jitter) Apply(est domain.ImpactEstimate, seed uint64) domain.ImpactEstimate {
	if !j.Enabled || j.Amplitude <= 0 {
		return est
	}
	rng := rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5))
	return est.Map(func(_ domain.Metric, v float64) float64 {
		return v * (1 + j.Amplitude*(2*rng.Float64()-1))
	})
}

var seedCounter atomic.Uint64

// timeSeed returns a distinct seed per call, even for calls in the same
// nanosecond.
func timeSeed() uint64 {
	return uint64(time.Now().UnixNano()) ^ (seedCounter.Add(1) * 0x9e3779b97f4a7c15)
}
