package source

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/operator-framework/cost-guard/pkg/alert"
	cgaws "github.com/operator-framework/cost-guard/pkg/aws"
)

// SimulatedCPUSource produces a stable pseudo random CPU utilization for an
// instance. Most instances land in the normal range (10-60%); roughly three
// in ten are placed in the high range (60-95%).
type SimulatedCPUSource struct {
	instance cgaws.Instance
	now      func() time.Time
}

func NewSimulatedCPUSource(instance cgaws.Instance) *SimulatedCPUSource {
	return &SimulatedCPUSource{instance: instance, now: time.Now}
}

// WithClock replaces the clock used to timestamp observations.
func (s *SimulatedCPUSource) WithClock(now func() time.Time) *SimulatedCPUSource {
	s.now = now
	return s
}

func (s *SimulatedCPUSource) Observe(ctx context.Context) (alert.Observation, error) {
	if err := ctx.Err(); err != nil {
		return alert.Observation{}, err
	}
	return cpuObservation(s.instance, SimulatedCPU(s.instance.ID), s.now().UTC()), nil
}

// SimulatedCPU returns the simulated utilization for instanceID. The same id
// always yields the same value.
func SimulatedCPU(instanceID string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(instanceID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	var value float64
	if rng.Float64() < 0.7 {
		value = 10 + rng.Float64()*50
	} else {
		value = 60 + rng.Float64()*35
	}
	return math.Round(value*100) / 100
}
