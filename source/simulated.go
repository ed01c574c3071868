package source

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/envdash/uda/measurement"
	"github.com/envdash/uda/threshold"
)

const defaultSimulatedStep = 10 * time.Minute

// Readings are drawn uniformly from [base-spread, base+spread].
type nominal struct {
	base, spread float64
}

var nominals = map[threshold.Domain]map[threshold.Metric]nominal{
	threshold.Air: {
		threshold.PM25:        {30, 25},
		threshold.PM10:        {70, 60},
		threshold.Temperature: {28, 10},
		threshold.Humidity:    {50, 25},
		threshold.Oxygen:      {20.5, 1.5},
	},
	threshold.Water: {
		threshold.PH:          {7.2, 1.2},
		threshold.Temperature: {27, 5},
		threshold.TSS:         {40, 30},
		threshold.TDS:         {450, 250},
	},
	threshold.Soil: {
		threshold.SoilMoisture: {50, 40},
		threshold.Temperature:  {22, 15},
		threshold.Humidity:     {60, 30},
	},
}

// Simulated generates random readings for a fixed set of devices. It stands in
// for a real backend in local development and demos.
type Simulated struct {
	// Step is the spacing of readings returned by Between.
	Step time.Duration

	devices map[threshold.Domain][]string

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulated returns a source with n devices per domain, named like
// "sim-air-1". The same seed yields the same readings.
func NewSimulated(seed int64, n int) *Simulated {
	devices := make(map[threshold.Domain][]string)
	for _, d := range threshold.Domains() {
		for i := 1; i <= n; i++ {
			devices[d] = append(devices[d], fmt.Sprintf("sim-%s-%d", d, i))
		}
	}

	return &Simulated{
		Step:    defaultSimulatedStep,
		devices: devices,
		rng:     rand.New(rand.NewSource(seed)),
		now:     time.Now,
	}
}

// reading must be called with s.mu held.
func (s *Simulated) reading(d threshold.Domain, id string, ts time.Time) measurement.Measurement {
	m := measurement.Measurement{DeviceID: id, Domain: d, Timestamp: ts.UTC()}
	for _, metric := range threshold.Metrics(d) {
		n, ok := nominals[d][metric]
		if !ok {
			continue
		}
		v := n.base + (2*s.rng.Float64()-1)*n.spread
		m.SetValue(metric, &v)
	}
	return m
}

func (s *Simulated) Latest(ctx context.Context, d threshold.Domain) ([]measurement.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]measurement.Measurement, 0, len(s.devices[d]))
	for _, id := range s.devices[d] {
		out = append(out, s.reading(d, id, now))
	}
	return out, nil
}

func (s *Simulated) Between(ctx context.Context, d threshold.Domain, start, end time.Time) ([]measurement.Measurement, error) {
	step := s.Step
	if step <= 0 {
		step = defaultSimulatedStep
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []measurement.Measurement
	for ts := start.Truncate(step); ts.Before(end); ts = ts.Add(step) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ts.Before(start) {
			continue
		}
		for _, id := range s.devices[d] {
			out = append(out, s.reading(d, id, ts))
		}
	}
	return out, nil
}
