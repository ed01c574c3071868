package source

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/envdash/uda/measurement"
	"github.com/envdash/uda/threshold"
)

func TestSimulatedLatest(t *testing.T) {
	s := NewSimulated(1, 2)
	s.now = func() time.Time { return t0 }

	for _, d := range threshold.Domains() {
		ms, err := s.Latest(context.Background(), d)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(ms) != 2 {
			t.Fatalf("%s: got %d measurements, want 2", d, len(ms))
		}

		for _, m := range ms {
			if err := m.Validate(); err != nil {
				t.Errorf("invalid simulated measurement: %v", err)
			}
			if len(m.ValueMap()) != len(threshold.Metrics(d)) {
				t.Errorf("%s: got values for %v, want every metric of the domain", m.DeviceID, m.ValueMap())
			}
		}
	}
}

func TestSimulatedIsDeterministic(t *testing.T) {
	a, b := NewSimulated(42, 1), NewSimulated(42, 1)
	a.now = func() time.Time { return t0 }
	b.now = a.now

	got, _ := a.Latest(context.Background(), threshold.Water)
	want, _ := b.Latest(context.Background(), threshold.Water)
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}

func TestSimulatedBetween(t *testing.T) {
	s := NewSimulated(1, 3)
	s.Step = 15 * time.Minute

	ms, err := s.Between(context.Background(), threshold.Soil, t0.Add(-5*time.Minute), t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Steps at t0, +15m, +30m and +45m for each of 3 devices.
	if len(ms) != 12 {
		t.Fatalf("got %d measurements, want 12", len(ms))
	}
	if !ms[0].Timestamp.Equal(t0) || !ms[len(ms)-1].Timestamp.Equal(t0.Add(45*time.Minute)) {
		t.Errorf("got range [%v, %v]", ms[0].Timestamp, ms[len(ms)-1].Timestamp)
	}

	byDevice := measurement.ByDevice(ms)
	if len(byDevice["sim-soil-2"]) != 4 {
		t.Errorf("got %d readings for sim-soil-2, want 4", len(byDevice["sim-soil-2"]))
	}
}

func TestSimulatedBetweenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewSimulated(1, 1).Between(ctx, threshold.Air, t0, t0.Add(time.Hour)); err == nil {
		t.Error("Expected error, got no error")
	}
}
