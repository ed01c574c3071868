// Package publish announces status changes of devices to message brokers so
// alerting and automation systems can react without polling the dashboard.
package publish

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/envdash/uda/narrative"
	"github.com/envdash/uda/poller"
	"github.com/envdash/uda/threshold"
)

// Event reports the overall status of a device after it changed.
type Event struct {
	ID         uuid.UUID        `json:"id"`
	Domain     threshold.Domain `json:"domain"`
	DeviceID   string           `json:"device_id"`
	Metric     threshold.Metric `json:"metric"`
	Value      float64          `json:"value"`
	Label      string           `json:"label"`
	// Previous is the metric/label status reported before this one.
	Previous   string           `json:"previous,omitempty"`
	Severity   int              `json:"severity"`
	Percentage float64          `json:"percentage"`
	Color      threshold.RGBA   `json:"color"`
	Summary    string           `json:"summary"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NewEvent builds an event from an update's overall result. It returns false
// if nothing in the update could be classified.
func NewEvent(u poller.Update) (Event, bool) {
	r := u.Overall
	if r == nil {
		return Event{}, false
	}

	return Event{
		ID:         uuid.New(),
		Domain:     u.Measurement.Domain,
		DeviceID:   u.Measurement.DeviceID,
		Metric:     r.Metric,
		Value:      r.Value,
		Label:      r.Label(),
		Severity:   r.Severity(),
		Percentage: r.Percentage,
		Color:      r.Band.Color,
		Summary:    narrative.Summary(r),
		Timestamp:  u.Measurement.Timestamp,
	}, true
}

// Publisher sends events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Sink is a poller.Sink that publishes an event whenever the overall status of
// a device changes. The first update seen for a device always publishes.
type Sink struct {
	publishers []Publisher

	mu   sync.Mutex
	last map[string]string
}

func NewSink(publishers ...Publisher) *Sink {
	return &Sink{
		publishers: publishers,
		last:       make(map[string]string),
	}
}

// changed records the status of a device and reports whether it differs from
// the one recorded before, along with that previous status.
func (s *Sink) changed(deviceID, status string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.last[deviceID]
	s.last[deviceID] = status
	return prev, !seen || prev != status
}

// forget undoes a status recorded by changed so the next update with the same
// status publishes again. A status recorded since then is left alone.
func (s *Sink) forget(deviceID, status, prev string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last[deviceID] != status {
		return
	}
	if prev == "" {
		delete(s.last, deviceID)
		return
	}
	s.last[deviceID] = prev
}

func (s *Sink) Save(ctx context.Context, u poller.Update) error {
	e, ok := NewEvent(u)
	if !ok {
		return nil
	}

	// The metric is part of the status so a device going from Unhealthy PM2.5
	// to Unhealthy PM10 is reported.
	status := string(e.Metric) + "/" + e.Label
	prev, changed := s.changed(e.DeviceID, status)
	if !changed {
		return nil
	}
	if prev != "" {
		e.Previous = prev
	}

	errs := []error{}
	for _, p := range s.publishers {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		s.forget(e.DeviceID, status, prev)
	}
	return errors.Join(errs...)
}
