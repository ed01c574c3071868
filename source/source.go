// Package source fetches readings from the sensor data services the dashboard
// is fed by.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/envdash/uda/measurement"
	"github.com/envdash/uda/threshold"
)

var ErrUnknownSource = errors.New("source: unknown source")

// Source is a backend holding sensor readings.
type Source interface {
	// Latest returns the most recent reading of every device in a domain.
	Latest(ctx context.Context, d threshold.Domain) ([]measurement.Measurement, error)
	// Between returns all readings in a domain taken in [start, end), oldest first.
	Between(ctx context.Context, d threshold.Domain, start, end time.Time) ([]measurement.Measurement, error)
}

var (
	sourcesMu sync.Mutex
	sources   map[string]Source
)

// Register adds a Source to the set of available sources.
func Register(name string, s Source) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()

	if sources == nil {
		sources = make(map[string]Source)
	}
	sources[name] = s
}

// Get looks up a source by name.
func Get(name string) (Source, error) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()

	s, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSource, name)
	}
	return s, nil
}

// Names returns the registered source names, sorted.
func Names() []string {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()

	names := make([]string, 0, len(sources))
	for k := range sources {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
