// Package threshold holds the per-domain, per-metric band tables used to turn a
// raw sensor reading into a qualitative status, and the classifier that walks them.
//
// Tables are built once at init and never mutated. Every exported lookup hands
// out copies, so the package is safe for concurrent use without locking.
package threshold

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Domain is the environment a metric is measured in.
type Domain string

const (
	Air   Domain = "air"
	Water Domain = "water"
	Soil  Domain = "soil"
)

// Metric identifies a measured quantity. The same Metric may appear in more than
// one Domain with a different table (temperature, humidity), so tables are keyed
// by the (Domain, Metric) pair.
type Metric string

const (
	PM25         Metric = "pm25"
	PM10         Metric = "pm10"
	Humidity     Metric = "humidity"
	Temperature  Metric = "temperature"
	Oxygen       Metric = "oxygen"
	PH           Metric = "ph"
	TSS          Metric = "tss"
	TDS          Metric = "tds_ppm"
	SoilMoisture Metric = "soil_moisture"
)

// ErrUnknownMetric is returned (wrapped in an *UnknownMetricError) when no table
// is registered for a (Domain, Metric) pair.
var ErrUnknownMetric = errors.New("threshold: unknown metric")

// UnknownMetricError names the (Domain, Metric) pair that has no table.
type UnknownMetricError struct {
	Domain Domain
	Metric Metric
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("threshold: unknown metric %q in domain %q", e.Metric, e.Domain)
}

func (e *UnknownMetricError) Unwrap() error {
	return ErrUnknownMetric
}

// Band is one entry in a metric's ordered threshold table. Min is the previous
// band's Max (or the table floor for the first band) and Max is inclusive. The
// last band's Max is +Inf.
type Band struct {
	Min      float64
	Max      float64
	Label    string
	Color    RGBA
	Severity int
}

type jsonBand struct {
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Label    string   `json:"label"`
	Color    RGBA     `json:"color"`
	Severity int      `json:"severity"`
}

// finite returns nil for infinite bounds, which JSON cannot represent.
func finite(f float64) *float64 {
	if math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// MarshalJSON writes open bounds as null.
func (b Band) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonBand{
		Min:      finite(b.Min),
		Max:      finite(b.Max),
		Label:    b.Label,
		Color:    b.Color,
		Severity: b.Severity,
	})
}

func (b *Band) UnmarshalJSON(data []byte) error {
	var jb jsonBand
	if err := json.Unmarshal(data, &jb); err != nil {
		return err
	}

	*b = Band{Min: math.Inf(-1), Max: math.Inf(1), Label: jb.Label, Color: jb.Color, Severity: jb.Severity}
	if jb.Min != nil {
		b.Min = *jb.Min
	}
	if jb.Max != nil {
		b.Max = *jb.Max
	}
	return nil
}

// Contains reports whether v falls in (Min, Max], or [Min, Max] for a band whose
// Min is the table floor.
func (b Band) Contains(v float64) bool {
	return v <= b.Max && (v > b.Min || b.Severity == 0)
}

// Table is the ordered band sequence for one (Domain, Metric).
type Table struct {
	Domain Domain `json:"domain"`
	Metric Metric `json:"metric"`
	Name   string `json:"name"`
	Unit   string `json:"unit,omitempty"`
	Bands  []Band `json:"bands"`
}

// Classify returns the first band whose Max is >= v, scanning in ascending
// order. Values above every finite Max (including +Inf) land in the last band.
// The caller must not pass NaN.
func (t Table) Classify(v float64) Band {
	for _, b := range t.Bands {
		if v <= b.Max {
			return b
		}
	}

	return t.Bands[len(t.Bands)-1]
}

// Validate checks that the bands partition the number line: maxima strictly
// ascend, each band starts where the previous one ended, severities match
// positions and the last band is open-ended.
func (t Table) Validate() error {
	if len(t.Bands) == 0 {
		return fmt.Errorf("threshold: %s/%s has no bands", t.Domain, t.Metric)
	}

	for i, b := range t.Bands {
		if b.Severity != i {
			return fmt.Errorf("threshold: %s/%s band %d (%q) has severity %d", t.Domain, t.Metric, i, b.Label, b.Severity)
		}
		if b.Label == "" {
			return fmt.Errorf("threshold: %s/%s band %d has no label", t.Domain, t.Metric, i)
		}
		if math.IsNaN(b.Min) || math.IsNaN(b.Max) {
			return fmt.Errorf("threshold: %s/%s band %d has NaN bounds", t.Domain, t.Metric, i)
		}
		if b.Max <= b.Min {
			return fmt.Errorf("threshold: %s/%s band %d (%q) is empty: [%v, %v]", t.Domain, t.Metric, i, b.Label, b.Min, b.Max)
		}
		if i > 0 && b.Min != t.Bands[i-1].Max {
			return fmt.Errorf("threshold: %s/%s gap or overlap between %q and %q", t.Domain, t.Metric, t.Bands[i-1].Label, b.Label)
		}
	}

	if last := t.Bands[len(t.Bands)-1]; !math.IsInf(last.Max, 1) {
		return fmt.Errorf("threshold: %s/%s last band %q is bounded at %v", t.Domain, t.Metric, last.Label, last.Max)
	}

	return nil
}

// Labels returns the distinct band labels of the table in table order.
func (t Table) Labels() []string {
	seen := make(map[string]bool, len(t.Bands))
	var labels []string
	for _, b := range t.Bands {
		if !seen[b.Label] {
			seen[b.Label] = true
			labels = append(labels, b.Label)
		}
	}
	return labels
}

func (t Table) clone() Table {
	bands := make([]Band, len(t.Bands))
	copy(bands, t.Bands)
	t.Bands = bands
	return t
}

// Classify maps a reading to its band. It returns nil when the value is absent
// (nil or NaN) and when no table exists for the pair; callers render both as
// "No Data". Use ClassifyStrict to tell the two apart.
func Classify(d Domain, m Metric, v *float64) *Band {
	b, _ := ClassifyStrict(d, m, v)
	return b
}

// ClassifyStrict is Classify with unknown pairs reported as an error wrapping
// ErrUnknownMetric. An absent value still yields (nil, nil).
func ClassifyStrict(d Domain, m Metric, v *float64) (*Band, error) {
	t, ok := registry[key{d, m}]
	if !ok {
		return nil, &UnknownMetricError{Domain: d, Metric: m}
	}

	if v == nil || math.IsNaN(*v) {
		return nil, nil
	}

	b := t.Classify(*v)
	return &b, nil
}
