// Package measurement defines a sensor reading as delivered by the data services
// and the helpers the dashboard needs to plot and summarise readings.
package measurement

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/envdash/uda/threshold"
)

// Used for separating substrings in cache keys. The octothorpe is fine for this
// because device IDs and timestamps, the two things used in keys, can't contain it.
const keySep = "#"

var deviceIDRegex = regexp.MustCompile(`^[a-z][a-z0-9+.%~_-]{2,254}$`)

// Measurement is a set of readings taken by one device at one time. A nil field
// means the device did not report that metric.
type Measurement struct {
	DeviceID        string           `json:"device_id"`
	Domain          threshold.Domain `json:"domain"`
	Timestamp       time.Time        `json:"timestamp"`
	UploadTimestamp time.Time        `json:"upload_timestamp,omitempty"`

	PM25         *float64 `json:"pm25,omitempty"`
	PM10         *float64 `json:"pm10,omitempty"`
	Temp         *float64 `json:"temperature,omitempty"`
	RH           *float64 `json:"humidity,omitempty"`
	Oxygen       *float64 `json:"oxygen,omitempty"`
	PH           *float64 `json:"ph,omitempty"`
	TSS          *float64 `json:"tss,omitempty"`
	TDS          *float64 `json:"tds_ppm,omitempty"`
	SoilMoisture *float64 `json:"soil_moisture,omitempty"`
}

// fields pairs each metric with a pointer to its field in m.
func (m *Measurement) fields() []struct {
	metric threshold.Metric
	value  **float64
} {
	return []struct {
		metric threshold.Metric
		value  **float64
	}{
		{threshold.PM25, &m.PM25},
		{threshold.PM10, &m.PM10},
		{threshold.Temperature, &m.Temp},
		{threshold.Humidity, &m.RH},
		{threshold.Oxygen, &m.Oxygen},
		{threshold.PH, &m.PH},
		{threshold.TSS, &m.TSS},
		{threshold.TDS, &m.TDS},
		{threshold.SoilMoisture, &m.SoilMoisture},
	}
}

// Value returns the reading for a metric, or nil if it is absent.
func (m *Measurement) Value(metric threshold.Metric) *float64 {
	for _, f := range m.fields() {
		if f.metric == metric {
			return *f.value
		}
	}
	return nil
}

// SetValue sets the reading for a metric. It returns false for a metric the
// Measurement has no field for.
func (m *Measurement) SetValue(metric threshold.Metric, v *float64) bool {
	for _, f := range m.fields() {
		if f.metric == metric {
			*f.value = v
			return true
		}
	}
	return false
}

// Values returns every metric of m, present or not, keyed by metric.
func (m *Measurement) Values() map[threshold.Metric]*float64 {
	vals := make(map[threshold.Metric]*float64)
	for _, f := range m.fields() {
		vals[f.metric] = *f.value
	}
	return vals
}

// ValueMap returns the metrics that are present in m.
func (m *Measurement) ValueMap() map[threshold.Metric]float64 {
	vals := make(map[threshold.Metric]float64)
	for _, f := range m.fields() {
		if *f.value != nil {
			vals[f.metric] = **f.value
		}
	}
	return vals
}

// Validate checks the fields the rest of the system relies on.
func (m *Measurement) Validate() error {
	if !deviceIDRegex.MatchString(m.DeviceID) {
		return fmt.Errorf("measurement: invalid device ID %q", m.DeviceID)
	}
	if _, ok := threshold.ParseDomain(string(m.Domain)); !ok {
		return fmt.Errorf("measurement: unknown domain %q", m.Domain)
	}
	if m.Timestamp.IsZero() {
		return errors.New("measurement: missing timestamp")
	}
	if len(m.ValueMap()) == 0 {
		return errors.New("measurement: no values")
	}
	return nil
}

// DBKey returns a string key that promotes device ID and timestamp into the key.
func (m *Measurement) DBKey() string {
	return strings.Join([]string{m.DeviceID, m.Timestamp.Format(time.RFC3339)}, keySep)
}

func (m Measurement) String() string {
	vm := m.ValueMap()
	metrics := make([]string, 0, len(vm))
	for k := range vm {
		metrics = append(metrics, string(k))
	}
	sort.Strings(metrics)

	parts := make([]string, 0, len(metrics))
	for _, k := range metrics {
		parts = append(parts, fmt.Sprintf("%s=%.3f", k, vm[threshold.Metric(k)]))
	}

	delay := ""
	if !m.UploadTimestamp.IsZero() {
		delay = fmt.Sprintf(" (%v upload delay)", m.UploadTimestamp.Sub(m.Timestamp))
	}

	return fmt.Sprintf("%s [%s] %s %s%s", m.DeviceID, m.Domain, strings.Join(parts, " "), m.Timestamp.Format(time.RFC3339), delay)
}

// CacheKeyLatest returns the cache key of the latest measurement for the given device ID.
func CacheKeyLatest(deviceID string) string {
	return strings.Join([]string{deviceID, "latest"}, keySep)
}

// CacheKeyStatus returns the cache key of the latest overall status of a domain.
func CacheKeyStatus(d threshold.Domain) string {
	return strings.Join([]string{string(d), "status"}, keySep)
}
