// Package normalize maps raw readings to a 0–100 "safety" percentage that drives
// gauge fill and chart series. 100 is safest.
//
// Each metric uses one of three scale shapes:
//
//	BadAbove   lower is safer: 100 at 0, 50 at the acceptable limit, 0 at the critical value.
//	Centered   100 inside an optimal range, falling linearly to 0 at a critical bound on either side.
//	Clamped    0 at or below a floor, 100 at or above a ceiling.
//
// Missing readings normalize to 0, the worst case, so that a gap in the data is
// never drawn as a safe value. This differs from threshold.Classify, which
// reports missing readings as nil.
package normalize

import (
	"math"

	"github.com/envdash/uda/threshold"
)

// Scale converts a reading to a percentage in [0, 100].
type Scale interface {
	Percent(v float64) float64
}

func clamp(x float64) float64 {
	return math.Max(0, math.Min(100, x))
}

// lerp maps v linearly from [x0, x1] onto [y0, y1].
func lerp(v, x0, x1, y0, y1 float64) float64 {
	return y0 + (v-x0)*(y1-y0)/(x1-x0)
}

// BadAbove is for pollutants where any amount above zero is worse.
type BadAbove struct {
	Acceptable float64
	Critical   float64
}

func (s BadAbove) Percent(v float64) float64 {
	if v <= s.Acceptable {
		return clamp(lerp(v, 0, s.Acceptable, 100, 50))
	}
	return clamp(lerp(v, s.Acceptable, s.Critical, 50, 0))
}

// Centered is for quantities with an optimal middle range. The low and high
// sides are scaled independently.
type Centered struct {
	CriticalLow  float64
	OptimalMin   float64
	OptimalMax   float64
	CriticalHigh float64
}

func (s Centered) Percent(v float64) float64 {
	switch {
	case v >= s.OptimalMin && v <= s.OptimalMax:
		return 100
	case v < s.OptimalMin:
		return clamp(lerp(v, s.CriticalLow, s.OptimalMin, 0, 100))
	default:
		return clamp(lerp(v, s.OptimalMax, s.CriticalHigh, 100, 0))
	}
}

// Clamped is for quantities that are only dangerous when too low.
type Clamped struct {
	Floor   float64
	Ceiling float64
}

func (s Clamped) Percent(v float64) float64 {
	switch {
	case v <= s.Floor:
		return 0
	case v >= s.Ceiling:
		return 100
	default:
		return clamp(lerp(v, s.Floor, s.Ceiling, 0, 100))
	}
}

type key struct {
	d threshold.Domain
	m threshold.Metric
}

var scales = map[key]Scale{
	{threshold.Air, threshold.PM25}:        BadAbove{Acceptable: 25.99, Critical: 50},
	{threshold.Air, threshold.PM10}:        BadAbove{Acceptable: 50.99, Critical: 100},
	{threshold.Air, threshold.Humidity}:    Centered{CriticalLow: 0, OptimalMin: 31, OptimalMax: 60.99, CriticalHigh: 100},
	{threshold.Air, threshold.Temperature}: Centered{CriticalLow: 0, OptimalMin: 18, OptimalMax: 33.99, CriticalHigh: 54.99},
	{threshold.Air, threshold.Oxygen}:      Clamped{Floor: 16, Ceiling: 19.5},

	{threshold.Water, threshold.PH}:          Centered{CriticalLow: 0, OptimalMin: 6.5, OptimalMax: 8.5, CriticalHigh: 14},
	{threshold.Water, threshold.Temperature}: Centered{CriticalLow: 15, OptimalMin: 26, OptimalMax: 30, CriticalHigh: 40},
	{threshold.Water, threshold.TSS}:         BadAbove{Acceptable: 50, Critical: 100},
	{threshold.Water, threshold.TDS}:         BadAbove{Acceptable: 500, Critical: 1000},

	{threshold.Soil, threshold.SoilMoisture}: Centered{CriticalLow: 0, OptimalMin: 40, OptimalMax: 70.99, CriticalHigh: 100},
	{threshold.Soil, threshold.Temperature}:  Centered{CriticalLow: 0, OptimalMin: 15, OptimalMax: 29.99, CriticalHigh: 45},
	{threshold.Soil, threshold.Humidity}:     Centered{CriticalLow: 0, OptimalMin: 50, OptimalMax: 70.99, CriticalHigh: 100},
}

// Lookup returns the scale for the pair or an error wrapping
// threshold.ErrUnknownMetric.
func Lookup(d threshold.Domain, m threshold.Metric) (Scale, error) {
	s, ok := scales[key{d, m}]
	if !ok {
		return nil, &threshold.UnknownMetricError{Domain: d, Metric: m}
	}
	return s, nil
}

// Normalize returns the safety percentage of a reading. Absent values (nil or
// NaN) and unknown pairs both yield 0.
func Normalize(d threshold.Domain, m threshold.Metric, v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}

	s, err := Lookup(d, m)
	if err != nil {
		return 0
	}
	return s.Percent(*v)
}
