// Package quality combines band classification and percentage normalization into
// a single result per reading, and resolves the overall status of a domain from
// several related readings.
package quality

import (
	"github.com/envdash/uda/normalize"
	"github.com/envdash/uda/threshold"
)

// Result is the classification of one reading. It is recomputed on every
// request and never stored.
type Result struct {
	Domain     threshold.Domain `json:"domain"`
	Metric     threshold.Metric `json:"metric"`
	Value      float64          `json:"value"`
	Band       threshold.Band   `json:"band"`
	Percentage float64          `json:"percentage"`
}

// Severity is a shorthand for r.Band.Severity.
func (r *Result) Severity() int {
	return r.Band.Severity
}

// Label is a shorthand for r.Band.Label.
func (r *Result) Label() string {
	return r.Band.Label
}

// Assess classifies and normalizes a reading. It returns nil when the reading is
// absent or the pair has no table.
func Assess(d threshold.Domain, m threshold.Metric, v *float64) *Result {
	b := threshold.Classify(d, m, v)
	if b == nil {
		return nil
	}

	return &Result{
		Domain:     d,
		Metric:     m,
		Value:      *v,
		Band:       *b,
		Percentage: normalize.Normalize(d, m, v),
	}
}

// WorstOf returns whichever result has the higher severity. On a tie a wins, so
// the order of arguments decides which label is shown when two metrics are
// equally bad. A nil result means "no data" and loses to anything.
func WorstOf(a, b *Result) *Result {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Band.Severity >= b.Band.Severity:
		return a
	default:
		return b
	}
}

// WorstOfAll folds WorstOf over results from left to right, so among equally
// severe results the first one listed wins.
func WorstOfAll(results ...*Result) *Result {
	var worst *Result
	for _, r := range results {
		worst = WorstOf(worst, r)
	}
	return worst
}

// Order lists each domain's metrics in tie-break preference: earlier metrics
// win ties.
var Order = map[threshold.Domain][]threshold.Metric{
	threshold.Air:   {threshold.PM25, threshold.PM10, threshold.Temperature, threshold.Humidity, threshold.Oxygen},
	threshold.Water: {threshold.TDS, threshold.TSS, threshold.PH, threshold.Temperature},
	threshold.Soil:  {threshold.SoilMoisture, threshold.Temperature, threshold.Humidity},
}

// Pairs are the related metrics the dashboards summarise under one status.
var Pairs = map[threshold.Domain][2]threshold.Metric{
	threshold.Air:   {threshold.PM25, threshold.PM10},
	threshold.Water: {threshold.TSS, threshold.TDS},
}

// AssessAll assesses every metric in values that belongs to the domain, in the
// domain's Order. Absent readings are skipped.
func AssessAll(d threshold.Domain, values map[threshold.Metric]*float64) []*Result {
	var results []*Result
	for _, m := range Order[d] {
		if r := Assess(d, m, values[m]); r != nil {
			results = append(results, r)
		}
	}
	return results
}

// Overall returns the least safe reading of a domain, the one with the lowest
// percentage, or nil if none could be classified. Ties go to the metric that
// comes first in Order. Severity is a position within one table and is not
// comparable across tables whose optimal band sits in the middle.
func Overall(d threshold.Domain, values map[threshold.Metric]*float64) *Result {
	var least *Result
	for _, r := range AssessAll(d, values) {
		if least == nil || r.Percentage < least.Percentage {
			least = r
		}
	}
	return least
}

// PairStatus resolves the combined status of a domain's related pair, for
// example PM2.5 and PM10. It returns nil for domains without a pair.
func PairStatus(d threshold.Domain, first, second *float64) *Result {
	p, ok := Pairs[d]
	if !ok {
		return nil
	}
	return WorstOf(Assess(d, p[0], first), Assess(d, p[1], second))
}
