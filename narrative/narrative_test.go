package narrative

import (
	"testing"

	"github.com/envdash/uda/quality"
	"github.com/envdash/uda/threshold"
)

func floatPtr(f float64) *float64 {
	return &f
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func TestEveryLabelHasRecommendations(t *testing.T) {
	for _, d := range threshold.Domains() {
		for _, tbl := range threshold.Tables(d) {
			for _, label := range tbl.Labels() {
				if len(RecommendationsFor(d, label)) == 0 {
					t.Errorf("%s/%s: no recommendations for %q", d, tbl.Metric, label)
				}
			}
		}
	}
}

func TestRecommendationsFor(t *testing.T) {
	cases := []struct {
		name  string
		d     threshold.Domain
		label string
		want  string
		count int
	}{
		{"air_unhealthy", threshold.Air, "Unhealthy", "Reduce prolonged outdoor activities", 3},
		{"water_tds", threshold.Water, "High Dissolved Substances", "Do not drink without treatment", 3},
		{"soil_optimal", threshold.Soil, "Optimal", "Maintain the current irrigation schedule", 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := RecommendationsFor(c.d, c.label)
			if len(got) != c.count {
				t.Errorf("got %d recommendations, want %d", len(got), c.count)
			}
			if !contains(got, c.want) {
				t.Errorf("%v does not contain %q", got, c.want)
			}
		})
	}
}

func TestRecommendationsForUnknown(t *testing.T) {
	cases := []struct {
		d     threshold.Domain
		label string
	}{
		{threshold.Air, "Mysterious"},
		{threshold.Water, "Good"},
		{"space", "Good"},
		{threshold.Air, ""},
	}

	for _, c := range cases {
		t.Run(string(c.d)+"/"+c.label, func(t *testing.T) {
			got := RecommendationsFor(c.d, c.label)
			if got == nil || len(got) != 0 {
				t.Errorf("got %#v, want empty non-nil slice", got)
			}
		})
	}
}

func TestRecommendationsForReturnsCopy(t *testing.T) {
	got := RecommendationsFor(threshold.Air, "Unhealthy")
	got[0] = "Mutated"

	if again := RecommendationsFor(threshold.Air, "Unhealthy"); again[0] != "Reduce prolonged outdoor activities" {
		t.Errorf("table was mutated: got %q", again[0])
	}
}

func TestEndToEndPM25(t *testing.T) {
	r := quality.Assess(threshold.Air, threshold.PM25, floatPtr(40))
	if r == nil {
		t.Fatal("got nil result")
	}
	if r.Label() != "Unhealthy" || r.Band.Color.String() != "rgba(230,126,14)" {
		t.Errorf("got (%q, %s), want (Unhealthy, rgba(230,126,14))", r.Label(), r.Band.Color)
	}
	if recs := RecommendationsFor(r.Domain, r.Label()); !contains(recs, "Reduce prolonged outdoor activities") {
		t.Errorf("%v does not contain the outdoor activity recommendation", recs)
	}
}

func TestSummary(t *testing.T) {
	cases := []struct {
		name string
		r    *quality.Result
		want string
	}{
		{"nil", nil, "No Data"},
		{"pm25", quality.Assess(threshold.Air, threshold.PM25, floatPtr(40)), "PM2.5 is 40.0 µg/m³: Unhealthy"},
		{"ph_no_unit", quality.Assess(threshold.Water, threshold.PH, floatPtr(7.3)), "pH is 7.3: Acceptable"},
		{"soil_moisture", quality.Assess(threshold.Soil, threshold.SoilMoisture, floatPtr(55)), "Soil Moisture is 55.0 %: Optimal"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Summary(c.r); got != c.want {
				t.Errorf("Want %q, got %q", c.want, got)
			}
		})
	}
}
