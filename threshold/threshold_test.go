package threshold

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestTablesValid(t *testing.T) {
	for _, tbl := range tables {
		t.Run(fmt.Sprintf("%s/%s", tbl.Domain, tbl.Metric), func(t *testing.T) {
			if err := tbl.Validate(); err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		bands []Band
	}{
		{"empty", nil},
		{"bounded_last", []Band{
			{Min: 0, Max: 10, Label: "a", Severity: 0},
			{Min: 10, Max: 20, Label: "b", Severity: 1},
		}},
		{"gap", []Band{
			{Min: 0, Max: 10, Label: "a", Severity: 0},
			{Min: 11, Max: math.Inf(1), Label: "b", Severity: 1},
		}},
		{"overlap", []Band{
			{Min: 0, Max: 10, Label: "a", Severity: 0},
			{Min: 9, Max: math.Inf(1), Label: "b", Severity: 1},
		}},
		{"bad_severity", []Band{
			{Min: 0, Max: 10, Label: "a", Severity: 0},
			{Min: 10, Max: math.Inf(1), Label: "b", Severity: 3},
		}},
		{"descending", []Band{
			{Min: 0, Max: 10, Label: "a", Severity: 0},
			{Min: 10, Max: 5, Label: "b", Severity: 1},
			{Min: 5, Max: math.Inf(1), Label: "c", Severity: 2},
		}},
		{"no_label", []Band{
			{Min: 0, Max: math.Inf(1), Severity: 0},
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tbl := Table{Domain: "test", Metric: "test", Bands: c.bands}
			if err := tbl.Validate(); err == nil {
				t.Errorf("expected error, got nil")
			}
		})
	}
}

func TestClassifyPM25(t *testing.T) {
	cases := []struct {
		v    float64
		want string
	}{
		{-5, "Good"},
		{0, "Good"},
		{25.99, "Good"},
		{26.0, "Fair"},
		{35.99, "Fair"},
		{40, "Unhealthy"},
		{45.99, "Unhealthy"},
		{50, "Very Unhealthy"},
		{90.99, "Acutely Unhealthy"},
		{91.0, "Emergency"},
		{1e9, "Emergency"},
		{math.Inf(1), "Emergency"},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%v", c.v), func(t *testing.T) {
			b := Classify(Air, PM25, floatPtr(c.v))
			if b == nil {
				t.Fatalf("got nil, want %q", c.want)
			}
			if b.Label != c.want {
				t.Errorf("got %q, want %q", b.Label, c.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		d        Domain
		m        Metric
		v        float64
		want     string
		severity int
	}{
		{Air, PM10, 50.99, "Good", 0},
		{Air, PM10, 301, "Emergency", 5},
		{Air, Humidity, 20, "Poor", 0},
		{Air, Humidity, 28, "Fair", 1},
		{Air, Humidity, 45, "Good", 2},
		{Air, Humidity, 65, "Fair", 3},
		{Air, Humidity, 80, "Poor", 4},
		{Air, Temperature, -20, "Good", 0},
		{Air, Temperature, 40, "Caution", 1},
		{Air, Temperature, 54.99, "Danger", 2},
		{Air, Temperature, 55, "Extreme", 3},
		{Air, Oxygen, 19.49, "Poor", 0},
		{Air, Oxygen, 20.9, "Safe", 1},
		{Water, PH, 6.49, "Too Acidic", 0},
		{Water, PH, 7, "Acceptable", 1},
		{Water, PH, 8.5, "Acceptable", 1},
		{Water, PH, 8.51, "Too Alkaline", 2},
		{Water, Temperature, 20, "Too Cold", 0},
		{Water, Temperature, 30, "Acceptable", 1},
		{Water, Temperature, 30.01, "Too Hot", 2},
		{Water, TSS, 50, "Acceptable", 0},
		{Water, TSS, 50.5, "Too Cloudy", 1},
		{Water, TDS, 600, "High Dissolved Substances", 1},
		{Soil, SoilMoisture, 10, "Dry", 0},
		{Soil, SoilMoisture, 39.99, "Low Moisture", 1},
		{Soil, SoilMoisture, 55, "Optimal", 2},
		{Soil, SoilMoisture, 100, "Saturated", 3},
		{Soil, SoilMoisture, 100.5, "Waterlogged", 4},
		{Soil, Temperature, -3, "Cold", 0},
		{Soil, Temperature, 10, "Cool", 1},
		{Soil, Temperature, 22, "Optimal", 2},
		{Soil, Temperature, 33, "Warm", 3},
		{Soil, Temperature, 40, "Hot", 4},
		{Soil, Humidity, 29.99, "Dry", 0},
		{Soil, Humidity, 40, "Low Humidity", 1},
		{Soil, Humidity, 80, "High Humidity", 3},
		{Soil, Humidity, 86, "Waterlogged", 4},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%s/%s/%v", c.d, c.m, c.v), func(t *testing.T) {
			b := Classify(c.d, c.m, floatPtr(c.v))
			if b == nil {
				t.Fatalf("got nil, want %q", c.want)
			}
			if b.Label != c.want || b.Severity != c.severity {
				t.Errorf("got (%q, %d), want (%q, %d)", b.Label, b.Severity, c.want, c.severity)
			}
		})
	}
}

func TestSoilHumidityOptimalRange(t *testing.T) {
	for v := 50.0; v <= 70.99; v += 0.01 {
		b := Classify(Soil, Humidity, floatPtr(v))
		if b == nil || b.Label != "Optimal" {
			t.Fatalf("value %v: got %v, want Optimal", v, b)
		}
	}
}

func TestClassifyTotal(t *testing.T) {
	values := []float64{math.Inf(-1), -1e12, -1, 0, 0.5, 1, 19.99, 100, 1e12, math.Inf(1)}
	for _, d := range Domains() {
		for _, m := range Metrics(d) {
			for _, v := range values {
				if b := Classify(d, m, floatPtr(v)); b == nil {
					t.Errorf("%s/%s %v: got nil band", d, m, v)
				}
			}
		}
	}
}

func TestClassifyIdempotent(t *testing.T) {
	a := Classify(Water, TDS, floatPtr(600))
	b := Classify(Water, TDS, floatPtr(600))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Unexpected result (-first +second):\n%s", diff)
	}
}

func TestClassifyNoData(t *testing.T) {
	if b := Classify(Air, PM25, nil); b != nil {
		t.Errorf("got %v, want nil", b)
	}
	if b := Classify(Air, PM25, floatPtr(math.NaN())); b != nil {
		t.Errorf("got %v, want nil", b)
	}

	b, err := ClassifyStrict(Air, PM25, nil)
	if err != nil || b != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", b, err)
	}
}

func TestClassifyUnknown(t *testing.T) {
	cases := []struct {
		d Domain
		m Metric
	}{
		{Water, PM25},
		{"space", Temperature},
		{Soil, "radon"},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%s/%s", c.d, c.m), func(t *testing.T) {
			if b := Classify(c.d, c.m, floatPtr(1)); b != nil {
				t.Errorf("got %v, want nil", b)
			}

			_, err := ClassifyStrict(c.d, c.m, floatPtr(1))
			if !errors.Is(err, ErrUnknownMetric) {
				t.Errorf("want ErrUnknownMetric, got %v", err)
			}

			var ume *UnknownMetricError
			if !errors.As(err, &ume) || ume.Domain != c.d || ume.Metric != c.m {
				t.Errorf("want *UnknownMetricError for %s/%s, got %v", c.d, c.m, err)
			}

			if _, err := Lookup(c.d, c.m); !errors.Is(err, ErrUnknownMetric) {
				t.Errorf("Lookup: want ErrUnknownMetric, got %v", err)
			}
		})
	}
}

func TestUnhealthyColor(t *testing.T) {
	b := Classify(Air, PM25, floatPtr(40))
	if got, want := b.Color.String(), "rgba(230,126,14)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	tbl, err := Lookup(Air, PM25)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	tbl.Bands[0].Label = "Mutated"

	if b := Classify(Air, PM25, floatPtr(1)); b.Label != "Good" {
		t.Errorf("registry was mutated through Lookup: got %q", b.Label)
	}
}

func TestMetrics(t *testing.T) {
	cases := []struct {
		d    Domain
		want []Metric
	}{
		{Air, []Metric{PM25, PM10, Humidity, Temperature, Oxygen}},
		{Water, []Metric{PH, Temperature, TSS, TDS}},
		{Soil, []Metric{SoilMoisture, Temperature, Humidity}},
		{"space", nil},
	}

	for _, c := range cases {
		t.Run(string(c.d), func(t *testing.T) {
			if diff := cmp.Diff(Metrics(c.d), c.want); diff != "" {
				t.Errorf("Unexpected result (-got +want):\n%s", diff)
			}
		})
	}

	if diff := cmp.Diff(Domains(), []Domain{Air, Soil, Water}); diff != "" {
		t.Errorf("Unexpected domains (-got +want):\n%s", diff)
	}
}

func TestLabels(t *testing.T) {
	tbl, _ := Lookup(Air, Humidity)
	if diff := cmp.Diff(tbl.Labels(), []string{"Poor", "Fair", "Good"}); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}

func TestContains(t *testing.T) {
	tbl, _ := Lookup(Water, PH)
	for _, v := range []float64{-1, 0, 6.49, 6.5, 8.5, 8.51, 14, 100} {
		n := 0
		for _, b := range tbl.Bands {
			if b.Contains(v) {
				n++
				if want := tbl.Classify(v); want.Label != b.Label {
					t.Errorf("%v: Contains says %q, Classify says %q", v, b.Label, want.Label)
				}
			}
		}
		if n != 1 {
			t.Errorf("%v contained in %d bands, want 1", v, n)
		}
	}
}

func TestBandJSON(t *testing.T) {
	tbl, _ := Lookup(Water, TDS)

	data, err := json.Marshal(tbl.Bands)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := `[{"min":0,"max":500,"label":"Acceptable","color":"rgba(88,199,89)","severity":0},` +
		`{"min":500,"max":null,"label":"High Dissolved Substances","color":"rgba(232,44,48)","severity":1}]`
	if string(data) != want {
		t.Errorf("Want %q, got %q", want, string(data))
	}

	var got []Band
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, tbl.Bands); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}

func TestColorString(t *testing.T) {
	cases := []struct {
		c    RGBA
		want string
	}{
		{rgb(230, 126, 14), "rgba(230,126,14)"},
		{rgb(140, 1, 4).WithAlpha(0.5), "rgba(140,1,4,0.5)"},
		{RGBA{}, "rgba(0,0,0,0)"},
	}

	for _, c := range cases {
		t.Run(c.want, func(t *testing.T) {
			if got := c.c.String(); got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}

			var back RGBA
			if err := back.UnmarshalJSON([]byte(`"` + c.want + `"`)); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if back != c.c {
				t.Errorf("round trip: got %v, want %v", back, c.c)
			}
		})
	}
}

func TestColorUnmarshalBad(t *testing.T) {
	for _, in := range []string{`"rgba(1,2)"`, `"rgba(1,2,3,4,5)"`, `"rgba(a,b,c)"`, `"red"`, `7`} {
		t.Run(in, func(t *testing.T) {
			var c RGBA
			if err := c.UnmarshalJSON([]byte(in)); err == nil {
				t.Errorf("Expected error, got no error")
			}
		})
	}
}
