package measurement

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/envdash/uda/threshold"
)

func floatPtr(f float64) *float64 {
	return &f
}

var (
	testTimestamp  = time.Date(2018, time.March, 25, 0, 0, 0, 0, time.UTC)
	testTimestamp2 = time.Date(2018, time.March, 25, 14, 40, 0, 0, time.UTC)
)

func TestMeasurementString(t *testing.T) {
	cases := []struct {
		name string
		m    Measurement
		want string
	}{
		{"empty", Measurement{}, " []  0001-01-01T00:00:00Z"},
		{"no_upload_timestamp",
			Measurement{
				DeviceID:  "foo",
				Domain:    threshold.Air,
				Timestamp: testTimestamp,
				Temp:      floatPtr(18.3748),
				PM25:      floatPtr(12),
			},
			"foo [air] pm25=12.000 temperature=18.375 2018-03-25T00:00:00Z",
		},
		{"upload_timestamp",
			Measurement{
				DeviceID:        "foo",
				Domain:          threshold.Water,
				Timestamp:       testTimestamp,
				UploadTimestamp: testTimestamp2,
				PH:              floatPtr(7.1),
			},
			"foo [water] ph=7.100 2018-03-25T00:00:00Z (14h40m0s upload delay)",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := fmt.Sprintf("%v", c.m)
			if got != c.want {
				t.Errorf("Got %q, want %q", got, c.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		m     Measurement
		valid bool
	}{
		{"valid", Measurement{DeviceID: "foo", Domain: threshold.Air, Timestamp: testTimestamp, PM25: floatPtr(3)}, true},
		{"short_device_id", Measurement{DeviceID: "fo", Domain: threshold.Air, Timestamp: testTimestamp, PM25: floatPtr(3)}, false},
		{"uppercase_device_id", Measurement{DeviceID: "Foo", Domain: threshold.Air, Timestamp: testTimestamp, PM25: floatPtr(3)}, false},
		{"unknown_domain", Measurement{DeviceID: "foo", Domain: "space", Timestamp: testTimestamp, PM25: floatPtr(3)}, false},
		{"no_timestamp", Measurement{DeviceID: "foo", Domain: threshold.Air, PM25: floatPtr(3)}, false},
		{"no_values", Measurement{DeviceID: "foo", Domain: threshold.Air, Timestamp: testTimestamp}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.m.Validate()
			if err != nil && c.valid {
				t.Errorf("Unexpected error: %v", err)
			} else if err == nil && !c.valid {
				t.Errorf("Expected error, got no error")
			}
		})
	}
}

func TestValueAndSetValue(t *testing.T) {
	var m Measurement
	if got := m.Value(threshold.TSS); got != nil {
		t.Errorf("Value of unset metric = %v, want nil", *got)
	}

	if !m.SetValue(threshold.TSS, floatPtr(42)) {
		t.Fatal("SetValue(tss) returned false")
	}
	if got := m.Value(threshold.TSS); got == nil || *got != 42 {
		t.Errorf("Value(tss) = %v, want 42", got)
	}
	if m.SetValue("co2", floatPtr(1)) {
		t.Error("SetValue(co2) returned true for a metric with no field")
	}

	want := map[threshold.Metric]float64{threshold.TSS: 42}
	if diff := cmp.Diff(m.ValueMap(), want); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
	if got := len(m.Values()); got != 9 {
		t.Errorf("len(Values()) = %d, want 9", got)
	}
}

func TestJSONKeysMatchMetricIDs(t *testing.T) {
	var m Measurement
	if err := json.Unmarshal([]byte(`{"device_id":"foo","domain":"soil","timestamp":"2018-03-25T00:00:00Z","soil_moisture":55,"humidity":60}`), &m); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := map[threshold.Metric]float64{
		threshold.SoilMoisture: 55,
		threshold.Humidity:     60,
	}
	if diff := cmp.Diff(m.ValueMap(), want); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}

func TestDBKey(t *testing.T) {
	m := Measurement{
		DeviceID:  "foo",
		Timestamp: time.Date(2018, time.March, 25, 0, 0, 0, 0, time.UTC),
		Temp:      floatPtr(18.5),
	}

	expected := "foo#2018-03-25T00:00:00Z"
	key := m.DBKey()
	if key != expected {
		t.Errorf("Incorrect DB key. Expected %q, got %q", expected, key)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKeyLatest("foo"); got != "foo#latest" {
		t.Errorf("CacheKeyLatest = %q", got)
	}
	if got := CacheKeyStatus(threshold.Water); got != "water#status" {
		t.Errorf("CacheKeyStatus = %q", got)
	}
}

func TestSeries(t *testing.T) {
	ms := map[string][]Measurement{
		"zulu": {
			{DeviceID: "zulu", Timestamp: testTimestamp, TSS: floatPtr(50)},
		},
		"alpha": {
			{DeviceID: "alpha", Timestamp: testTimestamp, TSS: floatPtr(0)},
			{DeviceID: "alpha", Timestamp: testTimestamp2, PH: floatPtr(7)},
		},
	}

	want := []DeviceSeries{
		{"alpha", []Point{{testTimestamp.UnixMilli(), 0, 100}}},
		{"zulu", []Point{{testTimestamp.UnixMilli(), 50, 50}}},
	}
	if diff := cmp.Diff(Series(ms, threshold.Water, threshold.TSS), want, cmpFloats); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}

func TestByDevice(t *testing.T) {
	ms := []Measurement{
		{DeviceID: "a", PH: floatPtr(1)},
		{DeviceID: "b", PH: floatPtr(2)},
		{DeviceID: "a", PH: floatPtr(3)},
	}

	got := ByDevice(ms)
	if len(got["a"]) != 2 || len(got["b"]) != 1 {
		t.Fatalf("got %v", got)
	}
	if *got["a"][1].PH != 3 {
		t.Errorf("order not preserved: %v", got["a"])
	}
}
