package main

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/envdash/uda/threshold"
)

const epsilon = 0.00001

func floatsEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

/*
 * strsToFloats
 */

func TestStrsToFloatsEmpty(t *testing.T) {
	floats, err := strsToFloats([]string{})
	if err != nil {
		t.Errorf("Error on empty list: %v", err)
	}

	if len(floats) != 0 {
		t.Errorf("Result list has len %v, expected it to be empty", len(floats))
	}
}

func TestStrsToFloatsValid(t *testing.T) {
	input := []string{"10.0", "-3.9", " 0.03"}
	output := []float64{10.0, -3.9, 0.03}

	floats, err := strsToFloats(input)
	if err != nil {
		t.Errorf("Error on valid input: %v", err)
	}

	for i := range input {
		if !floatsEqual(floats[i], output[i]) {
			t.Errorf("Incorrect for input %q: Expected %v, got %v", input[i], output[i], floats[i])
		}
	}
}

func TestStrsToFloatsInvalid(t *testing.T) {
	_, err := strsToFloats([]string{"5.0", "spam", "spam", "spam", "baked beans", "spam"})
	if err == nil {
		t.Error("Expected error on invalid input, but error is nil")
	}
}

/*
 * mean
 */

func TestMeanEmpty(t *testing.T) {
	m := mean([]float64{})
	if !math.IsNaN(m) {
		t.Errorf("Expected NaN, got %v", m)
	}
}

func TestMeanSingle(t *testing.T) {
	m := mean([]float64{12.7})
	if !floatsEqual(m, 12.7) {
		t.Errorf("Expected 12.7, got %v", m)
	}
}

func TestMeanMultiple(t *testing.T) {
	m := mean([]float64{10.0, 20.0, 42.6})
	if !floatsEqual(m, 24.2) {
		t.Errorf("Expected 24.2, got %v", m)
	}
}

/*
 * parseHeader
 */

func TestParseHeader(t *testing.T) {
	cases := []struct {
		name    string
		header  []string
		wantErr bool
	}{
		{"valid", []string{"timestamp", "pm25", "pm10", "pm25"}, false},
		{"empty", []string{}, true},
		{"no_metrics", []string{"timestamp"}, true},
		{"no_timestamp", []string{"pm25", "pm10"}, true},
		{"wrong_domain", []string{"timestamp", "ph"}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := parseHeader(c.header, threshold.Air)
			if (err != nil) != c.wantErr {
				t.Errorf("got err %v, want error: %v", err, c.wantErr)
			}
		})
	}
}

/*
 * lineToMeasurement
 */

func TestLineToMeasurementEmpty(t *testing.T) {
	_, err := lineToMeasurement([]string{}, []threshold.Metric{threshold.PM25}, threshold.Air, "foo")
	if err == nil {
		t.Error("Expected error on invalid input, but error is nil")
	}
}

func TestLineToMeasurementNoValues(t *testing.T) {
	_, err := lineToMeasurement([]string{"2006-01-02T15:04:05Z", ""}, []threshold.Metric{threshold.PM25}, threshold.Air, "foo")
	if err == nil {
		t.Error("Expected error on invalid input, but error is nil")
	}
}

func TestLineToMeasurementValid(t *testing.T) {
	deviceID := "foo"
	metrics := []threshold.Metric{threshold.Temperature, threshold.Temperature, threshold.Temperature, threshold.PM25}

	m, err := lineToMeasurement([]string{"2006-01-02T15:04:05Z", "18.5", "18.0", "18.6", ""}, metrics, threshold.Air, deviceID)
	if err != nil {
		t.Fatalf("Failed to convert line: %v", err)
	}

	if m.DeviceID != deviceID {
		t.Errorf("Device ID Expected to be %q, got %q", deviceID, m.DeviceID)
	}
	if m.Temp == nil || !floatsEqual(*m.Temp, 18.366667) {
		t.Errorf("Expected 18.366667, got %v", m.Temp)
	}
	if m.PM25 != nil {
		t.Errorf("Expected no PM2.5, got %v", *m.PM25)
	}
}

/*
 * readCSV
 */

func TestReadCSV(t *testing.T) {
	in := `timestamp,tss,tds_ppm
2024-05-01T10:00:00Z,10,400
2024-05-01T11:00:00Z,,700
`
	ms, err := readCSV(strings.NewReader(in), threshold.Water, "tap")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("got %d measurements, want 2", len(ms))
	}
	if ms[1].TSS != nil || ms[1].TDS == nil || *ms[1].TDS != 700 {
		t.Errorf("unexpected second measurement: %v", ms[1])
	}

	var buf bytes.Buffer
	writeText(&buf, ms)
	if !strings.Contains(buf.String(), "TDS is 700.0 ppm: High Dissolved Substances") {
		t.Errorf("text output missing overall status:\n%s", buf.String())
	}
}

func TestReadCSVBadLine(t *testing.T) {
	in := "timestamp,tss\n2024-05-01T10:00:00Z,cloudy\n"
	if _, err := readCSV(strings.NewReader(in), threshold.Water, "tap"); err == nil {
		t.Error("Expected error, got no error")
	}
}

func TestClassifyValue(t *testing.T) {
	metric, value = "soil_moisture", "55"
	defer func() { metric, value = "", "" }()

	var buf bytes.Buffer
	if err := classifyValue(&buf, threshold.Soil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Soil Moisture is 55.0 %: Optimal (100.0%, severity 2)") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	value = "soggy"
	if err := classifyValue(&buf, threshold.Soil); err == nil {
		t.Error("Expected error, got no error")
	}
}
