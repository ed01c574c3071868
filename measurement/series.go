package measurement

import (
	"encoding/json"
	"sort"

	"github.com/envdash/uda/normalize"
	"github.com/envdash/uda/threshold"
)

// Point is a single plotted reading. The JSON keys are short because history
// responses can hold thousands of points.
type Point struct {
	// Milliseconds since the epoch.
	Timestamp  int64   `json:"ts"`
	Value      float64 `json:"v"`
	Percentage float64 `json:"p"`
}

// DeviceSeries is the plot data of one metric for one device.
type DeviceSeries struct {
	ID     string  `json:"id"`
	Values []Point `json:"values"`
}

// Series builds plot data for a metric from measurements grouped by device ID.
// Devices are sorted by ID so each line keeps its color across page loads.
// Measurements without the metric are skipped.
func Series(measurements map[string][]Measurement, d threshold.Domain, metric threshold.Metric) []DeviceSeries {
	keys := make([]string, 0, len(measurements))
	for k := range measurements {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := make([]DeviceSeries, 0, len(keys))
	for _, k := range keys {
		vals := make([]Point, 0, len(measurements[k]))
		for _, m := range measurements[k] {
			v := m.Value(metric)
			if v == nil {
				continue
			}
			vals = append(vals, Point{
				Timestamp:  m.Timestamp.UnixMilli(),
				Value:      *v,
				Percentage: normalize.Normalize(d, metric, v),
			})
		}
		data = append(data, DeviceSeries{k, vals})
	}
	return data
}

// SeriesJSON is Series marshaled to a JSON array, one element per device.
func SeriesJSON(measurements map[string][]Measurement, d threshold.Domain, metric threshold.Metric) ([]byte, error) {
	return json.Marshal(Series(measurements, d, metric))
}

// ByDevice groups measurements by device ID, preserving their order.
func ByDevice(measurements []Measurement) map[string][]Measurement {
	out := make(map[string][]Measurement)
	for _, m := range measurements {
		out[m.DeviceID] = append(out[m.DeviceID], m)
	}
	return out
}
