package measurement

import (
	"math"

	"github.com/envdash/uda/threshold"
)

func Mean(measurements []Measurement) map[threshold.Metric]float64 {
	sums := make(map[threshold.Metric]float64)
	counts := make(map[threshold.Metric]int)
	for _, m := range measurements {
		for k, v := range m.ValueMap() {
			sums[k] += v
			counts[k]++
		}
	}

	means := make(map[threshold.Metric]float64)
	for k, v := range sums {
		means[k] = v / float64(counts[k])
	}

	return means
}

// StdDev is the population standard deviation of each metric.
func StdDev(measurements []Measurement) map[threshold.Metric]float64 {
	avg := Mean(measurements)

	sums := make(map[threshold.Metric]float64)
	counts := make(map[threshold.Metric]int)
	for _, m := range measurements {
		for k, v := range m.ValueMap() {
			sums[k] += math.Pow(v-avg[k], 2)
			counts[k]++
		}
	}

	devs := make(map[threshold.Metric]float64)
	for k, v := range sums {
		devs[k] = math.Sqrt(v / float64(counts[k]))
	}

	return devs
}

func Min(measurements []Measurement) map[threshold.Metric]float64 {
	x := make(map[threshold.Metric]float64)
	for _, m := range measurements {
		for k, v := range m.ValueMap() {
			if cur, ok := x[k]; !ok || v < cur {
				x[k] = v
			}
		}
	}

	return x
}

func Max(measurements []Measurement) map[threshold.Metric]float64 {
	x := make(map[threshold.Metric]float64)
	for _, m := range measurements {
		for k, v := range m.ValueMap() {
			if cur, ok := x[k]; !ok || v > cur {
				x[k] = v
			}
		}
	}

	return x
}

// Stats summarises one metric over a time range.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Summary computes Stats for every metric present in measurements.
func Summary(measurements []Measurement) map[threshold.Metric]Stats {
	mins, maxes := Min(measurements), Max(measurements)
	means, devs := Mean(measurements), StdDev(measurements)

	stats := make(map[threshold.Metric]Stats, len(means))
	for k := range means {
		stats[k] = Stats{Min: mins[k], Max: maxes[k], Mean: means[k], StdDev: devs[k]}
	}
	return stats
}
