// Package aqi computes US EPA Air Quality Index values for PM2.5 and PM10. The
// air dashboard shows the AQI next to the local PM bands for comparison.
package aqi

import "math"

type bucket struct {
	lowerLimit float64
	upperLimit float64
	lowerIndex float64
	upperIndex float64
}

var (
	pm25Buckets = []bucket{
		{0, 12.0, 0, 50},
		{12.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 150.4, 151, 200},
		{150.5, 250.4, 201, 300},
		{250.5, 350.4, 301, 400},
		{350.5, 500.4, 401, 500},
	}

	pm10Buckets = []bucket{
		{0, 54, 0, 50},
		{55, 154, 51, 100},
		{155, 254, 101, 150},
		{255, 354, 151, 200},
		{355, 424, 201, 300},
		{425, 504, 301, 400},
		{505, 604, 401, 500},
	}
)

func scale(pm float64, b bucket) float64 {
	return ((b.upperIndex-b.lowerIndex)/(b.upperLimit-b.lowerLimit))*(pm-b.lowerLimit) + b.lowerIndex
}

// truncate drops digits past the given number of decimals, as the EPA requires
// before looking up a bucket.
func truncate(pm float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Trunc(pm*p) / p
}

func aqi(pm float64, buckets []bucket) int {
	if pm < buckets[0].lowerLimit {
		return 0
	}

	for _, b := range buckets {
		if pm <= b.upperLimit {
			// Concentrations between buckets (e.g. 12.05) belong to the upper one.
			if pm < b.lowerLimit {
				pm = b.lowerLimit
			}
			return int(math.Round(scale(pm, b)))
		}
	}

	return 500
}

// PM25 returns the AQI for a 24-hour PM2.5 concentration in µg/m³.
func PM25(pm float64) int {
	return aqi(truncate(pm, 1), pm25Buckets)
}

// PM10 returns the AQI for a 24-hour PM10 concentration in µg/m³.
func PM10(pm float64) int {
	return aqi(truncate(pm, 0), pm10Buckets)
}

type category struct {
	max   int
	name  string
	abbrv string
}

var categories = []category{
	{50, "Good", "G"},
	{100, "Moderate", "M"},
	{150, "Unhealthy for Sensitive Groups", "USG"},
	{200, "Unhealthy", "U"},
	{300, "Very Unhealthy", "VU"},
	{math.MaxInt, "Hazardous", "H"},
}

func categoryOf(aqi int) category {
	for _, c := range categories {
		if aqi <= c.max {
			return c
		}
	}
	return categories[len(categories)-1]
}

// String returns the EPA category name of an AQI value.
func String(aqi int) string {
	return categoryOf(aqi).name
}

// Abbrv returns the short form of the EPA category name.
func Abbrv(aqi int) string {
	return categoryOf(aqi).abbrv
}
