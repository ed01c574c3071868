package threshold

import (
	"math"
	"sort"
)

var (
	green  = rgb(88, 199, 89)
	yellow = rgb(255, 209, 0)
	orange = rgb(230, 126, 14)
	red    = rgb(232, 44, 48)
	purple = rgb(143, 63, 151)
	maroon = rgb(140, 1, 4)
	sky    = rgb(52, 152, 219)
	navy   = rgb(31, 78, 121)
	brown  = rgb(160, 110, 60)
	tan    = rgb(193, 140, 74)
)

type key struct {
	d Domain
	m Metric
}

// step is a band definition before its Min and Severity are filled in.
type step struct {
	max   float64
	label string
	color RGBA
}

var inf = math.Inf(1)

func table(d Domain, m Metric, name, unit string, floor float64, steps ...step) Table {
	t := Table{Domain: d, Metric: m, Name: name, Unit: unit, Bands: make([]Band, len(steps))}
	min := floor
	for i, s := range steps {
		t.Bands[i] = Band{Min: min, Max: s.max, Label: s.label, Color: s.color, Severity: i}
		min = s.max
	}
	return t
}

var tables = []Table{
	table(Air, PM25, "PM2.5", "µg/m³", 0,
		step{25.99, "Good", green},
		step{35.99, "Fair", yellow},
		step{45.99, "Unhealthy", orange},
		step{55.99, "Very Unhealthy", red},
		step{90.99, "Acutely Unhealthy", purple},
		step{inf, "Emergency", maroon},
	),
	table(Air, PM10, "PM10", "µg/m³", 0,
		step{50.99, "Good", green},
		step{100.99, "Fair", yellow},
		step{150.99, "Unhealthy", orange},
		step{200.99, "Very Unhealthy", red},
		step{300.99, "Acutely Unhealthy", purple},
		step{inf, "Emergency", maroon},
	),
	// Good sits in the middle: both dry and humid air are bad.
	table(Air, Humidity, "Humidity", "%", 0,
		step{25.99, "Poor", red},
		step{30.99, "Fair", yellow},
		step{60.99, "Good", green},
		step{70.99, "Fair", yellow},
		step{inf, "Poor", red},
	),
	table(Air, Temperature, "Temperature", "°C", math.Inf(-1),
		step{33.99, "Good", green},
		step{41.99, "Caution", yellow},
		step{54.99, "Danger", orange},
		step{inf, "Extreme", maroon},
	),
	table(Air, Oxygen, "Oxygen", "%", 0,
		step{19.49, "Poor", red},
		step{inf, "Safe", green},
	),

	table(Water, PH, "pH", "", 0,
		step{6.49, "Too Acidic", orange},
		step{8.5, "Acceptable", green},
		step{inf, "Too Alkaline", purple},
	),
	table(Water, Temperature, "Temperature", "°C", math.Inf(-1),
		step{25.99, "Too Cold", sky},
		step{30, "Acceptable", green},
		step{inf, "Too Hot", red},
	),
	table(Water, TSS, "TSS", "mg/L", 0,
		step{50, "Acceptable", green},
		step{inf, "Too Cloudy", brown},
	),
	table(Water, TDS, "TDS", "ppm", 0,
		step{500, "Acceptable", green},
		step{inf, "High Dissolved Substances", red},
	),

	table(Soil, SoilMoisture, "Soil Moisture", "%", 0,
		step{19.99, "Dry", tan},
		step{39.99, "Low Moisture", yellow},
		step{70.99, "Optimal", green},
		step{100, "Saturated", sky},
		step{inf, "Waterlogged", navy},
	),
	table(Soil, Temperature, "Soil Temperature", "°C", math.Inf(-1),
		step{4.99, "Cold", navy},
		step{14.99, "Cool", sky},
		step{29.99, "Optimal", green},
		step{34.99, "Warm", yellow},
		step{inf, "Hot", red},
	),
	table(Soil, Humidity, "Soil Humidity", "%", 0,
		step{29.99, "Dry", tan},
		step{49.99, "Low Humidity", yellow},
		step{70.99, "Optimal", green},
		step{85.99, "High Humidity", sky},
		step{inf, "Waterlogged", navy},
	),
}

var (
	registry = make(map[key]Table, len(tables))
	byDomain = make(map[Domain][]Metric)
)

func init() {
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			panic(err)
		}
		registry[key{t.Domain, t.Metric}] = t
		byDomain[t.Domain] = append(byDomain[t.Domain], t.Metric)
	}
}

// Lookup returns a copy of the table registered for the pair.
func Lookup(d Domain, m Metric) (Table, error) {
	t, ok := registry[key{d, m}]
	if !ok {
		return Table{}, &UnknownMetricError{Domain: d, Metric: m}
	}
	return t.clone(), nil
}

// Domains returns every domain that has at least one table, sorted.
func Domains() []Domain {
	domains := make([]Domain, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
	return domains
}

// Metrics returns the metrics of a domain in registration order, or nil for an
// unknown domain.
func Metrics(d Domain) []Metric {
	ms := byDomain[d]
	if ms == nil {
		return nil
	}
	out := make([]Metric, len(ms))
	copy(out, ms)
	return out
}

// Tables returns copies of all tables of a domain in registration order.
func Tables(d Domain) []Table {
	var out []Table
	for _, m := range byDomain[d] {
		out = append(out, registry[key{d, m}].clone())
	}
	return out
}

// ParseDomain converts s to a Domain, reporting whether it is known.
func ParseDomain(s string) (Domain, bool) {
	d := Domain(s)
	_, ok := byDomain[d]
	return d, ok
}
