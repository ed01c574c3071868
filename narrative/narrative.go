// Package narrative turns classification results into the text shown beside the
// dashboard gauges: a one-line summary and a list of recommendations keyed by
// band label.
package narrative

import (
	"fmt"

	"github.com/envdash/uda/quality"
	"github.com/envdash/uda/threshold"
)

// NoData is the caption for a reading that could not be classified.
const NoData = "No Data"

// Keys must match the band labels in package threshold exactly. A label without
// an entry gets no recommendations.
var recommendations = map[threshold.Domain]map[string][]string{
	threshold.Air: {
		"Good": {
			"Air quality is satisfactory; enjoy outdoor activities",
			"Keep windows open to ventilate indoor spaces",
		},
		"Fair": {
			"Unusually sensitive people should consider limiting prolonged outdoor exertion",
			"Monitor symptoms if you have asthma or heart disease",
		},
		"Unhealthy": {
			"Reduce prolonged outdoor activities",
			"Sensitive groups should stay indoors with windows closed",
			"Use an air purifier indoors if available",
		},
		"Very Unhealthy": {
			"Avoid prolonged outdoor activities",
			"Wear an N95 mask when going outside",
			"Run air purifiers and keep windows closed",
		},
		"Acutely Unhealthy": {
			"Avoid all outdoor activities",
			"Wear an N95 mask if you must go outside",
			"Seek medical attention if you experience breathing difficulty",
		},
		"Emergency": {
			"Stay indoors and keep all windows and doors closed",
			"Follow instructions from local health authorities",
			"Seek medical attention immediately if you feel unwell",
		},
		"Poor": {
			"Adjust ventilation or use a humidifier or dehumidifier to correct indoor air",
			"Check oxygen supply and ventilation in enclosed spaces",
		},
		"Caution": {
			"Limit strenuous activity during the hottest part of the day",
			"Drink water regularly and take breaks in the shade",
		},
		"Danger": {
			"Avoid outdoor work and exercise",
			"Watch for signs of heat exhaustion and heat stroke",
			"Stay in cooled indoor spaces where possible",
		},
		"Extreme": {
			"Stay indoors in a cooled space",
			"Check on elderly neighbours and vulnerable people",
			"Seek emergency care for any symptoms of heat stroke",
		},
		"Safe": {
			"Oxygen level is normal; no action needed",
		},
	},
	threshold.Water: {
		"Acceptable": {
			"Water is within safe limits",
			"Continue routine monitoring",
		},
		"Too Acidic": {
			"Add a neutralizing filter or alkaline dosing",
			"Inspect pipes for corrosion",
		},
		"Too Alkaline": {
			"Use an acid injection system or pH-reducing filter",
			"Check for scale build-up in pipes and fixtures",
		},
		"Too Cold": {
			"Check heaters and insulation of tanks and ponds",
		},
		"Too Hot": {
			"Provide shade or aeration to cool the water",
			"Check for heat sources near the intake",
		},
		"Too Cloudy": {
			"Run the water through sediment filtration",
			"Inspect the source for runoff or disturbed sediment",
		},
		"High Dissolved Substances": {
			"Do not drink without treatment",
			"Use reverse osmosis or distillation to reduce dissolved solids",
			"Have the water tested for specific contaminants",
		},
	},
	threshold.Soil: {
		"Dry": {
			"Irrigate soon",
			"Apply mulch to reduce evaporation",
		},
		"Low Moisture": {
			"Schedule irrigation within the next day",
		},
		"Low Humidity": {
			"Increase irrigation frequency",
			"Apply mulch to retain moisture",
		},
		"Optimal": {
			"Conditions are optimal for plant growth",
			"Maintain the current irrigation schedule",
		},
		"Saturated": {
			"Pause irrigation until the soil drains",
		},
		"High Humidity": {
			"Reduce irrigation",
			"Watch for fungal disease",
		},
		"Waterlogged": {
			"Stop irrigation",
			"Improve drainage to prevent root rot",
		},
		"Cold": {
			"Protect seedlings with covers or mulch",
			"Delay planting until the soil warms",
		},
		"Cool": {
			"Choose cool-season crops",
		},
		"Warm": {
			"Water early in the morning to reduce heat stress",
		},
		"Hot": {
			"Shade sensitive plants",
			"Increase irrigation to counter heat stress",
		},
	},
}

// RecommendationsFor returns the recommendations for a band label in a domain.
// Unknown domains and labels yield an empty, non-nil slice.
func RecommendationsFor(d threshold.Domain, label string) []string {
	recs := recommendations[d][label]
	out := make([]string, len(recs))
	copy(out, recs)
	return out
}

// Summary returns a one-line caption such as "PM2.5 is 40.0 µg/m³: Unhealthy".
func Summary(r *quality.Result) string {
	if r == nil {
		return NoData
	}

	name, unit := string(r.Metric), ""
	if t, err := threshold.Lookup(r.Domain, r.Metric); err == nil {
		name, unit = t.Name, t.Unit
	}

	if unit == "" {
		return fmt.Sprintf("%s is %.1f: %s", name, r.Value, r.Band.Label)
	}
	return fmt.Sprintf("%s is %.1f %s: %s", name, r.Value, unit, r.Band.Label)
}
