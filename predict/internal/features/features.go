// Package features turns raw telemetry payloads into the normalized feature
// map the risk model scores.
package features

import (
	"math"
	"time"

	"github.com/carepulse-systems/carepulse-stack/common/events"
	"github.com/carepulse-systems/carepulse-stack/predict/internal/model"
)

// metricAliases maps wire metric types onto canonical feature names.
// Different device firmwares report the same vital under different names.
var metricAliases = map[string]string{
	"movement":          "activity",
	"hr":                "heart_rate",
	"hrv":               "heart_rate_variability",
	"step_count":        "steps",
	"oxygen_saturation": "spo2",
	"acc_x":             "accelerometer_x",
	"acc_y":             "accelerometer_y",
	"acc_z":             "accelerometer_z",
}

// Extract builds the feature map for one telemetry batch. eventTime is the
// envelope timestamp, used for time-of-day features when metrics carry no
// timestamps of their own.
func Extract(data *events.TelemetryData, eventTime time.Time) model.Features {
	f := model.Features{}
	values := map[string]float64{}
	var latest time.Time

	for _, metric := range data.Metrics {
		name := metric.Type
		if canonical, ok := metricAliases[name]; ok {
			name = canonical
		}
		v, ok := normalize(name, metric.Value)
		if !ok {
			continue
		}
		// First reading of a type wins; later duplicates are ignored.
		if _, seen := values[name]; !seen {
			values[name] = v
		}
		if metric.Timestamp.After(latest) {
			latest = metric.Timestamp
		}
	}

	for _, name := range []string{
		"activity", "heart_rate", "heart_rate_variability", "steps", "spo2",
	} {
		if v, ok := values[name]; ok {
			f[name] = v
		}
	}

	// Prefer computing the magnitude from raw axes; fall back to a
	// device-computed magnitude.
	x, okX := values["accelerometer_x"]
	y, okY := values["accelerometer_y"]
	z, okZ := values["accelerometer_z"]
	if okX && okY && okZ {
		f["accelerometer_magnitude"] = math.Sqrt(x*x + y*y + z*z)
	} else if m, ok := values["accelerometer_magnitude"]; ok {
		f["accelerometer_magnitude"] = m
	}

	ts := eventTime
	if !latest.IsZero() {
		ts = latest
	}
	hour := ts.Hour()
	f["hour"] = float64(hour)
	if hour >= 6 && hour < 22 {
		f["time_of_day"] = "day"
	} else {
		f["time_of_day"] = "night"
	}

	if data.Location != nil {
		f["has_location"] = true
		f["location_accuracy"] = data.Location.Accuracy
	}

	return f
}

// normalize clamps a metric value into its physiologically plausible range.
// NaN and infinite readings are dropped.
func normalize(name string, value float64) (float64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	switch name {
	case "heart_rate":
		return math.Max(30, math.Min(200, value)), true
	case "spo2":
		return math.Max(0, math.Min(100, value)), true
	case "activity":
		return math.Max(0, math.Min(1, value)), true
	case "steps":
		return math.Max(0, value), true
	}
	return value, true
}
