// Package anomaly labels each table row with a status using an ordered rule
// cascade over engineered features, and measures the time from anomalous rows
// to the next alarm.
package anomaly

import (
	"math"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/features"
)

// FeatureWindow is the window whose rolling columns the cascade consults
const FeatureWindow = features.DefaultWindow

// Thresholds holds the alarm limits for a tag
type Thresholds struct {
	Low  float64 `json:"low_alarm" mapstructure:"low_alarm"`
	High float64 `json:"high_alarm" mapstructure:"high_alarm"`
}

// columns is the column set a rule reads
type columns struct {
	value        []float64
	sigma        []float64
	slope        []float64
	lagDiff      []float64
	rollingSlope []float64
	rollingStd   []float64
	rollingMAD   []float64
}

func readColumns(t *analytics.Table, valueCol string) columns {
	return columns{
		value:        t.MustColumn(valueCol),
		sigma:        t.MustColumn(features.ColSigmaLevel),
		slope:        t.MustColumn(features.ColSlope),
		lagDiff:      t.MustColumn(features.ColLagDiff),
		rollingSlope: t.MustColumn(features.RollingSlopeColumn(FeatureWindow)),
		rollingStd:   t.MustColumn(features.RollingStdColumn(FeatureWindow)),
		rollingMAD:   t.MustColumn(features.RollingMADColumn(FeatureWindow)),
	}
}

// rule assigns status to every row its mask selects, unless an earlier rule
// already claimed the row
type rule struct {
	status Status
	match  func(c columns, th Thresholds) []bool
}

// Status is an alias to the shared analytics.Status type
type Status = analytics.Status

// cascade is the fixed rule list in priority order; first match wins.
var cascade = []rule{
	{status: analytics.StatusBadData, match: matchBadData},
	{status: analytics.StatusLowAlarm, match: matchLowAlarm},
	{status: analytics.StatusHighAlarm, match: matchHighAlarm},
	{status: analytics.StatusAnomaly, match: matchAnomaly},
	{status: analytics.StatusNormal, match: matchAll},
}

func matchBadData(c columns, _ Thresholds) []bool {
	return mask(len(c.value), func(i int) bool { return analytics.IsNull(c.value[i]) })
}

func matchLowAlarm(c columns, th Thresholds) []bool {
	return mask(len(c.value), func(i int) bool { return c.value[i] < th.Low })
}

func matchHighAlarm(c columns, th Thresholds) []bool {
	return mask(len(c.value), func(i int) bool { return c.value[i] > th.High })
}

// matchAnomaly ORs the feature predicates. sigma > 3 is subsumed by sigma > 2
// and never decides the outcome on its own.
func matchAnomaly(c columns, _ Thresholds) []bool {
	n := len(c.value)
	predicates := [][]bool{
		greater(c.sigma, 3),
		and(greater(abs(c.slope), 3), greater(abs(c.lagDiff), 3)),
		greater(abs(c.rollingSlope), 0.5),
		greater(c.rollingStd, 1),
		greater(c.sigma, 2),
		greater(c.rollingMAD, 2),
	}

	out := make([]bool, n)
	for _, p := range predicates {
		for i := range out {
			out[i] = out[i] || p[i]
		}
	}
	return out
}

func matchAll(c columns, _ Thresholds) []bool {
	return mask(len(c.value), func(int) bool { return true })
}

func mask(n int, fn func(i int) bool) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = fn(i)
	}
	return out
}

// greater compares element-wise; null cells compare false
func greater(values []float64, limit float64) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = v > limit
	}
	return out
}

func abs(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Abs(v)
	}
	return out
}

func and(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] && b[i]
	}
	return out
}
