// Package features derives per-row columns (global deviations, sigma level,
// first differences, trailing-window statistics and lags) from a value column.
//
// Every function mutates the table it is given and returns it, so calls can be
// chained. A missing source column is reported as analytics.ErrColumnNotFound.
package features

import (
	"fmt"
	"math"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/stats"
	"gonum.org/v1/gonum/stat"
)

// DefaultWindow is the trailing window used when none is configured
const DefaultWindow = 5

// Derived column names
const (
	ColDeviationFromMean = "deviation_from_mean"
	ColAbsDeviation      = "abs_deviation"
	ColSigmaLevel        = "sigma_level"
	ColDeviationMedian   = "deviation_mad"
	ColAbsDevMedian      = "abs_dev_mad"
	ColSlope             = "slope"
	ColLag1              = "lag1"
	ColLagDiff           = "lag_diff"
)

// RollingMeanColumn returns the rolling mean column name for a window
func RollingMeanColumn(window int) string { return fmt.Sprintf("rolling_mean_%d", window) }

// RollingStdColumn returns the rolling std column name for a window
func RollingStdColumn(window int) string { return fmt.Sprintf("rolling_std_%d", window) }

// RollingMADColumn returns the rolling MAD column name for a window
func RollingMADColumn(window int) string { return fmt.Sprintf("rolling_mad_%d", window) }

// RollingSlopeColumn returns the rolling slope column name for a window
func RollingSlopeColumn(window int) string { return fmt.Sprintf("rolling_slope_%d", window) }

// DeviationFromMean adds the deviation from the global mean and its absolute value
func DeviationFromMean(t *analytics.Table, col string) (*analytics.Table, error) {
	values, err := t.Column(col)
	if err != nil {
		return t, err
	}

	mean := stats.Mean(values)
	dev := make([]float64, len(values))
	abs := make([]float64, len(values))
	for i, v := range values {
		dev[i] = v - mean
		abs[i] = math.Abs(dev[i])
	}

	t.SetColumn(ColDeviationFromMean, dev)
	t.SetColumn(ColAbsDeviation, abs)
	return t, nil
}

// DeviationFromMedian adds the deviation from the global median and its absolute value
func DeviationFromMedian(t *analytics.Table, col string) (*analytics.Table, error) {
	values, err := t.Column(col)
	if err != nil {
		return t, err
	}

	median := stats.Median(values)
	dev := make([]float64, len(values))
	abs := make([]float64, len(values))
	for i, v := range values {
		dev[i] = v - median
		abs[i] = math.Abs(dev[i])
	}

	t.SetColumn(ColDeviationMedian, dev)
	t.SetColumn(ColAbsDevMedian, abs)
	return t, nil
}

// SigmaLevel adds how many sample standard deviations each value lies from the
// global mean. DeviationFromMean runs first if abs_deviation is missing.
// A zero or undefined std produces non-finite values.
func SigmaLevel(t *analytics.Table, col string) (*analytics.Table, error) {
	values, err := t.Column(col)
	if err != nil {
		return t, err
	}

	if !t.HasColumn(ColAbsDeviation) {
		if _, err := DeviationFromMean(t, col); err != nil {
			return t, err
		}
	}

	std := stats.StdDev(values)
	abs := t.MustColumn(ColAbsDeviation)
	sigma := make([]float64, len(abs))
	for i, a := range abs {
		sigma[i] = a / std
	}

	t.SetColumn(ColSigmaLevel, sigma)
	return t, nil
}

// Slope adds the first difference against the preceding row; row 0 is null
func Slope(t *analytics.Table, col string) (*analytics.Table, error) {
	values, err := t.Column(col)
	if err != nil {
		return t, err
	}

	slope := analytics.NullColumn(len(values))
	for i := 1; i < len(values); i++ {
		slope[i] = values[i] - values[i-1]
	}

	t.SetColumn(ColSlope, slope)
	return t, nil
}

// RollingFeatures adds the trailing mean, sample std and median absolute
// deviation over window rows. The first window-1 rows are null, as is any
// window containing a null.
func RollingFeatures(t *analytics.Table, col string, window int) (*analytics.Table, error) {
	values, err := t.Column(col)
	if err != nil {
		return t, err
	}
	if window < 1 {
		return t, fmt.Errorf("%w: window must be at least 1, got %d", analytics.ErrInvalidArgument, window)
	}

	means := analytics.NullColumn(len(values))
	stds := analytics.NullColumn(len(values))
	mads := analytics.NullColumn(len(values))

	forEachWindow(values, window, func(i int, w []float64) {
		means[i] = stat.Mean(w, nil)
		if window > 1 {
			stds[i] = stat.StdDev(w, nil)
		}
		mads[i] = stats.MedianAbsoluteDeviation(w)
	})

	t.SetColumn(RollingMeanColumn(window), means)
	t.SetColumn(RollingStdColumn(window), stds)
	t.SetColumn(RollingMADColumn(window), mads)
	return t, nil
}

// RollingSlope adds the least-squares slope of each trailing window against
// positions 0..window-1. The first window-1 rows are null. When the x
// deviations sum to zero (window of 1) the slope is 0.
func RollingSlope(t *analytics.Table, col string, window int) (*analytics.Table, error) {
	values, err := t.Column(col)
	if err != nil {
		return t, err
	}
	if window < 1 {
		return t, fmt.Errorf("%w: window must be at least 1, got %d", analytics.ErrInvalidArgument, window)
	}

	x := make([]float64, window)
	for i := range x {
		x[i] = float64(i)
	}

	slopes := analytics.NullColumn(len(values))
	forEachWindow(values, window, func(i int, w []float64) {
		slopes[i] = WindowSlope(x, w)
	})

	t.SetColumn(RollingSlopeColumn(window), slopes)
	return t, nil
}

// WindowSlope returns the OLS slope of y against x, or 0 when x has no variance
func WindowSlope(x, y []float64) float64 {
	xMean := stat.Mean(x, nil)
	var denominator float64
	for _, xi := range x {
		denominator += (xi - xMean) * (xi - xMean)
	}
	if denominator == 0 {
		return 0
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	return beta
}

// LagFeatures adds the previous row's value and the difference to it
func LagFeatures(t *analytics.Table, col string) (*analytics.Table, error) {
	values, err := t.Column(col)
	if err != nil {
		return t, err
	}

	lag := analytics.NullColumn(len(values))
	diff := analytics.NullColumn(len(values))
	for i := 1; i < len(values); i++ {
		lag[i] = values[i-1]
		diff[i] = values[i] - lag[i]
	}

	t.SetColumn(ColLag1, lag)
	t.SetColumn(ColLagDiff, diff)
	return t, nil
}

// GenerateAll runs every feature step in a fixed order
func GenerateAll(t *analytics.Table, col string, window int) (*analytics.Table, error) {
	steps := []func(*analytics.Table) (*analytics.Table, error){
		func(t *analytics.Table) (*analytics.Table, error) { return DeviationFromMean(t, col) },
		func(t *analytics.Table) (*analytics.Table, error) { return DeviationFromMedian(t, col) },
		func(t *analytics.Table) (*analytics.Table, error) { return SigmaLevel(t, col) },
		func(t *analytics.Table) (*analytics.Table, error) { return Slope(t, col) },
		func(t *analytics.Table) (*analytics.Table, error) { return RollingFeatures(t, col, window) },
		func(t *analytics.Table) (*analytics.Table, error) { return RollingSlope(t, col, window) },
		func(t *analytics.Table) (*analytics.Table, error) { return LagFeatures(t, col) },
	}

	for _, step := range steps {
		if _, err := step(t); err != nil {
			return t, err
		}
	}
	return t, nil
}

// forEachWindow calls fn for every full trailing window free of nulls
func forEachWindow(values []float64, window int, fn func(i int, w []float64)) {
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNull(w) {
			continue
		}
		fn(i, w)
	}
}

func hasNull(values []float64) bool {
	for _, v := range values {
		if analytics.IsNull(v) {
			return true
		}
	}
	return false
}
