// Package stats provides descriptive statistics and IQR outlier filtering
// over table columns. Null cells are ignored by every statistic.
package stats

import (
	"math"
	"sort"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the mean of the non-null values, NaN when there are none
func Mean(values []float64) float64 {
	clean := analytics.NonNull(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	return stat.Mean(clean, nil)
}

// StdDev returns the sample standard deviation (n-1) of the non-null values.
// Fewer than two values yields NaN.
func StdDev(values []float64) float64 {
	clean := analytics.NonNull(values)
	if len(clean) < 2 {
		return math.NaN()
	}
	return stat.StdDev(clean, nil)
}

// Median returns the median of the non-null values, averaging the two middle
// values for even counts
func Median(values []float64) float64 {
	clean := analytics.NonNull(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	return sortedMedian(clean)
}

func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MeanAbsoluteDeviation returns mean(|x - mean(x)|) over the non-null values
func MeanAbsoluteDeviation(values []float64) float64 {
	clean := analytics.NonNull(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(clean, nil)
	var sum float64
	for _, v := range clean {
		sum += math.Abs(v - mean)
	}
	return sum / float64(len(clean))
}

// MedianAbsoluteDeviation returns median(|x - median(x)|).
// Unlike the other statistics it does not skip nulls: a null anywhere in the
// input yields NaN, matching trailing-window semantics.
func MedianAbsoluteDeviation(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	for _, v := range values {
		if analytics.IsNull(v) {
			return math.NaN()
		}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	med := sortedMedian(sorted)

	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	sort.Float64s(dev)
	return sortedMedian(dev)
}
