package stats

import (
	"sort"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// TukeyMultiplier is the IQR multiplier for Tukey fences
const TukeyMultiplier = 1.5

// Bounds holds the quartiles and the Tukey fences computed from them
type Bounds struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies inside the fences (inclusive)
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Percentile calculates the p-th percentile of sorted data using linear
// interpolation between closest ranks. p should be between 0 and 100.
func Percentile(sortedData []float64, p float64) float64 {
	if len(sortedData) == 0 {
		return 0
	}
	if len(sortedData) == 1 {
		return sortedData[0]
	}

	index := (p / 100) * float64(len(sortedData)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sortedData) {
		return sortedData[len(sortedData)-1]
	}

	weight := index - float64(lower)
	return sortedData[lower]*(1-weight) + sortedData[upper]*weight
}

// CalculateIQR returns Q1, Q3 and IQR of the non-null values
func CalculateIQR(values []float64) (q1, q3, iqr float64) {
	sorted := analytics.NonNull(values)
	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(sorted)

	q1 = Percentile(sorted, 25)
	q3 = Percentile(sorted, 75)
	return q1, q3, q3 - q1
}

// CalculateBounds returns the Tukey fences of the non-null values
func CalculateBounds(values []float64) Bounds {
	q1, q3, iqr := CalculateIQR(values)
	return Bounds{
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		Lower: q1 - TukeyMultiplier*iqr,
		Upper: q3 + TukeyMultiplier*iqr,
	}
}

// OutlierBounds computes Tukey fences for a table column
func OutlierBounds(t *analytics.Table, col string) (Bounds, error) {
	if err := t.Validate(col); err != nil {
		return Bounds{}, err
	}
	values, err := t.Column(col)
	if err != nil {
		return Bounds{}, err
	}
	return CalculateBounds(values), nil
}

// RemoveOutliers returns a new table keeping only rows whose value lies within
// the Tukey fences, and the number of rows removed. Null rows fail the range
// test and are removed as well.
func RemoveOutliers(t *analytics.Table, col string) (*analytics.Table, int, error) {
	bounds, err := OutlierBounds(t, col)
	if err != nil {
		return nil, 0, err
	}

	values := t.MustColumn(col)
	keep := make([]bool, len(values))
	for i, v := range values {
		keep[i] = bounds.Contains(v)
	}

	out := t.Filter(keep)
	removed := t.Len() - out.Len()

	logging.Info("Removed outliers",
		"column", col,
		"removed", removed,
		"lower", bounds.Lower,
		"upper", bounds.Upper)

	return out, removed, nil
}
