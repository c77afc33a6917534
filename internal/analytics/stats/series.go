package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
)

// Series exposes descriptive statistics over one column of a table
type Series struct {
	table  *analytics.Table
	column string
}

// NewSeries validates the table and binds it to a column
func NewSeries(t *analytics.Table, col string) (*Series, error) {
	if col == "" {
		col = analytics.DefaultValueColumn
	}
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("%w: provided table is empty or nil", analytics.ErrInvalidConfig)
	}
	if !t.HasColumn(col) {
		return nil, fmt.Errorf("%w: expected a column named %q", analytics.ErrInvalidConfig, col)
	}
	return &Series{table: t, column: col}, nil
}

func (s *Series) values() []float64 {
	return s.table.MustColumn(s.column)
}

// Mean returns the column mean
func (s *Series) Mean() float64 {
	return Mean(s.values())
}

// Median returns the column median
func (s *Series) Median() float64 {
	return Median(s.values())
}

// MeanAbsoluteDeviation returns the column mean absolute deviation
func (s *Series) MeanAbsoluteDeviation() float64 {
	return MeanAbsoluteDeviation(s.values())
}

// StandardDeviation returns the column sample standard deviation
func (s *Series) StandardDeviation() float64 {
	return StdDev(s.values())
}

// RollingMedian filters rows to [start, end] (nil bounds are open) and returns
// a table holding the trailing median of the column over window rows. The
// first window-1 rows, and any window containing a null, are null.
func (s *Series) RollingMedian(window int, start, end *time.Time) (*analytics.Table, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: window must be at least 1, got %d", analytics.ErrInvalidArgument, window)
	}

	filtered := s.table.Between(start, end)
	values := filtered.MustColumn(s.column)

	out := analytics.NewTable(filtered.Times)
	out.SetColumn(fmt.Sprintf("rolling_median_%d", window), rollingMedian(values, window))
	return out, nil
}

func rollingMedian(values []float64, window int) []float64 {
	result := analytics.NullColumn(len(values))
	buf := make([]float64, window)

	for i := window - 1; i < len(values); i++ {
		copy(buf, values[i-window+1:i+1])
		hasNull := false
		for _, v := range buf {
			if analytics.IsNull(v) {
				hasNull = true
				break
			}
		}
		if hasNull {
			continue
		}
		sort.Float64s(buf)
		result[i] = sortedMedian(buf)
	}
	return result
}

// Summary holds descriptive statistics for a column
type Summary struct {
	Count  int     `json:"count"`
	Nulls  int     `json:"nulls"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	MAD    float64 `json:"mad"`
}

// Describe summarizes the column
func (s *Series) Describe() Summary {
	values := s.values()
	clean := analytics.NonNull(values)

	summary := Summary{
		Count:  len(clean),
		Nulls:  len(values) - len(clean),
		Mean:   Mean(clean),
		StdDev: StdDev(clean),
		Median: Median(clean),
		MAD:    MeanAbsoluteDeviation(clean),
		Min:    math.NaN(),
		Max:    math.NaN(),
		Q1:     math.NaN(),
		Q3:     math.NaN(),
	}

	if len(clean) > 0 {
		sort.Float64s(clean)
		summary.Min = clean[0]
		summary.Max = clean[len(clean)-1]
		summary.Q1 = Percentile(clean, 25)
		summary.Q3 = Percentile(clean, 75)
	}
	return summary
}
