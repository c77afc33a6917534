package aggregation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
)

// Function names a per-bucket reduction
type Function string

const (
	FuncAverage  Function = "average"
	FuncMin      Function = "min"
	FuncMax      Function = "max"
	FuncSum      Function = "sum"
	FuncCount    Function = "count"
	FuncStdDev   Function = "stddev"
	FuncFirst    Function = "first"
	FuncLast     Function = "last"
	FuncVariance Function = "variance"
)

// Functions lists the supported reductions
func Functions() []Function {
	return []Function{FuncAverage, FuncMin, FuncMax, FuncSum, FuncCount, FuncStdDev, FuncVariance, FuncFirst, FuncLast}
}

// ParseFunction resolves a reduction name. "avg" and "mean" are accepted for
// average.
func ParseFunction(name string) (Function, error) {
	switch n := Function(strings.ToLower(strings.TrimSpace(name))); n {
	case "avg", "mean":
		return FuncAverage, nil
	case FuncAverage, FuncMin, FuncMax, FuncSum, FuncCount, FuncStdDev, FuncVariance, FuncFirst, FuncLast:
		return n, nil
	default:
		return "", fmt.Errorf("%w: unknown aggregate %q, choose from %v", analytics.ErrInvalidArgument, name, Functions())
	}
}

// Value reduces the field with fn
func (f *Field) Value(fn Function) float64 {
	switch fn {
	case FuncAverage:
		return f.Avg()
	case FuncMin:
		return f.Min
	case FuncMax:
		return f.Max
	case FuncSum:
		return f.Sum
	case FuncCount:
		return float64(f.Count)
	case FuncStdDev:
		return f.StdDev()
	case FuncVariance:
		return f.Variance()
	case FuncFirst:
		return f.First
	case FuncLast:
		return f.Last
	default:
		return math.NaN()
	}
}

// Bucket returns the start of the granularity bucket holding t. Day-multiple
// granularities align to midnight in t's location; shorter ones align to the
// Unix epoch.
func Bucket(t time.Time, granularity time.Duration) time.Time {
	const day = 24 * time.Hour
	if granularity >= day && granularity%day == 0 {
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		days := int(granularity / day)
		if days == 1 {
			return midnight
		}
		epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, t.Location())
		elapsed := int(midnight.Sub(epoch).Hours()/24 + 0.5)
		return midnight.AddDate(0, 0, -(elapsed % days))
	}
	return t.Truncate(granularity)
}

// Aggregate reduces points into one point per non-empty bucket, in time
// order. Null values are skipped; a bucket holding only nulls is omitted.
// The input must be time ordered.
func Aggregate(points analytics.TimeSeriesData, fn Function, granularity time.Duration) (analytics.TimeSeriesData, error) {
	if granularity <= 0 {
		return nil, fmt.Errorf("%w: granularity must be positive, got %v", analytics.ErrInvalidArgument, granularity)
	}
	fn, err := ParseFunction(string(fn))
	if err != nil {
		return nil, err
	}

	out := make(analytics.TimeSeriesData, 0)
	var (
		current time.Time
		field   *Field
	)
	flush := func() {
		if field != nil {
			out = append(out, analytics.TimeSeriesPoint{Time: current, Value: field.Value(fn)})
		}
	}

	for _, p := range points {
		if analytics.IsNull(p.Value) {
			continue
		}
		b := Bucket(p.Time, granularity)
		if field != nil && b.Equal(current) {
			field.Add(p.Value, p.Time)
			continue
		}
		flush()
		current = b
		field = NewField(p.Value, p.Time)
	}
	flush()
	return out, nil
}
