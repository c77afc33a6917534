// Package aggregation reduces raw datapoints into fixed-granularity buckets
// using running statistics.
package aggregation

import (
	"math"
	"time"
)

// Field holds running statistics for the values of one bucket
type Field struct {
	Count      int64   // Number of non-null values
	Sum        float64 // Sum of values
	Min        float64 // Minimum
	Max        float64 // Maximum
	SumSquares float64 // For variance calculation
	First      float64 // Earliest value
	Last       float64 // Latest value
	FirstTime  time.Time
	LastTime   time.Time
}

// NewField creates a field from a single value and its timestamp
func NewField(value float64, observedAt time.Time) *Field {
	return &Field{
		Count:      1,
		Sum:        value,
		Min:        value,
		Max:        value,
		SumSquares: value * value,
		First:      value,
		Last:       value,
		FirstTime:  observedAt,
		LastTime:   observedAt,
	}
}

// Add folds a value into the field
func (f *Field) Add(value float64, observedAt time.Time) {
	f.Count++
	f.Sum += value
	f.SumSquares += value * value

	if value < f.Min {
		f.Min = value
	}
	if value > f.Max {
		f.Max = value
	}
	if observedAt.Before(f.FirstTime) {
		f.First, f.FirstTime = value, observedAt
	}
	if !observedAt.Before(f.LastTime) {
		f.Last, f.LastTime = value, observedAt
	}
}

// Merge combines another field into this one
func (f *Field) Merge(other *Field) {
	f.Count += other.Count
	f.Sum += other.Sum
	f.SumSquares += other.SumSquares
	f.Min = math.Min(f.Min, other.Min)
	f.Max = math.Max(f.Max, other.Max)
	if other.FirstTime.Before(f.FirstTime) {
		f.First, f.FirstTime = other.First, other.FirstTime
	}
	if !other.LastTime.Before(f.LastTime) {
		f.Last, f.LastTime = other.Last, other.LastTime
	}
}

// Avg returns the mean of the values
func (f *Field) Avg() float64 {
	if f.Count == 0 {
		return math.NaN()
	}
	return f.Sum / float64(f.Count)
}

// Variance returns the sample variance, or 0 for a single value
func (f *Field) Variance() float64 {
	if f.Count <= 1 {
		return 0
	}
	n := float64(f.Count)
	v := (f.SumSquares - f.Sum*f.Sum/n) / (n - 1)
	if v < 0 {
		// rounding on near-constant buckets
		return 0
	}
	return v
}

// StdDev returns the sample standard deviation
func (f *Field) StdDev() float64 {
	return math.Sqrt(f.Variance())
}
