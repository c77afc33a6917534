// Package analytics provides the time-indexed table shared by the feature,
// classification, TTF and statistics packages.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultValueColumn is the column holding raw tag values
const DefaultValueColumn = "value"

// TimeSeriesPoint represents a single time-series data point with time and value.
type TimeSeriesPoint struct {
	Time  time.Time
	Value float64
}

// TimeSeriesData represents a collection of time-series data points
type TimeSeriesData []TimeSeriesPoint

// Values extracts just the values from the time series
func (ts TimeSeriesData) Values() []float64 {
	values := make([]float64, len(ts))
	for i, p := range ts {
		values[i] = p.Value
	}
	return values
}

// Times extracts just the times from the time series
func (ts TimeSeriesData) Times() []time.Time {
	times := make([]time.Time, len(ts))
	for i, p := range ts {
		times[i] = p.Time
	}
	return times
}

// Null returns the value used to mark a missing cell
func Null() float64 {
	return math.NaN()
}

// IsNull reports whether v marks a missing cell
func IsNull(v float64) bool {
	return math.IsNaN(v)
}

// NullColumn returns a column of n missing cells
func NullColumn(n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = math.NaN()
	}
	return col
}

// Table is an in-memory time-indexed table with numeric columns.
// Missing cells are NaN. The index must be non-decreasing for rolling,
// lag and slope computations; duplicate timestamps are kept.
type Table struct {
	Times   []time.Time
	Status  []Status
	columns map[string][]float64
	order   []string
}

// NewTable creates a table with the given index and no columns
func NewTable(times []time.Time) *Table {
	return &Table{
		Times:   times,
		columns: make(map[string][]float64),
	}
}

// FromPoints creates a table with a single value column
func FromPoints(points TimeSeriesData, valueCol string) *Table {
	if valueCol == "" {
		valueCol = DefaultValueColumn
	}
	t := NewTable(points.Times())
	t.SetColumn(valueCol, points.Values())
	return t
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Times)
}

// HasColumn reports whether the named column exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns the named column or ErrColumnNotFound
func (t *Table) Column(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return col, nil
}

// MustColumn returns the named column, or an all-null column when it is absent
func (t *Table) MustColumn(name string) []float64 {
	if col, ok := t.columns[name]; ok {
		return col
	}
	return NullColumn(t.Len())
}

// SetColumn adds or overwrites a column. The slice length must match the index.
func (t *Table) SetColumn(name string, values []float64) {
	if len(values) != t.Len() {
		panic(fmt.Sprintf("analytics: column %q has %d rows, table has %d", name, len(values), t.Len()))
	}
	if _, exists := t.columns[name]; !exists {
		t.order = append(t.order, name)
	}
	t.columns[name] = values
}

// ColumnNames returns column names in insertion order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	out := &Table{
		Times:   append([]time.Time(nil), t.Times...),
		columns: make(map[string][]float64, len(t.columns)),
		order:   append([]string(nil), t.order...),
	}
	if t.Status != nil {
		out.Status = append([]Status(nil), t.Status...)
	}
	for name, col := range t.columns {
		out.columns[name] = append([]float64(nil), col...)
	}
	return out
}

// Filter returns a new table containing rows where keep is true
func (t *Table) Filter(keep []bool) *Table {
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}

	out := &Table{
		Times:   make([]time.Time, 0, n),
		columns: make(map[string][]float64, len(t.columns)),
		order:   append([]string(nil), t.order...),
	}
	for name := range t.columns {
		out.columns[name] = make([]float64, 0, n)
	}
	if t.Status != nil {
		out.Status = make([]Status, 0, n)
	}

	for i, k := range keep {
		if !k {
			continue
		}
		out.Times = append(out.Times, t.Times[i])
		for name, col := range t.columns {
			out.columns[name] = append(out.columns[name], col[i])
		}
		if t.Status != nil {
			out.Status = append(out.Status, t.Status[i])
		}
	}
	return out
}

// Between returns rows whose timestamp lies within [start, end].
// A nil bound is open.
func (t *Table) Between(start, end *time.Time) *Table {
	keep := make([]bool, t.Len())
	for i, ts := range t.Times {
		keep[i] = (start == nil || !ts.Before(*start)) && (end == nil || !ts.After(*end))
	}
	return t.Filter(keep)
}

// IsSorted reports whether the index is non-decreasing
func (t *Table) IsSorted() bool {
	return sort.SliceIsSorted(t.Times, func(i, j int) bool {
		return t.Times[i].Before(t.Times[j])
	})
}

// Points returns the non-null cells of a column as time-series points
func (t *Table) Points(col string) (TimeSeriesData, error) {
	values, err := t.Column(col)
	if err != nil {
		return nil, err
	}
	points := make(TimeSeriesData, 0, len(values))
	for i, v := range values {
		if IsNull(v) {
			continue
		}
		points = append(points, TimeSeriesPoint{Time: t.Times[i], Value: v})
	}
	return points, nil
}

// Validate checks that the table can enter the pipeline: non-empty, time
// ordered, and carrying the value column.
func (t *Table) Validate(valueCol string) error {
	if t == nil || t.Len() == 0 {
		return fmt.Errorf("%w: table is empty or nil", ErrInvalidConfig)
	}
	if !t.HasColumn(valueCol) {
		return fmt.Errorf("%w: expected a column named %q", ErrInvalidConfig, valueCol)
	}
	if !t.IsSorted() {
		return fmt.Errorf("%w: index is not time ordered", ErrInvalidConfig)
	}
	return nil
}

// NonNull returns the non-null values of a slice
func NonNull(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !IsNull(v) {
			out = append(out, v)
		}
	}
	return out
}
