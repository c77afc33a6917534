package cleaning

import (
	"fmt"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"gonum.org/v1/gonum/interp"
)

// InterpolationMethod selects how gaps are filled from neighbouring values
type InterpolationMethod string

const (
	// InterpolateTime weights neighbours by elapsed time
	InterpolateTime InterpolationMethod = "time"
	// InterpolateLinear weights neighbours by row position
	InterpolateLinear InterpolationMethod = "linear"
	// InterpolateFFill carries the last valid value forward
	InterpolateFFill InterpolationMethod = "ffill"
	// InterpolateBFill carries the next valid value backward
	InterpolateBFill InterpolationMethod = "bfill"
)

// InterpolationMethods lists the supported methods
func InterpolationMethods() []InterpolationMethod {
	return []InterpolationMethod{InterpolateTime, InterpolateLinear, InterpolateFFill, InterpolateBFill}
}

// Interpolate fills every column of a copy of the raw table and stores it as
// the cleaned table. An empty method means time. Leading nulls are left in
// place for time, linear and ffill; trailing nulls take the last valid value
// for time and linear, and stay null for bfill.
func (a *Analyzer) Interpolate(method InterpolationMethod) (*analytics.Table, error) {
	if method == "" {
		method = InterpolateTime
	}

	var fill func(x, y []float64) error
	switch method {
	case InterpolateTime:
		fill = interpolateLinear
	case InterpolateLinear:
		fill = interpolateLinear
	case InterpolateFFill:
		fill = func(_, y []float64) error { forwardFill(y); return nil }
	case InterpolateBFill:
		fill = func(_, y []float64) error { backwardFill(y); return nil }
	default:
		return nil, fmt.Errorf("%w: unknown interpolation method %q, choose from %v",
			analytics.ErrInvalidArgument, method, InterpolationMethods())
	}

	out := a.raw.Clone()
	x := positions(out, method)
	for _, name := range out.ColumnNames() {
		if err := fill(x, out.MustColumn(name)); err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", analytics.ErrInvalidConfig, name, err)
		}
	}
	a.cleaned = out

	a.logger.Info("Interpolated missing values",
		"method", string(method),
		"rows", out.Len())
	return out, nil
}

// positions returns the x coordinate of each row: seconds since the first
// timestamp for time, the row index otherwise
func positions(t *analytics.Table, method InterpolationMethod) []float64 {
	x := make([]float64, t.Len())
	if method != InterpolateTime || t.Len() == 0 {
		for i := range x {
			x[i] = float64(i)
		}
		return x
	}
	origin := t.Times[0]
	for i, ts := range t.Times {
		x[i] = ts.Sub(origin).Seconds()
	}
	return x
}

// interpolateLinear fills nulls in y in place from a piecewise linear fit
// through the valid values. Nulls before the first valid value stay null;
// nulls after the last valid value take that value. Valid values sharing an
// x collapse to the later one, and nulls at that same x take the earlier one.
func interpolateLinear(x, y []float64) error {
	var xs, ys []float64
	first, last := -1, -1
	for i, v := range y {
		if analytics.IsNull(v) {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
		if n := len(xs); n > 0 && xs[n-1] == x[i] {
			ys[n-1] = v
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, v)
	}
	if first < 0 || first == len(y)-1 {
		return nil
	}

	var pl interp.PiecewiseLinear
	if len(xs) > 1 {
		if err := pl.Fit(xs, ys); err != nil {
			return fmt.Errorf("positions must be increasing: %w", err)
		}
	}

	prev := first
	for j := first + 1; j < len(y); j++ {
		switch {
		case !analytics.IsNull(y[j]):
			prev = j
		case j > last:
			y[j] = y[last]
		case x[j] == x[prev] || len(xs) < 2:
			y[j] = y[prev]
		default:
			y[j] = pl.Predict(x[j])
		}
	}
	return nil
}

func forwardFill(y []float64) {
	last := analytics.Null()
	for i, v := range y {
		if analytics.IsNull(v) {
			y[i] = last
			continue
		}
		last = v
	}
}

func backwardFill(y []float64) {
	next := analytics.Null()
	for i := len(y) - 1; i >= 0; i-- {
		if analytics.IsNull(y[i]) {
			y[i] = next
			continue
		}
		next = y[i]
	}
}
