package cleaning

import (
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
)

// Run is a contiguous span of null values
type Run struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

// Duration returns the time covered by the run
func (r Run) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Summary describes missing data in the value column
type Summary struct {
	Total        int           `json:"total"`
	Missing      int           `json:"missing"`
	MissingRatio float64       `json:"missing_ratio"`
	Interval     time.Duration `json:"interval"`
	ExpectedRows int           `json:"expected_rows"`
	ActualRows   int           `json:"actual_rows"`
	Runs         int           `json:"runs"`
	LongestRun   int           `json:"longest_run"`
}

// MissingRuns returns the contiguous null spans of the value column in time
// order. A missing value column is one run covering the whole table.
func (a *Analyzer) MissingRuns() []Run {
	values := a.raw.MustColumn(a.valueColumn)

	var runs []Run
	start := -1
	for i, v := range values {
		if analytics.IsNull(v) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, a.run(start, i-1))
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, a.run(start, len(values)-1))
	}
	return runs
}

func (a *Analyzer) run(from, to int) Run {
	return Run{
		Start: a.raw.Times[from],
		End:   a.raw.Times[to],
		Count: to - from + 1,
	}
}

// MissingSummary counts null cells and compares the row count with the number
// of rows the sampling interval implies between the first and last timestamps
func (a *Analyzer) MissingSummary() Summary {
	values := a.raw.MustColumn(a.valueColumn)
	n := len(values)
	missing := n - len(analytics.NonNull(values))

	s := Summary{
		Total:      n,
		Missing:    missing,
		Interval:   a.interval,
		ActualRows: n,
	}
	if n > 0 {
		s.MissingRatio = float64(missing) / float64(n)
		span := a.raw.Times[n-1].Sub(a.raw.Times[0])
		s.ExpectedRows = int(span/a.interval) + 1
	}

	runs := a.MissingRuns()
	s.Runs = len(runs)
	for _, r := range runs {
		if r.Count > s.LongestRun {
			s.LongestRun = r.Count
		}
	}

	a.logger.Debug("Missing data summary",
		"total", s.Total,
		"missing", s.Missing,
		"expected_rows", s.ExpectedRows,
		"runs", s.Runs)
	return s
}
