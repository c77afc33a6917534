package cleaning

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func createTestTable(offsets []time.Duration, values []float64) *analytics.Table {
	times := make([]time.Time, len(offsets))
	for i, off := range offsets {
		times[i] = baseTime.Add(off)
	}
	t := analytics.NewTable(times)
	t.SetColumn(analytics.DefaultValueColumn, append([]float64(nil), values...))
	return t
}

func minutes(n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = time.Duration(i) * time.Minute
	}
	return out
}

func nan() float64 { return math.NaN() }

func assertColumn(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(got[i]) {
				t.Errorf("[%d] = %v, want null", i, got[i])
			}
			continue
		}
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNewAnalyzer_EmptyTable(t *testing.T) {
	_, err := NewAnalyzer(nil, "5m", "")
	if !errors.Is(err, analytics.ErrInvalidConfig) {
		t.Errorf("nil table: expected ErrInvalidConfig, got %v", err)
	}

	_, err = NewAnalyzer(analytics.NewTable(nil), "5m", "")
	if !errors.Is(err, analytics.ErrInvalidConfig) {
		t.Errorf("empty table: expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewAnalyzer_Interval(t *testing.T) {
	tbl := createTestTable(minutes(3), []float64{1, 2, 3})

	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"5m", 5 * time.Minute},
		{"5min", 5 * time.Minute},
		{"1h", time.Hour},
		{"PT15M", 15 * time.Minute},
	}
	for _, tt := range tests {
		a, err := NewAnalyzer(tbl, tt.input, "")
		if err != nil {
			t.Fatalf("NewAnalyzer(%q) error: %v", tt.input, err)
		}
		if a.Interval() != tt.expected {
			t.Errorf("interval %q = %v, want %v", tt.input, a.Interval(), tt.expected)
		}
	}

	if _, err := NewAnalyzer(tbl, "fortnightly", ""); !errors.Is(err, analytics.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for bad interval, got %v", err)
	}
}

func TestCleanedFilename(t *testing.T) {
	tbl := createTestTable(minutes(1), []float64{1})

	a, _ := NewAnalyzer(tbl, "1m", "")
	if got := a.CleanedFilename(); got != "output_cleaned.csv" {
		t.Errorf("default filename = %q", got)
	}

	a, _ = NewAnalyzer(tbl, "1m", "TIC-101")
	if got := a.CleanedFilename(); got != "TIC-101_cleaned.csv" {
		t.Errorf("filename = %q", got)
	}
	if a.Cleaned() != nil {
		t.Error("cleaned table should be nil before a fill step")
	}
}

func TestInterpolate_Time(t *testing.T) {
	// Uneven spacing: 0, 1, 4 minutes. The gap at 1m is a quarter of the way.
	tbl := createTestTable(
		[]time.Duration{0, time.Minute, 4 * time.Minute},
		[]float64{0, nan(), 8})
	a, _ := NewAnalyzer(tbl, "1m", "")

	out, err := a.Interpolate(InterpolateTime)
	if err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}
	assertColumn(t, out.MustColumn("value"), []float64{0, 2, 8})
}

func TestInterpolate_Linear(t *testing.T) {
	tbl := createTestTable(
		[]time.Duration{0, time.Minute, 4 * time.Minute},
		[]float64{0, nan(), 8})
	a, _ := NewAnalyzer(tbl, "1m", "")

	out, err := a.Interpolate(InterpolateLinear)
	if err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}
	assertColumn(t, out.MustColumn("value"), []float64{0, 4, 8})
}

func TestInterpolate_TimeAcrossSeveralGaps(t *testing.T) {
	tbl := createTestTable(
		[]time.Duration{0, time.Minute, 2 * time.Minute, 3 * time.Minute, 5 * time.Minute, 6 * time.Minute},
		[]float64{0, nan(), 4, nan(), nan(), 12})
	a, _ := NewAnalyzer(tbl, "1m", "")

	out, err := a.Interpolate(InterpolateTime)
	if err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}
	assertColumn(t, out.MustColumn("value"), []float64{0, 2, 4, 6, 10, 12})
}

func TestInterpolate_DuplicateTimestamps(t *testing.T) {
	tbl := createTestTable(
		[]time.Duration{0, 0, 0, time.Minute, 2 * time.Minute},
		[]float64{1, nan(), 5, nan(), 9})
	a, _ := NewAnalyzer(tbl, "1m", "")

	out, err := a.Interpolate(InterpolateTime)
	if err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}
	assertColumn(t, out.MustColumn("value"), []float64{1, 1, 5, 7, 9})
}

func TestInterpolate_UnsortedTimes(t *testing.T) {
	tbl := createTestTable(
		[]time.Duration{2 * time.Minute, 0, time.Minute},
		[]float64{1, 2, nan()})
	a, _ := NewAnalyzer(tbl, "1m", "")

	_, err := a.Interpolate(InterpolateTime)
	if !errors.Is(err, analytics.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if a.Cleaned() != nil {
		t.Error("cleaned table should remain nil")
	}
}

func TestInterpolate_LeadingAndTrailing(t *testing.T) {
	tbl := createTestTable(minutes(6), []float64{nan(), 1, nan(), 3, nan(), nan()})
	a, _ := NewAnalyzer(tbl, "1m", "")

	out, err := a.Interpolate("")
	if err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}
	assertColumn(t, out.MustColumn("value"), []float64{nan(), 1, 2, 3, 3, 3})

	// raw table untouched
	if !math.IsNaN(tbl.MustColumn("value")[2]) {
		t.Error("raw table was modified")
	}
	if a.Cleaned() != out {
		t.Error("Cleaned should return the interpolated table")
	}
}

func TestInterpolate_Fill(t *testing.T) {
	values := []float64{nan(), 1, nan(), 3, nan()}

	a, _ := NewAnalyzer(createTestTable(minutes(5), values), "1m", "")
	out, err := a.Interpolate(InterpolateFFill)
	if err != nil {
		t.Fatalf("ffill error: %v", err)
	}
	assertColumn(t, out.MustColumn("value"), []float64{nan(), 1, 1, 3, 3})

	a, _ = NewAnalyzer(createTestTable(minutes(5), values), "1m", "")
	out, err = a.Interpolate(InterpolateBFill)
	if err != nil {
		t.Fatalf("bfill error: %v", err)
	}
	assertColumn(t, out.MustColumn("value"), []float64{1, 1, 3, 3, nan()})
}

func TestInterpolate_UnknownMethod(t *testing.T) {
	a, _ := NewAnalyzer(createTestTable(minutes(3), []float64{1, nan(), 3}), "1m", "")

	_, err := a.Interpolate("cubic")
	if !errors.Is(err, analytics.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if a.Cleaned() != nil {
		t.Error("cleaned table should remain nil")
	}
}

func TestImpute_Methods(t *testing.T) {
	// non-null values 1, 2, 3, 10: mean 4, median 2.5, mean abs dev 3
	values := []float64{1, 2, nan(), 3, 10}

	tests := []struct {
		method ImputeMethod
		fill   float64
	}{
		{ImputeMean, 4},
		{ImputeMedian, 2.5},
		{ImputeMAD, 3},
		{"", 2.5},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			a, _ := NewAnalyzer(createTestTable(minutes(5), values), "1m", "")
			out, err := a.Impute(tt.method)
			if err != nil {
				t.Fatalf("Impute error: %v", err)
			}
			assertColumn(t, out.MustColumn("value"), []float64{1, 2, tt.fill, 3, 10})
		})
	}
}

func TestImpute_AfterInterpolate(t *testing.T) {
	a, _ := NewAnalyzer(createTestTable(minutes(4), []float64{nan(), 2, nan(), 4}), "1m", "")
	if _, err := a.Interpolate(InterpolateLinear); err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}

	out, err := a.Impute(ImputeMean)
	if err != nil {
		t.Fatalf("Impute error: %v", err)
	}
	// leading null filled with the mean of 2, 3, 4
	assertColumn(t, out.MustColumn("value"), []float64{3, 2, 3, 4})
}

func TestImpute_InvalidMethodLeavesTableUnmodified(t *testing.T) {
	tbl := createTestTable(minutes(3), []float64{1, nan(), 3})
	a, _ := NewAnalyzer(tbl, "1m", "")

	_, err := a.Impute("mode")
	if !errors.Is(err, analytics.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if a.Cleaned() != nil {
		t.Error("cleaned table should remain nil")
	}
	if !math.IsNaN(tbl.MustColumn("value")[1]) {
		t.Error("raw table was modified")
	}

	if _, err := a.Interpolate(InterpolateFFill); err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}
	before := a.Cleaned().Clone()
	if _, err := a.Impute("mode"); err == nil {
		t.Fatal("expected error")
	}
	assertColumn(t, a.Cleaned().MustColumn("value"), before.MustColumn("value"))
}

func TestMissingRuns(t *testing.T) {
	tbl := createTestTable(minutes(8), []float64{nan(), 1, nan(), nan(), 4, 5, nan(), nan()})
	a, _ := NewAnalyzer(tbl, "1m", "")

	runs := a.MissingRuns()
	if len(runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(runs))
	}

	expected := []Run{
		{Start: baseTime, End: baseTime, Count: 1},
		{Start: baseTime.Add(2 * time.Minute), End: baseTime.Add(3 * time.Minute), Count: 2},
		{Start: baseTime.Add(6 * time.Minute), End: baseTime.Add(7 * time.Minute), Count: 2},
	}
	for i, r := range runs {
		if !r.Start.Equal(expected[i].Start) || !r.End.Equal(expected[i].End) || r.Count != expected[i].Count {
			t.Errorf("run %d = %+v, want %+v", i, r, expected[i])
		}
	}
	if runs[1].Duration() != time.Minute {
		t.Errorf("run duration = %v, want 1m", runs[1].Duration())
	}
}

func TestMissingSummary(t *testing.T) {
	// 0, 1, 2, 5 minutes: 6 rows expected at 1m, 4 present
	tbl := createTestTable(
		[]time.Duration{0, time.Minute, 2 * time.Minute, 5 * time.Minute},
		[]float64{1, nan(), 3, 4})
	a, _ := NewAnalyzer(tbl, "1m", "")

	s := a.MissingSummary()
	if s.Total != 4 || s.Missing != 1 {
		t.Errorf("total/missing = %d/%d, want 4/1", s.Total, s.Missing)
	}
	if s.MissingRatio != 0.25 {
		t.Errorf("ratio = %v, want 0.25", s.MissingRatio)
	}
	if s.ExpectedRows != 6 || s.ActualRows != 4 {
		t.Errorf("expected/actual = %d/%d, want 6/4", s.ExpectedRows, s.ActualRows)
	}
	if s.Runs != 1 || s.LongestRun != 1 {
		t.Errorf("runs/longest = %d/%d, want 1/1", s.Runs, s.LongestRun)
	}
}
