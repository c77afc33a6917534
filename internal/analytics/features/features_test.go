package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
)

func createTestTable(values []float64) *analytics.Table {
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, len(values))
	for i := range values {
		times[i] = baseTime.Add(time.Duration(i) * time.Minute)
	}
	t := analytics.NewTable(times)
	t.SetColumn("value", append([]float64(nil), values...))
	return t
}

func approxEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) < 1e-9
}

func TestDeviationFromMean(t *testing.T) {
	tbl := createTestTable([]float64{1, 2, 3, 6})
	if _, err := DeviationFromMean(tbl, "value"); err != nil {
		t.Fatalf("DeviationFromMean error: %v", err)
	}

	expected := []float64{-2, -1, 0, 3}
	dev := tbl.MustColumn(ColDeviationFromMean)
	abs := tbl.MustColumn(ColAbsDeviation)
	for i := range expected {
		if !approxEqual(dev[i], expected[i]) {
			t.Errorf("deviation[%d] = %v, want %v", i, dev[i], expected[i])
		}
		if !approxEqual(abs[i], math.Abs(expected[i])) {
			t.Errorf("abs_deviation[%d] = %v, want %v", i, abs[i], math.Abs(expected[i]))
		}
	}
}

func TestDeviationFromMedian(t *testing.T) {
	tbl := createTestTable([]float64{1, 2, 3, 100})
	if _, err := DeviationFromMedian(tbl, "value"); err != nil {
		t.Fatalf("DeviationFromMedian error: %v", err)
	}

	// median 2.5
	expected := []float64{-1.5, -0.5, 0.5, 97.5}
	dev := tbl.MustColumn(ColDeviationMedian)
	for i := range expected {
		if !approxEqual(dev[i], expected[i]) {
			t.Errorf("deviation_mad[%d] = %v, want %v", i, dev[i], expected[i])
		}
	}
}

func TestSigmaLevel_RunsDeviationFirst(t *testing.T) {
	tbl := createTestTable([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if _, err := SigmaLevel(tbl, "value"); err != nil {
		t.Fatalf("SigmaLevel error: %v", err)
	}
	if !tbl.HasColumn(ColAbsDeviation) {
		t.Fatal("abs_deviation should be created")
	}

	// mean 5, sample std sqrt(32/7)
	std := math.Sqrt(32.0 / 7.0)
	sigma := tbl.MustColumn(ColSigmaLevel)
	if !approxEqual(sigma[7], 4/std) {
		t.Errorf("sigma[7] = %v, want %v", sigma[7], 4/std)
	}
	if !approxEqual(sigma[4], 0) {
		t.Errorf("sigma[4] = %v, want 0", sigma[4])
	}
}

func TestSigmaLevel_ConstantSeriesIsNonFinite(t *testing.T) {
	tbl := createTestTable([]float64{3, 3, 3})
	if _, err := SigmaLevel(tbl, "value"); err != nil {
		t.Fatalf("SigmaLevel error: %v", err)
	}
	for i, s := range tbl.MustColumn(ColSigmaLevel) {
		if !math.IsNaN(s) {
			t.Errorf("sigma[%d] = %v, want NaN (0/0)", i, s)
		}
	}
}

func TestSlopeAndLag(t *testing.T) {
	tbl := createTestTable([]float64{1, 4, 2, math.NaN(), 5})
	if _, err := Slope(tbl, "value"); err != nil {
		t.Fatalf("Slope error: %v", err)
	}
	if _, err := LagFeatures(tbl, "value"); err != nil {
		t.Fatalf("LagFeatures error: %v", err)
	}

	slope := tbl.MustColumn(ColSlope)
	lag := tbl.MustColumn(ColLag1)
	diff := tbl.MustColumn(ColLagDiff)

	expectedSlope := []float64{math.NaN(), 3, -2, math.NaN(), math.NaN()}
	expectedLag := []float64{math.NaN(), 1, 4, 2, math.NaN()}
	for i := range expectedSlope {
		if !approxEqual(slope[i], expectedSlope[i]) {
			t.Errorf("slope[%d] = %v, want %v", i, slope[i], expectedSlope[i])
		}
		if !approxEqual(diff[i], expectedSlope[i]) {
			t.Errorf("lag_diff[%d] = %v, want %v", i, diff[i], expectedSlope[i])
		}
		if !approxEqual(lag[i], expectedLag[i]) {
			t.Errorf("lag1[%d] = %v, want %v", i, lag[i], expectedLag[i])
		}
	}
}

func TestRollingFeatures(t *testing.T) {
	tbl := createTestTable([]float64{1, 2, 3, 4, 100, 6})
	if _, err := RollingFeatures(tbl, "value", 3); err != nil {
		t.Fatalf("RollingFeatures error: %v", err)
	}

	means := tbl.MustColumn(RollingMeanColumn(3))
	stds := tbl.MustColumn(RollingStdColumn(3))
	mads := tbl.MustColumn(RollingMADColumn(3))

	for i := 0; i < 2; i++ {
		if !math.IsNaN(means[i]) || !math.IsNaN(stds[i]) || !math.IsNaN(mads[i]) {
			t.Errorf("row %d should be null before the window fills", i)
		}
	}

	if !approxEqual(means[2], 2) {
		t.Errorf("rolling_mean_3[2] = %v, want 2", means[2])
	}
	if !approxEqual(stds[2], 1) {
		t.Errorf("rolling_std_3[2] = %v, want 1", stds[2])
	}
	if !approxEqual(mads[2], 1) {
		t.Errorf("rolling_mad_3[2] = %v, want 1", mads[2])
	}

	// window {3, 4, 100}: median 4, deviations {1, 0, 96}, MAD 1
	if !approxEqual(mads[4], 1) {
		t.Errorf("rolling_mad_3[4] = %v, want 1", mads[4])
	}
}

func TestRollingFeatures_NullInWindow(t *testing.T) {
	tbl := createTestTable([]float64{1, 2, math.NaN(), 4, 5, 6})
	if _, err := RollingFeatures(tbl, "value", 2); err != nil {
		t.Fatalf("RollingFeatures error: %v", err)
	}

	means := tbl.MustColumn(RollingMeanColumn(2))
	expected := []float64{math.NaN(), 1.5, math.NaN(), math.NaN(), 4.5, 5.5}
	for i := range expected {
		if !approxEqual(means[i], expected[i]) {
			t.Errorf("rolling_mean_2[%d] = %v, want %v", i, means[i], expected[i])
		}
	}
}

func TestRollingFeatures_InvalidWindow(t *testing.T) {
	tbl := createTestTable([]float64{1, 2, 3})
	if _, err := RollingFeatures(tbl, "value", 0); !errors.Is(err, analytics.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := RollingSlope(tbl, "value", -1); !errors.Is(err, analytics.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRollingSlope_Linear(t *testing.T) {
	// value = 3 + 2i: every full window has slope 2
	values := make([]float64, 12)
	for i := range values {
		values[i] = 3 + 2*float64(i)
	}
	tbl := createTestTable(values)

	if _, err := RollingSlope(tbl, "value", DefaultWindow); err != nil {
		t.Fatalf("RollingSlope error: %v", err)
	}

	slopes := tbl.MustColumn(RollingSlopeColumn(DefaultWindow))
	for i, s := range slopes {
		if i < DefaultWindow-1 {
			if !math.IsNaN(s) {
				t.Errorf("rolling_slope_5[%d] = %v, want null", i, s)
			}
			continue
		}
		if !approxEqual(s, 2) {
			t.Errorf("rolling_slope_5[%d] = %v, want 2", i, s)
		}
	}
}

func TestWindowSlope(t *testing.T) {
	if s := WindowSlope([]float64{0}, []float64{42}); s != 0 {
		t.Errorf("single point slope = %v, want 0", s)
	}
	if s := WindowSlope([]float64{0, 1, 2}, []float64{5, 5, 5}); !approxEqual(s, 0) {
		t.Errorf("flat slope = %v, want 0", s)
	}
	if s := WindowSlope([]float64{0, 1, 2, 3}, []float64{10, 7, 4, 1}); !approxEqual(s, -3) {
		t.Errorf("descending slope = %v, want -3", s)
	}
}

func TestMissingColumn(t *testing.T) {
	tbl := createTestTable([]float64{1, 2, 3})

	funcs := map[string]func() error{
		"DeviationFromMean": func() error { _, err := DeviationFromMean(tbl, "missing"); return err },
		"SigmaLevel":        func() error { _, err := SigmaLevel(tbl, "missing"); return err },
		"Slope":             func() error { _, err := Slope(tbl, "missing"); return err },
		"RollingFeatures":   func() error { _, err := RollingFeatures(tbl, "missing", 2); return err },
		"LagFeatures":       func() error { _, err := LagFeatures(tbl, "missing"); return err },
		"GenerateAll":       func() error { _, err := GenerateAll(tbl, "missing", 2); return err },
	}
	for name, fn := range funcs {
		if err := fn(); !errors.Is(err, analytics.ErrColumnNotFound) {
			t.Errorf("%s: expected ErrColumnNotFound, got %v", name, err)
		}
	}
}

func TestGenerateAll_Columns(t *testing.T) {
	tbl := createTestTable([]float64{1, 3, 2, 5, 4, 6, 8, 7})
	if _, err := GenerateAll(tbl, "value", DefaultWindow); err != nil {
		t.Fatalf("GenerateAll error: %v", err)
	}

	expected := []string{
		"value",
		ColDeviationFromMean, ColAbsDeviation,
		ColDeviationMedian, ColAbsDevMedian,
		ColSigmaLevel,
		ColSlope,
		"rolling_mean_5", "rolling_std_5", "rolling_mad_5",
		"rolling_slope_5",
		ColLag1, ColLagDiff,
	}
	names := tbl.ColumnNames()
	if len(names) != len(expected) {
		t.Fatalf("columns = %v, want %v", names, expected)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("column[%d] = %q, want %q", i, names[i], expected[i])
		}
	}
}

func TestGenerateAll_Deterministic(t *testing.T) {
	values := []float64{10, 12, math.NaN(), 11, 15, 30, 14, 13, 12, 11}

	first := createTestTable(values)
	second := createTestTable(values)
	if _, err := GenerateAll(first, "value", 3); err != nil {
		t.Fatalf("GenerateAll error: %v", err)
	}
	if _, err := GenerateAll(second, "value", 3); err != nil {
		t.Fatalf("GenerateAll error: %v", err)
	}

	for _, name := range first.ColumnNames() {
		a := first.MustColumn(name)
		b := second.MustColumn(name)
		for i := range a {
			if !approxEqual(a[i], b[i]) {
				t.Errorf("%s[%d]: %v != %v", name, i, a[i], b[i])
			}
		}
	}
}

func TestEngineer_Defaults(t *testing.T) {
	e := NewEngineer(nil, "", 0)
	if e.ValueColumn != analytics.DefaultValueColumn {
		t.Errorf("ValueColumn = %q", e.ValueColumn)
	}
	if e.Window != DefaultWindow {
		t.Errorf("Window = %d", e.Window)
	}

	tbl := createTestTable([]float64{1, 2, 3, 4, 5, 6})
	if _, err := e.Run(tbl); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !tbl.HasColumn(RollingSlopeColumn(DefaultWindow)) {
		t.Error("expected rolling_slope_5 column")
	}
}

func TestRollingSlope_DependsOnTrailingWindowOnly(t *testing.T) {
	values := []float64{3, 8, 1, 9, 4, 7, 2, 6, 5, 10, 0, 11}
	full := createTestTable(values)
	if _, err := RollingSlope(full, "value", DefaultWindow); err != nil {
		t.Fatalf("RollingSlope error: %v", err)
	}
	fullSlopes := full.MustColumn(RollingSlopeColumn(DefaultWindow))

	for k := DefaultWindow; k <= len(values); k++ {
		for replay := 0; replay < 2; replay++ {
			prefix := createTestTable(values[:k])
			if _, err := RollingSlope(prefix, "value", DefaultWindow); err != nil {
				t.Fatalf("RollingSlope error: %v", err)
			}
			got := prefix.MustColumn(RollingSlopeColumn(DefaultWindow))[k-1]
			if got != fullSlopes[k-1] {
				t.Errorf("k=%d replay=%d: slope %v, want %v", k, replay, got, fullSlopes[k-1])
			}
		}
	}
}
