package anomaly

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/features"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func newStatusTable(values []float64) *analytics.Table {
	times := make([]time.Time, len(values))
	for i := range values {
		times[i] = t0.Add(time.Duration(i) * time.Minute)
	}
	t := analytics.NewTable(times)
	t.SetColumn("value", append([]float64(nil), values...))
	return t
}

func constantColumn(n int, v float64) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = v
	}
	return col
}

var plantLimits = Thresholds{Low: 10, High: 90}

func TestAssignStatus_AllBelowLowAlarm(t *testing.T) {
	tbl := newStatusTable([]float64{5, 3, math.NaN(), 1, 2, 4, math.NaN(), 0})
	if _, err := features.GenerateAll(tbl, "value", FeatureWindow); err != nil {
		t.Fatalf("GenerateAll error: %v", err)
	}

	if _, err := AssignStatus(tbl, "value", plantLimits); err != nil {
		t.Fatalf("AssignStatus error: %v", err)
	}

	for i, s := range tbl.Status {
		want := analytics.StatusLowAlarm
		if i == 2 || i == 6 {
			want = analytics.StatusBadData
		}
		if s != want {
			t.Errorf("status[%d] = %q, want %q", i, s, want)
		}
	}
}

func TestAssignStatus_HighAlarm(t *testing.T) {
	tbl := newStatusTable([]float64{50, 95, 50, 91})
	if _, err := features.GenerateAll(tbl, "value", FeatureWindow); err != nil {
		t.Fatalf("GenerateAll error: %v", err)
	}
	if _, err := AssignStatus(tbl, "value", plantLimits); err != nil {
		t.Fatalf("AssignStatus error: %v", err)
	}

	if tbl.Status[1] != analytics.StatusHighAlarm || tbl.Status[3] != analytics.StatusHighAlarm {
		t.Errorf("statuses = %v, want High Alarm at 1 and 3", tbl.Status)
	}
}

func TestAssignStatus_AlarmLimitsAreStrict(t *testing.T) {
	tbl := newStatusTable([]float64{10, 90})
	if _, err := AssignStatus(tbl, "value", plantLimits); err != nil {
		t.Fatalf("AssignStatus error: %v", err)
	}
	for i, s := range tbl.Status {
		if s != analytics.StatusNormal {
			t.Errorf("status[%d] = %q, want Normal", i, s)
		}
	}
}

func TestAssignStatus_AnomalyPredicates(t *testing.T) {
	tests := []struct {
		name    string
		columns map[string]float64
		want    analytics.Status
	}{
		{"sigma above 2", map[string]float64{features.ColSigmaLevel: 2.5}, analytics.StatusAnomaly},
		{"sigma above 3", map[string]float64{features.ColSigmaLevel: 3.5}, analytics.StatusAnomaly},
		{"sigma exactly 2", map[string]float64{features.ColSigmaLevel: 2}, analytics.StatusNormal},
		{"slope and lag diff", map[string]float64{features.ColSlope: -4, features.ColLagDiff: 4}, analytics.StatusAnomaly},
		{"slope alone", map[string]float64{features.ColSlope: 4}, analytics.StatusNormal},
		{"lag diff alone", map[string]float64{features.ColLagDiff: -4}, analytics.StatusNormal},
		{"rolling slope", map[string]float64{"rolling_slope_5": -0.6}, analytics.StatusAnomaly},
		{"rolling slope small", map[string]float64{"rolling_slope_5": 0.5}, analytics.StatusNormal},
		{"rolling std", map[string]float64{"rolling_std_5": 1.2}, analytics.StatusAnomaly},
		{"rolling mad", map[string]float64{"rolling_mad_5": 2.1}, analytics.StatusAnomaly},
		{"null features", map[string]float64{features.ColSigmaLevel: math.NaN()}, analytics.StatusNormal},
		{"no features", nil, analytics.StatusNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := newStatusTable([]float64{50})
			for col, v := range tt.columns {
				tbl.SetColumn(col, []float64{v})
			}
			if _, err := AssignStatus(tbl, "value", plantLimits); err != nil {
				t.Fatalf("AssignStatus error: %v", err)
			}
			if tbl.Status[0] != tt.want {
				t.Errorf("status = %q, want %q", tbl.Status[0], tt.want)
			}
		})
	}
}

func TestAssignStatus_Precedence(t *testing.T) {
	// every row satisfies the anomaly predicates; alarm and null rows still win
	tbl := newStatusTable([]float64{math.NaN(), 5, 95, 50})
	tbl.SetColumn(features.ColSigmaLevel, constantColumn(4, 10))

	if _, err := AssignStatus(tbl, "value", plantLimits); err != nil {
		t.Fatalf("AssignStatus error: %v", err)
	}

	expected := []analytics.Status{
		analytics.StatusBadData,
		analytics.StatusLowAlarm,
		analytics.StatusHighAlarm,
		analytics.StatusAnomaly,
	}
	for i := range expected {
		if tbl.Status[i] != expected[i] {
			t.Errorf("status[%d] = %q, want %q", i, tbl.Status[i], expected[i])
		}
	}
}

func TestAssignStatus_MissingValueColumn(t *testing.T) {
	tbl := newStatusTable([]float64{1})
	if _, err := AssignStatus(tbl, "pressure", plantLimits); !errors.Is(err, analytics.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestCalculateTTF(t *testing.T) {
	tbl := analytics.NewTable([]time.Time{
		t0,
		t0.Add(time.Hour),
		t0.Add(2 * time.Hour),
		t0.Add(3 * time.Hour),
	})
	tbl.SetColumn("value", []float64{60, 70, 95, 50})
	tbl.Status = []analytics.Status{
		analytics.StatusAnomaly,
		analytics.StatusNormal,
		analytics.StatusHighAlarm,
		analytics.StatusAnomaly,
	}

	CalculateTTF(tbl)
	ttf := tbl.MustColumn(ColTTF)

	if ttf[0] != 2.00 {
		t.Errorf("TTF[0] = %v, want 2.00", ttf[0])
	}
	for _, i := range []int{1, 2, 3} {
		if !math.IsNaN(ttf[i]) {
			t.Errorf("TTF[%d] = %v, want null", i, ttf[i])
		}
	}
}

func TestCalculateTTF_RoundsAndSkipsSameTimestamp(t *testing.T) {
	tbl := analytics.NewTable([]time.Time{
		t0,
		t0,
		t0.Add(80 * time.Minute),
	})
	tbl.SetColumn("value", []float64{60, 5, 4})
	tbl.Status = []analytics.Status{
		analytics.StatusAnomaly,
		analytics.StatusLowAlarm,
		analytics.StatusLowAlarm,
	}

	CalculateTTF(tbl)
	if got := tbl.MustColumn(ColTTF)[0]; got != 1.33 {
		t.Errorf("TTF[0] = %v, want 1.33", got)
	}
}

func TestCountStatuses(t *testing.T) {
	tbl := newStatusTable([]float64{1, 2, 3})
	tbl.Status = []analytics.Status{analytics.StatusNormal, analytics.StatusNormal, analytics.StatusBadData}

	counts := CountStatuses(tbl)
	if counts[analytics.StatusNormal] != 2 || counts[analytics.StatusBadData] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if _, ok := counts[analytics.StatusHighAlarm]; !ok {
		t.Error("every status should be present in the tally")
	}
}

func TestClassifier_Classify(t *testing.T) {
	values := []float64{50, 50, 50, 50, 50, 50, 50, 80, 95, math.NaN()}
	tbl := newStatusTable(values)
	if _, err := features.GenerateAll(tbl, "value", FeatureWindow); err != nil {
		t.Fatalf("GenerateAll error: %v", err)
	}

	c := NewClassifier(nil, plantLimits)
	if c.Thresholds() != plantLimits {
		t.Errorf("Thresholds = %+v", c.Thresholds())
	}

	counts, err := c.Classify(tbl, "value")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}

	if tbl.Status[7] != analytics.StatusAnomaly {
		t.Errorf("status[7] = %q, want Anomaly", tbl.Status[7])
	}
	if counts[analytics.StatusHighAlarm] != 1 || counts[analytics.StatusBadData] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if got := tbl.MustColumn(ColTTF)[7]; got != 0.02 {
		t.Errorf("TTF[7] = %v, want 0.02", got)
	}
}
