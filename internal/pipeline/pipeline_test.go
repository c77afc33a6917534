package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/anomaly"
	"github.com/soltixdb/tagwatch/internal/analytics/cleaning"
	"github.com/soltixdb/tagwatch/internal/analytics/ttf"
	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/csvio"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/queue"
	"github.com/soltixdb/tagwatch/internal/registry"
	"github.com/soltixdb/tagwatch/internal/sink"
	"github.com/soltixdb/tagwatch/internal/source"
)

var start = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func tableOf(values ...float64) *analytics.Table {
	times := make([]time.Time, len(values))
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Second)
	}
	t := analytics.NewTable(times)
	t.SetColumn(analytics.DefaultValueColumn, values)
	return t
}

// ramp climbs 10 per second and crosses the high alarm on the last row
func ramp() *analytics.Table {
	return tableOf(50, 60, 70, 80, 90, 100, 110)
}

func newRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	r, err := NewRunner(opts, logging.NewNop())
	require.NoError(t, err)
	return r
}

func TestRunner_Ramp(t *testing.T) {
	r := newRunner(t, Options{Thresholds: anomaly.Thresholds{Low: 0, High: 100}})
	input := ramp()

	res, err := r.Run(context.Background(), input)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Nil(t, res.Bounds)
	assert.False(t, input.HasColumn(ttf.ColEstimatedTTF), "input table is left untouched")

	out := res.Table
	assert.Equal(t, analytics.StatusHighAlarm, out.Status[6])
	assert.Equal(t, analytics.StatusAnomaly, out.Status[4])
	assert.Equal(t, analytics.StatusAnomaly, out.Status[5], "a value equal to the high limit is not an alarm")

	est := out.MustColumn(ttf.ColEstimatedTTF)
	assert.InDelta(t, 10.0/10/3600, est[4], 1e-9)
	assert.True(t, analytics.IsNull(est[5]), "zero distance to the limit yields no estimate")

	labels := out.MustColumn(anomaly.ColTTF)
	assert.Equal(t, 0.0, labels[5], "one second rounds to 0.00 hours")

	total := 0
	for _, n := range res.Counts {
		total += n
	}
	assert.Equal(t, out.Len(), total)
}

func TestRunner_AllBelowLowAlarm(t *testing.T) {
	r := newRunner(t, Options{Thresholds: anomaly.Thresholds{Low: 10, High: 100}})

	res, err := r.Run(context.Background(), tableOf(1, 2, analytics.Null(), 4))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Counts[analytics.StatusLowAlarm])
	assert.Equal(t, 1, res.Counts[analytics.StatusBadData])
	assert.Equal(t, 1, res.Missing.Missing)
	assert.Equal(t, analytics.StatusBadData, res.Table.Status[2])
}

func TestRunner_RemoveOutliers(t *testing.T) {
	r := newRunner(t, Options{
		Thresholds:     anomaly.Thresholds{Low: 0, High: 1000},
		RemoveOutliers: true,
	})

	res, err := r.Run(context.Background(), tableOf(1, 2, 3, 4, 5, 100))
	require.NoError(t, err)

	require.NotNil(t, res.Bounds)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 8.5, res.Bounds.Upper)
	assert.Equal(t, 5, res.Table.Len())
}

func TestRunner_FillBeforeClassifying(t *testing.T) {
	r := newRunner(t, Options{
		Thresholds: anomaly.Thresholds{Low: 0, High: 100},
		FillMethod: cleaning.InterpolateLinear,
	})

	res, err := r.Run(context.Background(), tableOf(50, analytics.Null(), 50, 50, 50, 50))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Counts[analytics.StatusBadData])
	assert.Equal(t, 50.0, res.Table.MustColumn(analytics.DefaultValueColumn)[1])
	assert.Equal(t, 1, res.Missing.Missing, "the summary describes the data before filling")
}

func TestRunner_ImputeOnly(t *testing.T) {
	r := newRunner(t, Options{
		Thresholds:   anomaly.Thresholds{Low: 0, High: 100},
		ImputeMethod: cleaning.ImputeMean,
	})

	res, err := r.Run(context.Background(), tableOf(10, analytics.Null(), 30))
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Table.MustColumn(analytics.DefaultValueColumn)[1])
}

func TestRunner_NonDefaultWindowKeepsCascadeColumns(t *testing.T) {
	r := newRunner(t, Options{Window: 3, Thresholds: anomaly.Thresholds{Low: 0, High: 100}})

	res, err := r.Run(context.Background(), ramp())
	require.NoError(t, err)
	assert.True(t, res.Table.HasColumn("rolling_slope_3"))
	assert.True(t, res.Table.HasColumn("rolling_slope_5"))
	assert.Equal(t, analytics.StatusAnomaly, res.Table.Status[4])
}

func TestRunner_InvalidInput(t *testing.T) {
	r := newRunner(t, Options{Thresholds: anomaly.Thresholds{Low: 0, High: 100}})

	_, err := r.Run(context.Background(), analytics.NewTable(nil))
	assert.True(t, errors.Is(err, analytics.ErrInvalidConfig))

	noValue := analytics.NewTable([]time.Time{start})
	noValue.SetColumn("temperature", []float64{1})
	_, err = r.Run(context.Background(), noValue)
	assert.True(t, errors.Is(err, analytics.ErrInvalidConfig))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, ramp())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "defaults", opts: Options{}},
		{name: "inverted limits", opts: Options{Thresholds: anomaly.Thresholds{Low: 10, High: 5}}, wantErr: true},
		{name: "bad interval", opts: Options{Interval: "often"}, wantErr: true},
		{name: "bad fill", opts: Options{FillMethod: "spline"}, wantErr: true},
		{name: "bad impute", opts: Options{ImputeMethod: "mode"}, wantErr: true},
		{name: "valid methods", opts: Options{FillMethod: "ffill", ImputeMethod: "mad", Interval: "PT5M"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, analytics.ErrInvalidArgument), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Analysis
	cfg.FillMethod = "time"
	cfg.HighAlarm = 80

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, cleaning.InterpolateTime, opts.FillMethod)
	assert.Equal(t, 80.0, opts.Thresholds.High)
	assert.NoError(t, opts.Validate())
}

func writeRampCSV(t *testing.T, dir, tag string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Timestamp,value\n")
	for i, v := range []float64{50, 60, 70, 80, 90, 100, 110} {
		fmt.Fprintf(&b, "%s,%v\n", start.Add(time.Duration(i)*time.Second).Format(time.RFC3339), v)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, tag+".csv"), []byte(b.String()), 0644))
}

func TestService_AnalyzeTag(t *testing.T) {
	dataDir, exportDir := t.TempDir(), t.TempDir()
	writeRampCSV(t, dataDir, "SITE.TIC-101")

	pub := queue.NewMemoryPublisher()
	reg := registry.NewMemoryRegistry()

	svc := NewService(
		newRunner(t, Options{Thresholds: anomaly.Thresholds{Low: 0, High: 100}}),
		source.NewCSVRetriever(dataDir, time.UTC, logging.NewNop()),
		logging.NewNop(),
	).
		WithExporter(csvio.NewExporter(config.ExportConfig{Dir: exportDir}, logging.NewNop())).
		WithPusher(sink.NewPusher(reg, sink.NewQueueWriter(pub, "tagwatch.datapoints", 100), logging.NewNop()))

	res, err := svc.AnalyzeTag(context.Background(), TagRequest{
		Query:  source.Query{Tag: "SITE.TIC-101"},
		Export: true,
		Push:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(exportDir, "TIC-101_cleaned.csv"), res.ExportPath)
	_, err = os.Stat(res.ExportPath)
	assert.NoError(t, err)

	require.NotNil(t, res.Pushed)
	assert.Equal(t, "SITE.TIC-101.est_ttf", res.Pushed.ExternalID)
	assert.Equal(t, 1, res.Pushed.Written)
	assert.Len(t, pub.Drain("tagwatch.datapoints.SITE.TIC-101.est_ttf"), 1)

	stored, err := reg.Get(context.Background(), "SITE.TIC-101.est_ttf")
	require.NoError(t, err)
	assert.Equal(t, "h", stored.Unit)
	assert.Equal(t, "SITE.TIC-101", stored.Metadata["source_tag"])
}

func TestService_MissingCollaborators(t *testing.T) {
	r := newRunner(t, Options{Thresholds: anomaly.Thresholds{Low: 0, High: 100}})
	ctx := context.Background()

	_, err := NewService(r, nil, nil).AnalyzeTag(ctx, TagRequest{Query: source.Query{Tag: "x"}})
	assert.True(t, errors.Is(err, analytics.ErrInvalidConfig))

	svc := NewService(r, source.NewCSVRetriever(t.TempDir(), time.UTC, nil), nil)
	_, err = svc.AnalyzeTag(ctx, TagRequest{Query: source.Query{Tag: "x"}, Export: true})
	assert.True(t, errors.Is(err, analytics.ErrInvalidConfig))

	_, err = svc.AnalyzeTag(ctx, TagRequest{Query: source.Query{Tag: "x"}, Push: true})
	assert.True(t, errors.Is(err, analytics.ErrInvalidConfig))

	_, err = svc.AnalyzeTag(ctx, TagRequest{Query: source.Query{Tag: "x"}})
	assert.True(t, errors.Is(err, source.ErrTagNotFound))
}
