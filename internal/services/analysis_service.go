package services

import (
	"context"
	"sort"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/cleaning"
	"github.com/soltixdb/tagwatch/internal/analytics/stats"
	"github.com/soltixdb/tagwatch/internal/csvio"
	"github.com/soltixdb/tagwatch/internal/downsampling"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/models"
	"github.com/soltixdb/tagwatch/internal/pipeline"
	"github.com/soltixdb/tagwatch/internal/source"
	"github.com/soltixdb/tagwatch/internal/utils"
)

// AnalysisService handles analysis requests
type AnalysisService struct {
	logger   *logging.Logger
	defaults pipeline.Options
	tags     *pipeline.Service
	location *time.Location
}

// NewAnalysisService creates a new AnalysisService. tags may be nil when no
// source is configured; tag analysis then fails with NOT_CONFIGURED.
func NewAnalysisService(
	logger *logging.Logger,
	defaults pipeline.Options,
	tags *pipeline.Service,
	location *time.Location,
) *AnalysisService {
	if location == nil {
		location = time.UTC
	}
	if defaults.ValueColumn == "" {
		defaults.ValueColumn = analytics.DefaultValueColumn
	}
	return &AnalysisService{
		logger:   logger,
		defaults: defaults,
		tags:     tags,
		location: location,
	}
}

// Status reports how the service is configured
func (s *AnalysisService) Status() models.AnalysisStatus {
	return models.AnalysisStatus{
		TagAnalysis: s.tags != nil,
		ValueColumn: s.defaults.ValueColumn,
		LowAlarm:    s.defaults.Thresholds.Low,
		HighAlarm:   s.defaults.Thresholds.High,
	}
}

// Analyze runs the pipeline over inline points
func (s *AnalysisService) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	mode, err := parseOutput(req.Output)
	if err != nil {
		return nil, err
	}
	runner, err := s.runner(req.Options)
	if err != nil {
		return nil, err
	}
	table, err := s.toTable(req.Points, req.Timezone)
	if err != nil {
		return nil, err
	}

	res, err := runner.Run(ctx, table)
	if err != nil {
		s.logger.Error("Analysis failed", "error", err, "points", len(req.Points))
		return nil, FromError(err, CodePipelineFailed)
	}
	return s.newAnalyzeResponse(res, mode, req.Output.MaxRows)
}

// AnalyzeTag retrieves a tag from the configured source and analyzes it
func (s *AnalysisService) AnalyzeTag(ctx context.Context, tag string, req *models.TagAnalyzeRequest) (*models.AnalyzeResponse, error) {
	if s.tags == nil {
		return nil, NewServiceError(CodeNotConfigured, "no datapoint source is configured")
	}

	mode, err := parseOutput(req.Output)
	if err != nil {
		return nil, err
	}

	query := source.Query{
		Tag:         tag,
		Aggregate:   req.Aggregate,
		Granularity: req.Granularity,
	}
	if query.Start, err = s.parseBound("start", req.Start); err != nil {
		return nil, err
	}
	if query.End, err = s.parseBound("end", req.End); err != nil {
		return nil, err
	}

	runner, err := s.runner(req.Options)
	if err != nil {
		return nil, err
	}

	res, err := s.tags.AnalyzeTag(ctx, pipeline.TagRequest{
		Query:    query,
		Export:   req.Export,
		Filename: req.Filename,
		Push:     req.Push,
		Runner:   runner,
	})
	if err != nil {
		s.logger.Error("Tag analysis failed", "tag", tag, "error", err)
		return nil, FromError(err, CodePipelineFailed)
	}

	resp, err := s.newAnalyzeResponse(res.Result, mode, req.Output.MaxRows)
	if err != nil {
		return nil, err
	}
	resp.Tag = res.Tag
	resp.ExportPath = res.ExportPath
	if res.Pushed != nil {
		resp.Pushed = &models.PushView{
			ExternalID: res.Pushed.ExternalID,
			Created:    res.Pushed.Created,
			Written:    res.Pushed.Written,
			Skipped:    res.Pushed.Skipped,
		}
	}
	return resp, nil
}

// Outliers computes Tukey fences for the points and lists the values
// outside them. Removed also counts null points.
func (s *AnalysisService) Outliers(ctx context.Context, req *models.SeriesRequest) (*models.OutliersResponse, error) {
	table, err := s.toTable(req.Points, req.Timezone)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, FromError(err, CodePipelineFailed)
	}

	col := s.defaults.ValueColumn
	bounds, err := stats.OutlierBounds(table, col)
	if err != nil {
		return nil, FromError(err, CodeInvalidInput)
	}
	kept, removed, err := stats.RemoveOutliers(table, col)
	if err != nil {
		return nil, FromError(err, CodeInvalidInput)
	}

	outliers := make([]models.PointView, 0)
	for i, v := range table.MustColumn(col) {
		if !analytics.IsNull(v) && !bounds.Contains(v) {
			outliers = append(outliers, models.NewPointView(table.Times[i], v))
		}
	}

	return &models.OutliersResponse{
		Bounds:   boundsView(bounds),
		Total:    table.Len(),
		Removed:  removed,
		Kept:     kept.Len(),
		Outliers: outliers,
	}, nil
}

// Describe returns descriptive statistics of the points
func (s *AnalysisService) Describe(ctx context.Context, req *models.SeriesRequest) (*models.DescribeResponse, error) {
	table, err := s.toTable(req.Points, req.Timezone)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, FromError(err, CodePipelineFailed)
	}

	series, err := stats.NewSeries(table, s.defaults.ValueColumn)
	if err != nil {
		return nil, FromError(err, CodeInvalidInput)
	}
	sum := series.Describe()

	return &models.DescribeResponse{
		Count:  sum.Count,
		Nulls:  sum.Nulls,
		Mean:   utils.FiniteOrNil(sum.Mean),
		StdDev: utils.FiniteOrNil(sum.StdDev),
		Min:    utils.FiniteOrNil(sum.Min),
		Q1:     utils.FiniteOrNil(sum.Q1),
		Median: utils.FiniteOrNil(sum.Median),
		Q3:     utils.FiniteOrNil(sum.Q3),
		Max:    utils.FiniteOrNil(sum.Max),
		MAD:    utils.FiniteOrNil(sum.MAD),
	}, nil
}

// runner applies request overrides to the defaults
func (s *AnalysisService) runner(o models.OptionsRequest) (*pipeline.Runner, error) {
	opts, err := applyOptions(s.defaults, o)
	if err != nil {
		return nil, FromError(err, CodeInvalidArgument)
	}
	runner, err := pipeline.NewRunner(opts, s.logger)
	if err != nil {
		return nil, FromError(err, CodeInvalidArgument)
	}
	return runner, nil
}

func applyOptions(base pipeline.Options, o models.OptionsRequest) (pipeline.Options, error) {
	opts := base
	if o.Window != nil {
		if *o.Window < 1 {
			return opts, NewServiceError(CodeInvalidArgument, "window must be at least 1")
		}
		opts.Window = *o.Window
	}
	if o.LowAlarm != nil {
		opts.Thresholds.Low = *o.LowAlarm
	}
	if o.HighAlarm != nil {
		opts.Thresholds.High = *o.HighAlarm
	}
	if o.SampleInterval != "" {
		d, err := utils.ParseGranularity(o.SampleInterval)
		if err != nil {
			return opts, NewServiceError(CodeInvalidArgument, "sample_interval: "+err.Error())
		}
		opts.SampleInterval = d
	}
	if o.Interval != "" {
		opts.Interval = o.Interval
	}
	if o.RemoveOutliers != nil {
		opts.RemoveOutliers = *o.RemoveOutliers
	}
	if o.FillMethod != nil {
		opts.FillMethod = cleaning.InterpolationMethod(*o.FillMethod)
	}
	if o.ImputeMethod != nil {
		opts.ImputeMethod = cleaning.ImputeMethod(*o.ImputeMethod)
	}
	return opts, opts.Validate()
}

// toTable parses points into a time-ordered table. Unparseable values are
// null; unparseable timestamps are rejected.
func (s *AnalysisService) toTable(points []models.PointRequest, timezone string) (*analytics.Table, error) {
	loc := s.location
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, NewServiceError(CodeInvalidArgument, "unknown timezone: "+timezone)
		}
		loc = l
	}

	data := make(analytics.TimeSeriesData, len(points))
	for i, p := range points {
		ts, err := csvio.ParseTimestamp(p.Timestamp, loc)
		if err != nil {
			return nil, NewServiceErrorWithDetails(CodeInvalidArgument, err.Error(), map[string]interface{}{
				"index":     i,
				"timestamp": p.Timestamp,
			})
		}
		data[i] = analytics.TimeSeriesPoint{Time: ts, Value: utils.ToNullableFloat64(p.Value)}
	}
	sort.SliceStable(data, func(i, j int) bool { return data[i].Time.Before(data[j].Time) })

	return analytics.FromPoints(data, s.defaults.ValueColumn), nil
}

func (s *AnalysisService) parseBound(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	ts, err := csvio.ParseTimestamp(value, s.location)
	if err != nil {
		return nil, NewServiceError(CodeInvalidArgument, name+": "+err.Error())
	}
	return &ts, nil
}

func parseOutput(o models.OutputRequest) (downsampling.Mode, error) {
	mode, err := downsampling.ParseMode(o.Downsample)
	if err != nil {
		return mode, FromError(err, CodeInvalidArgument)
	}
	if mode == downsampling.ModeNone && o.MaxRows > 0 {
		mode = downsampling.ModeAuto
	}
	return mode, nil
}

// newAnalyzeResponse renders a result. Summaries cover the full table while
// rows are thinned by the requested mode.
func (s *AnalysisService) newAnalyzeResponse(res *pipeline.Result, mode downsampling.Mode, maxRows int) (*models.AnalyzeResponse, error) {
	rows := res.Table
	if mode != downsampling.ModeNone {
		thinned, err := downsampling.Downsample(res.Table, s.defaults.ValueColumn, mode, maxRows)
		if err != nil {
			return nil, FromError(err, CodeInvalidArgument)
		}
		if thinned.Len() < rows.Len() {
			s.logger.Debug("Downsampled analysis rows",
				"run_id", res.RunID, "mode", string(mode), "rows", rows.Len(), "returned", thinned.Len())
		}
		rows = thinned
	}

	counts := make(map[string]int, len(res.Counts))
	for status, n := range res.Counts {
		counts[status.String()] = n
	}

	summary := models.AnalysisSummary{
		RunID:   res.RunID,
		Rows:    res.Table.Len(),
		Counts:  counts,
		Removed: res.Removed,
		Missing: models.MissingView{
			Total:        res.Missing.Total,
			Missing:      res.Missing.Missing,
			MissingRatio: res.Missing.MissingRatio,
			Interval:     res.Missing.Interval.String(),
			ExpectedRows: res.Missing.ExpectedRows,
			ActualRows:   res.Missing.ActualRows,
			Runs:         res.Missing.Runs,
			LongestRun:   res.Missing.LongestRun,
		},
		ElapsedMs: float64(res.Elapsed.Microseconds()) / 1000,
	}
	if res.Bounds != nil {
		b := boundsView(*res.Bounds)
		summary.Bounds = &b
	}

	resp := &models.AnalyzeResponse{
		Columns: res.Table.ColumnNames(),
		Rows:    models.NewRowViews(rows),
		Summary: summary,
	}
	if rows != res.Table {
		resp.Downsample = string(mode)
	}
	return resp, nil
}

func boundsView(b stats.Bounds) models.BoundsView {
	return models.BoundsView{Q1: b.Q1, Q3: b.Q3, IQR: b.IQR, Lower: b.Lower, Upper: b.Upper}
}
