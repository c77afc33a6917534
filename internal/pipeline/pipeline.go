package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/anomaly"
	"github.com/soltixdb/tagwatch/internal/analytics/cleaning"
	"github.com/soltixdb/tagwatch/internal/analytics/features"
	"github.com/soltixdb/tagwatch/internal/analytics/stats"
	"github.com/soltixdb/tagwatch/internal/analytics/ttf"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// Result is the output of a pipeline run
type Result struct {
	RunID   string
	Table   *analytics.Table
	Counts  anomaly.StatusCounts
	Bounds  *stats.Bounds // Set when outliers were removed
	Removed int
	Missing cleaning.Summary
	Elapsed time.Duration
}

// Runner executes the pipeline with fixed options
type Runner struct {
	logger     *logging.Logger
	opts       Options
	engineer   *features.Engineer
	classifier *anomaly.Classifier
	estimator  *ttf.Estimator
}

// NewRunner validates opts and creates a Runner
func NewRunner(opts Options, logger *logging.Logger) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if logger == nil {
		logger = logging.Global()
	}

	est := ttf.DefaultConfig(opts.Thresholds.High, opts.Thresholds.Low)
	est.ValueColumn = opts.ValueColumn
	est.SlopeColumn = features.RollingSlopeColumn(anomaly.FeatureWindow)
	est.SampleInterval = opts.SampleInterval

	return &Runner{
		logger:     logger,
		opts:       opts,
		engineer:   features.NewEngineer(logger, opts.ValueColumn, opts.Window),
		classifier: anomaly.NewClassifier(logger, opts.Thresholds),
		estimator:  ttf.NewEstimator(logger, est),
	}, nil
}

// Options returns the effective options
func (r *Runner) Options() Options {
	return r.opts
}

// Run analyzes a copy of t. The input table is not modified.
func (r *Runner) Run(ctx context.Context, t *analytics.Table) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.New().String()}
	ctx = logging.WithRunID(ctx, res.RunID)
	logger := r.logger.WithContext(ctx)

	if err := t.Validate(r.opts.ValueColumn); err != nil {
		return nil, err
	}
	work := t.Clone()

	if r.opts.RemoveOutliers {
		bounds, err := stats.OutlierBounds(work, r.opts.ValueColumn)
		if err != nil {
			return nil, err
		}
		filtered, removed, err := stats.RemoveOutliers(work, r.opts.ValueColumn)
		if err != nil {
			return nil, err
		}
		if filtered.Len() == 0 {
			return nil, fmt.Errorf("%w: no rows left after outlier removal", analytics.ErrInvalidConfig)
		}
		work, res.Bounds, res.Removed = filtered, &bounds, removed
	}

	analyzer, err := cleaning.NewAnalyzer(work, r.opts.Interval, "")
	if err != nil {
		return nil, err
	}
	analyzer.WithLogger(logger).WithValueColumn(r.opts.ValueColumn)
	res.Missing = analyzer.MissingSummary()

	if r.opts.FillMethod != "" {
		if work, err = analyzer.Interpolate(r.opts.FillMethod); err != nil {
			return nil, err
		}
	}
	if r.opts.ImputeMethod != "" {
		if work, err = analyzer.Impute(r.opts.ImputeMethod); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := r.engineer.Run(work); err != nil {
		return nil, err
	}
	if r.opts.Window != anomaly.FeatureWindow {
		// the cascade and estimator read the fixed-window rolling columns
		if _, err := features.RollingFeatures(work, r.opts.ValueColumn, anomaly.FeatureWindow); err != nil {
			return nil, err
		}
		if _, err := features.RollingSlope(work, r.opts.ValueColumn, anomaly.FeatureWindow); err != nil {
			return nil, err
		}
	}
	counts, err := r.classifier.Classify(work, r.opts.ValueColumn)
	if err != nil {
		return nil, err
	}
	if _, err := r.estimator.Estimate(work); err != nil {
		return nil, err
	}

	res.Table = work
	res.Counts = counts
	res.Elapsed = time.Since(start)

	logger.Info("Pipeline complete",
		"rows", work.Len(),
		"removed", res.Removed,
		"missing", res.Missing.Missing,
		"anomaly", counts[analytics.StatusAnomaly],
		"elapsed", res.Elapsed)
	return res, nil
}
