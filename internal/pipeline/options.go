// Package pipeline runs the full analysis of a tag table: optional outlier
// removal and gap filling, then features, status, TTF labels and the
// extrapolated TTF estimate.
package pipeline

import (
	"fmt"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/anomaly"
	"github.com/soltixdb/tagwatch/internal/analytics/cleaning"
	"github.com/soltixdb/tagwatch/internal/analytics/features"
	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/utils"
)

// DefaultInterval is the expected sampling interval for gap analysis
const DefaultInterval = "1m"

// Options controls a pipeline run
type Options struct {
	ValueColumn    string
	Window         int
	Thresholds     anomaly.Thresholds
	SampleInterval time.Duration
	Interval       string
	RemoveOutliers bool
	FillMethod     cleaning.InterpolationMethod // empty skips interpolation
	ImputeMethod   cleaning.ImputeMethod        // empty skips imputation
}

// OptionsFromConfig maps the analysis section of the configuration
func OptionsFromConfig(cfg config.AnalysisConfig) Options {
	return Options{
		ValueColumn:    cfg.ValueColumn,
		Window:         cfg.Window,
		Thresholds:     anomaly.Thresholds{Low: cfg.LowAlarm, High: cfg.HighAlarm},
		SampleInterval: cfg.SampleInterval,
		Interval:       cfg.Interval,
		RemoveOutliers: cfg.RemoveOutliers,
		FillMethod:     cleaning.InterpolationMethod(cfg.FillMethod),
		ImputeMethod:   cleaning.ImputeMethod(cfg.ImputeMethod),
	}
}

// withDefaults fills empty settings
func (o Options) withDefaults() Options {
	if o.ValueColumn == "" {
		o.ValueColumn = analytics.DefaultValueColumn
	}
	if o.Window <= 0 {
		o.Window = features.DefaultWindow
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = time.Second
	}
	if o.Interval == "" {
		o.Interval = DefaultInterval
	}
	return o
}

// Validate checks the options after defaults are applied
func (o Options) Validate() error {
	o = o.withDefaults()
	if o.Thresholds.Low > o.Thresholds.High {
		return fmt.Errorf("%w: low_alarm %v is above high_alarm %v",
			analytics.ErrInvalidArgument, o.Thresholds.Low, o.Thresholds.High)
	}
	if _, err := utils.ParseGranularity(o.Interval); err != nil {
		return fmt.Errorf("%w: %v", analytics.ErrInvalidArgument, err)
	}
	if o.FillMethod != "" && !containsMethod(cleaning.InterpolationMethods(), o.FillMethod) {
		return fmt.Errorf("%w: unknown fill method %q, choose from %v",
			analytics.ErrInvalidArgument, o.FillMethod, cleaning.InterpolationMethods())
	}
	if o.ImputeMethod != "" && !containsMethod(cleaning.ImputeMethods(), o.ImputeMethod) {
		return fmt.Errorf("%w: unknown impute method %q, choose from %v",
			analytics.ErrInvalidArgument, o.ImputeMethod, cleaning.ImputeMethods())
	}
	return nil
}

func containsMethod[T comparable](methods []T, m T) bool {
	for _, x := range methods {
		if x == m {
			return true
		}
	}
	return false
}
