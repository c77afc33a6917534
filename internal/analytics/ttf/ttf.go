// Package ttf estimates time-to-failure for anomalous rows by linearly
// extrapolating the current value along its rolling slope to the alarm limit
// it is heading towards.
package ttf

import (
	"fmt"
	"math"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/analytics/features"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// ColEstimatedTTF holds the extrapolated hours to the alarm crossing
const ColEstimatedTTF = "Est_TTF_Hours"

// Config holds estimator settings
type Config struct {
	HighAlarm   float64
	LowAlarm    float64
	ValueColumn string
	SlopeColumn string

	// SampleInterval is the spacing between rows. The slope column is a
	// per-row rate; dividing by SampleInterval seconds turns it into a
	// per-second rate. The 1s default treats the slope as already per second.
	SampleInterval time.Duration
}

// DefaultConfig returns estimator defaults for the given alarm limits
func DefaultConfig(high, low float64) Config {
	return Config{
		HighAlarm:      high,
		LowAlarm:       low,
		ValueColumn:    analytics.DefaultValueColumn,
		SlopeColumn:    features.RollingSlopeColumn(features.DefaultWindow),
		SampleInterval: time.Second,
	}
}

// Estimator computes Est_TTF_Hours for Anomaly rows
type Estimator struct {
	logger *logging.Logger
	config Config
}

// NewEstimator creates an Estimator, filling empty settings with defaults
func NewEstimator(logger *logging.Logger, cfg Config) *Estimator {
	def := DefaultConfig(cfg.HighAlarm, cfg.LowAlarm)
	if cfg.ValueColumn == "" {
		cfg.ValueColumn = def.ValueColumn
	}
	if cfg.SlopeColumn == "" {
		cfg.SlopeColumn = def.SlopeColumn
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = def.SampleInterval
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Estimator{logger: logger, config: cfg}
}

// Estimate adds the Est_TTF_Hours column. Rows that are not Anomaly, have a
// null or zero slope, or whose extrapolation is not a positive finite number
// stay null.
func (e *Estimator) Estimate(t *analytics.Table) (*analytics.Table, error) {
	values, err := t.Column(e.config.ValueColumn)
	if err != nil {
		return t, err
	}
	slopes, err := t.Column(e.config.SlopeColumn)
	if err != nil {
		return t, fmt.Errorf("slope column required for extrapolation: %w", err)
	}

	est := analytics.NullColumn(t.Len())
	perSecond := e.config.SampleInterval.Seconds()
	estimated, skipped := 0, 0

	for i, s := range t.Status {
		if s != analytics.StatusAnomaly {
			continue
		}

		y0 := values[i]
		m := slopes[i]
		if analytics.IsNull(m) || m == 0 {
			continue
		}

		target := e.config.LowAlarm
		if m > 0 {
			target = e.config.HighAlarm
		}

		hours, ok := HoursToCrossing(y0, target, m/perSecond)
		if !ok {
			skipped++
			continue
		}
		if hours > 0 {
			est[i] = hours
			estimated++
		}
	}

	t.SetColumn(ColEstimatedTTF, est)

	e.logger.Debug("Estimated TTF",
		"slope_column", e.config.SlopeColumn,
		"sample_interval", e.config.SampleInterval,
		"estimated", estimated,
		"skipped", skipped)
	return t, nil
}

// HoursToCrossing returns hours for a value y0 moving at rate units/second to
// reach target. ok is false when the arithmetic does not produce a finite
// number (null value, overflow, zero rate).
func HoursToCrossing(y0, target, rate float64) (hours float64, ok bool) {
	seconds := (target - y0) / rate
	hours = seconds / 3600
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0, false
	}
	return hours, true
}
