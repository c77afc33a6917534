// Package cleaning inspects gaps in a tag's value column and fills them by
// interpolation or statistical imputation.
package cleaning

import (
	"fmt"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/utils"
)

// DefaultFilename is the export base name when none is given
const DefaultFilename = "output"

// Analyzer holds a raw table and, once a fill step has run, its cleaned copy
type Analyzer struct {
	logger      *logging.Logger
	raw         *analytics.Table
	cleaned     *analytics.Table
	interval    time.Duration
	valueColumn string
	filename    string
}

// NewAnalyzer creates an Analyzer over t. interval is the expected sampling
// interval ("5m", "1h", "PT5M"); filename is the export base name.
func NewAnalyzer(t *analytics.Table, interval, filename string) (*Analyzer, error) {
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("%w: provided table is empty or nil", analytics.ErrInvalidConfig)
	}
	if t.Times == nil {
		return nil, fmt.Errorf("%w: timestamp index not found", analytics.ErrInvalidConfig)
	}

	d, err := utils.ParseGranularity(interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analytics.ErrInvalidArgument, err)
	}

	if filename == "" {
		filename = DefaultFilename
	}

	return &Analyzer{
		logger:      logging.Global(),
		raw:         t,
		interval:    d,
		valueColumn: analytics.DefaultValueColumn,
		filename:    filename,
	}, nil
}

// WithLogger replaces the analyzer's logger
func (a *Analyzer) WithLogger(logger *logging.Logger) *Analyzer {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithValueColumn changes the column inspected by MissingRuns and MissingSummary
func (a *Analyzer) WithValueColumn(col string) *Analyzer {
	if col != "" {
		a.valueColumn = col
	}
	return a
}

// Interval returns the parsed sampling interval
func (a *Analyzer) Interval() time.Duration {
	return a.interval
}

// Cleaned returns the filled table, or nil until Interpolate or Impute has run
func (a *Analyzer) Cleaned() *analytics.Table {
	return a.cleaned
}

// CleanedFilename returns "<filename>_cleaned.csv"
func (a *Analyzer) CleanedFilename() string {
	return a.filename + "_cleaned.csv"
}
