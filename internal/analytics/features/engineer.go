package features

import (
	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// Engineer runs the full feature set for a configured value column and window
type Engineer struct {
	logger      *logging.Logger
	ValueColumn string
	Window      int
}

// NewEngineer creates an Engineer, applying defaults for empty settings
func NewEngineer(logger *logging.Logger, valueCol string, window int) *Engineer {
	if valueCol == "" {
		valueCol = analytics.DefaultValueColumn
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Engineer{
		logger:      logger,
		ValueColumn: valueCol,
		Window:      window,
	}
}

// Run generates all features on t
func (e *Engineer) Run(t *analytics.Table) (*analytics.Table, error) {
	if _, err := GenerateAll(t, e.ValueColumn, e.Window); err != nil {
		e.logger.Error("Feature generation failed",
			"column", e.ValueColumn,
			"window", e.Window,
			"error", err)
		return t, err
	}

	e.logger.Debug("Generated features",
		"column", e.ValueColumn,
		"window", e.Window,
		"rows", t.Len(),
		"columns", len(t.ColumnNames()))
	return t, nil
}
