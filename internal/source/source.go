// Package source retrieves a tag's datapoints over a time range as an
// analytics table, from CSV files or a SQL datapoint store.
package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soltixdb/tagwatch/internal/aggregation"
	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/utils"
)

// Query selects datapoints of one tag
type Query struct {
	Tag         string     // External id of the series
	Start       *time.Time // Inclusive; nil is open
	End         *time.Time // Inclusive; nil is open
	Aggregate   string     // Empty returns raw datapoints
	Granularity string     // Bucket size for Aggregate ("1m", "1h", "PT15M")
}

// Validate checks the query and returns the parsed granularity (zero for raw)
func (q Query) Validate() (time.Duration, error) {
	if strings.TrimSpace(q.Tag) == "" {
		return 0, fmt.Errorf("%w: tag is required", analytics.ErrInvalidArgument)
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return 0, fmt.Errorf("%w: end %s is before start %s",
			analytics.ErrInvalidArgument, q.End.Format(time.RFC3339), q.Start.Format(time.RFC3339))
	}
	if q.Aggregate == "" {
		return 0, nil
	}
	if q.Granularity == "" {
		return 0, fmt.Errorf("%w: granularity is required with aggregate %q", analytics.ErrInvalidArgument, q.Aggregate)
	}
	g, err := utils.ParseGranularity(q.Granularity)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", analytics.ErrInvalidArgument, err)
	}
	return g, nil
}

// Retriever loads a tag's datapoints as a table with a "value" column
type Retriever interface {
	Retrieve(ctx context.Context, q Query) (*analytics.Table, error)
}

// New creates the retriever selected by cfg.Type
func New(cfg config.SourceConfig, logger *logging.Logger) (Retriever, error) {
	switch utils.SourceType(strings.ToLower(cfg.Type)) {
	case "", utils.SourceTypeCSV:
		return NewCSVRetriever(cfg.Path, cfg.GetTimezone(), logger), nil
	case utils.SourceTypeSQLite, utils.SourceTypePostgres:
		return OpenSQLStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported source type: %s (supported: csv, sqlite, postgres)", cfg.Type)
	}
}

// finish filters, aggregates and tabulates points for q
func finish(points analytics.TimeSeriesData, q Query, granularity time.Duration) (*analytics.Table, error) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	if granularity > 0 {
		fn, err := aggregation.ParseFunction(q.Aggregate)
		if err != nil {
			return nil, err
		}
		points, err = aggregation.Aggregate(points, fn, granularity)
		if err != nil {
			return nil, err
		}
	}
	return analytics.FromPoints(points, analytics.DefaultValueColumn), nil
}
