package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/csvio"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// ErrTagNotFound is returned when no data exists for a tag
var ErrTagNotFound = errors.New("tag not found")

// CSVRetriever reads <dir>/<tag>.csv (or <tag>.csv.sz)
type CSVRetriever struct {
	logger   *logging.Logger
	dir      string
	location *time.Location
}

// NewCSVRetriever creates a retriever over a directory of per-tag files
func NewCSVRetriever(dir string, loc *time.Location, logger *logging.Logger) *CSVRetriever {
	if logger == nil {
		logger = logging.Global()
	}
	return &CSVRetriever{logger: logger, dir: dir, location: loc}
}

// Retrieve implements Retriever
func (r *CSVRetriever) Retrieve(ctx context.Context, q Query) (*analytics.Table, error) {
	granularity, err := q.Validate()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := r.locate(q.Tag)
	if err != nil {
		return nil, err
	}

	t, err := csvio.ReadFile(path, csvio.ReadOptions{Location: r.location})
	if err != nil {
		return nil, err
	}
	window := t.Between(q.Start, q.End)
	values, err := window.Column(analytics.DefaultValueColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", analytics.ErrInvalidConfig, path, err)
	}
	if window.Len() == 0 {
		return nil, fmt.Errorf("%w: no datapoints for %s in range", ErrTagNotFound, q.Tag)
	}

	points := make(analytics.TimeSeriesData, window.Len())
	for i := range points {
		points[i] = analytics.TimeSeriesPoint{Time: window.Times[i], Value: values[i]}
	}

	out, err := finish(points, q, granularity)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Retrieved datapoints",
		"tag", q.Tag,
		"path", path,
		"rows", out.Len(),
		"aggregate", q.Aggregate)
	return out, nil
}

func (r *CSVRetriever) locate(tag string) (string, error) {
	for _, name := range []string{tag + ".csv", tag + ".csv.sz"} {
		path := filepath.Join(r.dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrTagNotFound, tag, r.dir)
}
