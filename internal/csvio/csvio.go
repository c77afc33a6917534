// Package csvio loads and saves analytics tables as CSV with a timestamp
// column, optionally snappy-framed, locally or on S3.
package csvio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/golang/snappy"
	"github.com/relvacode/iso8601"

	"github.com/soltixdb/tagwatch/internal/analytics"
)

const (
	// TimestampColumn is the index column name in files
	TimestampColumn = "Timestamp"

	// StatusColumn carries row labels when the table has been classified
	StatusColumn = "Status"

	// SnappyExt marks snappy-framed files
	SnappyExt = ".sz"

	// fallbackLayout is the space-separated layout common in exported CSVs
	fallbackLayout = "2006-01-02 15:04:05"
)

// ReadOptions controls CSV decoding
type ReadOptions struct {
	TimestampColumn string
	Location        *time.Location // Zone for timestamps without an offset (default: UTC)
}

func (o ReadOptions) withDefaults() ReadOptions {
	if o.TimestampColumn == "" {
		o.TimestampColumn = TimestampColumn
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Read decodes a CSV stream into a table. The timestamp column becomes the
// index; a Status column is restored as labels; every other column is parsed
// as float with unparsable or empty cells null.
func Read(r io.Reader, opts ReadOptions) (*analytics.Table, error) {
	opts = opts.withDefaults()

	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", df.Err)
	}

	names := df.Names()
	if !contains(names, opts.TimestampColumn) {
		return nil, fmt.Errorf("%w: timestamp column %q not found", analytics.ErrInvalidConfig, opts.TimestampColumn)
	}

	records := df.Col(opts.TimestampColumn).Records()
	times := make([]time.Time, len(records))
	for i, rec := range records {
		ts, err := ParseTimestamp(rec, opts.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", analytics.ErrInvalidConfig, i+1, err)
		}
		times[i] = ts
	}

	t := analytics.NewTable(times)
	for _, name := range names {
		switch name {
		case opts.TimestampColumn:
			continue
		case StatusColumn:
			labels := df.Col(name).Records()
			t.Status = make([]analytics.Status, len(labels))
			for i, l := range labels {
				t.Status[i] = analytics.Status(l)
			}
		default:
			t.SetColumn(name, df.Col(name).Float())
		}
	}
	return t, nil
}

// ReadFile reads a CSV file, unwrapping snappy framing for ".sz" paths
func ReadFile(path string, opts ReadOptions) (*analytics.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, SnappyExt) {
		r = snappy.NewReader(f)
	}
	return Read(r, opts)
}

// ParseTimestamp accepts ISO-8601 timestamps and the "2006-01-02 15:04:05"
// layout. Values without an offset are placed in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if ts, err := iso8601.ParseInLocation([]byte(s), loc); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(fallbackLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return ts, nil
}

// Write encodes t as CSV: Timestamp, then Status when present, then columns
// in insertion order. Null cells are written empty.
func Write(w io.Writer, t *analytics.Table) error {
	if t == nil {
		return fmt.Errorf("%w: no table to write", analytics.ErrInvalidConfig)
	}

	stamps := make([]string, t.Len())
	for i, ts := range t.Times {
		stamps[i] = ts.Format(time.RFC3339Nano)
	}
	cols := []series.Series{series.New(stamps, series.String, TimestampColumn)}

	if t.Status != nil {
		labels := make([]string, len(t.Status))
		for i, s := range t.Status {
			labels[i] = string(s)
		}
		cols = append(cols, series.New(labels, series.String, StatusColumn))
	}

	for _, name := range t.ColumnNames() {
		values := t.MustColumn(name)
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = formatCell(v)
		}
		cols = append(cols, series.New(cells, series.String, name))
	}

	df := dataframe.New(cols...)
	if df.Err != nil {
		return fmt.Errorf("failed to build dataframe: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// Encode renders t as CSV bytes, snappy-framed when compress is set
func Encode(t *analytics.Table, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if !compress {
		if err := Write(&buf, t); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	sw := snappy.NewBufferedWriter(&buf)
	if err := Write(sw, t); err != nil {
		return nil, err
	}
	if err := sw.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush snappy writer: %w", err)
	}
	return buf.Bytes(), nil
}

// BaseName derives an export base name from a series external id: the last
// "."-separated segment.
func BaseName(externalID string) string {
	if i := strings.LastIndex(externalID, "."); i >= 0 {
		return externalID[i+1:]
	}
	return externalID
}

func formatCell(v float64) string {
	if analytics.IsNull(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
