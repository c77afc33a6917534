package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/utils"
)

// DefaultTable is the datapoint table name
const DefaultTable = "datapoints"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect holds the statements that differ between drivers
type dialect struct {
	driver    string
	timestamp string
	ph        func(n int) string
}

var dialects = map[utils.SourceType]dialect{
	utils.SourceTypeSQLite: {
		driver:    "sqlite3",
		timestamp: "TIMESTAMP",
		ph:        func(int) string { return "?" },
	},
	utils.SourceTypePostgres: {
		driver:    "postgres",
		timestamp: "TIMESTAMPTZ",
		ph:        func(n int) string { return fmt.Sprintf("$%d", n) },
	},
}

// SQLStore reads and writes datapoints in a SQL table keyed by
// (external_id, ts). It serves as both a Retriever and a datapoint sink.
type SQLStore struct {
	logger  *logging.Logger
	db      *sql.DB
	dialect dialect
	table   string
}

// OpenSQLStore opens the database named by cfg and creates the datapoint
// table if needed
func OpenSQLStore(cfg config.SourceConfig, logger *logging.Logger) (*SQLStore, error) {
	kind := utils.SourceType(strings.ToLower(cfg.Type))
	d, ok := dialects[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported sql source type: %s", cfg.Type)
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", kind, err)
	}
	if kind == utils.SourceTypeSQLite {
		db.SetMaxOpenConns(1)
	}

	s, err := NewSQLStore(db, kind, cfg.Table, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), utils.RetrieveTimeout)
	defer cancel()
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database
func NewSQLStore(db *sql.DB, kind utils.SourceType, table string, logger *logging.Logger) (*SQLStore, error) {
	d, ok := dialects[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported sql source type: %s", kind)
	}
	if table == "" {
		table = DefaultTable
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", analytics.ErrInvalidConfig, table)
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &SQLStore{logger: logger, db: db, dialect: d, table: table}, nil
}

// InitSchema creates the datapoint table and its index
func (s *SQLStore) InitSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	external_id TEXT NOT NULL,
	ts %s NOT NULL,
	value DOUBLE PRECISION,
	PRIMARY KEY (external_id, ts)
	)`, s.table, s.dialect.timestamp),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s(ts)`, s.table, s.table),
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Retrieve implements Retriever
func (s *SQLStore) Retrieve(ctx context.Context, q Query) (*analytics.Table, error) {
	granularity, err := q.Validate()
	if err != nil {
		return nil, err
	}

	where := []string{"external_id = " + s.dialect.ph(1)}
	args := []interface{}{q.Tag}
	if q.Start != nil {
		args = append(args, q.Start.UTC())
		where = append(where, "ts >= "+s.dialect.ph(len(args)))
	}
	if q.End != nil {
		args = append(args, q.End.UTC())
		where = append(where, "ts <= "+s.dialect.ph(len(args)))
	}
	query := fmt.Sprintf("SELECT ts, value FROM %s WHERE %s ORDER BY ts",
		s.table, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Tag, err)
	}
	defer func() { _ = rows.Close() }()

	points := make(analytics.TimeSeriesData, 0)
	for rows.Next() {
		var (
			ts    time.Time
			value sql.NullFloat64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("failed to scan datapoint: %w", err)
		}
		v := analytics.Null()
		if value.Valid {
			v = value.Float64
		}
		points = append(points, analytics.TimeSeriesPoint{Time: ts, Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read datapoints: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no datapoints for %s in range", ErrTagNotFound, q.Tag)
	}

	out, err := finish(points, q, granularity)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Retrieved datapoints",
		"tag", q.Tag,
		"table", s.table,
		"rows", out.Len(),
		"aggregate", q.Aggregate)
	return out, nil
}

// WriteDatapoints upserts points for tag in one transaction and returns the
// number written. Null values are skipped.
func (s *SQLStore) WriteDatapoints(ctx context.Context, tag string, points analytics.TimeSeriesData) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (external_id, ts, value) VALUES (%s, %s, %s) "+
			"ON CONFLICT (external_id, ts) DO UPDATE SET value = excluded.value",
		s.table, s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3)))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	written := 0
	for _, p := range points {
		if analytics.IsNull(p.Value) {
			continue
		}
		if _, err := stmt.ExecContext(ctx, tag, p.Time.UTC(), p.Value); err != nil {
			return written, fmt.Errorf("failed to insert datapoint at %s: %w", p.Time.Format(time.RFC3339), err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit datapoints: %w", err)
	}
	return written, nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
