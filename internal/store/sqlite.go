// Package store persists daily product metrics in SQLite. Each product owns
// its own table keyed on date, which keeps per-product reads trivial and
// lets imports for one product never touch another's history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sellerpulse/internal/dataprocessing"
	"sellerpulse/pkg/contracts/domain"
)

// tableNamePattern allowlists table identifiers. Table names reach SQL text
// directly, so anything outside this shape is rejected before query building.
var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store wraps a SQLite database holding one metrics table per product.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY on concurrent upserts.
	db.SetMaxOpenConns(1)
	return &Store{db: db, logger: logger.With(slog.String("component", "store"))}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureTables creates the metrics table for each named product table if it
// does not already exist.
func (s *Store) EnsureTables(ctx context.Context, tables []string) error {
	for _, table := range tables {
		if err := validTable(table); err != nil {
			return err
		}
		cols := make([]string, 0, len(dataprocessing.MetricColumns()))
		for _, col := range dataprocessing.MetricColumns() {
			cols = append(cols, col+" REAL DEFAULT 0")
		}
		query := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (date TEXT PRIMARY KEY, %s)",
			table, strings.Join(cols, ", "),
		)
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	s.logger.InfoContext(ctx, "ensured metric tables", slog.Int("count", len(tables)))
	return nil
}

// UpsertDaily writes full-row records into table, replacing every metric
// column for dates that already exist. All rows commit in one transaction.
func (s *Store) UpsertDaily(ctx context.Context, table string, records []domain.DailyMetricRecord) error {
	if err := validTable(table); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	cols := dataprocessing.MetricColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+1), ", ")
	updates := make([]string, 0, len(cols))
	for _, col := range cols {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (date, %s) VALUES (%s) ON CONFLICT(date) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), placeholders, strings.Join(updates, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare upsert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Date,
			r.GMV, r.ItemsSold, r.Orders, r.AOV, r.UnitsPerOrder,
			r.ProductImpressions, r.PageViews, r.ClickThroughRate,
			r.Visitors, r.Customers, r.ConversionRate,
			r.DollarPerVisitor, r.DollarPerCustomer, r.Subscribers,
		); err != nil {
			return fmt.Errorf("upsert %s for %s: %w", r.Date, table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert for %s: %w", table, err)
	}

	s.logger.InfoContext(ctx, "upserted daily records",
		slog.String("table", table),
		slog.Int("rows", len(records)))
	return nil
}

// UpsertColumns writes only the given columns for one date, leaving the
// rest of the row untouched. Unknown column names are rejected. Sparse
// imports (a CSV carrying a subset of metrics) rely on this to avoid
// zeroing columns they did not mention.
func (s *Store) UpsertColumns(ctx context.Context, table, date string, columns map[string]float64) error {
	if err := validTable(table); err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	known := make(map[string]bool, len(dataprocessing.MetricColumns()))
	for _, col := range dataprocessing.MetricColumns() {
		known[col] = true
	}

	names := make([]string, 0, len(columns))
	for col := range columns {
		if !known[col] {
			return fmt.Errorf("unknown metric column %q", col)
		}
		names = append(names, col)
	}
	sort.Strings(names)

	args := make([]any, 0, len(names)+1)
	args = append(args, date)
	updates := make([]string, 0, len(names))
	for _, col := range names {
		args = append(args, columns[col])
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)+1), ", ")

	query := fmt.Sprintf(
		"INSERT INTO %s (date, %s) VALUES (%s) ON CONFLICT(date) DO UPDATE SET %s",
		table, strings.Join(names, ", "), placeholders, strings.Join(updates, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert columns on %s for %s: %w", table, date, err)
	}
	return nil
}

// DailyHistory returns up to limit most recent rows from table in ascending
// date order. A limit of 0 or less returns the full history.
func (s *Store) DailyHistory(ctx context.Context, table string, limit int) ([]domain.DailyMetricRecord, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}

	cols := dataprocessing.MetricColumns()
	query := fmt.Sprintf("SELECT date, %s FROM %s ORDER BY date DESC", strings.Join(cols, ", "), table)
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", table, err)
	}
	defer rows.Close()

	var records []domain.DailyMetricRecord
	for rows.Next() {
		var r domain.DailyMetricRecord
		if err := rows.Scan(&r.Date,
			&r.GMV, &r.ItemsSold, &r.Orders, &r.AOV, &r.UnitsPerOrder,
			&r.ProductImpressions, &r.PageViews, &r.ClickThroughRate,
			&r.Visitors, &r.Customers, &r.ConversionRate,
			&r.DollarPerVisitor, &r.DollarPerCustomer, &r.Subscribers,
		); err != nil {
			return nil, fmt.Errorf("scan history row for %s: %w", table, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history for %s: %w", table, err)
	}

	// Rows arrive newest first so LIMIT trims old history; callers want
	// chronological order.
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}

// MetricSeries returns one named metric from table as a dated series in
// ascending date order. Dates that fail to parse are skipped.
func (s *Store) MetricSeries(ctx context.Context, table, column string) ([]domain.DatedValue, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	known := false
	for _, col := range dataprocessing.MetricColumns() {
		if col == column {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown metric column %q", column)
	}

	query := fmt.Sprintf("SELECT date, %s FROM %s ORDER BY date ASC", column, table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s series for %s: %w", column, table, err)
	}
	defer rows.Close()

	var series []domain.DatedValue
	for rows.Next() {
		var dateText string
		var value float64
		if err := rows.Scan(&dateText, &value); err != nil {
			return nil, fmt.Errorf("scan %s series for %s: %w", column, table, err)
		}
		date, err := time.Parse("2006-01-02", dateText)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unparseable date",
				slog.String("table", table),
				slog.String("date", dateText))
			continue
		}
		series = append(series, domain.DatedValue{Date: date, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s series for %s: %w", column, table, err)
	}
	return series, nil
}

func validTable(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}
