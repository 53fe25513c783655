package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
	"github.com/jam2205/TradingView-Screener/pkg/util"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    dataset      TEXT    NOT NULL,
    collected_at INTEGER NOT NULL,
    total_count  INTEGER NOT NULL,
    columns      TEXT    NOT NULL,
    rows         TEXT    NOT NULL,
    PRIMARY KEY (dataset, collected_at)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_dataset ON snapshots (dataset, collected_at);
`

// SQLiteStore keeps every collection of every dataset in one database file.
// Columns and rows are stored as JSON blobs; the (dataset, collected_at)
// key gives range loads without any per-dataset schema management.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *applogger.Logger
}

func NewSQLiteStore(path string, logger *applogger.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", drepo.ErrInvalidConfig)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap *models.Snapshot) (string, error) {
	columns, err := json.Marshal(snap.Columns)
	if err != nil {
		return "", fmt.Errorf("marshal columns: %w", err)
	}
	rows, err := json.Marshal(snap.Rows)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}

	const q = `INSERT OR REPLACE INTO snapshots (dataset, collected_at, total_count, columns, rows)
               VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		snap.Dataset, snap.CollectedAt.UTC().Unix(), snap.TotalCount, string(columns), string(rows),
	); err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}

	location := fmt.Sprintf("%s#%s_%s", s.path, snap.Dataset, util.FormatStamp(snap.CollectedAt))
	s.logger.Debug("snapshot written",
		applogger.String("location", location),
		applogger.Int("rows", snap.NumRows()),
	)
	return location, nil
}

func (s *SQLiteStore) List(ctx context.Context, dataset string) ([]time.Time, error) {
	const q = `SELECT collected_at FROM snapshots WHERE dataset = ? ORDER BY collected_at ASC`
	rows, err := s.db.QueryContext(ctx, q, dataset)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		out = append(out, time.Unix(ts, 0).UTC())
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, dataset string, start, end time.Time) ([]*models.Snapshot, error) {
	lo := int64(0)
	hi := int64(math.MaxInt64)
	if !start.IsZero() {
		lo = start.UTC().Unix()
	}
	if !end.IsZero() {
		hi = end.UTC().Unix()
	}

	const q = `SELECT collected_at, total_count, columns, rows FROM snapshots
               WHERE dataset = ? AND collected_at >= ? AND collected_at <= ?
               ORDER BY collected_at ASC`
	rows, err := s.db.QueryContext(ctx, q, dataset, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	var out []*models.Snapshot
	for rows.Next() {
		var (
			ts       int64
			total    int
			colsJSON string
			rowsJSON string
		)
		if err := rows.Scan(&ts, &total, &colsJSON, &rowsJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap := &models.Snapshot{
			Dataset:     dataset,
			CollectedAt: time.Unix(ts, 0).UTC(),
			TotalCount:  total,
		}
		if err := json.Unmarshal([]byte(colsJSON), &snap.Columns); err != nil {
			return nil, fmt.Errorf("unmarshal columns: %w", err)
		}
		if err := json.Unmarshal([]byte(rowsJSON), &snap.Rows); err != nil {
			return nil, fmt.Errorf("unmarshal rows: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ drepo.SnapshotStore = (*SQLiteStore)(nil)
