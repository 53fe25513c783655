package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	pkgch "github.com/jam2205/TradingView-Screener/pkg/clickhouse"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
	"github.com/jam2205/TradingView-Screener/pkg/util"
)

var clickhouseSchema = []string{`
CREATE TABLE IF NOT EXISTS screener_snapshots (
    dataset      String,
    collected_at DateTime64(3, 'UTC'),
    total_count  UInt32,
    columns      String,
    rows         String
) ENGINE = MergeTree()
ORDER BY (dataset, collected_at)
`}

// ClickHouseStore persists snapshots in a single MergeTree table ordered by
// (dataset, collected_at), so range loads are a primary key scan. Columns
// and rows travel as JSON strings, same shape as the sqlite backend.
type ClickHouseStore struct {
	client *pkgch.Client
	db     *sql.DB
	logger *applogger.Logger
}

func NewClickHouseStore(ctx context.Context, client *pkgch.Client, logger *applogger.Logger) (*ClickHouseStore, error) {
	if err := client.InitSchema(ctx, clickhouseSchema); err != nil {
		return nil, err
	}
	return &ClickHouseStore{client: client, db: client.DB(), logger: logger}, nil
}

func (s *ClickHouseStore) Save(ctx context.Context, snap *models.Snapshot) (string, error) {
	columns, err := json.Marshal(snap.Columns)
	if err != nil {
		return "", fmt.Errorf("marshal columns: %w", err)
	}
	rows, err := json.Marshal(snap.Rows)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}

	const q = `INSERT INTO screener_snapshots (dataset, collected_at, total_count, columns, rows)
               VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		snap.Dataset, snap.CollectedAt.UTC(), uint32(snap.TotalCount), string(columns), string(rows),
	); err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}

	location := fmt.Sprintf("screener_snapshots#%s_%s", snap.Dataset, util.FormatStamp(snap.CollectedAt))
	s.logger.Debug("snapshot written",
		applogger.String("location", location),
		applogger.Int("rows", snap.NumRows()),
	)
	return location, nil
}

func (s *ClickHouseStore) List(ctx context.Context, dataset string) ([]time.Time, error) {
	const q = `SELECT collected_at FROM screener_snapshots WHERE dataset = ? ORDER BY collected_at ASC`
	rows, err := s.db.QueryContext(ctx, q, dataset)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		out = append(out, t.UTC())
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) Load(ctx context.Context, dataset string, start, end time.Time) ([]*models.Snapshot, error) {
	q := `SELECT collected_at, total_count, columns, rows FROM screener_snapshots
          WHERE dataset = ?`
	args := []any{dataset}
	if !start.IsZero() {
		q += ` AND collected_at >= ?`
		args = append(args, start.UTC())
	}
	if !end.IsZero() {
		q += ` AND collected_at <= ?`
		args = append(args, end.UTC())
	}
	q += ` ORDER BY collected_at ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	var out []*models.Snapshot
	for rows.Next() {
		var (
			t        time.Time
			total    uint32
			colsJSON string
			rowsJSON string
		)
		if err := rows.Scan(&t, &total, &colsJSON, &rowsJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap := &models.Snapshot{
			Dataset:     dataset,
			CollectedAt: t.UTC(),
			TotalCount:  int(total),
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

func (s *ClickHouseStore) Close() error { return s.client.Close() }

var _ drepo.SnapshotStore = (*ClickHouseStore)(nil)
