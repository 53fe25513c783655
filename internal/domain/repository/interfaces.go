package repository

import (
	"context"
	"time"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
)

// QueryExecutor runs a screener query and returns a tabular result.
type QueryExecutor interface {
	Execute(ctx context.Context, q *models.Query) (*models.Snapshot, error)
}

// SnapshotStore persists snapshots under a dataset name and serves them back
// by time range. One writer per dataset is assumed; concurrent readers are
// safe. Save returns an opaque location (file path, table, ...).
type SnapshotStore interface {
	Save(ctx context.Context, snap *models.Snapshot) (string, error)
	List(ctx context.Context, dataset string) ([]time.Time, error)
	Load(ctx context.Context, dataset string, start, end time.Time) ([]*models.Snapshot, error)
	Close() error
}

// SnapshotPublisher fans freshly collected snapshots out to a side channel
// (Kafka topic, live websocket feed). Publishing is best effort and never
// fails a tick.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap *models.Snapshot) error
	Close() error
}

// Metrics records collection telemetry.
type Metrics interface {
	RecordSnapshot(dataset string, rows int)
	RecordError(kind string)
	RecordTickDuration(dataset string, seconds float64)
	RecordLastRowCount(dataset string, rows int)
}
