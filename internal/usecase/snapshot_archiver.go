package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
)

// SnapshotArchiver consumes published snapshots and persists them into a
// second store. Returning an error hands the message to the consumer's
// retry/DLQ path, so a flaky archive store never loses snapshots silently.
type SnapshotArchiver struct {
	topic  string
	store  drepo.SnapshotStore
	logger *applogger.Logger
}

func NewSnapshotArchiver(topic string, store drepo.SnapshotStore, logger *applogger.Logger) *SnapshotArchiver {
	return &SnapshotArchiver{topic: topic, store: store, logger: logger}
}

func (a *SnapshotArchiver) Topic() string { return a.topic }

func (a *SnapshotArchiver) Handle(ctx context.Context, data []byte) error {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Dataset == "" {
		return fmt.Errorf("snapshot has no dataset")
	}

	location, err := a.store.Save(ctx, &snap)
	if err != nil {
		return fmt.Errorf("archive %s: %w", snap.Dataset, err)
	}
	a.logger.Debug("snapshot archived",
		applogger.String("dataset", snap.Dataset),
		applogger.String("location", location),
		applogger.Int("rows", snap.NumRows()),
	)
	return nil
}
