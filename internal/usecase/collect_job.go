package usecase

import (
	"context"
	"fmt"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
	"github.com/jam2205/TradingView-Screener/pkg/queue"
)

// CollectJobType is the queue message type for asynchronous collections.
const CollectJobType = "snapshot.collect"

// CollectJobPayload is the queued form of a one-off collection request.
type CollectJobPayload struct {
	Dataset string        `json:"dataset"`
	Query   *models.Query `json:"query"`
}

// CollectJob runs queued collections through the collector, off the request
// path. API handlers enqueue, workers collect and persist.
type CollectJob struct {
	collector *Collector
	logger    *applogger.Logger
}

func NewCollectJob(collector *Collector, logger *applogger.Logger) *CollectJob {
	return &CollectJob{collector: collector, logger: logger}
}

func (j *CollectJob) Name() string { return "snapshot-collect" }

func (j *CollectJob) Type() string { return CollectJobType }

func (j *CollectJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[CollectJobPayload](payload)
	if err != nil {
		return fmt.Errorf("parse collect payload: %w", err)
	}
	if p.Dataset == "" || p.Query == nil {
		return fmt.Errorf("collect payload missing dataset or query")
	}

	snap, err := j.collector.CollectOnce(ctx, p.Query, p.Dataset)
	if err != nil {
		return fmt.Errorf("collect %s: %w", p.Dataset, err)
	}
	j.logger.Info("queued collection complete",
		applogger.String("dataset", p.Dataset),
		applogger.Int("rows", snap.NumRows()),
	)
	return nil
}
