package repository

import (
	"context"
	"errors"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
)

// FanoutPublisher delivers each snapshot to every registered publisher.
// All targets are attempted; errors are joined rather than short-circuited.
type FanoutPublisher struct {
	targets []drepo.SnapshotPublisher
}

func NewFanoutPublisher(targets ...drepo.SnapshotPublisher) *FanoutPublisher {
	out := make([]drepo.SnapshotPublisher, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			out = append(out, t)
		}
	}
	return &FanoutPublisher{targets: out}
}

func (f *FanoutPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.Publish(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutPublisher) Close() error {
	var errs []error
	for _, t := range f.targets {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ drepo.SnapshotPublisher = (*FanoutPublisher)(nil)
