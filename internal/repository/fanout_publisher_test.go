package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
)

type stubPublisher struct {
	published int
	closed    bool
	err       error
}

func (s *stubPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	s.published++
	return s.err
}

func (s *stubPublisher) Close() error {
	s.closed = true
	return s.err
}

func TestFanoutPublishesToAllTargets(t *testing.T) {
	a, b := &stubPublisher{}, &stubPublisher{}
	f := NewFanoutPublisher(a, nil, b)

	snap := &models.Snapshot{Dataset: "stocks", CollectedAt: time.Now()}
	if err := f.Publish(context.Background(), snap); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if a.published != 1 || b.published != 1 {
		t.Fatalf("published = %d/%d, want 1/1", a.published, b.published)
	}
}

func TestFanoutAttemptsAllOnError(t *testing.T) {
	bad := &stubPublisher{err: errors.New("boom")}
	good := &stubPublisher{}
	f := NewFanoutPublisher(bad, good)

	err := f.Publish(context.Background(), &models.Snapshot{Dataset: "stocks"})
	if err == nil {
		t.Fatal("expected error")
	}
	if good.published != 1 {
		t.Fatal("second target skipped after first failed")
	}
}

func TestFanoutClose(t *testing.T) {
	a, b := &stubPublisher{}, &stubPublisher{}
	f := NewFanoutPublisher(a, b)
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("targets not closed")
	}
}
