package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	domrepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
)

// PublishPipeline sits between the collector and a snapshot publisher.
// It validates, throttles per dataset, and buffers snapshots while the
// downstream broker is unavailable, flushing them in the background.
type PublishPipeline struct {
	downstream domrepo.SnapshotPublisher
	metrics    domrepo.Metrics
	minGap     time.Duration
	bufSize    int
	bufCh      chan *models.Snapshot
	stopCh     chan struct{}
	started    bool
	mu         sync.Mutex
	lastSeen   map[string]time.Time // per-dataset last accepted time
}

type PipelineOption func(*PublishPipeline)

// WithMinGap sets the minimum spacing between published snapshots of the
// same dataset. Snapshots arriving faster are dropped.
func WithMinGap(d time.Duration) PipelineOption {
	return func(p *PublishPipeline) {
		if d > 0 {
			p.minGap = d
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *PublishPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewPublishPipeline creates a new pipeline in front of downstream.
func NewPublishPipeline(downstream domrepo.SnapshotPublisher, metrics domrepo.Metrics, opts ...PipelineOption) *PublishPipeline {
	p := &PublishPipeline{
		downstream: downstream,
		metrics:    metrics,
		minGap:     time.Second,
		bufSize:    256,
		bufCh:      make(chan *models.Snapshot, 256),
		stopCh:     make(chan struct{}),
		lastSeen:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Snapshot, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered snapshots.
func (p *PublishPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case snap := <-p.bufCh:
				if snap == nil {
					continue
				}
				if err := p.downstream.Publish(ctx, snap); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- snap:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *PublishPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Publish validates, throttles, and forwards a snapshot downstream,
// buffering on errors.
func (p *PublishPipeline) Publish(ctx context.Context, snap *models.Snapshot) error {
	now := time.Now()
	if err := validateSnapshot(snap); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(snap.Dataset, now) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.downstream.Publish(ctx, snap); err != nil {
		p.metrics.RecordError("pipeline_publish")
		// buffer non-blocking
		select {
		case p.bufCh <- snap:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

// Close stops flushing and closes the downstream publisher.
func (p *PublishPipeline) Close() error {
	p.Stop()
	return p.downstream.Close()
}

func validateSnapshot(snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot nil")
	}
	if snap.Dataset == "" {
		return fmt.Errorf("dataset empty")
	}
	if snap.CollectedAt.IsZero() {
		return fmt.Errorf("collection time missing")
	}
	return nil
}

func (p *PublishPipeline) allow(dataset string, now time.Time) bool {
	if p.minGap <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[dataset]
	if !last.IsZero() && now.Sub(last) < p.minGap {
		return false
	}
	p.lastSeen[dataset] = now
	return true
}

var _ domrepo.SnapshotPublisher = (*PublishPipeline)(nil)
