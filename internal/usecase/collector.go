package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
)

// Unbounded makes a run repeat until it is cancelled.
const Unbounded = -1

// ErrorPolicy decides what a run does when a tick fails.
type ErrorPolicy string

const (
	// StopOnError aborts the whole run on the first failing tick.
	StopOnError ErrorPolicy = "stop"
	// ContinueOnError records the failure and proceeds to the next tick.
	ContinueOnError ErrorPolicy = "continue"
)

// CollectorConfig tunes per-snapshot behavior shared by all runs.
type CollectorConfig struct {
	// AddMetadata appends collection_timestamp, collection_unix and
	// dataset_name columns to every snapshot.
	AddMetadata bool
	// ValidateData runs data quality checks and logs findings. Never fatal.
	ValidateData bool
}

// Collector executes screener queries on a cadence and persists each result.
// All collaborators are injected; Collector itself holds no global state.
type Collector struct {
	exec    drepo.QueryExecutor
	store   drepo.SnapshotStore
	pub     drepo.SnapshotPublisher
	metrics drepo.Metrics
	logger  *applogger.Logger
	cfg     CollectorConfig
}

// NewCollector creates a Collector. pub may be nil when no side channel is wired.
func NewCollector(
	exec drepo.QueryExecutor,
	store drepo.SnapshotStore,
	pub drepo.SnapshotPublisher,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	cfg CollectorConfig,
) *Collector {
	return &Collector{exec: exec, store: store, pub: pub, metrics: metrics, logger: logger, cfg: cfg}
}

// RunSpec describes one collection run.
type RunSpec struct {
	Query         *models.Query
	Dataset       string
	Interval      time.Duration
	MaxIterations int // positive count, 0 for no ticks, or Unbounded
	OnError       ErrorPolicy
	Hooks         []models.Transform
}

func (s *RunSpec) validate() error {
	if s.Query == nil {
		return fmt.Errorf("%w: query is required", drepo.ErrInvalidConfig)
	}
	if s.Dataset == "" {
		return fmt.Errorf("%w: dataset is required", drepo.ErrInvalidConfig)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", drepo.ErrInvalidConfig, s.Interval)
	}
	if s.MaxIterations < Unbounded {
		return fmt.Errorf("%w: max iterations must be >= 0 or Unbounded, got %d", drepo.ErrInvalidConfig, s.MaxIterations)
	}
	switch s.OnError {
	case "":
		s.OnError = ContinueOnError
	case StopOnError, ContinueOnError:
	default:
		return fmt.Errorf("%w: unknown error policy %q", drepo.ErrInvalidConfig, s.OnError)
	}
	return nil
}

// Run executes spec.Query every spec.Interval until spec.MaxIterations ticks
// were attempted (failures count toward the budget) or ctx is cancelled.
// The first tick fires immediately. With StopOnError the first tick error is
// returned together with the partial report; snapshots persisted by earlier
// successful ticks stay persisted.
func (c *Collector) Run(ctx context.Context, spec RunSpec) (*models.RunReport, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	report := &models.RunReport{Dataset: spec.Dataset, StartedAt: time.Now()}
	defer func() { report.FinishedAt = time.Now() }()

	if spec.MaxIterations == 0 {
		return report, nil
	}

	c.logger.Info("collection run started",
		applogger.String("dataset", spec.Dataset),
		applogger.Duration("interval", spec.Interval),
		applogger.String("max_iterations", iterationsLabel(spec.MaxIterations)),
		applogger.String("on_error", string(spec.OnError)),
	)

	timer := time.NewTimer(spec.Interval)
	defer timer.Stop()

	for i := 0; spec.MaxIterations == Unbounded || i < spec.MaxIterations; i++ {
		if i > 0 {
			// Cooperative cancellation: checked between ticks, never mid-tick.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(spec.Interval)
			select {
			case <-ctx.Done():
				c.logger.Info("collection run cancelled",
					applogger.String("dataset", spec.Dataset),
					applogger.Int("ticks", report.Ticks),
				)
				return report, ctx.Err()
			case <-timer.C:
			}
		}

		report.Ticks++
		snap, err := c.collect(ctx, spec.Query, spec.Dataset, spec.Hooks)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, models.TickError{
				Iteration: report.Ticks,
				At:        time.Now(),
				Err:       err,
				Message:   err.Error(),
			})
			if spec.OnError == StopOnError {
				c.logger.Error("collection run aborted",
					applogger.String("dataset", spec.Dataset),
					applogger.Int("tick", report.Ticks),
					applogger.Error(err),
				)
				return report, err
			}
			c.logger.Warn("tick failed, continuing",
				applogger.String("dataset", spec.Dataset),
				applogger.Int("tick", report.Ticks),
				applogger.Error(err),
			)
			continue
		}

		report.Succeeded++
		c.logger.Info("tick collected",
			applogger.String("dataset", spec.Dataset),
			applogger.Int("tick", report.Ticks),
			applogger.Int("rows", snap.NumRows()),
		)
	}

	c.logger.Info("collection run finished",
		applogger.String("dataset", spec.Dataset),
		applogger.Int("succeeded", report.Succeeded),
		applogger.Int("failed", report.Failed),
	)
	return report, nil
}

// CollectOnce executes the query a single time, persists the snapshot and
// returns it.
func (c *Collector) CollectOnce(ctx context.Context, q *models.Query, dataset string, hooks ...models.Transform) (*models.Snapshot, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: query is required", drepo.ErrInvalidConfig)
	}
	if dataset == "" {
		return nil, fmt.Errorf("%w: dataset is required", drepo.ErrInvalidConfig)
	}
	return c.collect(ctx, q, dataset, hooks)
}

// CollectBatch runs each named query independently, in name order. A failing
// entry yields an error marker in the result and never aborts the others.
func (c *Collector) CollectBatch(ctx context.Context, queries map[string]*models.Query) map[string]models.BatchResult {
	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]models.BatchResult, len(queries))
	for _, name := range names {
		snap, err := c.collect(ctx, queries[name], name, nil)
		if err != nil {
			c.logger.Warn("batch entry failed",
				applogger.String("dataset", name),
				applogger.Error(err),
			)
			results[name] = models.BatchResult{Err: err}
			continue
		}
		results[name] = models.BatchResult{Snapshot: snap}
	}
	return results
}

// LoadHistorical returns the persisted snapshots of a dataset whose collection
// time falls in [start, end], in chronological order. Zero start/end leave the
// corresponding bound open. ErrNotFound when nothing matches.
func (c *Collector) LoadHistorical(ctx context.Context, dataset string, start, end time.Time) ([]*models.Snapshot, error) {
	snaps, err := c.store.Load(ctx, dataset, start, end)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: dataset %s", drepo.ErrNotFound, dataset)
	}
	return snaps, nil
}

// ListCollections returns the recorded collection times of a dataset in
// chronological order.
func (c *Collector) ListCollections(ctx context.Context, dataset string) ([]time.Time, error) {
	return c.store.List(ctx, dataset)
}

// LoadHistoricalCombined concatenates the matching snapshots into one.
func (c *Collector) LoadHistoricalCombined(ctx context.Context, dataset string, start, end time.Time) (*models.Snapshot, error) {
	snaps, err := c.LoadHistorical(ctx, dataset, start, end)
	if err != nil {
		return nil, err
	}
	return models.Concat(snaps), nil
}

// collect is one tick: execute, transform, tag, persist, publish.
func (c *Collector) collect(ctx context.Context, q *models.Query, dataset string, hooks []models.Transform) (*models.Snapshot, error) {
	start := time.Now()

	snap, err := c.exec.Execute(ctx, q)
	if err != nil {
		c.metrics.RecordError("query")
		return nil, &drepo.QueryError{Dataset: dataset, Err: err}
	}
	snap.Dataset = dataset
	snap.CollectedAt = start

	for i, hook := range hooks {
		next, err := hook(snap.Clone())
		if err != nil {
			c.metrics.RecordError("hook")
			return nil, &drepo.HookError{Dataset: dataset, Index: i, Err: err}
		}
		snap = next
	}

	if c.cfg.AddMetadata {
		addCollectionMetadata(snap)
	}
	if c.cfg.ValidateData {
		for _, issue := range ValidateSnapshot(snap) {
			c.logger.Warn("data quality issue",
				applogger.String("dataset", dataset),
				applogger.String("issue", issue),
			)
		}
	}

	loc, err := c.store.Save(ctx, snap)
	if err != nil {
		c.metrics.RecordError("persist")
		return nil, &drepo.PersistError{Dataset: dataset, Err: err}
	}

	if c.pub != nil {
		// Side channel only; a failed publish never fails the tick.
		if err := c.pub.Publish(ctx, snap); err != nil {
			c.metrics.RecordError("publish")
			c.logger.Warn("snapshot publish failed",
				applogger.String("dataset", dataset),
				applogger.Error(err),
			)
		}
	}

	c.metrics.RecordSnapshot(dataset, snap.NumRows())
	c.metrics.RecordLastRowCount(dataset, snap.NumRows())
	c.metrics.RecordTickDuration(dataset, time.Since(start).Seconds())

	c.logger.Debug("snapshot persisted",
		applogger.String("dataset", dataset),
		applogger.String("location", loc),
	)
	return snap, nil
}

// addCollectionMetadata mirrors the metadata columns of the historical
// datasets: collection_timestamp, collection_unix, dataset_name.
func addCollectionMetadata(snap *models.Snapshot) {
	n := snap.NumRows()
	ts := make([]any, n)
	unix := make([]any, n)
	name := make([]any, n)
	for i := 0; i < n; i++ {
		ts[i] = snap.CollectedAt.Format(time.RFC3339)
		unix[i] = snap.CollectedAt.Unix()
		name[i] = snap.Dataset
	}
	_ = snap.AddColumn("collection_timestamp", ts)
	_ = snap.AddColumn("collection_unix", unix)
	_ = snap.AddColumn("dataset_name", name)
}

func iterationsLabel(n int) string {
	if n == Unbounded {
		return "unbounded"
	}
	return strconv.Itoa(n)
}
