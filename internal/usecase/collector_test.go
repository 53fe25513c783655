package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// fakeExec returns canned snapshots or errors, one per call.
type fakeExec struct {
	mu    sync.Mutex
	calls int
	errAt map[int]error // 1-based call number -> error
}

func (f *fakeExec) Execute(ctx context.Context, q *models.Query) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errAt[f.calls]; ok {
		return nil, err
	}
	return &models.Snapshot{
		TotalCount: 2,
		Columns:    []string{"ticker", "close"},
		Rows: [][]any{
			{"NASDAQ:AAPL", 180.5},
			{"NASDAQ:MSFT", 410.0},
		},
	}, nil
}

func (f *fakeExec) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memStore keeps snapshots in memory, ordered by insertion.
type memStore struct {
	mu      sync.Mutex
	saved   map[string][]*models.Snapshot
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string][]*models.Snapshot)}
}

func (m *memStore) Save(ctx context.Context, snap *models.Snapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved[snap.Dataset] = append(m.saved[snap.Dataset], snap.Clone())
	return "mem://" + snap.Dataset, nil
}

func (m *memStore) List(ctx context.Context, dataset string) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, s := range m.saved[dataset] {
		out = append(out, s.CollectedAt)
	}
	return out, nil
}

func (m *memStore) Load(ctx context.Context, dataset string, start, end time.Time) ([]*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Snapshot
	for _, s := range m.saved[dataset] {
		if !start.IsZero() && s.CollectedAt.Before(start) {
			continue
		}
		if !end.IsZero() && s.CollectedAt.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count(dataset string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved[dataset])
}

type nopMetrics struct{}

func (nopMetrics) RecordSnapshot(string, int)        {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordTickDuration(string, float64) {}
func (nopMetrics) RecordLastRowCount(string, int)    {}

type failPub struct{ calls int }

func (p *failPub) Publish(ctx context.Context, snap *models.Snapshot) error {
	p.calls++
	return errors.New("broker down")
}
func (p *failPub) Close() error { return nil }

func newTestCollector(t *testing.T, exec drepo.QueryExecutor, store drepo.SnapshotStore, pub drepo.SnapshotPublisher, cfg CollectorConfig) *Collector {
	t.Helper()
	return NewCollector(exec, store, pub, nopMetrics{}, testLogger(t), cfg)
}

func baseQuery() *models.Query {
	return &models.Query{Market: "america", Columns: []string{"close"}}
}

func TestRunExactTickCount(t *testing.T) {
	exec := &fakeExec{}
	store := newMemStore()
	c := newTestCollector(t, exec, store, nil, CollectorConfig{})

	report, err := c.Run(context.Background(), RunSpec{
		Query:         baseQuery(),
		Dataset:       "stocks",
		Interval:      time.Millisecond,
		MaxIterations: 3,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Ticks != 3 || report.Succeeded != 3 || report.Failed != 0 {
		t.Fatalf("report = %d/%d/%d, want 3/3/0", report.Ticks, report.Succeeded, report.Failed)
	}
	if got := exec.callCount(); got != 3 {
		t.Fatalf("exec calls = %d, want 3", got)
	}
	if got := store.count("stocks"); got != 3 {
		t.Fatalf("persisted = %d, want 3", got)
	}
}

func TestRunZeroIterations(t *testing.T) {
	exec := &fakeExec{}
	c := newTestCollector(t, exec, newMemStore(), nil, CollectorConfig{})

	report, err := c.Run(context.Background(), RunSpec{
		Query:         baseQuery(),
		Dataset:       "stocks",
		Interval:      time.Millisecond,
		MaxIterations: 0,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Ticks != 0 {
		t.Fatalf("ticks = %d, want 0", report.Ticks)
	}
	if exec.callCount() != 0 {
		t.Fatalf("exec called %d times, want 0", exec.callCount())
	}
}

func TestRunContinuePolicy(t *testing.T) {
	exec := &fakeExec{errAt: map[int]error{2: errors.New("boom")}}
	store := newMemStore()
	c := newTestCollector(t, exec, store, nil, CollectorConfig{})

	report, err := c.Run(context.Background(), RunSpec{
		Query:         baseQuery(),
		Dataset:       "stocks",
		Interval:      time.Millisecond,
		MaxIterations: 3,
		OnError:       ContinueOnError,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Ticks != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("report = %d/%d/%d, want 3/2/1", report.Ticks, report.Succeeded, report.Failed)
	}
	if got := store.count("stocks"); got != 2 {
		t.Fatalf("persisted = %d, want 2", got)
	}
	if len(report.Errors) != 1 || report.Errors[0].Iteration != 2 {
		t.Fatalf("errors = %+v, want one at iteration 2", report.Errors)
	}
}

func TestRunStopPolicy(t *testing.T) {
	exec := &fakeExec{errAt: map[int]error{2: errors.New("boom")}}
	store := newMemStore()
	c := newTestCollector(t, exec, store, nil, CollectorConfig{})

	report, err := c.Run(context.Background(), RunSpec{
		Query:         baseQuery(),
		Dataset:       "stocks",
		Interval:      time.Millisecond,
		MaxIterations: 5,
		OnError:       StopOnError,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var qerr *drepo.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("error type = %T, want *QueryError", err)
	}
	if report.Ticks != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("report = %d/%d/%d, want 2/1/1", report.Ticks, report.Succeeded, report.Failed)
	}
	// The snapshot collected before the abort stays persisted.
	if got := store.count("stocks"); got != 1 {
		t.Fatalf("persisted = %d, want 1", got)
	}
}

func TestRunInvalidSpec(t *testing.T) {
	c := newTestCollector(t, &fakeExec{}, newMemStore(), nil, CollectorConfig{})

	cases := []struct {
		name string
		spec RunSpec
	}{
		{"nil query", RunSpec{Dataset: "d", Interval: time.Second, MaxIterations: 1}},
		{"empty dataset", RunSpec{Query: baseQuery(), Interval: time.Second, MaxIterations: 1}},
		{"zero interval", RunSpec{Query: baseQuery(), Dataset: "d", MaxIterations: 1}},
		{"negative iterations", RunSpec{Query: baseQuery(), Dataset: "d", Interval: time.Second, MaxIterations: -2}},
		{"bad policy", RunSpec{Query: baseQuery(), Dataset: "d", Interval: time.Second, MaxIterations: 1, OnError: "retry"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Run(context.Background(), tc.spec)
			if !errors.Is(err, drepo.ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestRunCancellation(t *testing.T) {
	exec := &fakeExec{}
	c := newTestCollector(t, exec, newMemStore(), nil, CollectorConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	report, err := c.Run(ctx, RunSpec{
		Query:         baseQuery(),
		Dataset:       "stocks",
		Interval:      time.Hour,
		MaxIterations: Unbounded,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// The first tick fires before the interval wait.
	if report.Ticks != 1 || report.Succeeded != 1 {
		t.Fatalf("report = %d/%d, want 1/1", report.Ticks, report.Succeeded)
	}
}

func TestHookFailureFailsTick(t *testing.T) {
	exec := &fakeExec{}
	store := newMemStore()
	c := newTestCollector(t, exec, store, nil, CollectorConfig{})

	failing := func(s *models.Snapshot) (*models.Snapshot, error) {
		return nil, errors.New("bad transform")
	}
	_, err := c.CollectOnce(context.Background(), baseQuery(), "stocks", failing)
	if err == nil {
		t.Fatal("expected error")
	}
	var herr *drepo.HookError
	if !errors.As(err, &herr) {
		t.Fatalf("error type = %T, want *HookError", err)
	}
	if store.count("stocks") != 0 {
		t.Fatal("failed tick must not persist")
	}
}

func TestHooksRunInOrder(t *testing.T) {
	exec := &fakeExec{}
	store := newMemStore()
	c := newTestCollector(t, exec, store, nil, CollectorConfig{})

	first := func(s *models.Snapshot) (*models.Snapshot, error) {
		if err := s.AddColumn("step1", make([]any, s.NumRows())); err != nil {
			return nil, err
		}
		return s, nil
	}
	second := func(s *models.Snapshot) (*models.Snapshot, error) {
		if !s.HasColumn("step1") {
			return nil, errors.New("ran out of order")
		}
		return s, nil
	}
	snap, err := c.CollectOnce(context.Background(), baseQuery(), "stocks", first, second)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !snap.HasColumn("step1") {
		t.Fatal("transform column missing")
	}
}

func TestPublishFailureDoesNotFailTick(t *testing.T) {
	exec := &fakeExec{}
	store := newMemStore()
	pub := &failPub{}
	c := newTestCollector(t, exec, store, pub, CollectorConfig{})

	snap, err := c.CollectOnce(context.Background(), baseQuery(), "stocks")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if snap == nil || store.count("stocks") != 1 {
		t.Fatal("snapshot must persist despite failed publish")
	}
	if pub.calls != 1 {
		t.Fatalf("publish calls = %d, want 1", pub.calls)
	}
}

func TestPersistFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	c := newTestCollector(t, &fakeExec{}, store, nil, CollectorConfig{})

	_, err := c.CollectOnce(context.Background(), baseQuery(), "stocks")
	var perr *drepo.PersistError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *PersistError", err)
	}
}

func TestCollectionMetadata(t *testing.T) {
	c := newTestCollector(t, &fakeExec{}, newMemStore(), nil, CollectorConfig{AddMetadata: true})

	snap, err := c.CollectOnce(context.Background(), baseQuery(), "stocks")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, col := range []string{"collection_timestamp", "collection_unix", "dataset_name"} {
		if !snap.HasColumn(col) {
			t.Fatalf("missing metadata column %s", col)
		}
	}
	names := snap.Strings("dataset_name")
	for _, n := range names {
		if n != "stocks" {
			t.Fatalf("dataset_name = %q, want stocks", n)
		}
	}
}

func TestCollectBatchPartialFailure(t *testing.T) {
	exec := &fakeExec{errAt: map[int]error{2: errors.New("boom")}}
	store := newMemStore()
	c := newTestCollector(t, exec, store, nil, CollectorConfig{})

	results := c.CollectBatch(context.Background(), map[string]*models.Query{
		"bonds":  baseQuery(),
		"crypto": baseQuery(),
		"forex":  baseQuery(),
	})
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	// Entries run in name order, so crypto is the second call.
	if results["crypto"].Err == nil {
		t.Fatal("crypto should have failed")
	}
	if results["bonds"].Err != nil || results["forex"].Err != nil {
		t.Fatalf("bonds/forex failed: %v / %v", results["bonds"].Err, results["forex"].Err)
	}
	if results["bonds"].Snapshot.Dataset != "bonds" {
		t.Fatalf("dataset = %q, want bonds", results["bonds"].Snapshot.Dataset)
	}
}

func TestLoadHistorical(t *testing.T) {
	store := newMemStore()
	c := newTestCollector(t, &fakeExec{}, store, nil, CollectorConfig{})

	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		snap := &models.Snapshot{
			Dataset:     "stocks",
			CollectedAt: base.Add(time.Duration(i) * time.Hour),
			Columns:     []string{"close"},
			Rows:        [][]any{{float64(i)}},
		}
		if _, err := store.Save(context.Background(), snap); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	snaps, err := c.LoadHistorical(context.Background(), "stocks", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("snaps = %d, want 3", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].CollectedAt.Before(snaps[i-1].CollectedAt) {
			t.Fatal("snapshots out of chronological order")
		}
	}

	// Bounded range.
	snaps, err = c.LoadHistorical(context.Background(), "stocks", base.Add(30*time.Minute), time.Time{})
	if err != nil {
		t.Fatalf("load bounded: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("bounded snaps = %d, want 2", len(snaps))
	}

	// Unknown dataset.
	_, err = c.LoadHistorical(context.Background(), "nothing", time.Time{}, time.Time{})
	if !errors.Is(err, drepo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadHistoricalCombined(t *testing.T) {
	store := newMemStore()
	c := newTestCollector(t, &fakeExec{}, store, nil, CollectorConfig{})

	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		snap := &models.Snapshot{
			Dataset:     "stocks",
			CollectedAt: base.Add(time.Duration(i) * time.Hour),
			TotalCount:  1,
			Columns:     []string{"close"},
			Rows:        [][]any{{float64(i)}},
		}
		if _, err := store.Save(context.Background(), snap); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	combined, err := c.LoadHistoricalCombined(context.Background(), "stocks", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if combined.NumRows() != 2 || combined.TotalCount != 2 {
		t.Fatalf("combined rows=%d total=%d, want 2/2", combined.NumRows(), combined.TotalCount)
	}
}

func TestValidateSnapshotIssues(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"ticker", "mostly_missing", "constant"},
		Rows: [][]any{
			{"A", nil, 1.0},
			{"B", nil, 1.0},
			{"A", nil, 1.0},
		},
	}
	issues := ValidateSnapshot(snap)
	if len(issues) == 0 {
		t.Fatal("expected issues")
	}
	joined := ""
	for _, s := range issues {
		joined += s + ";"
	}
	for _, want := range []string{"mostly_missing", "duplicate", "constant"} {
		found := false
		for _, s := range issues {
			if strings.Contains(s, want) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("no issue mentioning %q in %q", want, joined)
		}
	}

	if got := ValidateSnapshot(&models.Snapshot{}); len(got) != 1 {
		t.Fatalf("empty snapshot issues = %v", got)
	}
}
