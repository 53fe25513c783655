package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
)

func TestArchiverPersistsSnapshot(t *testing.T) {
	store := newMemStore()
	a := NewSnapshotArchiver("screener.snapshots", store, testLogger(t))

	if a.Topic() != "screener.snapshots" {
		t.Fatalf("topic = %s", a.Topic())
	}

	snap := &models.Snapshot{
		Dataset:     "stocks",
		CollectedAt: time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC),
		Columns:     []string{"close"},
		Rows:        [][]any{{180.5}},
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := a.Handle(context.Background(), data); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.count("stocks") != 1 {
		t.Fatal("snapshot not archived")
	}
}

func TestArchiverRejectsBadMessages(t *testing.T) {
	store := newMemStore()
	a := NewSnapshotArchiver("screener.snapshots", store, testLogger(t))

	if err := a.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
	// A decodable message without a dataset is rejected too.
	data, _ := json.Marshal(&models.Snapshot{Columns: []string{"close"}})
	if err := a.Handle(context.Background(), data); err == nil {
		t.Fatal("expected missing-dataset error")
	}
	if store.count("") != 0 || store.count("stocks") != 0 {
		t.Fatal("bad messages must not persist")
	}
}

func TestCollectJobHandle(t *testing.T) {
	exec := &fakeExec{}
	store := newMemStore()
	c := newTestCollector(t, exec, store, nil, CollectorConfig{})
	job := NewCollectJob(c, testLogger(t))

	if job.Type() != CollectJobType {
		t.Fatalf("type = %s", job.Type())
	}

	// The queue delivers payloads as generic maps after the JSON round trip.
	data, _ := json.Marshal(CollectJobPayload{Dataset: "stocks", Query: baseQuery()})
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.count("stocks") != 1 {
		t.Fatal("queued collection not persisted")
	}
}

func TestCollectJobRejectsIncompletePayload(t *testing.T) {
	c := newTestCollector(t, &fakeExec{}, newMemStore(), nil, CollectorConfig{})
	job := NewCollectJob(c, testLogger(t))

	if err := job.Handle(context.Background(), CollectJobPayload{Dataset: "stocks"}); err == nil {
		t.Fatal("expected error for missing query")
	}
}
