package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"farmdeck/internal/core"
)

// fakeBackupStore serves scripted pending records and tracks status changes.
type fakeBackupStore struct {
	pending  []core.Record
	projects map[string]core.Project
	backedUp []string
	errored  []string
	retried  bool
}

func (f *fakeBackupStore) GetPendingBackupRecords(_ context.Context, limit int) ([]core.Record, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	out := f.pending
	f.pending = nil
	return out, nil
}

func (f *fakeBackupStore) GetProject(_ context.Context, id string) (core.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return core.Project{}, core.ErrProjectNotFound
	}
	return p, nil
}

func (f *fakeBackupStore) GetRecord(_ context.Context, id string) (core.Record, error) {
	for _, r := range f.pending {
		if r.ID == id {
			return r, nil
		}
	}
	return core.Record{}, core.ErrRecordNotFound
}

func (f *fakeBackupStore) MarkBackedUp(_ context.Context, id string) error {
	f.backedUp = append(f.backedUp, id)
	return nil
}

func (f *fakeBackupStore) MarkBackupError(_ context.Context, id string) error {
	f.errored = append(f.errored, id)
	return nil
}

func (f *fakeBackupStore) RetryFailedBackups(context.Context) error {
	f.retried = true
	return nil
}

// fakeWriter appends successfully unless failID matches.
type fakeWriter struct {
	appended []string
	failID   string
}

func (f *fakeWriter) AppendRecord(_ context.Context, _ core.Project, r core.Record) (string, error) {
	if r.ID == f.failID {
		return "", fmt.Errorf("sheets unavailable")
	}
	f.appended = append(f.appended, r.ID)
	return "2024 Records!A2:H2", nil
}

func pendingRecord(id, projectID string) core.Record {
	return core.Record{
		ID:        id,
		ProjectID: projectID,
		Date:      core.NewDate(2024, 3, 1),
		Produce:   decimal.NewFromInt(3),
		Revenue:   core.Money{Cents: 1000},
		InputCost: core.Money{Cents: 200},
	}
}

func TestDefaultBackupProcessorConfig(t *testing.T) {
	config := DefaultBackupProcessorConfig()

	if config.PollInterval != 30*time.Second {
		t.Errorf("expected PollInterval 30s, got %v", config.PollInterval)
	}
	if config.BatchSize != 20 {
		t.Errorf("expected BatchSize 20, got %d", config.BatchSize)
	}
}

func TestProcessBatchBacksUpPendingRecords(t *testing.T) {
	store := &fakeBackupStore{
		pending: []core.Record{pendingRecord("r1", "p1"), pendingRecord("r2", "p1")},
		projects: map[string]core.Project{
			"p1": {ID: "p1", Title: "Maize", StartDate: core.NewDate(2024, 1, 1)},
		},
	}
	writer := &fakeWriter{}
	processor := NewBackupProcessor(store, writer, DefaultBackupProcessorConfig())

	processor.stopCh = make(chan struct{})
	processor.processBatch(context.Background())

	if len(writer.appended) != 2 {
		t.Fatalf("expected 2 appends, got %v", writer.appended)
	}
	if len(store.backedUp) != 2 {
		t.Fatalf("expected 2 records marked backed up, got %v", store.backedUp)
	}
	if len(store.errored) != 0 {
		t.Fatalf("expected no errors, got %v", store.errored)
	}
}

func TestProcessBatchMarksFailures(t *testing.T) {
	store := &fakeBackupStore{
		pending: []core.Record{pendingRecord("r1", "p1"), pendingRecord("r2", "p1")},
		projects: map[string]core.Project{
			"p1": {ID: "p1", Title: "Maize", StartDate: core.NewDate(2024, 1, 1)},
		},
	}
	writer := &fakeWriter{failID: "r1"}
	processor := NewBackupProcessor(store, writer, DefaultBackupProcessorConfig())

	processor.stopCh = make(chan struct{})
	processor.processBatch(context.Background())

	if len(store.errored) != 1 || store.errored[0] != "r1" {
		t.Fatalf("expected r1 marked errored, got %v", store.errored)
	}
	if len(store.backedUp) != 1 || store.backedUp[0] != "r2" {
		t.Fatalf("expected r2 backed up, got %v", store.backedUp)
	}
}

func TestProcessBatchMissingProjectIsAFailure(t *testing.T) {
	store := &fakeBackupStore{
		pending:  []core.Record{pendingRecord("r1", "gone")},
		projects: map[string]core.Project{},
	}
	processor := NewBackupProcessor(store, &fakeWriter{}, DefaultBackupProcessorConfig())

	processor.stopCh = make(chan struct{})
	processor.processBatch(context.Background())

	if len(store.errored) != 1 {
		t.Fatalf("expected backup error for orphan record, got %v", store.errored)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	store := &fakeBackupStore{projects: map[string]core.Project{}}
	config := DefaultBackupProcessorConfig()
	config.PollInterval = 50 * time.Millisecond
	processor := NewBackupProcessor(store, &fakeWriter{}, config)

	ctx := context.Background()
	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after stop")
	}
	// Stopping again is a no-op.
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestRetryFailed(t *testing.T) {
	store := &fakeBackupStore{}
	processor := NewBackupProcessor(store, &fakeWriter{}, DefaultBackupProcessorConfig())

	if err := processor.RetryFailed(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !store.retried {
		t.Error("expected RetryFailedBackups to be called")
	}
}
