package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farmdeck/internal/core"
	"farmdeck/internal/sheets"
)

// BackupStore is the storage surface the backup processor needs.
type BackupStore interface {
	GetPendingBackupRecords(ctx context.Context, limit int) ([]core.Record, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
	GetRecord(ctx context.Context, id string) (core.Record, error)
	MarkBackedUp(ctx context.Context, id string) error
	MarkBackupError(ctx context.Context, id string) error
	RetryFailedBackups(ctx context.Context) error
}

// BackupProcessorConfig holds configuration for the backup processor.
type BackupProcessorConfig struct {
	// PollInterval is how often to check for pending records (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of records to back up per poll cycle (default: 20)
	BatchSize int
}

// DefaultBackupProcessorConfig returns sensible defaults.
func DefaultBackupProcessorConfig() BackupProcessorConfig {
	return BackupProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
	}
}

// BackupProcessor drains pending records to the backup sheet on a poll
// loop. It is the safety net behind the AMQP notifications: anything the
// worker misses is picked up here.
type BackupProcessor struct {
	storage BackupStore
	writer  sheets.RecordBackupWriter
	config  BackupProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewBackupProcessor(storage BackupStore, writer sheets.RecordBackupWriter, config BackupProcessorConfig) *BackupProcessor {
	return &BackupProcessor{
		storage: storage,
		writer:  writer,
		config:  config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *BackupProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("backup processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Backup processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *BackupProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Backup processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Backup processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running.
func (p *BackupProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *BackupProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

// processBatch backs up a single batch of pending records.
func (p *BackupProcessor) processBatch(ctx context.Context) {
	records, err := p.storage.GetPendingBackupRecords(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch pending backup records", "error", err)
		return
	}

	if len(records) == 0 {
		return
	}

	slog.DebugContext(ctx, "Processing backup batch", "count", len(records))

	for _, rec := range records {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := p.backupRecord(ctx, rec); err != nil {
			slog.WarnContext(ctx, "Record backup failed",
				"record_id", rec.ID,
				"project_id", rec.ProjectID,
				"error", err)
			if err := p.storage.MarkBackupError(ctx, rec.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark backup error",
					"record_id", rec.ID, "error", err)
			}
			continue
		}

		if err := p.storage.MarkBackedUp(ctx, rec.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark record as backed up",
				"record_id", rec.ID, "error", err)
		}
	}
}

func (p *BackupProcessor) backupRecord(ctx context.Context, rec core.Record) error {
	project, err := p.storage.GetProject(ctx, rec.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", rec.ProjectID, err)
	}

	ref, err := p.writer.AppendRecord(ctx, project, rec)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Record backed up to Google Sheets",
		"record_id", rec.ID,
		"sheets_ref", ref)

	return nil
}

// RetryFailed requeues every record whose backup previously failed.
func (p *BackupProcessor) RetryFailed(ctx context.Context) error {
	return p.storage.RetryFailedBackups(ctx)
}
