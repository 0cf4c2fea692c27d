package worker

import (
	"context"
	"fmt"
	"log/slog"

	"farmdeck/internal/amqp"
	"farmdeck/internal/core"
	"farmdeck/internal/services"
	"farmdeck/internal/sheets"
)

// BackupWorker mirrors records from SQLite to the Google Sheets backup. It
// is driven by AMQP notifications, with a pending-records sweep as the
// recovery path for lost messages.
type BackupWorker struct {
	storage   services.BackupStore
	writer    sheets.RecordBackupWriter
	batchSize int
}

func NewBackupWorker(storage services.BackupStore, writer sheets.RecordBackupWriter, batchSize int) *BackupWorker {
	return &BackupWorker{
		storage:   storage,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleBackupMessage processes a single record backup message from AMQP.
func (w *BackupWorker) HandleBackupMessage(ctx context.Context, msg *amqp.RecordBackupMessage) error {
	slog.InfoContext(ctx, "Processing backup message",
		"record_id", msg.RecordID,
		"project_id", msg.ProjectID)

	project, err := w.storage.GetProject(ctx, msg.ProjectID)
	if err != nil {
		return fmt.Errorf("get project from storage: %w", err)
	}

	record, err := w.storage.GetRecord(ctx, msg.RecordID)
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	return w.backupToSheets(ctx, project, record)
}

// ProcessPendingRecords backs up any records still marked pending. This is
// the recovery mechanism in case AMQP messages are lost.
func (w *BackupWorker) ProcessPendingRecords(ctx context.Context) error {
	pending, err := w.storage.GetPendingBackupRecords(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending records: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))

	for _, rec := range pending {
		project, err := w.storage.GetProject(ctx, rec.ProjectID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load project for pending record",
				"record_id", rec.ID, "project_id", rec.ProjectID, "error", err)
			if err := w.storage.MarkBackupError(ctx, rec.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark backup error", "record_id", rec.ID, "error", err)
			}
			continue
		}

		if err := w.backupToSheets(ctx, project, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to back up record", "record_id", rec.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupBackupCheck sweeps a larger batch of pending records when the
// worker boots, recovering from downtime.
func (w *BackupWorker) StartupBackupCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingBackupRecords(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending records for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending records found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending records on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, rec := range pending {
		project, err := w.storage.GetProject(ctx, rec.ProjectID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load project during startup backup",
				"record_id", rec.ID, "error", err)
			if err := w.storage.MarkBackupError(ctx, rec.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark backup error", "record_id", rec.ID, "error", err)
			}
			errorCount++
			continue
		}

		if err := w.backupToSheets(ctx, project, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to back up record during startup",
				"record_id", rec.ID, "error", err)
			errorCount++
			continue
		}

		successCount++
	}

	slog.InfoContext(ctx, "Startup backup completed",
		"total", len(pending),
		"backed_up", successCount,
		"errors", errorCount)

	return nil
}

func (w *BackupWorker) backupToSheets(ctx context.Context, project core.Project, rec core.Record) error {
	ref, err := w.writer.AppendRecord(ctx, project, rec)
	if err != nil {
		if markErr := w.storage.MarkBackupError(ctx, rec.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark backup error", "record_id", rec.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.storage.MarkBackedUp(ctx, rec.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as backed up", "record_id", rec.ID, "error", err)
		// The append itself succeeded, so the message must not requeue.
	}

	slog.InfoContext(ctx, "Successfully backed up record",
		"record_id", rec.ID,
		"sheets_ref", ref)

	return nil
}
