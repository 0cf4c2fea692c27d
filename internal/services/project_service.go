package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"farmdeck/internal/amqp"
	"farmdeck/internal/core"
	"farmdeck/internal/share"
	"farmdeck/internal/storage"
)

// ProjectService orchestrates project and record operations across SQLite
// and the backup queue. Writes land locally first; backup publication is
// best effort and never fails the request.
type ProjectService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewProjectService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *ProjectService {
	return &ProjectService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateProject validates and saves a new project, assigning it an id.
func (s *ProjectService) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	p.ID = uuid.NewString()
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	if err := s.storage.CreateProject(ctx, p); err != nil {
		return core.Project{}, fmt.Errorf("save project: %w", err)
	}
	return p, nil
}

func (s *ProjectService) GetProject(ctx context.Context, id string) (core.Project, error) {
	return s.storage.GetProject(ctx, id)
}

func (s *ProjectService) ListProjects(ctx context.Context) ([]core.Project, error) {
	return s.storage.ListProjects(ctx)
}

func (s *ProjectService) UpdateProject(ctx context.Context, p core.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.storage.UpdateProject(ctx, p)
}

func (s *ProjectService) DeleteProject(ctx context.Context, id string) error {
	return s.storage.DeleteProject(ctx, id)
}

// CreateRecord validates a record against its project's custom columns,
// saves it, and queues a backup notification.
func (s *ProjectService) CreateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	project, err := s.storage.GetProject(ctx, rec.ProjectID)
	if err != nil {
		return core.Record{}, fmt.Errorf("load project %s: %w", rec.ProjectID, err)
	}

	rec.ID = uuid.NewString()
	if err := rec.ValidateAgainst(project); err != nil {
		return core.Record{}, err
	}
	if err := s.storage.CreateRecord(ctx, rec); err != nil {
		return core.Record{}, fmt.Errorf("save record: %w", err)
	}

	// Backup publication is advisory; the poll loop picks up anything missed.
	if err := s.publishBackupMessage(ctx, rec.ID, rec.ProjectID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish backup message",
			"record_id", rec.ID, "error", err)
	}

	return rec, nil
}

func (s *ProjectService) GetRecord(ctx context.Context, id string) (core.Record, error) {
	return s.storage.GetRecord(ctx, id)
}

func (s *ProjectService) ListRecords(ctx context.Context, projectID string) ([]core.Record, error) {
	if _, err := s.storage.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.storage.ListRecords(ctx, projectID)
}

// UpdateRecord replaces a record in place and requeues it for backup.
func (s *ProjectService) UpdateRecord(ctx context.Context, rec core.Record) error {
	project, err := s.storage.GetProject(ctx, rec.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", rec.ProjectID, err)
	}
	if err := rec.ValidateAgainst(project); err != nil {
		return err
	}
	if _, err := s.storage.GetRecord(ctx, rec.ID); err != nil {
		return err
	}
	if err := s.storage.UpsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	if err := s.publishBackupMessage(ctx, rec.ID, rec.ProjectID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish backup message",
			"record_id", rec.ID, "error", err)
	}
	return nil
}

func (s *ProjectService) DeleteRecord(ctx context.Context, projectID, id string) error {
	return s.storage.DeleteRecord(ctx, projectID, id)
}

// MonthlySummaries aggregates a project's records into per-month totals.
func (s *ProjectService) MonthlySummaries(ctx context.Context, projectID string) ([]core.MonthlySummary, error) {
	records, err := s.ListRecords(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return core.Summarize(records), nil
}

// ExportPayload builds a share payload for the project. TypeProject carries
// only the project definition; TypeFullExport includes every record.
func (s *ProjectService) ExportPayload(ctx context.Context, projectID string, t share.PayloadType) (share.Payload, error) {
	project, err := s.storage.GetProject(ctx, projectID)
	if err != nil {
		return share.Payload{}, err
	}

	var records []core.Record
	if t == share.TypeFullExport {
		records, err = s.storage.ListRecords(ctx, projectID)
		if err != nil {
			return share.Payload{}, fmt.Errorf("load records: %w", err)
		}
	}

	return share.Encode(t, project, records), nil
}

func (s *ProjectService) publishBackupMessage(ctx context.Context, recordID, projectID string) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping backup message")
		return nil
	}
	return s.amqpClient.PublishRecordBackup(ctx, recordID, projectID)
}

// Close closes both storage and AMQP connections.
func (s *ProjectService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close project service: %v", errs)
	}

	return nil
}
