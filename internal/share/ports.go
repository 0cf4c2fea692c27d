package share

import (
	"context"

	"farmdeck/internal/core"
)

// ProjectStore is the outbound port the importer merges payloads through.
type ProjectStore interface {
	// GetProject returns core.ErrProjectNotFound when no project has the id.
	GetProject(ctx context.Context, id string) (core.Project, error)

	// UpsertProject creates the project when absent (keeping its id) or
	// updates title and custom columns in place when present.
	UpsertProject(ctx context.Context, p core.Project) error

	// UpsertRecord creates or replaces a record, preserving its id.
	UpsertRecord(ctx context.Context, r core.Record) error
}
