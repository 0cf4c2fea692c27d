package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"farmdeck/internal/core"
)

// Importer merges decoded payloads into a local store.
type Importer struct {
	store ProjectStore
}

func NewImporter(store ProjectStore) *Importer {
	return &Importer{store: store}
}

// Result describes what a merge persisted. On failure it reflects the state
// already written: record imports are independent and never rolled back.
type Result struct {
	ProjectID       string
	ProjectCreated  bool
	RecordsImported int
}

// ImportJSON decodes payload bytes and merges them. Decode failures are
// recoverable (nothing has been written); merge failures leave partial
// state, reported through the returned Result.
func (im *Importer) ImportJSON(ctx context.Context, data []byte) (Result, error) {
	payload, err := Decode(data)
	if err != nil {
		return Result{}, err
	}
	return im.Merge(ctx, payload)
}

// Merge reconciles a payload into the store:
//
//  1. Look up the payload's project by its id.
//  2. When found, update title and custom columns in place; everything else
//     the local copy already has is retained.
//  3. When absent, create the project reusing the payload id verbatim so the
//     same logical project shares an id across devices.
//  4. Upsert records sequentially in array order by their original ids. No
//     batching, no rollback: a later failure does not undo earlier imports.
func (im *Importer) Merge(ctx context.Context, payload Payload) (Result, error) {
	incoming, err := payload.Project.CoreProject()
	if err != nil {
		return Result{}, err
	}

	res := Result{ProjectID: incoming.ID}

	existing, err := im.store.GetProject(ctx, incoming.ID)
	switch {
	case err == nil:
		merged := existing
		merged.Title = incoming.Title
		merged.CustomColumns = incoming.CustomColumns
		if err := im.store.UpsertProject(ctx, merged); err != nil {
			return res, fmt.Errorf("merge project %s: %w", incoming.ID, err)
		}
		slog.InfoContext(ctx, "Merged shared project into existing",
			"project_id", incoming.ID,
			"title", incoming.Title)
	case errors.Is(err, core.ErrProjectNotFound):
		if err := im.store.UpsertProject(ctx, incoming); err != nil {
			return res, fmt.Errorf("create project %s: %w", incoming.ID, err)
		}
		res.ProjectCreated = true
		slog.InfoContext(ctx, "Created project from shared payload",
			"project_id", incoming.ID,
			"title", incoming.Title)
	default:
		return res, fmt.Errorf("look up project %s: %w", incoming.ID, err)
	}

	for i, rd := range payload.Records {
		rec, err := rd.CoreRecord(incoming.ID)
		if err != nil {
			return res, fmt.Errorf("import record %d/%d: %w", i+1, len(payload.Records), err)
		}
		if err := im.store.UpsertRecord(ctx, rec); err != nil {
			return res, fmt.Errorf("import record %s (%d/%d): %w", rec.ID, i+1, len(payload.Records), err)
		}
		res.RecordsImported++
	}

	slog.InfoContext(ctx, "Share payload imported",
		"project_id", res.ProjectID,
		"created", res.ProjectCreated,
		"records_imported", res.RecordsImported)

	return res, nil
}
