package share

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"farmdeck/internal/core"
)

// fakeStore records every upsert call in order.
type fakeStore struct {
	projects map[string]core.Project

	projectUpserts []core.Project
	recordUpserts  []core.Record

	failRecordID string
}

func newFakeStore(existing ...core.Project) *fakeStore {
	s := &fakeStore{projects: make(map[string]core.Project)}
	for _, p := range existing {
		s.projects[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetProject(_ context.Context, id string) (core.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return core.Project{}, core.ErrProjectNotFound
	}
	return p, nil
}

func (s *fakeStore) UpsertProject(_ context.Context, p core.Project) error {
	s.projectUpserts = append(s.projectUpserts, p)
	s.projects[p.ID] = p
	return nil
}

func (s *fakeStore) UpsertRecord(_ context.Context, r core.Record) error {
	if r.ID == s.failRecordID {
		return fmt.Errorf("record %s: disk full", r.ID)
	}
	s.recordUpserts = append(s.recordUpserts, r)
	return nil
}

func TestImportRejectedPayloadTouchesNothing(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store)

	_, err := im.ImportJSON(context.Background(),
		[]byte(`{"type":"not_farmdeck","version":1,"project":{"id":"p1"}}`))

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if len(store.projectUpserts) != 0 || len(store.recordUpserts) != 0 {
		t.Fatalf("rejected payload must not reach the store: %d/%d calls",
			len(store.projectUpserts), len(store.recordUpserts))
	}
}

func TestImportCreatesProjectWithOriginalID(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store)

	payload := `{"type":"farmdeck_project","version":1,` +
		`"project":{"id":"p1","title":"Farm A","startDate":"2024-01-01","customColumns":[]}}`

	res, err := im.ImportJSON(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !res.ProjectCreated {
		t.Fatalf("expected project to be created")
	}
	if len(store.projectUpserts) != 1 {
		t.Fatalf("expected exactly one project upsert, got %d", len(store.projectUpserts))
	}
	if store.projectUpserts[0].ID != "p1" {
		t.Fatalf("identifier must be reused verbatim, got %q", store.projectUpserts[0].ID)
	}
	if len(store.recordUpserts) != 0 {
		t.Fatalf("expected zero record imports, got %d", len(store.recordUpserts))
	}
}

func TestImportMergesExistingProject(t *testing.T) {
	existing := core.Project{
		ID:            "p1",
		Title:         "Old title",
		StartDate:     core.NewDate(2023, 6, 1),
		CustomColumns: []string{"Old"},
	}
	store := newFakeStore(existing)
	im := NewImporter(store)

	payload := `{"type":"farmdeck_project","version":1,` +
		`"project":{"id":"p1","title":"New title","startDate":"2024-01-01","customColumns":["Plot","Variety"]}}`

	res, err := im.ImportJSON(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if res.ProjectCreated {
		t.Fatalf("expected merge into existing project, not create")
	}

	merged := store.projectUpserts[0]
	if merged.ID != "p1" || merged.Title != "New title" {
		t.Fatalf("title/id not taken from payload: %+v", merged)
	}
	if len(merged.CustomColumns) != 2 || merged.CustomColumns[0] != "Plot" {
		t.Fatalf("custom columns not taken from payload: %v", merged.CustomColumns)
	}
	// Fields the payload does not own are retained from the local copy.
	if !merged.StartDate.Equal(existing.StartDate.Time) {
		t.Fatalf("start date must be retained, got %s", merged.StartDate)
	}
}

func TestImportRecordsInArrayOrder(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store)

	payload := `{"type":"farmdeck_full_export","version":1,` +
		`"project":{"id":"p1","title":"Farm A","startDate":"2024-01-01","customColumns":[]},` +
		`"records":[` +
		`{"id":"r2","projectId":"p1","date":"2024-02-01","produce":"1","revenue":"10","inputCost":"2"},` +
		`{"id":"r1","projectId":"p1","date":"2024-01-01","produce":"1","revenue":"10","inputCost":"2"},` +
		`{"id":"r3","projectId":"p1","date":"2024-03-01","produce":"1","revenue":"10","inputCost":"2"}]}`

	res, err := im.ImportJSON(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if res.RecordsImported != 3 {
		t.Fatalf("expected 3 records imported, got %d", res.RecordsImported)
	}

	wantOrder := []string{"r2", "r1", "r3"}
	for i, want := range wantOrder {
		if store.recordUpserts[i].ID != want {
			t.Fatalf("record %d: expected %s, got %s (array order must be preserved)",
				i, want, store.recordUpserts[i].ID)
		}
	}
}

func TestImportPartialFailureKeepsEarlierRecords(t *testing.T) {
	store := newFakeStore()
	store.failRecordID = "r2"
	im := NewImporter(store)

	payload := `{"type":"farmdeck_full_export","version":1,` +
		`"project":{"id":"p1","title":"Farm A","startDate":"2024-01-01","customColumns":[]},` +
		`"records":[` +
		`{"id":"r1","projectId":"p1","date":"2024-01-01","produce":"1","revenue":"10","inputCost":"2"},` +
		`{"id":"r2","projectId":"p1","date":"2024-02-01","produce":"1","revenue":"10","inputCost":"2"},` +
		`{"id":"r3","projectId":"p1","date":"2024-03-01","produce":"1","revenue":"10","inputCost":"2"}]}`

	res, err := im.ImportJSON(context.Background(), []byte(payload))
	if err == nil {
		t.Fatalf("expected import failure")
	}
	if res.RecordsImported != 1 {
		t.Fatalf("expected 1 record persisted before the failure, got %d", res.RecordsImported)
	}
	if len(store.recordUpserts) != 1 || store.recordUpserts[0].ID != "r1" {
		t.Fatalf("earlier import must remain: %+v", store.recordUpserts)
	}
}

func TestImportRecordInheritsProjectID(t *testing.T) {
	store := newFakeStore()
	im := NewImporter(store)

	payload := `{"type":"farmdeck_full_export","version":1,` +
		`"project":{"id":"p1","title":"Farm A","startDate":"2024-01-01","customColumns":[]},` +
		`"records":[{"id":"r1","date":"2024-01-01","produce":"1","revenue":"10","inputCost":"2"}]}`

	if _, err := im.ImportJSON(context.Background(), []byte(payload)); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if store.recordUpserts[0].ProjectID != "p1" {
		t.Fatalf("record must inherit the payload project id, got %q", store.recordUpserts[0].ProjectID)
	}
}
