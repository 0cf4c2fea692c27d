// Package share implements the cross-device project exchange format: a JSON
// payload carrying a project (and optionally its records) that can travel by
// QR code, pasted text, or file, and be merged into another device's store
// with identifiers preserved.
package share

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"farmdeck/internal/core"
)

// PayloadType tags the two recognized payload variants.
type PayloadType string

const (
	// TypeProject carries a project without its records.
	TypeProject PayloadType = "farmdeck_project"
	// TypeFullExport carries a project together with all of its records.
	TypeFullExport PayloadType = "farmdeck_full_export"
)

// CurrentVersion is the newest payload version this build understands.
// Older versions are accepted; newer ones are rejected on decode.
const CurrentVersion = 1

// Reason classifies why a payload was rejected.
type Reason string

const (
	ReasonMalformedJSON      Reason = "malformed_json"
	ReasonMissingType        Reason = "missing_type"
	ReasonUnknownType        Reason = "unknown_type"
	ReasonMissingVersion     Reason = "missing_version"
	ReasonUnsupportedVersion Reason = "unsupported_version"
	ReasonMissingProject     Reason = "missing_project"
	ReasonMissingProjectID   Reason = "missing_project_id"
)

// DecodeError reports a rejected payload with a structured reason.
type DecodeError struct {
	Reason Reason
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid share payload: %s", e.Reason)
	}
	return fmt.Sprintf("invalid share payload: %s: %s", e.Reason, e.Detail)
}

// Payload is the decoded exchange envelope.
type Payload struct {
	Type    PayloadType  `json:"type"`
	Version int          `json:"version"`
	Project ProjectData  `json:"project"`
	Records []RecordData `json:"records,omitempty"`
}

// ProjectData is the wire shape of a project.
type ProjectData struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	StartDate     string   `json:"startDate"`
	CustomColumns []string `json:"customColumns"`
}

// RecordData is the wire shape of a record. Amounts travel as decimal
// strings to keep them exact across devices.
type RecordData struct {
	ID           string            `json:"id"`
	ProjectID    string            `json:"projectId"`
	Date         string            `json:"date"`
	Produce      decimal.Decimal   `json:"produce"`
	Revenue      decimal.Decimal   `json:"revenue"`
	InputCost    decimal.Decimal   `json:"inputCost"`
	Notes        string            `json:"notes,omitempty"`
	CustomValues map[string]string `json:"customValues,omitempty"`
}

// Decode parses and validates payload bytes. All input sources (scanned
// frame, pasted text, uploaded file) converge here. Rejection is exhaustive
// on the type tag and carries a structured reason; a version newer than
// CurrentVersion is refused rather than guessed at.
func Decode(data []byte) (Payload, error) {
	var raw struct {
		Type    PayloadType  `json:"type"`
		Version int          `json:"version"`
		Project *ProjectData `json:"project"`
		Records []RecordData `json:"records"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Payload{}, &DecodeError{Reason: ReasonMalformedJSON, Detail: err.Error()}
	}

	switch raw.Type {
	case TypeProject, TypeFullExport:
	case "":
		return Payload{}, &DecodeError{Reason: ReasonMissingType}
	default:
		return Payload{}, &DecodeError{Reason: ReasonUnknownType, Detail: string(raw.Type)}
	}

	if raw.Version <= 0 {
		return Payload{}, &DecodeError{Reason: ReasonMissingVersion}
	}
	if raw.Version > CurrentVersion {
		return Payload{}, &DecodeError{
			Reason: ReasonUnsupportedVersion,
			Detail: fmt.Sprintf("payload version %d, supported up to %d", raw.Version, CurrentVersion),
		}
	}

	if raw.Project == nil {
		return Payload{}, &DecodeError{Reason: ReasonMissingProject}
	}
	if strings.TrimSpace(raw.Project.ID) == "" {
		return Payload{}, &DecodeError{Reason: ReasonMissingProjectID}
	}

	return Payload{
		Type:    raw.Type,
		Version: raw.Version,
		Project: *raw.Project,
		Records: raw.Records,
	}, nil
}

// Encode builds a payload from a project and (for full exports) its records.
func Encode(t PayloadType, project core.Project, records []core.Record) Payload {
	p := Payload{
		Type:    t,
		Version: CurrentVersion,
		Project: projectData(project),
	}
	if t == TypeFullExport {
		p.Records = make([]RecordData, len(records))
		for i, r := range records {
			p.Records[i] = recordData(r)
		}
	}
	return p
}

// Marshal renders the payload as JSON bytes.
func (p Payload) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal share payload: %w", err)
	}
	return data, nil
}

func projectData(p core.Project) ProjectData {
	cols := p.CustomColumns
	if cols == nil {
		cols = []string{}
	}
	return ProjectData{
		ID:            p.ID,
		Title:         p.Title,
		StartDate:     p.StartDate.String(),
		CustomColumns: cols,
	}
}

func recordData(r core.Record) RecordData {
	return RecordData{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		Date:         r.Date.String(),
		Produce:      r.Produce,
		Revenue:      r.Revenue.Decimal(),
		InputCost:    r.InputCost.Decimal(),
		Notes:        r.Notes,
		CustomValues: r.CustomValues,
	}
}

// CoreProject converts the wire project into the domain type. Identifiers
// are taken verbatim so the same logical project shares an id across
// devices.
func (d ProjectData) CoreProject() (core.Project, error) {
	start, err := core.ParseDate(d.StartDate)
	if err != nil {
		return core.Project{}, fmt.Errorf("project %s start date: %w", d.ID, err)
	}
	p := core.Project{
		ID:            strings.TrimSpace(d.ID),
		Title:         strings.TrimSpace(d.Title),
		StartDate:     start,
		CustomColumns: d.CustomColumns,
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, fmt.Errorf("project %s: %w", d.ID, err)
	}
	return p, nil
}

// CoreRecord converts the wire record into the domain type, preserving the
// original identifier. An empty projectId falls back to the owning project.
func (d RecordData) CoreRecord(projectID string) (core.Record, error) {
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return core.Record{}, fmt.Errorf("record %s date: %w", d.ID, err)
	}
	pid := strings.TrimSpace(d.ProjectID)
	if pid == "" {
		pid = projectID
	}
	revenue := d.Revenue.Shift(2).Round(0)
	cost := d.InputCost.Shift(2).Round(0)
	r := core.Record{
		ID:           strings.TrimSpace(d.ID),
		ProjectID:    pid,
		Date:         date,
		Produce:      d.Produce,
		Revenue:      core.Money{Cents: revenue.IntPart()},
		InputCost:    core.Money{Cents: cost.IntPart()},
		Notes:        d.Notes,
		CustomValues: d.CustomValues,
	}
	if err := r.Validate(); err != nil {
		return core.Record{}, fmt.Errorf("record %s: %w", d.ID, err)
	}
	return r, nil
}
