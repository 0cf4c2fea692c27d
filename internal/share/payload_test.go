package share

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"farmdeck/internal/core"
)

func TestDecodeRejections(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		reason Reason
	}{
		{"malformed json", `{not json`, ReasonMalformedJSON},
		{"missing type", `{"version":1,"project":{"id":"p1"}}`, ReasonMissingType},
		{"unknown type", `{"type":"farmdeck_backup","version":1,"project":{"id":"p1"}}`, ReasonUnknownType},
		{"missing version", `{"type":"farmdeck_project","project":{"id":"p1"}}`, ReasonMissingVersion},
		{"future version", `{"type":"farmdeck_project","version":2,"project":{"id":"p1"}}`, ReasonUnsupportedVersion},
		{"missing project", `{"type":"farmdeck_project","version":1}`, ReasonMissingProject},
		{"missing project id", `{"type":"farmdeck_project","version":1,"project":{"title":"Farm A"}}`, ReasonMissingProjectID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.input))
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if de.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, de.Reason)
			}
		})
	}
}

func TestDecodeAccepts(t *testing.T) {
	input := `{"type":"farmdeck_full_export","version":1,` +
		`"project":{"id":"p1","title":"Farm A","startDate":"2024-01-01","customColumns":["Plot"]},` +
		`"records":[{"id":"r1","projectId":"p1","date":"2024-01-05","produce":"3.5","revenue":"120.00","inputCost":"40.50"}]}`

	p, err := Decode([]byte(input))
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if p.Type != TypeFullExport || p.Project.ID != "p1" || len(p.Records) != 1 {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.Records[0].Produce.String() != "3.5" {
		t.Fatalf("unexpected produce: %s", p.Records[0].Produce)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	project := core.Project{
		ID:            "p9",
		Title:         "Rice 2024",
		StartDate:     core.NewDate(2024, 5, 1),
		CustomColumns: []string{"Paddy"},
	}
	records := []core.Record{{
		ID:        "r9",
		ProjectID: "p9",
		Date:      core.NewDate(2024, 6, 2),
		Produce:   decimal.RequireFromString("80"),
		Revenue:   core.Money{Cents: 90000},
		InputCost: core.Money{Cents: 22500},
	}}

	data, err := Encode(TypeFullExport, project, records).Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Project.ID != "p9" || decoded.Project.StartDate != "2024-05-01" {
		t.Fatalf("unexpected project: %+v", decoded.Project)
	}
	rec, err := decoded.Records[0].CoreRecord("p9")
	if err != nil {
		t.Fatalf("core record: %v", err)
	}
	if rec.Revenue.Cents != 90000 || rec.InputCost.Cents != 22500 {
		t.Fatalf("amounts did not survive the round trip: %+v", rec)
	}
}

func TestEncodeProjectOmitsRecords(t *testing.T) {
	project := core.Project{ID: "p1", Title: "t", StartDate: core.NewDate(2024, 1, 1)}
	p := Encode(TypeProject, project, []core.Record{{ID: "r1"}})
	if p.Records != nil {
		t.Fatalf("project payload must not carry records, got %d", len(p.Records))
	}
}
