// Package google backs records up to a Google Sheets spreadsheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"farmdeck/internal/core"
	ports "farmdeck/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	recordsSheet  string
}

var _ ports.RecordBackupWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials
// (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS).
// Optional: GOOGLE_SHEET_NAME (default "Records"); the current year is
// prefixed so each season's backups land on their own sheet.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	recordsBase := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if recordsBase == "" {
		recordsBase = "Records"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		recordsSheet:  yearPrefixedName(recordsBase, time.Now().Year()),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// AppendRecord appends one record as a row on the records sheet and returns
// the updated range reference.
func (c *Client) AppendRecord(ctx context.Context, p core.Project, r core.Record) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	row := []any{
		r.ID,
		p.Title,
		r.Date.String(),
		r.Produce.String(),
		r.Revenue.String(),
		r.InputCost.String(),
		r.Notes,
		customValuesCell(p, r),
	}

	rng := fmt.Sprintf("%s!A:H", c.recordsSheet)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.recordsSheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Record appended to backup sheet",
		"record_id", r.ID,
		"project_id", r.ProjectID,
		"range", ref)

	return ref, nil
}

// customValuesCell flattens custom column values into one cell, keeping the
// project's column order.
func customValuesCell(p core.Project, r core.Record) string {
	if len(r.CustomValues) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p.CustomColumns))
	for _, col := range p.CustomColumns {
		if v, ok := r.CustomValues[col]; ok && v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", col, v))
		}
	}
	return strings.Join(parts, "; ")
}

func yearPrefixedName(base string, year int) string {
	if base == "" {
		return fmt.Sprintf("%d", year)
	}
	return fmt.Sprintf("%d %s", year, base)
}
