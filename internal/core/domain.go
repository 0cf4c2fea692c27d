package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Project is a farming season: a titled unit of work records are logged
	// against. CustomColumns is the ordered list of user-defined record
	// column names.
	Project struct {
		ID            string
		Title         string
		StartDate     Date
		CustomColumns []string
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// Record is a single production/financial entry belonging to a project.
	// CustomValues holds the values for the project's custom columns.
	Record struct {
		ID           string
		ProjectID    string
		Date         Date
		Produce      decimal.Decimal
		Revenue      Money
		InputCost    Money
		Notes        string
		CustomValues map[string]string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrEmptyTitle        = errors.New("empty title")
	ErrTitleTooLong      = errors.New("title too long (max 120 characters)")
	ErrNotesTooLong      = errors.New("notes too long (max 500 characters)")
	ErrEmptyProjectID    = errors.New("empty project id")
	ErrEmptyRecordID     = errors.New("empty record id")
	ErrEmptyColumnName   = errors.New("empty custom column name")
	ErrDuplicateColumn   = errors.New("duplicate custom column name")
	ErrUnknownColumn     = errors.New("value for unknown custom column")
	ErrProjectNotFound   = errors.New("project not found")
	ErrRecordNotFound    = errors.New("record not found")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a Date from year, month, day (UTC, midnight).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// MonthKey returns the YYYY-MM key monthly summaries are grouped by.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyProjectID
	}
	if len(strings.TrimSpace(p.Title)) == 0 {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(p.Title) > 120 {
		return ErrTitleTooLong
	}
	if err := p.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	seen := make(map[string]struct{}, len(p.CustomColumns))
	for _, col := range p.CustomColumns {
		name := strings.TrimSpace(col)
		if name == "" {
			return ErrEmptyColumnName
		}
		if _, dup := seen[name]; dup {
			return ErrDuplicateColumn
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyRecordID
	}
	if strings.TrimSpace(r.ProjectID) == "" {
		return ErrEmptyProjectID
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if r.Produce.IsNegative() {
		return ErrInvalidQuantity
	}
	if err := r.Revenue.Validate(); err != nil {
		return err
	}
	if err := r.InputCost.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(r.Notes) > 500 {
		return ErrNotesTooLong
	}
	return nil
}

// ValidateAgainst checks the record's custom values against the owning
// project's declared columns. Missing values are allowed; unknown keys are
// not.
func (r Record) ValidateAgainst(p Project) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if len(r.CustomValues) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(p.CustomColumns))
	for _, col := range p.CustomColumns {
		known[strings.TrimSpace(col)] = struct{}{}
	}
	for key := range r.CustomValues {
		if _, ok := known[key]; !ok {
			return ErrUnknownColumn
		}
	}
	return nil
}
