package sheets

import (
	"context"

	"farmdeck/internal/core"
)

// Ports for outbound backup adapters.
type (
	// RecordBackupWriter mirrors a record to an external backup sheet.
	RecordBackupWriter interface {
		AppendRecord(ctx context.Context, p core.Project, r core.Record) (rowRef string, err error)
	}
)
