package analysis

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrReportNotFound indicates no report exists for the given id.
var ErrReportNotFound = errors.New("report not found")

// ReportRepository persists validation reports.
type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	Find(ctx context.Context, id uuid.UUID) (*Report, error)
}
