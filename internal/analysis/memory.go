package analysis

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryReportRepository is an in-memory ReportRepository for tests and local
// development.
type MemoryReportRepository struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]Report
}

func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{reports: make(map[uuid.UUID]Report)}
}

func (r *MemoryReportRepository) Create(_ context.Context, report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.ID] = *report
	return nil
}

func (r *MemoryReportRepository) Find(_ context.Context, id uuid.UUID) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return &report, nil
}
