package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used in tests and local runs
// without a database. Records are copied on the way in and out so callers
// cannot mutate shared state.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Record)}
}

func (m *MemoryRepository) Find(ctx context.Context, deviceID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryRepository) Create(ctx context.Context, deviceID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[deviceID]; ok {
		return &existing, nil
	}

	now := time.Now().UTC()
	rec := Record{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.records[deviceID] = rec
	return &rec, nil
}

func (m *MemoryRepository) Update(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.DeviceID]; !ok {
		return ErrNotFound
	}

	updated := *rec
	updated.UpdatedAt = time.Now().UTC()
	m.records[rec.DeviceID] = updated
	return nil
}
