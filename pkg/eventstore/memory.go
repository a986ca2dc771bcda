package eventstore

import (
	"context"
	"sync"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// Memory is an in-process EventRecord store used by pkg/replay, which must
// never touch the durable store while reconstructing a tenant's state.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	byMsgID map[string]int64
	records []domain.EventRecord
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{byMsgID: make(map[string]int64)}
}

// Insert stores rec, returning ErrDuplicateMessage if its ExternalMessageID
// was already seen.
func (m *Memory) Insert(_ context.Context, rec domain.EventRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byMsgID[rec.ExternalMessageID]; exists {
		return 0, ErrDuplicateMessage
	}
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, rec)
	m.byMsgID[rec.ExternalMessageID] = rec.ID
	return rec.ID, nil
}

// All returns every stored record in insertion order.
func (m *Memory) All() []domain.EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventRecord, len(m.records))
	copy(out, m.records)
	return out
}
