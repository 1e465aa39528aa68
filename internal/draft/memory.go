package draft

import (
	"context"
	"sync"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
)

// MemoryStore holds drafts in process memory only.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string]model.Answers
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]model.Answers)}
}

func (m *MemoryStore) Save(_ context.Context, examID uuid.UUID, answers model.Answers) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[Key(examID)] = answers.Clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, examID uuid.UUID) (model.Answers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.drafts[Key(examID)]
	if !ok {
		return model.Answers{}, nil
	}
	return a.Clone(), nil
}

func (m *MemoryStore) Clear(_ context.Context, examID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, Key(examID))
	return nil
}
