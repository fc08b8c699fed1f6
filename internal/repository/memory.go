package repository

import (
	"context"
	"sync"
	"time"

	"github.com/mmeshcher/storefront/internal/model"
)

// MemoryRepository хранит сессии в памяти процесса.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewMemoryRepository создаёт пустое хранилище сессий в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*model.Session),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// LoadSession возвращает копию сохранённой сессии.
func (r *MemoryRepository) LoadSession(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return s.Clone(), nil
}

// SaveSession сохраняет копию сессии целиком.
func (r *MemoryRepository) SaveSession(_ context.Context, s *model.Session) error {
	c := s.Clone()
	c.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.sessions[s.ID] = c
	r.mu.Unlock()

	return nil
}

// DeleteSession удаляет сессию.
func (r *MemoryRepository) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	return nil
}

// DeleteSessionsBefore удаляет сессии, не обновлявшиеся с указанного момента.
func (r *MemoryRepository) DeleteSessionsBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(before) {
			delete(r.sessions, id)
			n++
		}
	}

	return n, nil
}
