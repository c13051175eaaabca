package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"video-splitter/constant"
	"video-splitter/entities"
)

// memoryRepo keeps session records for the life of the process.
type memoryRepo struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]entities.Session
}

func NewMemoryRepo() SessionRepository {
	return &memoryRepo{sessions: map[uuid.UUID]entities.Session{}}
}

func (m *memoryRepo) CreateSession(_ context.Context, session *entities.Session) error {
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *memoryRepo) FindSessionById(_ context.Context, id uuid.UUID) (*entities.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (m *memoryRepo) UpdateStatusSession(_ context.Context, status constant.SessionStatus, id uuid.UUID, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Status = status
	session.ErrorMessage = errMsg
	session.UpdatedAt = time.Now()
	m.sessions[id] = session
	return nil
}

func (m *memoryRepo) SaveSession(_ context.Context, session *entities.Session) error {
	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *memoryRepo) DeleteSessionsBefore(_ context.Context, cutoff, staleBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, session := range m.sessions {
		expired := session.CreatedAt.Before(cutoff)
		if session.Status == constant.SessionStatusProcessing {
			expired = !staleBefore.IsZero() && session.CreatedAt.Before(staleBefore)
		}
		if expired {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}
