// Package lease records which sessions are being processed so the retention
// sweeper leaves their files alone.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHeld is returned by Acquire when another run holds a live lease on the
// same session.
var ErrHeld = errors.New("session lease already held")

type Tracker interface {
	Acquire(ctx context.Context, sessionID string) error
	Release(ctx context.Context, sessionID string) error
	Active(ctx context.Context) (map[string]struct{}, error)
}

// Memory tracks leases in-process. Leases expire after ttl so a crashed
// request cannot pin files forever.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	leases map[string]time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, leases: map[string]time.Time{}}
}

func (m *Memory) Acquire(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if expires, ok := m.leases[sessionID]; ok && (m.ttl <= 0 || now.Before(expires)) {
		return ErrHeld
	}
	m.leases[sessionID] = now.Add(m.ttl)
	return nil
}

func (m *Memory) Release(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, sessionID)
	return nil
}

func (m *Memory) Active(_ context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	active := make(map[string]struct{}, len(m.leases))
	for id, expires := range m.leases {
		if m.ttl > 0 && now.After(expires) {
			delete(m.leases, id)
			continue
		}
		active[id] = struct{}{}
	}
	return active, nil
}
