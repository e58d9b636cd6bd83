package joblock

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Locker for single-node deployments and tests.
type Memory struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	nowFn func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// NewMemory creates an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]memoryEntry), nowFn: time.Now}
}

// Acquire implements Locker.
func (m *Memory) Acquire(_ context.Context, name string, ttl time.Duration) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	if e, ok := m.held[name]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}

	token := newToken()
	m.held[name] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryLease{m: m, name: name, token: token}, nil
}

type memoryLease struct {
	m     *Memory
	name  string
	token string
}

func (l *memoryLease) Release(_ context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()

	if e, ok := l.m.held[l.name]; ok && e.token == l.token {
		delete(l.m.held, l.name)
	}
	return nil
}
