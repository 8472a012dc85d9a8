// Package quizcache holds generated remedial quizzes under opaque tokens for
// a fixed time, long enough for the host to render and grade them.
package quizcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-failedq/internal/generator"
)

var ErrNotFound = errors.New("remedial quiz expired or unknown")

const tokenPrefix = "fq_"

type Store interface {
	Put(ctx context.Context, d generator.Descriptor) (string, error)
	Get(ctx context.Context, token string) (generator.Descriptor, error)
}

func newToken() string { return tokenPrefix + uuid.NewString() }

type entry struct {
	d       generator.Descriptor
	expires time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: map[string]entry{}, now: time.Now}
}

// WithClock overrides the time source used for expiry.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Put(_ context.Context, d generator.Descriptor) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	token := newToken()
	m.entries[token] = entry{d: d, expires: now.Add(m.ttl)}
	return token, nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (generator.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[token]
	if !ok {
		return generator.Descriptor{}, ErrNotFound
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, token)
		return generator.Descriptor{}, ErrNotFound
	}
	return e.d, nil
}
