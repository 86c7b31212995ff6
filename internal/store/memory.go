package store

import (
	"context"
	"sort"
	"sync"

	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// Memory keeps sessions in process. Values are cloned on the way in and out
// so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*session.Session)}
}

func (m *Memory) Close() {}

func (m *Memory) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) Put(_ context.Context, s *session.Session) error {
	if _, err := encode(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Summary, error) {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, summarize(s))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if n := limitOrDefault(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st Stats
	for _, s := range m.sessions {
		st.add(summarize(s))
	}
	return st, nil
}

var _ SessionStore = (*Memory)(nil)
