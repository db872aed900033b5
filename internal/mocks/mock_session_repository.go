package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/you/projectsvc/domain"
)

// MockSessionRepository implements domain.SessionRepository interface for testing.
// Without a Func override every method works against an in-memory map, so tests
// can assert on the resulting session state.
type MockSessionRepository struct {
	CreateFunc        func(ctx context.Context, userID uint, meta domain.SessionMetadata) (*domain.Session, error)
	GetFunc           func(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByUserFunc    func(ctx context.Context, userID uint) ([]*domain.Session, error)
	CountByUserFunc   func(ctx context.Context, userID uint) (int, int, error)
	TerminateFunc     func(ctx context.Context, sessionID string) (bool, error)
	TerminateAllFunc  func(ctx context.Context, userID uint, exceptID string) (int, error)
	TouchFunc         func(ctx context.Context, sessionID string) (bool, error)
	DeleteExpiredFunc func(ctx context.Context) (int, error)

	// Now is the clock of the in-memory store
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*domain.Session
	seq      int
	calls    map[string]int
}

// NewMockSessionRepository creates a new MockSessionRepository with default behaviors
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Now:      time.Now,
		sessions: make(map[string]*domain.Session),
		calls:    make(map[string]int),
	}
}

// Calls returns how often method was invoked
func (m *MockSessionRepository) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Put stores a session directly (test helper)
func (m *MockSessionRepository) Put(session *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[session.ID] = &cp
}

// Stored returns a copy of a stored session, ignoring expiry (test helper)
func (m *MockSessionRepository) Stored(sessionID string) (*domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

func (m *MockSessionRepository) record(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

// Create creates a new session
func (m *MockSessionRepository) Create(ctx context.Context, userID uint, meta domain.SessionMetadata) (*domain.Session, error) {
	m.record("Create")
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, meta)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	now := m.Now().UTC()
	s := &domain.Session{
		ID:             fmt.Sprintf("sess_%d", m.seq),
		UserID:         userID,
		DeviceName:     meta.DeviceName,
		OSName:         meta.OSName,
		BrowserName:    meta.BrowserName,
		BrowserVersion: meta.BrowserVersion,
		DeviceType:     meta.DeviceType,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		CreatedAt:      now,
		LastActiveAt:   now,
		ExpiresAt:      meta.ExpiresAt,
	}
	m.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

// Get finds a session by ID
func (m *MockSessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	m.record("Get")
	if m.GetFunc != nil {
		return m.GetFunc(ctx, sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.IsExpired(m.Now()) {
		delete(m.sessions, sessionID)
		return nil, domain.ErrSessionExpired
	}
	cp := *s
	return &cp, nil
}

// ListByUser lists live sessions of a user, most recently active first
func (m *MockSessionRepository) ListByUser(ctx context.Context, userID uint) ([]*domain.Session, error) {
	m.record("ListByUser")
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	out := []*domain.Session{}
	for _, s := range m.sessions {
		if s.UserID == userID && !s.IsExpired(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActiveAt.Equal(out[j].LastActiveAt) {
			return out[i].LastActiveAt.After(out[j].LastActiveAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountByUser counts stored sessions of a user, expired ones included, and
// the live subset
func (m *MockSessionRepository) CountByUser(ctx context.Context, userID uint) (int, int, error) {
	m.record("CountByUser")
	if m.CountByUserFunc != nil {
		return m.CountByUserFunc(ctx, userID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	total, active := 0, 0
	for _, s := range m.sessions {
		if s.UserID != userID {
			continue
		}
		total++
		if !s.IsExpired(now) {
			active++
		}
	}
	return total, active, nil
}

// Terminate removes one session
func (m *MockSessionRepository) Terminate(ctx context.Context, sessionID string) (bool, error) {
	m.record("Terminate")
	if m.TerminateFunc != nil {
		return m.TerminateFunc(ctx, sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(m.sessions, sessionID)
	return true, nil
}

// TerminateAll removes every session of a user except exceptID
func (m *MockSessionRepository) TerminateAll(ctx context.Context, userID uint, exceptID string) (int, error) {
	m.record("TerminateAll")
	if m.TerminateAllFunc != nil {
		return m.TerminateAllFunc(ctx, userID, exceptID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.UserID == userID && id != exceptID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Touch moves LastActiveAt of a live session to now
func (m *MockSessionRepository) Touch(ctx context.Context, sessionID string) (bool, error) {
	m.record("Touch")
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	now := m.Now().UTC()
	if !ok || s.IsExpired(now) {
		return false, nil
	}
	if now.After(s.LastActiveAt) {
		s.LastActiveAt = now
	}
	return true, nil
}

// DeleteExpired deletes all expired sessions
func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int, error) {
	m.record("DeleteExpired")
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := m.Now()
	for id, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Compile-time interface compliance verification
var _ domain.SessionRepository = (*MockSessionRepository)(nil)
