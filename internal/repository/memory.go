package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"channel-assistant/internal/domain"
)

// Memory is an in-process DraftStore for local runs and tests.
type Memory struct {
	mu     sync.Mutex
	users  map[int64]time.Time
	drafts map[domain.DraftID]domain.Draft
	seq    int64
	now    func() time.Time
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		users:  make(map[int64]time.Time),
		drafts: make(map[domain.DraftID]domain.Draft),
		now:    utcNow,
	}
}

func (m *Memory) ensureUser(userID int64) {
	if _, ok := m.users[userID]; !ok {
		m.users[userID] = m.now()
	}
}

// HasUser reports whether the user record was provisioned.
func (m *Memory) HasUser(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[userID]
	return ok
}

func (m *Memory) Create(_ context.Context, userID int64, idea string, payload domain.Payload) (domain.DraftID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureUser(userID)
	m.seq++
	id := domain.DraftID(fmt.Sprintf("%010d", m.seq))
	m.drafts[id] = copyDraft(domain.Draft{
		ID:        id,
		UserID:    userID,
		Idea:      idea,
		Payload:   payload,
		CreatedAt: m.now(),
	})
	return id, nil
}

func (m *Memory) ListAll(_ context.Context, userID int64) ([]domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureUser(userID)
	var out []domain.Draft
	for _, d := range m.drafts {
		if d.UserID == userID {
			out = append(out, copyDraft(d))
		}
	}
	sortDrafts(out)
	return out, nil
}

func (m *Memory) Get(_ context.Context, userID int64, id domain.DraftID) (domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok || d.UserID != userID {
		return domain.Draft{}, domain.ErrNotFound
	}
	return copyDraft(d), nil
}

func (m *Memory) UpdatePayload(_ context.Context, userID int64, id domain.DraftID, payload domain.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok || d.UserID != userID {
		return domain.ErrNotFound
	}
	d.Payload = payload
	m.drafts[id] = copyDraft(d)
	return nil
}

func (m *Memory) Delete(_ context.Context, userID int64, id domain.DraftID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureUser(userID)
	d, ok := m.drafts[id]
	if !ok || d.UserID != userID {
		return false, nil
	}
	delete(m.drafts, id)
	return true, nil
}
