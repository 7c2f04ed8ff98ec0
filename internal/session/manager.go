// Package session owns the per-user conversation context: the current state
// tag, the scratchpad and the pending generated post. All access goes through
// Manager. Lock serializes event handling for one user inside a process;
// versioned saves reject interleaved writes across processes.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"channel-assistant/internal/domain"
)

// Manager reads and writes sessions and hands out per-user locks.
type Manager struct {
	store   Store
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Manager.
type Option func(*Manager)

// WithIdleTTL makes sessions untouched for ttl read as idle. Zero disables expiry.
func WithIdleTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.idleTTL = ttl
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: store must not be nil")
	}
	m := &Manager{
		store: store,
		now:   time.Now,
		locks: make(map[int64]*userLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Lock serializes event handling for one user. The returned func releases it.
func (m *Manager) Lock(userID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}
}

// Get returns the user's session, or an idle one if none exists or it expired.
func (m *Manager) Get(ctx context.Context, userID int64) (domain.Session, error) {
	s, ok, err := m.store.Load(ctx, userID)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{UserID: userID, Data: map[string]string{}}, nil
	}
	if m.expired(s) {
		return domain.Session{UserID: userID, Data: map[string]string{}, Version: s.Version}, nil
	}
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	s.UserID = userID
	return s, nil
}

func (m *Manager) expired(s domain.Session) bool {
	if m.idleTTL <= 0 || s.UpdatedAt.IsZero() {
		return false
	}
	return m.now().Sub(s.UpdatedAt) > m.idleTTL
}

// SetState replaces the state tag and keeps the scratchpad.
func (m *Manager) SetState(ctx context.Context, userID int64, state domain.State) error {
	return m.mutate(ctx, userID, func(s *domain.Session) {
		s.State = state
	})
}

// UpdateData merges fields into the scratchpad. Existing keys are
// overwritten; other keys are left alone.
func (m *Manager) UpdateData(ctx context.Context, userID int64, fields map[string]string) error {
	return m.mutate(ctx, userID, func(s *domain.Session) {
		for k, v := range fields {
			s.Data[k] = v
		}
	})
}

// SetPending stores or clears (nil) the unsaved generated post.
func (m *Manager) SetPending(ctx context.Context, userID int64, p *domain.PendingPost) error {
	return m.mutate(ctx, userID, func(s *domain.Session) {
		if p == nil {
			s.Pending = nil
			return
		}
		cp := *p
		s.Pending = &cp
	})
}

// Clear resets the user to idle with an empty scratchpad. The record is
// rewritten rather than deleted so its version keeps counting up.
func (m *Manager) Clear(ctx context.Context, userID int64) error {
	return m.mutate(ctx, userID, func(s *domain.Session) {
		s.State = domain.StateIdle
		s.Data = map[string]string{}
		s.Pending = nil
	})
}

type pinKey struct{}

// pin is the session a handler started from, advanced by its own writes.
type pin struct {
	mu sync.Mutex
	s  domain.Session
}

// Pin binds s, the snapshot an event is handled against, to ctx. Writes made
// with the returned context apply to that snapshot and fail with
// domain.ErrConflict if anyone else stored a newer version in between, even
// from another process.
func (m *Manager) Pin(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, pinKey{}, &pin{s: clone(s)})
}

func pinned(ctx context.Context, userID int64) *pin {
	p, ok := ctx.Value(pinKey{}).(*pin)
	if !ok || p.s.UserID != userID {
		return nil
	}
	return p
}

func (m *Manager) mutate(ctx context.Context, userID int64, fn func(*domain.Session)) error {
	if p := pinned(ctx, userID); p != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		next := clone(p.s)
		if next.Data == nil {
			next.Data = map[string]string{}
		}
		fn(&next)
		if err := m.save(ctx, &next, p.s.Version); err != nil {
			return err
		}
		p.s = next
		return nil
	}

	s, err := m.Get(ctx, userID)
	if err != nil {
		return err
	}
	fn(&s)
	return m.save(ctx, &s, s.Version)
}

func (m *Manager) save(ctx context.Context, s *domain.Session, prev int64) error {
	s.Version = prev + 1
	s.UpdatedAt = m.now()
	return m.store.Save(ctx, *s, prev)
}
