package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"channel-assistant/internal/domain"
)

// Store persists sessions. Load reports ok=false when nothing is stored.
// Save writes s only if the stored version still equals prev (0 when nothing
// is stored) and fails with domain.ErrConflict otherwise.
type Store interface {
	Load(ctx context.Context, userID int64) (domain.Session, bool, error)
	Save(ctx context.Context, s domain.Session, prev int64) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]domain.Session)}
}

func (s *MemoryStore) Load(_ context.Context, userID int64) (domain.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return domain.Session{}, false, nil
	}
	return clone(sess), true, nil
}

func (s *MemoryStore) Save(_ context.Context, sess domain.Session, prev int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.sessions[sess.UserID].Version; cur != prev {
		return fmt.Errorf("session: user %d at version %d, expected %d: %w", sess.UserID, cur, prev, domain.ErrConflict)
	}
	s.sessions[sess.UserID] = clone(sess)
	return nil
}

// recordAPI is the session part of the DynamoDB repository client.
type recordAPI interface {
	LoadSession(ctx context.Context, userID int64) (domain.Session, bool, error)
	SaveSession(ctx context.Context, s domain.Session, prev int64, ttl time.Duration) error
}

// RecordStore adapts the repository session record to Store.
type RecordStore struct {
	api recordAPI
	ttl time.Duration
}

// NewRecordStore wraps api. A positive ttl is written as the record expiry.
func NewRecordStore(api recordAPI, ttl time.Duration) (*RecordStore, error) {
	if api == nil {
		return nil, errors.New("session: record api must not be nil")
	}
	return &RecordStore{api: api, ttl: ttl}, nil
}

func (s *RecordStore) Load(ctx context.Context, userID int64) (domain.Session, bool, error) {
	return s.api.LoadSession(ctx, userID)
}

func (s *RecordStore) Save(ctx context.Context, sess domain.Session, prev int64) error {
	return s.api.SaveSession(ctx, sess, prev, s.ttl)
}

// CachedStore is a write-through LRU cache in front of a remote Store. It
// assumes it is the only writer: a cached entry is never revalidated, so it
// must not be shared by several processes (Lambda, replicated webhooks). A
// save against a newer remote version fails with domain.ErrConflict and
// drops the entry, so the next Load reads the remote state.
type CachedStore struct {
	next  Store
	cache *lru.Cache[int64, domain.Session]
}

// NewCachedStore caches up to size sessions.
func NewCachedStore(next Store, size int) (*CachedStore, error) {
	if next == nil {
		return nil, errors.New("session: next store must not be nil")
	}
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[int64, domain.Session](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{next: next, cache: cache}, nil
}

func (s *CachedStore) Load(ctx context.Context, userID int64) (domain.Session, bool, error) {
	if sess, ok := s.cache.Get(userID); ok {
		return clone(sess), true, nil
	}
	sess, ok, err := s.next.Load(ctx, userID)
	if err != nil || !ok {
		return sess, ok, err
	}
	s.cache.Add(userID, clone(sess))
	return sess, true, nil
}

func (s *CachedStore) Save(ctx context.Context, sess domain.Session, prev int64) error {
	if err := s.next.Save(ctx, sess, prev); err != nil {
		s.cache.Remove(sess.UserID)
		return err
	}
	s.cache.Add(sess.UserID, clone(sess))
	return nil
}

func clone(s domain.Session) domain.Session {
	if s.Data != nil {
		data := make(map[string]string, len(s.Data))
		for k, v := range s.Data {
			data[k] = v
		}
		s.Data = data
	}
	if s.Pending != nil {
		p := *s.Pending
		if p.Media != nil {
			m := *p.Media
			p.Media = &m
		}
		s.Pending = &p
	}
	return s
}
