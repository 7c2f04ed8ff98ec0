package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"channel-assistant/internal/domain"
)

func newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(NewMemoryStore(), opts...)
	require.NoError(t, err)
	return m
}

func TestGet_DefaultsToIdle(t *testing.T) {
	m := newManager(t)
	s, err := m.Get(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, s.Idle())
	require.Empty(t, s.Data)
	require.Nil(t, s.Pending)
	require.Equal(t, int64(7), s.UserID)
}

func TestUpdateData_ShallowMerge(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	require.NoError(t, m.UpdateData(ctx, 1, map[string]string{"idea": "Launch", "title": "v1"}))
	require.NoError(t, m.UpdateData(ctx, 1, map[string]string{"title": "v2", "body": "details"}))

	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"idea": "Launch", "title": "v2", "body": "details"}, s.Data)
}

func TestSetState_KeepsData(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.UpdateData(ctx, 1, map[string]string{"idea": "x"}))
	require.NoError(t, m.SetState(ctx, 1, "draft.title"))

	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, domain.State("draft.title"), s.State)
	require.Equal(t, "x", s.Value("idea"))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.SetState(ctx, 1, "edit.waiting_for_text"))
	require.NoError(t, m.UpdateData(ctx, 1, map[string]string{"draft_id": "9"}))
	require.NoError(t, m.SetPending(ctx, 1, &domain.PendingPost{Text: "t"}))
	require.NoError(t, m.Clear(ctx, 1))

	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, s.Idle())
	require.Empty(t, s.Data)
	require.Nil(t, s.Pending)
}

func TestSetPending_IsCopied(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	p := &domain.PendingPost{Text: "first"}
	require.NoError(t, m.SetPending(ctx, 1, p))
	p.Text = "mutated"

	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "first", s.Pending.Text)

	require.NoError(t, m.SetPending(ctx, 1, nil))
	s, err = m.Get(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, s.Pending)
}

func TestIdleTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newManager(t, WithIdleTTL(time.Hour), WithClock(func() time.Time { return now }))

	require.NoError(t, m.SetState(ctx, 1, "delete.waiting_for_id"))
	now = now.Add(59 * time.Minute)
	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, domain.State("delete.waiting_for_id"), s.State)

	now = now.Add(2 * time.Minute)
	s, err = m.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, s.Idle())
}

func TestNoExpiryByDefault(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newManager(t, WithClock(func() time.Time { return now }))
	require.NoError(t, m.SetState(ctx, 1, "draft.body"))
	now = now.Add(30 * 24 * time.Hour)
	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, domain.State("draft.body"), s.State)
}

func TestLock_SerializesSameUser(t *testing.T) {
	m := newManager(t)
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(5)
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxSeen)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Empty(t, m.locks, "lock entries must be released")
}

func TestLock_DifferentUsersIndependent(t *testing.T) {
	m := newManager(t)
	unlockA := m.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock(2)
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for user 2 blocked on user 1")
	}
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Load(context.Context, int64) (domain.Session, bool, error) {
	return domain.Session{}, false, errors.New("store down")
}

func TestGet_StoreError(t *testing.T) {
	m, err := NewManager(&failingStore{})
	require.NoError(t, err)
	_, err = m.Get(context.Background(), 1)
	require.ErrorContains(t, err, "store down")
	require.ErrorContains(t, m.SetState(context.Background(), 1, "x"), "store down")
}

func TestNewManager_NilStore(t *testing.T) {
	_, err := NewManager(nil)
	require.Error(t, err)
}

func TestMutations_BumpVersion(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.SetState(ctx, 1, "draft.idea"))
	require.NoError(t, m.UpdateData(ctx, 1, map[string]string{"idea": "x"}))
	require.NoError(t, m.Clear(ctx, 1))

	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, s.Idle())
	require.Equal(t, int64(3), s.Version)
}

func TestPin_ChainsOwnWrites(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.SetState(ctx, 1, "draft.body"))

	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	pctx := m.Pin(ctx, s)
	require.NoError(t, m.UpdateData(pctx, 1, map[string]string{"body": "details"}))
	require.NoError(t, m.SetState(pctx, 1, "draft.conclusion"))
	require.NoError(t, m.Clear(pctx, 1))

	got, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, got.Idle())
	require.Equal(t, int64(4), got.Version)
}

// Two handlers started from the same snapshot, as happens when two processes
// receive events for one user: the second writer loses.
func TestPin_RejectsInterleavedWriter(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryStore()
	first, err := NewManager(shared)
	require.NoError(t, err)
	second, err := NewManager(shared)
	require.NoError(t, err)
	require.NoError(t, first.SetState(ctx, 1, "delete.waiting_for_id"))

	s1, err := first.Get(ctx, 1)
	require.NoError(t, err)
	s2, err := second.Get(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, first.SetState(first.Pin(ctx, s1), 1, "delete.waiting_for_confirm"))
	err = second.Clear(second.Pin(ctx, s2), 1)
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := first.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, domain.State("delete.waiting_for_confirm"), got.State)
}

func TestPin_OtherUserIsNotPinned(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	pctx := m.Pin(ctx, domain.Session{UserID: 1, Version: 9})
	require.NoError(t, m.SetState(pctx, 2, "plan.waiting_for_topic"))
}

func TestIdleTTL_ExpiredKeepsVersion(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newManager(t, WithIdleTTL(time.Minute), WithClock(func() time.Time { return now }))
	require.NoError(t, m.SetState(ctx, 1, "search.waiting_for_query"))
	now = now.Add(time.Hour)

	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, s.Idle())
	require.NoError(t, m.SetState(m.Pin(ctx, s), 1, "plan.waiting_for_topic"))
}
