package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cleanup"
	"github.com/xenking/storefront/internal/domain/session"
)

func TestSessionStore(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "h1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.Put(ctx, "h1", session.Session{UserEmail: "a@b.c"}))
	got, err := s.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", got.UserEmail)

	// Returned sessions are copies.
	got.UserEmail = "x"
	again, err := s.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", again.UserEmail)

	require.NoError(t, s.Delete(ctx, "h1"))
	assert.Zero(t, s.Len())
}

func TestSessionStore_Sweep(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Put(ctx, "old", session.Session{UserEmail: "a@b.c", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.Put(ctx, "new", session.Session{UserEmail: "d@e.f", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.Put(ctx, "forever", session.Session{UserEmail: "g@h.i"}))

	assert.Equal(t, 1, s.Sweep(now))
	assert.Equal(t, 2, s.Len())
	_, err := s.Get(ctx, "old")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_StartSweeper(t *testing.T) {
	s := NewSessionStore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	for _, h := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, h, session.Session{ExpiresAt: time.Now().Add(-time.Second)}))
	}
	go s.StartSweeper(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSessionStore_WithManager(t *testing.T) {
	m := session.NewManager(NewSessionStore(), []byte("pepper"), 0)
	ctx := context.Background()

	token, err := m.Login(ctx, session.Session{Role: session.RoleShopkeeper, ShopID: "s1", ShopName: "Corner"})
	require.NoError(t, err)

	s, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Corner", s.ShopName)

	_, err = m.Resolve(ctx, "forged")
	require.ErrorIs(t, err, session.ErrUnauthorized)
}

func TestCleanupLog(t *testing.T) {
	l := NewCleanupLog()
	ctx := context.Background()

	s := cleanup.NewSaga("o1", "s1", "a@b.c", decimal.NewFromInt(3), []string{"l1", "l2", "l3"})
	require.NoError(t, l.Begin(ctx, s))

	require.NoError(t, l.Complete(ctx, s.Tasks[0].ID))
	require.NoError(t, l.Fail(ctx, s.Tasks[1].ID, "503"))
	require.NoError(t, l.Fail(ctx, s.Tasks[2].ID, "503"))
	require.NoError(t, l.Fail(ctx, s.Tasks[2].ID, "503"))
	require.ErrorIs(t, l.Complete(ctx, "missing"), ErrTaskNotFound)

	got, err := l.Saga(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, cleanup.StatusDone, got.Tasks[0].Status)
	assert.Equal(t, cleanup.StatusFailed, got.Tasks[1].Status)
	assert.Equal(t, "503", got.Tasks[1].LastError)
	assert.Equal(t, 2, got.Tasks[2].Attempts)

	retry, err := l.Retryable(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, "l2", retry[0].LineID)

	retry, err = l.Retryable(ctx, 5, 1)
	require.NoError(t, err)
	assert.Len(t, retry, 1)

	_, err = l.Saga(ctx, "missing")
	require.ErrorIs(t, err, cleanup.ErrSagaNotFound)
}
