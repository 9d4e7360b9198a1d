package sqlite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/neo-risk-service/internal/domain"
)

var fixedNow = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "neo_test.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestStore_CheckReadiness(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CheckReadiness(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.CheckReadiness(context.Background()))
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(path, logger)
	require.NoError(t, err)
	_, err = s.UpsertUser(context.Background(), "ada@example.com", "Ada")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, logger)
	require.NoError(t, err)
	defer s.Close()

	u, err := s.UserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
}

func TestStore_Users(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.DefaultOwner(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	first, err := s.UpsertUser(ctx, "first@example.com", "First")
	require.NoError(t, err)
	second, err := s.UpsertUser(ctx, "second@example.com", "Second")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	renamed, err := s.UpsertUser(ctx, "first@example.com", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, first.ID, renamed.ID)
	assert.Equal(t, "Renamed", renamed.Name)

	owner, err := s.DefaultOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, owner.ID)

	_, err = s.UserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_AlertLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	owner, err := s.UpsertUser(ctx, "owner@example.com", "Owner")
	require.NoError(t, err)

	created, err := s.CreateAlert(ctx, domain.Alert{
		Name:      domain.HazardAlertName("(2010 PK9)"),
		Threshold: 90,
		Enabled:   true,
		UserID:    owner.ID,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, fixedNow, created.CreatedAt)

	list, err := s.ListAlerts(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created, list[0])

	updated, err := s.SetAlertEnabled(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, created.Name, updated.Name)

	require.NoError(t, s.DeleteAlert(ctx, created.ID))
	list, err = s.ListAlerts(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list, "empty list should encode as []")
}

func TestStore_AlertsMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.SetAlertEnabled(ctx, 42, true)
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = s.DeleteAlert(ctx, 42)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_AlertRequiresExistingUser(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CreateAlert(context.Background(), domain.Alert{Name: "orphan", Threshold: 50, UserID: 999})
	assert.Error(t, err)
}

func TestStore_AlertsScopedToUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, _ := s.UpsertUser(ctx, "a@example.com", "A")
	b, _ := s.UpsertUser(ctx, "b@example.com", "B")

	for i := range 3 {
		_, err := s.CreateAlert(ctx, domain.Alert{Name: fmt.Sprintf("a-%d", i), Threshold: 10, Enabled: true, UserID: a.ID})
		require.NoError(t, err)
	}
	_, err := s.CreateAlert(ctx, domain.Alert{Name: "b-0", Threshold: 10, UserID: b.ID})
	require.NoError(t, err)

	listA, err := s.ListAlerts(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, listA, 3)
	assert.Equal(t, "a-0", listA[0].Name)
	assert.Equal(t, "a-2", listA[2].Name)

	listB, err := s.ListAlerts(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, listB, 1)
	assert.False(t, listB[0].Enabled)
}

func TestStore_RecentMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		saved, err := s.SaveMessage(ctx, domain.ChatMessage{
			User:      "observer",
			Text:      fmt.Sprintf("line %d", i),
			Timestamp: "09:00",
		})
		require.NoError(t, err)
		assert.NotZero(t, saved.ID)
	}

	recent, err := s.RecentMessages(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "line 2", recent[0].Text)
	assert.Equal(t, "line 4", recent[2].Text)
	assert.True(t, fixedNow.Equal(recent[0].CreatedAt))

	all, err := s.RecentMessages(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := s.RecentMessages(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
