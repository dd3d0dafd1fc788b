package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotionink/engine/pkg/session"
)

func newTestStorage(t *testing.T) *RedisStorage {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewRedisStorage(mr.Addr(), time.Hour, logger)
}

func TestRedisStorage_SaveLoadDelete(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	s := session.New()
	s.Phase = session.PhaseInteractive
	s.Character = &session.Character{Name: "Wren", Traits: []string{"Curious"}}
	s.EmotionState = &session.EmotionState{Courage: 50, Fear: 20, Curiosity: 70, Happiness: 40}
	s.History = []session.HistoryItem{
		{Role: session.RoleUser, Text: "data:image/png;base64,abc"},
		{Role: session.RoleEvent, Text: "Wren comes to life!"},
	}

	require.NoError(t, store.SaveSession(ctx, s))
	assert.False(t, s.UpdatedAt.IsZero())

	loaded, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, session.PhaseInteractive, loaded.Phase)
	assert.Equal(t, "Wren", loaded.Character.Name)
	assert.Len(t, loaded.History, 2)
	assert.Equal(t, 70.0, loaded.EmotionState.Curiosity)

	require.NoError(t, store.DeleteSession(ctx, s.ID))
	gone, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRedisStorage_LoadMissing(t *testing.T) {
	store := newTestStorage(t)

	loaded, err := store.LoadSession(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStorage_LoadReturnsCopy(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	s := session.New()
	s.MoodLabel = "Focused"
	require.NoError(t, store.SaveSession(ctx, s))

	first, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	first.MoodLabel = "mutated"

	second, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Focused", second.MoodLabel)
}
