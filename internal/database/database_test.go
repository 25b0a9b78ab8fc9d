// internal/database/database_test.go
package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/keldurben/internal/game"
	"github.com/jason-s-yu/keldurben/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(nil))
}

// setupTestStore needs a reachable Postgres in TEST_DATABASE_URL.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Connect(ctx, url, nil)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(s.Close)
	return s
}

func TestUserLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	name := "user_" + uuid.NewString()[:8]

	u := &models.User{Username: name, Password: "$argon2id$fake", Avatar: models.AvatarFor(name)}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEqual(t, uuid.Nil, u.ID)

	err := s.CreateUser(ctx, &models.User{Username: name, Password: "x"})
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := s.GetUserByUsername(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.Avatar, got.Avatar)

	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, name, byID.Username)

	_, err = s.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRoundResults(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	room := "room_" + uuid.NewString()[:8]
	cell := 12

	in := []game.RoundResult{
		{Room: room, Round: 1, Target: 12, CueGiver: uuid.New(), Cue1: "a", Cue2: "b",
			Awards: []game.PlayerAward{{PlayerID: uuid.New(), Name: "bob", Cell: &cell, Points: 3, Total: 3}},
			At:     time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)},
		{Room: room, Round: 2, Target: 40, CueGiver: uuid.New(), Cue1: "c", Cue2: "d",
			At: time.Now().UTC().Truncate(time.Microsecond)},
	}
	require.NoError(t, s.InsertRoundResults(ctx, in))
	require.NoError(t, s.InsertRoundResults(ctx, nil))

	got, err := s.RecentRounds(ctx, room, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Round)
	assert.Equal(t, 1, got[1].Round)
	require.Len(t, got[1].Awards, 1)
	assert.Equal(t, 3, got[1].Awards[0].Points)
}
