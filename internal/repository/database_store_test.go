package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/models"
)

func TestDatabaseStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := SetupTestDB(t)
	store := NewDatabaseStore(db, "botc-test", nil)

	_, err := store.Load(ctx)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	repo, err := Open(ctx, store, nil)
	require.NoError(t, err)
	require.NoError(t, repo.SetPlayers(ctx, SamplePlayers()))
	require.NoError(t, repo.UpdatePhase(ctx, "NIGHT1", PhaseUpdate{Current: true}))
	require.NoError(t, repo.RecordAction(ctx, "NIGHT1", game.ActionKill, map[string]int{"by": 5, "target": 3}))
	require.NoError(t, repo.RecordResponse(ctx, "NIGHT1", 5, "eve@example.com", "3"))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, repo.Document(), loaded)

	rev, err := store.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rev)

	var row models.GameDocument
	require.NoError(t, db.Where("game_id = ?", "botc-test").First(&row).Error)
	assert.Equal(t, "NIGHT1", row.CurrentPhase)
	assert.Equal(t, game.DocumentVersion, row.Version)

	var count int64
	db.Model(&models.GameDocument{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDatabaseStore_GamesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := SetupTestDB(t)

	a, err := Open(ctx, NewDatabaseStore(db, "game-a", nil), nil)
	require.NoError(t, err)
	b, err := Open(ctx, NewDatabaseStore(db, "game-b", nil), nil)
	require.NoError(t, err)

	require.NoError(t, a.SetPlayers(ctx, SamplePlayers()))
	assert.Len(t, a.Players(), 5)
	assert.Empty(t, b.Players())

	loaded, err := NewDatabaseStore(db, "game-b", nil).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Players)
}
