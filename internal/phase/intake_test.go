package phase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/repository"
)

func TestIntake_Submit(t *testing.T) {
	ctx := context.Background()
	repo, _ := repository.NewTestRepository(t)
	typ := game.PhaseTypeDay
	require.NoError(t, repo.UpdatePhase(ctx, "DAY1", repository.PhaseUpdate{Type: &typ, Current: true}))

	inbox := NewInbox(1, nil)
	intake := NewIntake(repo, inbox, nil)

	_, err := intake.Submit(1, "day1", "alice@example.com", "hi")
	assert.Equal(t, errors.ErrPhaseName, errors.GetCode(err))

	_, err = intake.Submit(1, "DAY2", "alice@example.com", "hi")
	assert.Equal(t, errors.ErrPhaseNotCurrent, errors.GetCode(err))

	_, err = intake.Submit(9, "DAY1", "alice@example.com", "hi")
	assert.Equal(t, errors.ErrPlayerNotFound, errors.GetCode(err))

	_, err = intake.Submit(1, "DAY1", "bob@example.com", "hi")
	assert.Equal(t, errors.ErrSenderMismatch, errors.GetCode(err))

	msg, err := intake.Submit(1, "DAY1", " Alice@Example.com ", "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, 1, inbox.Len())

	_, err = intake.Submit(1, "DAY1", "alice@example.com", "again")
	assert.Equal(t, errors.ErrInboxFull, errors.GetCode(err))
}
