package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
)

func TestLifecycle_Transitions(t *testing.T) {
	ctx := context.Background()
	lc := NewLifecycle("DAY1", PhasePending, nil)

	var changes []string
	lc.OnStateChange(func(phase string, from, to PhaseState) {
		changes = append(changes, fmt.Sprintf("%s:%s->%s", phase, from, to))
	})

	assert.True(t, lc.CanTransition(EventStart))
	assert.False(t, lc.CanTransition(EventComplete))

	require.NoError(t, lc.Trigger(ctx, EventStart, nil))
	assert.Equal(t, PhaseActive, lc.State())
	require.NoError(t, lc.Trigger(ctx, EventResume, nil))
	require.NoError(t, lc.Trigger(ctx, EventComplete, nil))
	assert.Equal(t, PhaseDone, lc.State())

	err := lc.Trigger(ctx, EventStart, nil)
	assert.True(t, errors.Is(err, errors.ErrPhaseState))

	assert.Equal(t, []string{
		"DAY1:pending->active",
		"DAY1:active->active",
		"DAY1:active->done",
	}, changes)
}

func TestLifecycle_ActionFailureKeepsState(t *testing.T) {
	lc := NewLifecycle("NIGHT0", PhasePending, nil)
	err := lc.Trigger(context.Background(), EventStart, func(ctx context.Context) error {
		return errors.New(errors.ErrPersistWrite)
	})
	assert.True(t, errors.Is(err, errors.ErrPersistWrite))
	assert.Equal(t, PhasePending, lc.State())
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, PhasePending, StateOf(nil))
	assert.Equal(t, PhasePending, StateOf(game.NewPhaseRecord("DAY1")))

	rec := game.NewPhaseRecord("DAY1")
	rec.PhaseType = game.PhaseTypeDay
	assert.Equal(t, PhaseActive, StateOf(rec))

	rec.Completed = true
	assert.Equal(t, PhaseDone, StateOf(rec))
}
