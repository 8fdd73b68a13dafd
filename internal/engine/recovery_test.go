package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"go.uber.org/zap"
)

func docAt(phase string, completed bool) *game.Document {
	doc := game.NewDocument(time.Now().UTC())
	for _, name := range []string{"REGISTRATION", "NIGHT0", "DAY1", "NIGHT1", "DAY2"} {
		rec := doc.EnsureRecord(name)
		rec.PhaseType = game.MustParsePhase(name).Type()
		rec.Completed = true
		if name == phase {
			rec.Completed = completed
			break
		}
	}
	doc.Phase = phase
	return doc
}

func TestRecoveryManager_ResumePoint(t *testing.T) {
	rm := NewRecoveryManager(zap.NewNop(), time.Hour)

	t.Run("fresh document", func(t *testing.T) {
		point, err := rm.ResumePoint(game.NewDocument(time.Now().UTC()))
		require.NoError(t, err)
		assert.Equal(t, ResumePoint{Index: 1, Phase: game.Registration}, point)
	})

	t.Run("incomplete phase resumes in place", func(t *testing.T) {
		point, err := rm.ResumePoint(docAt("DAY2", false))
		require.NoError(t, err)
		assert.Equal(t, "DAY2", point.Phase.String())
		assert.Equal(t, 5, point.Index)
		assert.True(t, point.Resume)
	})

	t.Run("completed phase advances", func(t *testing.T) {
		point, err := rm.ResumePoint(docAt("DAY2", true))
		require.NoError(t, err)
		assert.Equal(t, "NIGHT2", point.Phase.String())
		assert.Equal(t, 6, point.Index)
		assert.False(t, point.Resume)
	})

	t.Run("malformed history is fatal", func(t *testing.T) {
		doc := docAt("DAY1", true)
		doc.EnsureRecord("EVENING1")
		_, err := rm.ResumePoint(doc)
		assert.True(t, errors.Is(err, errors.ErrPhaseName))
	})

	t.Run("malformed current phase is fatal", func(t *testing.T) {
		doc := game.NewDocument(time.Now().UTC())
		doc.Phase = "DAY0"
		_, err := rm.ResumePoint(doc)
		assert.True(t, errors.Is(err, errors.ErrPhaseName))
	})
}
