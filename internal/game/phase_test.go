package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/townsquare/internal/errors"
)

func TestParsePhase_RoundTrip(t *testing.T) {
	names := []string{"REGISTRATION", "NIGHT0", "DAY1", "NIGHT1", "DAY2", "NIGHT12", "DAY100"}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			id, err := ParsePhase(name)
			require.NoError(t, err)
			assert.Equal(t, name, id.String())
		})
	}
}

func TestParsePhase_Invalid(t *testing.T) {
	invalid := []string{"", "registration", "DAY0", "DAY", "NIGHT", "NIGHT-1", "NIGHT01", "DAY+1", "DAYx", "DUSK1", "NIGHT 1", "DAY1a"}
	for _, name := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePhase(name)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrPhaseName))
		})
	}
}

func TestPhaseOrdering(t *testing.T) {
	seq := []string{"REGISTRATION", "NIGHT0", "DAY1", "NIGHT1", "DAY2", "NIGHT2", "DAY3"}
	for i := 0; i < len(seq)-1; i++ {
		a := MustParsePhase(seq[i])
		b := MustParsePhase(seq[i+1])
		assert.True(t, a.Less(b), "%s < %s", seq[i], seq[i+1])
		assert.False(t, b.Less(a), "%s !< %s", seq[i+1], seq[i])
		assert.Equal(t, b, a.Next())
	}
}

func TestSortPhases(t *testing.T) {
	ids, err := SortPhases([]string{"DAY2", "NIGHT0", "NIGHT1", "REGISTRATION", "DAY1"})
	require.NoError(t, err)

	got := make([]string, len(ids))
	for i, id := range ids {
		got[i] = id.String()
	}
	assert.Equal(t, []string{"REGISTRATION", "NIGHT0", "DAY1", "NIGHT1", "DAY2"}, got)

	_, err = SortPhases([]string{"DAY1", "MORNING3"})
	assert.True(t, errors.Is(err, errors.ErrPhaseName))
}

func TestPhaseAtAndIndex(t *testing.T) {
	expected := map[int]string{
		1: "REGISTRATION",
		2: "NIGHT0",
		3: "DAY1",
		4: "NIGHT1",
		5: "DAY2",
		6: "NIGHT2",
		7: "DAY3",
	}
	for idx, name := range expected {
		id := PhaseAt(idx)
		assert.Equal(t, name, id.String())
		assert.Equal(t, idx, id.Index())
	}
}

func TestPhaseType(t *testing.T) {
	assert.Equal(t, PhaseTypeRegistration, Registration.Type())
	assert.Equal(t, PhaseTypeFirstNight, Night(0).Type())
	assert.Equal(t, PhaseTypeNight, Night(3).Type())
	assert.Equal(t, PhaseTypeDay, Day(1).Type())
}
