package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlayers() []Player {
	return []Player{
		NewPlayer(1, "Alice", "alice@example.com"),
		NewPlayer(2, "Bob", "bob@example.com"),
		NewPlayer(3, "Carol", "carol@example.com"),
	}
}

func TestResponses_KeepArrivalOrder(t *testing.T) {
	var r Responses
	r.Set(3, Response{From: "carol@example.com", Text: "yes"})
	r.Set(1, Response{From: "alice@example.com", Text: "no"})
	r.Set(2, Response{From: "bob@example.com", Text: "maybe"})
	r.Set(3, Response{From: "carol@example.com", Text: "changed"})

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"3":{"from":"carol@example.com","text":"changed"},"1":{"from":"alice@example.com","text":"no"},"2":{"from":"bob@example.com","text":"maybe"}}`,
		string(data))

	var back Responses
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)

	got, ok := back.Get(1)
	require.True(t, ok)
	assert.Equal(t, "no", got.Text)
	_, ok = back.Get(9)
	assert.False(t, ok)
}

func TestResponses_Empty(t *testing.T) {
	data, err := json.Marshal(Responses{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	var back Responses
	require.NoError(t, json.Unmarshal([]byte("null"), &back))
	assert.NotNil(t, back)
	assert.Empty(t, back)

	assert.Error(t, json.Unmarshal([]byte(`{"abc":{"from":"x","text":"y"}}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &back))
}

func TestResponses_DecodeKeepsDocumentKeyOrder(t *testing.T) {
	// 键的顺序与数值顺序不同，解码必须按文档顺序
	raw := `{"5":{"from":"eve@example.com","text":"a"},"2":{"from":"bob@example.com","text":"b"},"4":{"from":"dave@example.com","text":"c"}}`

	var r Responses
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	require.Len(t, r, 3)
	assert.Equal(t, []int{5, 2, 4}, []int{r[0].Player, r[1].Player, r[2].Player})

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(data))
	assert.Equal(t, raw, string(data))
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	doc := NewDocument(now)
	doc.Players = samplePlayers()
	doc.Phase = "NIGHT0"

	rec := doc.EnsureRecord("NIGHT0")
	sent := "prompt body"
	rec.Sent = &sent
	rec.PhaseType = PhaseTypeFirstNight
	rec.Responses.Set(2, Response{From: "bob@example.com", Text: "3"})
	rec.Actions = append(rec.Actions, NewAction(ActionButlerChoice, map[string]int{DetailBy: 2, DetailMaster: 3}))
	snap := NewSnapshot(doc.Players)
	rec.PlayerSnapshot = &snap

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	var back Document
	require.NoError(t, json.Unmarshal(data, &back))
	back.Normalize()
	assert.Equal(t, doc, &back)
}

func TestDocument_PhaseRecordCarriesName(t *testing.T) {
	doc := NewDocument(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, "DAY1", doc.EnsureRecord("DAY1").Name)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"DAY1"`)

	// 缺少 name 或与键不一致时以映射键为准
	raw := `{"phase":"NIGHT0","players":[],"phase_updates":{"NIGHT0":{"sent":null,"responses":{},"actions":[],"announcements":"","completed":false},"DAY1":{"name":"DAY9","sent":null,"responses":{},"actions":[],"announcements":"","completed":false},"NIGHT1":null},"metadata":{}}`
	var back Document
	require.NoError(t, json.Unmarshal([]byte(raw), &back))
	back.Normalize()
	assert.Equal(t, "NIGHT0", back.PhaseUpdates["NIGHT0"].Name)
	assert.Equal(t, "DAY1", back.PhaseUpdates["DAY1"].Name)
	assert.Equal(t, "NIGHT1", back.PhaseUpdates["NIGHT1"].Name)
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := NewDocument(time.Now().UTC())
	doc.Players = samplePlayers()
	rec := doc.EnsureRecord("NIGHT1")
	rec.Actions = append(rec.Actions, NewAction(ActionKill, map[string]int{DetailBy: 3, DetailTarget: 1}))

	cp := doc.Clone()
	cp.Players[0].Alive = false
	cp.PhaseUpdates["NIGHT1"].Actions[0].Details[DetailTarget] = 2
	cp.PhaseUpdates["NIGHT1"].Actions[0].MarkApplied(ActionResult{Status: StatusRecorded})

	assert.True(t, doc.Players[0].Alive)
	assert.Equal(t, 1, doc.PhaseUpdates["NIGHT1"].Actions[0].Details[DetailTarget])
	assert.False(t, doc.PhaseUpdates["NIGHT1"].Actions[0].Applied)
	assert.Nil(t, doc.PhaseUpdates["NIGHT1"].Actions[0].Result)
}

func TestDocument_PreviousPhase(t *testing.T) {
	doc := NewDocument(time.Now().UTC())
	for _, name := range []string{"DAY1", "REGISTRATION", "NIGHT1", "NIGHT0"} {
		doc.EnsureRecord(name)
	}

	prev, ok, err := doc.PreviousPhase(Day(2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "NIGHT1", prev.String())

	prev, ok, err = doc.PreviousPhase(Night(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "DAY1", prev.String())

	_, ok, err = doc.PreviousPhase(Registration)
	require.NoError(t, err)
	assert.False(t, ok)

	doc.EnsureRecord("BOGUS")
	_, _, err = doc.PreviousPhase(Day(2))
	assert.Error(t, err)
}

func TestDocument_ButlerMaster(t *testing.T) {
	doc := NewDocument(time.Now().UTC())
	doc.EnsureRecord("NIGHT0").Actions = []Action{
		NewAction(ActionButlerChoice, map[string]int{DetailBy: 2, DetailMaster: 3}),
	}
	doc.EnsureRecord("NIGHT1").Actions = []Action{
		NewAction(ActionButlerChoice, map[string]int{DetailBy: 2, DetailMaster: 5}),
		NewAction(ActionKill, map[string]int{DetailBy: 4, DetailTarget: 1}),
	}

	master, ok := doc.ButlerMaster(2)
	require.True(t, ok)
	assert.Equal(t, 5, master)

	_, ok = doc.ButlerMaster(4)
	assert.False(t, ok)
}

func TestSnapshotAndPlayers(t *testing.T) {
	players := samplePlayers()
	players[1].Alive = false

	snap := NewSnapshot(players)
	assert.Equal(t, 2, snap.AliveCount)
	assert.Equal(t, 1, snap.DeadCount)
	assert.Len(t, snap.Players, 3)

	snap.Players[0].Name = "changed"
	assert.Equal(t, "Alice", players[0].Name)

	assert.Equal(t, 2, FindPlayer(players, 3))
	assert.Equal(t, -1, FindPlayer(players, 9))
	assert.True(t, RoleDemon.Valid())
	assert.False(t, RoleClass("wizard").Valid())
	assert.True(t, ActionPoison.Known())
	assert.False(t, ActionKind("slay").Known())
}
