package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/middleware"
	"github.com/wfunc/townsquare/internal/phase"
	"github.com/wfunc/townsquare/internal/repository"
	ws "github.com/wfunc/townsquare/internal/websocket"
)

type testEnv struct {
	repo   *repository.StateRepository
	inbox  *phase.Inbox
	outbox *phase.Outbox
	hub    *ws.Hub
	router *Router
}

func newTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	repo, _ := repository.NewTestRepository(t)
	// 阶段按非规范顺序写入
	for _, name := range []string{"DAY1", "REGISTRATION", "NIGHT0"} {
		typ := game.MustParsePhase(name).Type()
		require.NoError(t, repo.UpdatePhase(ctx, name, repository.PhaseUpdate{Type: &typ, Current: true}))
	}
	require.NoError(t, repo.RecordAction(ctx, "NIGHT0", game.ActionPoison, map[string]int{game.DetailBy: 4, game.DetailTarget: 1}))

	env := &testEnv{
		repo:   repo,
		inbox:  phase.NewInbox(8, nil),
		outbox: phase.NewOutbox(nil),
		hub:    ws.NewHub(nil),
	}
	env.router = NewRouter(Deps{
		Repo:   repo,
		Intake: phase.NewIntake(repo, env.inbox, nil),
		Outbox: env.outbox,
		Hub:    env.hub,
	}, nil)
	return env
}

func (e *testEnv) do(method, url string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.GetEngine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "NIGHT0", resp["phase"])
	assert.Equal(t, []interface{}{}, resp["online_players"])
	assert.NotContains(t, resp, "revision")
}

func TestHealth_ReportsStoreRevision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := repository.NewDatabaseStore(repository.SetupTestDB(t), "botc-health", nil)
	repo, err := repository.Open(ctx, store, nil)
	require.NoError(t, err)
	require.NoError(t, repo.SetPlayers(ctx, repository.SamplePlayers()))
	require.NoError(t, repo.UpdatePhase(ctx, "REGISTRATION", repository.PhaseUpdate{Current: true}))

	router := NewRouter(Deps{
		Repo:   repo,
		Intake: phase.NewIntake(repo, phase.NewInbox(8, nil), nil),
		Outbox: phase.NewOutbox(nil),
		Store:  store,
	}, nil)

	w := httptest.NewRecorder()
	router.GetEngine().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, float64(3), resp["revision"])
	assert.Equal(t, "REGISTRATION", resp["phase"])
	assert.NotContains(t, resp, "online_players")
}

func TestGetGame(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/api/v1/game", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var doc game.Document
	decode(t, w, &doc)
	assert.Equal(t, "NIGHT0", doc.Phase)
	assert.Len(t, doc.Players, 5)
	assert.Len(t, doc.PhaseUpdates, 3)
}

func TestListPhases_CanonicalOrder(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/api/v1/phases", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Current string         `json:"current"`
		Phases  []PhaseSummary `json:"phases"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Phases, 3)
	assert.Equal(t, "REGISTRATION", resp.Phases[0].Name)
	assert.Equal(t, "NIGHT0", resp.Phases[1].Name)
	assert.Equal(t, game.PhaseTypeFirstNight, resp.Phases[1].Type)
	assert.Equal(t, 1, resp.Phases[1].Unapplied)
	assert.Equal(t, "DAY1", resp.Phases[2].Name)
}

func TestGetPhase(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/api/v1/phases/NIGHT0", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec game.PhaseRecord
	decode(t, w, &rec)
	require.Len(t, rec.Actions, 1)
	assert.Equal(t, game.ActionPoison, rec.Actions[0].Type)

	w = env.do("GET", "/api/v1/phases/night0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errResp ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, int(errors.ErrPhaseName), errResp.Code)

	w = env.do("GET", "/api/v1/phases/DAY9", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitReply(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		phase  string
		req    ReplyRequest
		status int
	}{
		{"接受", "NIGHT0", ReplyRequest{Player: 2, From: "bob@example.com", Body: "3"}, http.StatusAccepted},
		{"非当前阶段", "DAY1", ReplyRequest{Player: 2, From: "bob@example.com", Body: "3"}, http.StatusConflict},
		{"玩家不存在", "NIGHT0", ReplyRequest{Player: 9, From: "x@example.com", Body: "3"}, http.StatusNotFound},
		{"发件人不匹配", "NIGHT0", ReplyRequest{Player: 2, From: "eve@example.com", Body: "3"}, http.StatusForbidden},
		{"缺少字段", "NIGHT0", ReplyRequest{Body: "3"}, http.StatusBadRequest},
		{"阶段名非法", "NIGHT00", ReplyRequest{Player: 2, From: "bob@example.com"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do("POST", "/api/v1/phases/"+tc.phase+"/replies", tc.req, nil)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}

	require.Equal(t, 1, env.inbox.Len())
	msg := <-env.inbox.C()
	assert.Equal(t, "NIGHT0", msg.Phase)
	assert.Equal(t, 2, msg.Player)
	assert.Equal(t, "3", msg.Body)
}

func TestGetPrompt(t *testing.T) {
	env := newTestEnv(t)
	auth := map[string]string{middleware.ContactHeader: "carol@example.com"}

	w := env.do("GET", "/api/v1/players/3/prompt", nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.outbox.Send(phase.Prompt{Phase: "NIGHT0", Player: 3, Subject: "s", Body: "hello"})
	w = env.do("GET", "/api/v1/players/3/prompt", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var p phase.Prompt
	decode(t, w, &p)
	assert.Equal(t, "hello", p.Body)

	w = env.do("GET", "/api/v1/players/3/prompt", nil, map[string]string{middleware.ContactHeader: "bob@example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNoRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlayerWebSocket(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.hub.Run(ctx)

	srv := httptest.NewServer(env.router.GetEngine())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/players/2?contact=bob@example.com"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() ws.Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var m ws.Message
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	assert.Equal(t, ws.MessageTypeConnected, read().Type)

	var health map[string]interface{}
	decode(t, env.do("GET", "/health", nil, nil), &health)
	assert.Equal(t, []interface{}{float64(2)}, health["online_players"])

	env.hub.PushPrompt(env.outbox.Send(phase.Prompt{Phase: "NIGHT0", Player: 2, Body: "choose"}))
	m := read()
	assert.Equal(t, ws.MessageTypePrompt, m.Type)
	var p phase.Prompt
	require.NoError(t, json.Unmarshal(m.Data, &p))
	assert.Equal(t, "choose", p.Body)

	require.NoError(t, conn.WriteJSON(ws.Message{
		Type:  ws.MessageTypeReply,
		Phase: "NIGHT0",
		Data:  json.RawMessage(`{"body":"3"}`),
	}))
	assert.Equal(t, ws.MessageTypeReplyAccepted, read().Type)

	require.Equal(t, 1, env.inbox.Len())
	msg := <-env.inbox.C()
	assert.Equal(t, "bob@example.com", msg.From)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.MessageTypeReply, Phase: "DAY1", Data: json.RawMessage(`{"body":"x"}`)}))
	assert.Equal(t, ws.MessageTypeError, read().Type)
}

func TestPlayerWebSocket_RequiresContact(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/ws/players/2", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
