package goals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"goalsplit-backend/internal/ai"
	"goalsplit-backend/internal/auth"
	"goalsplit-backend/internal/db"
	"goalsplit-backend/internal/logging"
)

type stubDecomposer struct {
	subgoals []string
	calls    atomic.Int32
}

func (s *stubDecomposer) Decompose(ctx context.Context, goal string) ai.Result {
	s.calls.Add(1)
	return ai.Result{Subgoals: s.subgoals, Meta: ai.Meta{Model: "stub-model", Source: "stub"}}
}

type testServer struct {
	handler http.Handler
	db      *db.DB
	tokens  auth.Tokens
	dec     *stubDecomposer
}

func newTestServer(t *testing.T, subgoals ...string) *testServer {
	t.Helper()
	d := openTestDB(t)
	tokens := auth.Tokens{Secret: []byte("test-secret"), TTL: time.Hour}
	dec := &stubDecomposer{subgoals: subgoals}

	h := &Handlers{
		Store:        NewStore(d, 0),
		Decomposer:   dec,
		DB:           d.DB,
		Log:          logging.Discard(),
		HistoryLimit: DefaultHistoryLimit,
	}
	mw := auth.New(tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/goals/decompose", mw.Wrap(h.DecomposeHandler()))
	mux.HandleFunc("GET /api/goals/history", mw.Wrap(h.HistoryHandler()))
	mux.HandleFunc("DELETE /api/goals/{id}", mw.Wrap(h.DeleteSessionHandler()))
	mux.HandleFunc("PATCH /api/subgoals/{id}", mw.Wrap(h.UpdateSubgoalHandler()))
	mux.HandleFunc("POST /api/subgoals/{id}/toggle", mw.Wrap(h.ToggleSubgoalHandler()))

	return &testServer{handler: mux, db: d, tokens: tokens, dec: dec}
}

func (ts *testServer) token(t *testing.T, uid int) string {
	t.Helper()
	tok, err := ts.tokens.Issue(uid)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type historyPage struct {
	History []GoalSession `json:"history"`
}

type subgoalReply struct {
	Subgoal SubGoal `json:"subgoal"`
}

func TestDecomposeHandler_CreatesSession(t *testing.T) {
	ts := newTestServer(t, "Pick a course", "Practice daily")
	uid := addUser(t, ts.db, "a@example.com")
	tok := ts.token(t, uid)

	rec := ts.do(t, http.MethodPost, "/api/goals/decompose", tok, `{"goal":"  Learn Spanish "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	sess := decodeJSON[GoalSession](t, rec)
	if sess.Goal != "Learn Spanish" || len(sess.Subgoals) != 2 {
		t.Errorf("session = %+v", sess)
	}
	if sess.Meta.Source != "stub" {
		t.Errorf("meta = %+v", sess.Meta)
	}

	rec = ts.do(t, http.MethodGet, "/api/goals/history", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	page := decodeJSON[historyPage](t, rec)
	if len(page.History) != 1 || page.History[0].ID != sess.ID {
		t.Errorf("history = %+v", page.History)
	}

	var events int
	if err := ts.db.QueryRow(`SELECT COUNT(*) FROM analytics_events WHERE event_name = 'goal_decomposed' AND user_id = $1`, uid).Scan(&events); err != nil {
		t.Fatal(err)
	}
	if events != 1 {
		t.Errorf("goal_decomposed events = %d, want 1", events)
	}
}

func TestDecomposeHandler_BlankGoalRejectedBeforeProviders(t *testing.T) {
	ts := newTestServer(t, "x")
	tok := ts.token(t, addUser(t, ts.db, "a@example.com"))

	for _, body := range []string{`{"goal":"   "}`, `{"goal":""}`, `{}`, `{"goal":null}`} {
		rec := ts.do(t, http.MethodPost, "/api/goals/decompose", tok, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
		}
	}
	if rec := ts.do(t, http.MethodPost, "/api/goals/decompose", tok, `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid json status = %d", rec.Code)
	}
	if n := ts.dec.calls.Load(); n != 0 {
		t.Errorf("decomposer called %d times", n)
	}
	if n := count(t, ts.db, "goal_sessions"); n != 0 {
		t.Errorf("goal_sessions = %d", n)
	}
}

func TestDecomposeHandler_EmptyDecomposition(t *testing.T) {
	ts := newTestServer(t, " ", "")
	tok := ts.token(t, addUser(t, ts.db, "a@example.com"))

	rec := ts.do(t, http.MethodPost, "/api/goals/decompose", tok, `{"goal":"anything"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if n := count(t, ts.db, "goal_sessions"); n != 0 {
		t.Errorf("goal_sessions = %d", n)
	}
}

func TestHandlers_RequireAuth(t *testing.T) {
	ts := newTestServer(t, "x")

	cases := []struct{ method, path string }{
		{http.MethodPost, "/api/goals/decompose"},
		{http.MethodGet, "/api/goals/history"},
		{http.MethodDelete, "/api/goals/abc"},
		{http.MethodPatch, "/api/subgoals/abc"},
		{http.MethodPost, "/api/subgoals/abc/toggle"},
	}
	for _, c := range cases {
		if rec := ts.do(t, c.method, c.path, "", `{"goal":"g"}`); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d", c.method, c.path, rec.Code)
		}
		if rec := ts.do(t, c.method, c.path, "garbage", `{"goal":"g"}`); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with bad token = %d", c.method, c.path, rec.Code)
		}
	}
}

func TestUpdateSubgoalHandler(t *testing.T) {
	ts := newTestServer(t, "Draft plan", "Ship it")
	alice := addUser(t, ts.db, "alice@example.com")
	bob := addUser(t, ts.db, "bob@example.com")
	aliceTok, bobTok := ts.token(t, alice), ts.token(t, bob)

	rec := ts.do(t, http.MethodPost, "/api/goals/decompose", aliceTok, `{"goal":"Launch"}`)
	sess := decodeJSON[GoalSession](t, rec)
	path := "/api/subgoals/" + sess.Subgoals[0].ID

	rec = ts.do(t, http.MethodPatch, path, bobTok, `{"title":"mine"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign patch status = %d, want 404", rec.Code)
	}

	rec = ts.do(t, http.MethodPatch, path, aliceTok, `{"title":"Write plan","deadline":"2025-07-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	sg := decodeJSON[subgoalReply](t, rec).Subgoal
	if sg.Title != "Write plan" || sg.OriginalTitle != "Draft plan" || sg.Deadline == nil {
		t.Errorf("patched = %+v", sg)
	}

	rec = ts.do(t, http.MethodPatch, path, aliceTok, `{"deadline":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	if sg := decodeJSON[subgoalReply](t, rec).Subgoal; sg.Deadline != nil || sg.Title != "Write plan" {
		t.Errorf("after clear = %+v", sg)
	}

	for _, body := range []string{`{"title":"  "}`, `{"deadline":"soon"}`, `{}`} {
		if rec := ts.do(t, http.MethodPatch, path, aliceTok, body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
		}
	}

	if rec := ts.do(t, http.MethodPatch, "/api/subgoals/nope", aliceTok, `{"title":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing subgoal status = %d", rec.Code)
	}
}

func TestToggleAndDeleteHandlers(t *testing.T) {
	ts := newTestServer(t, "a", "b")
	alice := addUser(t, ts.db, "alice@example.com")
	bob := addUser(t, ts.db, "bob@example.com")
	aliceTok, bobTok := ts.token(t, alice), ts.token(t, bob)

	sess := decodeJSON[GoalSession](t, ts.do(t, http.MethodPost, "/api/goals/decompose", aliceTok, `{"goal":"g"}`))

	rec := ts.do(t, http.MethodPost, "/api/subgoals/"+sess.Subgoals[1].ID+"/toggle", aliceTok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	if sg := decodeJSON[subgoalReply](t, rec).Subgoal; !sg.IsCompleted {
		t.Error("toggle did not complete sub-goal")
	}

	if rec := ts.do(t, http.MethodDelete, "/api/goals/"+sess.ID, bobTok, ""); rec.Code != http.StatusNotFound {
		t.Errorf("foreign delete status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/goals/"+sess.ID, aliceTok, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}

	page := decodeJSON[historyPage](t, ts.do(t, http.MethodGet, "/api/goals/history", aliceTok, ""))
	if len(page.History) != 0 {
		t.Errorf("history after delete = %d sessions", len(page.History))
	}
}

func TestHistoryHandler_Limit(t *testing.T) {
	ts := newTestServer(t, "step")
	tok := ts.token(t, addUser(t, ts.db, "a@example.com"))

	for i := 0; i < 3; i++ {
		ts.do(t, http.MethodPost, "/api/goals/decompose", tok, `{"goal":"g"}`)
	}

	page := decodeJSON[historyPage](t, ts.do(t, http.MethodGet, "/api/goals/history?limit=2", tok, ""))
	if len(page.History) != 2 {
		t.Errorf("sessions = %d, want 2", len(page.History))
	}

	for _, q := range []string{"0", "-3", "abc"} {
		if rec := ts.do(t, http.MethodGet, "/api/goals/history?limit="+q, tok, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", q, rec.Code)
		}
	}
}

func TestHandlers_ResponseEnvelopes(t *testing.T) {
	ts := newTestServer(t, "Pick a course")
	tok := ts.token(t, addUser(t, ts.db, "a@example.com"))
	sess := decodeJSON[GoalSession](t, ts.do(t, http.MethodPost, "/api/goals/decompose", tok, `{"goal":"Learn Go"}`))
	sgPath := "/api/subgoals/" + sess.Subgoals[0].ID

	cases := []struct {
		name, method, path, body, key string
	}{
		{"history", http.MethodGet, "/api/goals/history", "", "history"},
		{"patch", http.MethodPatch, sgPath, `{"title":"x"}`, "subgoal"},
		{"toggle", http.MethodPost, sgPath + "/toggle", "", "subgoal"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := ts.do(t, c.method, c.path, tok, c.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			body := decodeJSON[map[string]json.RawMessage](t, rec)
			if _, ok := body[c.key]; !ok || len(body) != 1 {
				t.Errorf("body = %s, want a single %q key", rec.Body.String(), c.key)
			}
		})
	}
}
