package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	journal "github.com/ghiac/journal"
	"github.com/ghiac/journal/internal/config"
	journallib "github.com/ghiac/journal/internal/llmclient"
)

// stubLLM runs a local httptest.Server that answers the go-openai chat
// completions request shape, popping one canned assistant message per call,
// so AgentRuntime and Structurer can be exercised end to end without a real
// OpenAI account.
type stubLLM struct {
	srv *httptest.Server

	mu        sync.Mutex
	responses []stubResponse
	calls     int
}

type stubResponse struct {
	status  int
	content string
	// toolCall, when non-empty, makes the canned response a tool call
	// instead of plain content.
	toolCallName string
	toolCallArgs string
}

func newStubLLM(t *testing.T, responses ...stubResponse) *stubLLM {
	t.Helper()
	s := &stubLLM{responses: responses}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stubLLM) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	if idx >= len(s.responses) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"stub exhausted"}}`))
		return
	}
	resp := s.responses[idx]
	if resp.status != 0 && resp.status != http.StatusOK {
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(`{"error":{"message":"stubbed failure"}}`))
		return
	}

	message := map[string]any{"role": "assistant", "content": resp.content}
	if resp.toolCallName != "" {
		message["content"] = ""
		message["tool_calls"] = []map[string]any{
			{
				"id":   "call_1",
				"type": "function",
				"function": map[string]any{
					"name":      resp.toolCallName,
					"arguments": resp.toolCallArgs,
				},
			},
		}
	}

	body := map[string]any{
		"id":      "chatcmpl-stub",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{"index": 0, "message": message, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (s *stubLLM) client() *journallib.Client {
	return journallib.New(config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: s.srv.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
}

// testHarness wires a Journal against an in-memory sqlite store and a stub
// LLM, the way journal.NewWithOptions lets callers substitute either for
// tests.
type testHarness struct {
	router *gin.Engine
}

func newHarness(t *testing.T, llm *journallib.Client) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		HTTP: config.HTTPConfig{Debug: false},
		DB:   config.DBConfig{Driver: "sqlite", DSN: ""},
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenLifetime: time.Hour},
		LLM:  config.LLMConfig{APIKey: "unused", Model: "gpt-4o-mini", Timeout: 5 * time.Second},
	}

	var opts *journal.Options
	if llm != nil {
		opts = &journal.Options{LLM: llm}
	}
	j, err := journal.NewWithOptions(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close(context.Background()) })

	return &testHarness{router: j.Router}
}

// do issues an HTTP request against the wired router and decodes a JSON
// response body, if any, into out.
func (h *testHarness) do(t *testing.T, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (h *testHarness) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	var reg map[string]any
	rec := h.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username, "password": "hunter2",
	}, &reg)
	require.Equal(t, http.StatusOK, rec.Code)

	var login map[string]any
	rec = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username, "password": "hunter2",
	}, &login)
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := login["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (h *testHarness) createSession(t *testing.T, token string) string {
	t.Helper()
	var out map[string]any
	rec := h.do(t, http.MethodPost, "/sessions", token, map[string]string{}, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	id, _ := out["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestRegisterLoginMe(t *testing.T) {
	h := newHarness(t, nil)
	token := h.registerAndLogin(t, "alice")

	var me map[string]any
	rec := h.do(t, http.MethodGet, "/auth/me", token, nil, &me)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", me["username"])
}

func TestRegisterLoginMe_NoTokenUnauthorized(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/auth/me", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSimpleJournalingLoopReturnsAssistantText(t *testing.T) {
	stub := newStubLLM(t, stubResponse{content: "Thanks for sharing, how did that feel?"})
	h := newHarness(t, stub.client())
	token := h.registerAndLogin(t, "alice")
	sessionID := h.createSession(t, token)

	var out map[string]any
	rec := h.do(t, http.MethodPost, "/agent/chat/"+sessionID, token, map[string]string{
		"text": "Today I went for a run and felt great.",
	}, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Thanks for sharing, how did that feel?", out["text"])
	require.Equal(t, sessionID, out["session_id"])
}

func TestStructureThenSaveJournalViaToolCalls(t *testing.T) {
	stub := newStubLLM(t,
		// Round 1: the agent decides to structure the raw text.
		stubResponse{toolCallName: "structure_journal", toolCallArgs: `{"text":"ran 5k and read a book"}`},
		// The structurer's own LLM call, made inside the tool handler.
		stubResponse{content: `{"Things Done": "ran 5k", "Goals": "read more books"}`},
		// Round 2: the agent decides to save the draft.
		stubResponse{toolCallName: "save_journal", toolCallArgs: `{"confirm": true}`},
		// Round 3: final reply after both tool calls.
		stubResponse{content: "Saved your entry!"},
	)
	h := newHarness(t, stub.client())
	token := h.registerAndLogin(t, "alice")
	sessionID := h.createSession(t, token)

	var out map[string]any
	rec := h.do(t, http.MethodPost, "/agent/chat/"+sessionID, token, map[string]string{
		"text": "ran 5k and read a book",
	}, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Saved your entry!", out["text"])

	toolCalls, ok := out["tool_calls"].([]any)
	require.True(t, ok)
	require.Len(t, toolCalls, 2)

	var entries map[string]any
	rec = h.do(t, http.MethodGet, "/journal-entries", token, nil, &entries)
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := entries["entries"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
}

func TestSaveJournalWithoutConfirmIsRejected(t *testing.T) {
	stub := newStubLLM(t,
		stubResponse{toolCallName: "structure_journal", toolCallArgs: `{"text":"ran 5k"}`},
		stubResponse{content: `{"Things Done": "ran 5k"}`},
		// The agent tries to save without confirming.
		stubResponse{toolCallName: "save_journal", toolCallArgs: `{}`},
		stubResponse{content: "Want me to go ahead and save it?"},
	)
	h := newHarness(t, stub.client())
	token := h.registerAndLogin(t, "alice")
	sessionID := h.createSession(t, token)

	var out map[string]any
	rec := h.do(t, http.MethodPost, "/agent/chat/"+sessionID, token, map[string]string{
		"text": "ran 5k",
	}, &out)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries map[string]any
	rec = h.do(t, http.MethodGet, "/journal-entries", token, nil, &entries)
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := entries["entries"].([]any)
	require.True(t, ok)
	require.Empty(t, list)
}

func TestCreateTaskWithPriorityAndDueDate(t *testing.T) {
	h := newHarness(t, nil)
	token := h.registerAndLogin(t, "alice")

	var t1, t2 map[string]any
	rec := h.do(t, http.MethodPost, "/tasks", token, map[string]any{"title": "a"}, &t1)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), t1["priority"])

	due := "2026-12-31T00:00:00Z"
	rec = h.do(t, http.MethodPost, "/tasks", token, map[string]any{
		"title": "b", "priority": 1, "due_date": due,
	}, &t2)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), t2["priority"])
	require.Equal(t, due, t2["due_date"])

	var list map[string]any
	rec = h.do(t, http.MethodGet, "/tasks", token, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks, ok := list["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, tasks, 2)
	first := tasks[0].(map[string]any)
	require.Equal(t, t2["id"], first["id"])
	second := tasks[1].(map[string]any)
	require.Equal(t, t1["id"], second["id"])
	require.Equal(t, float64(2), second["priority"])
}

func TestTaskReorderInvariantViaHTTP(t *testing.T) {
	h := newHarness(t, nil)
	token := h.registerAndLogin(t, "alice")

	var t1, t2, t3 map[string]any
	rec := h.do(t, http.MethodPost, "/tasks", token, map[string]string{"title": "a"}, &t1)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/tasks", token, map[string]string{"title": "b"}, &t2)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/tasks", token, map[string]string{"title": "c"}, &t3)
	require.Equal(t, http.StatusOK, rec.Code)

	// A reorder that only covers 2 of the 3 incomplete tasks must be rejected.
	rec = h.do(t, http.MethodPost, "/tasks/reorder", token, map[string]any{
		"task_orders": []map[string]any{
			{"task_id": t1["id"], "new_priority": 1},
			{"task_id": t2["id"], "new_priority": 2},
		},
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	// A full bijection reversal must succeed.
	rec = h.do(t, http.MethodPost, "/tasks/reorder", token, map[string]any{
		"task_orders": []map[string]any{
			{"task_id": t1["id"], "new_priority": 3},
			{"task_id": t2["id"], "new_priority": 2},
			{"task_id": t3["id"], "new_priority": 1},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list map[string]any
	rec = h.do(t, http.MethodGet, "/tasks", token, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks, ok := list["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, tasks, 3)
	first := tasks[0].(map[string]any)
	require.Equal(t, t3["id"], first["id"])
}

func TestLLMOutageMapsToServiceUnavailable(t *testing.T) {
	stub := newStubLLM(t,
		stubResponse{status: http.StatusInternalServerError},
		stubResponse{status: http.StatusInternalServerError},
		stubResponse{status: http.StatusInternalServerError},
	)
	h := newHarness(t, stub.client())
	token := h.registerAndLogin(t, "alice")
	sessionID := h.createSession(t, token)

	var out map[string]any
	rec := h.do(t, http.MethodPost, "/agent/chat/"+sessionID, token, map[string]string{
		"text": "hello",
	}, &out)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	errBody, ok := out["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "upstream_unavailable", errBody["code"])
}

func TestCrossUserSessionIsolationReturnsNotFound(t *testing.T) {
	h := newHarness(t, nil)
	aliceToken := h.registerAndLogin(t, "alice")
	bobToken := h.registerAndLogin(t, "bob")

	sessionID := h.createSession(t, aliceToken)

	rec := h.do(t, http.MethodPost, "/agent/chat/"+sessionID, bobToken, map[string]string{
		"text": "can I see alice's session?",
	}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var sessions map[string]any
	rec = h.do(t, http.MethodGet, "/sessions", bobToken, nil, &sessions)
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := sessions["sessions"].([]any)
	require.True(t, ok)
	require.Empty(t, list)
}

func TestTemplateRoundTripPersistsAsActive(t *testing.T) {
	h := newHarness(t, nil)
	token := h.registerAndLogin(t, "alice")

	var set map[string]any
	rec := h.do(t, http.MethodPost, "/user/template", token, map[string]any{
		"name": "trading",
		"sections": []map[string]any{
			{"name": "Trades", "description": "entries and exits"},
		},
	}, &set)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "trading", set["name"])
	require.Equal(t, true, set["is_active"])

	var got map[string]any
	rec = h.do(t, http.MethodGet, "/user/template", token, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "trading", got["name"])
	require.Equal(t, true, got["is_active"])
}
