package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ghiac/journal/internal/agent"
	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/config"
	"github.com/ghiac/journal/internal/draft"
	"github.com/ghiac/journal/internal/llmclient"
	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
	"github.com/ghiac/journal/internal/store/sqlitestore"
	"github.com/ghiac/journal/internal/structurer"
	"github.com/ghiac/journal/internal/template"
	"github.com/ghiac/journal/internal/tools"
)

// outageLLM answers every chat completions request with a 500, the way
// httpapi_test.go's stubLLM emulates an upstream outage.
func outageLLM(t *testing.T) *llmclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"stubbed failure"}}`))
	}))
	t.Cleanup(srv.Close)
	return llmclient.New(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini", Timeout: 5 * time.Second})
}

func newTestRuntime(t *testing.T, llm *llmclient.Client) (*agent.Runtime, store.Store, string, string) {
	t.Helper()
	s, err := sqlitestore.New("", false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	u := model.NewUser(uuid.NewString(), "alice", "", "hash")
	require.NoError(t, tx.CreateUser(ctx, u))
	sess := model.NewChatSession(uuid.NewString(), u.ID, "", nil)
	require.NoError(t, tx.CreateChatSession(ctx, sess))
	require.NoError(t, tx.Commit())

	templates, err := template.New("")
	require.NoError(t, err)

	catalogue := tools.NewCatalogue()
	tools.RegisterDefaults(catalogue)

	r := agent.New(agent.Deps{
		Store:      s,
		Locks:      store.NewLockTable(),
		Templates:  templates,
		Drafts:     draft.New(),
		Structurer: structurer.New(llm),
		LLM:        llm,
		Catalogue:  catalogue,
	})
	return r, s, u.ID, sess.ID
}

func messageCount(t *testing.T, s store.Store, sessionID string) int {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	msgs, err := tx.GetMessagesOrdered(ctx, sessionID)
	require.NoError(t, err)
	return len(msgs)
}

// TestRunTurnLeavesNoTraceOnTransportFailure exercises the turn-atomicity
// invariant: an LLM transport failure must not persist the user's message
// (or any assistant reply) for that turn.
func TestRunTurnLeavesNoTraceOnTransportFailure(t *testing.T) {
	r, s, userID, sessionID := newTestRuntime(t, outageLLM(t))

	require.Equal(t, 0, messageCount(t, s, sessionID))

	_, err := r.RunTurn(context.Background(), userID, sessionID, "anything")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.CodeUpstreamUnavailable, apiErr.Code())

	require.Equal(t, 0, messageCount(t, s, sessionID))
}

func echoLLM(t *testing.T, reply string) *llmclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"id":      "chatcmpl-stub",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return llmclient.New(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini", Timeout: 5 * time.Second})
}

// TestRunTurnPersistsBothMessagesOnSuccess is the success-path counterpart:
// a completed turn stores exactly the user message and the assistant reply.
func TestRunTurnPersistsBothMessagesOnSuccess(t *testing.T) {
	r, s, userID, sessionID := newTestRuntime(t, echoLLM(t, "noted"))

	result, err := r.RunTurn(context.Background(), userID, sessionID, "hello")
	require.NoError(t, err)
	require.Equal(t, "noted", result.Text)
	require.Equal(t, 2, messageCount(t, s, sessionID))
}

// scriptedLLM answers each call with the next canned response, then plain
// 500s once the script runs out.
func scriptedLLM(t *testing.T, responses ...map[string]any) *llmclient.Client {
	t.Helper()
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		idx := calls
		calls++
		mu.Unlock()

		if idx >= len(responses) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"scripted outage"}}`))
			return
		}
		body := map[string]any{
			"id":      "chatcmpl-stub",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "message": responses[idx], "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return llmclient.New(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini", Timeout: 5 * time.Second})
}

// TestRunTurnRollsBackToolEffectsOnMidTurnFailure drives a turn whose first
// round structures text into the draft and whose second round fails at the
// LLM boundary: the whole turn must roll back, leaving no messages and no
// persisted draft content behind.
func TestRunTurnRollsBackToolEffectsOnMidTurnFailure(t *testing.T) {
	llm := scriptedLLM(t,
		// Round 0: the model requests a structure_journal call.
		map[string]any{"role": "assistant", "content": "", "tool_calls": []map[string]any{{
			"id":   "call_1",
			"type": "function",
			"function": map[string]any{
				"name":      "structure_journal",
				"arguments": `{"text":"ran 5k today"}`,
			},
		}}},
		// The structurer's own LLM call, made inside the tool handler.
		map[string]any{"role": "assistant", "content": `{"Things Done": "ran 5k today"}`},
		// Round 1 then hits the scripted outage.
	)
	r, s, userID, sessionID := newTestRuntime(t, llm)

	_, err := r.RunTurn(context.Background(), userID, sessionID, "ran 5k today")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.CodeUpstreamUnavailable, apiErr.Code())

	require.Equal(t, 0, messageCount(t, s, sessionID))

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	d, err := tx.GetOrCreateDraft(ctx, sessionID, userID)
	require.NoError(t, err)
	require.True(t, d.IsEmpty())
}
