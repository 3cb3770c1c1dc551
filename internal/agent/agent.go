// Package agent implements the journaling core's AgentRuntime: the per-turn
// procedure that loads a session's context, calls the LLM, runs any tool
// calls it requests, and persists the resulting transcript.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/draft"
	"github.com/ghiac/journal/internal/journallog"
	"github.com/ghiac/journal/internal/llmclient"
	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
	"github.com/ghiac/journal/internal/structurer"
	"github.com/ghiac/journal/internal/template"
	"github.com/ghiac/journal/internal/tools"
)

// maxToolCallRounds bounds how many LLM round-trips a single turn may spend
// dispatching tool calls before the runtime forces a final answer. Without a
// cap, a model that keeps requesting tools could keep a request open
// indefinitely.
const maxToolCallRounds = 8

// Runtime is the journaling core's AgentRuntime.
type Runtime struct {
	store      store.Store
	locks      *store.LockTable
	templates  *template.Provider
	drafts     *draft.Engine
	structurer *structurer.Structurer
	llm        *llmclient.Client
	catalogue  *tools.Catalogue
}

// Deps bundles the constructor arguments for Runtime.
type Deps struct {
	Store      store.Store
	Locks      *store.LockTable
	Templates  *template.Provider
	Drafts     *draft.Engine
	Structurer *structurer.Structurer
	LLM        *llmclient.Client
	Catalogue  *tools.Catalogue
}

// New builds an AgentRuntime.
func New(d Deps) *Runtime {
	return &Runtime{
		store:      d.Store,
		locks:      d.Locks,
		templates:  d.Templates,
		drafts:     d.Drafts,
		structurer: d.Structurer,
		llm:        d.LLM,
		catalogue:  d.Catalogue,
	}
}

// ToolCallOutcome records one tool invocation made during a turn, included
// in the turn's result and in the persisted assistant message's metadata.
type ToolCallOutcome struct {
	Name    string `json:"name"`
	Args    string `json:"args"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

// TurnResult is what a completed turn hands back to the HTTP layer.
type TurnResult struct {
	Text             string
	SessionID        string
	UpdatedDraftData map[string]model.SectionValue
	ToolCalls        []ToolCallOutcome
	Overflow         bool
}

// RunTurn executes one user turn in sessionID: load context, call the LLM,
// dispatch any tool calls it requests (up to maxToolCallRounds), and persist
// the user message, every tool effect, and the assistant's reply under one
// transaction committed only when the turn concludes. An LLM failure at any
// round rolls the whole turn back, so the store never carries an orphaned
// user message or a partial turn's tool effects. Each tool dispatch runs
// inside a savepoint: a failing tool discards only its own writes and the
// turn continues.
// The whole turn is serialized per-session by the session's advisory lock:
// two concurrent turns on the same session run strictly one after the other.
func (r *Runtime) RunTurn(ctx context.Context, userID, sessionID, userText string) (*TurnResult, error) {
	r.locks.Lock(store.SessionKey(sessionID))
	defer r.locks.Unlock(store.SessionKey(sessionID))

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer tx.Rollback()

	session, err := tx.GetSessionForUser(ctx, userID, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apierr.NotFound("session not found")
		}
		return nil, apierr.Internal(err)
	}

	prefs, err := tx.GetPreferences(ctx, userID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	tmpl, err := r.templates.ForUser(ctx, tx, userID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	draftState, err := tx.GetOrCreateDraft(ctx, sessionID, userID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	history, err := tx.GetMessagesOrdered(ctx, sessionID)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	messages := buildMessages(prefs, tmpl, draftState, history, userText)
	toolDefs := r.catalogue.For(session.ConversationType)
	openaiTools := toOpenAITools(toolDefs)

	reply, err := r.llm.ChatCompletion(ctx, messages, openaiTools)
	if err != nil {
		return nil, err
	}

	userMsg := model.NewChatMessage(uuid.NewString(), sessionID, model.RoleUser, userText, nil)
	if err := tx.AppendMessage(ctx, userMsg); err != nil {
		return nil, apierr.Internal(err)
	}

	var outcomes []ToolCallOutcome
	overflow := false
	var finalText string

	for round := 0; ; round++ {
		if round >= maxToolCallRounds {
			overflow = true
			journallog.Log.Warnf("agent: session %s hit tool-call round budget (%d)", sessionID, maxToolCallRounds)
			break
		}

		if round > 0 {
			reply, err = r.llm.ChatCompletion(ctx, messages, openaiTools)
			if err != nil {
				return nil, err
			}
		}

		if len(reply.ToolCalls) == 0 {
			finalText = reply.Content
			break
		}

		messages = append(messages, reply)
		for i, call := range reply.ToolCalls {
			savepoint := fmt.Sprintf("tool_%d_%d", round, i)
			if err := tx.Savepoint(ctx, savepoint); err != nil {
				return nil, apierr.Internal(err)
			}
			result, callErr := r.dispatchTool(ctx, tx, userID, sessionID, call)
			outcome := ToolCallOutcome{Name: call.Function.Name, Args: call.Function.Arguments}
			var toolContent string
			if callErr != nil {
				if err := tx.RollbackTo(ctx, savepoint); err != nil {
					return nil, apierr.Internal(err)
				}
				outcome.IsError = true
				if apiErr, ok := apierr.As(callErr); ok {
					toolContent = apiErr.SafeMessage()
				} else {
					toolContent = "tool execution failed"
				}
			} else {
				if err := tx.Release(ctx, savepoint); err != nil {
					return nil, apierr.Internal(err)
				}
				toolContent = result.Content
				if result.UpdatedDraftData != nil {
					draftState.DraftData = result.UpdatedDraftData
				}
			}
			outcome.Result = toolContent
			outcomes = append(outcomes, outcome)

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    toolContent,
				ToolCallID: call.ID,
			})
		}
	}

	if overflow && finalText == "" {
		finalText = "I've made several tool calls this turn and want to check in before continuing — what would you like to do next?"
	}

	metadata := map[string]any{}
	if len(outcomes) > 0 {
		metadata["tool_calls"] = outcomes
	}
	if overflow {
		metadata["overflow"] = true
	}

	assistantMsg := model.NewChatMessage(uuid.NewString(), sessionID, model.RoleAssistant, finalText, metadata)
	if err := tx.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, apierr.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apierr.Internal(err)
	}

	return &TurnResult{
		Text:             finalText,
		SessionID:        sessionID,
		UpdatedDraftData: draftState.DraftData,
		ToolCalls:        outcomes,
		Overflow:         overflow,
	}, nil
}

func (r *Runtime) dispatchTool(ctx context.Context, tx store.Tx, userID, sessionID string, call openai.ToolCall) (tools.Result, error) {
	handler, ok := r.catalogue.Get(call.Function.Name)
	if !ok {
		return tools.Result{}, apierr.Validation(fmt.Sprintf("unknown tool: %s", call.Function.Name))
	}

	var args map[string]any
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return tools.Result{}, apierr.Validation(fmt.Sprintf("malformed arguments for tool %s", call.Function.Name))
		}
	}

	deps := &tools.Deps{
		Templates:  r.templates,
		Drafts:     r.drafts,
		Structurer: r.structurer,
		Locks:      r.locks,
	}
	return handler(ctx, deps, tx, tools.Call{UserID: userID, SessionID: sessionID}, args)
}

func buildMessages(prefs *model.UserPreferences, tmpl *model.UserTemplate, d *model.JournalDraft, history []*model.ChatMessage, userText string) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(prefs, tmpl, d)},
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case model.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case model.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userText})
	return messages
}

func systemPrompt(prefs *model.UserPreferences, tmpl *model.UserTemplate, d *model.JournalDraft) string {
	prompt := "You are a journaling assistant. Help the user reflect and, when they share raw journal text, " +
		"use the structure_journal tool to file it and save_journal to finalize it when they're done.\n"
	if prefs.PurposeStatement != "" {
		prompt += "User's purpose: " + prefs.PurposeStatement + "\n"
	}
	prompt += "Preferred feedback style: " + string(prefs.PreferredFeedback) + "\n"
	if tmpl != nil {
		prompt += fmt.Sprintf("Active template %q has %d sections.\n", tmpl.Name, len(tmpl.SectionOrder))
		if empty := emptySections(tmpl, d); len(empty) > 0 {
			prompt += "These sections are still empty in the draft; steer the conversation to cover them: " +
				strings.Join(empty, ", ") + ".\n"
		}
	}
	if d != nil && !d.IsEmpty() {
		prompt += fmt.Sprintf("The current draft already has %d section(s) filled in.\n", len(d.DraftData))
	}
	return prompt
}

// emptySections lists the template's sections the draft has not yet touched,
// letting the system prompt nudge the model toward fuller coverage.
func emptySections(tmpl *model.UserTemplate, d *model.JournalDraft) []string {
	var out []string
	for _, s := range tmpl.OrderedSections() {
		if d == nil {
			out = append(out, s.Name)
			continue
		}
		if _, ok := d.DraftData[s.Name]; !ok {
			out = append(out, s.Name)
		}
	}
	return out
}

func toOpenAITools(defs []tools.Definition) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}
