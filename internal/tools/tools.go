// Package tools implements the journaling core's ToolCatalogue: the set of
// functions the agent may call mid-conversation, each declared with a JSON
// Schema argument spec and backed by a typed Go handler.
package tools

import (
	"context"
	"fmt"

	"github.com/ghiac/journal/internal/draft"
	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
	"github.com/ghiac/journal/internal/structurer"
	"github.com/ghiac/journal/internal/template"
)

// Definition describes a callable tool the LLM can be offered, in the
// provider-agnostic shape the agent converts into openai.Tool values.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// Call identifies the conversation a tool invocation happens in.
type Call struct {
	UserID    string
	SessionID string
}

// Result is what a tool handler hands back to AgentRuntime.
type Result struct {
	Content          string
	UpdatedDraftData map[string]model.SectionValue
	Metadata         map[string]any
}

// Handler executes one tool call against the shared dependencies. tx is the
// turn's transaction: handlers write through it and never commit or roll it
// back themselves. The caller wraps each dispatch in a savepoint so a
// failing tool discards only its own writes.
type Handler func(ctx context.Context, deps *Deps, tx store.Tx, call Call, args map[string]any) (Result, error)

// Deps are the dependencies every tool handler may need. They are supplied
// once at wiring time and shared by all calls.
type Deps struct {
	Templates  *template.Provider
	Drafts     *draft.Engine
	Structurer *structurer.Structurer
	Locks      *store.LockTable
}

type registeredTool struct {
	def     Definition
	handler Handler
}

// Catalogue holds every registered tool and answers conversation-scoped
// queries for which of them should be offered to the model.
type Catalogue struct {
	tools map[string]registeredTool
	order []string
}

// NewCatalogue creates an empty catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{tools: make(map[string]registeredTool)}
}

// Register adds a tool definition and its handler. Registering the same
// name twice panics: tool wiring happens once at startup and a duplicate
// indicates a programming error, not a runtime condition.
func (c *Catalogue) Register(def Definition, handler Handler) {
	if _, exists := c.tools[def.Name]; exists {
		panic(fmt.Sprintf("tools: tool already registered: %s", def.Name))
	}
	c.tools[def.Name] = registeredTool{def: def, handler: handler}
	c.order = append(c.order, def.Name)
}

// Get returns the handler registered for name.
func (c *Catalogue) Get(name string) (Handler, bool) {
	rt, ok := c.tools[name]
	if !ok {
		return nil, false
	}
	return rt.handler, true
}

// journalingOnlyTools are withheld from conversation types other than
// "journaling": a task-focused conversation has no active draft to act on.
var journalingOnlyTools = map[string]bool{
	"structure_journal": true,
	"save_journal":      true,
}

// For returns the tool definitions offered to the model for the given
// conversation type.
func (c *Catalogue) For(conversationType string) []Definition {
	defs := make([]Definition, 0, len(c.order))
	for _, name := range c.order {
		if conversationType != model.DefaultConversationType && journalingOnlyTools[name] {
			continue
		}
		defs = append(defs, c.tools[name].def)
	}
	return defs
}
