// Package structurer implements the journaling core's Structurer: turning a
// block of raw free-text journaling into a section-keyed patch using the
// active template's catalogue as classification context.
package structurer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/llmclient"
	"github.com/ghiac/journal/internal/model"
)

// Structurer classifies raw text into the sections of a UserTemplate.
type Structurer struct {
	llm *llmclient.Client
}

// New builds a Structurer over the given LLM client.
func New(llm *llmclient.Client) *Structurer {
	return &Structurer{llm: llm}
}

// Structure asks the LLM to split rawText into the sections declared by
// tmpl, returning a patch ready for draft.Engine.MergePatch. Section keys in
// the model's response are resolved against aliases before being returned;
// keys that resolve to nothing known are passed through verbatim (merge
// treats them as new sections with a warning). A malformed or non-JSON
// response yields apierr.StructuringFailed, never a 5xx.
func (s *Structurer) Structure(ctx context.Context, tmpl *model.UserTemplate, rawText string) (map[string]model.SectionValue, error) {
	if strings.TrimSpace(rawText) == "" {
		return map[string]model.SectionValue{}, nil
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(tmpl)},
		{Role: openai.ChatMessageRoleUser, Content: rawText},
	}

	reply, err := s.llm.ChatCompletion(ctx, messages, nil)
	if err != nil {
		return nil, err
	}

	raw, ok := extractJSON(reply.Content)
	if !ok {
		return nil, apierr.StructuringFailed(fmt.Errorf("structurer: no JSON object in model response"))
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apierr.StructuringFailed(err)
	}

	patch := make(map[string]model.SectionValue, len(parsed))
	for key, value := range parsed {
		resolved := key
		if tmpl != nil {
			if name, ok := tmpl.ResolveAlias(key); ok {
				resolved = name
			}
		}
		patch[resolved] = value
	}
	return patch, nil
}

func systemPrompt(tmpl *model.UserTemplate) string {
	var b strings.Builder
	b.WriteString("You convert raw journal text into a JSON object whose keys are section names.\n")
	b.WriteString("Use exactly these section names when the text matches them:\n")
	if tmpl != nil {
		for _, sec := range tmpl.OrderedSections() {
			fmt.Fprintf(&b, "- %s: %s", sec.Name, sec.Description)
			if len(sec.Aliases) > 0 {
				fmt.Fprintf(&b, " (aliases: %s)", strings.Join(sec.Aliases, ", "))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("If content does not fit any declared section, invent a short section name for it.\n")
	b.WriteString("Respond with only the JSON object, no surrounding prose.")
	return b.String()
}

// extractJSON returns the span of s from its first '{' to its last '}',
// tolerating a model that wraps its answer in prose or a markdown code fence.
// Braces are not matched, so a reply holding two separate objects yields a
// span that does not parse.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
