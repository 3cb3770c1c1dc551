// Package draft implements the journaling core's DraftEngine: loading a
// session's working draft, merging structured patches into it, and
// finalizing it into an immutable journal entry.
package draft

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ghiac/journal/internal/model"
)

// Engine applies merge-patch semantics to a JournalDraft and finalizes it.
// It holds no state of its own; all persistence goes through store.Tx,
// called by the owner (AgentRuntime or the HTTP layer) under the session's
// advisory lock.
type Engine struct{}

// New creates a DraftEngine.
func New() *Engine {
	return &Engine{}
}

// MergeWarning records a non-fatal oddity encountered while merging a patch,
// surfaced back to the caller; the structure_journal tool lists them in its
// result metadata.
type MergeWarning struct {
	Section string
	Message string
}

// MergePatch merges patch into draft.DraftData in place, section by section,
// following these rules:
//   - unknown section (not in tmpl): accepted verbatim, with a warning.
//   - string + string: concatenated with a newline separator.
//   - list + list: appended, no de-duplication.
//   - map + map: shallow-merged, patch keys win on conflict.
//   - any other type combination: the existing value is coerced into a
//     single-element list and the new value appended.
func (e *Engine) MergePatch(draft *model.JournalDraft, tmpl *model.UserTemplate, patch map[string]model.SectionValue) []MergeWarning {
	var warnings []MergeWarning
	if draft.DraftData == nil {
		draft.DraftData = map[string]model.SectionValue{}
	}

	for rawKey, newValue := range patch {
		key := rawKey
		if tmpl != nil {
			if resolved, ok := tmpl.ResolveAlias(rawKey); ok {
				key = resolved
			} else {
				warnings = append(warnings, MergeWarning{
					Section: rawKey,
					Message: fmt.Sprintf("section %q is not declared in the active template; stored verbatim", rawKey),
				})
			}
		}

		existing, has := draft.DraftData[key]
		if !has {
			draft.DraftData[key] = newValue
			continue
		}
		draft.DraftData[key] = mergeValue(existing, newValue)
	}

	draft.UpdatedAt = time.Now()
	return warnings
}

func mergeValue(existing, incoming model.SectionValue) model.SectionValue {
	switch ev := existing.(type) {
	case string:
		if iv, ok := incoming.(string); ok {
			if ev == "" {
				return iv
			}
			if iv == "" {
				return ev
			}
			return ev + "\n" + iv
		}
	case []any:
		if iv, ok := incoming.([]any); ok {
			return append(append([]any{}, ev...), iv...)
		}
	case map[string]any:
		if iv, ok := incoming.(map[string]any); ok {
			merged := make(map[string]any, len(ev)+len(iv))
			for k, v := range ev {
				merged[k] = v
			}
			for k, v := range iv {
				merged[k] = v
			}
			return merged
		}
	}
	// Type mismatch between existing and incoming: coerce to a list so no
	// content is silently dropped.
	return append(toList(existing), toList(incoming)...)
}

func toList(v model.SectionValue) []any {
	if list, ok := v.([]any); ok {
		return append([]any{}, list...)
	}
	return []any{v}
}

// Finalize atomically snapshots draft into a new JournalEntry, marks the
// draft finalized and clears its data, and returns the entry. tmpl (if
// non-nil) supplies section declaration order for title derivation; the
// caller is responsible for persisting both the entry and the cleared draft
// inside a single store.Tx.
func (e *Engine) Finalize(draft *model.JournalDraft, tmpl *model.UserTemplate, id string) *model.JournalEntry {
	title := titleFromDraft(draft, tmpl)
	entry := model.NewJournalEntry(id, draft.UserID, draft.SessionID, title, draft.DraftData, "", draft.Metadata)

	draft.IsFinalized = true
	draft.DraftData = map[string]model.SectionValue{}
	draft.UpdatedAt = time.Now()

	return entry
}

// titleFromDraft derives an entry title from the first 50 characters of the
// first non-empty string-valued section in template order (falling back to
// sorted key order when tmpl is nil or a key isn't declared in it), or a
// dated placeholder if the draft has no string content at all.
func titleFromDraft(draft *model.JournalDraft, tmpl *model.UserTemplate) string {
	keys := sortedKeys(draft.DraftData)
	if tmpl != nil {
		ordered := make([]string, 0, len(keys))
		seen := map[string]bool{}
		for _, name := range tmpl.SectionOrder {
			if _, ok := draft.DraftData[name]; ok {
				ordered = append(ordered, name)
				seen[name] = true
			}
		}
		for _, k := range keys {
			if !seen[k] {
				ordered = append(ordered, k)
			}
		}
		keys = ordered
	}

	for _, key := range keys {
		s, ok := draft.DraftData[key].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(strings.Join(strings.Fields(s), " "))
		if s == "" {
			continue
		}
		if runes := []rune(s); len(runes) > 50 {
			s = string(runes[:50])
		}
		return s
	}
	return fmt.Sprintf("Journal Entry — %s", time.Now().Format("2006-01-02"))
}

func sortedKeys(m map[string]model.SectionValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
