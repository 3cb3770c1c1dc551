package model

import "time"

// SectionValue is the dynamic value type stored per section in a draft:
// a string, a list<string>, or a map<string, string>.
type SectionValue = any

// JournalDraft is the mutable working payload for a session, section-keyed.
// Exactly one draft exists per session (enforced by the store's unique
// constraint on SessionID); it is created lazily the first time the agent
// writes to it.
type JournalDraft struct {
	ID          string                  `json:"id"`
	SessionID   string                  `json:"session_id"`
	UserID      string                  `json:"user_id"`
	DraftData   map[string]SectionValue `json:"draft_data"`
	Metadata    map[string]any          `json:"metadata,omitempty"`
	IsFinalized bool                    `json:"is_finalized"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// NewJournalDraft creates a new, empty, non-finalized draft for a session.
func NewJournalDraft(id, sessionID, userID string) *JournalDraft {
	now := time.Now()
	return &JournalDraft{
		ID:          id,
		SessionID:   sessionID,
		UserID:      userID,
		DraftData:   map[string]SectionValue{},
		Metadata:    map[string]any{},
		IsFinalized: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsEmpty reports whether the draft has no section content yet.
func (d *JournalDraft) IsEmpty() bool {
	return len(d.DraftData) == 0
}

// JournalEntry is a finalized, immutable journal record derived from a
// draft.
type JournalEntry struct {
	ID             string                  `json:"id"`
	UserID         string                  `json:"user_id"`
	SessionID      string                  `json:"session_id,omitempty"` // optional: "" if not tied to a session
	Title          string                  `json:"title"`
	StructuredData map[string]SectionValue `json:"structured_data"`
	RawText        string                  `json:"raw_text,omitempty"`
	Metadata       map[string]any          `json:"metadata,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}

// NewJournalEntry creates a new finalized journal entry.
func NewJournalEntry(id, userID, sessionID, title string, structuredData map[string]SectionValue, rawText string, metadata map[string]any) *JournalEntry {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &JournalEntry{
		ID:             id,
		UserID:         userID,
		SessionID:      sessionID,
		Title:          title,
		StructuredData: structuredData,
		RawText:        rawText,
		Metadata:       metadata,
		CreatedAt:      time.Now(),
	}
}
