package model

import "time"

// User is an account in the system.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"` // optional
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates a new active, unverified user.
func NewUser(id, username, email, passwordHash string) *User {
	now := time.Now()
	return &User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Deactivate soft-deletes the user by clearing IsActive. No hard delete is
// required by the data model.
func (u *User) Deactivate() {
	u.IsActive = false
	u.UpdatedAt = time.Now()
}

// AuthSession is a server-side record backing an issued bearer token. Tokens
// are never stored verbatim, only a one-way digest (TokenHash).
type AuthSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	UserAgent string    `json:"user_agent,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsValid reports whether the session is usable right now: unexpired and
// unrevoked.
func (s *AuthSession) IsValid(now time.Time) bool {
	return now.Before(s.ExpiresAt) && !s.Revoked
}

// NewAuthSession creates a new, valid auth session record.
func NewAuthSession(id, userID, tokenHash string, expiresAt time.Time, userAgent, ip string) *AuthSession {
	now := time.Now()
	return &AuthSession{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		Revoked:   false,
		UserAgent: userAgent,
		IP:        ip,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FeedbackStyle is the user's preferred tone for assistant responses.
type FeedbackStyle string

const (
	FeedbackStyleBalanced  FeedbackStyle = "balanced"
	FeedbackStyleGentle    FeedbackStyle = "gentle"
	FeedbackStyleDirect    FeedbackStyle = "direct"
	FeedbackStyleEncourage FeedbackStyle = "encouraging"
)

// UserPreferences holds the per-user context the agent uses to personalize
// its prompts. Exactly one row exists per user; it is created lazily on
// first read with the defaults below.
type UserPreferences struct {
	UserID            string            `json:"user_id"`
	PurposeStatement  string            `json:"purpose_statement,omitempty"`
	LongTermGoals     []string          `json:"long_term_goals"`
	KnownChallenges   []string          `json:"known_challenges"`
	PreferredFeedback FeedbackStyle     `json:"preferred_feedback"`
	PersonalGlossary  map[string]string `json:"glossary"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// DefaultUserPreferences returns the documented zero-value defaults for a
// user who has never set preferences.
func DefaultUserPreferences(userID string) *UserPreferences {
	now := time.Now()
	return &UserPreferences{
		UserID:            userID,
		PurposeStatement:  "",
		LongTermGoals:     []string{},
		KnownChallenges:   []string{},
		PreferredFeedback: FeedbackStyleBalanced,
		PersonalGlossary:  map[string]string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// PreferencesPatch is a partial update accepted by POST /user/preferences and
// the update_preferences tool. List fields replace; Glossary merges.
type PreferencesPatch struct {
	PurposeStatement  *string
	LongTermGoals     []string
	KnownChallenges   []string
	PreferredFeedback *FeedbackStyle
	Glossary          map[string]string
}

// Apply shallow-merges patch into p: list fields replace, the glossary map
// merges key by key.
func (p *UserPreferences) Apply(patch PreferencesPatch) {
	if patch.PurposeStatement != nil {
		p.PurposeStatement = *patch.PurposeStatement
	}
	if patch.LongTermGoals != nil {
		p.LongTermGoals = patch.LongTermGoals
	}
	if patch.KnownChallenges != nil {
		p.KnownChallenges = patch.KnownChallenges
	}
	if patch.PreferredFeedback != nil {
		p.PreferredFeedback = *patch.PreferredFeedback
	}
	if len(patch.Glossary) > 0 {
		if p.PersonalGlossary == nil {
			p.PersonalGlossary = map[string]string{}
		}
		for k, v := range patch.Glossary {
			p.PersonalGlossary[k] = v
		}
	}
	p.UpdatedAt = time.Now()
}
