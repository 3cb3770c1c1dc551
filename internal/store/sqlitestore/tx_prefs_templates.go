package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ghiac/journal/internal/model"
)

func (t *sqliteTx) GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT user_id, purpose_statement, long_term_goals, known_challenges, preferred_feedback, glossary, created_at, updated_at
		FROM preferences WHERE user_id = ?`, userID)

	var p model.UserPreferences
	var goals, challenges, glossary string
	var feedback string
	var createdAt, updatedAt int64
	err := row.Scan(&p.UserID, &p.PurposeStatement, &goals, &challenges, &feedback, &glossary, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Created lazily on first read with defaults.
		defaults := model.DefaultUserPreferences(userID)
		if err := t.UpsertPreferences(ctx, defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	p.PreferredFeedback = model.FeedbackStyle(feedback)
	p.LongTermGoals = []string{}
	p.KnownChallenges = []string{}
	p.PersonalGlossary = map[string]string{}
	if err := unmarshalJSON(goals, &p.LongTermGoals); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(challenges, &p.KnownChallenges); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(glossary, &p.PersonalGlossary); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

func (t *sqliteTx) UpsertPreferences(ctx context.Context, p *model.UserPreferences) error {
	goals, err := marshalJSON(p.LongTermGoals)
	if err != nil {
		return err
	}
	challenges, err := marshalJSON(p.KnownChallenges)
	if err != nil {
		return err
	}
	glossary, err := marshalJSON(p.PersonalGlossary)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = time.Now()

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO preferences (user_id, purpose_statement, long_term_goals, known_challenges, preferred_feedback, glossary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			purpose_statement = excluded.purpose_statement,
			long_term_goals = excluded.long_term_goals,
			known_challenges = excluded.known_challenges,
			preferred_feedback = excluded.preferred_feedback,
			glossary = excluded.glossary,
			updated_at = excluded.updated_at`,
		p.UserID, p.PurposeStatement, goals, challenges, string(p.PreferredFeedback), glossary,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	return err
}

func (t *sqliteTx) GetActiveTemplate(ctx context.Context, userID string) (*model.UserTemplate, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT name, section_order, sections FROM templates
		WHERE user_id = ? AND is_active = 1`, userID)

	var name, orderJSON, sectionsJSON string
	err := row.Scan(&name, &orderJSON, &sectionsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // no active template: caller falls back to the process default
	}
	if err != nil {
		return nil, err
	}
	var order []string
	sections := map[string]model.TemplateSection{}
	if err := unmarshalJSON(orderJSON, &order); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(sectionsJSON, &sections); err != nil {
		return nil, err
	}
	return &model.UserTemplate{
		UserID:       userID,
		Name:         name,
		SectionOrder: order,
		Sections:     sections,
		IsActive:     true,
	}, nil
}

// UpsertTemplate writes t and, if t.IsActive, deactivates any other template
// for the same user first so at most one template per user is ever active,
// even across a rename.
func (t *sqliteTx) UpsertTemplate(ctx context.Context, tpl *model.UserTemplate) error {
	if tpl.IsActive {
		if _, err := t.tx.ExecContext(ctx, `UPDATE templates SET is_active = 0 WHERE user_id = ? AND name != ?`, tpl.UserID, tpl.Name); err != nil {
			return err
		}
	}
	order, err := marshalJSON(tpl.SectionOrder)
	if err != nil {
		return err
	}
	sections, err := marshalJSON(tpl.Sections)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO templates (user_id, name, section_order, sections, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET
			section_order = excluded.section_order,
			sections = excluded.sections,
			is_active = excluded.is_active`,
		tpl.UserID, tpl.Name, order, sections, boolToInt(tpl.IsActive))
	return err
}
