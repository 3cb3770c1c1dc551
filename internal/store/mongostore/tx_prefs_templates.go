package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ghiac/journal/internal/model"
)

type preferencesDoc struct {
	UserID            string            `bson:"_id"`
	PurposeStatement  string            `bson:"purpose_statement"`
	LongTermGoals     []string          `bson:"long_term_goals"`
	KnownChallenges   []string          `bson:"known_challenges"`
	PreferredFeedback string            `bson:"preferred_feedback"`
	PersonalGlossary  map[string]string `bson:"glossary"`
	CreatedAt         int64             `bson:"created_at"`
	UpdatedAt         int64             `bson:"updated_at"`
}

func preferencesToDoc(p *model.UserPreferences) preferencesDoc {
	return preferencesDoc{
		UserID: p.UserID, PurposeStatement: p.PurposeStatement,
		LongTermGoals: p.LongTermGoals, KnownChallenges: p.KnownChallenges,
		PreferredFeedback: string(p.PreferredFeedback), PersonalGlossary: p.PersonalGlossary,
		CreatedAt: p.CreatedAt.Unix(), UpdatedAt: p.UpdatedAt.Unix(),
	}
}

func (d preferencesDoc) toModel() *model.UserPreferences {
	goals := d.LongTermGoals
	if goals == nil {
		goals = []string{}
	}
	challenges := d.KnownChallenges
	if challenges == nil {
		challenges = []string{}
	}
	glossary := d.PersonalGlossary
	if glossary == nil {
		glossary = map[string]string{}
	}
	return &model.UserPreferences{
		UserID: d.UserID, PurposeStatement: d.PurposeStatement,
		LongTermGoals: goals, KnownChallenges: challenges,
		PreferredFeedback: model.FeedbackStyle(d.PreferredFeedback), PersonalGlossary: glossary,
		CreatedAt: unixTime(d.CreatedAt), UpdatedAt: unixTime(d.UpdatedAt),
	}
}

// GetPreferences returns the user's preferences, creating them lazily with
// the documented defaults on first read (mirrors sqlitestore's behavior).
func (t *mongoTx) GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error) {
	var doc preferencesDoc
	err := t.s.col("preferences").FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if isNoDocuments(err) {
		defaults := model.DefaultUserPreferences(userID)
		if err := t.UpsertPreferences(ctx, defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (t *mongoTx) UpsertPreferences(ctx context.Context, p *model.UserPreferences) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	p.UpdatedAt = now()
	_, err := t.s.col("preferences").ReplaceOne(ctx, bson.M{"_id": p.UserID}, preferencesToDoc(p), upsertOpts())
	return err
}

type templateDoc struct {
	ID           string                           `bson:"_id"`
	UserID       string                           `bson:"user_id"`
	Name         string                           `bson:"name"`
	SectionOrder []string                         `bson:"section_order"`
	Sections     map[string]model.TemplateSection `bson:"sections"`
	IsActive     bool                             `bson:"is_active"`
}

func templateDocID(userID, name string) string { return userID + ":" + name }

func templateToDoc(tpl *model.UserTemplate) templateDoc {
	return templateDoc{
		ID: templateDocID(tpl.UserID, tpl.Name), UserID: tpl.UserID, Name: tpl.Name,
		SectionOrder: tpl.SectionOrder, Sections: tpl.Sections, IsActive: tpl.IsActive,
	}
}

func (d templateDoc) toModel() *model.UserTemplate {
	return &model.UserTemplate{
		UserID: d.UserID, Name: d.Name, SectionOrder: d.SectionOrder,
		Sections: d.Sections, IsActive: d.IsActive,
	}
}

func (t *mongoTx) GetActiveTemplate(ctx context.Context, userID string) (*model.UserTemplate, error) {
	var doc templateDoc
	err := t.s.col("templates").FindOne(ctx, bson.M{"user_id": userID, "is_active": true}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, nil // no active template: caller falls back to the process default
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// UpsertTemplate writes tpl and, if tpl.IsActive, deactivates any other
// template owned by the same user first, mirroring sqlitestore's approach
// to keeping at most one active template per user since the partial
// unique index alone can't express "deactivate siblings on activate".
func (t *mongoTx) UpsertTemplate(ctx context.Context, tpl *model.UserTemplate) error {
	if tpl.IsActive {
		_, err := t.s.col("templates").UpdateMany(ctx,
			bson.M{"user_id": tpl.UserID, "name": bson.M{"$ne": tpl.Name}},
			bson.M{"$set": bson.M{"is_active": false}})
		if err != nil {
			return err
		}
	}
	_, err := t.s.col("templates").ReplaceOne(ctx, bson.M{"_id": templateDocID(tpl.UserID, tpl.Name)}, templateToDoc(tpl), upsertOpts())
	return err
}
