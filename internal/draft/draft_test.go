package draft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ghiac/journal/internal/model"
)

func testTemplate() *model.UserTemplate {
	return model.NewUserTemplate("u1", "default", []model.TemplateSection{
		{Name: "Things Done", Aliases: []string{"accomplishments"}},
		{Name: "General Reflection"},
		{Name: "Goals"},
	}, true)
}

func TestMergePatchStringConcatenation(t *testing.T) {
	e := New()
	d := model.NewJournalDraft("d1", "s1", "u1")
	tmpl := testTemplate()

	warnings := e.MergePatch(d, tmpl, map[string]model.SectionValue{"General Reflection": "Had a good morning."})
	require.Empty(t, warnings)

	warnings = e.MergePatch(d, tmpl, map[string]model.SectionValue{"General Reflection": "Then a tough afternoon."})
	require.Empty(t, warnings)

	require.Equal(t, "Had a good morning.\nThen a tough afternoon.", d.DraftData["General Reflection"])
}

func TestMergePatchListAppendsWithoutDedup(t *testing.T) {
	e := New()
	d := model.NewJournalDraft("d1", "s1", "u1")
	tmpl := testTemplate()

	e.MergePatch(d, tmpl, map[string]model.SectionValue{"Goals": []any{"run 5k"}})
	e.MergePatch(d, tmpl, map[string]model.SectionValue{"Goals": []any{"run 5k", "read a book"}})

	got := d.DraftData["Goals"].([]any)
	require.Equal(t, []any{"run 5k", "run 5k", "read a book"}, got)
}

func TestMergePatchMapMergeIncomingWins(t *testing.T) {
	e := New()
	d := model.NewJournalDraft("d1", "s1", "u1")
	tmpl := testTemplate()

	e.MergePatch(d, tmpl, map[string]model.SectionValue{"Goals": map[string]any{"a": "1", "b": "2"}})
	e.MergePatch(d, tmpl, map[string]model.SectionValue{"Goals": map[string]any{"b": "3", "c": "4"}})

	got := d.DraftData["Goals"].(map[string]any)
	require.Equal(t, map[string]any{"a": "1", "b": "3", "c": "4"}, got)
}

func TestMergePatchTypeMismatchCoercesToList(t *testing.T) {
	e := New()
	d := model.NewJournalDraft("d1", "s1", "u1")
	tmpl := testTemplate()

	e.MergePatch(d, tmpl, map[string]model.SectionValue{"Goals": "run a marathon"})
	e.MergePatch(d, tmpl, map[string]model.SectionValue{"Goals": []any{"read more"}})

	got := d.DraftData["Goals"].([]any)
	require.Equal(t, []any{"run a marathon", "read more"}, got)
}

func TestMergePatchResolvesAliasAndWarnsOnUnknownSection(t *testing.T) {
	e := New()
	d := model.NewJournalDraft("d1", "s1", "u1")
	tmpl := testTemplate()

	warnings := e.MergePatch(d, tmpl, map[string]model.SectionValue{"accomplishments": "shipped the feature"})
	require.Empty(t, warnings)
	require.Equal(t, "shipped the feature", d.DraftData["Things Done"])

	warnings = e.MergePatch(d, tmpl, map[string]model.SectionValue{"Random Section": "stray note"})
	require.Len(t, warnings, 1)
	require.Equal(t, "Random Section", warnings[0].Section)
	require.Equal(t, "stray note", d.DraftData["Random Section"])
}

func TestFinalizeTitleFollowsTemplateOrder(t *testing.T) {
	e := New()
	d := model.NewJournalDraft("d1", "s1", "u1")
	tmpl := testTemplate()

	// "Goals" is declared last in tmpl, "Things Done" first; only Goals has
	// string content, so the title should still derive from it since it's
	// the only string-valued section.
	d.DraftData["Goals"] = "Finish the report"
	entry := e.Finalize(d, tmpl, "entry1")
	require.Equal(t, "Finish the report", entry.Title)

	// When multiple string sections have content, the one declared earliest
	// in the template wins regardless of map iteration order.
	d2 := model.NewJournalDraft("d2", "s2", "u1")
	d2.DraftData["Goals"] = "ignored, declared later"
	d2.DraftData["Things Done"] = "Shipped the release"
	entry2 := e.Finalize(d2, tmpl, "entry2")
	require.Equal(t, "Shipped the release", entry2.Title)
}

func TestFinalizeFallsBackToPlaceholderWithNoStringContent(t *testing.T) {
	e := New()
	d := model.NewJournalDraft("d1", "s1", "u1")
	tmpl := testTemplate()
	d.DraftData["Goals"] = []any{"only a list, no strings"}

	entry := e.Finalize(d, tmpl, "entry1")
	require.Contains(t, entry.Title, "Journal Entry — ")
}

func TestFinalizeClearsDraftAndMarksFinalized(t *testing.T) {
	e := New()
	d := model.NewJournalDraft("d1", "s1", "u1")
	tmpl := testTemplate()
	d.DraftData["Goals"] = "Write every day"

	entry := e.Finalize(d, tmpl, "entry1")
	require.Equal(t, "Write every day", entry.StructuredData["Goals"])
	require.True(t, d.IsFinalized)
	require.Empty(t, d.DraftData)
}
