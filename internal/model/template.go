package model

// TemplateSection defines one named bucket a template routes content into.
// Aliases are alternate titles the structuring LLM may emit for the same
// section.
type TemplateSection struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// UserTemplate is a named, ordered catalogue of sections. A user has at most
// one active template; SectionOrder preserves declaration order since Go
// maps are unordered.
type UserTemplate struct {
	UserID       string
	Name         string
	SectionOrder []string
	Sections     map[string]TemplateSection
	IsActive     bool
}

// NewUserTemplate builds a template from an ordered slice of sections,
// preserving their declaration order.
func NewUserTemplate(userID, name string, sections []TemplateSection, isActive bool) *UserTemplate {
	order := make([]string, 0, len(sections))
	byName := make(map[string]TemplateSection, len(sections))
	for _, s := range sections {
		order = append(order, s.Name)
		byName[s.Name] = s
	}
	return &UserTemplate{
		UserID:       userID,
		Name:         name,
		SectionOrder: order,
		Sections:     byName,
		IsActive:     isActive,
	}
}

// OrderedSections returns the template's sections in declaration order.
func (t *UserTemplate) OrderedSections() []TemplateSection {
	out := make([]TemplateSection, 0, len(t.SectionOrder))
	for _, name := range t.SectionOrder {
		out = append(out, t.Sections[name])
	}
	return out
}

// ResolveAlias rewrites key to its canonical section name if key matches a
// declared alias. Matching is case-sensitive. Returns key unchanged (and
// ok=false) if no section or alias matches.
func (t *UserTemplate) ResolveAlias(key string) (string, bool) {
	if _, ok := t.Sections[key]; ok {
		return key, true
	}
	for _, s := range t.Sections {
		for _, alias := range s.Aliases {
			if alias == key {
				return s.Name, true
			}
		}
	}
	return key, false
}

// HasSection reports whether name is a known section or alias.
func (t *UserTemplate) HasSection(name string) bool {
	_, ok := t.ResolveAlias(name)
	return ok
}
