// Package template implements the journaling core's TemplateProvider: a
// process-wide default section catalogue, loaded once at startup and
// consulted read-mostly by every session, plus a per-user override resolved
// from the store.
package template

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

const defaultTemplateName = "default"

//go:embed default_template.yaml
var embeddedDefaultYAML []byte

// templateFile is the on-disk shape of a template fixture: an ordered list
// of sections under a single top-level key.
type templateFile struct {
	Sections []yamlSection `yaml:"sections"`
}

type yamlSection struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Aliases     []string `yaml:"aliases"`
}

func parseTemplateYAML(data []byte) ([]model.TemplateSection, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("template: parse yaml: %w", err)
	}
	out := make([]model.TemplateSection, 0, len(f.Sections))
	for _, s := range f.Sections {
		out = append(out, model.TemplateSection{Name: s.Name, Description: s.Description, Aliases: s.Aliases})
	}
	return out, nil
}

// Provider resolves the active template for a user, falling back to the
// process-wide default when the user has none. The default is held in
// memory and reloaded under a lock so Reload can't race a concurrent read.
type Provider struct {
	mu      sync.RWMutex
	path    string // optional on-disk override consulted by Reload; "" means embedded only
	builtin *model.UserTemplate
}

// New constructs a Provider seeded with the built-in default sections,
// parsed from the embedded default_template.yaml. If path is non-empty it
// names an operator-supplied YAML file of the same shape that Reload will
// re-read instead of the embedded default.
func New(path string) (*Provider, error) {
	p := &Provider{path: path}
	sections, err := p.load()
	if err != nil {
		return nil, err
	}
	p.builtin = model.NewUserTemplate("", defaultTemplateName, sections, true)
	return p, nil
}

func (p *Provider) load() ([]model.TemplateSection, error) {
	if p.path == "" {
		return parseTemplateYAML(embeddedDefaultYAML)
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("template: read %s: %w", p.path, err)
	}
	return parseTemplateYAML(data)
}

// Default returns the process-wide default template.
func (p *Provider) Default() *model.UserTemplate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.builtin
}

// Reload re-parses the default template from its source of truth (the
// operator-supplied path if one was configured, otherwise the embedded
// fixture) and swaps it in atomically.
func (p *Provider) Reload() error {
	sections, err := p.load()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.builtin = model.NewUserTemplate("", defaultTemplateName, sections, true)
	return nil
}

// ForUser returns the caller's active template: their own override if one
// exists and is active, otherwise the process default. tx must belong to an
// already-open transaction scoped to userID.
func (p *Provider) ForUser(ctx context.Context, tx store.Tx, userID string) (*model.UserTemplate, error) {
	tpl, err := tx.GetActiveTemplate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tpl != nil {
		return tpl, nil
	}
	return p.Default(), nil
}

// SetUserTemplate persists t as the user's active template, deactivating any
// previous one (store.Tx.UpsertTemplate already enforces the at-most-one-
// active invariant).
func (p *Provider) SetUserTemplate(ctx context.Context, tx store.Tx, t *model.UserTemplate) error {
	t.IsActive = true
	return tx.UpsertTemplate(ctx, t)
}
