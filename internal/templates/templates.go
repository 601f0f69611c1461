// Package templates holds the embedded interview definitions and their loader.
//
// Interview templates are data, not code: each YAML file declares the ordered
// FieldSpec list for one record type. Templates are parsed and validated once
// at startup; a malformed template is a boot failure, never a runtime one.
package templates

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var templateFiles embed.FS

// Registry holds the loaded interview templates keyed by type.
type Registry struct {
	templates map[models.TemplateType]*models.InterviewTemplate
}

// Load parses and validates every embedded template.
func Load() (*Registry, error) {
	entries, err := templateFiles.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	reg := &Registry{templates: make(map[models.TemplateType]*models.InterviewTemplate)}
	for _, entry := range entries {
		data, err := templateFiles.ReadFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}
		tmpl, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", entry.Name(), err)
		}
		if _, exists := reg.templates[tmpl.Type]; exists {
			return nil, fmt.Errorf("template %s: duplicate template type %q", entry.Name(), tmpl.Type)
		}
		reg.templates[tmpl.Type] = tmpl
		slog.Debug("templates.Load: template loaded", "type", tmpl.Type, "fields", len(tmpl.Fields))
	}

	slog.Info("templates.Load: templates loaded", "count", len(reg.templates))
	return reg, nil
}

// Parse unmarshals and validates one template document.
func Parse(data []byte) (*models.InterviewTemplate, error) {
	var tmpl models.InterviewTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	return &tmpl, nil
}

// Get returns the template for the given type.
func (r *Registry) Get(t models.TemplateType) (*models.InterviewTemplate, error) {
	tmpl, ok := r.templates[t]
	if !ok {
		return nil, fmt.Errorf("no template registered for type %q", t)
	}
	return tmpl, nil
}

// Types returns the registered template types.
func (r *Registry) Types() []models.TemplateType {
	types := make([]models.TemplateType, 0, len(r.templates))
	for t := range r.templates {
		types = append(types, t)
	}
	return types
}
