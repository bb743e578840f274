package feed

import (
	"fmt"
	"io"
	"log/slog"
	"text/template"
	"time"
)

// TemplateGenerator handles template-based feed generation
type TemplateGenerator struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

// TemplateData represents the data structure passed to feed templates
type TemplateData struct {
	Channel   Channel
	SelfURL   string
	Generator string
	Updated   time.Time
	Items     []TemplateItem
}

// TemplateItem represents a feed item for template rendering
type TemplateItem struct {
	Item
	GUID    string
	Creator string
}

// NewTemplateGenerator creates a new template-based feed generator
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{
		templates: make(map[string]*template.Template),
		funcMap:   TemplateFuncs(),
	}
}

// LoadTemplate loads <name>.tmpl from the override filesystem, falling back to the embedded copy
func (tg *TemplateGenerator) LoadTemplate(name string) error {
	filename := name + ".tmpl"

	content, source, err := layers.read(filename)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", filename, err)
	}

	return tg.ParseTemplate(name, source, string(content))
}

// ParseTemplate parses template text and registers it under name
func (tg *TemplateGenerator) ParseTemplate(name, source, text string) error {
	tmpl, err := template.New(name).Funcs(tg.funcMap).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	tg.templates[name] = tmpl
	slog.Debug("Template loaded", "name", name, "source", source)
	return nil
}

// GenerateFromTemplate generates a feed using the specified template
func (tg *TemplateGenerator) GenerateFromTemplate(templateName string, data *TemplateData, writer io.Writer) error {
	tmpl, exists := tg.templates[templateName]
	if !exists {
		return fmt.Errorf("template %s not found", templateName)
	}

	if err := tmpl.Execute(writer, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	return nil
}
