// Package prompts embeds the per-stage prompt templates and renders
// them with simple {{variable}} substitution.
package prompts

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed *.md
var promptFS embed.FS

// Template names, one per reasoning stage.
const (
	Expectation    = "expectation"
	Comparison     = "comparison"
	Interpretation = "interpretation"
	Exploration    = "exploration"
)

// Loader holds the embedded templates.
type Loader struct {
	templates map[string]string
}

// NewLoader parses every embedded template.
func NewLoader() (*Loader, error) {
	l := &Loader{templates: map[string]string{}}

	entries, err := promptFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read prompt templates: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := promptFS.ReadFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", entry.Name(), err)
		}
		l.templates[strings.TrimSuffix(entry.Name(), ".md")] = string(content)
	}
	return l, nil
}

// Render substitutes {{key}} placeholders. Unknown placeholders stay
// verbatim so a malformed call is visible in the prompt rather than
// silently empty.
func (l *Loader) Render(name string, vars map[string]string) (string, error) {
	tmpl, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt template %q not found", name)
	}
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{{"+k+"}}", v)
	}
	return tmpl, nil
}
