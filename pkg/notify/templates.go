package notify

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// TemplateStore holds named HTML templates for notification bodies. It ships
// with embedded defaults for every notification type plus a generic fallback;
// applications can register or replace templates at startup.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewTemplateStore creates a store preloaded with the embedded defaults.
func NewTemplateStore() (*TemplateStore, error) {
	ts := &TemplateStore{
		templates: make(map[string]*template.Template),
	}

	entries, err := fs.ReadDir(defaultTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		data, err := fs.ReadFile(defaultTemplates, path.Join("templates", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded template %q: %w", entry.Name(), err)
		}
		tmpl, err := template.New(name).Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedded template %q: %w", entry.Name(), err)
		}
		ts.templates[name] = tmpl
	}

	return ts, nil
}

// MustNewTemplateStore is like NewTemplateStore but panics on error. The
// embedded defaults are compiled in, so failure here is a programming error.
func MustNewTemplateStore() *TemplateStore {
	ts, err := NewTemplateStore()
	if err != nil {
		panic(err)
	}
	return ts
}

// Register parses and stores a template under the given name, replacing any
// existing template with that name.
func (ts *TemplateStore) Register(name, text string) error {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template %q: %w", name, err)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.templates[name] = tmpl
	return nil
}

// Has reports whether a template with the given name exists.
func (ts *TemplateStore) Has(name string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	_, ok := ts.templates[name]
	return ok
}

// Render executes the named template with the given data.
func (ts *TemplateStore) Render(name string, data any) (string, error) {
	ts.mu.RLock()
	tmpl, ok := ts.templates[name]
	ts.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", name, err)
	}
	return sb.String(), nil
}
