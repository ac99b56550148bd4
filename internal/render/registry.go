// Package render turns notification payloads into display text. It owns
// the renderer template registry and the grouping pipeline used by the
// notification pane.
package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Registry maps renderer keys to compiled templates. It is immutable once
// built.
type Registry struct {
	templates map[string]*template.Template
}

// NewRegistry returns a registry holding the given templates.
func NewRegistry(templates map[string]*template.Template) *Registry {
	copied := make(map[string]*template.Template, len(templates))
	for k, t := range templates {
		copied[k] = t
	}
	return &Registry{templates: copied}
}

// Compile parses a renderer template body.
func Compile(key, body string) (*template.Template, error) {
	tmpl, err := template.New(key).
		Funcs(funcMap).
		Option("missingkey=zero").
		Parse(body)
	if err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", key, err)
	}
	return tmpl, nil
}

// MustCompileRegistry builds a registry from raw bodies and panics on a
// parse error. Intended for tests and built-in templates.
func MustCompileRegistry(bodies map[string]string) *Registry {
	templates := make(map[string]*template.Template, len(bodies))
	for k, b := range bodies {
		t, err := Compile(k, b)
		if err != nil {
			panic(err)
		}
		templates[k] = t
	}
	return NewRegistry(templates)
}

// Len returns the number of installed renderers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.templates)
}

// Keys returns the installed renderer keys in sorted order.
func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.templates))
	for k := range r.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether a renderer is installed for key.
func (r *Registry) Has(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.templates[key]
	return ok
}

// Render executes the renderer for key against data.
func (r *Registry) Render(key string, data map[string]any) (string, error) {
	if r == nil {
		return "", fmt.Errorf("no renderer for %q", key)
	}
	tmpl, ok := r.templates[key]
	if !ok {
		return "", fmt.Errorf("no renderer for %q", key)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %q: %w", key, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

var funcMap = template.FuncMap{
	"default": func(def, v any) any {
		if v == nil {
			return def
		}
		if s, ok := v.(string); ok && s == "" {
			return def
		}
		return v
	},
	"truncate": func(n int, s string) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		if n <= 1 {
			return string(r[:n])
		}
		return string(r[:n-1]) + "…"
	},
	"upper": strings.ToUpper,
}
