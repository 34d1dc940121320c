// Package templates serves the named starter compositions offered in the
// editor. Built-in templates are embedded; a directory of YAML files can add
// to or replace them.
package templates

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"design-studio/document"
)

//go:embed builtin/*.yaml
var builtin embed.FS

var ErrTemplateNotFound = errors.New("template not found")

type Template struct {
	Name        string             `json:"name"`
	Title       string             `json:"title"`
	ProductType string             `json:"productType"`
	Elements    []document.Element `json:"elements"`
}

// Summary is what the template picker lists.
type Summary struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	ProductType string `json:"productType"`
	Elements    int    `json:"elements"`
}

// file is the YAML layout. Elements are decoded through their JSON form so
// field names and defaults match stored designs.
type file struct {
	Name        string           `yaml:"name"`
	Title       string           `yaml:"title"`
	ProductType string           `yaml:"productType"`
	Elements    []map[string]any `yaml:"elements"`
}

type Library struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// Load reads the built-in templates, then every *.yaml or *.yml file in dir
// when dir is not empty. A template in dir replaces a built-in of the same
// name.
func Load(dir string) (*Library, error) {
	l := &Library{templates: make(map[string]Template)}
	if err := l.loadFS(builtin, "builtin"); err != nil {
		return nil, fmt.Errorf("load built-in templates: %w", err)
	}
	if dir != "" {
		if err := l.loadFS(os.DirFS(dir), "."); err != nil {
			return nil, fmt.Errorf("load templates from %s: %w", dir, err)
		}
	}
	logrus.WithField("count", len(l.templates)).Info("Templates loaded")
	return l, nil
}

func (l *Library) loadFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return err
		}
		t, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}
		l.Add(t)
	}
	return nil
}

// Parse decodes one YAML template and validates its elements.
func Parse(data []byte) (Template, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Template{}, err
	}
	raw, err := json.Marshal(f.Elements)
	if err != nil {
		return Template{}, err
	}
	var els []document.Element
	if err := json.Unmarshal(raw, &els); err != nil {
		return Template{}, err
	}
	for i := range els {
		if els[i].ID == "" {
			els[i].ID = fmt.Sprintf("%s-%d", f.Name, i+1)
		}
		if err := els[i].Validate(); err != nil {
			return Template{}, fmt.Errorf("element %d: %w", i+1, err)
		}
	}
	return Template{Name: f.Name, Title: f.Title, ProductType: f.ProductType, Elements: els}, nil
}

func (l *Library) Add(t Template) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[t.Name] = t
}

func (l *Library) Get(name string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[name]
	if !ok {
		return Template{}, false
	}
	t.Elements = append([]document.Element(nil), t.Elements...)
	return t, true
}

// Template returns a copy of the named template's elements.
func (l *Library) Template(ctx context.Context, name string) ([]document.Element, error) {
	t, ok := l.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t.Elements, nil
}

// List returns summaries sorted by name. A non-empty productType filters.
func (l *Library) List(productType string) []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Summary, 0, len(l.templates))
	for _, t := range l.templates {
		if productType != "" && t.ProductType != productType {
			continue
		}
		out = append(out, Summary{Name: t.Name, Title: t.Title, ProductType: t.ProductType, Elements: len(t.Elements)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
