package templates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"design-studio/document"
)

func TestBuiltinTemplates(t *testing.T) {
	l, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	all := l.List("")
	if len(all) < 5 {
		t.Fatalf("List() returned %d templates, want the built-ins", len(all))
	}
	for _, s := range all {
		if _, ok := document.LookupPreset(s.ProductType); !ok {
			t.Errorf("template %s has unknown product type %q", s.Name, s.ProductType)
		}
		if s.Elements == 0 {
			t.Errorf("template %s is empty", s.Name)
		}
	}

	banners := l.List(document.ProductBanner)
	for _, s := range banners {
		if s.ProductType != document.ProductBanner {
			t.Errorf("List(banner) returned %s", s.ProductType)
		}
	}
	if len(banners) == 0 || len(banners) == len(all) {
		t.Errorf("product filter returned %d of %d", len(banners), len(all))
	}
}

func TestTemplateElements(t *testing.T) {
	l, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	els, err := l.Template(context.Background(), "grand-opening")
	if err != nil {
		t.Fatalf("Template() failed: %v", err)
	}
	var text *document.Element
	for i := range els {
		if els[i].Type == document.TypeText {
			text = &els[i]
			break
		}
	}
	if text == nil {
		t.Fatal("no text element in grand-opening")
	}
	if text.Text != "GRAND OPENING" || text.FontSize != 5 || !text.Visible || text.Opacity != 1 {
		t.Errorf("text element = %+v", *text)
	}

	els[0].Fill = "#000000"
	again, _ := l.Template(context.Background(), "grand-opening")
	if again[0].Fill == "#000000" {
		t.Error("Template() returned shared elements")
	}

	if _, err := l.Template(context.Background(), "nope"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Template(nope) = %v, want ErrTemplateNotFound", err)
	}
}

func TestDirectoryOverrides(t *testing.T) {
	dir := t.TempDir()
	override := []byte(`name: for-sale
title: Sold
productType: yard-sign
elements:
  - type: text
    text: SOLD
    x: 1
    y: 1
    width: 10
    height: 4
    fontSize: 3
`)
	if err := os.WriteFile(filepath.Join(dir, "sold.yml"), override, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	tpl, ok := l.Get("for-sale")
	if !ok || tpl.Title != "Sold" || len(tpl.Elements) != 1 {
		t.Errorf("override not applied: %+v", tpl)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "name: [",
		"zero width":     "name: x\nelements:\n  - type: shape\n    width: 0\n    height: 1\n",
		"unknown type":   "name: x\nelements:\n  - type: video\n    width: 1\n    height: 1\n",
		"bad field type": "name: x\nelements:\n  - type: text\n    width: wide\n    height: 1\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(src)); err == nil {
				t.Error("Parse() succeeded")
			}
		})
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Load() with missing directory succeeded")
	}
}
