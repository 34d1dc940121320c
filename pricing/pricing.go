// Package pricing quotes unit prices from a table of per-material area
// rates with quantity discounts.
package pricing

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"design-studio/editor"
	"design-studio/units"
)

//go:embed rates.yaml
var defaultRates []byte

var (
	ErrUnknownProduct  = errors.New("unknown product type")
	ErrUnknownMaterial = errors.New("material not offered for product")
	ErrInvalidRequest  = errors.New("invalid price request")
)

type Material struct {
	PerSqFt float64 `yaml:"perSqFt" json:"perSqFt"`
	// Minimum is the lowest unit price charged regardless of area.
	Minimum float64 `yaml:"minimum" json:"minimum"`
}

type Product struct {
	DefaultMaterial string   `yaml:"defaultMaterial" json:"defaultMaterial"`
	Materials       []string `yaml:"materials" json:"materials"`
}

type Tier struct {
	MinQuantity int     `yaml:"minQuantity" json:"minQuantity"`
	Discount    float64 `yaml:"discount" json:"discount"`
}

// Table is a complete rate card.
type Table struct {
	Materials map[string]Material `yaml:"materials" json:"materials"`
	Products  map[string]Product  `yaml:"products" json:"products"`
	Tiers     []Tier              `yaml:"tiers" json:"tiers"`
}

var _ editor.Pricer = (*Table)(nil)

// Parse reads a YAML rate card and checks that every product's materials
// exist.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse rate card: %w", err)
	}
	for name, p := range t.Products {
		if !slices.Contains(p.Materials, p.DefaultMaterial) {
			return nil, fmt.Errorf("product %s: default material %q is not offered", name, p.DefaultMaterial)
		}
		for _, m := range p.Materials {
			if _, ok := t.Materials[m]; !ok {
				return nil, fmt.Errorf("product %s: unknown material %q", name, m)
			}
		}
	}
	for _, tier := range t.Tiers {
		if tier.Discount < 0 || tier.Discount >= 1 {
			return nil, fmt.Errorf("tier at %d: discount %v out of range", tier.MinQuantity, tier.Discount)
		}
	}
	sort.Slice(t.Tiers, func(i, j int) bool { return t.Tiers[i].MinQuantity < t.Tiers[j].MinQuantity })
	return &t, nil
}

// Default returns the built-in rate card.
func Default() *Table {
	t, err := Parse(defaultRates)
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads the rate card at path, or the built-in one when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(data)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"path":      path,
		"materials": len(t.Materials),
		"products":  len(t.Products),
	}).Info("Rate card loaded")
	return t, nil
}

func (t *Table) discount(quantity int) float64 {
	d := 0.0
	for _, tier := range t.Tiers {
		if quantity >= tier.MinQuantity {
			d = tier.Discount
		}
	}
	return d
}

// Price returns the unit price, rounded to cents. An empty material means
// the product's default.
func (t *Table) Price(ctx context.Context, req editor.PriceRequest) (float64, error) {
	if req.Quantity < 1 || req.Width <= 0 || req.Height <= 0 {
		return 0, fmt.Errorf("%w: %.2fx%.2f in, quantity %d", ErrInvalidRequest, req.Width, req.Height, req.Quantity)
	}
	product, ok := t.Products[req.ProductType]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProduct, req.ProductType)
	}
	name := req.Material
	if name == "" {
		name = product.DefaultMaterial
	}
	if !slices.Contains(product.Materials, name) {
		return 0, fmt.Errorf("%w: %q for %s", ErrUnknownMaterial, name, req.ProductType)
	}
	m := t.Materials[name]

	unit := math.Max(units.AreaSqFt(req.Width, req.Height)*m.PerSqFt, m.Minimum)
	unit *= 1 - t.discount(req.Quantity)
	return math.Round(unit*100) / 100, nil
}
