package document

import (
	"fmt"
	"sort"
)

const (
	ProductBanner    = "banner"
	ProductYardSign  = "yard-sign"
	ProductSticker   = "sticker"
	ProductNameBadge = "name-badge"
)

// Preset is the canvas a product is designed on. The page limit is per
// product: double-sided banners and signs allow a back page, stickers and
// badges are single sided.
type Preset struct {
	ProductType string  `json:"productType"`
	Title       string  `json:"title"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	MaxPages    int     `json:"maxPages"`
}

var presets = map[string]Preset{
	ProductBanner:    {ProductType: ProductBanner, Title: "Vinyl Banner", Width: 72, Height: 36, MaxPages: 2},
	ProductYardSign:  {ProductType: ProductYardSign, Title: "Yard Sign", Width: 24, Height: 18, MaxPages: 2},
	ProductSticker:   {ProductType: ProductSticker, Title: "Sticker", Width: 4, Height: 4, MaxPages: 1},
	ProductNameBadge: {ProductType: ProductNameBadge, Title: "Name Badge", Width: 3, Height: 1, MaxPages: 1},
}

func LookupPreset(productType string) (Preset, bool) {
	p, ok := presets[productType]
	return p, ok
}

// Presets lists every product preset ordered by product type.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductType < out[j].ProductType
	})
	return out
}

// Options returns the document options for the preset.
func (p Preset) Options() []Option {
	return []Option{
		WithCanvasSize(p.Width, p.Height),
		WithMaxPages(p.MaxPages),
		WithProductType(p.ProductType),
	}
}

// NewFromPreset creates a blank document sized for a product.
func NewFromPreset(productType string) (*Document, error) {
	p, ok := LookupPreset(productType)
	if !ok {
		return nil, fmt.Errorf("unknown product type %q", productType)
	}
	return New(p.Width, p.Height, p.Options()...), nil
}
