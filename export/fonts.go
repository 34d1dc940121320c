package export

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type fontKey struct {
	mono, bold, italic bool
}

var fontData = map[fontKey][]byte{
	{false, false, false}: goregular.TTF,
	{false, true, false}:  gobold.TTF,
	{false, false, true}:  goitalic.TTF,
	{false, true, true}:   gobolditalic.TTF,
	{true, false, false}:  gomono.TTF,
	{true, true, false}:   gomonobold.TTF,
	{true, false, true}:   gomonoitalic.TTF,
	{true, true, true}:    gomonobolditalic.TTF,
}

var (
	fontsMu sync.Mutex
	fonts   = map[fontKey]*opentype.Font{}
)

func isBold(weight string) bool {
	w := strings.ToLower(strings.TrimSpace(weight))
	if w == "bold" || w == "bolder" {
		return true
	}
	n, err := strconv.Atoi(w)
	return err == nil && n >= 600
}

func isItalic(style string) bool {
	s := strings.ToLower(style)
	return s == "italic" || s == "oblique"
}

func isMono(family string) bool {
	f := strings.ToLower(family)
	return strings.Contains(f, "mono") || strings.Contains(f, "courier") || strings.Contains(f, "consolas")
}

func fontKeyFor(family, weight, style string) fontKey {
	return fontKey{mono: isMono(family), bold: isBold(weight), italic: isItalic(style)}
}

func loadFont(k fontKey) (*opentype.Font, error) {
	fontsMu.Lock()
	defer fontsMu.Unlock()
	if f, ok := fonts[k]; ok {
		return f, nil
	}
	f, err := opentype.Parse(fontData[k])
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	fonts[k] = f
	return f, nil
}

// newFace returns a face whose em is px pixels tall.
func newFace(family, weight, style string, px float64) (font.Face, error) {
	f, err := loadFont(fontKeyFor(family, weight, style))
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    px,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// svgFontFamily is the family list written to SVG, ending in the generic
// family of the face the raster renderer used.
func svgFontFamily(family string) string {
	generic := "sans-serif"
	if isMono(family) {
		generic = "monospace"
	}
	if family == "" {
		return generic
	}
	return family + ", " + generic
}
