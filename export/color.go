package export

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// placeholderColor fills the box of an asset that could not be loaded.
var placeholderColor = color.NRGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}

const placeholderHex = "#d0d0d0"

// parseColor understands #rgb, #rrggbb, #rrggbbaa, rgb(), rgba(), CSS color
// names, and "none"/"transparent".
func parseColor(s string) (color.NRGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return color.NRGBA{}, false
	case "none", "transparent":
		return color.NRGBA{}, true
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	if strings.HasPrefix(s, "rgb") {
		return parseFunc(s)
	}
	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, true
	}
	return color.NRGBA{}, false
}

func parseHex(h string) (color.NRGBA, bool) {
	if len(h) == 3 || len(h) == 4 {
		var b strings.Builder
		for _, r := range h {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		h = b.String()
	}
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

func parseFunc(s string) (color.NRGBA, bool) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return color.NRGBA{}, false
	}
	parts := strings.Split(s[open+1:end], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		p := strings.TrimSpace(parts[i])
		var v float64
		var err error
		if strings.HasSuffix(p, "%") {
			v, err = strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
			v = v * 255 / 100
		} else {
			v, err = strconv.ParseFloat(p, 64)
		}
		if err != nil {
			return color.NRGBA{}, false
		}
		ch[i] = clampByte(v)
	}
	a := uint8(0xff)
	if len(parts) == 4 {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return color.NRGBA{}, false
		}
		a = clampByte(v * 255)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: a}, true
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

// paint is a resolved fill or stroke. ok is false when nothing is painted.
type paint struct {
	color color.NRGBA
	ok    bool
}

func resolvePaint(s, fallback string) paint {
	c, ok := parseColor(s)
	if !ok {
		c, ok = parseColor(fallback)
	}
	return paint{color: c, ok: ok && c.A > 0}
}

// svgAttrs returns the attribute pair for an SVG fill or stroke.
func (p paint) svgAttrs(name string) []string {
	if !p.ok {
		return []string{fmt.Sprintf(`%s="none"`, name)}
	}
	attrs := []string{fmt.Sprintf(`%s="#%02x%02x%02x"`, name, p.color.R, p.color.G, p.color.B)}
	if p.color.A < 0xff {
		attrs = append(attrs, fmt.Sprintf(`%s-opacity="%s"`, name, formatFloat(float64(p.color.A)/255)))
	}
	return attrs
}

// formatFloat prints v with at most four decimals.
func formatFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
