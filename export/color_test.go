package export

import (
	"image/color"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{"#fff", color.NRGBA{255, 255, 255, 255}, true},
		{"#FF0000", color.NRGBA{255, 0, 0, 255}, true},
		{"#00ff0080", color.NRGBA{0, 255, 0, 128}, true},
		{"rgb(10, 20, 30)", color.NRGBA{10, 20, 30, 255}, true},
		{"rgba(10,20,30,0.5)", color.NRGBA{10, 20, 30, 128}, true},
		{"navy", color.NRGBA{0, 0, 128, 255}, true},
		{"transparent", color.NRGBA{}, true},
		{"", color.NRGBA{}, false},
		{"#12", color.NRGBA{}, false},
		{"blurple", color.NRGBA{}, false},
	}
	for _, tt := range tests {
		got, ok := parseColor(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseColor(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolvePaint(t *testing.T) {
	if p := resolvePaint("bogus", "#000000"); !p.ok || p.color != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("fallback not applied: %+v", p)
	}
	if p := resolvePaint("none", "#000000"); p.ok {
		t.Error("none should not paint")
	}
	attrs := resolvePaint("#ff000080", "").svgAttrs("fill")
	if len(attrs) != 2 || attrs[0] != `fill="#ff0000"` || attrs[1] != `fill-opacity="0.502"` {
		t.Errorf("svgAttrs() = %v", attrs)
	}
}
