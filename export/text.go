package export

import (
	"strings"

	"golang.org/x/image/font"

	"design-studio/document"
)

const (
	lineSpacing = 1.2
	// ascentRatio places the first baseline below the top of the box.
	ascentRatio = 0.9
)

type textLine struct {
	text  string
	x, y  float64
	width float64
}

type textLayout struct {
	lines  []textLine
	size   float64
	anchor string
	ax     float64
}

// layoutText breaks the text on newlines and places one baseline per line.
// The horizontal anchor follows textAlign within the element box.
func layoutText(e document.Element, box rect, scale float64, face font.Face) textLayout {
	raw := strings.Split(strings.ReplaceAll(e.Text, "\r\n", "\n"), "\n")

	size := e.FontSize * scale
	if size <= 0 {
		size = box.H / (lineSpacing * float64(len(raw)))
	}

	l := textLayout{size: size, anchor: "start"}
	x := box.X
	switch strings.ToLower(e.TextAlign) {
	case "center", "middle":
		l.anchor, l.ax, x = "middle", 0.5, box.X+box.W/2
	case "right", "end":
		l.anchor, l.ax, x = "end", 1, box.X+box.W
	}

	top := box.Y + size*(lineSpacing-1)/2 + size*ascentRatio
	for i, s := range raw {
		line := textLine{text: s, x: x, y: top + float64(i)*size*lineSpacing}
		if face != nil {
			line.width = float64(font.MeasureString(face, s)) / 64
		}
		l.lines = append(l.lines, line)
	}
	return l
}

// extent is the pixel box covered by the laid out glyphs.
func (l textLayout) extent() rect {
	if len(l.lines) == 0 {
		return rect{}
	}
	minX, minY := l.lines[0].x, l.lines[0].y-l.size
	maxX, maxY := minX, l.lines[len(l.lines)-1].y+l.size*0.3
	for _, line := range l.lines {
		left := line.x - l.ax*line.width
		if left < minX {
			minX = left
		}
		if right := left + line.width; right > maxX {
			maxX = right
		}
	}
	return rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
