package export

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/tdewolff/canvas"
)

type point struct {
	X, Y float64
}

// segment is one drawing command of a path. M and L carry one point, Q two,
// C three, Z none.
type segment struct {
	op  byte
	pts []point
}

// shapePath is the geometry shared by the raster and SVG renderers. Both draw
// exactly these segments so their outlines match.
type shapePath []segment

func (p shapePath) mapPoints(fn func(point) point) shapePath {
	out := make(shapePath, len(p))
	for i, s := range p {
		pts := make([]point, len(s.pts))
		for j, pt := range s.pts {
			pts[j] = fn(pt)
		}
		out[i] = segment{op: s.op, pts: pts}
	}
	return out
}

// fit maps the rectangle (minX, minY, w, h) onto the pixel box.
func (p shapePath) fit(minX, minY, w, h float64, box rect) shapePath {
	sx, sy := box.W/w, box.H/h
	return p.mapPoints(func(pt point) point {
		return point{X: box.X + (pt.X-minX)*sx, Y: box.Y + (pt.Y-minY)*sy}
	})
}

func (p shapePath) bounds() (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, s := range p {
		for _, pt := range s.pts {
			minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
			minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
			ok = true
		}
	}
	return
}

func (p shapePath) appendTo(dc *gg.Context) {
	for _, s := range p {
		switch s.op {
		case 'M':
			dc.MoveTo(s.pts[0].X, s.pts[0].Y)
		case 'L':
			dc.LineTo(s.pts[0].X, s.pts[0].Y)
		case 'Q':
			dc.QuadraticTo(s.pts[0].X, s.pts[0].Y, s.pts[1].X, s.pts[1].Y)
		case 'C':
			dc.CubicTo(s.pts[0].X, s.pts[0].Y, s.pts[1].X, s.pts[1].Y, s.pts[2].X, s.pts[2].Y)
		case 'Z':
			dc.ClosePath()
		}
	}
}

// svgData renders the path as SVG path data.
func (p shapePath) svgData() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(s.op)
		for _, pt := range s.pts {
			b.WriteByte(' ')
			b.WriteString(formatFloat(pt.X))
			b.WriteByte(' ')
			b.WriteString(formatFloat(pt.Y))
		}
	}
	return b.String()
}

func polygon(pts ...point) shapePath {
	p := make(shapePath, 0, len(pts)+1)
	for i, pt := range pts {
		op := byte('L')
		if i == 0 {
			op = 'M'
		}
		p = append(p, segment{op: op, pts: []point{pt}})
	}
	return append(p, segment{op: 'Z'})
}

// regular returns an n-sided polygon inscribed in the unit box, starting at
// angle start (radians). When inner > 0 the vertices alternate between the
// outer radius and inner, which gives a star.
func regular(n int, start, inner float64) shapePath {
	count := n
	if inner > 0 {
		count *= 2
	}
	pts := make([]point, count)
	for i := range pts {
		r := 0.5
		if inner > 0 && i%2 == 1 {
			r = 0.5 * inner
		}
		a := start + float64(i)*2*math.Pi/float64(count)
		pts[i] = point{X: 0.5 + r*math.Cos(a), Y: 0.5 + r*math.Sin(a)}
	}
	return polygon(pts...)
}

const kappa = 0.5522847498

func ellipsePath() shapePath {
	k := kappa * 0.5
	return shapePath{
		{op: 'M', pts: []point{{1, 0.5}}},
		{op: 'C', pts: []point{{1, 0.5 + k}, {0.5 + k, 1}, {0.5, 1}}},
		{op: 'C', pts: []point{{0.5 - k, 1}, {0, 0.5 + k}, {0, 0.5}}},
		{op: 'C', pts: []point{{0, 0.5 - k}, {0.5 - k, 0}, {0.5, 0}}},
		{op: 'C', pts: []point{{0.5 + k, 0}, {1, 0.5 - k}, {1, 0.5}}},
		{op: 'Z'},
	}
}

func heartPath() shapePath {
	return shapePath{
		{op: 'M', pts: []point{{0.5, 0.3}}},
		{op: 'C', pts: []point{{0.5, 0.27}, {0.45, 0.15}, {0.25, 0.15}}},
		{op: 'C', pts: []point{{0, 0.15}, {0, 0.4}, {0, 0.4}}},
		{op: 'C', pts: []point{{0, 0.55}, {0.15, 0.77}, {0.5, 0.95}}},
		{op: 'C', pts: []point{{0.85, 0.77}, {1, 0.55}, {1, 0.4}}},
		{op: 'C', pts: []point{{1, 0.4}, {1, 0.15}, {0.75, 0.15}}},
		{op: 'C', pts: []point{{0.6, 0.15}, {0.5, 0.27}, {0.5, 0.3}}},
		{op: 'Z'},
	}
}

// namedShape returns the outline of a named shape in the unit box. open is
// true for shapes that are stroked but never filled.
func namedShape(name string) (p shapePath, open bool, ok bool) {
	switch name {
	case "rectangle", "square", "rect", "":
		return polygon(point{0, 0}, point{1, 0}, point{1, 1}, point{0, 1}), false, true
	case "circle", "ellipse":
		return ellipsePath(), false, true
	case "triangle":
		return polygon(point{0.5, 0}, point{1, 1}, point{0, 1}), false, true
	case "diamond":
		return polygon(point{0.5, 0}, point{1, 0.5}, point{0.5, 1}, point{0, 0.5}), false, true
	case "pentagon":
		return regular(5, -math.Pi/2, 0), false, true
	case "hexagon":
		return regular(6, 0, 0), false, true
	case "star":
		return regular(5, -math.Pi/2, 0.382), false, true
	case "heart":
		return heartPath(), false, true
	case "arrow":
		return polygon(
			point{0, 0.35}, point{0.6, 0.35}, point{0.6, 0.1}, point{1, 0.5},
			point{0.6, 0.9}, point{0.6, 0.65}, point{0, 0.65},
		), false, true
	case "line":
		return shapePath{
			{op: 'M', pts: []point{{0, 0.5}}},
			{op: 'L', pts: []point{{1, 0.5}}},
		}, true, true
	}
	return nil, false, false
}

// parseViewBox reads "minX minY width height".
func parseViewBox(s string) (minX, minY, w, h float64, ok bool) {
	f := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
	if len(f) != 4 {
		return 0, 0, 0, 0, false
	}
	var v [4]float64
	for i, s := range f {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return 0, 0, 0, 0, false
	}
	return v[0], v[1], v[2], v[3], true
}

// parsePathData parses SVG path data into absolute M, L, Q, C and Z
// segments. Arcs are replaced by cubic curves.
func parsePathData(d string) (shapePath, error) {
	if t := strings.TrimSpace(d); t == "" || (t[0] != 'M' && t[0] != 'm') {
		return nil, fmt.Errorf("path data must start with a moveto")
	}
	path, err := canvas.ParseSVGPath(d)
	if err != nil {
		return nil, err
	}
	if path.Empty() {
		return nil, fmt.Errorf("empty path data")
	}

	pt := func(p canvas.Point) point { return point{X: p.X, Y: p.Y} }
	var out shapePath
	for sc := path.ReplaceArcs().Scanner(); sc.Scan(); {
		switch sc.Cmd() {
		case canvas.MoveToCmd:
			out = append(out, segment{op: 'M', pts: []point{pt(sc.End())}})
		case canvas.LineToCmd:
			out = append(out, segment{op: 'L', pts: []point{pt(sc.End())}})
		case canvas.QuadToCmd:
			out = append(out, segment{op: 'Q', pts: []point{pt(sc.CP1()), pt(sc.End())}})
		case canvas.CubeToCmd:
			out = append(out, segment{op: 'C', pts: []point{pt(sc.CP1()), pt(sc.CP2()), pt(sc.End())}})
		case canvas.CloseCmd:
			out = append(out, segment{op: 'Z'})
		}
	}
	return out, nil
}

var errEmptyPath = errors.New("path has no points")
