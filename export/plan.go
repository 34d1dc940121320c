// Package export renders document pages to PNG, SVG and PDF.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"

	"design-studio/document"
	"design-studio/units"
)

const defaultBackground = "#ffffff"

// MaxCanvasPixels bounds the pixel area of one rendered page. A 72x36 in
// banner at 200 dpi fits.
const MaxCanvasPixels = 120_000_000

// ErrCanvasTooLarge is returned before any surface is allocated when the
// canvas at the requested DPI exceeds MaxCanvasPixels.
var ErrCanvasTooLarge = errors.New("canvas too large to render")

// Options control an export. The zero value renders at units.DefaultDPI on
// white with the shared default resolver.
type Options struct {
	DPI        float64
	Background string
	Resolver   AssetResolver
}

var (
	defaultResolverOnce sync.Once
	defaultResolver     *Resolver
)

// DefaultResolver fetches assets with the package defaults and an in-memory
// cache.
func DefaultResolver() *Resolver {
	defaultResolverOnce.Do(func() {
		defaultResolver, _ = NewResolver(ResolverConfig{}, nil)
	})
	return defaultResolver
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = units.DefaultDPI
	}
	if o.Background == "" {
		o.Background = defaultBackground
	}
	if o.Resolver == nil {
		o.Resolver = DefaultResolver()
	}
	return o
}

type rect struct {
	X, Y, W, H float64
}

// drawItem is one element converted to pixel space. The raster and SVG
// renderers both draw from these, so geometry, paint order and visibility
// are decided once.
type drawItem struct {
	el       document.Element
	box      rect
	cx, cy   float64
	rotation float64
	opacity  float64

	// placeholder is set when the element content could not be produced.
	placeholder bool

	shape       shapePath
	open        bool
	fill        paint
	stroke      paint
	strokeWidth float64

	text textLayout
	face font.Face

	asset *Asset
	img   image.Image
}

type pagePlan struct {
	page       int
	width      int
	height     int
	scale      float64
	background paint
	items      []drawItem
}

// buildPlan prepares page i of d for rendering. It fails only when the page
// does not exist or ctx is cancelled; a broken element becomes a placeholder.
func buildPlan(ctx context.Context, d *document.Document, i int, opts Options) (*pagePlan, error) {
	opts = opts.withDefaults()
	page, err := d.Page(i)
	if err != nil {
		return nil, err
	}
	w := math.Max(units.InchesToPixels(d.CanvasWidth, opts.DPI), 1)
	h := math.Max(units.InchesToPixels(d.CanvasHeight, opts.DPI), 1)
	if !(w*h <= MaxCanvasPixels) {
		return nil, fmt.Errorf("%w: %gx%g in at %g dpi", ErrCanvasTooLarge, d.CanvasWidth, d.CanvasHeight, opts.DPI)
	}

	bg := opts.Background
	if page.Background != "" {
		bg = page.Background
	}
	plan := &pagePlan{
		page:       i,
		width:      units.PixelSize(d.CanvasWidth, opts.DPI),
		height:     units.PixelSize(d.CanvasHeight, opts.DPI),
		scale:      opts.DPI,
		background: resolvePaint(bg, ""),
	}

	for _, e := range page.Elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Visible {
			continue
		}
		it, ok, err := planElement(ctx, e, plan.scale, opts.Resolver)
		if err != nil {
			return nil, err
		}
		if ok {
			plan.items = append(plan.items, it)
		}
	}
	return plan, nil
}

func planElement(ctx context.Context, e document.Element, scale float64, resolver AssetResolver) (drawItem, bool, error) {
	log := logrus.WithFields(logrus.Fields{"element_id": e.ID, "type": e.Type})

	it := drawItem{
		el:       e,
		rotation: e.Rotation,
		opacity:  math.Max(0, math.Min(1, e.Opacity)),
		box: rect{
			X: units.InchesToPixels(e.X, scale),
			Y: units.InchesToPixels(e.Y, scale),
			W: units.InchesToPixels(e.Width, scale),
			H: units.InchesToPixels(e.Height, scale),
		},
	}

	switch e.Type {
	case document.TypeText:
		it.fill = resolvePaint(e.Color, "#000000")
		size := e.FontSize * scale
		if size <= 0 {
			lines := strings.Count(e.Text, "\n") + 1
			size = it.box.H / (lineSpacing * float64(lines))
		}
		face, err := newFace(e.FontFamily, e.FontWeight, e.FontStyle, size)
		if err != nil {
			log.WithError(err).Warn("Font unavailable, drawing placeholder")
			it.placeholder = true
			break
		}
		it.face = face
		it.text = layoutText(e, it.box, scale, face)

	case document.TypeImage, document.TypeClipart:
		// images are placed on whole pixels so both renderers agree
		it.box = rect{
			X: math.Round(it.box.X),
			Y: math.Round(it.box.Y),
			W: math.Max(1, math.Round(it.box.W)),
			H: math.Max(1, math.Round(it.box.H)),
		}
		asset, err := resolver.Resolve(ctx, e.Src)
		if err != nil {
			if ctx.Err() != nil {
				return drawItem{}, false, ctx.Err()
			}
			log.WithError(err).WithField("src", truncate(e.Src, 120)).Warn("Failed to resolve asset, drawing placeholder")
			it.placeholder = true
			break
		}
		img, err := decodeAsset(asset, int(it.box.W), int(it.box.H))
		if err != nil {
			log.WithError(err).Warn("Failed to decode asset, drawing placeholder")
			it.placeholder = true
			break
		}
		it.asset, it.img = asset, img

	case document.TypeShape:
		if err := planShape(&it, e, scale); err != nil {
			log.WithError(err).Warn("Invalid shape path, drawing placeholder")
			it.placeholder = true
		}

	default:
		log.Warn("Skipping element of unknown type")
		return drawItem{}, false, nil
	}

	it.cx = it.box.X + it.box.W/2
	it.cy = it.box.Y + it.box.H/2
	return it, true, nil
}

func planShape(it *drawItem, e document.Element, scale float64) error {
	var (
		unit shapePath
		open bool
	)
	if e.SVGPath != "" {
		p, err := parsePathData(e.SVGPath)
		if err != nil {
			return err
		}
		minX, minY, w, h, ok := parseViewBox(e.SVGViewBox)
		if !ok {
			x0, y0, x1, y1, found := p.bounds()
			if !found {
				return errEmptyPath
			}
			minX, minY, w, h = x0, y0, math.Max(x1-x0, 1e-9), math.Max(y1-y0, 1e-9)
		}
		it.shape = p.fit(minX, minY, w, h, it.box)
	} else {
		var ok bool
		unit, open, ok = namedShape(e.Shape)
		if !ok {
			logrus.WithFields(logrus.Fields{"element_id": e.ID, "shape": e.Shape}).Warn("Unknown shape, drawing rectangle")
			unit, open, _ = namedShape(document.ShapeRectangle)
		}
		it.shape = unit.fit(0, 0, 1, 1, it.box)
	}

	it.open = open
	it.fill = resolvePaint(e.Fill, "#000000")
	it.stroke = resolvePaint(e.Stroke, "")
	it.strokeWidth = units.InchesToPixels(e.StrokeWidth, scale)
	if open {
		if !it.stroke.ok {
			it.stroke = it.fill
		}
		it.strokeWidth = math.Max(it.strokeWidth, 1)
	}
	if it.strokeWidth <= 0 {
		it.stroke.ok = false
	}
	return nil
}

// envelope is the pixel area the item can touch, clipped to the page.
func (it drawItem) envelope(width, height int) image.Rectangle {
	area := it.box
	if it.el.Type == document.TypeText && it.face != nil {
		area = union(area, it.text.extent())
	}
	pad := it.strokeWidth/2 + 2

	corners := []point{
		{area.X, area.Y}, {area.X + area.W, area.Y},
		{area.X, area.Y + area.H}, {area.X + area.W, area.Y + area.H},
	}
	sin, cos := math.Sincos(it.rotation * math.Pi / 180)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		dx, dy := c.X-it.cx, c.Y-it.cy
		x := it.cx + dx*cos - dy*sin
		y := it.cy + dx*sin + dy*cos
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	r := image.Rect(
		int(math.Floor(minX-pad)), int(math.Floor(minY-pad)),
		int(math.Ceil(maxX+pad)), int(math.Ceil(maxY+pad)),
	)
	return r.Intersect(image.Rect(0, 0, width, height))
}

func union(a, b rect) rect {
	x0, y0 := math.Min(a.X, b.X), math.Min(a.Y, b.Y)
	x1, y1 := math.Max(a.X+a.W, b.X+b.W), math.Max(a.Y+a.H, b.Y+b.H)
	return rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
