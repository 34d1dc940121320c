package export

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/fogleman/gg"

	"design-studio/document"
	"design-studio/tracing"
)

// RenderPage rasterizes one page of d.
func RenderPage(ctx context.Context, d *document.Document, page int, opts Options) (img image.Image, err error) {
	ctx, span := tracing.StartSpan(ctx, "export.render_page", tracing.Int("page", page))
	defer func() { tracing.End(span, err) }()

	plan, err := buildPlan(ctx, d, page, opts)
	if err != nil {
		return nil, err
	}
	return rasterize(ctx, plan)
}

// RenderPNG writes page as a PNG.
func RenderPNG(ctx context.Context, d *document.Document, page int, opts Options, w io.Writer) error {
	img, err := RenderPage(ctx, d, page, opts)
	if err != nil {
		return err
	}
	return encodePNG(w, img)
}

func encodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

func rasterize(ctx context.Context, plan *pagePlan) (image.Image, error) {
	dc := gg.NewContext(plan.width, plan.height)
	if plan.background.ok {
		dc.SetColor(plan.background.color)
		dc.Clear()
	}
	dst := dc.Image().(draw.Image)

	for _, it := range plan.items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if it.opacity <= 0 {
			continue
		}
		if it.opacity >= 1 {
			drawItemTo(dc, it, 0, 0)
			continue
		}

		env := it.envelope(plan.width, plan.height)
		if env.Empty() {
			continue
		}
		layer := gg.NewContext(env.Dx(), env.Dy())
		drawItemTo(layer, it, float64(env.Min.X), float64(env.Min.Y))
		mask := image.NewUniform(color.Alpha{A: uint8(it.opacity*255 + 0.5)})
		draw.DrawMask(dst, env, layer.Image(), image.Point{}, mask, image.Point{}, draw.Over)
	}
	return dc.Image(), nil
}

// drawItemTo paints it onto dc, whose origin sits at (ox, oy) in page space.
// Rotation is applied about the element center.
func drawItemTo(dc *gg.Context, it drawItem, ox, oy float64) {
	dc.Push()
	defer dc.Pop()

	dc.Translate(-ox, -oy)
	if it.rotation != 0 {
		dc.RotateAbout(gg.Radians(it.rotation), it.cx, it.cy)
	}

	if it.placeholder {
		dc.SetColor(placeholderColor)
		dc.DrawRectangle(it.box.X, it.box.Y, it.box.W, it.box.H)
		dc.Fill()
		return
	}

	switch it.el.Type {
	case document.TypeText:
		if !it.fill.ok {
			return
		}
		dc.SetFontFace(it.face)
		dc.SetColor(it.fill.color)
		for _, line := range it.text.lines {
			dc.DrawStringAnchored(line.text, line.x, line.y, it.text.ax, 0)
		}

	case document.TypeImage, document.TypeClipart:
		b := it.img.Bounds()
		dc.Translate(it.box.X, it.box.Y)
		dc.Scale(it.box.W/float64(b.Dx()), it.box.H/float64(b.Dy()))
		dc.DrawImage(it.img, -b.Min.X, -b.Min.Y)

	case document.TypeShape:
		it.shape.appendTo(dc)
		if it.fill.ok && !it.open {
			dc.SetColor(it.fill.color)
			dc.FillPreserve()
		}
		if it.stroke.ok {
			dc.SetColor(it.stroke.color)
			dc.SetLineWidth(it.strokeWidth)
			dc.StrokePreserve()
		}
		dc.ClearPath()
	}
}
