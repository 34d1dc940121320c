package export

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"

	"design-studio/document"
	"design-studio/tracing"
)

// errWriter keeps the first write error so the svgo calls, which ignore
// errors, can be checked once at the end.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	ew.err = err
	return n, err
}

// RenderSVG writes page of d as a standalone SVG document. Images are
// embedded as data URIs so the output has no external references.
func RenderSVG(ctx context.Context, d *document.Document, page int, opts Options, w io.Writer) (err error) {
	ctx, span := tracing.StartSpan(ctx, "export.render_svg", tracing.Int("page", page))
	defer func() { tracing.End(span, err) }()

	plan, err := buildPlan(ctx, d, page, opts)
	if err != nil {
		return err
	}
	ew := &errWriter{w: w}
	if err := writeSVG(ctx, plan, ew); err != nil {
		return err
	}
	return ew.err
}

func writeSVG(ctx context.Context, plan *pagePlan, w io.Writer) error {
	canvas := svg.New(w)
	canvas.Start(plan.width, plan.height, fmt.Sprintf(`viewBox="0 0 %d %d"`, plan.width, plan.height))
	if plan.background.ok {
		canvas.Rect(0, 0, plan.width, plan.height, plan.background.svgAttrs("fill")...)
	}

	for _, it := range plan.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		canvas.Group(groupAttrs(it)...)
		writeItem(canvas, it)
		canvas.Gend()
	}
	canvas.End()
	return nil
}

func groupAttrs(it drawItem) []string {
	attrs := []string{attr("id", it.el.ID)}
	if it.rotation != 0 {
		attrs = append(attrs, fmt.Sprintf(`transform="rotate(%s %s %s)"`,
			formatFloat(it.rotation), formatFloat(it.cx), formatFloat(it.cy)))
	}
	if it.opacity < 1 {
		attrs = append(attrs, fmt.Sprintf(`opacity="%s"`, formatFloat(it.opacity)))
	}
	return attrs
}

func writeItem(canvas *svg.SVG, it drawItem) {
	if it.placeholder {
		box, _, _ := namedShape(document.ShapeRectangle)
		canvas.Path(box.fit(0, 0, 1, 1, it.box).svgData(), attr("fill", placeholderHex))
		return
	}

	switch it.el.Type {
	case document.TypeText:
		writeText(canvas, it)

	case document.TypeImage, document.TypeClipart:
		canvas.Image(int(it.box.X), int(it.box.Y), int(it.box.W), int(it.box.H),
			it.asset.DataURI(), `preserveAspectRatio="none"`)

	case document.TypeShape:
		attrs := []string{}
		if it.open {
			attrs = append(attrs, `fill="none"`)
		} else {
			attrs = append(attrs, it.fill.svgAttrs("fill")...)
		}
		if it.stroke.ok {
			attrs = append(attrs, it.stroke.svgAttrs("stroke")...)
			attrs = append(attrs, fmt.Sprintf(`stroke-width="%s"`, formatFloat(it.strokeWidth)))
		}
		canvas.Path(it.shape.svgData(), attrs...)
	}
}

func writeText(canvas *svg.SVG, it drawItem) {
	e := it.el
	attrs := []string{
		attr("font-family", svgFontFamily(e.FontFamily)),
		fmt.Sprintf(`font-size="%s"`, formatFloat(it.text.size)),
		attr("text-anchor", it.text.anchor),
		`xml:space="preserve"`,
	}
	if isBold(e.FontWeight) {
		attrs = append(attrs, `font-weight="bold"`)
	}
	if isItalic(e.FontStyle) {
		attrs = append(attrs, `font-style="italic"`)
	}
	attrs = append(attrs, it.fill.svgAttrs("fill")...)

	x, y := 0, 0
	if len(it.text.lines) > 0 {
		x, y = int(math.Round(it.text.lines[0].x)), int(math.Round(it.text.lines[0].y))
	}
	canvas.Textspan(x, y, "", attrs...)
	for _, line := range it.text.lines {
		canvas.Span(line.text,
			fmt.Sprintf(`x="%s"`, formatFloat(line.x)),
			fmt.Sprintf(`y="%s"`, formatFloat(line.y)))
	}
	canvas.TextEnd()
}

// attr formats an attribute with an escaped value.
func attr(name, value string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(`="`)
	_ = xml.EscapeText(&b, []byte(value))
	b.WriteByte('"')
	return b.String()
}
