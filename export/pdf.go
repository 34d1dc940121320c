package export

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"design-studio/document"
	"design-studio/tracing"
)

// RenderPDF writes every page of d to one PDF, each page sized to the
// canvas in inches and carrying the page rasterized at opts.DPI.
func RenderPDF(ctx context.Context, d *document.Document, opts Options, w io.Writer) (err error) {
	ctx, span := tracing.StartSpan(ctx, "export.render_pdf", tracing.Int("pages", d.PageCount()))
	defer func() { tracing.End(span, err) }()

	size := fpdf.SizeType{Wd: d.CanvasWidth, Ht: d.CanvasHeight}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           size,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("design-studio", true)
	if d.ProductType != "" {
		pdf.SetTitle(d.ProductType, true)
	}

	for i := 0; i < d.PageCount(); i++ {
		img, err := RenderPage(ctx, d, i, opts)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := encodePNG(&buf, img); err != nil {
			return fmt.Errorf("encode page %d: %w", i, err)
		}

		name := fmt.Sprintf("page-%d", i)
		imgOpts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.AddPageFormat("P", size)
		pdf.RegisterImageOptionsReader(name, imgOpts, &buf)
		pdf.ImageOptions(name, 0, 0, size.Wd, size.Ht, false, imgOpts, 0, "")
		if pdf.Err() {
			return fmt.Errorf("build pdf page %d: %w", i, pdf.Error())
		}
	}
	return pdf.Output(w)
}
