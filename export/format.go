package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"design-studio/document"
)

type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
	FormatPDF Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatSVG, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Write exports d in format f. PNG and SVG render a single page; PDF always
// contains every page.
func Write(ctx context.Context, d *document.Document, f Format, page int, opts Options, w io.Writer) error {
	switch f {
	case FormatPNG:
		return RenderPNG(ctx, d, page, opts, w)
	case FormatSVG:
		return RenderSVG(ctx, d, page, opts, w)
	case FormatPDF:
		return RenderPDF(ctx, d, opts, w)
	}
	return fmt.Errorf("unsupported export format: %s", f)
}
