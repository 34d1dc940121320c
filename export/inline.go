package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"math"

	"github.com/sirupsen/logrus"

	"design-studio/document"
)

// InlineAssets returns a copy of d whose image and clipart sources are data
// URIs. Sources that cannot be resolved are left as they are.
func InlineAssets(ctx context.Context, d *document.Document, resolver AssetResolver) (*document.Document, error) {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	out := d.Clone()
	for p := range out.Pages {
		for i := range out.Pages[p].Elements {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e := &out.Pages[p].Elements[i]
			if e.Type != document.TypeImage && e.Type != document.TypeClipart {
				continue
			}
			if e.Src == "" || isDataURI(e.Src) {
				continue
			}
			a, err := resolver.Resolve(ctx, e.Src)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logrus.WithError(err).WithFields(logrus.Fields{
					"element_id": e.ID,
					"src":        truncate(e.Src, 120),
				}).Warn("Failed to inline asset")
				continue
			}
			e.Src = a.DataURI()
		}
	}
	return out, nil
}

// Thumbnail renders the first page so its longer side is at most maxPx and
// returns it as a PNG data URI.
func Thumbnail(ctx context.Context, d *document.Document, maxPx int, opts Options) (string, error) {
	longest := math.Max(d.CanvasWidth, d.CanvasHeight)
	if maxPx > 0 && longest > 0 {
		opts.DPI = float64(maxPx) / longest
	}
	img, err := RenderPage(ctx, d, 0, opts)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := encodePNG(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func isDataURI(s string) bool {
	return len(s) >= 5 && s[:5] == "data:"
}
