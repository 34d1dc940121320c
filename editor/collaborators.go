package editor

import (
	"context"
	"io"

	"design-studio/document"
)

// Repository stores encoded documents. Save returns the id the document was
// stored under, which is a new id when id is empty.
type Repository interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte) (string, error)
}

type PriceRequest struct {
	ProductType string
	Material    string
	Width       float64
	Height      float64
	Quantity    int
}

// Pricer returns a unit price. All pricing rules live behind it.
type Pricer interface {
	Price(ctx context.Context, req PriceRequest) (float64, error)
}

// TemplateSource supplies named starter compositions.
type TemplateSource interface {
	Template(ctx context.Context, name string) ([]document.Element, error)
}

// Uploader stores a file and returns a stable URL for it.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}
