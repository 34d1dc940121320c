package document

import (
	"encoding/json"
	"fmt"
)

// record is the stored shape. Older designs were saved as a bare element list
// for a single page; Elements holds that shape while decoding.
type record struct {
	Pages        []Page    `json:"pages"`
	Elements     []Element `json:"elements,omitempty"`
	CanvasWidth  float64   `json:"canvasWidth,omitempty"`
	CanvasHeight float64   `json:"canvasHeight,omitempty"`
	ProductType  string    `json:"productType,omitempty"`
	MaxPages     int       `json:"maxPages,omitempty"`
}

// Encode serializes the document as {"pages": [...], ...}.
func Encode(d *Document) ([]byte, error) {
	r := record{
		Pages:        d.Pages,
		CanvasWidth:  d.CanvasWidth,
		CanvasHeight: d.CanvasHeight,
		ProductType:  d.ProductType,
		MaxPages:     d.MaxPages,
	}
	if r.Pages == nil {
		r.Pages = []Page{}
	}
	return json.Marshal(r)
}

// Decode parses either the multi-page shape or the legacy {"elements": [...]}
// shape, which becomes a one-page document. Options supply values the record
// does not carry, such as the canvas size of legacy designs.
//
// A page limit set by an option or by the product preset wins over the
// record's own maxPages. The decoded document must satisfy the same rules
// AddPage and SetElements enforce; a record that breaks them fails with an
// error matching both ErrDecode and the rule's sentinel.
func Decode(data []byte, opts ...Option) (*Document, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, opError("decode", ErrDecode, "%v", err)
	}

	d := &Document{}
	for _, opt := range opts {
		opt(d)
	}
	if r.CanvasWidth > 0 && r.CanvasHeight > 0 {
		d.CanvasWidth = r.CanvasWidth
		d.CanvasHeight = r.CanvasHeight
	}
	if r.ProductType != "" {
		d.ProductType = r.ProductType
	}
	if _, preset := LookupPreset(d.ProductType); d.MaxPages <= 0 && !preset {
		d.MaxPages = r.MaxPages
	}

	switch {
	case len(r.Pages) > 0:
		d.Pages = r.Pages
	case r.Elements != nil:
		d.Pages = []Page{{ID: NewID(), Label: "Front", Elements: r.Elements}}
	default:
		return nil, opError("decode", ErrDecode, "record has no pages")
	}
	if len(d.Pages) > d.PageLimit() {
		return nil, decodeError(opError("decode", ErrMaxPages, "%d pages, limit %d", len(d.Pages), d.PageLimit()))
	}

	for i := range d.Pages {
		p := &d.Pages[i]
		if p.ID == "" {
			p.ID = NewID()
		}
		if p.Elements == nil {
			p.Elements = []Element{}
		}
		seen := make(map[string]struct{}, len(p.Elements))
		for j := range p.Elements {
			e := &p.Elements[j]
			e.sanitize()
			if err := e.Validate(); err != nil {
				return nil, decodeError(err)
			}
			if _, dup := seen[e.ID]; dup {
				return nil, decodeError(opError("decode", ErrDuplicateID, "id %s on page %d", e.ID, i))
			}
			seen[e.ID] = struct{}{}
		}
	}
	return d, nil
}

// decodeError marks a rule violation found while decoding as a malformed
// record too.
func decodeError(cause error) error {
	return &Error{Op: "decode", Err: fmt.Errorf("%w: %w", ErrDecode, cause)}
}

// DecodeOrEmpty decodes data, falling back to a blank one-page document when
// the record is unreadable. The decode error is still returned so the caller
// can report it.
func DecodeOrEmpty(data []byte, opts ...Option) (*Document, error) {
	d, err := Decode(data, opts...)
	if err != nil {
		return New(0, 0, opts...), err
	}
	return d, nil
}
