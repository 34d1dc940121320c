package document

import (
	"fmt"
)

// DefaultMaxPages matches the front and back of a printed banner.
const DefaultMaxPages = 2

type (
	// Page is one printed side. Elements are stored in paint order: index 0 is
	// furthest back.
	Page struct {
		ID         string    `json:"id"`
		Label      string    `json:"label,omitempty"`
		Background string    `json:"background,omitempty"`
		Elements   []Element `json:"elements"`
	}

	// Document is a multi-page composition. All pages share the canvas size.
	//
	// Every operation names the page it acts on by index; the document keeps
	// no notion of an active page.
	Document struct {
		Pages        []Page  `json:"pages"`
		CanvasWidth  float64 `json:"canvasWidth"`
		CanvasHeight float64 `json:"canvasHeight"`
		ProductType  string  `json:"productType,omitempty"`
		MaxPages     int     `json:"maxPages,omitempty"`
	}

	Option func(*Document)
)

func WithMaxPages(n int) Option {
	return func(d *Document) {
		d.MaxPages = n
	}
}

func WithProductType(productType string) Option {
	return func(d *Document) {
		d.ProductType = productType
	}
}

func WithCanvasSize(width, height float64) Option {
	return func(d *Document) {
		d.CanvasWidth = width
		d.CanvasHeight = height
	}
}

func newPage(label string) Page {
	return Page{ID: NewID(), Label: label, Elements: []Element{}}
}

// New returns a document with a single blank page.
func New(width, height float64, opts ...Option) *Document {
	d := &Document{CanvasWidth: width, CanvasHeight: height}
	for _, opt := range opts {
		opt(d)
	}
	d.Pages = []Page{newPage("Front")}
	return d
}

// PageLimit is the configured maximum number of pages: MaxPages when set,
// else the product preset's limit, else DefaultMaxPages.
func (d *Document) PageLimit() int {
	if d.MaxPages > 0 {
		return d.MaxPages
	}
	if p, ok := LookupPreset(d.ProductType); ok {
		return p.MaxPages
	}
	return DefaultMaxPages
}

func (d *Document) PageCount() int {
	return len(d.Pages)
}

func (d *Document) page(op string, i int) (*Page, error) {
	if i < 0 || i >= len(d.Pages) {
		return nil, opError(op, ErrPageNotFound, "page index %d of %d", i, len(d.Pages))
	}
	return &d.Pages[i], nil
}

// Page returns a copy of page i.
func (d *Document) Page(i int) (Page, error) {
	p, err := d.page("page", i)
	if err != nil {
		return Page{}, err
	}
	return p.clone(), nil
}

// AddPage appends a blank page and returns its index.
func (d *Document) AddPage(label string) (int, error) {
	if len(d.Pages) >= d.PageLimit() {
		return -1, opError("add page", ErrMaxPages, "limit is %d", d.PageLimit())
	}
	if label == "" {
		if len(d.Pages) == 1 {
			label = "Back"
		} else {
			label = fmt.Sprintf("Page %d", len(d.Pages)+1)
		}
	}
	d.Pages = append(d.Pages, newPage(label))
	return len(d.Pages) - 1, nil
}

func (d *Document) DeletePage(i int) error {
	if _, err := d.page("delete page", i); err != nil {
		return err
	}
	if len(d.Pages) <= 1 {
		return opError("delete page", ErrLastPage, "page %d", i)
	}
	d.Pages = append(d.Pages[:i], d.Pages[i+1:]...)
	return nil
}

// MovePage moves the page at from so that it ends up at index to.
func (d *Document) MovePage(from, to int) error {
	if _, err := d.page("move page", from); err != nil {
		return err
	}
	if _, err := d.page("move page", to); err != nil {
		return err
	}
	p := d.Pages[from]
	d.Pages = append(d.Pages[:from], d.Pages[from+1:]...)
	d.Pages = append(d.Pages[:to], append([]Page{p}, d.Pages[to:]...)...)
	return nil
}

func (d *Document) SetPageBackground(i int, color string) error {
	p, err := d.page("set background", i)
	if err != nil {
		return err
	}
	p.Background = color
	return nil
}

// Elements returns a copy of the elements on page i in paint order.
func (d *Document) Elements(i int) ([]Element, error) {
	p, err := d.page("elements", i)
	if err != nil {
		return nil, err
	}
	return cloneElements(p.Elements), nil
}

// SetElements replaces the elements of page i. Nothing changes unless every
// element is valid and ids are unique.
func (d *Document) SetElements(i int, elements []Element) error {
	p, err := d.page("set elements", i)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(elements))
	for _, e := range elements {
		if err := e.Validate(); err != nil {
			return err
		}
		if _, dup := seen[e.ID]; dup {
			return opError("set elements", ErrDuplicateID, "id %s", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	p.Elements = cloneElements(elements)
	return nil
}

func (p *Page) indexOf(id string) int {
	for i := range p.Elements {
		if p.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// IndexOf returns the paint position of an element on page i, or -1.
func (d *Document) IndexOf(i int, id string) int {
	p, err := d.page("index", i)
	if err != nil {
		return -1
	}
	return p.indexOf(id)
}

func (d *Document) element(op string, i int, id string) (*Page, int, error) {
	p, err := d.page(op, i)
	if err != nil {
		return nil, -1, err
	}
	idx := p.indexOf(id)
	if idx < 0 {
		return nil, -1, opError(op, ErrElementNotFound, "element %s on page %d", id, i)
	}
	return p, idx, nil
}

func (d *Document) Element(i int, id string) (Element, error) {
	p, idx, err := d.element("element", i, id)
	if err != nil {
		return Element{}, err
	}
	return p.Elements[idx], nil
}

// AddElement places e on top of page i. An empty id is assigned.
func (d *Document) AddElement(i int, e Element) (Element, error) {
	p, err := d.page("add element", i)
	if err != nil {
		return Element{}, err
	}
	if e.ID == "" {
		e.ID = NewID()
	}
	if err := e.Validate(); err != nil {
		return Element{}, err
	}
	if p.indexOf(e.ID) >= 0 {
		return Element{}, opError("add element", ErrDuplicateID, "id %s", e.ID)
	}
	p.Elements = append(p.Elements, e)
	return e, nil
}

// UpdateElement applies fn to a copy of the element and stores the result if
// it is still valid. The id cannot be changed.
func (d *Document) UpdateElement(i int, id string, fn func(*Element)) (Element, error) {
	p, idx, err := d.element("update element", i, id)
	if err != nil {
		return Element{}, err
	}
	e := p.Elements[idx]
	fn(&e)
	e.ID = id
	if err := e.Validate(); err != nil {
		return Element{}, err
	}
	p.Elements[idx] = e
	return e, nil
}

func (d *Document) RemoveElement(i int, id string) error {
	p, idx, err := d.element("remove element", i, id)
	if err != nil {
		return err
	}
	p.Elements = append(p.Elements[:idx], p.Elements[idx+1:]...)
	return nil
}

// BringToFront moves the element to the end of the paint order.
func (d *Document) BringToFront(i int, id string) error {
	p, idx, err := d.element("bring to front", i, id)
	if err != nil {
		return err
	}
	e := p.Elements[idx]
	p.Elements = append(p.Elements[:idx], p.Elements[idx+1:]...)
	p.Elements = append(p.Elements, e)
	return nil
}

// SendToBack moves the element to the start of the paint order.
func (d *Document) SendToBack(i int, id string) error {
	p, idx, err := d.element("send to back", i, id)
	if err != nil {
		return err
	}
	e := p.Elements[idx]
	copy(p.Elements[1:idx+1], p.Elements[:idx])
	p.Elements[0] = e
	return nil
}

// MoveForward swaps the element with the one painted just above it. At the
// top it is a no-op.
func (d *Document) MoveForward(i int, id string) error {
	p, idx, err := d.element("move forward", i, id)
	if err != nil {
		return err
	}
	if idx < len(p.Elements)-1 {
		p.Elements[idx], p.Elements[idx+1] = p.Elements[idx+1], p.Elements[idx]
	}
	return nil
}

// MoveBackward swaps the element with the one painted just below it.
func (d *Document) MoveBackward(i int, id string) error {
	p, idx, err := d.element("move backward", i, id)
	if err != nil {
		return err
	}
	if idx > 0 {
		p.Elements[idx], p.Elements[idx-1] = p.Elements[idx-1], p.Elements[idx]
	}
	return nil
}

// DuplicateElement copies an element onto the top of the same page.
func (d *Document) DuplicateElement(i int, id string) (Element, error) {
	p, idx, err := d.element("duplicate element", i, id)
	if err != nil {
		return Element{}, err
	}
	c := Duplicate(p.Elements[idx])
	p.Elements = append(p.Elements, c)
	return c, nil
}

func (d *Document) AlignElement(i int, id string, mode AlignMode) (Element, error) {
	p, idx, err := d.element("align element", i, id)
	if err != nil {
		return Element{}, err
	}
	e := p.Elements[idx]
	if !Align(&e, mode, d.CanvasWidth, d.CanvasHeight) {
		return Element{}, opError("align element", ErrInvalidElement, "unknown alignment %q", mode)
	}
	p.Elements[idx] = e
	return e, nil
}

func cloneElements(src []Element) []Element {
	dst := make([]Element, len(src))
	copy(dst, src)
	return dst
}

func (p Page) clone() Page {
	c := p
	c.Elements = cloneElements(p.Elements)
	return c
}

// Clone returns a structural deep copy. Element holds only value fields, so
// copying the slices is enough.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.Pages != nil {
		c.Pages = make([]Page, len(d.Pages))
		for i, p := range d.Pages {
			c.Pages[i] = p.clone()
		}
	}
	return &c
}
