// Package document holds the design model: elements placed on pages of a
// fixed-size canvas measured in inches.
package document

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"
)

type ElementType string

const (
	TypeText    ElementType = "text"
	TypeImage   ElementType = "image"
	TypeClipart ElementType = "clipart"
	TypeShape   ElementType = "shape"
)

const (
	// MinElementSize is the smallest width or height an element can have, in inches.
	MinElementSize = 0.1
	// DuplicateOffset shifts a duplicated element so the copy is visible.
	DuplicateOffset = 0.25
)

// Named shapes understood by the renderers. ShapeCustom uses SVGPath.
const (
	ShapeRectangle = "rectangle"
	ShapeSquare    = "square"
	ShapeCircle    = "circle"
	ShapeEllipse   = "ellipse"
	ShapeTriangle  = "triangle"
	ShapeStar      = "star"
	ShapeDiamond   = "diamond"
	ShapePentagon  = "pentagon"
	ShapeHexagon   = "hexagon"
	ShapeHeart     = "heart"
	ShapeArrow     = "arrow"
	ShapeLine      = "line"
	ShapeCustom    = "custom"
)

type (
	// Element is a single placeable object. Type selects which of the variant
	// fields are meaningful. Position and size are in inches, x/y is the
	// top-left corner of the unrotated box.
	Element struct {
		ID       string      `json:"id"`
		Type     ElementType `json:"type"`
		X        float64     `json:"x"`
		Y        float64     `json:"y"`
		Width    float64     `json:"width"`
		Height   float64     `json:"height"`
		Rotation float64     `json:"rotation"`
		Locked   bool        `json:"locked"`
		Visible  bool        `json:"visible"`
		Opacity  float64     `json:"opacity"`

		// text
		Text       string  `json:"text,omitempty"`
		FontSize   float64 `json:"fontSize,omitempty"`
		FontFamily string  `json:"fontFamily,omitempty"`
		FontWeight string  `json:"fontWeight,omitempty"`
		FontStyle  string  `json:"fontStyle,omitempty"`
		TextAlign  string  `json:"textAlign,omitempty"`
		Color      string  `json:"color,omitempty"`

		// image and clipart
		Src string `json:"src,omitempty"`

		// shape
		Shape       string  `json:"shape,omitempty"`
		Fill        string  `json:"fill,omitempty"`
		Stroke      string  `json:"stroke,omitempty"`
		StrokeWidth float64 `json:"strokeWidth,omitempty"`
		SVGPath     string  `json:"svgPath,omitempty"`
		SVGViewBox  string  `json:"svgViewBox,omitempty"`
	}

	// Rect is an axis-aligned box in inches.
	Rect struct {
		X, Y, Width, Height float64
	}

	AlignMode string
)

const (
	AlignLeft    AlignMode = "left"
	AlignRight   AlignMode = "right"
	AlignTop     AlignMode = "top"
	AlignBottom  AlignMode = "bottom"
	AlignCenterH AlignMode = "center-horizontal"
	AlignCenterV AlignMode = "center-vertical"
	AlignCenter  AlignMode = "center"
)

// UnmarshalJSON fills the defaults older records omit: elements are visible
// and fully opaque unless stated otherwise.
func (e *Element) UnmarshalJSON(data []byte) error {
	type plain Element
	p := plain{Visible: true, Opacity: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Element(p)
	return nil
}

func NewID() string {
	return uuid.NewString()
}

func base(t ElementType, width, height float64) Element {
	return Element{
		ID:      NewID(),
		Type:    t,
		Width:   clampSize(width),
		Height:  clampSize(height),
		Visible: true,
		Opacity: 1,
	}
}

// NewText returns a text element with the default typography.
func NewText(text string, width, height, fontSize float64) Element {
	e := base(TypeText, width, height)
	e.Text = text
	e.FontSize = fontSize
	e.FontFamily = "Arial"
	e.FontWeight = "normal"
	e.FontStyle = "normal"
	e.TextAlign = "left"
	e.Color = "#000000"
	return e
}

func NewImage(src string, width, height float64) Element {
	e := base(TypeImage, width, height)
	e.Src = src
	return e
}

func NewClipart(src string, width, height float64) Element {
	e := base(TypeClipart, width, height)
	e.Src = src
	return e
}

func NewShape(shape string, width, height float64) Element {
	e := base(TypeShape, width, height)
	e.Shape = shape
	e.Fill = "#cccccc"
	e.Stroke = "#000000"
	e.StrokeWidth = 0
	return e
}

// Validate checks the invariants every stored element satisfies.
func (e Element) Validate() error {
	if e.ID == "" {
		return opError("validate", ErrInvalidElement, "empty id")
	}
	switch e.Type {
	case TypeText, TypeImage, TypeClipart, TypeShape:
	default:
		return opError("validate", ErrInvalidElement, "unknown type %q", e.Type)
	}
	if !(e.Width > 0) || !(e.Height > 0) {
		return opError("validate", ErrInvalidElement, "element %s has non-positive size %gx%g", e.ID, e.Width, e.Height)
	}
	for _, v := range []float64{e.X, e.Y, e.Width, e.Height, e.Rotation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return opError("validate", ErrInvalidElement, "element %s has non-finite geometry", e.ID)
		}
	}
	if !(e.Opacity >= 0 && e.Opacity <= 1) {
		return opError("validate", ErrInvalidElement, "element %s opacity %g out of range", e.ID, e.Opacity)
	}
	return nil
}

func clampSize(v float64) float64 {
	if math.IsNaN(v) || v < MinElementSize {
		return MinElementSize
	}
	return v
}

func clampOpacity(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (e *Element) Move(x, y float64) {
	e.X = x
	e.Y = y
}

// Resize sets the element size. Sizes below MinElementSize are clamped. With
// keepAspect the height follows the current width/height ratio.
func (e *Element) Resize(width, height float64, keepAspect bool) {
	width = clampSize(width)
	if keepAspect && e.Width > 0 && e.Height > 0 {
		height = width * e.Height / e.Width
	}
	e.Width = width
	e.Height = clampSize(height)
}

func (e *Element) Rotate(deg float64) {
	e.Rotation = deg
}

func (e *Element) SetOpacity(o float64) {
	e.Opacity = clampOpacity(o)
}

func (e Element) Bounds() Rect {
	return Rect{X: e.X, Y: e.Y, Width: e.Width, Height: e.Height}
}

func (e Element) Center() (float64, float64) {
	return e.X + e.Width/2, e.Y + e.Height/2
}

// Contains reports whether the point lies inside the element's rotated box.
func (e Element) Contains(x, y float64) bool {
	cx, cy := e.Center()
	if e.Rotation != 0 {
		a := -e.Rotation * math.Pi / 180
		dx, dy := x-cx, y-cy
		x = cx + dx*math.Cos(a) - dy*math.Sin(a)
		y = cy + dx*math.Sin(a) + dy*math.Cos(a)
	}
	return x >= e.X && x <= e.X+e.Width && y >= e.Y && y <= e.Y+e.Height
}

// Duplicate returns a copy with a fresh id, offset so both are visible.
func Duplicate(e Element) Element {
	c := e
	c.ID = NewID()
	c.X += DuplicateOffset
	c.Y += DuplicateOffset
	return c
}

// Align snaps the element flush to a canvas edge or centers it. Rotation is
// ignored; the unrotated box is aligned.
func Align(e *Element, mode AlignMode, canvasWidth, canvasHeight float64) bool {
	switch mode {
	case AlignLeft:
		e.X = 0
	case AlignRight:
		e.X = canvasWidth - e.Width
	case AlignTop:
		e.Y = 0
	case AlignBottom:
		e.Y = canvasHeight - e.Height
	case AlignCenterH:
		e.X = (canvasWidth - e.Width) / 2
	case AlignCenterV:
		e.Y = (canvasHeight - e.Height) / 2
	case AlignCenter:
		e.X = (canvasWidth - e.Width) / 2
		e.Y = (canvasHeight - e.Height) / 2
	default:
		return false
	}
	return true
}

// sanitize clamps geometry read from storage so every loaded element is
// renderable.
func (e *Element) sanitize() {
	if e.ID == "" {
		e.ID = NewID()
	}
	e.Width = clampSize(e.Width)
	e.Height = clampSize(e.Height)
	e.Opacity = clampOpacity(e.Opacity)
}
