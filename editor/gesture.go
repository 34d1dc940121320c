package editor

import (
	"fmt"

	"design-studio/document"
)

type gestureKind int

const (
	gestureDrag gestureKind = iota + 1
	gestureResize
	gestureRotate
)

func (k gestureKind) String() string {
	switch k {
	case gestureDrag:
		return "drag"
	case gestureResize:
		return "resize"
	case gestureRotate:
		return "rotate"
	}
	return "unknown"
}

// gesture tracks one pointer interaction. Intermediate positions change the
// live document only; the single history commit happens when it ends.
type gesture struct {
	kind   gestureKind
	page   int
	id     string
	origin document.Element
}

func (s *Session) begin(kind gestureKind, id string) error {
	if s.gesture != nil {
		return fmt.Errorf("%w: %s", ErrGestureActive, s.gesture.kind)
	}
	e, err := s.unlocked(id)
	if err != nil {
		return err
	}
	s.gesture = &gesture{kind: kind, page: s.page, id: id, origin: e}
	s.selected = id
	return nil
}

func (s *Session) update(kind gestureKind, fn func(*document.Element)) (document.Element, error) {
	g := s.gesture
	if g == nil || g.kind != kind {
		return document.Element{}, fmt.Errorf("%w: %s", ErrNoGesture, kind)
	}
	return s.doc.UpdateElement(g.page, g.id, fn)
}

// end finishes the gesture and commits once if the element changed.
func (s *Session) end(kind gestureKind) (bool, error) {
	g := s.gesture
	if g == nil || g.kind != kind {
		return false, fmt.Errorf("%w: %s", ErrNoGesture, kind)
	}
	s.gesture = nil
	e, err := s.doc.Element(g.page, g.id)
	if err != nil {
		return false, err
	}
	if e == g.origin {
		return false, nil
	}
	s.commit()
	return true, nil
}

// CancelGesture puts the element back where the gesture started.
func (s *Session) CancelGesture() {
	g := s.gesture
	if g == nil {
		return
	}
	s.gesture = nil
	origin := g.origin
	_, _ = s.doc.UpdateElement(g.page, g.id, func(e *document.Element) { *e = origin })
}

func (s *Session) BeginDrag(id string) error {
	return s.begin(gestureDrag, id)
}

// DragTo moves the dragged element's top-left corner to (x, y).
func (s *Session) DragTo(x, y float64) (document.Element, error) {
	return s.update(gestureDrag, func(e *document.Element) { e.Move(x, y) })
}

// EndDrag reports whether the drag changed the document.
func (s *Session) EndDrag() (bool, error) {
	return s.end(gestureDrag)
}

func (s *Session) BeginResize(id string) error {
	return s.begin(gestureResize, id)
}

func (s *Session) ResizeTo(width, height float64, keepAspect bool) (document.Element, error) {
	return s.update(gestureResize, func(e *document.Element) { e.Resize(width, height, keepAspect) })
}

func (s *Session) EndResize() (bool, error) {
	return s.end(gestureResize)
}

func (s *Session) BeginRotate(id string) error {
	return s.begin(gestureRotate, id)
}

func (s *Session) RotateTo(deg float64) (document.Element, error) {
	return s.update(gestureRotate, func(e *document.Element) { e.Rotate(deg) })
}

func (s *Session) EndRotate() (bool, error) {
	return s.end(gestureRotate)
}
