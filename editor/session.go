// Package editor holds the interaction state of one design being edited: the
// current page, the selection, pointer gestures and the undo history.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"design-studio/document"
	"design-studio/history"
)

var (
	ErrLocked         = errors.New("element is locked")
	ErrCancelled      = errors.New("cancelled")
	ErrNoSelection    = errors.New("no element selected")
	ErrNoGesture      = errors.New("no gesture in progress")
	ErrGestureActive  = errors.New("another gesture is in progress")
	ErrNoCollaborator = errors.New("collaborator not configured")
)

// Session edits one document. It is not safe for concurrent use.
type Session struct {
	doc      *document.Document
	history  *history.History
	page     int
	selected string
	designID string
	gesture  *gesture

	repo      Repository
	pricer    Pricer
	templates TemplateSource
	uploader  Uploader
	limit     int
}

type Option func(*Session)

func WithRepository(r Repository) Option { return func(s *Session) { s.repo = r } }
func WithPricer(p Pricer) Option { return func(s *Session) { s.pricer = p } }
func WithTemplates(t TemplateSource) Option { return func(s *Session) { s.templates = t } }
func WithUploader(u Uploader) Option { return func(s *Session) { s.uploader = u } }
func WithHistoryLimit(limit int) Option { return func(s *Session) { s.limit = limit } }

// New starts a session on a copy of doc. The copy is history entry 0.
func New(doc *document.Document, opts ...Option) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	s.doc = doc.Clone()
	s.history = history.New(s.limit, s.doc)
	return s
}

// Document returns a copy of the current document.
func (s *Session) Document() *document.Document {
	return s.doc.Clone()
}

func (s *Session) Page() int { return s.page }
func (s *Session) DesignID() string { return s.designID }
func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }
func (s *Session) HistoryLen() int { return s.history.Len() }

// Selected returns the selected element id, if any.
func (s *Session) Selected() (string, bool) {
	s.reconcile()
	return s.selected, s.selected != ""
}

// Elements returns the elements of the current page in z-order.
func (s *Session) Elements() []document.Element {
	els, _ := s.doc.Elements(s.page)
	return els
}

// reconcile drops a selection that no longer points at an element of the
// current page and keeps the page index in range.
func (s *Session) reconcile() {
	if s.page >= s.doc.PageCount() {
		s.page = s.doc.PageCount() - 1
	}
	if s.page < 0 {
		s.page = 0
	}
	if s.selected != "" && s.doc.IndexOf(s.page, s.selected) < 0 {
		s.selected = ""
	}
}

func (s *Session) commit() {
	s.reconcile()
	s.history.Commit(s.doc)
}

// restore replaces the live document with a history snapshot.
func (s *Session) restore(d *document.Document) {
	s.doc = d
	s.gesture = nil
	s.reconcile()
}

func (s *Session) Undo() bool {
	d, ok := s.history.Undo()
	if ok {
		s.restore(d)
	}
	return ok
}

func (s *Session) Redo() bool {
	d, ok := s.history.Redo()
	if ok {
		s.restore(d)
	}
	return ok
}

// SelectPage makes page i current and clears the selection. A gesture in
// progress is reverted.
func (s *Session) SelectPage(i int) error {
	if _, err := s.doc.Page(i); err != nil {
		return err
	}
	s.CancelGesture()
	s.page = i
	s.selected = ""
	return nil
}

func (s *Session) AddPage(label string) (int, error) {
	s.CancelGesture()
	i, err := s.doc.AddPage(label)
	if err != nil {
		return 0, err
	}
	s.page = i
	s.selected = ""
	s.commit()
	return i, nil
}

func (s *Session) DeletePage(i int) error {
	s.CancelGesture()
	if err := s.doc.DeletePage(i); err != nil {
		return err
	}
	if s.page > i || s.page >= s.doc.PageCount() {
		s.page--
	}
	s.commit()
	return nil
}

// Select selects id on the current page. An empty id clears the selection.
func (s *Session) Select(id string) error {
	if id == "" {
		s.selected = ""
		return nil
	}
	if _, err := s.doc.Element(s.page, id); err != nil {
		return err
	}
	s.selected = id
	return nil
}

// HitTest returns the topmost visible element of the current page under the
// point, in inches.
func (s *Session) HitTest(x, y float64) (document.Element, bool) {
	els := s.Elements()
	for i := len(els) - 1; i >= 0; i-- {
		if els[i].Visible && els[i].Contains(x, y) {
			return els[i], true
		}
	}
	return document.Element{}, false
}

// AddElement places e on the current page, selects it and commits.
func (s *Session) AddElement(e document.Element) (document.Element, error) {
	added, err := s.doc.AddElement(s.page, e)
	if err != nil {
		return document.Element{}, err
	}
	s.selected = added.ID
	s.commit()
	return added, nil
}

func (s *Session) unlocked(id string) (document.Element, error) {
	e, err := s.doc.Element(s.page, id)
	if err != nil {
		return document.Element{}, err
	}
	if e.Locked {
		return document.Element{}, fmt.Errorf("%w: %s", ErrLocked, id)
	}
	return e, nil
}

// UpdateElement applies fn to an unlocked element of the current page and
// commits.
func (s *Session) UpdateElement(id string, fn func(*document.Element)) (document.Element, error) {
	if _, err := s.unlocked(id); err != nil {
		return document.Element{}, err
	}
	e, err := s.doc.UpdateElement(s.page, id, fn)
	if err != nil {
		return document.Element{}, err
	}
	s.commit()
	return e, nil
}

func (s *Session) selection() (string, error) {
	s.reconcile()
	if s.selected == "" {
		return "", ErrNoSelection
	}
	return s.selected, nil
}

// DeleteSelected removes the selected element. The selection becomes none.
func (s *Session) DeleteSelected() error {
	id, err := s.selection()
	if err != nil {
		return err
	}
	if _, err := s.unlocked(id); err != nil {
		return err
	}
	if err := s.doc.RemoveElement(s.page, id); err != nil {
		return err
	}
	s.commit()
	return nil
}

// DuplicateSelected copies the selected element on top and selects the copy.
func (s *Session) DuplicateSelected() (document.Element, error) {
	id, err := s.selection()
	if err != nil {
		return document.Element{}, err
	}
	dup, err := s.doc.DuplicateElement(s.page, id)
	if err != nil {
		return document.Element{}, err
	}
	s.selected = dup.ID
	s.commit()
	return dup, nil
}

func (s *Session) AlignSelected(mode document.AlignMode) error {
	id, err := s.selection()
	if err != nil {
		return err
	}
	if _, err := s.unlocked(id); err != nil {
		return err
	}
	if _, err := s.doc.AlignElement(s.page, id, mode); err != nil {
		return err
	}
	s.commit()
	return nil
}

func (s *Session) reorder(fn func(page int, id string) error) error {
	id, err := s.selection()
	if err != nil {
		return err
	}
	if err := fn(s.page, id); err != nil {
		return err
	}
	s.commit()
	return nil
}

func (s *Session) BringToFront() error { return s.reorder(s.doc.BringToFront) }
func (s *Session) SendToBack() error { return s.reorder(s.doc.SendToBack) }
func (s *Session) MoveForward() error { return s.reorder(s.doc.MoveForward) }
func (s *Session) MoveBackward() error { return s.reorder(s.doc.MoveBackward) }

// ToggleVisible flips visibility. Locked elements may still be hidden.
func (s *Session) ToggleVisible(id string) (document.Element, error) {
	e, err := s.doc.UpdateElement(s.page, id, func(e *document.Element) { e.Visible = !e.Visible })
	if err != nil {
		return document.Element{}, err
	}
	s.commit()
	return e, nil
}

func (s *Session) ToggleLock(id string) (document.Element, error) {
	e, err := s.doc.UpdateElement(s.page, id, func(e *document.Element) { e.Locked = !e.Locked })
	if err != nil {
		return document.Element{}, err
	}
	s.commit()
	return e, nil
}

// Load replaces the session document with the stored design id and resets
// history. A design that fails to decode leaves an empty page in place and
// returns the decode error.
func (s *Session) Load(ctx context.Context, id string) error {
	if s.repo == nil {
		return fmt.Errorf("%w: repository", ErrNoCollaborator)
	}
	data, err := s.repo.Load(ctx, id)
	if err != nil {
		return err
	}

	opts := []document.Option{
		document.WithCanvasSize(s.doc.CanvasWidth, s.doc.CanvasHeight),
		document.WithMaxPages(s.doc.PageLimit()),
		document.WithProductType(s.doc.ProductType),
	}
	d, decodeErr := document.DecodeOrEmpty(data, opts...)
	s.doc = d
	s.history.Reset(d)
	s.page, s.selected, s.gesture = 0, "", nil
	s.designID = id

	log := logrus.WithField("design_id", id)
	if decodeErr != nil {
		log.WithError(decodeErr).Warn("Stored design is unreadable, starting from an empty page")
		return decodeErr
	}
	log.WithField("pages", d.PageCount()).Debug("Design loaded into session")
	return nil
}

// Save stores the current document and remembers the id it was saved under.
func (s *Session) Save(ctx context.Context) (string, error) {
	if s.repo == nil {
		return "", fmt.Errorf("%w: repository", ErrNoCollaborator)
	}
	data, err := document.Encode(s.doc)
	if err != nil {
		return "", err
	}
	id, err := s.repo.Save(ctx, s.designID, data)
	if err != nil {
		return "", err
	}
	s.designID = id
	return id, nil
}

// Quote prices the current canvas size.
func (s *Session) Quote(ctx context.Context, material string, quantity int) (float64, error) {
	if s.pricer == nil {
		return 0, fmt.Errorf("%w: pricer", ErrNoCollaborator)
	}
	return s.pricer.Price(ctx, PriceRequest{
		ProductType: s.doc.ProductType,
		Material:    material,
		Width:       s.doc.CanvasWidth,
		Height:      s.doc.CanvasHeight,
		Quantity:    quantity,
	})
}

// ApplyTemplate replaces the current page's elements with the named template
// in one commit. When the page already has content, confirm is asked first
// and a false answer refuses the call with ErrCancelled.
func (s *Session) ApplyTemplate(ctx context.Context, name string, confirm func() bool) error {
	if s.templates == nil {
		return fmt.Errorf("%w: templates", ErrNoCollaborator)
	}
	els, err := s.templates.Template(ctx, name)
	if err != nil {
		return err
	}
	if len(s.Elements()) > 0 && (confirm == nil || !confirm()) {
		return ErrCancelled
	}

	fresh := make([]document.Element, len(els))
	for i, e := range els {
		e.ID = document.NewID()
		fresh[i] = e
	}
	if err := s.doc.SetElements(s.page, fresh); err != nil {
		return err
	}
	s.selected = ""
	s.gesture = nil
	s.commit()
	return nil
}

// AddUploadedImage uploads r and places an image element of the given size
// referencing the returned URL.
func (s *Session) AddUploadedImage(ctx context.Context, name string, r io.Reader, width, height float64) (document.Element, error) {
	if s.uploader == nil {
		return document.Element{}, fmt.Errorf("%w: uploader", ErrNoCollaborator)
	}
	url, err := s.uploader.Upload(ctx, name, r)
	if err != nil {
		return document.Element{}, err
	}
	return s.AddElement(document.NewImage(url, width, height))
}
