package document

import (
	"errors"
	"reflect"
	"testing"
)

func ids(t *testing.T, d *Document, page int) []string {
	t.Helper()
	els, err := d.Elements(page)
	if err != nil {
		t.Fatalf("Elements(%d) failed: %v", page, err)
	}
	out := make([]string, len(els))
	for i, e := range els {
		out[i] = e.ID
	}
	return out
}

func fixture(t *testing.T) *Document {
	t.Helper()
	d := New(72, 36)
	for _, id := range []string{"e1", "e2", "e3"} {
		e := NewShape(ShapeRectangle, 2, 2)
		e.ID = id
		if _, err := d.AddElement(0, e); err != nil {
			t.Fatalf("AddElement() failed: %v", err)
		}
	}
	return d
}

func TestNewHasOnePage(t *testing.T) {
	d := New(72, 36)
	if d.PageCount() != 1 {
		t.Fatalf("PageCount() = %d, want 1", d.PageCount())
	}
	if d.PageLimit() != DefaultMaxPages {
		t.Errorf("PageLimit() = %d, want %d", d.PageLimit(), DefaultMaxPages)
	}
}

func TestAddPageLimit(t *testing.T) {
	d := New(72, 36)
	idx, err := d.AddPage("")
	if err != nil {
		t.Fatalf("AddPage() failed: %v", err)
	}
	if idx != 1 || d.Pages[1].Label != "Back" {
		t.Errorf("AddPage() = %d with label %q", idx, d.Pages[1].Label)
	}
	if _, err := d.AddPage("Extra"); !errors.Is(err, ErrMaxPages) {
		t.Errorf("AddPage() beyond limit = %v, want ErrMaxPages", err)
	}
	if d.PageCount() != 2 {
		t.Errorf("PageCount() = %d, want 2", d.PageCount())
	}

	wide := New(72, 36, WithMaxPages(4))
	for i := 0; i < 3; i++ {
		if _, err := wide.AddPage(""); err != nil {
			t.Fatalf("AddPage() %d failed: %v", i, err)
		}
	}
	if wide.Pages[3].Label != "Page 4" {
		t.Errorf("generated label = %q", wide.Pages[3].Label)
	}
}

func TestDeleteOnlyPageRejected(t *testing.T) {
	d := New(72, 36)
	err := d.DeletePage(0)
	if !errors.Is(err, ErrLastPage) {
		t.Errorf("DeletePage() = %v, want ErrLastPage", err)
	}
	if !IsValidation(err) {
		t.Error("IsValidation() = false for last page error")
	}
	if d.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", d.PageCount())
	}
}

func TestDeleteAndMovePage(t *testing.T) {
	d := New(72, 36, WithMaxPages(3))
	d.AddPage("B")
	d.AddPage("C")
	if err := d.MovePage(2, 0); err != nil {
		t.Fatalf("MovePage() failed: %v", err)
	}
	labels := []string{d.Pages[0].Label, d.Pages[1].Label, d.Pages[2].Label}
	if !reflect.DeepEqual(labels, []string{"C", "Front", "B"}) {
		t.Errorf("labels after move = %v", labels)
	}
	if err := d.DeletePage(1); err != nil {
		t.Fatalf("DeletePage() failed: %v", err)
	}
	if d.PageCount() != 2 || d.Pages[1].Label != "B" {
		t.Errorf("after delete: %d pages, second %q", d.PageCount(), d.Pages[1].Label)
	}
	if err := d.DeletePage(5); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("DeletePage(5) = %v, want ErrPageNotFound", err)
	}
}

func TestZOrder(t *testing.T) {
	tests := []struct {
		name string
		op   func(*Document) error
		want []string
	}{
		{"bring e1 to front", func(d *Document) error { return d.BringToFront(0, "e1") }, []string{"e2", "e3", "e1"}},
		{"send e3 to back", func(d *Document) error { return d.SendToBack(0, "e3") }, []string{"e3", "e1", "e2"}},
		{"front then back", func(d *Document) error {
			if err := d.BringToFront(0, "e1"); err != nil {
				return err
			}
			return d.SendToBack(0, "e3")
		}, []string{"e3", "e2", "e1"}},
		{"move e1 forward", func(d *Document) error { return d.MoveForward(0, "e1") }, []string{"e2", "e1", "e3"}},
		{"move e3 forward at top", func(d *Document) error { return d.MoveForward(0, "e3") }, []string{"e1", "e2", "e3"}},
		{"move e3 backward", func(d *Document) error { return d.MoveBackward(0, "e3") }, []string{"e1", "e3", "e2"}},
		{"move e1 backward at bottom", func(d *Document) error { return d.MoveBackward(0, "e1") }, []string{"e1", "e2", "e3"}},
		{"send middle to back", func(d *Document) error { return d.SendToBack(0, "e2") }, []string{"e2", "e1", "e3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := fixture(t)
			if err := tt.op(d); err != nil {
				t.Fatalf("operation failed: %v", err)
			}
			if got := ids(t, d, 0); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZOrderUnknownElement(t *testing.T) {
	d := fixture(t)
	if err := d.BringToFront(0, "missing"); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("BringToFront() = %v, want ErrElementNotFound", err)
	}
	if got := ids(t, d, 0); len(got) != 3 {
		t.Errorf("elements = %v", got)
	}
}

func TestAddElementValidation(t *testing.T) {
	d := fixture(t)
	bad := NewShape(ShapeCircle, 1, 1)
	bad.Width = 0
	if _, err := d.AddElement(0, bad); !errors.Is(err, ErrInvalidElement) {
		t.Errorf("AddElement() zero width = %v", err)
	}
	dup := NewShape(ShapeCircle, 1, 1)
	dup.ID = "e2"
	if _, err := d.AddElement(0, dup); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("AddElement() duplicate = %v", err)
	}
	anon := NewShape(ShapeCircle, 1, 1)
	anon.ID = ""
	added, err := d.AddElement(0, anon)
	if err != nil || added.ID == "" {
		t.Errorf("AddElement() without id = %+v, %v", added, err)
	}
	if _, err := d.AddElement(3, NewShape(ShapeCircle, 1, 1)); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("AddElement() on missing page = %v", err)
	}
}

func TestUpdateElement(t *testing.T) {
	d := fixture(t)
	e, err := d.UpdateElement(0, "e2", func(e *Element) {
		e.Move(3, 4)
		e.Rotate(45)
		e.ID = "hijack"
	})
	if err != nil {
		t.Fatalf("UpdateElement() failed: %v", err)
	}
	if e.ID != "e2" || e.X != 3 || e.Rotation != 45 {
		t.Errorf("UpdateElement() = %+v", e)
	}

	_, err = d.UpdateElement(0, "e2", func(e *Element) { e.Height = -1 })
	if !errors.Is(err, ErrInvalidElement) {
		t.Errorf("UpdateElement() invalid = %v", err)
	}
	stored, _ := d.Element(0, "e2")
	if stored.Height != 2 {
		t.Errorf("rejected update changed height to %v", stored.Height)
	}
}

func TestRemoveAndDuplicate(t *testing.T) {
	d := fixture(t)
	if err := d.RemoveElement(0, "e2"); err != nil {
		t.Fatalf("RemoveElement() failed: %v", err)
	}
	if got := ids(t, d, 0); !reflect.DeepEqual(got, []string{"e1", "e3"}) {
		t.Errorf("after remove = %v", got)
	}
	c, err := d.DuplicateElement(0, "e1")
	if err != nil {
		t.Fatalf("DuplicateElement() failed: %v", err)
	}
	if got := ids(t, d, 0); got[len(got)-1] != c.ID {
		t.Errorf("duplicate not on top: %v", got)
	}
}

func TestAlignElementUsesCanvas(t *testing.T) {
	d := fixture(t)
	e, err := d.AlignElement(0, "e1", AlignBottom)
	if err != nil {
		t.Fatalf("AlignElement() failed: %v", err)
	}
	if e.Y != 34 {
		t.Errorf("AlignElement() y = %v, want 34", e.Y)
	}
	if _, err := d.AlignElement(0, "e1", "nowhere"); err == nil {
		t.Error("AlignElement() accepted unknown mode")
	}
}

func TestSetElementsIsAtomic(t *testing.T) {
	d := fixture(t)
	a := NewText("a", 1, 1, 0.5)
	b := NewText("b", 1, 1, 0.5)
	b.ID = a.ID
	if err := d.SetElements(0, []Element{a, b}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("SetElements() duplicate = %v", err)
	}
	if got := ids(t, d, 0); len(got) != 3 {
		t.Errorf("rejected SetElements changed page: %v", got)
	}

	in := []Element{a}
	if err := d.SetElements(0, in); err != nil {
		t.Fatalf("SetElements() failed: %v", err)
	}
	in[0].Text = "changed"
	stored, _ := d.Element(0, a.ID)
	if stored.Text != "a" {
		t.Error("SetElements() aliased the caller's slice")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	d := fixture(t)
	c := d.Clone()
	if !reflect.DeepEqual(c, d) {
		t.Fatal("Clone() differs from original")
	}
	c.Pages[0].Elements[0].X = 99
	c.Pages[0].Label = "changed"
	if d.Pages[0].Elements[0].X == 99 || d.Pages[0].Label == "changed" {
		t.Error("mutating the clone changed the original")
	}
}

func TestPresets(t *testing.T) {
	d, err := NewFromPreset(ProductBanner)
	if err != nil {
		t.Fatalf("NewFromPreset() failed: %v", err)
	}
	if d.CanvasWidth != 72 || d.CanvasHeight != 36 || d.PageLimit() != 2 {
		t.Errorf("banner = %vx%v limit %d", d.CanvasWidth, d.CanvasHeight, d.PageLimit())
	}

	badge, _ := NewFromPreset(ProductNameBadge)
	if _, err := badge.AddPage(""); !errors.Is(err, ErrMaxPages) {
		t.Errorf("name badge AddPage() = %v, want ErrMaxPages", err)
	}

	if _, err := NewFromPreset("billboard"); err == nil {
		t.Error("NewFromPreset() accepted unknown product")
	}
	if len(Presets()) != 4 {
		t.Errorf("Presets() = %d entries", len(Presets()))
	}
}
