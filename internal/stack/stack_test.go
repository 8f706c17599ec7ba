package stack

import (
	"image"
	"testing"

	"github.com/1broseidon/compote/internal/window"
	"github.com/google/go-cmp/cmp"
)

func mapped(id window.ID, typ window.Type) *window.Window {
	w := window.New(id, window.Geometry{Width: 100, Height: 100})
	w.Mapped = true
	w.Type = typ
	return w
}

// build inserts windows bottom to top.
func build(t *testing.T, windows ...*window.Window) *Stack {
	t.Helper()
	s := New(nil)
	above := window.None
	for _, w := range windows {
		s.Insert(w, above)
		above = w.ID
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("invalid stack after build: %v", err)
	}
	return s
}

func assertOrder(t *testing.T, s *Stack, want ...window.ID) {
	t.Helper()
	if err := s.Validate(); err != nil {
		t.Fatalf("invalid stack: %v", err)
	}
	if diff := cmp.Diff(want, s.IDs()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestInsert(t *testing.T) {
	s := New(nil)
	a := mapped(1, window.TypeNormal)
	b := mapped(2, window.TypeNormal)
	c := mapped(3, window.TypeNormal)

	s.Insert(a, window.None)
	s.Insert(b, window.None)
	assertOrder(t, s, 2, 1)

	s.Insert(c, 2)
	assertOrder(t, s, 2, 3, 1)

	// Moving an existing window keeps a single list.
	s.Insert(b, 1)
	assertOrder(t, s, 3, 1, 2)

	// Unknown siblings place the window on top.
	d := mapped(4, window.TypeNormal)
	s.Insert(d, 99)
	assertOrder(t, s, 3, 1, 2, 4)

	// Restacking relative to itself keeps the position.
	s.Insert(a, 1)
	assertOrder(t, s, 3, 1, 2, 4)
}

func TestRemove(t *testing.T) {
	a, b, c := mapped(1, window.TypeNormal), mapped(2, window.TypeNormal), mapped(3, window.TypeNormal)
	s := build(t, a, b, c)

	s.Remove(b)
	assertOrder(t, s, 1, 3)
	s.Remove(c)
	assertOrder(t, s, 1)
	s.Remove(a)
	assertOrder(t, s)
	if s.Top() != nil || s.Bottom() != nil {
		t.Fatalf("expected empty stack")
	}
}

func TestDockStaysAboveNormal(t *testing.T) {
	dock := mapped(1, window.TypeDock)
	normal := mapped(2, window.TypeNormal)
	s := build(t, dock, normal)

	s.Raise(normal)
	assertOrder(t, s, 2, 1)

	s.UpdateLayer(dock)
	assertOrder(t, s, 2, 1)
}

func TestRaisedDockGoesAboveNormal(t *testing.T) {
	dock := mapped(1, window.TypeDock)
	normal := mapped(2, window.TypeNormal)
	s := build(t, dock, normal)

	s.Raise(dock)
	assertOrder(t, s, 2, 1)
}

func TestFullscreenLayer(t *testing.T) {
	fs := mapped(1, window.TypeFullscreen)
	normal := mapped(2, window.TypeNormal)
	dock := mapped(3, window.TypeDock)
	s := build(t, fs, normal, dock)

	s.Raise(normal)
	assertOrder(t, s, 2, 1, 3)

	// The active fullscreen window is raised above the rest of its layer.
	s.SetActive(fs.ID)
	s.Raise(fs)
	assertOrder(t, s, 2, 3, 1)
}

func TestDesktopStaysAtBottom(t *testing.T) {
	normal := mapped(1, window.TypeNormal)
	desktop := mapped(2, window.TypeDesktop)
	s := build(t, normal, desktop)

	s.Raise(desktop)
	assertOrder(t, s, 2, 1)

	s.Lower(normal)
	assertOrder(t, s, 2, 1)
}

func TestAboveAndBelowHints(t *testing.T) {
	above := mapped(1, window.TypeNormal)
	above.State = window.StateAbove
	below := mapped(2, window.TypeNormal)
	below.State = window.StateBelow
	plain := mapped(3, window.TypeNormal)
	s := build(t, above, plain, below)

	s.UpdateLayer(above)
	s.UpdateLayer(below)
	s.Raise(plain)
	assertOrder(t, s, 2, 3, 1)
}

func TestRaiseCarriesTransient(t *testing.T) {
	w2 := mapped(2, window.TypeNormal)
	w1 := mapped(1, window.TypeDialog)
	w1.TransientFor = w2.ID
	other := mapped(3, window.TypeNormal)
	s := build(t, w1, w2, other)

	s.Raise(w2)
	assertOrder(t, s, 3, 2, 1)
	if w2.Next != w1 {
		t.Fatalf("expected transient directly above its parent")
	}
}

func TestRaiseTransientRaisesFamily(t *testing.T) {
	parent := mapped(1, window.TypeNormal)
	first := mapped(2, window.TypeDialog)
	first.TransientFor = parent.ID
	second := mapped(3, window.TypeDialog)
	second.TransientFor = parent.ID
	other := mapped(4, window.TypeNormal)
	s := build(t, parent, first, second, other)

	s.Raise(first)
	assertOrder(t, s, 4, 1, 3, 2)
}

func TestTransientChain(t *testing.T) {
	a := mapped(1, window.TypeNormal)
	b := mapped(2, window.TypeDialog)
	b.TransientFor = a.ID
	c := mapped(3, window.TypeDialog)
	c.TransientFor = b.ID
	x := mapped(4, window.TypeNormal)
	s := build(t, c, b, a, x)

	s.Raise(a)
	assertOrder(t, s, 4, 1, 2, 3)

	s.Lower(c)
	assertOrder(t, s, 1, 2, 3, 4)
}

func TestTransientCycleTerminates(t *testing.T) {
	a := mapped(1, window.TypeDialog)
	b := mapped(2, window.TypeDialog)
	a.TransientFor = b.ID
	b.TransientFor = a.ID
	x := mapped(3, window.TypeNormal)
	s := build(t, a, x, b)

	s.Raise(a)
	s.Lower(b)
	s.UpdateLayer(x)
	if err := s.Validate(); err != nil {
		t.Fatalf("invalid stack: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 windows, got %d", s.Len())
	}
}

func TestGroupTransientFollowsGroup(t *testing.T) {
	main := mapped(1, window.TypeNormal)
	main.ClientLeader = 100
	toolbox := mapped(2, window.TypeUtility)
	toolbox.ClientLeader = 100
	other := mapped(3, window.TypeNormal)
	s := build(t, toolbox, main, other)

	s.Raise(main)
	assertOrder(t, s, 3, 1, 2)
}

func TestUnmappedAndOverrideRedirectAreIgnored(t *testing.T) {
	normal := mapped(1, window.TypeNormal)
	hidden := mapped(2, window.TypeNormal)
	hidden.Mapped = false
	menu := mapped(3, window.TypeUnknown)
	menu.OverrideRedirect = true
	dock := mapped(4, window.TypeDock)
	s := build(t, dock, normal, hidden, menu)

	s.Raise(normal)
	assertOrder(t, s, 1, 4, 2, 3)
}

func TestFindSiblingBelow(t *testing.T) {
	a := mapped(1, window.TypeNormal)
	b := mapped(2, window.TypeNormal)
	dock := mapped(3, window.TypeDock)
	s := build(t, a, b, dock)

	if got := s.FindSiblingBelow(a, false); got != b {
		t.Fatalf("expected window 2, got %v", got)
	}
	if got := s.FindLowestSiblingBelow(b); got != nil {
		t.Fatalf("expected bottom, got window %d", got.ID)
	}
	if got := s.FindLowestSiblingBelow(dock); got != b {
		t.Fatalf("expected dock to stop above window 2, got %v", got)
	}
}

func TestSyncOrder(t *testing.T) {
	a, b, c := mapped(1, window.TypeNormal), mapped(2, window.TypeNormal), mapped(3, window.TypeNormal)
	gone := mapped(4, window.TypeNormal)
	gone.Destroyed = true
	s := build(t, a, gone, b, c)

	if !s.SyncOrder([]window.ID{3, 1, 2, 99}) {
		t.Fatalf("expected order change")
	}
	assertOrder(t, s, 3, 1, 4, 2)

	if s.SyncOrder([]window.ID{3, 1, 2}) {
		t.Fatalf("expected no change")
	}
}

func TestPaintListCarriesInvisible(t *testing.T) {
	a, b := mapped(1, window.TypeNormal), mapped(2, window.TypeNormal)
	b.Invisible = true
	s := build(t, a, b)

	list := s.PaintList()
	if len(list) != 2 || list[0].Window != a || list[1].Window != b {
		t.Fatalf("unexpected paint list %+v", list)
	}
	if list[0].Invisible || !list[1].Invisible {
		t.Fatalf("unexpected invisible flags %+v", list)
	}
}

func TestOverlay(t *testing.T) {
	screen := image.Rect(0, 0, 100, 100)

	base := mapped(1, window.TypeNormal)
	base.Damaged = true
	video := mapped(2, window.TypeFullscreen)
	video.Damaged = true
	tooltip := mapped(3, window.TypeTooltip)
	tooltip.Invisible = true
	s := build(t, base, video, tooltip)

	if got := Overlay(s.PaintList(), screen); got != video {
		t.Fatalf("expected fullscreen window as overlay, got %v", got)
	}

	video.Output = window.Extents{Top: 10}
	if got := Overlay(s.PaintList(), screen); got != nil {
		t.Fatalf("expected decorated window not to be an overlay")
	}

	video.Output = window.Extents{}
	video.ARGB = true
	if got := Overlay(s.PaintList(), screen); got != nil {
		t.Fatalf("expected translucent window not to be an overlay")
	}

	video.ARGB = false
	video.Server.Width = 50
	if got := Overlay(s.PaintList(), screen); got != nil {
		t.Fatalf("expected partial window not to be an overlay")
	}
}
