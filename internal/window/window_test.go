package window

import (
	"image"
	"testing"

	"github.com/1broseidon/compote/internal/region"
	"github.com/google/go-cmp/cmp"
)

type recordingSink struct {
	regions []region.Region
}

func (s *recordingSink) AddRegion(r region.Region) {
	s.regions = append(s.regions, r)
}

func (s *recordingSink) rects() []image.Rectangle {
	var out []image.Rectangle
	for _, r := range s.regions {
		out = append(out, r.Rects()...)
	}
	return out
}

type screenOutputs image.Rectangle

func (o screenOutputs) Intersects(r image.Rectangle) bool {
	return image.Rectangle(o).Overlaps(r)
}

var screen = screenOutputs(image.Rect(0, 0, 1920, 1080))

func newMapped(id ID, geom Geometry) *Window {
	w := New(id, geom)
	w.Mapped = true
	return w
}

func TestInitialDamageCoversWholeWindow(t *testing.T) {
	sink := &recordingSink{}
	tr := NewTracker(sink, screen, nil)
	w := newMapped(1, Geometry{X: 100, Y: 50, Width: 200, Height: 100, Border: 2})
	w.Output = Extents{Left: 5, Right: 5, Top: 20, Bottom: 5}

	tr.ReportDamage(w, image.Rect(0, 0, 1, 1))

	if !w.Damaged {
		t.Fatalf("expected window to be marked damaged")
	}
	want := []image.Rectangle{image.Rect(95, 30, 309, 159)}
	if diff := cmp.Diff(want, sink.rects()); diff != "" {
		t.Fatalf("damage mismatch (-want +got):\n%s", diff)
	}
}

func TestSubsequentDamageTranslatesWithBorder(t *testing.T) {
	sink := &recordingSink{}
	tr := NewTracker(sink, screen, nil)
	w := newMapped(1, Geometry{X: 100, Y: 50, Width: 200, Height: 100, Border: 3})
	w.Damaged = true

	tr.ReportDamage(w, image.Rect(10, 20, 30, 40))

	want := []image.Rectangle{image.Rect(113, 73, 133, 93)}
	if diff := cmp.Diff(want, sink.rects()); diff != "" {
		t.Fatalf("damage mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, w.Dirty()); diff != "" {
		t.Fatalf("dirty mismatch (-want +got):\n%s", diff)
	}
}

func TestDamageDroppedForUnpaintableWindows(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Window)
	}{
		{name: "unredirected", mutate: func(w *Window) { w.Redirected = false }},
		{name: "bind failed", mutate: func(w *Window) { w.BindFailed = true }},
		{name: "destroyed", mutate: func(w *Window) { w.Destroyed = true }},
	}
	for _, tt := range tests {
		sink := &recordingSink{}
		tr := NewTracker(sink, screen, nil)
		w := newMapped(1, Geometry{Width: 10, Height: 10})
		tt.mutate(w)
		tr.ReportDamage(w, image.Rect(0, 0, 5, 5))
		if len(sink.regions) != 0 {
			t.Fatalf("%s: expected no damage, got %v", tt.name, sink.rects())
		}
	}
}

func TestInitialDamageUpdatesInvisible(t *testing.T) {
	tr := NewTracker(&recordingSink{}, screen, nil)
	w := newMapped(1, Geometry{X: -500, Y: -500, Width: 100, Height: 100})
	tr.ReportDamage(w, image.Rect(0, 0, 1, 1))
	if !w.Invisible {
		t.Fatalf("expected offscreen window to be invisible")
	}
}

func TestDirtyListIsBounded(t *testing.T) {
	tr := NewTracker(&recordingSink{}, screen, nil)
	w := newMapped(1, Geometry{Width: 1000, Height: 1000})
	w.Damaged = true
	for i := 0; i < MaxDirtyRects+10; i++ {
		tr.ReportDamage(w, image.Rect(i*2, 0, i*2+1, 1))
	}
	if len(w.Dirty()) > MaxDirtyRects {
		t.Fatalf("expected at most %d dirty rects, got %d", MaxDirtyRects, len(w.Dirty()))
	}
}

func TestInvalidateOutputExtents(t *testing.T) {
	sink := &recordingSink{}
	tr := NewTracker(sink, screen, nil)
	w := newMapped(1, Geometry{X: 100, Y: 100, Width: 100, Height: 50})
	w.Output = Extents{Left: 10, Right: 0, Top: 5, Bottom: 0}

	tr.InvalidateOutputExtents(w)

	got := region.New(sink.rects()...)
	want := region.New(
		image.Rect(90, 95, 200, 100),
		image.Rect(90, 100, 100, 150),
	)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want.Rects(), got.Rects())
	}
}

func TestExtentBandsSkipsEmptySides(t *testing.T) {
	bands := ExtentBands(image.Rect(0, 0, 10, 10), Extents{Top: 2})
	want := []image.Rectangle{image.Rect(0, -2, 10, 0)}
	if diff := cmp.Diff(want, bands); diff != "" {
		t.Fatalf("bands mismatch (-want +got):\n%s", diff)
	}
	if bands := ExtentBands(image.Rect(0, 0, 10, 10), Extents{Left: -4}); len(bands) != 0 {
		t.Fatalf("expected no bands for negative inset, got %v", bands)
	}
}

func TestEffectiveType(t *testing.T) {
	tests := []struct {
		name         string
		wmType       Type
		state        State
		transientFor ID
		or           bool
		want         Type
	}{
		{name: "unknown managed is normal", wmType: TypeUnknown, want: TypeNormal},
		{name: "unknown override stays unknown", wmType: TypeUnknown, or: true, want: TypeUnknown},
		{name: "fullscreen state", wmType: TypeNormal, state: StateFullscreen, want: TypeFullscreen},
		{name: "transient normal is dialog", wmType: TypeNormal, transientFor: 7, want: TypeDialog},
		{name: "dock below is normal", wmType: TypeDock, state: StateBelow, want: TypeNormal},
		{name: "modal dialog", wmType: TypeDialog, state: StateModal, want: TypeModalDialog},
	}
	for _, tt := range tests {
		if got := EffectiveType(tt.wmType, tt.state, tt.transientFor, tt.or); got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestFromEWMH(t *testing.T) {
	if got := TypeFromEWMH([]string{"_KDE_NET_WM_WINDOW_TYPE_OVERRIDE", "_NET_WM_WINDOW_TYPE_DOCK"}); got != TypeDock {
		t.Fatalf("expected dock, got %v", got)
	}
	if got := StateFromEWMH([]string{"_NET_WM_STATE_ABOVE", "_NET_WM_STATE_FULLSCREEN"}); got != StateAbove|StateFullscreen {
		t.Fatalf("unexpected state %v", got)
	}
}

func TestApplyReportsChanges(t *testing.T) {
	w := New(1, Geometry{Width: 10, Height: 10})
	p := DefaultProperties()
	p.Opacity = OpacityFromFraction(0.5)
	p.State = StateAbove

	changes := w.Apply(p)
	if changes&ChangedPaint == 0 || changes&ChangedStacking == 0 {
		t.Fatalf("expected paint and stacking changes, got %b", changes)
	}
	if changes&ChangedExtents != 0 {
		t.Fatalf("expected no extents change, got %b", changes)
	}
	if w.Opaque() {
		t.Fatalf("expected half transparent window not to be opaque")
	}
	if w.Apply(p) != 0 {
		t.Fatalf("expected no changes on reapply")
	}
}

func TestOpacityFromFraction(t *testing.T) {
	if got := OpacityFromFraction(1.2); got != MaxAttrib {
		t.Fatalf("expected max, got %d", got)
	}
	if got := OpacityFromFraction(-1); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := OpacityFromFraction(0.5); got != 32768 {
		t.Fatalf("expected 32768, got %d", got)
	}
}
