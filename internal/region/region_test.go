package region

import (
	"image"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xrect"
)

func TestAddRectKeepsRectanglesDisjoint(t *testing.T) {
	var r Region
	r.AddRect(image.Rect(0, 0, 100, 100))
	r.AddRect(image.Rect(50, 50, 150, 150))

	if got, want := r.Area(), 100*100*2-50*50; got != want {
		t.Fatalf("expected area %d, got %d", want, got)
	}
	rects := r.Rects()
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if rects[i].Overlaps(rects[j]) {
				t.Fatalf("rects %v and %v overlap", rects[i], rects[j])
			}
		}
	}
	if got, want := r.Bounds(), image.Rect(0, 0, 150, 150); got != want {
		t.Fatalf("expected bounds %v, got %v", want, got)
	}
}

func TestAddRectContainment(t *testing.T) {
	r := New(image.Rect(0, 0, 100, 100))
	r.AddRect(image.Rect(10, 10, 20, 20))
	if r.NumRects() != 1 {
		t.Fatalf("expected contained rect to be absorbed, got %d rects", r.NumRects())
	}

	r.AddRect(image.Rect(-10, -10, 200, 200))
	if r.NumRects() != 1 {
		t.Fatalf("expected covering rect to replace existing, got %d rects", r.NumRects())
	}
	if got, want := r.Rects()[0], image.Rect(-10, -10, 200, 200); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAddRectIgnoresEmpty(t *testing.T) {
	var r Region
	r.AddRect(image.Rect(5, 5, 5, 10))
	if !r.Empty() {
		t.Fatalf("expected empty region, got %v", r.Rects())
	}
}

func TestAdjacentRectsStayDistinct(t *testing.T) {
	var r Region
	for i := 0; i < 10; i++ {
		r.AddRect(image.Rect(i, 0, i+1, 1))
	}
	if r.NumRects() != 10 {
		t.Fatalf("expected 10 rects, got %d", r.NumRects())
	}
}

func TestIntersectAndSubtract(t *testing.T) {
	a := New(image.Rect(0, 0, 100, 100))
	b := New(image.Rect(50, 0, 150, 100))

	isect := a.Intersect(b)
	if !isect.Equal(New(image.Rect(50, 0, 100, 100))) {
		t.Fatalf("unexpected intersection %v", isect.Rects())
	}

	diff := a.Subtract(b)
	if !diff.Equal(New(image.Rect(0, 0, 50, 100))) {
		t.Fatalf("unexpected difference %v", diff.Rects())
	}

	hole := a.SubtractRect(image.Rect(25, 25, 75, 75))
	if got, want := hole.Area(), 100*100-50*50; got != want {
		t.Fatalf("expected area %d, got %d", want, got)
	}
	if hole.Overlaps(image.Rect(30, 30, 40, 40)) {
		t.Fatalf("expected hole to be uncovered")
	}
}

func TestEqualIgnoresSplit(t *testing.T) {
	whole := New(image.Rect(0, 0, 10, 10))
	split := New(image.Rect(0, 0, 5, 10), image.Rect(5, 0, 10, 10))
	if !whole.Equal(split) {
		t.Fatalf("expected regions to be equal")
	}
	if whole.Equal(New(image.Rect(0, 0, 10, 9))) {
		t.Fatalf("expected regions to differ")
	}
}

func TestTranslate(t *testing.T) {
	r := New(image.Rect(0, 0, 10, 10)).Translate(5, -5)
	if got, want := r.Bounds(), image.Rect(5, -5, 15, 5); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestContains(t *testing.T) {
	r := New(image.Rect(0, 0, 5, 10), image.Rect(5, 0, 10, 10))
	if !r.Contains(image.Rect(2, 2, 8, 8)) {
		t.Fatalf("expected rect spanning both pieces to be contained")
	}
	if r.Contains(image.Rect(8, 8, 12, 12)) {
		t.Fatalf("expected partially outside rect not to be contained")
	}
}

func TestXRectangleConversion(t *testing.T) {
	rect := image.Rect(-20, 10, 80, 60)
	x := ToXRectangle(rect)
	want := xproto.Rectangle{X: -20, Y: 10, Width: 100, Height: 50}
	if x != want {
		t.Fatalf("expected %+v, got %+v", want, x)
	}
	if back := FromXRectangle(x); back != rect {
		t.Fatalf("expected %v, got %v", rect, back)
	}
	if got := FromXRect(ToXRect(rect)); got != rect {
		t.Fatalf("expected %v, got %v", rect, got)
	}
}

func TestSubtractRectPiecesAreDisjoint(t *testing.T) {
	outer := image.Rect(0, 0, 100, 100)
	hole := image.Rect(40, 40, 60, 60)
	want := 100*100 - 20*20

	pieces := subtractRect(outer, hole)
	if len(pieces) != 4 {
		t.Fatalf("expected 4 pieces around a hole, got %v", pieces)
	}
	area := 0
	for i, p := range pieces {
		area += p.Dx() * p.Dy()
		for _, q := range pieces[i+1:] {
			if p.Overlaps(q) {
				t.Fatalf("pieces %v and %v overlap", p, q)
			}
		}
	}
	if area != want {
		t.Fatalf("expected area %d, got %d", want, area)
	}

	// xrect.Subtract covers the same pixels with overlapping pieces.
	area = 0
	for _, p := range xrect.Subtract(ToXRect(outer), ToXRect(hole)) {
		area += p.Width() * p.Height()
	}
	if area <= want {
		t.Fatalf("expected overlapping xrect pieces to cover more than %d, got %d", want, area)
	}
}
