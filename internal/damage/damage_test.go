package damage

import (
	"image"
	"testing"

	"github.com/1broseidon/compote/internal/region"
	"github.com/google/go-cmp/cmp"
)

var screen = image.Rect(0, 0, 1920, 1080)

func TestSingleRectIsReturnedUnchanged(t *testing.T) {
	a := NewAccumulator(screen)
	a.AddRect(image.Rect(0, 0, 100, 100))

	got, mask := a.ConsumeAndClear()
	if mask != MaskRegion {
		t.Fatalf("expected mask %v, got %v", MaskRegion, mask)
	}
	if diff := cmp.Diff([]image.Rectangle{image.Rect(0, 0, 100, 100)}, got.Rects()); diff != "" {
		t.Fatalf("region mismatch (-want +got):\n%s", diff)
	}
}

func TestManyRectsCollapseToScreen(t *testing.T) {
	a := NewAccumulator(screen)
	for i := 0; i < 150; i++ {
		x := (i % 50) * 4
		y := (i / 50) * 4
		a.AddRegion(region.New(image.Rect(x, y, x+1, y+1)))
	}

	if got := a.Mask(); got&MaskAll == 0 || got&MaskRegion != 0 {
		t.Fatalf("expected ALL without REGION, got %v", got)
	}

	got, mask := a.ConsumeAndClear()
	if mask != MaskAll {
		t.Fatalf("expected mask %v, got %v", MaskAll, mask)
	}
	if diff := cmp.Diff([]image.Rectangle{screen}, got.Rects()); diff != "" {
		t.Fatalf("region mismatch (-want +got):\n%s", diff)
	}
}

func TestCollapseIsOrderIndependent(t *testing.T) {
	rects := make([]image.Rectangle, 0, 120)
	for i := 0; i < 120; i++ {
		rects = append(rects, image.Rect(i*10, 500, i*10+5, 505))
	}

	forward := NewAccumulator(screen)
	for _, r := range rects {
		forward.AddRect(r)
	}
	backward := NewAccumulator(screen)
	for i := len(rects) - 1; i >= 0; i-- {
		backward.AddRect(rects[i])
	}
	batched := NewAccumulator(screen)
	batched.AddRegion(region.New(rects[:60]...))
	batched.AddRegion(region.New(rects[60:]...))

	for name, a := range map[string]*Accumulator{"forward": forward, "backward": backward, "batched": batched} {
		if a.Mask() != MaskAll {
			t.Fatalf("%s: expected ALL, got %v", name, a.Mask())
		}
	}
}

func TestAddRegionIgnoredAfterMarkAll(t *testing.T) {
	a := NewAccumulator(screen)
	a.MarkAll()
	a.AddRect(image.Rect(0, 0, 10, 10))
	if a.Mask() != MaskAll {
		t.Fatalf("expected ALL only, got %v", a.Mask())
	}
	if !a.Region().Empty() {
		t.Fatalf("expected empty fine region, got %v", a.Region().Rects())
	}
}

func TestMarkAllClearsRegion(t *testing.T) {
	a := NewAccumulator(screen)
	a.AddRect(image.Rect(0, 0, 10, 10))
	a.MarkAll()
	if a.Mask()&MaskRegion != 0 {
		t.Fatalf("expected REGION cleared, got %v", a.Mask())
	}
}

func TestConsumeIsIdempotent(t *testing.T) {
	a := NewAccumulator(screen)
	a.AddRect(image.Rect(10, 10, 20, 20))
	a.MarkPending()
	a.ConsumeAndClear()

	got, mask := a.ConsumeAndClear()
	if mask != 0 {
		t.Fatalf("expected empty mask, got %v", mask)
	}
	if !got.Empty() {
		t.Fatalf("expected empty region, got %v", got.Rects())
	}
}

func TestConsumeClipsToScreen(t *testing.T) {
	a := NewAccumulator(image.Rect(0, 0, 3840, 2160))
	a.AddRect(image.Rect(1800, 1000, 2000, 1200))
	a.Resize(screen)

	got, mask := a.ConsumeAndClear()
	if mask != MaskRegion {
		t.Fatalf("expected REGION, got %v", mask)
	}
	if diff := cmp.Diff([]image.Rectangle{image.Rect(1800, 1000, 1920, 1080)}, got.Rects()); diff != "" {
		t.Fatalf("region mismatch (-want +got):\n%s", diff)
	}
}

func TestConsumeDropsOffscreenDamage(t *testing.T) {
	a := NewAccumulator(screen)
	a.AddRect(image.Rect(-50, -50, -10, -10))

	got, mask := a.ConsumeAndClear()
	if mask&(MaskRegion|MaskAll) != 0 {
		t.Fatalf("expected no paint bits, got %v", mask)
	}
	if !got.Empty() {
		t.Fatalf("expected empty region, got %v", got.Rects())
	}
}

func TestConsumeUpgradesFullScreenRegion(t *testing.T) {
	a := NewAccumulator(screen)
	a.AddRect(image.Rect(0, 0, 960, 1080))
	a.AddRect(image.Rect(960, 0, 1920, 1080))

	got, mask := a.ConsumeAndClear()
	if mask != MaskAll {
		t.Fatalf("expected ALL, got %v", mask)
	}
	if !got.Equal(region.New(screen)) {
		t.Fatalf("expected full screen, got %v", got.Rects())
	}
}

func TestWakeOnlyOnIdleTransition(t *testing.T) {
	a := NewAccumulator(screen)
	wakes := 0
	a.SetWaker(func() { wakes++ })

	a.AddRect(image.Rect(0, 0, 10, 10))
	a.AddRect(image.Rect(20, 20, 30, 30))
	a.MarkAll()
	if wakes != 1 {
		t.Fatalf("expected 1 wake, got %d", wakes)
	}

	a.ConsumeAndClear()
	a.MarkAll()
	if wakes != 2 {
		t.Fatalf("expected 2 wakes, got %d", wakes)
	}
}

func TestMarkPendingDoesNotWake(t *testing.T) {
	a := NewAccumulator(screen)
	wakes := 0
	a.SetWaker(func() { wakes++ })
	a.MarkPending()
	if wakes != 0 {
		t.Fatalf("expected no wake, got %d", wakes)
	}
	if a.Mask() != MaskPending {
		t.Fatalf("expected PENDING, got %v", a.Mask())
	}
}

func TestMaskString(t *testing.T) {
	if got := (MaskAll | MaskPending).String(); got != "all|pending" {
		t.Fatalf("expected all|pending, got %q", got)
	}
	if got := Mask(0).String(); got != "none" {
		t.Fatalf("expected none, got %q", got)
	}
}

func TestDamageAfterPendingWakes(t *testing.T) {
	a := NewAccumulator(screen)
	wakes := 0
	a.SetWaker(func() { wakes++ })
	a.MarkPending()
	a.AddRect(image.Rect(0, 0, 5, 5))
	if wakes != 1 {
		t.Fatalf("expected 1 wake, got %d", wakes)
	}
	if a.Mask() != MaskRegion|MaskPending {
		t.Fatalf("expected region|pending, got %v", a.Mask())
	}
}
