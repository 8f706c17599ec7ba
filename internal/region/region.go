// Package region implements rectangle sets used for damage and clip
// computations. A Region is a list of pairwise disjoint, non-empty
// rectangles in screen coordinates.
package region

import (
	"image"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xrect"
)

// Region is a set of disjoint rectangles. The zero value is empty and
// ready to use. Regions are values; operations that return a Region never
// alias the receiver's storage.
type Region struct {
	rects []image.Rectangle
}

// New returns the union of rects.
func New(rects ...image.Rectangle) Region {
	var r Region
	for _, rect := range rects {
		r.AddRect(rect)
	}
	return r
}

// Empty reports whether the region covers no pixels.
func (r Region) Empty() bool {
	return len(r.rects) == 0
}

// NumRects returns the number of disjoint rectangles retained.
func (r Region) NumRects() int {
	return len(r.rects)
}

// Rects returns a copy of the rectangles making up the region.
func (r Region) Rects() []image.Rectangle {
	if len(r.rects) == 0 {
		return nil
	}
	out := make([]image.Rectangle, len(r.rects))
	copy(out, r.rects)
	return out
}

// Bounds returns the smallest rectangle containing the region.
func (r Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, rect := range r.rects {
		b = b.Union(rect)
	}
	return b
}

// Area returns the number of pixels covered.
func (r Region) Area() int {
	total := 0
	for _, rect := range r.rects {
		total += rect.Dx() * rect.Dy()
	}
	return total
}

// Clone returns an independent copy.
func (r Region) Clone() Region {
	return Region{rects: r.Rects()}
}

// Clear empties the region, keeping its storage.
func (r *Region) Clear() {
	r.rects = r.rects[:0]
}

// AddRect unions rect into the region.
func (r *Region) AddRect(rect image.Rectangle) {
	rect = rect.Canon()
	if rect.Empty() {
		return
	}

	pieces := []image.Rectangle{rect}
	kept := r.rects[:0:0]
	for _, existing := range r.rects {
		if rect.In(existing) {
			// Already covered.
			return
		}
		if existing.In(rect) {
			continue
		}
		kept = append(kept, existing)
		if !existing.Overlaps(rect) {
			continue
		}
		var next []image.Rectangle
		for _, p := range pieces {
			next = append(next, subtractRect(p, existing)...)
		}
		pieces = next
	}
	r.rects = append(kept, pieces...)
}

// Union adds every rectangle of o to the region.
func (r *Region) Union(o Region) {
	for _, rect := range o.rects {
		r.AddRect(rect)
	}
}

// IntersectRect returns the part of the region inside rect.
func (r Region) IntersectRect(rect image.Rectangle) Region {
	var out Region
	for _, existing := range r.rects {
		if isect := existing.Intersect(rect); !isect.Empty() {
			out.rects = append(out.rects, isect)
		}
	}
	return out
}

// Intersect returns the pixels covered by both regions.
func (r Region) Intersect(o Region) Region {
	var out Region
	for _, a := range r.rects {
		for _, b := range o.rects {
			if isect := a.Intersect(b); !isect.Empty() {
				out.rects = append(out.rects, isect)
			}
		}
	}
	return out
}

// SubtractRect returns the region minus rect.
func (r Region) SubtractRect(rect image.Rectangle) Region {
	var out Region
	for _, existing := range r.rects {
		out.rects = append(out.rects, subtractRect(existing, rect)...)
	}
	return out
}

// Subtract returns the pixels of r not covered by o.
func (r Region) Subtract(o Region) Region {
	out := r.Clone()
	for _, rect := range o.rects {
		out = out.SubtractRect(rect)
		if out.Empty() {
			break
		}
	}
	return out
}

// Translate returns the region moved by (dx, dy).
func (r Region) Translate(dx, dy int) Region {
	out := Region{rects: make([]image.Rectangle, len(r.rects))}
	delta := image.Pt(dx, dy)
	for i, rect := range r.rects {
		out.rects[i] = rect.Add(delta)
	}
	return out
}

// Overlaps reports whether any pixel of rect is inside the region.
func (r Region) Overlaps(rect image.Rectangle) bool {
	for _, existing := range r.rects {
		if existing.Overlaps(rect) {
			return true
		}
	}
	return false
}

// Contains reports whether rect is fully covered by the region.
func (r Region) Contains(rect image.Rectangle) bool {
	if rect.Empty() {
		return true
	}
	return New(rect).Subtract(r).Empty()
}

// Equal reports whether both regions cover the same pixels, regardless of
// how they are split into rectangles.
func (r Region) Equal(o Region) bool {
	if r.Area() != o.Area() {
		return false
	}
	return r.Subtract(o).Empty()
}

// subtractRect splits a minus b into at most four bands: the full-width
// slabs above and below b, then the pieces left and right of b. The side
// pieces only span b's rows; xrect.Subtract lets them run the full height,
// so its pieces overlap at the corners.
func subtractRect(a, b image.Rectangle) []image.Rectangle {
	isect := a.Intersect(b)
	if isect.Empty() {
		return []image.Rectangle{a}
	}
	out := make([]image.Rectangle, 0, 4)
	if a.Min.Y < isect.Min.Y {
		out = append(out, image.Rect(a.Min.X, a.Min.Y, a.Max.X, isect.Min.Y))
	}
	if isect.Max.Y < a.Max.Y {
		out = append(out, image.Rect(a.Min.X, isect.Max.Y, a.Max.X, a.Max.Y))
	}
	if a.Min.X < isect.Min.X {
		out = append(out, image.Rect(a.Min.X, isect.Min.Y, isect.Min.X, isect.Max.Y))
	}
	if isect.Max.X < a.Max.X {
		out = append(out, image.Rect(isect.Max.X, isect.Min.Y, a.Max.X, isect.Max.Y))
	}
	return out
}

// XRectangles converts the region for X requests. Coordinates are clamped
// to the int16/uint16 ranges of the wire format.
func (r Region) XRectangles() []xproto.Rectangle {
	out := make([]xproto.Rectangle, 0, len(r.rects))
	for _, rect := range r.rects {
		out = append(out, ToXRectangle(rect))
	}
	return out
}

// ToXRectangle converts rect to its wire form.
func ToXRectangle(rect image.Rectangle) xproto.Rectangle {
	return xproto.Rectangle{
		X:      clamp16(rect.Min.X),
		Y:      clamp16(rect.Min.Y),
		Width:  clampU16(rect.Dx()),
		Height: clampU16(rect.Dy()),
	}
}

// FromXRectangle converts a wire rectangle.
func FromXRectangle(rect xproto.Rectangle) image.Rectangle {
	return image.Rect(int(rect.X), int(rect.Y), int(rect.X)+int(rect.Width), int(rect.Y)+int(rect.Height))
}

// FromXRect converts an xgbutil rectangle.
func FromXRect(rect xrect.Rect) image.Rectangle {
	return image.Rect(rect.X(), rect.Y(), rect.X()+rect.Width(), rect.Y()+rect.Height())
}

// ToXRect converts rect into an xgbutil rectangle.
func ToXRect(rect image.Rectangle) xrect.Rect {
	return xrect.New(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
}

func clamp16(v int) int16 {
	switch {
	case v > 0x7fff:
		return 0x7fff
	case v < -0x8000:
		return -0x8000
	}
	return int16(v)
}

func clampU16(v int) uint16 {
	switch {
	case v > 0xffff:
		return 0xffff
	case v < 0:
		return 0
	}
	return uint16(v)
}
