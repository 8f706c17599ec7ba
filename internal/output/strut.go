package output

import (
	"image"

	"github.com/BurntSushi/xgbutil/ewmh"
)

type insets struct {
	left   int
	right  int
	top    int
	bottom int
}

// WithStruts returns a copy of the set whose work areas exclude the space
// reserved by the given partial struts. Struts are expressed relative to the
// screen edges, as in _NET_WM_STRUT_PARTIAL.
func (s *Set) WithStruts(struts []ewmh.WmStrutPartial) *Set {
	out := &Set{screen: s.screen, overlapping: s.overlapping, devices: s.Devices()}
	for i := range out.devices {
		d := &out.devices[i]
		var acc insets
		for j := range struts {
			accumulateStrut(d.Rect, s.screen, &struts[j], &acc)
		}
		d.WorkArea = shrink(d.Rect, acc)
	}
	return out
}

// FullStrut expands a plain _NET_WM_STRUT into a partial strut spanning the
// whole screen edge.
func FullStrut(screen image.Rectangle, left, right, top, bottom uint) ewmh.WmStrutPartial {
	w := uint(max(screen.Dx()-1, 0))
	h := uint(max(screen.Dy()-1, 0))
	return ewmh.WmStrutPartial{
		Left:       left,
		Right:      right,
		Top:        top,
		Bottom:     bottom,
		LeftEndY:   h,
		RightEndY:  h,
		TopEndX:    w,
		BottomEndX: w,
	}
}

func accumulateStrut(mon, screen image.Rectangle, sp *ewmh.WmStrutPartial, acc *insets) {
	rootWidth := screen.Dx()
	rootHeight := screen.Dy()

	// Top strut: y=[0,Top), x=[TopStartX,TopEndX]
	if sp.Top > 0 {
		band := image.Rect(int(sp.TopStartX), 0, int(sp.TopEndX)+1, int(sp.Top))
		if isect := mon.Intersect(band); !isect.Empty() {
			acc.top = max(acc.top, isect.Dy())
		}
	}

	// Bottom strut: y=[rootHeight-Bottom,rootHeight), x=[BottomStartX,BottomEndX]
	if sp.Bottom > 0 {
		band := image.Rect(int(sp.BottomStartX), rootHeight-int(sp.Bottom), int(sp.BottomEndX)+1, rootHeight)
		if isect := mon.Intersect(band); !isect.Empty() {
			acc.bottom = max(acc.bottom, isect.Dy())
		}
	}

	// Left strut: x=[0,Left), y=[LeftStartY,LeftEndY]
	if sp.Left > 0 {
		band := image.Rect(0, int(sp.LeftStartY), int(sp.Left), int(sp.LeftEndY)+1)
		if isect := mon.Intersect(band); !isect.Empty() {
			acc.left = max(acc.left, isect.Dx())
		}
	}

	// Right strut: x=[rootWidth-Right,rootWidth), y=[RightStartY,RightEndY]
	if sp.Right > 0 {
		band := image.Rect(rootWidth-int(sp.Right), int(sp.RightStartY), rootWidth, int(sp.RightEndY)+1)
		if isect := mon.Intersect(band); !isect.Empty() {
			acc.right = max(acc.right, isect.Dx())
		}
	}
}

func shrink(rect image.Rectangle, in insets) image.Rectangle {
	out := image.Rect(rect.Min.X+in.left, rect.Min.Y+in.top, rect.Max.X-in.right, rect.Max.Y-in.bottom)
	if out.Dx() < 1 {
		out.Max.X = out.Min.X + 1
	}
	if out.Dy() < 1 {
		out.Max.Y = out.Min.Y + 1
	}
	return out
}
