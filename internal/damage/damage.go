// Package damage accumulates the screen area that must be repainted on the
// next frame.
package damage

import (
	"image"
	"log/slog"
	"strings"

	"github.com/1broseidon/compote/internal/region"
)

// Mask describes what kind of damage is pending.
type Mask uint8

const (
	// MaskRegion means the accumulated region holds the damage.
	MaskRegion Mask = 1 << iota
	// MaskAll means the whole screen is dirty. Never set with MaskRegion.
	MaskAll
	// MaskPending notes that damage is expected soon. Advisory only.
	MaskPending
)

// DefaultCollapseThreshold is the number of disjoint rectangles above which
// region tracking gives up and the whole screen is repainted.
const DefaultCollapseThreshold = 100

func (m Mask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	if m&MaskRegion != 0 {
		parts = append(parts, "region")
	}
	if m&MaskAll != 0 {
		parts = append(parts, "all")
	}
	if m&MaskPending != 0 {
		parts = append(parts, "pending")
	}
	return strings.Join(parts, "|")
}

// Accumulator merges damage reports into one screen-wide region.
type Accumulator struct {
	screen    image.Rectangle
	region    region.Region
	mask      Mask
	threshold int
	wake      func()
	logger    *slog.Logger
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithThreshold overrides the collapse threshold. Values below 1 are ignored.
func WithThreshold(n int) Option {
	return func(a *Accumulator) {
		if n >= 1 {
			a.threshold = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accumulator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAccumulator creates an accumulator for a screen of the given size.
func NewAccumulator(screen image.Rectangle, opts ...Option) *Accumulator {
	a := &Accumulator{
		screen:    screen,
		threshold: DefaultCollapseThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetWaker registers the function called when damage arrives while the
// accumulator is empty. The redraw scheduler uses it to leave its idle state.
func (a *Accumulator) SetWaker(fn func()) {
	a.wake = fn
}

// SetThreshold changes the collapse threshold. Values below 1 are ignored.
func (a *Accumulator) SetThreshold(n int) {
	if n >= 1 {
		a.threshold = n
	}
}

// Resize changes the screen rectangle. Damage outside the new bounds is
// dropped when the frame consumes it.
func (a *Accumulator) Resize(screen image.Rectangle) {
	a.screen = screen
}

// Screen returns the screen rectangle.
func (a *Accumulator) Screen() image.Rectangle {
	return a.screen
}

// Mask returns the pending damage bits.
func (a *Accumulator) Mask() Mask {
	return a.mask
}

// Pending reports whether anything is waiting to be painted.
func (a *Accumulator) Pending() bool {
	return a.mask != 0
}

// Region returns a copy of the accumulated region.
func (a *Accumulator) Region() region.Region {
	return a.region.Clone()
}

// AddRect damages a single rectangle.
func (a *Accumulator) AddRect(rect image.Rectangle) {
	a.AddRegion(region.New(rect))
}

// AddRegion unions r into the accumulated damage. It does nothing once the
// whole screen is damaged. Exceeding the collapse threshold turns the damage
// into whole-screen damage.
func (a *Accumulator) AddRegion(r region.Region) {
	if a.mask&MaskAll != 0 || r.Empty() {
		return
	}

	wasIdle := a.idle()
	a.region.Union(r)
	if a.region.NumRects() > a.threshold {
		a.logger.Debug("damage region collapsed", "rects", a.region.NumRects(), "threshold", a.threshold)
		a.MarkAll()
		return
	}
	a.mask |= MaskRegion
	if wasIdle {
		a.notify()
	}
}

// MarkAll damages the whole screen.
func (a *Accumulator) MarkAll() {
	wasIdle := a.idle()
	a.mask |= MaskAll
	a.mask &^= MaskRegion
	a.region.Clear()
	if wasIdle {
		a.notify()
	}
}

// MarkPending records that damage is expected soon.
func (a *Accumulator) MarkPending() {
	a.mask |= MaskPending
}

// ConsumeAndClear returns the damage for the frame about to be painted and
// resets the accumulator. The region is clipped to the screen; a region
// covering the whole screen is reported as MaskAll. With MaskAll the
// returned region is the screen rectangle.
func (a *Accumulator) ConsumeAndClear() (region.Region, Mask) {
	mask := a.mask
	var out region.Region

	if mask&MaskAll != 0 {
		mask &^= MaskRegion
		out = region.New(a.screen)
	} else if mask&MaskRegion != 0 {
		out = a.region.IntersectRect(a.screen)
		switch {
		case out.Empty():
			mask &^= MaskRegion
		case out.Contains(a.screen):
			mask = mask&^MaskRegion | MaskAll
			out = region.New(a.screen)
		}
	}

	a.region = region.Region{}
	a.mask = 0
	return out, mask
}

// idle reports whether no paintable damage is queued. A pending-only mask
// still counts as idle.
func (a *Accumulator) idle() bool {
	return a.mask&(MaskRegion|MaskAll) == 0
}

func (a *Accumulator) notify() {
	if a.wake != nil {
		a.wake()
	}
}
