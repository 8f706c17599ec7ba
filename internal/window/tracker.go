package window

import (
	"image"
	"log/slog"

	"github.com/1broseidon/compote/internal/region"
)

// Sink receives screen-space damage. *damage.Accumulator satisfies it.
type Sink interface {
	AddRegion(region.Region)
}

// MaxDirtyRects bounds the per-window dirty list. Past it the list is
// replaced by the whole window.
const MaxDirtyRects = 64

// Tracker converts per-window damage into screen damage.
type Tracker struct {
	sink    Sink
	outputs Intersecter
	logger  *slog.Logger
}

// NewTracker creates a tracker forwarding to sink.
func NewTracker(sink Sink, outputs Intersecter, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{sink: sink, outputs: outputs, logger: logger}
}

// SetOutputs replaces the output set used for visibility checks.
func (t *Tracker) SetOutputs(outputs Intersecter) {
	t.outputs = outputs
}

// ReportDamage handles a damage notification for a rectangle in
// window-local coordinates. The first report after the window became
// viewable damages the whole window, since its buffer may hold garbage.
// Reports for windows that cannot be composited are dropped.
func (t *Tracker) ReportDamage(w *Window, local image.Rectangle) {
	if !w.Redirected || w.BindFailed || w.Destroyed {
		return
	}

	if !w.Damaged {
		w.Damaged = true
		w.UpdateInvisible(t.outputs)
		t.DamageWindow(w)
		return
	}

	rect := w.ToScreen(local).Intersect(w.Rect())
	if rect.Empty() {
		return
	}
	t.markDirty(w, rect)
	t.sink.AddRegion(region.New(rect))
}

// DamageWindow damages the full footprint of w, decorations included.
func (t *Tracker) DamageWindow(w *Window) {
	rect := w.OutputRect()
	w.dirty = append(w.dirty[:0], rect)
	t.sink.AddRegion(region.New(rect))
}

// InvalidateOutputExtents damages the four bands the output extents add
// around the window. Empty bands are skipped.
func (t *Tracker) InvalidateOutputExtents(w *Window) {
	var r region.Region
	for _, band := range ExtentBands(w.Rect(), w.Output) {
		r.AddRect(band)
	}
	if !r.Empty() {
		t.sink.AddRegion(r)
	}
}

// ExtentBands returns the non-empty top, bottom, left and right bands that
// ext adds around rect. Top and bottom span the full extended width.
func ExtentBands(rect image.Rectangle, ext Extents) []image.Rectangle {
	ext = Extents{Left: max(ext.Left, 0), Right: max(ext.Right, 0), Top: max(ext.Top, 0), Bottom: max(ext.Bottom, 0)}
	x1 := rect.Min.X - ext.Left
	x2 := rect.Max.X + ext.Right
	candidates := [...]image.Rectangle{
		image.Rect(x1, rect.Min.Y-ext.Top, x2, rect.Min.Y),
		image.Rect(x1, rect.Max.Y, x2, rect.Max.Y+ext.Bottom),
		image.Rect(x1, rect.Min.Y, rect.Min.X, rect.Max.Y),
		image.Rect(rect.Max.X, rect.Min.Y, x2, rect.Max.Y),
	}
	bands := make([]image.Rectangle, 0, len(candidates))
	for _, band := range candidates {
		if band.Dx() > 0 && band.Dy() > 0 {
			bands = append(bands, band)
		}
	}
	return bands
}

func (t *Tracker) markDirty(w *Window, rect image.Rectangle) {
	if len(w.dirty) >= MaxDirtyRects {
		w.dirty = append(w.dirty[:0], w.OutputRect())
		return
	}
	w.dirty = append(w.dirty, rect)
}
