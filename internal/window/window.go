// Package window holds the compositor's view of a top-level window and the
// per-window damage tracking.
package window

import (
	"image"
)

// ID is an X window id.
type ID uint32

// None is the null window id.
const None ID = 0

// TextureHandle identifies renderer-owned pixel storage bound to a window.
// Zero means nothing is bound.
type TextureHandle uint64

// Geometry is a window position and size. Width and Height exclude the
// border, which surrounds the window on every side.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
	Border int
}

// Rect returns the area covered by the window including its border.
func (g Geometry) Rect() image.Rectangle {
	return image.Rect(g.X, g.Y, g.X+g.Width+2*g.Border, g.Y+g.Height+2*g.Border)
}

// SameSize reports whether both geometries have the same outer size.
func (g Geometry) SameSize(o Geometry) bool {
	return g.Width == o.Width && g.Height == o.Height && g.Border == o.Border
}

// Extents are insets around a window, such as decorations or shadows.
type Extents struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// Zero reports whether all insets are zero.
func (e Extents) Zero() bool {
	return e == Extents{}
}

// MaxAttrib is the value of an unmodified paint attribute.
const MaxAttrib = 0xffff

// PaintAttribs modulate how a window is drawn.
type PaintAttribs struct {
	Opacity    uint16
	Brightness uint16
	Saturation uint16
}

// DefaultPaint draws a window unmodified.
var DefaultPaint = PaintAttribs{Opacity: MaxAttrib, Brightness: MaxAttrib, Saturation: MaxAttrib}

// Window is a top-level or override-redirect window participating in
// compositing.
type Window struct {
	ID ID

	// Server is the geometry last confirmed by the X server. Client is the
	// geometry the client last asked for. The compositor never moves
	// windows itself, so Client follows every confirmed configure.
	Server Geometry
	Client Geometry

	Input  Extents
	Output Extents

	OverrideRedirect bool
	InputOnly        bool
	ARGB             bool

	// WMType is the type the client asked for; Type is the layer the
	// compositor stacks it in, folding in state such as fullscreen.
	WMType       Type
	Type         Type
	State        State
	TransientFor ID
	ClientLeader ID

	Paint PaintAttribs

	Mapped     bool
	Damaged    bool
	Redirected bool
	BindFailed bool
	Destroyed  bool
	Invisible  bool

	Texture TextureHandle

	// Prev and Next link the window into the stack, bottom to top. They are
	// owned by the stack package.
	Prev *Window
	Next *Window

	// dirty holds the damage reported since the window was last drawn, in
	// screen coordinates. Painting works from the screen damage; the list
	// only feeds the window listing.
	dirty []image.Rectangle
}

// New returns a redirected, unmapped window with default paint attributes.
func New(id ID, geom Geometry) *Window {
	return &Window{
		ID:         id,
		Server:     geom,
		Client:     geom,
		WMType:     TypeUnknown,
		Type:       TypeNormal,
		Paint:      DefaultPaint,
		Redirected: true,
	}
}

// Rect returns the server-side area of the window including its border.
func (w *Window) Rect() image.Rectangle {
	return w.Server.Rect()
}

// OutputRect returns the window area grown by its output extents: the whole
// footprint the window may paint on screen.
func (w *Window) OutputRect() image.Rectangle {
	r := w.Rect()
	return image.Rect(r.Min.X-w.Output.Left, r.Min.Y-w.Output.Top, r.Max.X+w.Output.Right, r.Max.Y+w.Output.Bottom)
}

// ToScreen translates a rectangle in window-local coordinates, which start
// inside the border, into screen coordinates.
func (w *Window) ToScreen(local image.Rectangle) image.Rectangle {
	return local.Add(image.Pt(w.Server.X+w.Server.Border, w.Server.Y+w.Server.Border))
}

// Viewable reports whether the window can contribute pixels.
func (w *Window) Viewable() bool {
	return w.Mapped && !w.InputOnly
}

// Opaque reports whether the window fully covers what is below it.
func (w *Window) Opaque() bool {
	return !w.ARGB && w.Paint.Opacity == MaxAttrib
}

// Paintable reports whether the window may be asked for a texture.
func (w *Window) Paintable() bool {
	return w.Redirected && !w.BindFailed && w.Damaged && (w.Mapped || w.Destroyed)
}

// UpdateInvisible recomputes Invisible against the current outputs.
func (w *Window) UpdateInvisible(outputs Intersecter) {
	w.Invisible = outputs == nil || !outputs.Intersects(w.OutputRect())
}

// Intersecter is satisfied by an output set.
type Intersecter interface {
	Intersects(image.Rectangle) bool
}

// Dirty returns the screen rectangles damaged since the window was last
// painted.
func (w *Window) Dirty() []image.Rectangle {
	return w.dirty
}

// ClearDirty forgets the damaged rectangles after the window was painted.
func (w *Window) ClearDirty() {
	w.dirty = w.dirty[:0]
}

// Apply updates the window from freshly read properties and reports which
// aspects changed.
func (w *Window) Apply(p Properties) Changes {
	var c Changes
	typ := EffectiveType(p.WMType, p.State, p.TransientFor, w.OverrideRedirect)
	if w.Type != typ || w.State != p.State || w.TransientFor != p.TransientFor || w.ClientLeader != p.ClientLeader {
		c |= ChangedStacking
	}
	if w.Paint.Opacity != p.Opacity {
		c |= ChangedPaint
	}
	if w.Input != p.Input || w.Output != p.Output {
		c |= ChangedExtents
	}
	w.WMType = p.WMType
	w.Type = typ
	w.State = p.State
	w.TransientFor = p.TransientFor
	w.ClientLeader = p.ClientLeader
	w.Paint.Opacity = p.Opacity
	w.Input = p.Input
	w.Output = p.Output
	return c
}

// Changes is a set of property change kinds.
type Changes uint8

const (
	ChangedStacking Changes = 1 << iota
	ChangedPaint
	ChangedExtents
)
