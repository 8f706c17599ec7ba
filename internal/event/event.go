// Package event defines the decoded window-system events the compositor
// core consumes. The X11 binding produces them; composite.Screen applies
// them.
package event

import (
	"fmt"
	"image"

	"github.com/1broseidon/compote/internal/output"
	"github.com/1broseidon/compote/internal/window"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Event is one decoded window-system event.
type Event interface {
	// Window returns the window the event concerns, or window.None for
	// screen-wide events.
	Window() window.ID
}

// WindowCreated reports a new top-level window.
type WindowCreated struct {
	ID               window.ID
	Parent           window.ID
	Geometry         window.Geometry
	OverrideRedirect bool
	InputOnly        bool
	// ARGB is set when the window's visual carries an alpha channel.
	ARGB bool
	// Mapped is set for windows already viewable when discovered by the
	// initial scan.
	Mapped bool
}

// WindowDestroyed reports a destroyed window.
type WindowDestroyed struct {
	ID window.ID
}

// WindowMapped reports a window becoming mapped.
type WindowMapped struct {
	ID window.ID
}

// WindowUnmapped reports a window being unmapped.
type WindowUnmapped struct {
	ID window.ID
}

// WindowConfigured reports a geometry or stacking change. Above is the
// sibling directly below the window, or window.None for the bottom.
type WindowConfigured struct {
	ID               window.ID
	Geometry         window.Geometry
	Above            window.ID
	OverrideRedirect bool
}

// WindowCirculated reports a window moved to the top or bottom.
type WindowCirculated struct {
	ID    window.ID
	OnTop bool
}

// DamageReported carries one damaged rectangle in window-local
// coordinates. More is set when further rectangles of the same report
// follow.
type DamageReported struct {
	ID   window.ID
	Rect image.Rectangle
	More bool
}

// ShapeChanged reports a new bounding shape, in window-local coordinates.
type ShapeChanged struct {
	ID     window.ID
	Bounds image.Rectangle
}

// OutputConfigurationChanged reports a new screen size or monitor layout.
type OutputConfigurationChanged struct {
	Screen  image.Rectangle
	Outputs []output.Device
}

// ExposeReported carries one exposed rectangle of the root or overlay.
type ExposeReported struct {
	ID     window.ID
	Rect   image.Rectangle
	IsLast bool
}

// PropertiesChanged carries freshly read window properties.
type PropertiesChanged struct {
	ID    window.ID
	Props window.Properties
}

// ActiveWindowChanged reports the window manager's focused client. ID is
// window.None when nothing has focus.
type ActiveWindowChanged struct {
	ID window.ID
}

// StrutsChanged carries the reserved screen edges of every dock.
type StrutsChanged struct {
	Struts []ewmh.WmStrutPartial
}

func (e WindowCreated) Window() window.ID              { return e.ID }
func (e WindowDestroyed) Window() window.ID            { return e.ID }
func (e WindowMapped) Window() window.ID               { return e.ID }
func (e WindowUnmapped) Window() window.ID             { return e.ID }
func (e WindowConfigured) Window() window.ID           { return e.ID }
func (e WindowCirculated) Window() window.ID           { return e.ID }
func (e DamageReported) Window() window.ID             { return e.ID }
func (e ShapeChanged) Window() window.ID               { return e.ID }
func (e OutputConfigurationChanged) Window() window.ID { return window.None }
func (e ExposeReported) Window() window.ID             { return e.ID }
func (e PropertiesChanged) Window() window.ID          { return e.ID }
func (e StrutsChanged) Window() window.ID              { return window.None }
func (e ActiveWindowChanged) Window() window.ID        { return e.ID }

// Name returns a short name for logging.
func Name(e Event) string {
	switch e.(type) {
	case WindowCreated:
		return "created"
	case WindowDestroyed:
		return "destroyed"
	case WindowMapped:
		return "mapped"
	case WindowUnmapped:
		return "unmapped"
	case WindowConfigured:
		return "configured"
	case WindowCirculated:
		return "circulated"
	case DamageReported:
		return "damage"
	case ShapeChanged:
		return "shape"
	case OutputConfigurationChanged:
		return "outputs"
	case ExposeReported:
		return "expose"
	case PropertiesChanged:
		return "properties"
	case StrutsChanged:
		return "struts"
	case ActiveWindowChanged:
		return "active"
	default:
		return fmt.Sprintf("%T", e)
	}
}
