package x11

import (
	"fmt"

	"github.com/1broseidon/compote/internal/event"
	"github.com/1broseidon/compote/internal/window"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
)

type propertyKind uint8

const (
	propIgnored propertyKind = iota
	propWindow
	propStrut
	propActive
)

// classifyProperty tells which change notifications matter: window
// properties feed PropertiesChanged, strut and client list changes
// rebuild the work areas. Focus changes on the root are forwarded too.
func classifyProperty(name string) propertyKind {
	switch name {
	case "_NET_WM_WINDOW_TYPE", "_NET_WM_STATE", "WM_TRANSIENT_FOR", "WM_CLIENT_LEADER",
		"_NET_WM_WINDOW_OPACITY", "_NET_FRAME_EXTENTS":
		return propWindow
	case "_NET_WM_STRUT", "_NET_WM_STRUT_PARTIAL", "_NET_CLIENT_LIST":
		return propStrut
	case "_NET_ACTIVE_WINDOW":
		return propActive
	}
	return propIgnored
}

// ActiveWindow returns the focused client, or window.None when the window
// manager does not publish one.
func (c *Connection) ActiveWindow() window.ID {
	id, err := ewmh.ActiveWindowGet(c.XUtil)
	if err != nil {
		return window.None
	}
	return window.ID(id)
}

// Properties reads the client properties the compositor tracks. Missing
// properties keep their defaults.
func (c *Connection) Properties(id xproto.Window) window.Properties {
	p := window.DefaultProperties()

	if types, err := ewmh.WmWindowTypeGet(c.XUtil, id); err == nil {
		p.WMType = window.TypeFromEWMH(types)
	}
	if states, err := ewmh.WmStateGet(c.XUtil, id); err == nil {
		p.State = window.StateFromEWMH(states)
	}
	if parent, err := icccm.WmTransientForGet(c.XUtil, id); err == nil {
		p.TransientFor = window.ID(parent)
	}
	if leader, err := xprop.PropValWindow(xprop.GetProperty(c.XUtil, id, "WM_CLIENT_LEADER")); err == nil {
		p.ClientLeader = window.ID(leader)
	}
	if opacity, err := ewmh.WmWindowOpacityGet(c.XUtil, id); err == nil {
		p.Opacity = window.OpacityFromFraction(opacity)
	}
	if ext, err := ewmh.FrameExtentsGet(c.XUtil, id); err == nil {
		p.Input = window.Extents{Left: ext.Left, Right: ext.Right, Top: ext.Top, Bottom: ext.Bottom}
	}
	return p
}

// describe queries what a WindowCreated event needs to know about a child
// of the root.
func (c *Connection) describe(id xproto.Window) (event.WindowCreated, error) {
	conn := c.Conn()
	attrCookie := xproto.GetWindowAttributes(conn, id)
	geomCookie := xproto.GetGeometry(conn, xproto.Drawable(id))

	attrs, err := attrCookie.Reply()
	if err != nil {
		return event.WindowCreated{}, fmt.Errorf("failed to get window attributes: %w", err)
	}
	geom, err := geomCookie.Reply()
	if err != nil {
		return event.WindowCreated{}, fmt.Errorf("failed to get window geometry: %w", err)
	}

	ev := event.WindowCreated{
		ID:     window.ID(id),
		Parent: window.ID(c.Root),
		Geometry: window.Geometry{
			X:      int(geom.X),
			Y:      int(geom.Y),
			Width:  int(geom.Width),
			Height: int(geom.Height),
			Border: int(geom.BorderWidth),
		},
		OverrideRedirect: attrs.OverrideRedirect,
		InputOnly:        attrs.Class == xproto.WindowClassInputOnly,
		Mapped:           attrs.MapState == xproto.MapStateViewable,
	}
	if !ev.InputOnly && c.Formats != nil {
		ev.ARGB = c.Formats.HasAlpha(attrs.Visual)
	}
	return ev, nil
}

// StackingOrder returns the children of the root, bottom to top, without
// the compositor's own windows.
func (c *Connection) StackingOrder() ([]window.ID, error) {
	tree, err := xproto.QueryTree(c.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query window tree: %w", err)
	}
	ids := make([]window.ID, 0, len(tree.Children))
	for _, child := range tree.Children {
		if c.owned(child) {
			continue
		}
		ids = append(ids, window.ID(child))
	}
	return ids, nil
}

// Restack stacks the windows in order, bottom to top, by placing each one
// directly above its predecessor.
func (c *Connection) Restack(order []window.ID) error {
	conn := c.Conn()
	var firstErr error
	for _, step := range restackSteps(order) {
		err := xproto.ConfigureWindowChecked(conn, xproto.Window(step.window),
			xproto.ConfigWindowSibling|xproto.ConfigWindowStackMode,
			[]uint32{uint32(step.sibling), xproto.StackModeAbove}).Check()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to restack %#x: %w", uint32(step.window), err)
		}
	}
	return firstErr
}

type restackStep struct {
	window  window.ID
	sibling window.ID
}

func restackSteps(order []window.ID) []restackStep {
	if len(order) < 2 {
		return nil
	}
	steps := make([]restackStep, 0, len(order)-1)
	for i := 1; i < len(order); i++ {
		steps = append(steps, restackStep{window: order[i], sibling: order[i-1]})
	}
	return steps
}
