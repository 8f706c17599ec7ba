package x11

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/1broseidon/compote/internal/event"
	"github.com/1broseidon/compote/internal/window"
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xprop"
)

// ErrConnectionLost is returned by Pump.Run when the X server goes away.
var ErrConnectionLost = errors.New("X server connection lost")

// damageNotifyMore is set in the level byte of a damage notification
// when more rectangles of the same report follow.
const damageNotifyMore = 0x80

// KeyHandler receives key presses on grabbed keys.
type KeyHandler interface {
	HandleKeyPress(ev xproto.KeyPressEvent) bool
}

// Pump reads X events, decodes the ones compositing cares about and hands
// them to a sink. It keeps a Damage object on every top-level window.
type Pump struct {
	conn   *Connection
	sink   func(event.Event)
	keys   KeyHandler
	logger *slog.Logger

	screen  image.Rectangle
	tracked map[xproto.Window]damage.Damage
}

// NewPump creates a pump delivering events to sink. The sink is called
// from the pump goroutine.
func NewPump(c *Connection, sink func(event.Event), logger *slog.Logger) *Pump {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pump{
		conn:    c,
		sink:    sink,
		logger:  logger.With("component", "x11-events"),
		tracked: make(map[xproto.Window]damage.Damage),
	}
}

// SetKeyHandler routes key presses to h.
func (p *Pump) SetKeyHandler(h KeyHandler) {
	p.keys = h
}

// Scan reports the windows that already exist, bottom to top, followed by
// the current struts. It must run before Run.
func (p *Pump) Scan() error {
	conn := p.conn.Conn()
	screen, err := p.conn.ScreenRect()
	if err != nil {
		return err
	}
	p.screen = screen

	// Keep the tree stable between listing windows and selecting their
	// events.
	xproto.GrabServer(conn)
	defer func() {
		xproto.UngrabServer(conn)
		p.conn.XUtil.Sync()
	}()

	ids, err := p.conn.StackingOrder()
	if err != nil {
		return err
	}
	for _, id := range ids {
		p.add(xproto.Window(id), true)
	}
	p.sink(event.StrutsChanged{Struts: p.conn.Struts(screen)})
	p.sink(event.ActiveWindowChanged{ID: p.conn.ActiveWindow()})
	return nil
}

// Run pumps events until the connection closes. Closing the connection
// after ctx is cancelled ends it without error.
func (p *Pump) Run(ctx context.Context) error {
	conn := p.conn.Conn()
	for {
		ev, xerr := conn.WaitForEvent()
		if ev == nil && xerr == nil {
			if ctx.Err() != nil {
				return nil
			}
			p.conn.markLost()
			return ErrConnectionLost
		}
		if xerr != nil {
			// Requests on windows that vanished meanwhile fail routinely.
			p.logger.Debug("X error", "error", xerr)
			continue
		}
		p.dispatch(ev)
	}
}

func (p *Pump) dispatch(ev xgb.Event) {
	root := p.conn.Root
	switch e := ev.(type) {
	case xproto.CreateNotifyEvent:
		if e.Parent == root && !p.conn.owned(e.Window) {
			p.add(e.Window, false)
		}
	case xproto.DestroyNotifyEvent:
		p.remove(e.Window)
	case xproto.ReparentNotifyEvent:
		if e.Parent == root {
			if _, ok := p.tracked[e.Window]; !ok && !p.conn.owned(e.Window) {
				p.add(e.Window, true)
			}
		} else {
			p.remove(e.Window)
		}
	case xproto.MapNotifyEvent:
		if p.isTracked(e.Window) {
			p.sink(event.WindowMapped{ID: window.ID(e.Window)})
		}
	case xproto.UnmapNotifyEvent:
		if p.isTracked(e.Window) {
			p.sink(event.WindowUnmapped{ID: window.ID(e.Window)})
		}
	case xproto.ConfigureNotifyEvent:
		if e.Window == root {
			p.screen = image.Rect(0, 0, int(e.Width), int(e.Height))
			p.outputsChanged()
			return
		}
		if p.isTracked(e.Window) {
			p.sink(configured(e))
		}
	case xproto.CirculateNotifyEvent:
		if p.isTracked(e.Window) {
			p.sink(circulated(e))
		}
	case xproto.ExposeEvent:
		if e.Window == root || e.Window == p.conn.Overlay {
			p.sink(exposed(e))
		}
	case xproto.PropertyNotifyEvent:
		p.propertyChanged(e)
	case xproto.KeyPressEvent:
		if p.keys != nil {
			p.keys.HandleKeyPress(e)
		}
	case damage.NotifyEvent:
		p.sink(damaged(e))
		if e.Level&damageNotifyMore == 0 {
			damage.Subtract(p.conn.Conn(), e.Damage, 0, 0)
		}
	case shape.NotifyEvent:
		if sc, ok := shaped(e); ok && p.isTracked(e.AffectedWindow) {
			p.sink(sc)
		}
	case randr.ScreenChangeNotifyEvent:
		p.screen = image.Rect(0, 0, int(e.Width), int(e.Height))
		p.outputsChanged()
	case randr.NotifyEvent:
		if screen, err := p.conn.ScreenRect(); err == nil {
			p.screen = screen
		}
		p.outputsChanged()
	}
}

func (p *Pump) isTracked(id xproto.Window) bool {
	_, ok := p.tracked[id]
	return ok
}

// add starts tracking a new child of the root and reports it. Windows
// found by the initial scan or by reparenting may already be mapped.
func (p *Pump) add(id xproto.Window, keepMapState bool) {
	created, err := p.conn.describe(id)
	if err != nil {
		p.logger.Debug("window vanished before it could be tracked", "window", id, "error", err)
		return
	}
	if !keepMapState {
		// MapNotify follows.
		created.Mapped = false
	}

	conn := p.conn.Conn()
	var dmg damage.Damage
	if !created.InputOnly {
		if dmg, err = damage.NewDamageId(conn); err != nil {
			p.logger.Warn("failed to allocate damage id", "window", id, "error", err)
		} else {
			damage.Create(conn, dmg, xproto.Drawable(id), damage.ReportLevelRawRectangles)
		}
	}
	xproto.ChangeWindowAttributes(conn, id, xproto.CwEventMask, []uint32{xproto.EventMaskPropertyChange})
	shape.SelectInput(conn, id, true)
	p.tracked[id] = dmg

	p.sink(created)
	p.sink(event.PropertiesChanged{ID: window.ID(id), Props: p.conn.Properties(id)})
}

func (p *Pump) remove(id xproto.Window) {
	dmg, ok := p.tracked[id]
	if !ok {
		return
	}
	delete(p.tracked, id)
	if dmg != 0 {
		// Fails harmlessly when the window is already gone.
		damage.Destroy(p.conn.Conn(), dmg)
	}
	p.sink(event.WindowDestroyed{ID: window.ID(id)})
}

func (p *Pump) propertyChanged(e xproto.PropertyNotifyEvent) {
	name, err := xprop.AtomName(p.conn.XUtil, e.Atom)
	if err != nil {
		return
	}
	switch classifyProperty(name) {
	case propWindow:
		if p.isTracked(e.Window) {
			p.sink(event.PropertiesChanged{ID: window.ID(e.Window), Props: p.conn.Properties(e.Window)})
		}
	case propStrut:
		p.sink(event.StrutsChanged{Struts: p.conn.Struts(p.screen)})
	case propActive:
		if e.Window == p.conn.Root {
			p.sink(event.ActiveWindowChanged{ID: p.conn.ActiveWindow()})
		}
	}
}

func (p *Pump) outputsChanged() {
	devices, err := p.conn.Outputs()
	if err != nil {
		p.logger.Warn("failed to query outputs", "error", err)
		devices = nil
	}
	p.sink(event.OutputConfigurationChanged{Screen: p.screen, Outputs: devices})
	p.sink(event.StrutsChanged{Struts: p.conn.Struts(p.screen)})
}

func configured(e xproto.ConfigureNotifyEvent) event.WindowConfigured {
	return event.WindowConfigured{
		ID: window.ID(e.Window),
		Geometry: window.Geometry{
			X:      int(e.X),
			Y:      int(e.Y),
			Width:  int(e.Width),
			Height: int(e.Height),
			Border: int(e.BorderWidth),
		},
		Above:            window.ID(e.AboveSibling),
		OverrideRedirect: e.OverrideRedirect,
	}
}

func circulated(e xproto.CirculateNotifyEvent) event.WindowCirculated {
	return event.WindowCirculated{ID: window.ID(e.Window), OnTop: e.Place == xproto.PlaceOnTop}
}

func exposed(e xproto.ExposeEvent) event.ExposeReported {
	return event.ExposeReported{
		ID:     window.ID(e.Window),
		Rect:   image.Rect(int(e.X), int(e.Y), int(e.X)+int(e.Width), int(e.Y)+int(e.Height)),
		IsLast: e.Count == 0,
	}
}

func damaged(e damage.NotifyEvent) event.DamageReported {
	a := e.Area
	return event.DamageReported{
		ID:   window.ID(e.Drawable),
		Rect: image.Rect(int(a.X), int(a.Y), int(a.X)+int(a.Width), int(a.Y)+int(a.Height)),
		More: e.Level&damageNotifyMore != 0,
	}
}

// shaped decodes bounding shape changes; other shape kinds do not affect
// what is painted.
func shaped(e shape.NotifyEvent) (event.ShapeChanged, bool) {
	if e.ShapeKind != shape.SkBounding {
		return event.ShapeChanged{}, false
	}
	x, y := int(e.ExtentsX), int(e.ExtentsY)
	return event.ShapeChanged{
		ID:     window.ID(e.AffectedWindow),
		Bounds: image.Rect(x, y, x+int(e.ExtentsWidth), y+int(e.ExtentsHeight)),
	}, true
}
