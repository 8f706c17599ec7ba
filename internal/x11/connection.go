package x11

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
)

// Connection manages the X11 connection and the resources the compositor
// owns on the server.
type Connection struct {
	XUtil   *xgbutil.XUtil
	Root    xproto.Window
	Overlay xproto.Window
	Formats *Formats

	screen    int
	selOwner  xproto.Window
	logger    *slog.Logger
	lost      atomic.Bool
	closeOnce sync.Once
}

// NewConnection connects to display, or $DISPLAY when it is empty.
func NewConnection(display string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	// Required before any key grab.
	keybind.Initialize(xu)

	c := &Connection{
		XUtil:  xu,
		Root:   xu.RootWin(),
		screen: xu.Conn().DefaultScreen,
		logger: logger.With("component", "x11"),
	}
	return c, nil
}

// Conn returns the underlying protocol connection.
func (c *Connection) Conn() *xgb.Conn {
	return c.XUtil.Conn()
}

// ScreenNumber returns the index of the screen being composited.
func (c *Connection) ScreenNumber() int {
	return c.screen
}

// ScreenRect returns the current size of the root window.
func (c *Connection) ScreenRect() (image.Rectangle, error) {
	geom, err := xproto.GetGeometry(c.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to get root geometry: %w", err)
	}
	return image.Rect(0, 0, int(geom.Width), int(geom.Height)), nil
}

// RootDepth returns the depth of the root window's visual.
func (c *Connection) RootDepth() byte {
	return c.XUtil.Screen().RootDepth
}

// RootVisual returns the root window's visual.
func (c *Connection) RootVisual() xproto.Visualid {
	return c.XUtil.Screen().RootVisual
}

// Ping performs a round trip and reports whether the server is reachable.
func (c *Connection) Ping() error {
	if _, err := xproto.GetInputFocus(c.Conn()).Reply(); err != nil {
		return fmt.Errorf("X server round trip failed: %w", err)
	}
	return nil
}

// Lost reports whether the server connection has gone away. No request
// may be issued once it has.
func (c *Connection) Lost() bool {
	return c.lost.Load()
}

func (c *Connection) markLost() {
	c.lost.Store(true)
}

// Close releases the compositing resources and disconnects. A lost
// connection is already closed by the protocol layer.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		if c.Lost() {
			return
		}
		c.release()
		c.Conn().Close()
	})
}
