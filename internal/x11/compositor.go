package x11

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xprop"
)

var (
	// ErrMissingExtension is returned when the server lacks an extension
	// or version compositing depends on.
	ErrMissingExtension = errors.New("missing X extension")
	// ErrAlreadyComposited is returned when another compositing manager
	// owns the screen.
	ErrAlreadyComposited = errors.New("another compositing manager is running")
)

type extension struct {
	name         string
	init         func() error
	version      func() (uint32, uint32, error)
	major, minor uint32
}

// InitExtensions initializes every extension compositing needs and checks
// their versions.
func (c *Connection) InitExtensions() error {
	conn := c.Conn()
	exts := []extension{
		{name: "Composite", major: 0, minor: 2,
			init: func() error { return composite.Init(conn) },
			version: func() (uint32, uint32, error) {
				r, err := composite.QueryVersion(conn, 0, 4).Reply()
				if err != nil {
					return 0, 0, err
				}
				return r.MajorVersion, r.MinorVersion, nil
			}},
		{name: "DAMAGE", major: 1, minor: 1,
			init: func() error { return damage.Init(conn) },
			version: func() (uint32, uint32, error) {
				r, err := damage.QueryVersion(conn, 1, 1).Reply()
				if err != nil {
					return 0, 0, err
				}
				return r.MajorVersion, r.MinorVersion, nil
			}},
		{name: "XFIXES", major: 2, minor: 0,
			init: func() error { return xfixes.Init(conn) },
			version: func() (uint32, uint32, error) {
				r, err := xfixes.QueryVersion(conn, 5, 0).Reply()
				if err != nil {
					return 0, 0, err
				}
				return r.MajorVersion, r.MinorVersion, nil
			}},
		{name: "SHAPE", major: 1, minor: 0,
			init: func() error { return shape.Init(conn) },
			version: func() (uint32, uint32, error) {
				r, err := shape.QueryVersion(conn).Reply()
				if err != nil {
					return 0, 0, err
				}
				return uint32(r.MajorVersion), uint32(r.MinorVersion), nil
			}},
		{name: "RANDR", major: 1, minor: 2,
			init: func() error { return randr.Init(conn) },
			version: func() (uint32, uint32, error) {
				r, err := randr.QueryVersion(conn, 1, 5).Reply()
				if err != nil {
					return 0, 0, err
				}
				return r.MajorVersion, r.MinorVersion, nil
			}},
		{name: "RENDER", major: 0, minor: 0,
			init: func() error { return render.Init(conn) },
			version: func() (uint32, uint32, error) {
				r, err := render.QueryVersion(conn, 0, 11).Reply()
				if err != nil {
					return 0, 0, err
				}
				return r.MajorVersion, r.MinorVersion, nil
			}},
	}

	for _, ext := range exts {
		if err := ext.init(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMissingExtension, ext.name, err)
		}
		major, minor, err := ext.version()
		if err != nil {
			return fmt.Errorf("%w: %s version query failed: %v", ErrMissingExtension, ext.name, err)
		}
		if !versionAtLeast(major, minor, ext.major, ext.minor) {
			return fmt.Errorf("%w: %s %d.%d, need %d.%d", ErrMissingExtension, ext.name, major, minor, ext.major, ext.minor)
		}
		c.logger.Debug("extension ready", "extension", ext.name, "version", fmt.Sprintf("%d.%d", major, minor))
	}

	formats, err := render.QueryPictFormats(conn).Reply()
	if err != nil {
		return fmt.Errorf("failed to query picture formats: %w", err)
	}
	c.Formats = NewFormats(formats)
	return nil
}

func versionAtLeast(major, minor, wantMajor, wantMinor uint32) bool {
	return major > wantMajor || (major == wantMajor && minor >= wantMinor)
}

// SelectionName returns the compositing manager selection for a screen.
func SelectionName(screen int) string {
	return fmt.Sprintf("_NET_WM_CM_S%d", screen)
}

// AcquireSelection claims the compositing manager selection of the screen.
func (c *Connection) AcquireSelection(name string) error {
	conn := c.Conn()
	atom, err := xprop.Atm(c.XUtil, SelectionName(c.screen))
	if err != nil {
		return fmt.Errorf("failed to intern selection atom: %w", err)
	}

	owner, err := xproto.GetSelectionOwner(conn, atom).Reply()
	if err != nil {
		return fmt.Errorf("failed to query selection owner: %w", err)
	}
	if owner.Owner != xproto.WindowNone {
		return fmt.Errorf("%w: %s owned by %#x", ErrAlreadyComposited, SelectionName(c.screen), uint32(owner.Owner))
	}

	win, err := xproto.NewWindowId(conn)
	if err != nil {
		return fmt.Errorf("failed to allocate window id: %w", err)
	}
	err = xproto.CreateWindowChecked(conn, 0, win, c.Root, -1, -1, 1, 1, 0,
		xproto.WindowClassInputOnly, 0, xproto.CwOverrideRedirect, []uint32{1}).Check()
	if err != nil {
		return fmt.Errorf("failed to create selection window: %w", err)
	}
	if err := ewmh.WmNameSet(c.XUtil, win, name); err != nil {
		c.logger.Debug("failed to name selection window", "error", err)
	}

	if err := xproto.SetSelectionOwnerChecked(conn, win, atom, xproto.TimeCurrentTime).Check(); err != nil {
		xproto.DestroyWindow(conn, win)
		return fmt.Errorf("failed to set selection owner: %w", err)
	}
	owner, err = xproto.GetSelectionOwner(conn, atom).Reply()
	if err != nil || owner.Owner != win {
		xproto.DestroyWindow(conn, win)
		return fmt.Errorf("%w: lost race for %s", ErrAlreadyComposited, SelectionName(c.screen))
	}
	c.selOwner = win
	return nil
}

// Redirect redirects every child of the root off-screen with manual
// updates, and acquires the overlay window painting targets.
func (c *Connection) Redirect() error {
	conn := c.Conn()
	if err := composite.RedirectSubwindowsChecked(conn, c.Root, composite.RedirectManual).Check(); err != nil {
		return fmt.Errorf("%w: failed to redirect subwindows: %v", ErrAlreadyComposited, err)
	}

	reply, err := composite.GetOverlayWindow(conn, c.Root).Reply()
	if err != nil {
		return fmt.Errorf("failed to get overlay window: %w", err)
	}
	c.Overlay = reply.OverlayWin

	// Input passes through the overlay to the windows below.
	region, err := xfixes.NewRegionId(conn)
	if err != nil {
		return fmt.Errorf("failed to allocate region: %w", err)
	}
	if err := xfixes.CreateRegionChecked(conn, region, nil).Check(); err != nil {
		return fmt.Errorf("failed to create empty region: %w", err)
	}
	xfixes.SetWindowShapeRegion(conn, c.Overlay, shape.SkBounding, 0, 0, 0)
	xfixes.SetWindowShapeRegion(conn, c.Overlay, shape.SkInput, 0, 0, region)
	xfixes.DestroyRegion(conn, region)

	mask := uint32(xproto.EventMaskSubstructureNotify | xproto.EventMaskStructureNotify |
		xproto.EventMaskExposure | xproto.EventMaskPropertyChange)
	if err := xproto.ChangeWindowAttributesChecked(conn, c.Root, xproto.CwEventMask, []uint32{mask}).Check(); err != nil {
		return fmt.Errorf("failed to select root events: %w", err)
	}
	xproto.ChangeWindowAttributes(conn, c.Overlay, xproto.CwEventMask, []uint32{xproto.EventMaskExposure})
	randr.SelectInput(conn, c.Root, randr.NotifyMaskScreenChange|randr.NotifyMaskCrtcChange|randr.NotifyMaskOutputChange)
	return nil
}

// owned reports whether id is a window the compositor itself created.
func (c *Connection) owned(id xproto.Window) bool {
	return id != 0 && (id == c.Overlay || id == c.selOwner)
}

func (c *Connection) release() {
	conn := c.Conn()
	if c.Overlay != 0 {
		composite.ReleaseOverlayWindow(conn, c.Root)
		composite.UnredirectSubwindows(conn, c.Root, composite.RedirectManual)
		c.Overlay = 0
	}
	if c.selOwner != 0 {
		xproto.DestroyWindow(conn, c.selOwner)
		c.selOwner = 0
	}
	c.XUtil.Sync()
}
