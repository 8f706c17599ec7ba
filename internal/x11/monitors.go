package x11

import (
	"fmt"
	"image"

	"github.com/1broseidon/compote/internal/output"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// DefaultRefreshRate is used when the server reports no usable rate.
const DefaultRefreshRate = 50

// Outputs retrieves the active monitors using XRandR. Disabled CRTCs are
// skipped; an empty result means the whole screen is one output.
func (c *Connection) Outputs() ([]output.Device, error) {
	conn := c.Conn()
	resources, err := randr.GetScreenResourcesCurrent(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var devices []output.Device
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			c.logger.Debug("skipping crtc", "crtc", crtc, "error", err)
			continue
		}
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		name := fmt.Sprintf("Monitor%d", i)
		if out, err := randr.GetOutputInfo(conn, info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}

		devices = append(devices, output.Device{
			Name: name,
			Rect: image.Rect(int(info.X), int(info.Y), int(info.X)+int(info.Width), int(info.Y)+int(info.Height)),
		})
	}
	return devices, nil
}

// RefreshRate returns the screen's refresh rate in Hz, or
// DefaultRefreshRate when the server reports none.
func (c *Connection) RefreshRate() int {
	info, err := randr.GetScreenInfo(c.Conn(), c.Root).Reply()
	if err != nil {
		c.logger.Debug("failed to query refresh rate", "error", err)
		return DefaultRefreshRate
	}
	return refreshRateOrDefault(int(info.Rate))
}

func refreshRateOrDefault(rate int) int {
	if rate < 1 {
		return DefaultRefreshRate
	}
	return rate
}

// Struts collects the reserved screen edges of every dock window. Docks
// that only set _NET_WM_STRUT reserve their whole edge.
func (c *Connection) Struts(screen image.Rectangle) []ewmh.WmStrutPartial {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil
	}

	var struts []ewmh.WmStrutPartial
	for _, id := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, id)
		if err != nil || !isDock(types) {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, id); err == nil {
			struts = append(struts, *sp)
			continue
		}
		if s, err := ewmh.WmStrutGet(c.XUtil, id); err == nil {
			struts = append(struts, output.FullStrut(screen, s.Left, s.Right, s.Top, s.Bottom))
		}
	}
	return struts
}

func isDock(types []string) bool {
	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_DOCK" {
			return true
		}
	}
	return false
}
