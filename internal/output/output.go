// Package output models the monitors a composited screen is split into.
package output

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/1broseidon/compote/internal/region"
	"github.com/BurntSushi/xgbutil/xrect"
)

// Device is one physical or virtual monitor.
type Device struct {
	ID       int
	Name     string
	Rect     image.Rectangle
	WorkArea image.Rectangle
}

// Set is an immutable snapshot of the screen's output devices. A new Set is
// built whenever the monitor configuration changes.
type Set struct {
	screen      image.Rectangle
	devices     []Device
	overlapping bool
}

// NewSet builds a device set for a screen. Device rectangles are clipped to
// the screen and devices left empty are dropped. When no device remains a
// single device covering the whole screen is used. Work areas start out equal
// to the device rectangles.
func NewSet(screen image.Rectangle, devices []Device) *Set {
	s := &Set{screen: screen}
	for _, d := range devices {
		d.Rect = d.Rect.Intersect(screen)
		if d.Rect.Empty() {
			continue
		}
		d.ID = len(s.devices)
		if d.Name == "" {
			d.Name = fmt.Sprintf("Output%d", d.ID)
		}
		d.WorkArea = d.Rect
		s.devices = append(s.devices, d)
	}
	if len(s.devices) == 0 {
		s.devices = []Device{{ID: 0, Name: "Output0", Rect: screen, WorkArea: screen}}
	}

	for i := range s.devices {
		for j := i + 1; j < len(s.devices); j++ {
			if s.devices[i].Rect.Overlaps(s.devices[j].Rect) {
				s.overlapping = true
			}
		}
	}
	return s
}

// Screen returns the full screen rectangle.
func (s *Set) Screen() image.Rectangle {
	return s.screen
}

// Devices returns a copy of the devices.
func (s *Set) Devices() []Device {
	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// Len returns the number of devices.
func (s *Set) Len() int {
	return len(s.devices)
}

// HasOverlappingOutputs reports whether any two devices share pixels.
func (s *Set) HasOverlappingOutputs() bool {
	return s.overlapping
}

// Fullscreen returns the synthetic device spanning the whole screen.
func (s *Set) Fullscreen() Device {
	return Device{ID: -1, Name: "fullscreen", Rect: s.screen, WorkArea: s.screen}
}

// ForFrame selects the devices to paint this frame. Overlapping devices
// collapse into the synthetic fullscreen device unless forceIndependent is
// set, so no pixel is painted twice.
func (s *Set) ForFrame(forceIndependent bool) []Device {
	if s.overlapping && !forceIndependent {
		return []Device{s.Fullscreen()}
	}
	return s.Devices()
}

// Intersects reports whether rect touches any device.
func (s *Set) Intersects(rect image.Rectangle) bool {
	for _, d := range s.devices {
		if d.Rect.Overlaps(rect) {
			return true
		}
	}
	return false
}

// DeviceFor returns the index of the device sharing the largest area with
// rect, or 0 when rect touches none.
func (s *Set) DeviceFor(rect image.Rectangle) int {
	heads := make([]xrect.Rect, len(s.devices))
	for i, d := range s.devices {
		heads[i] = region.ToXRect(d.Rect)
	}
	if idx := xrect.LargestOverlap(region.ToXRect(rect), heads); idx >= 0 {
		return idx
	}
	return 0
}

// Region returns the union of all device rectangles.
func (s *Set) Region() region.Region {
	var r region.Region
	for _, d := range s.devices {
		r.AddRect(d.Rect)
	}
	return r
}

// ParseGeometry parses an X geometry string of the form WxH+X+Y. The offsets
// may be negative (WxH-X-Y style signs are accepted per component) and may
// be omitted, in which case they default to zero.
func ParseGeometry(spec string) (image.Rectangle, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return image.Rectangle{}, fmt.Errorf("empty geometry")
	}

	sizeEnd := strings.IndexAny(spec, "+-")
	size := spec
	offsets := ""
	if sizeEnd >= 0 {
		size = spec[:sizeEnd]
		offsets = spec[sizeEnd:]
	}

	w, h, ok := strings.Cut(strings.ToLower(size), "x")
	if !ok {
		return image.Rectangle{}, fmt.Errorf("geometry %q: missing WxH", spec)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return image.Rectangle{}, fmt.Errorf("geometry %q: invalid width", spec)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return image.Rectangle{}, fmt.Errorf("geometry %q: invalid height", spec)
	}

	var coords []int
	for offsets != "" {
		sign := 1
		if offsets[0] == '-' {
			sign = -1
		}
		offsets = offsets[1:]
		end := strings.IndexAny(offsets, "+-")
		if end < 0 {
			end = len(offsets)
		}
		v, err := strconv.Atoi(offsets[:end])
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("geometry %q: invalid offset", spec)
		}
		coords = append(coords, sign*v)
		offsets = offsets[end:]
	}
	if len(coords) != 0 && len(coords) != 2 {
		return image.Rectangle{}, fmt.Errorf("geometry %q: expected +X+Y", spec)
	}

	x, y := 0, 0
	if len(coords) == 2 {
		x, y = coords[0], coords[1]
	}
	return image.Rect(x, y, x+width, y+height), nil
}

// FromGeometries builds devices from user supplied geometry strings.
func FromGeometries(specs []string) ([]Device, error) {
	devices := make([]Device, 0, len(specs))
	for i, spec := range specs {
		rect, err := ParseGeometry(spec)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		devices = append(devices, Device{ID: i, Name: fmt.Sprintf("Output%d", i), Rect: rect})
	}
	return devices, nil
}
