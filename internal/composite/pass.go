package composite

import (
	"errors"
	"image"
	"log/slog"

	"github.com/1broseidon/compote/internal/damage"
	"github.com/1broseidon/compote/internal/output"
	"github.com/1broseidon/compote/internal/region"
	"github.com/1broseidon/compote/internal/stack"
)

// Frame is everything one paint needs. Plugins may alter it before the
// core paints.
type Frame struct {
	Screen  image.Rectangle
	Outputs []output.Device
	Damage  region.Region
	Mask    damage.Mask
	// List is the paint list, bottom to top.
	List []stack.Entry
}

// Full reports whether the whole screen is repainted.
func (f *Frame) Full() bool {
	return f.Mask&damage.MaskAll != 0
}

// SelectOutputsForFrame returns the outputs to paint independently.
// Overlapping outputs collapse into one fullscreen output unless
// forceIndependent is set.
func SelectOutputsForFrame(outputs *output.Set, forceIndependent bool) []output.Device {
	return outputs.ForFrame(forceIndependent)
}

// Pass draws frames through a renderer.
type Pass struct {
	renderer Renderer
	logger   *slog.Logger
}

// NewPass creates a pass drawing with r.
func NewPass(r Renderer, logger *slog.Logger) *Pass {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pass{renderer: r, logger: logger}
}

// PaintOutput draws the part of list that falls in dev and clip. With
// MaskAll the whole output is drawn unclipped. Windows that fail to bind
// are marked and skipped. Errors other than ErrFatal abort only this
// output and are returned as *OutputError.
func (p *Pass) PaintOutput(dev output.Device, clip region.Region, list []stack.Entry, mask damage.Mask) error {
	area := dev.Rect
	if area.Empty() {
		return nil
	}

	paintClip := region.New(area)
	if mask&damage.MaskAll != 0 {
		if err := p.renderer.Scissor(region.Region{}); err != nil {
			return p.outputError(dev, err)
		}
	} else {
		paintClip = clip.IntersectRect(area)
		if paintClip.Empty() {
			return nil
		}
		if err := p.renderer.Scissor(paintClip); err != nil {
			return p.outputError(dev, err)
		}
	}

	start := 0
	if overlay := stack.Overlay(list, area); overlay != nil {
		for i := range list {
			if list[i].Window == overlay {
				start = i
				break
			}
		}
	}
	if start == 0 {
		if err := p.renderer.ClearOutput(area); err != nil {
			return p.outputError(dev, err)
		}
	}

	for _, e := range list[start:] {
		w := e.Window
		if e.Invisible || w.Destroyed || !w.Viewable() || !w.Paintable() {
			continue
		}
		if w.Paint.Opacity == 0 {
			continue
		}
		rect := w.Rect()
		if !paintClip.Overlaps(rect) {
			continue
		}

		if w.Texture == 0 {
			tex, err := p.renderer.BindWindowTexture(w.ID)
			if err != nil {
				if errors.Is(err, ErrFatal) {
					return err
				}
				w.BindFailed = true
				p.logger.Warn("bind failed", "window", w.ID, "error", err)
				continue
			}
			w.Texture = tex
		}

		if err := p.renderer.DrawQuad(w.Texture, rect, w.Paint); err != nil {
			if errors.Is(err, ErrFatal) {
				return err
			}
			p.logger.Debug("draw failed", "window", w.ID, "error", err)
			continue
		}
		w.ClearDirty()
	}
	return nil
}

func (p *Pass) outputError(dev output.Device, err error) error {
	if errors.Is(err, ErrFatal) {
		return err
	}
	return &OutputError{Output: dev.ID, Err: err}
}

// Present shows the drawn frame: a full swap for MaskAll, otherwise a copy
// of the damaged rectangles only.
func (p *Pass) Present(f *Frame) error {
	if f.Full() {
		return p.renderer.SwapBuffers()
	}
	rects := f.Damage.Rects()
	if len(rects) == 0 {
		return nil
	}
	if p.renderer.YInverted() {
		for i, r := range rects {
			rects[i] = FlipY(r, f.Screen)
		}
	}
	return p.renderer.PartialPresent(rects)
}

// FlipY mirrors rect vertically within screen, converting between Y-down
// window coordinates and a Y-up drawing surface.
func FlipY(rect, screen image.Rectangle) image.Rectangle {
	sum := screen.Min.Y + screen.Max.Y
	return image.Rect(rect.Min.X, sum-rect.Max.Y, rect.Max.X, sum-rect.Min.Y)
}
