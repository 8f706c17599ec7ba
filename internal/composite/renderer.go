// Package composite paints the window stack to the screen. Screen owns the
// damage, stack and scheduling state of one X screen and applies decoded
// window-system events to it; Pass draws a frame through a Renderer.
package composite

import (
	"errors"
	"fmt"
	"image"

	"github.com/1broseidon/compote/internal/region"
	"github.com/1broseidon/compote/internal/window"
)

// ErrFatal marks renderer failures compositing cannot continue after, such
// as a lost connection or context.
var ErrFatal = errors.New("renderer failure")

// ErrUnknownWindow is returned for operations on windows not in the stack.
var ErrUnknownWindow = errors.New("unknown window")

// Renderer draws window contents. Calls block until the request is issued.
type Renderer interface {
	// BindWindowTexture makes the current contents of a window drawable.
	BindWindowTexture(id window.ID) (window.TextureHandle, error)
	ReleaseWindowTexture(id window.ID)
	// DrawQuad draws a bound window onto dst, in screen coordinates.
	DrawQuad(tex window.TextureHandle, dst image.Rectangle, attribs window.PaintAttribs) error
	// ClearOutput fills rect with the background.
	ClearOutput(rect image.Rectangle) error
	// Scissor restricts drawing to clip. An empty clip removes the
	// restriction.
	Scissor(clip region.Region) error
	SwapBuffers() error
	// PartialPresent shows only rects of the drawn frame, in the
	// renderer's own coordinate system.
	PartialPresent(rects []image.Rectangle) error
	WaitVideoSync() error
	// VSyncLimited reports whether presenting blocks on vertical retrace.
	VSyncLimited() bool
	// YInverted reports whether the renderer's Y axis points up.
	YInverted() bool
	// Resize adapts the renderer's buffers to a new screen size.
	Resize(size image.Point) error
}

// OutputError reports a failure that aborted painting of one output.
type OutputError struct {
	Output int
	Err    error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output %d: %v", e.Output, e.Err)
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

// Restacker applies a bottom-to-top stacking order to the window system.
type Restacker interface {
	Restack(order []window.ID) error
}
