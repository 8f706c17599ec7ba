// Package xrender draws composited frames with the X Render extension.
// Frames are built in an off-screen back buffer and copied to the
// composite overlay window on present.
package xrender

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/1broseidon/compote/internal/composite"
	"github.com/1broseidon/compote/internal/region"
	"github.com/1broseidon/compote/internal/window"
	"github.com/1broseidon/compote/internal/x11"
	"github.com/BurntSushi/xgb"
	xcomposite "github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
)

var errNoFormat = errors.New("no picture format for visual")

type texture struct {
	handle  window.TextureHandle
	pixmap  xproto.Pixmap
	picture render.Picture
	opaque  bool
}

// Renderer implements composite.Renderer over X Render.
type Renderer struct {
	conn   *x11.Connection
	logger *slog.Logger

	size       image.Point
	background render.Color
	format     render.Pictformat

	backPixmap xproto.Pixmap
	back       render.Picture
	front      render.Picture
	clipped    bool

	masks    map[uint16]render.Picture
	textures map[window.ID]*texture
	byHandle map[window.TextureHandle]*texture
	next     window.TextureHandle
}

// New creates a renderer painting to the overlay window of conn. The
// connection must have its extensions initialized and be redirected.
func New(conn *x11.Connection, size image.Point, background render.Color, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	format, ok := conn.Formats.ForVisual(conn.RootVisual())
	if !ok {
		return nil, fmt.Errorf("%w: root visual %#x", errNoFormat, uint32(conn.RootVisual()))
	}
	r := &Renderer{
		conn:       conn,
		logger:     logger.With("component", "xrender"),
		background: background,
		format:     format,
		masks:      make(map[uint16]render.Picture),
		textures:   make(map[window.ID]*texture),
		byHandle:   make(map[window.TextureHandle]*texture),
	}

	front, err := r.newPicture(xproto.Drawable(conn.Overlay), format)
	if err != nil {
		return nil, fmt.Errorf("failed to create overlay picture: %w", err)
	}
	r.front = front
	if err := r.Resize(size); err != nil {
		return nil, err
	}
	return r, nil
}

var _ composite.Renderer = (*Renderer)(nil)

func (r *Renderer) xc() *xgb.Conn {
	return r.conn.Conn()
}

func (r *Renderer) newPicture(drawable xproto.Drawable, format render.Pictformat) (render.Picture, error) {
	pid, err := render.NewPictureId(r.xc())
	if err != nil {
		return 0, err
	}
	err = render.CreatePictureChecked(r.xc(), pid, drawable, format,
		render.CpSubwindowMode, []uint32{xproto.SubwindowModeIncludeInferiors}).Check()
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// alive fails with ErrFatal once the connection is gone; issuing requests
// after that would panic in the protocol layer.
func (r *Renderer) alive() error {
	if r.conn.Lost() {
		return fmt.Errorf("%w: %v", composite.ErrFatal, x11.ErrConnectionLost)
	}
	return nil
}

// BindWindowTexture names the window's current backing pixmap and wraps it
// in a picture.
func (r *Renderer) BindWindowTexture(id window.ID) (window.TextureHandle, error) {
	if err := r.alive(); err != nil {
		return 0, err
	}
	if t, ok := r.textures[id]; ok {
		return t.handle, nil
	}

	xc := r.xc()
	win := xproto.Window(id)
	attrs, err := xproto.GetWindowAttributes(xc, win).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get window attributes: %w", err)
	}
	format, ok := r.conn.Formats.ForVisual(attrs.Visual)
	if !ok {
		return 0, fmt.Errorf("%w: %#x", errNoFormat, uint32(attrs.Visual))
	}

	pixmap, err := xproto.NewPixmapId(xc)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate pixmap id: %w", err)
	}
	if err := xcomposite.NameWindowPixmapChecked(xc, win, pixmap).Check(); err != nil {
		return 0, fmt.Errorf("failed to name window pixmap: %w", err)
	}
	picture, err := r.newPicture(xproto.Drawable(pixmap), format)
	if err != nil {
		xproto.FreePixmap(xc, pixmap)
		return 0, fmt.Errorf("failed to create window picture: %w", err)
	}

	r.next++
	t := &texture{
		handle:  r.next,
		pixmap:  pixmap,
		picture: picture,
		opaque:  !r.conn.Formats.HasAlpha(attrs.Visual),
	}
	r.textures[id] = t
	r.byHandle[t.handle] = t
	return t.handle, nil
}

// ReleaseWindowTexture frees the picture and pixmap bound to a window.
func (r *Renderer) ReleaseWindowTexture(id window.ID) {
	t, ok := r.textures[id]
	if !ok {
		return
	}
	delete(r.textures, id)
	delete(r.byHandle, t.handle)
	if r.conn.Lost() {
		return
	}
	render.FreePicture(r.xc(), t.picture)
	xproto.FreePixmap(r.xc(), t.pixmap)
}

// DrawQuad composites a bound window onto the back buffer.
func (r *Renderer) DrawQuad(tex window.TextureHandle, dst image.Rectangle, attribs window.PaintAttribs) error {
	if err := r.alive(); err != nil {
		return err
	}
	t, ok := r.byHandle[tex]
	if !ok {
		return fmt.Errorf("unknown texture %d", tex)
	}
	if dst.Empty() {
		return nil
	}

	op, alpha := compositeOp(t.opaque, attribs)
	var mask render.Picture
	if alpha {
		m, err := r.alphaMask(attribs.Opacity)
		if err != nil {
			return err
		}
		mask = m
	}
	xr := region.ToXRectangle(dst)
	render.Composite(r.xc(), op, t.picture, mask, r.back,
		0, 0, // SrcX, SrcY
		0, 0, // MaskX, MaskY
		xr.X, xr.Y, xr.Width, xr.Height)

	if shade, ok := dimColor(attribs); ok {
		render.FillRectangles(r.xc(), render.PictOpOver, r.back, shade, []xproto.Rectangle{xr})
	}
	return nil
}

// alphaMask returns a cached 1x1 repeating picture of the given opacity.
func (r *Renderer) alphaMask(opacity uint16) (render.Picture, error) {
	if m, ok := r.masks[opacity]; ok {
		return m, nil
	}
	pid, err := render.NewPictureId(r.xc())
	if err != nil {
		return 0, fmt.Errorf("failed to allocate mask id: %w", err)
	}
	if err := render.CreateSolidFillChecked(r.xc(), pid, render.Color{Alpha: opacity}).Check(); err != nil {
		return 0, fmt.Errorf("failed to create alpha mask: %w", err)
	}
	r.masks[opacity] = pid
	return pid, nil
}

// ClearOutput fills rect with the background color.
func (r *Renderer) ClearOutput(rect image.Rectangle) error {
	if err := r.alive(); err != nil {
		return err
	}
	render.FillRectangles(r.xc(), render.PictOpSrc, r.back, r.background,
		[]xproto.Rectangle{region.ToXRectangle(rect)})
	return nil
}

// SetBackground changes the color ClearOutput fills with.
func (r *Renderer) SetBackground(c render.Color) {
	r.background = c
}

// Scissor sets the back buffer clip.
func (r *Renderer) Scissor(clip region.Region) error {
	if err := r.alive(); err != nil {
		return err
	}
	if clip.Empty() {
		r.unclip()
		return nil
	}
	render.SetPictureClipRectangles(r.xc(), r.back, 0, 0, clip.XRectangles())
	r.clipped = true
	return nil
}

func (r *Renderer) unclip() {
	if !r.clipped {
		return
	}
	render.ChangePicture(r.xc(), r.back, render.CpClipMask, []uint32{0})
	r.clipped = false
}

// SwapBuffers copies the whole back buffer to the overlay.
func (r *Renderer) SwapBuffers() error {
	return r.present([]image.Rectangle{image.Rectangle{Max: r.size}})
}

// PartialPresent copies rects of the back buffer to the overlay.
func (r *Renderer) PartialPresent(rects []image.Rectangle) error {
	return r.present(rects)
}

func (r *Renderer) present(rects []image.Rectangle) error {
	if err := r.alive(); err != nil {
		return err
	}
	r.unclip()
	bounds := image.Rectangle{Max: r.size}
	for _, rect := range rects {
		rect = rect.Intersect(bounds)
		if rect.Empty() {
			continue
		}
		xr := region.ToXRectangle(rect)
		render.Composite(r.xc(), render.PictOpSrc, r.back, 0, r.front,
			xr.X, xr.Y, 0, 0, xr.X, xr.Y, xr.Width, xr.Height)
	}
	// The round trip surfaces a dead connection and keeps the client from
	// queueing frames faster than the server draws them.
	if err := r.conn.Ping(); err != nil {
		return fmt.Errorf("%w: %v", composite.ErrFatal, err)
	}
	return nil
}

// WaitVideoSync is a no-op: Render has no vertical retrace control.
func (r *Renderer) WaitVideoSync() error { return nil }

// VSyncLimited always reports false.
func (r *Renderer) VSyncLimited() bool { return false }

// YInverted always reports false; Render shares X11's Y-down coordinates.
func (r *Renderer) YInverted() bool { return false }

// Resize recreates the back buffer for a new screen size.
func (r *Renderer) Resize(size image.Point) error {
	if err := r.alive(); err != nil {
		return err
	}
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("invalid size %v", size)
	}
	xc := r.xc()
	pixmap, err := xproto.NewPixmapId(xc)
	if err != nil {
		return fmt.Errorf("failed to allocate back buffer id: %w", err)
	}
	err = xproto.CreatePixmapChecked(xc, r.conn.RootDepth(), pixmap, xproto.Drawable(r.conn.Root),
		uint16(size.X), uint16(size.Y)).Check()
	if err != nil {
		return fmt.Errorf("failed to create back buffer: %w", err)
	}
	back, err := r.newPicture(xproto.Drawable(pixmap), r.format)
	if err != nil {
		xproto.FreePixmap(xc, pixmap)
		return fmt.Errorf("failed to create back buffer picture: %w", err)
	}

	r.freeBack()
	r.backPixmap, r.back, r.size, r.clipped = pixmap, back, size, false
	r.logger.Debug("back buffer resized", "size", size)
	return nil
}

func (r *Renderer) freeBack() {
	if r.back == 0 {
		return
	}
	render.FreePicture(r.xc(), r.back)
	xproto.FreePixmap(r.xc(), r.backPixmap)
	r.back, r.backPixmap = 0, 0
}

// Close frees every server resource the renderer holds.
func (r *Renderer) Close() {
	if r.conn.Lost() {
		return
	}
	for id := range r.textures {
		r.ReleaseWindowTexture(id)
	}
	for _, m := range r.masks {
		render.FreePicture(r.xc(), m)
	}
	r.masks = map[uint16]render.Picture{}
	r.freeBack()
	if r.front != 0 {
		render.FreePicture(r.xc(), r.front)
		r.front = 0
	}
}

// compositeOp chooses the Render operator for a window and whether an
// opacity mask is needed.
func compositeOp(opaque bool, attribs window.PaintAttribs) (op byte, alpha bool) {
	alpha = attribs.Opacity < window.MaxAttrib
	if opaque && !alpha {
		return render.PictOpSrc, false
	}
	return render.PictOpOver, alpha
}

// dimColor returns the translucent black drawn over a window to lower its
// brightness, scaled by the window's opacity.
func dimColor(attribs window.PaintAttribs) (render.Color, bool) {
	if attribs.Brightness >= window.MaxAttrib {
		return render.Color{}, false
	}
	dim := uint32(window.MaxAttrib-attribs.Brightness) * uint32(attribs.Opacity) / window.MaxAttrib
	if dim == 0 {
		return render.Color{}, false
	}
	return render.Color{Alpha: uint16(dim)}, true
}
