package composite

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"time"

	"github.com/1broseidon/compote/internal/damage"
	"github.com/1broseidon/compote/internal/event"
	"github.com/1broseidon/compote/internal/output"
	"github.com/1broseidon/compote/internal/region"
	"github.com/1broseidon/compote/internal/schedule"
	"github.com/1broseidon/compote/internal/stack"
	"github.com/1broseidon/compote/internal/window"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Config holds the runtime-adjustable settings of a screen.
type Config struct {
	RefreshRate             int
	SyncToVBlank            bool
	ForceIndependentOutputs bool
	EnforceStacking         bool
	DamageRectLimit         int
	// OutputOverrides replace detected outputs when non-empty.
	OutputOverrides []output.Device
}

// Options are the collaborators of a Screen.
type Options struct {
	Timers    schedule.Timers
	Renderer  Renderer
	Restacker Restacker
	// Root is the parent of managed windows. Creations under other
	// parents are ignored. window.None accepts every parent.
	Root    window.ID
	Screen  image.Rectangle
	Outputs []output.Device
	Config  Config
	Logger  *slog.Logger
	// OnFatal is called once when compositing cannot continue.
	OnFatal func(error)
}

// Stats is a snapshot of a screen for status reporting.
type Stats struct {
	Uptime          time.Duration
	Scheduler       schedule.Stats
	Mask            damage.Mask
	Windows         int
	Mapped          int
	PendingDestroys int
	Outputs         int
}

// WindowInfo describes one paint-list entry.
type WindowInfo struct {
	ID         window.ID
	Rect       image.Rectangle
	Type       window.Type
	Opacity    uint16
	Mapped     bool
	Damaged    bool
	Invisible  bool
	Destroyed  bool
	BindFailed bool
	// DirtyRects counts damage reports not yet painted.
	DirtyRects int
}

// Screen is the compositing state of one X screen. All methods must be
// called from the loop goroutine.
type Screen struct {
	logger    *slog.Logger
	timers    schedule.Timers
	renderer  Renderer
	restacker Restacker
	root      window.ID
	onFatal   func(error)

	cfg      Config
	detected []output.Device
	struts   []ewmh.WmStrutPartial
	outputs  *output.Set

	acc     *damage.Accumulator
	tracker *window.Tracker
	stack   *stack.Stack
	pass    *Pass
	sched   *schedule.Scheduler
	plugins []Plugin

	expose          region.Region
	pendingDestroys int
	fatal           error
	started         time.Time
}

// NewScreen creates the compositing state for a screen.
func NewScreen(opts Options) (*Screen, error) {
	if opts.Timers == nil || opts.Renderer == nil {
		return nil, errors.New("timers and renderer are required")
	}
	if opts.Screen.Empty() {
		return nil, fmt.Errorf("invalid screen size %v", opts.Screen.Size())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Screen{
		logger:    logger.With("component", "composite"),
		timers:    opts.Timers,
		renderer:  opts.Renderer,
		restacker: opts.Restacker,
		root:      opts.Root,
		onFatal:   opts.OnFatal,
		cfg:       opts.Config,
		detected:  opts.Outputs,
		started:   opts.Timers.Now(),
	}
	s.outputs = s.buildOutputs(opts.Screen)

	threshold := opts.Config.DamageRectLimit
	if threshold < 1 {
		threshold = damage.DefaultCollapseThreshold
	}
	s.acc = damage.NewAccumulator(opts.Screen, damage.WithThreshold(threshold), damage.WithLogger(logger))
	s.tracker = window.NewTracker(s.acc, s.outputs, logger)
	s.stack = stack.New(logger)
	s.pass = NewPass(opts.Renderer, s.logger)
	s.sched = schedule.New(opts.Timers, painter{s}, s.acc, opts.Config.RefreshRate,
		schedule.WithLogger(logger),
		schedule.WithVSyncLimited(s.vsyncLimited),
		schedule.WithErrorHandler(s.fail),
	)
	s.acc.SetWaker(s.sched.Wake)
	return s, nil
}

// Start damages the whole screen and starts painting.
func (s *Screen) Start() {
	s.sched.Start()
	s.acc.MarkAll()
}

// Stop halts painting after the current frame.
func (s *Screen) Stop() {
	s.sched.Stop()
}

// Err returns the fatal error that stopped compositing, if any.
func (s *Screen) Err() error {
	return s.fatal
}

// Configure applies new settings.
func (s *Screen) Configure(cfg Config) {
	if cfg.RefreshRate != s.cfg.RefreshRate {
		s.sched.SetRefreshRate(cfg.RefreshRate)
	}
	if cfg.DamageRectLimit >= 1 {
		s.acc.SetThreshold(cfg.DamageRectLimit)
	}
	s.cfg = cfg
	s.setOutputs(s.acc.Screen())
	s.acc.MarkAll()
}

// DamageRegion adds screen-space damage. It is safe to call from within
// the paint phases; the damage is painted in the next frame.
func (s *Screen) DamageRegion(r region.Region) {
	s.acc.AddRegion(r)
}

// DamageScreen damages the whole screen.
func (s *Screen) DamageScreen() {
	s.acc.MarkAll()
}

// DamagePending notes that damage is expected soon.
func (s *Screen) DamagePending() {
	s.acc.MarkPending()
}

// Outputs returns the current output set.
func (s *Screen) Outputs() *output.Set {
	return s.outputs
}

// Stack exposes the window stack for inspection.
func (s *Screen) Stack() *stack.Stack {
	return s.stack
}

// Stats returns a snapshot of the screen.
func (s *Screen) Stats() Stats {
	st := Stats{
		Uptime:          s.timers.Now().Sub(s.started),
		Scheduler:       s.sched.Stats(),
		Mask:            s.acc.Mask(),
		Windows:         s.stack.Len(),
		PendingDestroys: s.pendingDestroys,
		Outputs:         s.outputs.Len(),
	}
	for _, w := range s.stack.Windows() {
		if w.Mapped && !w.Destroyed {
			st.Mapped++
		}
	}
	return st
}

// Windows returns the paint list, bottom to top.
func (s *Screen) Windows() []WindowInfo {
	list := s.stack.PaintList()
	out := make([]WindowInfo, 0, len(list))
	for _, e := range list {
		w := e.Window
		out = append(out, WindowInfo{
			ID:         w.ID,
			Rect:       w.Rect(),
			Type:       w.Type,
			Opacity:    w.Paint.Opacity,
			Mapped:     w.Mapped,
			Damaged:    w.Damaged,
			Invisible:  e.Invisible,
			Destroyed:  w.Destroyed,
			BindFailed: w.BindFailed,
			DirtyRects: len(w.Dirty()),
		})
	}
	return out
}

// Raise moves a window to the top of its layer, carrying its transients.
func (s *Screen) Raise(id window.ID) error {
	w, err := s.managed(id)
	if err != nil {
		return err
	}
	s.restack(func() { s.stack.Raise(w) })
	return nil
}

// Lower moves a window to the bottom of its layer, carrying its transients.
func (s *Screen) Lower(id window.ID) error {
	w, err := s.managed(id)
	if err != nil {
		return err
	}
	s.restack(func() { s.stack.Lower(w) })
	return nil
}

// SyncStackOrder adopts the server's bottom-to-top order and reports
// whether the mirrored stack had drifted.
func (s *Screen) SyncStackOrder(ids []window.ID) bool {
	if !s.stack.SyncOrder(ids) {
		return false
	}
	s.logger.Info("stack order drifted from server, resynced", "windows", len(ids))
	s.acc.MarkAll()
	return true
}

func (s *Screen) managed(id window.ID) (*window.Window, error) {
	w := s.stack.Find(id)
	if w == nil || w.Destroyed {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownWindow, uint32(id))
	}
	return w, nil
}

// restack runs a stacking policy operation, damages the windows it moved
// and pushes the new order to the window system.
func (s *Screen) restack(op func()) {
	before := s.stack.IDs()
	op()
	after := s.stack.IDs()
	if slices.Equal(before, after) {
		return
	}

	for i, id := range after {
		if i < len(before) && before[i] == id {
			continue
		}
		if w := s.stack.Find(id); w != nil && w.Mapped && w.Damaged {
			s.tracker.DamageWindow(w)
		}
	}

	if s.restacker == nil {
		return
	}
	order := make([]window.ID, 0, len(after))
	for _, w := range s.stack.Windows() {
		if !w.Destroyed {
			order = append(order, w.ID)
		}
	}
	if err := s.restacker.Restack(order); err != nil {
		s.logger.Warn("restack failed", "error", err)
	}
}

func (s *Screen) vsyncLimited() bool {
	return s.cfg.SyncToVBlank && s.renderer.VSyncLimited()
}

// fail stops compositing on a fatal error. Other errors are logged.
func (s *Screen) fail(err error) {
	if !errors.Is(err, ErrFatal) {
		s.logger.Warn("paint error", "error", err)
		return
	}
	if s.fatal != nil {
		return
	}
	s.fatal = err
	s.logger.Error("compositing stopped", "error", err)
	s.sched.Stop()
	if s.onFatal != nil {
		s.onFatal(err)
	}
}

func (s *Screen) buildOutputs(screen image.Rectangle) *output.Set {
	devices := s.detected
	if len(s.cfg.OutputOverrides) > 0 {
		devices = s.cfg.OutputOverrides
	}
	return output.NewSet(screen, devices).WithStruts(s.struts)
}

// setOutputs rebuilds the output set and everything that depends on it.
func (s *Screen) setOutputs(screen image.Rectangle) {
	s.outputs = s.buildOutputs(screen)
	s.tracker.SetOutputs(s.outputs)
	for _, w := range s.stack.Windows() {
		w.UpdateInvisible(s.outputs)
	}
}

func (s *Screen) releaseTexture(w *window.Window) {
	if w.Texture == 0 {
		return
	}
	s.renderer.ReleaseWindowTexture(w.ID)
	w.Texture = 0
}

func (s *Screen) corePrepare(int) {}

func (s *Screen) paint() error {
	dmg, mask := s.acc.ConsumeAndClear()
	f := &Frame{
		Screen:  s.acc.Screen(),
		Outputs: SelectOutputsForFrame(s.outputs, s.cfg.ForceIndependentOutputs),
		Damage:  dmg,
		Mask:    mask,
		List:    s.stack.PaintList(),
	}
	return s.paintChain(f)
}

// corePaint draws every selected output and presents the result. Only
// ErrFatal failures are returned.
func (s *Screen) corePaint(f *Frame) error {
	if f.Mask&(damage.MaskRegion|damage.MaskAll) == 0 {
		return nil
	}

	if s.cfg.SyncToVBlank {
		if err := s.renderer.WaitVideoSync(); err != nil {
			if errors.Is(err, ErrFatal) {
				return err
			}
			s.logger.Debug("video sync failed", "error", err)
		}
	}

	for _, dev := range f.Outputs {
		err := s.pass.PaintOutput(dev, f.Damage, f.List, f.Mask)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrFatal) {
			return err
		}
		s.logger.Warn("output paint aborted", "output", dev.ID, "error", err)
	}

	if err := s.pass.Present(f); err != nil {
		if errors.Is(err, ErrFatal) {
			return err
		}
		s.logger.Warn("present failed", "error", err)
	}
	return nil
}

// coreDone removes at most one destroyed window per frame. Remaining
// removals keep the scheduler running through pending damage.
func (s *Screen) coreDone() {
	if s.pendingDestroys == 0 {
		return
	}
	for _, w := range s.stack.Windows() {
		if !w.Destroyed {
			continue
		}
		s.removeDestroyed(w)
		if s.pendingDestroys > 0 {
			s.acc.MarkPending()
		}
		return
	}
	s.pendingDestroys = 0
}

func (s *Screen) removeDestroyed(w *window.Window) {
	s.releaseTexture(w)
	s.stack.Remove(w)
	s.pendingDestroys--
}

// Handle applies one window-system event.
func (s *Screen) Handle(ev event.Event) {
	if s.fatal != nil {
		return
	}
	switch e := ev.(type) {
	case event.WindowCreated:
		s.handleCreated(e)
	case event.WindowDestroyed:
		s.handleDestroyed(e)
	case event.WindowMapped:
		s.handleMapped(e)
	case event.WindowUnmapped:
		s.handleUnmapped(e)
	case event.WindowConfigured:
		s.handleConfigured(e)
	case event.WindowCirculated:
		s.handleCirculated(e)
	case event.DamageReported:
		if w := s.lookup(ev); w != nil {
			s.tracker.ReportDamage(w, e.Rect)
		}
	case event.ShapeChanged:
		s.handleShape(e)
	case event.ExposeReported:
		s.expose.AddRect(e.Rect)
		if e.IsLast {
			s.acc.AddRegion(s.expose)
			s.expose = region.Region{}
		}
	case event.PropertiesChanged:
		s.handleProperties(e)
	case event.OutputConfigurationChanged:
		s.handleOutputs(e)
	case event.ActiveWindowChanged:
		s.stack.SetActive(e.ID)
	case event.StrutsChanged:
		s.struts = e.Struts
		s.setOutputs(s.acc.Screen())
		s.acc.MarkAll()
	default:
		s.logger.Debug("unhandled event", "event", event.Name(ev))
	}
}

func (s *Screen) lookup(ev event.Event) *window.Window {
	w := s.stack.Find(ev.Window())
	if w == nil {
		s.logger.Debug("event for unknown window", "event", event.Name(ev), "window", ev.Window())
	}
	return w
}

func (s *Screen) handleCreated(e event.WindowCreated) {
	if s.root != window.None && e.Parent != s.root {
		return
	}
	if old := s.stack.Find(e.ID); old != nil {
		if !old.Destroyed {
			s.logger.Debug("duplicate create", "window", e.ID)
			return
		}
		// The id was reused before the old window left the stack.
		s.removeDestroyed(old)
	}

	w := window.New(e.ID, e.Geometry)
	w.OverrideRedirect = e.OverrideRedirect
	w.InputOnly = e.InputOnly
	w.ARGB = e.ARGB
	w.Redirected = !e.InputOnly

	above := window.None
	if top := s.stack.Top(); top != nil {
		above = top.ID
	}
	s.stack.Insert(w, above)
	w.UpdateInvisible(s.outputs)

	if e.Mapped {
		s.mapWindow(w)
	}
}

func (s *Screen) handleDestroyed(e event.WindowDestroyed) {
	w := s.lookup(e)
	if w == nil || w.Destroyed {
		return
	}
	if w.Mapped && w.Damaged {
		s.tracker.DamageWindow(w)
	}
	w.Destroyed = true
	s.pendingDestroys++
	// An unmapped window leaves no damage behind, so ask for a frame to
	// remove it.
	s.acc.MarkPending()
	s.sched.Wake()
}

func (s *Screen) handleMapped(e event.WindowMapped) {
	if w := s.lookup(e); w != nil && !w.Destroyed {
		s.mapWindow(w)
	}
}

func (s *Screen) mapWindow(w *window.Window) {
	w.Mapped = true
	w.Damaged = false
	w.BindFailed = false
	// A newly mapped window gets a new backing pixmap.
	s.releaseTexture(w)
	w.UpdateInvisible(s.outputs)

	if s.cfg.EnforceStacking && !w.OverrideRedirect {
		s.restack(func() { s.stack.UpdateLayer(w) })
	}
}

func (s *Screen) handleUnmapped(e event.WindowUnmapped) {
	w := s.lookup(e)
	if w == nil || !w.Mapped {
		return
	}
	if w.Damaged {
		s.tracker.DamageWindow(w)
	}
	w.Mapped = false
	w.Damaged = false
	s.releaseTexture(w)
}

func (s *Screen) handleConfigured(e event.WindowConfigured) {
	w := s.lookup(e)
	if w == nil {
		return
	}
	visible := w.Mapped && w.Damaged && !w.Destroyed

	if e.Geometry != w.Server {
		if visible {
			s.tracker.DamageWindow(w)
		}
		resized := !w.Server.SameSize(e.Geometry)
		w.Server = e.Geometry
		w.Client = e.Geometry
		w.BindFailed = false
		if resized {
			s.releaseTexture(w)
		}
		w.UpdateInvisible(s.outputs)
		if visible {
			s.tracker.DamageWindow(w)
		}
	}
	w.OverrideRedirect = e.OverrideRedirect

	below := window.None
	if w.Prev != nil {
		below = w.Prev.ID
	}
	if below != e.Above {
		s.stack.Insert(w, e.Above)
		if visible {
			s.tracker.DamageWindow(w)
		}
	}
}

func (s *Screen) handleCirculated(e event.WindowCirculated) {
	w := s.lookup(e)
	if w == nil {
		return
	}
	above := window.None
	if e.OnTop {
		if top := s.stack.Top(); top != nil && top != w {
			above = top.ID
		} else {
			return
		}
	} else if s.stack.Bottom() == w {
		return
	}
	s.stack.Insert(w, above)
	if w.Mapped && w.Damaged && !w.Destroyed {
		s.tracker.DamageWindow(w)
	}
}

func (s *Screen) handleShape(e event.ShapeChanged) {
	w := s.lookup(e)
	if w == nil || !w.Mapped || !w.Damaged || w.Destroyed {
		return
	}
	s.tracker.DamageWindow(w)
	if bounds := w.ToScreen(e.Bounds); !bounds.Empty() {
		s.acc.AddRegion(region.New(bounds))
	}
}

func (s *Screen) handleProperties(e event.PropertiesChanged) {
	w := s.lookup(e)
	if w == nil || w.Destroyed {
		return
	}
	oldOutput := w.Output
	changes := w.Apply(e.Props)
	visible := w.Mapped && w.Damaged

	if changes&window.ChangedExtents != 0 {
		if visible {
			var old region.Region
			for _, band := range window.ExtentBands(w.Rect(), oldOutput) {
				old.AddRect(band)
			}
			if !old.Empty() {
				s.acc.AddRegion(old)
			}
			s.tracker.InvalidateOutputExtents(w)
		}
		w.UpdateInvisible(s.outputs)
	}
	if changes&window.ChangedPaint != 0 && visible {
		s.tracker.DamageWindow(w)
	}
	if changes&window.ChangedStacking != 0 && s.cfg.EnforceStacking && !w.OverrideRedirect {
		s.restack(func() { s.stack.UpdateLayer(w) })
	}
}

func (s *Screen) handleOutputs(e event.OutputConfigurationChanged) {
	old := s.acc.Screen()
	s.detected = e.Outputs
	if e.Screen.Size() != old.Size() {
		if err := s.renderer.Resize(e.Screen.Size()); err != nil {
			s.fail(fmt.Errorf("%w: failed to resize renderer: %v", ErrFatal, err))
			return
		}
	}
	s.acc.Resize(e.Screen)
	s.setOutputs(e.Screen)
	s.acc.MarkAll()
	s.logger.Info("outputs changed", "screen", e.Screen.Size(), "outputs", s.outputs.Len())
}
