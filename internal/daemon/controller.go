package daemon

import (
	"context"
	"fmt"
	"image"

	"github.com/1broseidon/compote/internal/composite"
	"github.com/1broseidon/compote/internal/ipc"
	"github.com/1broseidon/compote/internal/output"
	"github.com/1broseidon/compote/internal/window"
)

// Screen is the part of composite.Screen the IPC controller drives.
type Screen interface {
	Stats() composite.Stats
	Windows() []composite.WindowInfo
	Outputs() *output.Set
	DamageScreen()
	Raise(id window.ID) error
	Lower(id window.ID) error
}

// Executor runs fn on the loop goroutine and waits for it.
type Executor func(ctx context.Context, fn func()) error

// Controller serves IPC requests against a screen owned by the loop
// goroutine. Every screen access is marshalled through exec.
type Controller struct {
	screen Screen
	exec   Executor
	reload func(ctx context.Context) error
}

var _ ipc.Controller = (*Controller)(nil)

// NewController creates a controller. reload may be nil when the daemon
// has no configuration file to reread.
func NewController(screen Screen, exec Executor, reload func(ctx context.Context) error) *Controller {
	return &Controller{screen: screen, exec: exec, reload: reload}
}

func (c *Controller) Status(ctx context.Context) (ipc.StatusData, error) {
	var st composite.Stats
	if err := c.exec(ctx, func() { st = c.screen.Stats() }); err != nil {
		return ipc.StatusData{}, err
	}
	return statusData(st), nil
}

func (c *Controller) Outputs(ctx context.Context) (ipc.OutputsData, error) {
	var set *output.Set
	if err := c.exec(ctx, func() { set = c.screen.Outputs() }); err != nil {
		return ipc.OutputsData{}, err
	}
	return outputsData(set), nil
}

func (c *Controller) Windows(ctx context.Context) (ipc.WindowsData, error) {
	var list []composite.WindowInfo
	if err := c.exec(ctx, func() { list = c.screen.Windows() }); err != nil {
		return ipc.WindowsData{}, err
	}
	return windowsData(list), nil
}

func (c *Controller) Repaint(ctx context.Context) error {
	return c.exec(ctx, c.screen.DamageScreen)
}

func (c *Controller) Reload(ctx context.Context) error {
	if c.reload == nil {
		return fmt.Errorf("reload is not supported")
	}
	return c.reload(ctx)
}

func (c *Controller) Raise(ctx context.Context, id uint32) error {
	return c.restack(ctx, id, c.screen.Raise)
}

func (c *Controller) Lower(ctx context.Context, id uint32) error {
	return c.restack(ctx, id, c.screen.Lower)
}

func (c *Controller) restack(ctx context.Context, id uint32, op func(window.ID) error) error {
	var opErr error
	if err := c.exec(ctx, func() { opErr = op(window.ID(id)) }); err != nil {
		return err
	}
	return opErr
}

func statusData(st composite.Stats) ipc.StatusData {
	return ipc.StatusData{
		UptimeSeconds:   int64(st.Uptime.Seconds()),
		FramesPainted:   st.Scheduler.Frames,
		RefreshRate:     st.Scheduler.RefreshRate,
		RedrawTimeMs:    st.Scheduler.Timing.RedrawTime,
		OptimalTimeMs:   st.Scheduler.Timing.OptimalRedrawTime,
		TimeMultiplier:  st.Scheduler.Timing.TimeMultiplier,
		FrameStatus:     st.Scheduler.Timing.FrameStatus,
		SchedulerState:  st.Scheduler.State.String(),
		Idle:            st.Scheduler.Idle,
		DamageMask:      st.Mask.String(),
		Windows:         st.Windows,
		MappedWindows:   st.Mapped,
		PendingDestroys: st.PendingDestroys,
		Outputs:         st.Outputs,
	}
}

func outputsData(set *output.Set) ipc.OutputsData {
	devices := set.Devices()
	data := ipc.OutputsData{
		Screen:      toRect(set.Screen()),
		Outputs:     make([]ipc.OutputInfo, 0, len(devices)),
		Overlapping: set.HasOverlappingOutputs(),
	}
	for _, d := range devices {
		data.Outputs = append(data.Outputs, ipc.OutputInfo{
			ID:       d.ID,
			Name:     d.Name,
			Rect:     toRect(d.Rect),
			WorkArea: toRect(d.WorkArea),
		})
	}
	return data
}

func windowsData(list []composite.WindowInfo) ipc.WindowsData {
	data := ipc.WindowsData{Windows: make([]ipc.WindowInfo, 0, len(list))}
	for _, w := range list {
		data.Windows = append(data.Windows, ipc.WindowInfo{
			ID:         uint32(w.ID),
			Rect:       toRect(w.Rect),
			Type:       w.Type.String(),
			Opacity:    w.Opacity,
			Mapped:     w.Mapped,
			Damaged:    w.Damaged,
			Invisible:  w.Invisible,
			Destroyed:  w.Destroyed,
			BindFailed: w.BindFailed,
			DirtyRects: w.DirtyRects,
		})
	}
	return data
}

func toRect(r image.Rectangle) ipc.Rect {
	return ipc.Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}
