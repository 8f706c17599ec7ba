package schedule

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/compote/internal/loop"
)

// DefaultRefreshRate is the target frame rate in Hz when none is configured
// or detected.
const DefaultRefreshRate = 50

// State is the scheduler's position in the paint cycle.
type State int

const (
	// Idle means no damage is pending and no timer is armed.
	Idle State = iota
	// Scheduled means the paint timer is counting down.
	Scheduled
	// Painting means a frame is being drawn.
	Painting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Painting:
		return "painting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Timers is the timeout queue the scheduler arms. *loop.Loop implements it.
type Timers interface {
	Now() time.Time
	AddTimeout(d time.Duration, fn func()) loop.Handle
	RemoveTimeout(h loop.Handle) bool
	Deadline(h loop.Handle) (time.Time, bool)
}

// Painter runs the three paint phases of a frame.
type Painter interface {
	PreparePaint(msSinceLastPaint int)
	Paint() error
	DonePaint()
}

// Source reports whether damage is waiting to be painted.
type Source interface {
	Pending() bool
}

// Stats is a snapshot of the scheduler for status reporting.
type Stats struct {
	State       State
	Idle        bool
	RefreshRate int
	Timing      Timing
	Frames      uint64
	LastRedraw  time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVSyncLimited reports whether the renderer already blocks on vertical
// retrace. It is consulted on every redraw computation.
func WithVSyncLimited(fn func() bool) Option {
	return func(s *Scheduler) {
		s.vsyncLimited = fn
	}
}

// WithErrorHandler receives errors returned by Painter.Paint. The frame
// still completes and the timer is re-armed.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		s.onError = fn
	}
}

// Scheduler decides when the next frame is painted and drives the paint
// phases. All methods must be called from the loop goroutine.
type Scheduler struct {
	timers  Timers
	painter Painter
	source  Source
	logger  *slog.Logger

	vsyncLimited func() bool
	onError      func(error)

	refreshRate int
	timing      Timing
	state       State
	idle        bool
	reschedule  bool
	stopped     bool
	timer       loop.Handle
	lastRedraw  time.Time
	frames      uint64
}

// New creates an idle scheduler at the given refresh rate.
func New(timers Timers, painter Painter, source Source, refreshRate int, opts ...Option) *Scheduler {
	s := &Scheduler{
		timers:       timers,
		painter:      painter,
		source:       source,
		logger:       slog.Default(),
		vsyncLimited: func() bool { return false },
		idle:         true,
		lastRedraw:   timers.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	s.SetRefreshRate(refreshRate)
	return s
}

// SetRefreshRate resets the frame pacing for a new target rate in Hz.
func (s *Scheduler) SetRefreshRate(rate int) {
	if rate < 1 {
		rate = DefaultRefreshRate
	}
	s.refreshRate = rate
	s.timing = NewTiming(rate)
	s.logger.Debug("refresh rate set", "hz", rate, "optimal_ms", s.timing.OptimalRedrawTime)
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	return s.state
}

// Stats returns a snapshot of the scheduler.
func (s *Scheduler) Stats() Stats {
	return Stats{
		State:       s.state,
		Idle:        s.idle,
		RefreshRate: s.refreshRate,
		Timing:      s.timing,
		Frames:      s.frames,
		LastRedraw:  s.lastRedraw,
	}
}

// Start arms the scheduler if damage is already pending.
func (s *Scheduler) Start() {
	s.stopped = false
	if s.source.Pending() {
		s.Wake()
	}
}

// Stop cancels any armed timer and ignores further wakes until Start. A
// frame in progress is not interrupted but is not followed by another.
func (s *Scheduler) Stop() {
	s.stopped = true
	s.cancelTimer()
	if s.state == Scheduled {
		s.state = Idle
	}
}

// Wake asks for a frame as soon as the cadence allows. An armed timer is
// only ever moved earlier. During a paint the request is deferred to the
// end of the frame.
func (s *Scheduler) Wake() {
	if s.stopped {
		return
	}
	if s.state == Painting {
		s.reschedule = true
		return
	}

	now := s.timers.Now()
	diff := elapsedMs(s.lastRedraw, now)

	if s.state == Scheduled {
		preview := s.timing
		delay := msDuration(preview.TimeToNextRedraw(diff, s.idle, s.vsyncLimited()))
		if deadline, ok := s.timers.Deadline(s.timer); ok && !deadline.After(now.Add(delay)) {
			return
		}
		s.arm(delay)
		return
	}

	s.arm(msDuration(s.timing.TimeToNextRedraw(diff, s.idle, s.vsyncLimited())))
}

func (s *Scheduler) arm(delay time.Duration) {
	s.cancelTimer()
	s.timer = s.timers.AddTimeout(delay, s.fire)
	s.state = Scheduled
}

func (s *Scheduler) cancelTimer() {
	if s.timer != 0 {
		s.timers.RemoveTimeout(s.timer)
		s.timer = 0
	}
}

func (s *Scheduler) park() {
	s.cancelTimer()
	s.idle = true
	s.state = Idle
}

func (s *Scheduler) fire() {
	s.timer = 0
	if !s.source.Pending() {
		s.park()
		return
	}

	now := s.timers.Now()
	sinceLast := elapsedMs(s.lastRedraw, now)
	if s.idle {
		sinceLast = s.timing.OptimalRedrawTime
	}

	s.state = Painting
	s.reschedule = false
	s.idle = false
	s.lastRedraw = now

	s.painter.PreparePaint(sinceLast)
	if err := s.painter.Paint(); err != nil {
		s.logger.Warn("paint failed", "error", err)
		if s.onError != nil {
			s.onError(err)
		}
	}
	s.painter.DonePaint()
	s.frames++

	s.state = Scheduled
	if s.stopped || (!s.source.Pending() && !s.reschedule) {
		s.park()
		return
	}
	s.reschedule = false

	spent := elapsedMs(s.lastRedraw, s.timers.Now())
	s.arm(msDuration(s.timing.TimeToNextRedraw(spent, false, s.vsyncLimited())))
}

func elapsedMs(from, to time.Time) int {
	return int(to.Sub(from) / time.Millisecond)
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
