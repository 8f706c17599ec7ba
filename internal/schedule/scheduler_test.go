package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/1broseidon/compote/internal/loop"
	"github.com/google/go-cmp/cmp"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeSource struct {
	pending bool
}

func (f *fakeSource) Pending() bool { return f.pending }

type fakePainter struct {
	prepared []int
	paints   int
	dones    int
	onPaint  func() error
}

func (p *fakePainter) PreparePaint(ms int) { p.prepared = append(p.prepared, ms) }

func (p *fakePainter) Paint() error {
	p.paints++
	if p.onPaint != nil {
		return p.onPaint()
	}
	return nil
}

func (p *fakePainter) DonePaint() { p.dones++ }

type harness struct {
	clock   *manualClock
	loop    *loop.Loop
	source  *fakeSource
	painter *fakePainter
	sched   *Scheduler
}

func newHarness(opts ...Option) *harness {
	clock := &manualClock{now: time.Unix(5000, 0)}
	h := &harness{
		clock:   clock,
		loop:    loop.New(clock, nil),
		source:  &fakeSource{},
		painter: &fakePainter{},
	}
	h.sched = New(h.loop, h.painter, h.source, 50, opts...)
	return h
}

func TestWakePaintsAndParks(t *testing.T) {
	h := newHarness()
	h.painter.onPaint = func() error {
		h.source.pending = false
		return nil
	}

	h.source.pending = true
	h.sched.Wake()
	if h.sched.State() != Scheduled {
		t.Fatalf("expected scheduled, got %s", h.sched.State())
	}

	h.clock.advance(20 * time.Millisecond)
	h.loop.RunPending()

	if h.painter.paints != 1 || h.painter.dones != 1 {
		t.Fatalf("expected one frame, got %d paints and %d dones", h.painter.paints, h.painter.dones)
	}
	if diff := cmp.Diff([]int{20}, h.painter.prepared); diff != "" {
		t.Fatalf("prepare mismatch (-want +got):\n%s", diff)
	}
	if h.sched.State() != Idle {
		t.Fatalf("expected idle after clean frame, got %s", h.sched.State())
	}
	if h.loop.Pending() != 0 {
		t.Fatalf("expected parked scheduler to hold no timer, got %d", h.loop.Pending())
	}
	if h.sched.Stats().Frames != 1 {
		t.Fatalf("expected frame count 1, got %d", h.sched.Stats().Frames)
	}
}

func TestTimerFiresWithoutDamageParks(t *testing.T) {
	h := newHarness()
	h.sched.Wake()
	h.clock.advance(time.Second)
	h.loop.RunPending()

	if h.painter.paints != 0 {
		t.Fatalf("expected no paint without damage")
	}
	if h.sched.State() != Idle {
		t.Fatalf("expected idle, got %s", h.sched.State())
	}
}

func TestWakeOnlyShortensTimer(t *testing.T) {
	h := newHarness()
	h.source.pending = true

	h.sched.arm(100 * time.Millisecond)
	h.sched.Wake()
	deadline, ok := h.loop.Deadline(h.sched.timer)
	if !ok {
		t.Fatalf("expected armed timer")
	}
	if want := h.clock.now.Add(20 * time.Millisecond); !deadline.Equal(want) {
		t.Fatalf("expected timer shortened to %v, got %v", want, deadline)
	}

	h.sched.arm(5 * time.Millisecond)
	before := h.sched.timer
	h.sched.Wake()
	if h.sched.timer != before {
		t.Fatalf("expected earlier timer to be kept")
	}
	if h.loop.Pending() != 1 {
		t.Fatalf("expected a single armed timer, got %d", h.loop.Pending())
	}
}

func TestContinuousDamageKeepsCadence(t *testing.T) {
	h := newHarness()
	h.source.pending = true
	h.sched.Wake()

	h.clock.advance(20 * time.Millisecond)
	h.loop.RunPending()
	if h.sched.State() != Scheduled {
		t.Fatalf("expected scheduled while damage remains, got %s", h.sched.State())
	}

	h.clock.advance(10 * time.Millisecond)
	h.loop.RunPending()
	if h.painter.paints != 1 {
		t.Fatalf("expected no early frame, got %d paints", h.painter.paints)
	}

	h.clock.advance(15 * time.Millisecond)
	h.loop.RunPending()
	if diff := cmp.Diff([]int{20, 25}, h.painter.prepared); diff != "" {
		t.Fatalf("prepare mismatch (-want +got):\n%s", diff)
	}
}

func TestDamageDuringPaintDefersToNextFrame(t *testing.T) {
	h := newHarness()
	h.painter.onPaint = func() error {
		h.source.pending = false
		// A collaborator damages the screen mid-frame.
		h.sched.Wake()
		h.source.pending = true
		return nil
	}

	h.source.pending = true
	h.sched.Wake()
	h.clock.advance(20 * time.Millisecond)
	h.loop.RunPending()

	if h.painter.paints != 1 {
		t.Fatalf("expected re-entrant wake not to paint, got %d paints", h.painter.paints)
	}
	if h.sched.State() != Scheduled || h.loop.Pending() != 1 {
		t.Fatalf("expected next frame scheduled, got %s with %d timers", h.sched.State(), h.loop.Pending())
	}
}

func TestRescheduleWithoutPendingDamage(t *testing.T) {
	h := newHarness()
	h.painter.onPaint = func() error {
		h.source.pending = false
		h.sched.Wake()
		return nil
	}

	h.source.pending = true
	h.sched.Wake()
	h.clock.advance(20 * time.Millisecond)
	h.loop.RunPending()

	if h.sched.State() != Scheduled {
		t.Fatalf("expected wake during paint to schedule another frame, got %s", h.sched.State())
	}
}

func TestSlowPaintsStretchCadence(t *testing.T) {
	h := newHarness()
	h.painter.onPaint = func() error {
		h.clock.advance(25 * time.Millisecond)
		return nil
	}

	h.source.pending = true
	h.sched.Wake()
	h.clock.advance(20 * time.Millisecond)
	h.loop.RunPending()
	if got := h.sched.Stats().Timing.TimeMultiplier; got != 1 {
		t.Fatalf("expected multiplier 1 after one slow frame, got %d", got)
	}

	h.loop.RunPending()
	stats := h.sched.Stats()
	if stats.Frames != 2 {
		t.Fatalf("expected 2 frames, got %d", stats.Frames)
	}
	if stats.Timing.TimeMultiplier != 2 || stats.Timing.RedrawTime != 40 {
		t.Fatalf("expected slower cadence, got %+v", stats.Timing)
	}
}

func TestPaintErrorStillCompletesFrame(t *testing.T) {
	boom := errors.New("boom")
	var got error
	h := newHarness(WithErrorHandler(func(err error) { got = err }))
	h.painter.onPaint = func() error {
		h.source.pending = false
		return boom
	}

	h.source.pending = true
	h.sched.Wake()
	h.clock.advance(20 * time.Millisecond)
	h.loop.RunPending()

	if !errors.Is(got, boom) {
		t.Fatalf("expected paint error to reach handler, got %v", got)
	}
	if h.painter.dones != 1 {
		t.Fatalf("expected done after failed paint, got %d", h.painter.dones)
	}
}

func TestStopIgnoresWake(t *testing.T) {
	h := newHarness()
	h.source.pending = true
	h.sched.Wake()
	h.sched.Stop()
	if h.loop.Pending() != 0 {
		t.Fatalf("expected timer removed on stop")
	}

	h.sched.Wake()
	h.clock.advance(time.Second)
	h.loop.RunPending()
	if h.painter.paints != 0 {
		t.Fatalf("expected no paint after stop")
	}

	h.sched.Start()
	h.clock.advance(time.Second)
	h.loop.RunPending()
	if h.painter.paints != 1 {
		t.Fatalf("expected paint after restart, got %d", h.painter.paints)
	}
}

func TestVSyncLimitedDecaysMultiplier(t *testing.T) {
	h := newHarness(WithVSyncLimited(func() bool { return true }))
	h.sched.timing = Timing{OptimalRedrawTime: 20, RedrawTime: 60, TimeMultiplier: 3}

	h.source.pending = true
	h.sched.Wake()
	if got := h.sched.Stats().Timing.TimeMultiplier; got != 2 {
		t.Fatalf("expected multiplier to decay to 2, got %d", got)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{Idle: "idle", Scheduled: "scheduled", Painting: "painting", State(9): "state(9)"}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
