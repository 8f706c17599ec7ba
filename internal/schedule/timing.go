// Package schedule paces redraws against the display refresh rate.
package schedule

// Number of consecutive slow frames (as a negative count) past which the
// cadence slows down, and of fast frames past which it speeds back up.
const (
	slowFrameLimit = -1
	fastFrameLimit = 4
)

// Timing is the adaptive frame interval state. All durations are in
// milliseconds.
type Timing struct {
	// OptimalRedrawTime is the frame interval at the target refresh rate.
	OptimalRedrawTime int
	// RedrawTime is the interval currently committed to. It is always
	// OptimalRedrawTime times TimeMultiplier while busy.
	RedrawTime int
	// TimeMultiplier counts how many refresh periods a frame is given.
	TimeMultiplier int
	// FrameStatus is negative after consecutive slow frames and positive
	// after consecutive fast ones.
	FrameStatus int

	// decayed is set when an idle or vsync-limited frame stepped the
	// multiplier down. The -1 it leaves in FrameStatus is reported only and
	// does not count towards the next slowdown.
	decayed bool
}

// NewTiming returns the timing state for a target refresh rate in Hz.
// Rates below 1 fall back to DefaultRefreshRate.
func NewTiming(refreshRate int) Timing {
	if refreshRate < 1 {
		refreshRate = DefaultRefreshRate
	}
	optimal := 1000 / refreshRate
	if optimal < 1 {
		optimal = 1
	}
	return Timing{
		OptimalRedrawTime: optimal,
		RedrawTime:        optimal,
		TimeMultiplier:    1,
	}
}

// TimeToNextRedraw returns how many milliseconds to wait before the next
// frame, given diff milliseconds since the last one started. idle means no
// frame was painted recently; vsyncLimited means the renderer already
// blocks on vertical retrace, so the cadence must not be stretched.
//
// A single slow frame does not change the cadence: the multiplier only
// grows after frames overrun RedrawTime twice in a row, and only shrinks
// after five consecutive frames fit within a shorter interval. A frame that
// lands exactly on RedrawTime breaks a run of slow frames.
func (t *Timing) TimeToNextRedraw(diff int, idle, vsyncLimited bool) int {
	// The clock may go backwards.
	if diff < 0 {
		diff = 0
	}

	if idle || vsyncLimited {
		if t.TimeMultiplier > 1 {
			t.FrameStatus = -1
			t.RedrawTime = t.OptimalRedrawTime
			t.TimeMultiplier--
			t.decayed = true
		}
	} else if diff > t.RedrawTime {
		if t.FrameStatus > 0 || t.decayed {
			t.FrameStatus = 0
		}
		t.decayed = false
		next := t.OptimalRedrawTime * (t.TimeMultiplier + 1)
		t.FrameStatus--
		if t.FrameStatus < slowFrameLimit {
			t.TimeMultiplier++
			t.RedrawTime = next
			diff = next
		}
	} else {
		t.decayed = false
		if t.FrameStatus < 0 {
			t.FrameStatus = 0
		}
		if t.TimeMultiplier > 1 {
			next := t.OptimalRedrawTime * (t.TimeMultiplier - 1)
			if diff < next {
				t.FrameStatus++
				if t.FrameStatus > fastFrameLimit {
					t.TimeMultiplier--
					t.RedrawTime = next
				}
			}
		}
	}

	if diff >= t.RedrawTime {
		return 0
	}
	return t.RedrawTime - diff
}
