package composite

// Plugin intercepts the paint phases. Each method receives the next stage
// of the chain and must call it to keep the core behavior.
type Plugin interface {
	PreparePaint(msSinceLastPaint int, next func(int))
	Paint(f *Frame, next func(*Frame) error) error
	DonePaint(next func())
}

// BasePlugin passes every phase through unchanged. Embed it to override
// only some phases.
type BasePlugin struct{}

func (BasePlugin) PreparePaint(ms int, next func(int)) { next(ms) }

func (BasePlugin) Paint(f *Frame, next func(*Frame) error) error { return next(f) }

func (BasePlugin) DonePaint(next func()) { next() }

// Use registers a plugin. Later plugins wrap earlier ones.
func (s *Screen) Use(p Plugin) {
	s.plugins = append(s.plugins, p)
}

func (s *Screen) prepareChain(ms int) {
	next := s.corePrepare
	for _, p := range s.plugins {
		inner := next
		next = func(ms int) { p.PreparePaint(ms, inner) }
	}
	next(ms)
}

func (s *Screen) paintChain(f *Frame) error {
	next := s.corePaint
	for _, p := range s.plugins {
		inner := next
		next = func(f *Frame) error { return p.Paint(f, inner) }
	}
	return next(f)
}

func (s *Screen) doneChain() {
	next := s.coreDone
	for _, p := range s.plugins {
		inner := next
		next = func() { p.DonePaint(inner) }
	}
	next()
}

// painter adapts the plugin chains to schedule.Painter.
type painter struct {
	s *Screen
}

func (p painter) PreparePaint(ms int) { p.s.prepareChain(ms) }

func (p painter) Paint() error { return p.s.paint() }

func (p painter) DonePaint() { p.s.doneChain() }
