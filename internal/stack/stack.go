// Package stack keeps the window stacking order and builds per-frame paint
// lists.
package stack

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/1broseidon/compote/internal/window"
)

// Stack is a doubly linked list of windows ordered bottom to top.
type Stack struct {
	bottom *window.Window
	top    *window.Window
	byID   map[window.ID]*window.Window
	active window.ID
	logger *slog.Logger
}

// New returns an empty stack.
func New(logger *slog.Logger) *Stack {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stack{
		byID:   make(map[window.ID]*window.Window),
		logger: logger,
	}
}

// Len returns the number of windows in the stack.
func (s *Stack) Len() int {
	return len(s.byID)
}

// Find returns the window with the given id, or nil.
func (s *Stack) Find(id window.ID) *window.Window {
	if id == window.None {
		return nil
	}
	return s.byID[id]
}

// Bottom returns the lowest window.
func (s *Stack) Bottom() *window.Window {
	return s.bottom
}

// Top returns the highest window.
func (s *Stack) Top() *window.Window {
	return s.top
}

// Windows returns the stack bottom to top.
func (s *Stack) Windows() []*window.Window {
	out := make([]*window.Window, 0, len(s.byID))
	for w := s.bottom; w != nil; w = w.Next {
		out = append(out, w)
	}
	return out
}

// IDs returns the window ids bottom to top.
func (s *Stack) IDs() []window.ID {
	out := make([]window.ID, 0, len(s.byID))
	for w := s.bottom; w != nil; w = w.Next {
		out = append(out, w.ID)
	}
	return out
}

// SetActive records the focused window. Raising the active fullscreen
// window puts it above docks and the rest of the fullscreen layer.
func (s *Stack) SetActive(id window.ID) {
	s.active = id
}

// Insert places w directly above the window with id above, or at the
// bottom when above is None. A window already in the stack is moved. An
// unknown above id places w at the top, where the server puts new windows.
func (s *Stack) Insert(w *window.Window, above window.ID) {
	if w == nil {
		return
	}
	if above == w.ID {
		s.logger.Debug("ignoring restack relative to itself", "window", w.ID)
		above = window.None
		if w.Prev != nil {
			above = w.Prev.ID
		}
	}
	if _, ok := s.byID[w.ID]; ok {
		s.unlink(w)
	}
	s.byID[w.ID] = w

	if above == window.None {
		s.linkAbove(w, nil)
		return
	}
	sibling := s.byID[above]
	if sibling == nil {
		s.logger.Debug("restack above unknown window", "window", w.ID, "above", above)
		sibling = s.top
	}
	s.linkAbove(w, sibling)
}

// Remove takes w out of the stack.
func (s *Stack) Remove(w *window.Window) {
	if w == nil {
		return
	}
	if s.byID[w.ID] != w {
		return
	}
	s.unlink(w)
	delete(s.byID, w.ID)
}

// Raise moves w to the top of its layer. The whole transient family moves
// with it and w ends up as the topmost member of the family.
func (s *Stack) Raise(w *window.Window) {
	aboveFs := w.Type&window.TypeFullscreen != 0 && w.ID == s.active
	s.restackFamily(w, func(root *window.Window, skip map[window.ID]bool) *window.Window {
		return s.findSiblingBelow(root, aboveFs, skip)
	})
}

// Lower moves w to the bottom of its layer, carrying its transient family.
func (s *Stack) Lower(w *window.Window) {
	s.restackFamily(w, func(root *window.Window, skip map[window.ID]bool) *window.Window {
		return s.findLowestSiblingBelow(root, skip)
	})
}

// UpdateLayer re-applies layering after a type or state change.
func (s *Stack) UpdateLayer(w *window.Window) {
	s.restackFamily(w, func(root *window.Window, skip map[window.ID]bool) *window.Window {
		return s.findSiblingBelow(root, false, skip)
	})
}

// FindSiblingBelow returns the window w should be stacked directly above
// when raised, or nil for the bottom. Normal windows may go above
// fullscreen windows only when aboveFullscreen is set.
func (s *Stack) FindSiblingBelow(w *window.Window, aboveFullscreen bool) *window.Window {
	return s.findSiblingBelow(w, aboveFullscreen, s.family(w))
}

// FindLowestSiblingBelow returns the window w should be stacked directly
// above when lowered, or nil for the bottom.
func (s *Stack) FindLowestSiblingBelow(w *window.Window) *window.Window {
	return s.findLowestSiblingBelow(w, s.family(w))
}

// SyncOrder reorders the stack to match ids, given bottom to top. Windows
// missing from ids stay directly above their current lower neighbour.
// Unknown ids are ignored. It reports whether the order changed.
func (s *Stack) SyncOrder(ids []window.ID) bool {
	before := s.IDs()

	ordered := make([]*window.Window, 0, len(s.byID))
	listed := make(map[window.ID]bool, len(ids))
	for _, id := range ids {
		if w := s.byID[id]; w != nil && !listed[id] {
			ordered = append(ordered, w)
			listed[id] = true
		}
	}
	for w := s.bottom; w != nil; w = w.Next {
		if listed[w.ID] {
			continue
		}
		pos := 0
		if w.Prev != nil {
			for i, o := range ordered {
				if o == w.Prev {
					pos = i + 1
					break
				}
			}
		}
		ordered = append(ordered, nil)
		copy(ordered[pos+1:], ordered[pos:])
		ordered[pos] = w
		listed[w.ID] = true
	}

	s.bottom, s.top = nil, nil
	var prev *window.Window
	for _, w := range ordered {
		w.Prev, w.Next = prev, nil
		if prev != nil {
			prev.Next = w
		} else {
			s.bottom = w
		}
		prev = w
	}
	s.top = prev

	after := s.IDs()
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if before[i] != after[i] {
			return true
		}
	}
	return false
}

// Validate checks the list links against the id index.
func (s *Stack) Validate() error {
	seen := make(map[window.ID]bool, len(s.byID))
	var prev *window.Window
	for w := s.bottom; w != nil; w = w.Next {
		if seen[w.ID] {
			return fmt.Errorf("stack cycle at window %#x", w.ID)
		}
		seen[w.ID] = true
		if w.Prev != prev {
			return fmt.Errorf("window %#x has a broken prev link", w.ID)
		}
		if s.byID[w.ID] != w {
			return fmt.Errorf("window %#x is linked but not indexed", w.ID)
		}
		if len(seen) > len(s.byID) {
			return fmt.Errorf("stack has more links than windows")
		}
		prev = w
	}
	if prev != s.top {
		return fmt.Errorf("stack top does not match the last link")
	}
	if len(seen) != len(s.byID) {
		return fmt.Errorf("stack has %d orphaned windows", len(s.byID)-len(seen))
	}
	return nil
}

// Entry is one window in a paint list.
type Entry struct {
	Window    *window.Window
	Invisible bool
}

// PaintList returns the windows to composite, bottom to top. Destroyed
// windows stay in the list until they are removed from the stack.
func (s *Stack) PaintList() []Entry {
	out := make([]Entry, 0, len(s.byID))
	for w := s.bottom; w != nil; w = w.Next {
		out = append(out, Entry{Window: w, Invisible: w.Invisible})
	}
	return out
}

// Overlay returns the topmost visible window when it is an opaque,
// undecorated window covering the whole screen. Nothing below it needs to
// be drawn where it covers.
func Overlay(list []Entry, screen image.Rectangle) *window.Window {
	for i := len(list) - 1; i >= 0; i-- {
		w := list[i].Window
		if list[i].Invisible || !w.Viewable() || w.Destroyed {
			continue
		}
		if !w.Paintable() || !w.Opaque() || !w.Output.Zero() {
			return nil
		}
		if !screen.In(w.Rect()) {
			return nil
		}
		return w
	}
	return nil
}

func (s *Stack) linkAbove(w, sibling *window.Window) {
	if sibling == nil {
		w.Prev = nil
		w.Next = s.bottom
		if s.bottom != nil {
			s.bottom.Prev = w
		}
		s.bottom = w
		if s.top == nil {
			s.top = w
		}
		return
	}
	w.Prev = sibling
	w.Next = sibling.Next
	if sibling.Next != nil {
		sibling.Next.Prev = w
	} else {
		s.top = w
	}
	sibling.Next = w
}

func (s *Stack) unlink(w *window.Window) {
	if w.Prev != nil {
		w.Prev.Next = w.Next
	} else if s.bottom == w {
		s.bottom = w.Next
	}
	if w.Next != nil {
		w.Next.Prev = w.Prev
	} else if s.top == w {
		s.top = w.Prev
	}
	w.Prev, w.Next = nil, nil
}

func (s *Stack) moveAbove(w, sibling *window.Window) {
	if w == sibling {
		return
	}
	if sibling != nil && w.Prev == sibling {
		return
	}
	if sibling == nil && s.bottom == w {
		return
	}
	s.unlink(w)
	s.linkAbove(w, sibling)
}
