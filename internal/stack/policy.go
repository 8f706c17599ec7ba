package stack

import (
	"github.com/1broseidon/compote/internal/window"
)

const groupTransientTypes = window.TypeUtility | window.TypeToolbar | window.TypeMenu |
	window.TypeDialog | window.TypeModalDialog

// restackFamily moves the transient family of w as one block. place picks
// the window the family root goes above, ignoring members of the family.
func (s *Stack) restackFamily(w *window.Window, place func(root *window.Window, skip map[window.ID]bool) *window.Window) {
	if s.byID[w.ID] != w {
		s.logger.Debug("restack of unknown window", "window", w.ID)
		return
	}
	root := s.familyRoot(w)
	skip := s.family(root)
	s.moveAbove(root, place(root, skip))
	s.stackTransients(root, w, make(map[window.ID]bool))
}

// familyRoot follows transient-for links to the outermost ancestor still
// in the stack. Cycles stop at the last window not yet visited.
func (s *Stack) familyRoot(w *window.Window) *window.Window {
	visited := map[window.ID]bool{w.ID: true}
	cur := w
	for {
		parent := s.Find(cur.TransientFor)
		if parent == nil || visited[parent.ID] {
			if parent != nil {
				s.logger.Debug("transient cycle", "window", cur.ID, "transient_for", parent.ID)
			}
			return cur
		}
		visited[parent.ID] = true
		cur = parent
	}
}

// family returns root and every window transitively transient for it.
func (s *Stack) family(root *window.Window) map[window.ID]bool {
	members := map[window.ID]bool{root.ID: true}
	queue := []*window.Window{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, t := range s.transientsOf(parent) {
			if members[t.ID] {
				continue
			}
			members[t.ID] = true
			queue = append(queue, t)
		}
	}
	return members
}

// stackTransients places the transients of parent directly above it, each
// followed by its own transients, and returns the topmost window placed.
// The branch leading to prefer is placed last so prefer ends on top of the
// family.
func (s *Stack) stackTransients(parent, prefer *window.Window, visited map[window.ID]bool) *window.Window {
	visited[parent.ID] = true
	children := s.transientsOf(parent)

	if prefer != nil && prefer != parent {
		for i, t := range children {
			if t == prefer || s.isAncestorTo(prefer, t) {
				children = append(append(children[:i:i], children[i+1:]...), t)
				break
			}
		}
	}

	cursor := parent
	for _, t := range children {
		if visited[t.ID] {
			continue
		}
		s.moveAbove(t, cursor)
		cursor = s.stackTransients(t, prefer, visited)
	}
	return cursor
}

// transientsOf returns the windows transient for parent, or group
// transients of its client leader, bottom to top.
func (s *Stack) transientsOf(parent *window.Window) []*window.Window {
	leader := parent.ClientLeader
	if parent.TransientFor != window.None || s.isGroupTransient(parent, leader) {
		leader = window.None
	}

	var out []*window.Window
	for t := s.bottom; t != nil; t = t.Next {
		if t == parent || t.Destroyed || t.OverrideRedirect {
			continue
		}
		if t.TransientFor == parent.ID || s.isGroupTransient(t, leader) {
			out = append(out, t)
		}
	}
	return out
}

// isAncestorTo reports whether ancestor is reachable from transient by
// following transient-for links.
func (s *Stack) isAncestorTo(transient, ancestor *window.Window) bool {
	visited := map[window.ID]bool{transient.ID: true}
	cur := transient
	for cur.TransientFor != window.None {
		if cur.TransientFor == ancestor.ID {
			return true
		}
		next := s.Find(cur.TransientFor)
		if next == nil || visited[next.ID] {
			return false
		}
		visited[next.ID] = true
		cur = next
	}
	return false
}

// isGroupTransient reports whether w is a dialog-like window of the group
// led by leader that is not transient for a specific window.
func (s *Stack) isGroupTransient(w *window.Window, leader window.ID) bool {
	if leader == window.None {
		return false
	}
	if w.TransientFor != window.None {
		return false
	}
	return w.Type&groupTransientTypes != 0 && w.ClientLeader == leader
}

// avoidStackingRelativeTo skips windows whose position carries no meaning
// for layering.
func avoidStackingRelativeTo(w *window.Window) bool {
	return w.OverrideRedirect || !w.Viewable() || w.Destroyed
}

// stackLayerCheck reports whether w may be stacked above below within the
// same layer.
func (s *Stack) stackLayerCheck(w *window.Window, leader window.ID, below *window.Window) bool {
	if s.isAncestorTo(w, below) {
		return true
	}
	if s.isAncestorTo(below, w) {
		return false
	}
	if leader != window.None && below.ClientLeader == leader && s.isGroupTransient(below, leader) {
		return false
	}
	switch {
	case w.State&window.StateAbove != 0:
		return true
	case w.State&window.StateBelow != 0:
		return below.State&window.StateBelow != 0
	default:
		return below.State&window.StateAbove == 0
	}
}

func stackingType(w *window.Window) window.Type {
	if w.Type&window.TypeFullscreen != 0 && w.State&window.StateBelow != 0 {
		return window.TypeNormal
	}
	return w.Type
}

func (s *Stack) stackingLeader(w *window.Window) window.ID {
	if w.TransientFor != window.None || s.isGroupTransient(w, w.ClientLeader) {
		return window.None
	}
	return w.ClientLeader
}

// findSiblingBelow walks the stack top down and returns the first window w
// may sit directly above.
func (s *Stack) findSiblingBelow(w *window.Window, aboveFs bool, skip map[window.ID]bool) *window.Window {
	typ := stackingType(w)
	leader := s.stackingLeader(w)

	belowMask := window.TypeDock | window.TypeFullscreen
	if aboveFs {
		belowMask = window.TypeDock
	}

	for below := s.top; below != nil; below = below.Prev {
		if below == w || skip[below.ID] || avoidStackingRelativeTo(below) {
			continue
		}

		// Always above desktop windows.
		if below.Type&window.TypeDesktop != 0 {
			return below
		}

		switch {
		case typ&window.TypeDesktop != 0:
			// Desktop layer: only other desktops are acceptable.
		case typ&window.TypeFullscreen != 0 && aboveFs:
			return below
		case typ&(window.TypeFullscreen|window.TypeDock) != 0:
			if below.Type&(window.TypeFullscreen|window.TypeDock) == 0 {
				return below
			}
			if s.stackLayerCheck(w, leader, below) {
				return below
			}
		default:
			if below.Type&belowMask == 0 && s.stackLayerCheck(w, leader, below) {
				return below
			}
		}
	}
	return nil
}

// findLowestSiblingBelow walks the stack top down and returns the first
// window w may not go below.
func (s *Stack) findLowestSiblingBelow(w *window.Window, skip map[window.ID]bool) *window.Window {
	typ := stackingType(w)
	leader := s.stackingLeader(w)

	for below := s.top; below != nil; below = below.Prev {
		if below == w || skip[below.ID] || avoidStackingRelativeTo(below) {
			continue
		}

		if below.Type&window.TypeDesktop != 0 {
			return below
		}

		switch {
		case typ&window.TypeDesktop != 0:
			return nil
		case typ&(window.TypeFullscreen|window.TypeDock) != 0:
			if below.Type&(window.TypeFullscreen|window.TypeDock) == 0 {
				return below
			}
			if !s.stackLayerCheck(below, leader, w) {
				return below
			}
		default:
			if below.Type&window.TypeDock == 0 && !s.stackLayerCheck(below, leader, w) {
				return below
			}
		}
	}
	return nil
}
