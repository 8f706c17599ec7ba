package window

import (
	"fmt"
	"math"
)

// Type is a bit set of window types, so stacking rules can test several
// at once.
type Type uint32

const (
	TypeDesktop Type = 1 << iota
	TypeDock
	TypeToolbar
	TypeMenu
	TypeUtility
	TypeSplash
	TypeDialog
	TypeNormal
	TypeDropdownMenu
	TypePopupMenu
	TypeTooltip
	TypeNotification
	TypeCombo
	TypeDnd
	TypeModalDialog
	TypeFullscreen
	TypeUnknown
)

// State is a bit set of _NET_WM_STATE values.
type State uint32

const (
	StateModal State = 1 << iota
	StateSticky
	StateMaximizedVert
	StateMaximizedHorz
	StateShaded
	StateSkipTaskbar
	StateSkipPager
	StateHidden
	StateFullscreen
	StateAbove
	StateBelow
	StateDemandsAttention
)

var ewmhTypes = map[string]Type{
	"_NET_WM_WINDOW_TYPE_DESKTOP":       TypeDesktop,
	"_NET_WM_WINDOW_TYPE_DOCK":          TypeDock,
	"_NET_WM_WINDOW_TYPE_TOOLBAR":       TypeToolbar,
	"_NET_WM_WINDOW_TYPE_MENU":          TypeMenu,
	"_NET_WM_WINDOW_TYPE_UTILITY":       TypeUtility,
	"_NET_WM_WINDOW_TYPE_SPLASH":        TypeSplash,
	"_NET_WM_WINDOW_TYPE_DIALOG":        TypeDialog,
	"_NET_WM_WINDOW_TYPE_NORMAL":        TypeNormal,
	"_NET_WM_WINDOW_TYPE_DROPDOWN_MENU": TypeDropdownMenu,
	"_NET_WM_WINDOW_TYPE_POPUP_MENU":    TypePopupMenu,
	"_NET_WM_WINDOW_TYPE_TOOLTIP":       TypeTooltip,
	"_NET_WM_WINDOW_TYPE_NOTIFICATION":  TypeNotification,
	"_NET_WM_WINDOW_TYPE_COMBO":         TypeCombo,
	"_NET_WM_WINDOW_TYPE_DND":           TypeDnd,
}

var ewmhStates = map[string]State{
	"_NET_WM_STATE_MODAL":             StateModal,
	"_NET_WM_STATE_STICKY":            StateSticky,
	"_NET_WM_STATE_MAXIMIZED_VERT":    StateMaximizedVert,
	"_NET_WM_STATE_MAXIMIZED_HORZ":    StateMaximizedHorz,
	"_NET_WM_STATE_SHADED":            StateShaded,
	"_NET_WM_STATE_SKIP_TASKBAR":      StateSkipTaskbar,
	"_NET_WM_STATE_SKIP_PAGER":        StateSkipPager,
	"_NET_WM_STATE_HIDDEN":            StateHidden,
	"_NET_WM_STATE_FULLSCREEN":        StateFullscreen,
	"_NET_WM_STATE_ABOVE":             StateAbove,
	"_NET_WM_STATE_BELOW":             StateBelow,
	"_NET_WM_STATE_DEMANDS_ATTENTION": StateDemandsAttention,
}

var typeNames = map[Type]string{
	TypeDesktop:      "desktop",
	TypeDock:         "dock",
	TypeToolbar:      "toolbar",
	TypeMenu:         "menu",
	TypeUtility:      "utility",
	TypeSplash:       "splash",
	TypeDialog:       "dialog",
	TypeNormal:       "normal",
	TypeDropdownMenu: "dropdown-menu",
	TypePopupMenu:    "popup-menu",
	TypeTooltip:      "tooltip",
	TypeNotification: "notification",
	TypeCombo:        "combo",
	TypeDnd:          "dnd",
	TypeModalDialog:  "modal-dialog",
	TypeFullscreen:   "fullscreen",
	TypeUnknown:      "unknown",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%#x)", uint32(t))
}

// TypeFromEWMH returns the first recognised type in a _NET_WM_WINDOW_TYPE
// list, which is ordered by preference.
func TypeFromEWMH(names []string) Type {
	for _, name := range names {
		if t, ok := ewmhTypes[name]; ok {
			return t
		}
	}
	return TypeUnknown
}

// StateFromEWMH folds a _NET_WM_STATE list into a State.
func StateFromEWMH(names []string) State {
	var s State
	for _, name := range names {
		s |= ewmhStates[name]
	}
	return s
}

// EffectiveType derives the stacking type from the requested type and
// state.
func EffectiveType(wmType Type, state State, transientFor ID, overrideRedirect bool) Type {
	t := wmType
	if !overrideRedirect && t == TypeUnknown {
		t = TypeNormal
	}
	if state&StateFullscreen != 0 {
		t = TypeFullscreen
	}
	if t == TypeNormal && transientFor != None {
		t = TypeDialog
	}
	if t&TypeDock != 0 && state&StateBelow != 0 {
		t = TypeNormal
	}
	if t&(TypeNormal|TypeDialog) != 0 && state&StateModal != 0 {
		t = TypeModalDialog
	}
	return t
}

// Properties are the client-set window properties the compositor tracks.
type Properties struct {
	WMType       Type
	State        State
	TransientFor ID
	ClientLeader ID
	Opacity      uint16
	Input        Extents
	Output       Extents
}

// DefaultProperties describe a window with no properties set.
func DefaultProperties() Properties {
	return Properties{WMType: TypeUnknown, Opacity: MaxAttrib}
}

// OpacityFromFraction converts a 0..1 opacity into a paint attribute.
func OpacityFromFraction(f float64) uint16 {
	switch {
	case math.IsNaN(f) || f >= 1:
		return MaxAttrib
	case f <= 0:
		return 0
	}
	return uint16(math.Round(f * MaxAttrib))
}
