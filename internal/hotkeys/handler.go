package hotkeys

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// modifierMask covers Shift, Lock, Control and Mod1-Mod5. Pointer button
// bits in a key event's state are ignored.
const modifierMask = 0xff

type binding struct {
	sequence string
	mods     uint16
	codes    []xproto.Keycode
	callback func()
}

func (b binding) matches(code xproto.Keycode, state, ignore uint16) bool {
	if state&modifierMask&^ignore != b.mods {
		return false
	}
	for _, c := range b.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Handler manages global keyboard shortcuts grabbed on the root window.
// Key presses reach it through HandleKeyPress from the event pump.
type Handler struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	logger *slog.Logger

	mu       sync.Mutex
	ignore   uint16
	bindings []binding
}

var ignoreModsOnce sync.Once

// NewHandler creates a hotkey handler. keybind.Initialize must already
// have run on xu.
func NewHandler(xu *xgbutil.XUtil, root xproto.Window, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		xu:     xu,
		root:   root,
		logger: logger.With("component", "hotkeys"),
	}
	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})
	h.ignore = lockMask(xevent.IgnoreMods)
	return h
}

// Register grabs keySequence (for example "Mod4-Shift-r") and runs
// callback on every press. The callback runs on the event pump goroutine.
func (h *Handler) Register(keySequence string, callback func()) error {
	keySequence = strings.TrimSpace(keySequence)
	if keySequence == "" {
		return fmt.Errorf("empty key sequence")
	}
	mods, codes, err := keybind.ParseString(h.xu, keySequence)
	if err != nil {
		return fmt.Errorf("invalid key sequence %q: %w", keySequence, err)
	}
	if len(codes) == 0 {
		return fmt.Errorf("key sequence %q maps to no keycode", keySequence)
	}
	for i, code := range codes {
		if err := keybind.GrabChecked(h.xu, h.root, mods, code); err != nil {
			for _, grabbed := range codes[:i] {
				keybind.Ungrab(h.xu, h.root, mods, grabbed)
			}
			return fmt.Errorf("failed to grab %q (is another program using it?): %w", keySequence, err)
		}
	}

	h.mu.Lock()
	h.bindings = append(h.bindings, binding{sequence: keySequence, mods: mods, codes: codes, callback: callback})
	h.mu.Unlock()
	h.logger.Debug("hotkey registered", "keys", keySequence)
	return nil
}

// UnregisterAll releases every grab.
func (h *Handler) UnregisterAll() {
	h.mu.Lock()
	bindings := h.bindings
	h.bindings = nil
	h.mu.Unlock()

	for _, b := range bindings {
		for _, code := range b.codes {
			keybind.Ungrab(h.xu, h.root, b.mods, code)
		}
	}
}

// HandleKeyPress runs the callback bound to the pressed key, if any.
func (h *Handler) HandleKeyPress(ev xproto.KeyPressEvent) bool {
	h.mu.Lock()
	var callback func()
	for _, b := range h.bindings {
		if b.matches(ev.Detail, ev.State, h.ignore) {
			h.logger.Debug("hotkey pressed", "keys", b.sequence)
			callback = b.callback
			break
		}
	}
	h.mu.Unlock()

	if callback == nil {
		return false
	}
	callback()
	return true
}

// configureIgnoreMods makes grabs fire regardless of Caps, Num and Scroll
// Lock state.
func configureIgnoreMods(xu *xgbutil.XUtil) {
	caps := uint16(xproto.ModMaskLock)
	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")
	xevent.IgnoreMods = ignoreCombinations(caps, numLock, scrollLock)
}

// ignoreCombinations returns every subset of the given lock masks,
// including the empty one.
func ignoreCombinations(caps, numLock, scrollLock uint16) []uint16 {
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	ignore := make([]uint16, 0, 1<<len(base))
	for subset := 0; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		ignore = append(ignore, mask)
	}
	return ignore
}

func lockMask(ignore []uint16) uint16 {
	var mask uint16
	for _, m := range ignore {
		mask |= m
	}
	return mask
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
