package xrender

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/xgb/render"
)

// ParseColor parses "#rrggbb" or "#rrggbbaa" into an opaque-by-default
// Render color.
func ParseColor(s string) (render.Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return render.Color{}, fmt.Errorf("invalid color %q: expected #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return render.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return render.Color{
		Red:   expand(uint8(v >> 24)),
		Green: expand(uint8(v >> 16)),
		Blue:  expand(uint8(v >> 8)),
		Alpha: expand(uint8(v)),
	}, nil
}

// expand widens an 8-bit channel to 16 bits so that 0xff maps to 0xffff.
func expand(c uint8) uint16 {
	return uint16(c)<<8 | uint16(c)
}
