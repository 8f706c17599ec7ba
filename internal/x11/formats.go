package x11

import (
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
)

// Formats indexes the Render picture formats of the server.
type Formats struct {
	byID     map[render.Pictformat]render.Pictforminfo
	byVisual map[xproto.Visualid]render.Pictformat
}

// NewFormats indexes a QueryPictFormats reply.
func NewFormats(reply *render.QueryPictFormatsReply) *Formats {
	f := &Formats{
		byID:     make(map[render.Pictformat]render.Pictforminfo, len(reply.Formats)),
		byVisual: make(map[xproto.Visualid]render.Pictformat),
	}
	for _, info := range reply.Formats {
		f.byID[info.Id] = info
	}
	for _, screen := range reply.Screens {
		for _, depth := range screen.Depths {
			for _, v := range depth.Visuals {
				f.byVisual[v.Visual] = v.Format
			}
		}
	}
	return f
}

// ForVisual returns the picture format of a visual.
func (f *Formats) ForVisual(visual xproto.Visualid) (render.Pictformat, bool) {
	id, ok := f.byVisual[visual]
	return id, ok
}

// HasAlpha reports whether windows of the visual carry an alpha channel.
func (f *Formats) HasAlpha(visual xproto.Visualid) bool {
	id, ok := f.byVisual[visual]
	if !ok {
		return false
	}
	info := f.byID[id]
	return info.Type == render.PictTypeDirect && info.Direct.AlphaMask != 0
}

// Standard returns a direct format with the given depth, with or without
// alpha, such as ARGB32 or A8.
func (f *Formats) Standard(depth byte, alpha bool) (render.Pictformat, bool) {
	var best render.Pictformat
	found := false
	for id, info := range f.byID {
		if info.Type != render.PictTypeDirect || info.Depth != depth {
			continue
		}
		if (info.Direct.AlphaMask != 0) != alpha {
			continue
		}
		// Lowest id keeps the choice stable across map iteration.
		if !found || id < best {
			best, found = id, true
		}
	}
	return best, found
}
