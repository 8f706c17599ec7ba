package x11

import (
	"image"
	"testing"

	"github.com/1broseidon/compote/internal/event"
	"github.com/1broseidon/compote/internal/window"
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/google/go-cmp/cmp"
)

func TestConfiguredDecodesGeometryAndSibling(t *testing.T) {
	got := configured(xproto.ConfigureNotifyEvent{
		Window:           0x400001,
		AboveSibling:     0x300002,
		X:                -10,
		Y:                20,
		Width:            640,
		Height:           480,
		BorderWidth:      2,
		OverrideRedirect: true,
	})
	want := event.WindowConfigured{
		ID:               0x400001,
		Geometry:         window.Geometry{X: -10, Y: 20, Width: 640, Height: 480, Border: 2},
		Above:            0x300002,
		OverrideRedirect: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("configure mismatch (-want +got):\n%s", diff)
	}
}

func TestCirculated(t *testing.T) {
	if got := circulated(xproto.CirculateNotifyEvent{Window: 7, Place: xproto.PlaceOnTop}); !got.OnTop || got.ID != 7 {
		t.Fatalf("expected window 7 on top, got %+v", got)
	}
	if got := circulated(xproto.CirculateNotifyEvent{Window: 7, Place: xproto.PlaceOnBottom}); got.OnTop {
		t.Fatalf("expected window on bottom, got %+v", got)
	}
}

func TestExposedMarksLastRectangle(t *testing.T) {
	got := exposed(xproto.ExposeEvent{Window: 1, X: 5, Y: 6, Width: 10, Height: 20, Count: 2})
	if got.Rect != image.Rect(5, 6, 15, 26) {
		t.Fatalf("unexpected rect %v", got.Rect)
	}
	if got.IsLast {
		t.Fatalf("expected more rectangles to follow")
	}
	if got := exposed(xproto.ExposeEvent{Window: 1, Width: 1, Height: 1}); !got.IsLast {
		t.Fatalf("expected count 0 to be the last rectangle")
	}
}

func TestDamagedDecodesMoreFlag(t *testing.T) {
	ev := damage.NotifyEvent{
		Level:    damage.ReportLevelRawRectangles | damageNotifyMore,
		Drawable: 0x500003,
		Area:     xproto.Rectangle{X: 3, Y: 4, Width: 30, Height: 40},
	}
	got := damaged(ev)
	want := event.DamageReported{ID: 0x500003, Rect: image.Rect(3, 4, 33, 44), More: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("damage mismatch (-want +got):\n%s", diff)
	}

	ev.Level = damage.ReportLevelRawRectangles
	if damaged(ev).More {
		t.Fatalf("expected the last rectangle of a report")
	}
}

func TestShapedIgnoresInputShape(t *testing.T) {
	ev := shape.NotifyEvent{
		ShapeKind:      shape.SkBounding,
		AffectedWindow: 9,
		ExtentsX:       -2,
		ExtentsY:       -2,
		ExtentsWidth:   104,
		ExtentsHeight:  54,
	}
	got, ok := shaped(ev)
	if !ok {
		t.Fatalf("expected bounding shape change to be reported")
	}
	if got.Bounds != image.Rect(-2, -2, 102, 52) {
		t.Fatalf("unexpected bounds %v", got.Bounds)
	}

	ev.ShapeKind = shape.SkInput
	if _, ok := shaped(ev); ok {
		t.Fatalf("expected input shape change to be ignored")
	}
}

func TestClassifyProperty(t *testing.T) {
	tests := map[string]propertyKind{
		"_NET_WM_WINDOW_TYPE":    propWindow,
		"_NET_WM_STATE":          propWindow,
		"WM_TRANSIENT_FOR":       propWindow,
		"_NET_WM_WINDOW_OPACITY": propWindow,
		"_NET_FRAME_EXTENTS":     propWindow,
		"_NET_WM_STRUT_PARTIAL":  propStrut,
		"_NET_CLIENT_LIST":       propStrut,
		"_NET_ACTIVE_WINDOW":     propActive,
		"WM_NAME":                propIgnored,
		"_NET_WM_NAME":           propIgnored,
	}
	for name, want := range tests {
		if got := classifyProperty(name); got != want {
			t.Fatalf("%s: expected %d, got %d", name, want, got)
		}
	}
}

func TestRestackSteps(t *testing.T) {
	got := restackSteps([]window.ID{1, 2, 3})
	want := []restackStep{{window: 2, sibling: 1}, {window: 3, sibling: 2}}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(restackStep{})); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
	if got := restackSteps([]window.ID{1}); len(got) != 0 {
		t.Fatalf("expected no steps for a single window, got %v", got)
	}
}

func TestRefreshRateOrDefault(t *testing.T) {
	if got := refreshRateOrDefault(0); got != DefaultRefreshRate {
		t.Fatalf("expected default rate, got %d", got)
	}
	if got := refreshRateOrDefault(144); got != 144 {
		t.Fatalf("expected 144, got %d", got)
	}
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		major, minor uint32
		want         bool
	}{
		{0, 4, true},
		{0, 2, true},
		{0, 1, false},
		{1, 0, true},
	}
	for _, tt := range tests {
		if got := versionAtLeast(tt.major, tt.minor, 0, 2); got != tt.want {
			t.Fatalf("%d.%d: expected %v, got %v", tt.major, tt.minor, tt.want, got)
		}
	}
}

func TestSelectionName(t *testing.T) {
	if got := SelectionName(1); got != "_NET_WM_CM_S1" {
		t.Fatalf("expected _NET_WM_CM_S1, got %s", got)
	}
}

func TestIsDock(t *testing.T) {
	if !isDock([]string{"_NET_WM_WINDOW_TYPE_NORMAL", "_NET_WM_WINDOW_TYPE_DOCK"}) {
		t.Fatalf("expected dock to be detected")
	}
	if isDock([]string{"_NET_WM_WINDOW_TYPE_NORMAL"}) {
		t.Fatalf("expected normal window not to be a dock")
	}
}
