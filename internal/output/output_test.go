package output

import (
	"image"
	"testing"

	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/google/go-cmp/cmp"
)

var screen = image.Rect(0, 0, 3840, 1080)

func TestNewSetClipsAndDropsEmptyDevices(t *testing.T) {
	set := NewSet(screen, []Device{
		{Name: "left", Rect: image.Rect(0, 0, 1920, 1080)},
		{Name: "offscreen", Rect: image.Rect(5000, 0, 6000, 1000)},
		{Name: "right", Rect: image.Rect(1920, 0, 4000, 1200)},
	})

	got := set.Devices()
	want := []Device{
		{ID: 0, Name: "left", Rect: image.Rect(0, 0, 1920, 1080), WorkArea: image.Rect(0, 0, 1920, 1080)},
		{ID: 1, Name: "right", Rect: image.Rect(1920, 0, 3840, 1080), WorkArea: image.Rect(1920, 0, 3840, 1080)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("devices mismatch (-want +got):\n%s", diff)
	}
	if set.HasOverlappingOutputs() {
		t.Fatalf("expected no overlap")
	}
}

func TestNewSetFallsBackToScreen(t *testing.T) {
	set := NewSet(screen, nil)
	if set.Len() != 1 {
		t.Fatalf("expected 1 device, got %d", set.Len())
	}
	if got := set.Devices()[0].Rect; got != screen {
		t.Fatalf("expected %v, got %v", screen, got)
	}
}

func TestForFrame(t *testing.T) {
	mirrored := NewSet(image.Rect(0, 0, 1920, 1080), []Device{
		{Rect: image.Rect(0, 0, 1920, 1080)},
		{Rect: image.Rect(0, 0, 1280, 1024)},
	})
	if !mirrored.HasOverlappingOutputs() {
		t.Fatalf("expected overlap")
	}

	frame := mirrored.ForFrame(false)
	if len(frame) != 1 || frame[0].Rect != image.Rect(0, 0, 1920, 1080) {
		t.Fatalf("expected single fullscreen output, got %+v", frame)
	}

	independent := mirrored.ForFrame(true)
	if len(independent) != 2 {
		t.Fatalf("expected 2 independent outputs, got %d", len(independent))
	}

	side := NewSet(screen, []Device{
		{Rect: image.Rect(0, 0, 1920, 1080)},
		{Rect: image.Rect(1920, 0, 3840, 1080)},
	})
	if got := side.ForFrame(false); len(got) != 2 {
		t.Fatalf("expected side-by-side outputs to stay independent, got %d", len(got))
	}
}

func TestIntersectsAndDeviceFor(t *testing.T) {
	set := NewSet(screen, []Device{
		{Rect: image.Rect(0, 0, 1920, 1080)},
		{Rect: image.Rect(1920, 0, 3840, 1080)},
	})

	if set.Intersects(image.Rect(-100, -100, -10, -10)) {
		t.Fatalf("expected offscreen rect not to intersect")
	}
	if !set.Intersects(image.Rect(1900, 10, 1950, 50)) {
		t.Fatalf("expected straddling rect to intersect")
	}
	if got := set.DeviceFor(image.Rect(1800, 0, 2400, 100)); got != 1 {
		t.Fatalf("expected device 1, got %d", got)
	}
}

func TestParseGeometry(t *testing.T) {
	tests := []struct {
		in      string
		want    image.Rectangle
		wantErr bool
	}{
		{in: "1920x1080+0+0", want: image.Rect(0, 0, 1920, 1080)},
		{in: "1280x1024+1920+56", want: image.Rect(1920, 56, 3200, 1080)},
		{in: "640x480", want: image.Rect(0, 0, 640, 480)},
		{in: "800x600-10+20", want: image.Rect(-10, 20, 790, 620)},
		{in: "", wantErr: true},
		{in: "1920+0+0", wantErr: true},
		{in: "0x100+0+0", wantErr: true},
		{in: "100x100+5", wantErr: true},
		{in: "axb+0+0", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseGeometry(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestWithStruts(t *testing.T) {
	set := NewSet(screen, []Device{
		{Rect: image.Rect(0, 0, 1920, 1080)},
		{Rect: image.Rect(1920, 0, 3840, 1080)},
	})

	// A top panel on the left monitor only and a bottom panel spanning both.
	struts := []ewmh.WmStrutPartial{
		{Top: 30, TopStartX: 0, TopEndX: 1919},
		FullStrut(screen, 0, 0, 0, 40),
	}

	got := set.WithStruts(struts).Devices()
	if want := image.Rect(0, 30, 1920, 1040); got[0].WorkArea != want {
		t.Fatalf("expected left work area %v, got %v", want, got[0].WorkArea)
	}
	if want := image.Rect(1920, 0, 3840, 1040); got[1].WorkArea != want {
		t.Fatalf("expected right work area %v, got %v", want, got[1].WorkArea)
	}
	if set.Devices()[0].WorkArea != set.Devices()[0].Rect {
		t.Fatalf("expected original set to be unchanged")
	}
}
