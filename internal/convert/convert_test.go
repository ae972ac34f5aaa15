package convert

import (
	"io"
	"log/slog"
	"testing"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/deskcap/internal/capture"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sourceFrame(t *testing.T, w, h int) *astiav.Frame {
	t.Helper()
	f := astiav.AllocFrame()
	t.Cleanup(f.Free)
	f.SetWidth(w)
	f.SetHeight(h)
	f.SetPixelFormat(astiav.PixelFormatBgra)
	if err := f.AllocBuffer(1); err != nil {
		t.Fatalf("AllocBuffer() error = %v", err)
	}
	if err := f.ImageFillBlack(); err != nil {
		t.Fatalf("ImageFillBlack() error = %v", err)
	}
	return f
}

func TestNewRejectsOddDestination(t *testing.T) {
	src := capture.StreamInfo{Width: 640, Height: 480, PixelFormat: "bgra"}

	for _, dst := range []capture.Geometry{{Width: 319, Height: 240}, {Width: 320, Height: 239}} {
		_, err := New(src, dst, capture.PixelFormatYUV420P, testLogger())
		if got := capture.CodeOf(err, capture.CodeOK); got != capture.CodeFrameLayoutInvalid {
			t.Errorf("New(%+v) code = %s, want %s", dst, got, capture.CodeFrameLayoutInvalid)
		}
	}
}

func TestNewUnknownFormat(t *testing.T) {
	src := capture.StreamInfo{Width: 640, Height: 480, PixelFormat: "not-a-format"}
	_, err := New(src, capture.Geometry{Width: 320, Height: 240}, capture.PixelFormatYUV420P, testLogger())
	if got := capture.CodeOf(err, capture.CodeOK); got != capture.CodeConverterInitFailed {
		t.Errorf("code = %s, want %s", got, capture.CodeConverterInitFailed)
	}
}

func TestConvertPacksPlanes(t *testing.T) {
	src := capture.StreamInfo{Width: 640, Height: 480, PixelFormat: "bgra"}
	dst := capture.Geometry{Width: 320, Height: 240}

	c, err := New(src, dst, capture.PixelFormatYUV420P, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	out, err := c.Convert(sourceFrame(t, 640, 480))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if out.Width != 320 || out.Height != 240 {
		t.Errorf("output %dx%d, want 320x240", out.Width, out.Height)
	}
	if err := capture.CheckPacking(out.Width, out.Height, out.Strides); err != nil {
		t.Errorf("CheckPacking() error = %v", err)
	}
	if len(out.Data) != 320*240*3/2 {
		t.Errorf("len(Data) = %d, want %d", len(out.Data), 320*240*3/2)
	}
	// black in limited range yuv; U starts right after the luma plane
	_, sizes := capture.Packed420Layout(320, 240)
	if out.Data[0] != 16 || out.Data[sizes[0]] != 128 {
		t.Errorf("unexpected black sample Y=%d U=%d", out.Data[0], out.Data[sizes[0]])
	}

	again, err := c.Convert(sourceFrame(t, 640, 480))
	if err != nil {
		t.Fatalf("second Convert() error = %v", err)
	}
	if &again.Data[0] != &out.Data[0] {
		t.Error("converter should reuse its buffer")
	}
}

func TestConvertRejectsResizedSource(t *testing.T) {
	src := capture.StreamInfo{Width: 640, Height: 480, PixelFormat: "bgra"}
	c, err := New(src, capture.Geometry{Width: 320, Height: 240}, capture.PixelFormatYUV420P, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	if _, err := c.Convert(sourceFrame(t, 800, 600)); err == nil {
		t.Error("expected an error for a frame of a different size")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	src := capture.StreamInfo{Width: 64, Height: 48, PixelFormat: "bgra"}
	c, err := New(src, capture.Geometry{Width: 64, Height: 48}, capture.PixelFormatYUV420P, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Close()
	c.Close()
	if _, err := c.Convert(sourceFrame(t, 64, 48)); err == nil {
		t.Error("Convert() after Close should fail")
	}
}
