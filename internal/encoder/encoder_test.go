package encoder

import (
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/deskcap/internal/capture"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// packedFrame builds a mid-grey 4:2:0 frame with packed planes.
func packedFrame(w, h int) *capture.ConvertedFrame {
	strides, sizes := capture.Packed420Layout(w, h)
	data := make([]byte, sizes[0]+sizes[1]+sizes[2])
	for i := range data {
		data[i] = 128
	}
	f := &capture.ConvertedFrame{
		Width:   w,
		Height:  h,
		Format:  capture.PixelFormatYUV420P,
		Data:    data,
		Strides: strides,
	}
	return f
}

func TestNewSelectsVariant(t *testing.T) {
	tests := []struct {
		kind    capture.EncoderKind
		want    string
		wantErr bool
	}{
		{capture.EncoderX265, "*encoder.X265", false},
		{capture.EncoderX264, "*encoder.X264", false},
		{"vp9", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			enc, err := New(tt.kind, testLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if capture.CodeOf(err, capture.CodeOK) != capture.CodeEncoderInitFailed {
					t.Errorf("code = %s", capture.CodeOf(err, capture.CodeOK))
				}
				return
			}
			defer enc.Close()
			if got := typeName(enc); got != tt.want {
				t.Errorf("New(%s) = %s, want %s", tt.kind, got, tt.want)
			}
		})
	}
}

func typeName(enc capture.Encoder) string {
	switch enc.(type) {
	case *X265:
		return "*encoder.X265"
	case *X264:
		return "*encoder.X264"
	}
	return "unknown"
}

func TestCheckFrame(t *testing.T) {
	good := packedFrame(64, 48)
	if err := checkFrame(good, 64, 48); err != nil {
		t.Fatalf("checkFrame(packed) = %v", err)
	}

	yuv444 := packedFrame(64, 48)
	yuv444.Format = "yuv444p"

	padded := packedFrame(64, 48)
	padded.Strides[1] = 64

	tests := []struct {
		name  string
		frame *capture.ConvertedFrame
		w, h  int
		want  capture.ErrorCode
	}{
		{"not 4:2:0", yuv444, 64, 48, capture.CodeUnsupportedColorSubsampling},
		{"padded chroma", padded, 64, 48, capture.CodeFrameLayoutInvalid},
		{"size mismatch", good, 128, 96, capture.CodeFrameLayoutInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkFrame(tt.frame, tt.w, tt.h)
			if got := capture.CodeOf(err, capture.CodeOK); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestX264ProducesNothing(t *testing.T) {
	enc := NewX264(testLogger())
	if err := enc.Setup(64, 48, 25); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	units, err := enc.Encode(packedFrame(64, 48))
	if err != nil || len(units) != 0 {
		t.Errorf("Encode() = %d units, %v", len(units), err)
	}

	units, done, err := enc.Flush()
	if err != nil || !done || len(units) != 0 {
		t.Errorf("Flush() = %d units, done %v, err %v", len(units), done, err)
	}

	bad := packedFrame(64, 48)
	bad.Format = "nv12"
	if _, err := enc.Encode(bad); capture.CodeOf(err, capture.CodeOK) != capture.CodeUnsupportedColorSubsampling {
		t.Errorf("Encode(nv12) error = %v", err)
	}
}

func TestX265EncodesAndDrains(t *testing.T) {
	if astiav.FindEncoderByName("libx265") == nil {
		t.Skip("libx265 not available")
	}

	const frames = 10
	enc := NewX265(testLogger())
	defer enc.Close()

	if err := enc.Setup(128, 96, 25); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var units []capture.EncodedUnit
	for i := 0; i < frames; i++ {
		out, err := enc.Encode(packedFrame(128, 96))
		if err != nil {
			t.Fatalf("Encode(%d) error = %v", i, err)
		}
		units = append(units, out...)
	}

	for i := 0; ; i++ {
		if i > 2*frames {
			t.Fatal("encoder did not drain")
		}
		out, done, err := enc.Flush()
		if err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		units = append(units, out...)
		if done {
			break
		}
	}

	if len(units) != frames {
		t.Fatalf("got %d units, want %d", len(units), frames)
	}
	if !units[0].Keyframe {
		t.Error("first unit should be a keyframe")
	}
	if !slices.ContainsFunc(units[0].NALTypes, IsParameterSet) {
		t.Errorf("first unit should carry parameter sets, got %v", units[0].NALTypes)
	}

	if _, err := enc.Encode(packedFrame(128, 96)); err == nil {
		t.Error("Encode() after Flush should fail")
	}
	if _, done, _ := enc.Flush(); !done {
		t.Error("Flush() after drain should report done")
	}
}

func TestX265RejectsWrongSubsampling(t *testing.T) {
	if astiav.FindEncoderByName("libx265") == nil {
		t.Skip("libx265 not available")
	}

	enc := NewX265(testLogger())
	defer enc.Close()
	if err := enc.Setup(64, 48, 25); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	f := packedFrame(64, 48)
	f.Format = "yuv422p"
	if _, err := enc.Encode(f); capture.CodeOf(err, capture.CodeOK) != capture.CodeUnsupportedColorSubsampling {
		t.Errorf("Encode(yuv422p) error = %v", err)
	}
}
