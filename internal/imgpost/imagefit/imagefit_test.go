package imagefit

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/imgpost/internal/imgpost"
	"github.com/disintegration/imaging"
)

// writeGradientPNG writes a width x height PNG of smooth sinusoidal color
// waves. Smooth 2D content is photo-like: its lossless PNG encoding comes out
// much larger than its lossy JPEG re-encode, which the compress step relies
// on.
func writeGradientPNG(t *testing.T, path string, width, height int) int64 {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx, fy := float64(x), float64(y)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(128 + 127*math.Sin(fx/13)*math.Cos(fy/7)),
				G: uint8(128 + 127*math.Sin((fx+fy)/11)),
				B: uint8(128 + 127*math.Cos(fx/17)*math.Sin(fy/5)),
				A: 255,
			})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Size()
}

func TestFit_UnderCeilingUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.png")
	size := writeGradientPNG(t, path, 8, 8)

	fitter := Fitter{Ceiling: size + 1000, Quality: DefaultQuality}
	got, err := fitter.Fit(path)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if got != path {
		t.Errorf("Fit = %q, want original %q", got, path)
	}
	if _, err := os.Stat(path + "_compressed.jpg"); !os.IsNotExist(err) {
		t.Error("a _compressed copy was written for an image already under the ceiling")
	}
}

func TestFit_ExactCeilingUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exact.png")
	size := writeGradientPNG(t, path, 16, 16)

	fitter := Fitter{Ceiling: size, Quality: DefaultQuality}
	got, err := fitter.Fit(path)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if got != path {
		t.Errorf("Fit = %q, want original %q for a file of exactly the ceiling size", got, path)
	}
	if _, err := os.Stat(path + "_compressed.jpg"); !os.IsNotExist(err) {
		t.Error("a _compressed copy was written for an image of exactly the ceiling size")
	}
}

func TestFit_CompressStepSuffices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	pngSize := writeGradientPNG(t, path, 500, 500)

	// Just over the line: the original misses the ceiling by one byte but a
	// gradient's JPEG re-encode lands far below it.
	fitter := Fitter{Ceiling: pngSize - 1, Quality: DefaultQuality}
	got, err := fitter.Fit(path)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	want := path + "_compressed.jpg"
	if got != want {
		t.Fatalf("Fit = %q, want compressed copy %q", got, want)
	}
	info, err := os.Stat(got)
	if err != nil {
		t.Fatalf("stat compressed copy: %v", err)
	}
	if info.Size() > fitter.Ceiling {
		t.Errorf("compressed copy is %d bytes, above the %d ceiling", info.Size(), fitter.Ceiling)
	}
}

func TestFit_ResizeStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	writeGradientPNG(t, path, 400, 300)

	// A ceiling this small forces both steps; the JPEG re-encode of a
	// 400x300 gradient is still multiple KB.
	fitter := Fitter{Ceiling: 1000, Quality: DefaultQuality}
	got, err := fitter.Fit(path)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	want := path + "_resized.jpg"
	if got != want {
		t.Fatalf("Fit = %q, want resized copy %q", got, want)
	}

	compressedInfo, err := os.Stat(path + "_compressed.jpg")
	if err != nil {
		t.Fatalf("stat compressed copy: %v", err)
	}

	ratio := float64(fitter.Ceiling) / float64(compressedInfo.Size()) * 0.9
	wantWidth := int(400 * ratio)
	wantHeight := int(300 * ratio)

	resized, err := imaging.Open(got)
	if err != nil {
		t.Fatalf("decode resized copy: %v", err)
	}
	bounds := resized.Bounds()
	if bounds.Dx() != wantWidth || bounds.Dy() != wantHeight {
		t.Errorf("resized to %dx%d, want %dx%d (ratio %.4f)", bounds.Dx(), bounds.Dy(), wantWidth, wantHeight, ratio)
	}
}

// The resize pass is single-shot: its output is returned even if it were
// still above the ceiling, so the only guarantee worth asserting is that a
// result or a DecodeError always comes back.
func TestFit_AlwaysReturnsPathOrDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	writeGradientPNG(t, path, 200, 200)

	fitter := Fitter{Ceiling: 100, Quality: DefaultQuality}
	got, err := fitter.Fit(path)
	if err != nil {
		var decodeErr imgpost.DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("Fit failed with %v, want a path or DecodeError", err)
		}
		return
	}
	if got == "" {
		t.Error("Fit returned an empty path without error")
	}
}

func TestFit_ZeroByteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := New().Fit(path)
	var decodeErr imgpost.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Fit on empty file = %v, want DecodeError", err)
	}
}

func TestFit_UndecodableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.png")
	if err := os.WriteFile(path, []byte("this is not an image at all, not even close"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	fitter := Fitter{Ceiling: 10, Quality: DefaultQuality}
	_, err := fitter.Fit(path)
	var decodeErr imgpost.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Fit on garbage = %v, want DecodeError", err)
	}
}

func TestFit_MissingFile(t *testing.T) {
	_, err := New().Fit(filepath.Join(t.TempDir(), "nope.png"))
	if err == nil {
		t.Fatal("Fit on missing file succeeded, want error")
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.png")
	for _, p := range []string{path, path + "_compressed.jpg", path + "_resized.jpg"} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	Cleanup(path)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("original was removed: %v", err)
	}
	for _, p := range []string{path + "_compressed.jpg", path + "_resized.jpg"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("derived copy %s still present", p)
		}
	}
}

func TestCleanup_NoDerivedCopies(t *testing.T) {
	// Nothing to delete must be a no-op, not a failure.
	Cleanup(filepath.Join(t.TempDir(), "pic.png"))
}
