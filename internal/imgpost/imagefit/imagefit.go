// Package imagefit shrinks images under the service's upload size ceiling.
//
// The adapter is a three-step fallthrough: return the original untouched if
// it already fits, otherwise re-encode it as JPEG, otherwise scale it down
// once and accept the result as best effort.
package imagefit

import (
	"fmt"
	"os"

	"github.com/blacktop/imgpost/internal/imgpost"
	"github.com/blacktop/imgpost/internal/logutil"
	"github.com/disintegration/imaging"
)

const (
	// DefaultCeiling is the maximum blob size the service accepts, in bytes.
	DefaultCeiling = 976560

	// DefaultQuality is the JPEG quality used for derived copies.
	DefaultQuality = 85

	// resizeMargin leaves headroom for encoder overhead after scaling.
	resizeMargin = 0.9

	compressedSuffix = "_compressed.jpg"
	resizedSuffix    = "_resized.jpg"
)

// Fitter adapts an image file to an encoded-size ceiling.
type Fitter struct {
	Ceiling int64
	Quality int
}

// New returns a Fitter with the service defaults.
func New() Fitter {
	return Fitter{Ceiling: DefaultCeiling, Quality: DefaultQuality}
}

// Fit returns a path whose file fits under the ceiling, either the original
// (unchanged when already small enough) or a derived JPEG copy written next
// to it. The resize step runs at most once and its result is returned
// without re-checking the size.
func (f Fitter) Fit(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	if info.Size() == 0 {
		return "", imgpost.DecodeError{Path: path, Err: fmt.Errorf("file is empty")}
	}
	if info.Size() <= f.Ceiling {
		return path, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return "", imgpost.DecodeError{Path: path, Err: err}
	}

	// JPEG encoding drops any alpha channel, matching the 3-channel
	// conversion the service expects.
	logutil.Infof("compressing image: %s (%d bytes)", path, info.Size())
	compressedPath := path + compressedSuffix
	if err := imaging.Save(img, compressedPath, imaging.JPEGQuality(f.Quality)); err != nil {
		return "", fmt.Errorf("write compressed copy: %w", err)
	}

	compressedInfo, err := os.Stat(compressedPath)
	if err != nil {
		return "", fmt.Errorf("stat compressed copy: %w", err)
	}
	if compressedInfo.Size() <= f.Ceiling {
		return compressedPath, nil
	}

	ratio := float64(f.Ceiling) / float64(compressedInfo.Size()) * resizeMargin
	bounds := img.Bounds()
	width := int(float64(bounds.Dx()) * ratio)
	height := int(float64(bounds.Dy()) * ratio)

	logutil.Infof("resizing image: %s -> %dx%d", path, width, height)
	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	resizedPath := path + resizedSuffix
	if err := imaging.Save(resized, resizedPath, imaging.JPEGQuality(f.Quality)); err != nil {
		return "", fmt.Errorf("write resized copy: %w", err)
	}

	return resizedPath, nil
}

// Cleanup removes the derived copies of path, if any were written.
func Cleanup(path string) {
	for _, derived := range []string{path + compressedSuffix, path + resizedSuffix} {
		if err := os.Remove(derived); err == nil {
			logutil.Debugf("deleted %s", derived)
		} else if !os.IsNotExist(err) {
			logutil.Errorf("delete %s: %v", derived, err)
		}
	}
}
