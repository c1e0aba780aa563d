package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/gazehq/gaze-engine/internal/constants"
)

// ThumbPreset bundles the max dimension and JPEG quality of one
// thumbnail size.
type ThumbPreset struct {
	MaxDim  int
	Quality int
}

// FullPreset is the display thumbnail; GridPreset is the small one used
// in grids and the search results, written next to the full file with a
// _grid suffix.
var (
	FullPreset = ThumbPreset{MaxDim: constants.FullThumbMaxDim, Quality: constants.FullThumbQuality}
	GridPreset = ThumbPreset{MaxDim: constants.GridThumbMaxDim, Quality: constants.GridThumbQuality}
)

// GridPath derives the grid-size sibling of a full thumbnail path.
func GridPath(fullPath string) string {
	ext := filepath.Ext(fullPath)
	return strings.TrimSuffix(fullPath, ext) + "_grid.jpg"
}

// ResizeJPEG scales image bytes to fit within the preset's max
// dimension, keeping aspect ratio, and re-encodes as JPEG. Images
// already small enough are only re-encoded.
func ResizeJPEG(data []byte, preset ThumbPreset) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return encodeResized(img, preset)
}

func encodeResized(img image.Image, preset ThumbPreset) ([]byte, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= preset.MaxDim && height <= preset.MaxDim {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: preset.Quality}); err != nil {
			return nil, fmt.Errorf("encoding image: %w", err)
		}
		return buf.Bytes(), nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = preset.MaxDim
		newHeight = int(float64(height) * float64(preset.MaxDim) / float64(width))
	} else {
		newHeight = preset.MaxDim
		newWidth = int(float64(width) * float64(preset.MaxDim) / float64(height))
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: preset.Quality}); err != nil {
		return nil, fmt.Errorf("encoding resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteThumbnailPair writes the full and grid thumbnails for one source
// image file and returns the full thumbnail path. The source's EXIF
// orientation is applied so thumbnails display upright.
func WriteThumbnailPair(srcPath, destPath string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("reading source image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding source image: %w", err)
	}
	if x := ReadEXIF(data); x != nil {
		img = ApplyOrientation(img, x.Orientation)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("creating thumbnail directory: %w", err)
	}

	full, err := encodeResized(img, FullPreset)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(destPath, full, 0o644); err != nil {
		return "", fmt.Errorf("writing thumbnail: %w", err)
	}

	grid, err := encodeResized(img, GridPreset)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(GridPath(destPath), grid, 0o644); err != nil {
		return "", fmt.Errorf("writing grid thumbnail: %w", err)
	}
	return destPath, nil
}

// CropFace cuts a face box out of an image file, pads it slightly and
// writes it as a JPEG crop. Boxes are pixel coordinates.
func CropFace(srcPath, destPath string, x, y, w, h float64) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading source image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	// Pad by 20% on each side so the crop keeps some context.
	padX := w * 0.2
	padY := h * 0.2
	rect := image.Rect(
		clampInt(int(x-padX), bounds.Min.X, bounds.Max.X),
		clampInt(int(y-padY), bounds.Min.Y, bounds.Max.Y),
		clampInt(int(x+w+padX), bounds.Min.X, bounds.Max.X),
		clampInt(int(y+h+padY), bounds.Min.Y, bounds.Max.Y),
	)
	if rect.Dx() < 1 || rect.Dy() < 1 {
		return fmt.Errorf("face box outside image bounds")
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), img, rect.Min, draw.Src)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating crop directory: %w", err)
	}
	out, err := encodeResized(crop, ThumbPreset{MaxDim: constants.GridThumbMaxDim, Quality: constants.FullThumbQuality})
	if err != nil {
		return err
	}
	if err := os.WriteFile(destPath, out, 0o644); err != nil {
		return fmt.Errorf("writing face crop: %w", err)
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
