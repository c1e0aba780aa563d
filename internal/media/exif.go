package media

import (
	"bytes"
	"image"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// PhotoEXIF is the source metadata read from a photo's EXIF block.
// Orientation is the raw EXIF value (1-8), 0 when absent.
type PhotoEXIF struct {
	CreationTime *string
	CameraMake   *string
	CameraModel  *string
	GPSLat       *float64
	GPSLng       *float64
	Orientation  int
}

// ReadEXIF parses the EXIF block of an image file. Files without one
// (PNGs, stripped JPEGs) return nil.
func ReadEXIF(data []byte) *PhotoEXIF {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	var out PhotoEXIF
	if dt, err := x.DateTime(); err == nil {
		value := dt.Format(time.RFC3339)
		out.CreationTime = &value
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if value, err := tag.StringVal(); err == nil && value != "" {
			out.CameraMake = &value
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if value, err := tag.StringVal(); err == nil && value != "" {
			out.CameraModel = &value
		}
	}
	if lat, lng, err := x.LatLong(); err == nil {
		out.GPSLat, out.GPSLng = &lat, &lng
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if o, err := tag.Int(0); err == nil {
			out.Orientation = o
		}
	}
	return &out
}

// RotationDegrees maps an EXIF orientation to the clockwise rotation
// the pixels need for upright display. Mirrored orientations map to
// their rotation component.
func (e *PhotoEXIF) RotationDegrees() int {
	switch e.Orientation {
	case 3, 4:
		return 180
	case 5, 6:
		return 90
	case 7, 8:
		return 270
	}
	return 0
}

// SwapsDimensions reports whether upright display swaps width and
// height.
func (e *PhotoEXIF) SwapsDimensions() bool {
	r := e.RotationDegrees()
	return r == 90 || r == 270
}

// ApplyOrientation transposes an image so it displays upright without
// its EXIF orientation tag. Orientation 0 or 1 returns the image
// unchanged.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var out *image.RGBA
	if orientation >= 5 {
		out = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch orientation {
			case 2: // mirrored horizontally
				out.Set(w-1-x, y, c)
			case 3: // rotated 180
				out.Set(w-1-x, h-1-y, c)
			case 4: // mirrored vertically
				out.Set(x, h-1-y, c)
			case 5: // mirrored then rotated 270 CW
				out.Set(y, x, c)
			case 6: // rotated 90 CW
				out.Set(h-1-y, x, c)
			case 7: // mirrored then rotated 90 CW
				out.Set(h-1-y, w-1-x, c)
			case 8: // rotated 270 CW
				out.Set(y, w-1-x, c)
			}
		}
	}
	return out
}
