package media

import (
	"bytes"
	"image"
	"sort"
)

// Color naming follows the OpenCV HSV convention: hue in [0, 180),
// saturation and value in [0, 255].

const minSaturation = 30

type hueRange struct {
	name     string
	min, max float64
}

// Red wraps around the hue circle, so it appears twice.
var hueRanges = []hueRange{
	{"red", 0, 10},
	{"orange", 10, 25},
	{"yellow", 25, 35},
	{"green", 35, 85},
	{"cyan", 85, 100},
	{"blue", 100, 130},
	{"purple", 130, 150},
	{"pink", 150, 170},
	{"red", 170, 180},
}

// colorAliases maps query words to the canonical palette name.
var colorAliases = map[string]string{
	"grey":      "gray",
	"crimson":   "red",
	"scarlet":   "red",
	"maroon":    "red",
	"magenta":   "pink",
	"rose":      "pink",
	"violet":    "purple",
	"lavender":  "purple",
	"navy":      "blue",
	"azure":     "blue",
	"teal":      "cyan",
	"turquoise": "cyan",
	"aqua":      "cyan",
	"lime":      "green",
	"olive":     "green",
	"gold":      "yellow",
	"amber":     "orange",
	"brown":     "orange",
	"tan":       "orange",
	"silver":    "gray",
}

// PaletteNames is the full set of color names classification can emit.
var PaletteNames = []string{
	"red", "orange", "yellow", "green", "cyan",
	"blue", "purple", "pink", "black", "white", "gray",
}

// CanonicalColor resolves a query word to a palette name, following
// aliases. Returns "" when the word is not a color.
func CanonicalColor(word string) string {
	if canonical, ok := colorAliases[word]; ok {
		return canonical
	}
	for _, name := range PaletteNames {
		if name == word {
			return name
		}
	}
	return ""
}

// ClassifyHSV names one HSV sample. Low-saturation pixels fall into the
// grayscale names by value alone.
func ClassifyHSV(h, s, v float64) string {
	if s < minSaturation {
		switch {
		case v < 50:
			return "black"
		case v > 180:
			return "white"
		default:
			return "gray"
		}
	}
	for _, r := range hueRanges {
		if h >= r.min && h < r.max {
			return r.name
		}
	}
	return "red" // h == 180 wraps
}

// rgbToHSV converts 8-bit RGB to OpenCV-style HSV (h in [0,180)).
func rgbToHSV(r, g, b uint8) (float64, float64, float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	max := rf
	if gf > max {
		max = gf
	}
	if bf > max {
		max = bf
	}
	min := rf
	if gf < min {
		min = gf
	}
	if bf < min {
		min = bf
	}
	delta := max - min

	v := max
	var s float64
	if max > 0 {
		s = delta / max * 255
	}

	var h float64
	switch {
	case delta == 0:
		h = 0
	case max == rf:
		h = 30 * (gf - bf) / delta
	case max == gf:
		h = 60 + 30*(bf-rf)/delta
	default:
		h = 120 + 30*(rf-gf)/delta
	}
	if h < 0 {
		h += 180
	}
	return h, s, v
}

// DominantColors names the most frequent palette colors of an image,
// sampled on a coarse grid. Colors covering under five percent of the
// samples are dropped; at most three names are returned, most frequent
// first.
func DominantColors(img image.Image) []string {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil
	}

	// Sample roughly a 64x64 grid regardless of image size.
	stepX := bounds.Dx() / 64
	if stepX < 1 {
		stepX = 1
	}
	stepY := bounds.Dy() / 64
	if stepY < 1 {
		stepY = 1
	}

	counts := map[string]int{}
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			h, s, v := rgbToHSV(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			counts[ClassifyHSV(h, s, v)]++
			total++
		}
	}

	type freq struct {
		name  string
		count int
	}
	ranked := make([]freq, 0, len(counts))
	for name, count := range counts {
		if float64(count)/float64(total) < 0.05 {
			continue
		}
		ranked = append(ranked, freq{name, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}

	names := make([]string, len(ranked))
	for i, f := range ranked {
		names[i] = f.name
	}
	return names
}

// DominantColorsFromFile decodes an image file and names its dominant
// colors.
func DominantColorsFromFile(data []byte) ([]string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return DominantColors(img), nil
}
