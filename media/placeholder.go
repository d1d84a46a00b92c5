package media

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	PendingColor = color.RGBA{R: 211, G: 211, B: 211, A: 255}
	FailureColor = color.RGBA{R: 166, G: 18, B: 18, A: 255}
)

// ParseHexColor parses "#rrggbb" or "rrggbb"
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color '%s'", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color '%s': %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// SolidImage returns a width x height image filled with fill. When label is
// not empty it is drawn roughly centered in white.
func SolidImage(width, height int, fill color.Color, label string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)

	if label == "" {
		return img
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	textWidth := d.MeasureString(label).Ceil()
	x := (width - textWidth) / 2
	y := (height + face.Ascent - face.Descent) / 2
	d.Dot = fixed.P(maxInt(0, x), maxInt(face.Ascent, y))
	d.DrawString(label)

	return img
}
