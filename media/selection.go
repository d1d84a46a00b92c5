package media

import (
	"image"
	"math"
)

// Rect is a crop rectangle in source-pixel coordinates
type Rect struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Valid reports whether r lies inside a width x height image and is non-empty.
// A single bad coordinate invalidates the whole rectangle.
func (r Rect) Valid(width, height int) bool {
	return 0 <= r.X0 && r.X0 < r.X1 && r.X1 <= width &&
		0 <= r.Y0 && r.Y0 < r.Y1 && r.Y1 <= height
}

func (r Rect) Width() int  { return r.X1 - r.X0 }
func (r Rect) Height() int { return r.Y1 - r.Y0 }

func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X1, r.Y1)
}

// Scale maps r onto an image whose axes were scaled by fx and fy, keeping at
// least one pixel on each axis.
func (r Rect) Scale(fx, fy float64) Rect {
	if fx == 1 && fy == 1 {
		return r
	}
	out := Rect{
		X0: int(math.Floor(float64(r.X0) * fx)),
		Y0: int(math.Floor(float64(r.Y0) * fy)),
		X1: int(math.Round(float64(r.X1) * fx)),
		Y1: int(math.Round(float64(r.Y1) * fy)),
	}
	if out.X1 <= out.X0 {
		out.X1 = out.X0 + 1
	}
	if out.Y1 <= out.Y0 {
		out.Y1 = out.Y0 + 1
	}
	return out
}

// DefaultSelection returns the largest rectangle of the ratio's aspect that
// fits centered inside a width x height image. For the "original" ratio the
// source aspect is used, which yields the whole image.
func DefaultSelection(width, height int, ratio Ratio) Rect {
	if width <= 0 || height <= 0 {
		return Rect{}
	}
	if ratio.IsOriginal() || ratio.Width <= 0 || ratio.Height <= 0 {
		return Rect{X0: 0, Y0: 0, X1: width, Y1: height}
	}

	minX, minY := 0.0, 0.0
	maxX, maxY := float64(width), float64(height)

	// compare width/height against ratio.Width/ratio.Height without division
	sourceSide := width * ratio.Height
	selectionSide := height * ratio.Width

	if sourceSide > selectionSide {
		offset := (maxX - maxY*float64(ratio.Width)/float64(ratio.Height)) / 2.0
		minX = offset
		maxX -= offset
	} else if sourceSide < selectionSide {
		offset := (maxY - maxX*float64(ratio.Height)/float64(ratio.Width)) / 2.0
		minY = offset
		maxY -= offset
	}

	return Rect{X0: int(minX), Y0: int(minY), X1: int(maxX), Y1: int(maxY)}
}

// ResolveSelection returns the stored selection for ratio when it is valid for
// the given source size, and the default selection otherwise. Stored entries
// are re-validated on every call; nothing about a previous call is remembered.
func ResolveSelection(width, height int, selections map[string]Rect, ratio Ratio) Rect {
	if stored, ok := selections[ratio.Token]; ok && stored.Valid(width, height) {
		return stored
	}
	return DefaultSelection(width, height, ratio)
}
