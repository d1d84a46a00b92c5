package media

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropAndScale cuts a source-pixel selection out of master and resizes it to
// width x ratio.HeightFor(width). master may be a downscaled copy of a
// sourceWidth x sourceHeight original; the selection is mapped onto it.
func CropAndScale(master image.Image, sourceWidth, sourceHeight int, sel Rect, ratio Ratio, width int) (image.Image, error) {
	if ratio.IsOriginal() {
		return ScaleOriginal(master, width), nil
	}
	if sourceWidth <= 0 || sourceHeight <= 0 {
		return nil, fmt.Errorf("invalid source dimensions: %dx%d", sourceWidth, sourceHeight)
	}

	bounds := master.Bounds()
	fx := float64(bounds.Dx()) / float64(sourceWidth)
	fy := float64(bounds.Dy()) / float64(sourceHeight)
	rect := sel.Scale(fx, fy).Image().Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("selection %+v falls outside the %dx%d master", sel, bounds.Dx(), bounds.Dy())
	}

	cropped := imaging.Crop(master, rect)
	return imaging.Resize(cropped, width, ratio.HeightFor(width), imaging.Lanczos), nil
}

// ScaleOriginal resizes master to width keeping its aspect ratio. The master
// is never upscaled.
func ScaleOriginal(master image.Image, width int) image.Image {
	w := minInt(width, master.Bounds().Dx())
	if w == master.Bounds().Dx() {
		return imaging.Clone(master)
	}
	return imaging.Resize(master, w, 0, imaging.Lanczos)
}
