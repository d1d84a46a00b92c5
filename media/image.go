package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
)

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
}

// IsRasterImage checks if the filename has a supported raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// DetectFormat returns the registered decoder name ("jpeg", "png", "gif") and
// the dimensions of an encoded image without decoding the pixels.
func DetectFormat(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", err
	}
	switch format {
	case FormatJPEG, FormatPNG, FormatGIF:
	default:
		return image.Config{}, "", fmt.Errorf("unsupported image format '%s'", format)
	}
	return cfg, format, nil
}

// ToRGB drops the alpha channel, producing an opaque copy. Color values are
// kept as stored, matching a plain RGB conversion rather than compositing.
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Encode writes img in the requested output format. quality only applies to JPEG.
func Encode(img image.Image, ext Extension, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch ext {
	case ExtensionJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case ExtensionPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	default:
		return nil, fmt.Errorf("unsupported output extension '%s'", ext.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ext.Name, err)
	}
	return buf.Bytes(), nil
}

// FitWidth downscales img to maxWidth when it is wider, preserving aspect
func FitWidth(img image.Image, maxWidth int) image.Image {
	if img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

// FitArea downscales img so its pixel area does not exceed maxArea
func FitArea(img image.Image, maxArea int) image.Image {
	b := img.Bounds()
	area := b.Dx() * b.Dy()
	if area <= maxArea || area == 0 {
		return img
	}
	scale := math.Sqrt(float64(maxArea) / float64(area))
	w := maxInt(1, int(float64(b.Dx())*scale))
	h := maxInt(1, int(float64(b.Dy())*scale))
	return imaging.Resize(img, w, h, imaging.Lanczos)
}
