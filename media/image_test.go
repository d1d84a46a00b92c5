package media

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientImage draws a smooth gradient with a little seeded noise so JPEG
// encodes behave like a photograph rather than a flat fill.
func gradientImage(width, height int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			noise := rng.Intn(16)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x*255/width + noise) % 256),
				G: uint8((y*255/height + noise) % 256),
				B: uint8(((x + y) * 127 / (width + height)) + noise),
				A: 255,
			})
		}
	}
	return img
}

func encodeTestImage(t *testing.T, img image.Image, format imaging.Format, opts ...imaging.EncodeOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format, opts...))
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	src := gradientImage(40, 30, 1)

	cfg, format, err := DetectFormat(encodeTestImage(t, src, imaging.PNG))
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, format)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)

	_, format, err = DetectFormat(encodeTestImage(t, src, imaging.JPEG))
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, format)

	var buf bytes.Buffer
	paletted := image.NewPaletted(image.Rect(0, 0, 8, 8), color.Palette{color.Black, color.White})
	require.NoError(t, gif.Encode(&buf, paletted, nil))
	_, format, err = DetectFormat(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, FormatGIF, format)

	_, _, err = DetectFormat([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestToRGBDropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 128})

	rgb := ToRGB(img)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, rgb.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 40, G: 50, B: 60, A: 255}, rgb.NRGBAAt(1, 0))
	// source untouched
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).A)
}

func TestEncode(t *testing.T) {
	src := gradientImage(64, 64, 2)

	jpg, err := Encode(src, ExtensionJPEG, 80)
	require.NoError(t, err)
	_, format, err := DetectFormat(jpg)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, format)

	png, err := Encode(src, ExtensionPNG, 0)
	require.NoError(t, err)
	_, format, err = DetectFormat(png)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, format)

	_, err = Encode(src, Extension{Name: "bmp"}, 80)
	assert.Error(t, err)

	low, err := Encode(src, ExtensionJPEG, 20)
	require.NoError(t, err)
	assert.Less(t, len(low), len(jpg))
}

func TestFitArea(t *testing.T) {
	src := gradientImage(400, 200, 3)

	same := FitArea(src, 80000)
	assert.Equal(t, src.Bounds(), same.Bounds())

	small := FitArea(src, 20000)
	b := small.Bounds()
	assert.LessOrEqual(t, b.Dx()*b.Dy(), 20000)
	assert.InDelta(t, 2.0, float64(b.Dx())/float64(b.Dy()), 0.05)
}

func TestFitWidth(t *testing.T) {
	src := gradientImage(400, 200, 4)
	assert.Equal(t, 400, FitWidth(src, 500).Bounds().Dx())

	fitted := FitWidth(src, 100)
	assert.Equal(t, 100, fitted.Bounds().Dx())
	assert.Equal(t, 50, fitted.Bounds().Dy())
}

func TestIsRasterImage(t *testing.T) {
	assert.True(t, IsRasterImage("photo.JPG"))
	assert.True(t, IsRasterImage("anim.gif"))
	assert.False(t, IsRasterImage("notes.txt"))
	assert.False(t, IsRasterImage("noext"))
}

func TestLookupExtension(t *testing.T) {
	ext, ok := LookupExtension("jpg")
	assert.True(t, ok)
	assert.Equal(t, "image/jpeg", ext.MimeType)

	ext, ok = LookupExtension("PNG")
	assert.True(t, ok)
	assert.Equal(t, ExtensionPNG, ext)

	for _, name := range []string{"jpeg", "gif", "webp", ""} {
		_, ok = LookupExtension(name)
		assert.False(t, ok, name)
	}
}

func TestExtractMetadataWithoutExif(t *testing.T) {
	meta := ExtractMetadata(encodeTestImage(t, gradientImage(16, 16, 5), imaging.PNG))
	assert.Nil(t, meta.CameraMake)
	assert.Nil(t, meta.CameraModel)
	assert.Nil(t, meta.TakenAt)
}
