package media

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQualitySettings() QualitySettings {
	return QualitySettings{Default: 80, Min: 60, Max: 92, MaxError: 3.5, MaxArea: 1_000_000}
}

func TestAlreadyOptimized(t *testing.T) {
	src := gradientImage(320, 240, 10)

	lowQuality := encodeTestImage(t, src, imaging.JPEG, imaging.JPEGQuality(30))
	optimized, err := AlreadyOptimized(lowQuality, 80)
	require.NoError(t, err)
	assert.True(t, optimized)

	highQuality := encodeTestImage(t, src, imaging.JPEG, imaging.JPEGQuality(100))
	optimized, err = AlreadyOptimized(highQuality, 80)
	require.NoError(t, err)
	assert.False(t, optimized)

	_, err = AlreadyOptimized([]byte("garbage"), 80)
	assert.Error(t, err)
}

func TestSearchQualityInRange(t *testing.T) {
	s := testQualitySettings()
	src := gradientImage(1100, 1000, 11)

	quality, err := SearchQuality(src, s)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, quality, s.Min+1)
	assert.LessOrEqual(t, quality, s.Max)

	again, err := SearchQuality(src, s)
	require.NoError(t, err)
	assert.Equal(t, quality, again)
}

func TestSearchQualityFlatImageGoesLow(t *testing.T) {
	s := testQualitySettings()
	flat := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.NRGBA{R: 128, G: 128, B: 128, A: 255}), image.Point{}, draw.Src)

	quality, err := SearchQuality(flat, s)
	require.NoError(t, err)
	assert.Equal(t, s.Min+1, quality)
}

func TestSearchQualityAdjacentBounds(t *testing.T) {
	s := testQualitySettings()
	s.Min, s.Max = 70, 71

	quality, err := SearchQuality(gradientImage(32, 32, 12), s)
	require.NoError(t, err)
	assert.Equal(t, 71, quality)
}

func TestSearchQualityRejectsBadSettings(t *testing.T) {
	src := gradientImage(8, 8, 13)
	tests := []struct {
		name string
		s    QualitySettings
	}{
		{name: "inverted", s: QualitySettings{Min: 90, Max: 60, MaxArea: 100}},
		{name: "equal", s: QualitySettings{Min: 60, Max: 60, MaxArea: 100}},
		{name: "zero min", s: QualitySettings{Min: 0, Max: 60, MaxArea: 100}},
		{name: "over 100", s: QualitySettings{Min: 60, Max: 101, MaxArea: 100}},
		{name: "no area", s: QualitySettings{Min: 60, Max: 90}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SearchQuality(src, tc.s)
			assert.Error(t, err)
		})
	}
}

func TestColorDensity(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 1, B: 1, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 2, G: 1, B: 1, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 3, G: 1, B: 1, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 3, G: 1, B: 2, A: 255})

	// red {1,2,3} + green {1} + blue {1,2} = 6 bins over 4 pixels
	assert.InDelta(t, 1.5, ColorDensity(img), 1e-9)
	assert.Equal(t, 0.0, ColorDensity(image.NewNRGBA(image.Rect(0, 0, 0, 0))))
}

func TestPixelError(t *testing.T) {
	a := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	b := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	b.SetNRGBA(0, 0, color.NRGBA{R: 3, G: 4, B: 0, A: 255})

	e, err := PixelError(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, e, 1e-9)

	_, err = PixelError(a, image.NewNRGBA(image.Rect(0, 0, 3, 1)))
	assert.Error(t, err)
}
