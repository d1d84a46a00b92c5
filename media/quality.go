package media

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// DensityTolerance is the largest relative increase in color density a
// re-encode may introduce before it counts as visible banding.
const DensityTolerance = 0.11

// QualitySettings bounds the JPEG quality search
type QualitySettings struct {
	Default  int     // quality used when nothing better is known
	Min      int     // inclusive lower bound of the search
	Max      int     // inclusive upper bound of the search
	MaxError float64 // max mean per-pixel distance
	MaxArea  int     // proxy area cap
}

func (s QualitySettings) validate() error {
	if s.Min < 1 || s.Max > 100 || s.Min >= s.Max {
		return fmt.Errorf("invalid quality range [%d, %d]", s.Min, s.Max)
	}
	if s.MaxArea <= 0 {
		return fmt.Errorf("invalid proxy area cap %d", s.MaxArea)
	}
	return nil
}

// AlreadyOptimized reports whether re-encoding a JPEG source at the default
// quality would fail to make it strictly smaller.
func AlreadyOptimized(source []byte, defaultQuality int) (bool, error) {
	img, err := imaging.Decode(bytes.NewReader(source))
	if err != nil {
		return false, fmt.Errorf("failed to decode source: %w", err)
	}
	encoded, err := Encode(img, ExtensionJPEG, defaultQuality)
	if err != nil {
		return false, err
	}
	return len(encoded) >= len(source), nil
}

// ColorDensity is the number of populated bins of the per-channel RGB
// histogram (3 x 256 bins) divided by the pixel area.
func ColorDensity(img *image.NRGBA) float64 {
	b := img.Bounds()
	area := b.Dx() * b.Dy()
	if area == 0 {
		return 0
	}

	var hist [3][256]bool
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			hist[0][row[x]] = true
			hist[1][row[x+1]] = true
			hist[2][row[x+2]] = true
		}
	}

	populated := 0
	for c := range hist {
		for _, set := range hist[c] {
			if set {
				populated++
			}
		}
	}
	return float64(populated) / float64(area)
}

// PixelError is the mean Euclidean RGB distance between two equally sized images
func PixelError(a, b *image.NRGBA) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("size mismatch: %dx%d vs %dx%d", ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}
	area := ab.Dx() * ab.Dy()
	if area == 0 {
		return 0, nil
	}

	var total float64
	for y := 0; y < ab.Dy(); y++ {
		rowA := a.Pix[y*a.Stride : y*a.Stride+ab.Dx()*4]
		rowB := b.Pix[y*b.Stride : y*b.Stride+bb.Dx()*4]
		for x := 0; x < len(rowA); x += 4 {
			var sum float64
			for c := 0; c < 3; c++ {
				d := float64(rowA[x+c]) - float64(rowB[x+c])
				sum += d * d
			}
			total += math.Sqrt(sum)
		}
	}
	return total / float64(area), nil
}

// SearchQuality binary searches [Min, Max] for the lowest JPEG quality whose
// re-encode stays within MaxError and DensityTolerance of a bounded-size RGB
// proxy of img. Adjacent bounds resolve to the higher quality.
func SearchQuality(img image.Image, s QualitySettings) (int, error) {
	if err := s.validate(); err != nil {
		return 0, err
	}

	proxy := ToRGB(FitArea(img, s.MaxArea))
	baseDensity := ColorDensity(proxy)
	if baseDensity == 0 {
		return 0, fmt.Errorf("empty image")
	}

	lo, hi := s.Min, s.Max
	for hi-lo > 1 {
		quality := int(math.Round(float64(lo) + float64(hi-lo)/2.0))

		encoded, err := Encode(proxy, ExtensionJPEG, quality)
		if err != nil {
			return 0, err
		}
		decoded, err := imaging.Decode(bytes.NewReader(encoded))
		if err != nil {
			return 0, fmt.Errorf("failed to decode trial encode at quality %d: %w", quality, err)
		}
		saved := ToRGB(decoded)

		pixelError, err := PixelError(saved, proxy)
		if err != nil {
			return 0, err
		}
		densityRatio := (ColorDensity(saved) - baseDensity) / baseDensity

		if pixelError > s.MaxError || densityRatio > DensityTolerance {
			lo = quality
		} else {
			hi = quality
		}
	}
	return hi, nil
}
