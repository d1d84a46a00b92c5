package media

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OriginalToken is the ratio token meaning "keep the source aspect ratio"
const OriginalToken = "original"

var ErrInvalidRatio = errors.New("invalid ratio")

// Ratio is an aspect ratio parsed from a "WxH" token, or the "original" sentinel.
// Width and Height are zero for the sentinel.
type Ratio struct {
	Token  string
	Width  int
	Height int
}

// ParseRatio parses a ratio token. Components must be positive integers in
// canonical form so the token can be used verbatim as a map key and path segment.
func ParseRatio(token string) (Ratio, error) {
	if token == OriginalToken {
		return Ratio{Token: OriginalToken}, nil
	}

	parts := strings.Split(token, "x")
	if len(parts) != 2 {
		return Ratio{}, fmt.Errorf("%w: '%s'", ErrInvalidRatio, token)
	}

	width, err := parseComponent(parts[0])
	if err != nil {
		return Ratio{}, fmt.Errorf("%w: '%s'", ErrInvalidRatio, token)
	}
	height, err := parseComponent(parts[1])
	if err != nil {
		return Ratio{}, fmt.Errorf("%w: '%s'", ErrInvalidRatio, token)
	}

	return Ratio{Token: token, Width: width, Height: height}, nil
}

func parseComponent(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v <= 0 || strconv.Itoa(v) != s {
		return 0, fmt.Errorf("non-canonical component '%s'", s)
	}
	return v, nil
}

func (r Ratio) String() string {
	return r.Token
}

func (r Ratio) IsOriginal() bool {
	return r.Token == OriginalToken
}

// HeightFor returns the output height for a given width at this ratio
func (r Ratio) HeightFor(width int) int {
	if r.Width <= 0 {
		return 0
	}
	return maxInt(1, int(math.Round(float64(width)*float64(r.Height)/float64(r.Width))))
}
