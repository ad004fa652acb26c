// Package colour provides colour conversion, palette extraction and luminosity analysis.
package colour

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
)

// ErrInvalidColorFormat is returned when a hex colour string is malformed.
var ErrInvalidColorFormat = errors.New("invalid colour format")

// Luminance weights (ITU-R BT.601).
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// RGB represents a colour in 8-bit RGB format.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Gray is the neutral colour used when there is nothing to extract from.
var Gray = RGB{R: 128, G: 128, B: 128}

// String returns the RGB colour as a string in the format "rgb(r, g, b)".
func (rgb RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", rgb.R, rgb.G, rgb.B)
}

// Hex returns the RGB colour as an uppercase hex string (e.g., "#1A2B3C").
func (rgb RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", rgb.R, rgb.G, rgb.B)
}

// RGBA implements color.Color so an RGB can be handed to image APIs.
func (rgb RGB) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 255}.RGBA()
}

// ToRGB converts a color.Color to RGB, dropping alpha.
func ToRGB(c color.Color) RGB {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGB{R: n.R, G: n.G, B: n.B}
}

// ParseHex parses a "#RRGGBB" string. Hex digits may be either case.
func ParseHex(s string) (RGB, error) {
	if len(s) != 7 || s[0] != '#' {
		return RGB{}, fmt.Errorf("%w: %q (expected #RRGGBB)", ErrInvalidColorFormat, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColorFormat, s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustParseHex is like ParseHex but panics on malformed input.
// Only use it with literals.
func MustParseHex(s string) RGB {
	rgb, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return rgb
}

// Luminance returns the perceptual brightness of a colour in the range 0-255,
// weighted 0.299R + 0.587G + 0.114B.
func Luminance(rgb RGB) float64 {
	return lumaR*float64(rgb.R) + lumaG*float64(rgb.G) + lumaB*float64(rgb.B)
}

// LuminanceInt returns Luminance rounded to the nearest integer.
func LuminanceInt(rgb RGB) int {
	return int(math.Round(Luminance(rgb)))
}

// HSL represents a colour in HSL space.
// H is in degrees [0, 360), S and L are percentages [0, 100].
type HSL struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	L float64 `json:"l"`
}

// Round returns the integer form of the colour: hue 0-359 and whole percentages.
func (c HSL) Round() (h, s, l int) {
	h = int(math.Round(c.H)) % 360
	s = int(math.Round(c.S))
	l = int(math.Round(c.L))
	return h, s, l
}

// RGBToHSL converts RGB to HSL.
func RGBToHSL(rgb RGB) HSL {
	r := float64(rgb.R) / 255.0
	g := float64(rgb.G) / 255.0
	b := float64(rgb.B) / 255.0

	maxVal := math.Max(r, math.Max(g, b))
	minVal := math.Min(r, math.Min(g, b))
	delta := maxVal - minVal

	l := (maxVal + minVal) / 2.0
	if delta == 0 {
		return HSL{H: 0, S: 0, L: l * 100}
	}

	var s float64
	if l < 0.5 {
		s = delta / (maxVal + minVal)
	} else {
		s = delta / (2.0 - maxVal - minVal)
	}

	var h float64
	switch maxVal {
	case r:
		h = (g - b) / delta
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h *= 60
	if h >= 360 {
		h -= 360
	}

	return HSL{H: h, S: s * 100, L: l * 100}
}

// HSLToRGB converts HSL to RGB, rounding each channel to the nearest integer.
func HSLToRGB(c HSL) RGB {
	s := clampFloat(c.S, 0, 100) / 100
	l := clampFloat(c.L, 0, 100) / 100
	if s == 0 {
		v := to8Bit(l)
		return RGB{R: v, G: v, B: v}
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return RGB{
		R: to8Bit(hueToRGB(p, q, c.H+120)),
		G: to8Bit(hueToRGB(p, q, c.H)),
		B: to8Bit(hueToRGB(p, q, c.H-120)),
	}
}

// hueToRGB is a helper for HSL to RGB conversion.
func hueToRGB(p, q, t float64) float64 {
	t = math.Mod(t, 360)
	if t < 0 {
		t += 360
	}

	switch {
	case t < 60:
		return p + (q-p)*t/60
	case t < 180:
		return q
	case t < 240:
		return p + (q-p)*(240-t)/60
	default:
		return p
	}
}

// HueDistance returns the shortest angular distance between two hues (0-180).
func HueDistance(h1, h2 float64) float64 {
	diff := math.Abs(h1 - h2)
	diff = math.Mod(diff, 360)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

func to8Bit(v float64) uint8 {
	return clampChannel(math.Round(v * 255))
}

func clampChannel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
