package colour

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const (
	// MinColours is the smallest palette that can be requested.
	MinColours = 3
	// MaxColours is the largest palette that can be requested.
	MaxColours = 8
)

// fallbackHex is returned, truncated, whenever extraction cannot proceed.
var fallbackHex = [...]string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
}

// FallbackPalette returns the first count entries of the fixed fallback palette.
// count is clamped to [0, 10].
func FallbackPalette(count int) []string {
	count = max(0, min(count, len(fallbackHex)))
	out := make([]string, count)
	copy(out, fallbackHex[:count])
	return out
}

// ClampCount clamps a requested colour count to [MinColours, MaxColours].
func ClampCount(count int) int {
	return max(MinColours, min(count, MaxColours))
}

// Palette is an ordered set of extracted colours.
type Palette struct {
	Colors []RGB
}

// NewPalette creates a new Palette with the given colours.
func NewPalette(colors []RGB) *Palette {
	return &Palette{Colors: colors}
}

// ParsePalette builds a palette from hex strings.
func ParsePalette(hexes []string) (*Palette, error) {
	colors := make([]RGB, len(hexes))
	for i, h := range hexes {
		rgb, err := ParseHex(h)
		if err != nil {
			return nil, err
		}
		colors[i] = rgb
	}
	return NewPalette(colors), nil
}

// Len returns the number of colours in the palette.
func (p *Palette) Len() int {
	return len(p.Colors)
}

// ToHex converts the palette colours to uppercase hex strings.
func (p *Palette) ToHex() []string {
	hexColors := make([]string, len(p.Colors))
	for i, c := range p.Colors {
		hexColors[i] = c.Hex()
	}
	return hexColors
}

// SortByLuminance orders colours brightest first. The sort is stable.
func SortByLuminance(colors []RGB) {
	slices.SortStableFunc(colors, func(a, b RGB) int {
		la, lb := Luminance(a), Luminance(b)
		switch {
		case la > lb:
			return -1
		case la < lb:
			return 1
		default:
			return 0
		}
	})
}

// fitCount truncates or pads sorted colours to exactly n entries.
// Padding repeats the darkest colour so the luminance order holds.
func fitCount(colors []RGB, n int) []RGB {
	if len(colors) >= n {
		return colors[:n]
	}
	pad := Gray
	if len(colors) > 0 {
		pad = colors[len(colors)-1]
	}
	for len(colors) < n {
		colors = append(colors, pad)
	}
	return colors
}

// HSLJSON is the integer HSL form: hue 0-359, saturation and lightness in whole percent.
type HSLJSON struct {
	H int `json:"h"`
	S int `json:"s"`
	L int `json:"l"`
}

// ColorJSON represents a colour in JSON output format.
type ColorJSON struct {
	Hex       string  `json:"hex"`
	RGB       RGB     `json:"rgb"`
	HSL       HSLJSON `json:"hsl"`
	Luminance float64 `json:"luminance"`
}

// PaletteJSON represents the palette in JSON format.
type PaletteJSON struct {
	Count    int         `json:"count"`
	Method   Method      `json:"method,omitempty"`
	MinDelta float64     `json:"min_delta_e"`
	Colors   []ColorJSON `json:"colors"`
}

// ToJSON converts the palette to indented JSON.
func (p *Palette) ToJSON(method Method) ([]byte, error) {
	colors := make([]ColorJSON, len(p.Colors))
	for i, c := range p.Colors {
		h, sat, l := RGBToHSL(c).Round()
		colors[i] = ColorJSON{
			Hex:       c.Hex(),
			RGB:       c,
			HSL:       HSLJSON{H: h, S: sat, L: l},
			Luminance: Luminance(c),
		}
	}

	return json.MarshalIndent(PaletteJSON{
		Count:    len(p.Colors),
		Method:   method,
		MinDelta: MinDeltaE(p.Colors),
		Colors:   colors,
	}, "", "  ")
}

// String returns a human-readable representation of the palette.
func (p *Palette) String() string {
	if len(p.Colors) == 0 {
		return "Empty palette"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Palette with %d colors:\n", len(p.Colors))
	for i, c := range p.Colors {
		fmt.Fprintf(&sb, "  %2d: %s (%s)\n", i+1, c.Hex(), c.String())
	}
	return sb.String()
}
