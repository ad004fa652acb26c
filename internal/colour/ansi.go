package colour

import (
	"fmt"
	"strings"
)

const (
	ansiReset          = "\033[0m"
	defaultSwatchWidth = 8
)

// ColourPreview returns a truecolour swatch width cells wide.
func ColourPreview(c RGB, width int) string {
	if width <= 0 {
		width = defaultSwatchWidth
	}
	return fmt.Sprintf("\033[48;2;%d;%d;%dm%s%s", c.R, c.G, c.B, strings.Repeat(" ", width), ansiReset)
}

// FormatColourWithPreview returns a swatch followed by the hex code.
func FormatColourWithPreview(c RGB, width int) string {
	return ColourPreview(c, width) + " " + c.Hex()
}
