package colour

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// MinDeltaE returns the smallest CIEDE2000 distance between any two colours,
// scaled to the usual 0-100 range. Palettes with fewer than two colours score 0.
// Low values mean the palette contains near-duplicates.
func MinDeltaE(colors []RGB) float64 {
	if len(colors) < 2 {
		return 0
	}

	cs := make([]colorful.Color, len(colors))
	for i, c := range colors {
		cs[i], _ = colorful.MakeColor(c)
	}

	best := math.MaxFloat64
	for i := range cs {
		for j := i + 1; j < len(cs); j++ {
			if d := cs[i].DistanceCIEDE2000(cs[j]); d < best {
				best = d
			}
		}
	}
	return math.Round(best*100*100) / 100
}
