package colour

import (
	"math"
	"slices"
)

const (
	// LuminosityBins is the number of histogram buckets over luminance 0-255.
	LuminosityBins     = 32
	luminosityBinWidth = 256 / LuminosityBins

	darkThreshold   = 85
	brightThreshold = 170
)

// LuminosityHistogram summarises the brightness distribution of an image.
// Bins are normalised so the tallest bin is 100.
type LuminosityHistogram struct {
	Bins          [LuminosityBins]int `json:"bins"`
	Average       int                 `json:"average"`
	Contrast      int                 `json:"contrast"`
	DarkPercent   int                 `json:"dark_percent"`
	MidPercent    int                 `json:"mid_percent"`
	BrightPercent int                 `json:"bright_percent"`
	MinValue      int                 `json:"min_value"`
	MaxValue      int                 `json:"max_value"`
}

// AnalyzeLuminosity builds a LuminosityHistogram from sampled pixels.
// It returns nil when there are no pixels.
func AnalyzeLuminosity(pixels []RGB) *LuminosityHistogram {
	if len(pixels) == 0 {
		return nil
	}

	lums := make([]int, len(pixels))
	var counts [LuminosityBins]int
	var sum float64
	var dark, mid, bright int
	for i, c := range pixels {
		lum := LuminanceInt(c)
		lums[i] = lum
		counts[min(lum/luminosityBinWidth, LuminosityBins-1)]++
		sum += float64(lum)

		switch {
		case lum < darkThreshold:
			dark++
		case lum < brightThreshold:
			mid++
		default:
			bright++
		}
	}

	h := &LuminosityHistogram{}

	peak := slices.Max(counts[:])
	if peak > 0 {
		for i, c := range counts {
			h.Bins[i] = int(math.Round(float64(c) * 100 / float64(peak)))
		}
	}

	n := float64(len(pixels))
	mean := sum / n
	h.Average = int(math.Round(mean))

	sorted := slices.Clone(lums)
	slices.Sort(sorted)
	h.MinValue = sorted[0]
	h.MaxValue = sorted[len(sorted)-1]

	var variance float64
	for _, lum := range lums {
		d := float64(lum) - mean
		variance += d * d
	}
	stdDev := math.Sqrt(variance / n)

	rangeRatio := float64(h.MaxValue-h.MinValue) / 255 * 100
	stdRatio := stdDev / 128 * 100
	h.Contrast = int(clampFloat(math.Round((rangeRatio+stdRatio)/2), 0, 100))

	h.DarkPercent = percent(dark, len(pixels))
	h.MidPercent = percent(mid, len(pixels))
	h.BrightPercent = percent(bright, len(pixels))

	return h
}

func percent(part, total int) int {
	return int(math.Round(float64(part) * 100 / float64(total)))
}
