package colour

import (
	"cmp"
	"math"
	"slices"
)

const (
	hueBinCount     = 36
	hueBinWidth     = 360 / hueBinCount
	smoothingRadius = 3

	// Chromatic pixels carry enough saturation, and are neither too dark nor too light, for hue to mean something.
	chromaticMinSaturation = 25
	chromaticMinLightness  = 10
	chromaticMaxLightness  = 90

	// A neighbour joins a peak when its smoothed count exceeds this share of the peak's.
	peakMergeRatio = 0.5

	primaryHueSeparation   = 25.0
	secondaryHueSeparation = 15.0
)

// PixelSample pairs a pixel with its rounded HSL form.
type PixelSample struct {
	RGB RGB
	H   int
	S   int
	L   int
}

func newPixelSample(c RGB) PixelSample {
	h, s, l := RGBToHSL(c).Round()
	return PixelSample{RGB: c, H: h, S: s, L: l}
}

// isChromatic reports whether the sample's hue is meaningful.
func (p PixelSample) isChromatic() bool {
	return p.S >= chromaticMinSaturation && p.L >= chromaticMinLightness && p.L <= chromaticMaxLightness
}

type hueBin struct {
	count   int
	members []PixelSample
}

type huePeak struct {
	bin     int
	count   int
	members []PixelSample
	hue     float64
	score   float64
}

// HueHistogramExtractor selects dominant hues from a 36-bin hue histogram and
// back-fills with achromatic tones when the image lacks distinct hues.
type HueHistogramExtractor struct{}

// NewHueHistogramExtractor creates a HueHistogramExtractor.
func NewHueHistogramExtractor() *HueHistogramExtractor {
	return &HueHistogramExtractor{}
}

// Extract returns exactly count colours ordered brightest first.
func (e *HueHistogramExtractor) Extract(pixels []RGB, count int) []RGB {
	if count <= 0 {
		return []RGB{}
	}

	var chromatic, achromatic []PixelSample
	for _, c := range pixels {
		sample := newPixelSample(c)
		if sample.isChromatic() {
			chromatic = append(chromatic, sample)
		} else {
			achromatic = append(achromatic, sample)
		}
	}

	var bins [hueBinCount]hueBin
	for _, s := range chromatic {
		b := &bins[s.H/hueBinWidth]
		b.count++
		b.members = append(b.members, s)
	}

	peaks := findPeaks(&bins, smoothBins(&bins))
	for i := range peaks {
		scorePeak(&peaks[i])
	}
	selected := selectPeaks(peaks, count)

	colors := make([]RGB, 0, count)
	for _, p := range selected {
		colors = append(colors, weightedAverage(p.members))
	}

	if remaining := count - len(colors); remaining > 0 && len(achromatic) > 0 {
		colors = append(colors, achromaticFill(achromatic, remaining)...)
	}

	SortByLuminance(colors)
	return fitCount(colors, count)
}

// smoothBins applies a circular moving average over ±smoothingRadius bins.
func smoothBins(bins *[hueBinCount]hueBin) [hueBinCount]float64 {
	var smoothed [hueBinCount]float64
	const window = 2*smoothingRadius + 1
	for i := range hueBinCount {
		sum := 0
		for off := -smoothingRadius; off <= smoothingRadius; off++ {
			sum += bins[wrapBin(i+off)].count
		}
		smoothed[i] = float64(sum) / window
	}
	return smoothed
}

// findPeaks returns local maxima of the smoothed histogram, each merged with
// qualifying neighbours. Stronger peaks claim neighbours first and a bin is
// never attributed to two peaks.
func findPeaks(bins *[hueBinCount]hueBin, smoothed [hueBinCount]float64) []huePeak {
	candidates := make([]int, 0, hueBinCount)
	for i := range hueBinCount {
		v := smoothed[i]
		if v > 0 && v >= smoothed[wrapBin(i-1)] && v >= smoothed[wrapBin(i+1)] {
			candidates = append(candidates, i)
		}
	}
	slices.SortStableFunc(candidates, func(a, b int) int {
		return cmp.Compare(smoothed[b], smoothed[a])
	})

	var claimed [hueBinCount]bool
	peaks := make([]huePeak, 0, len(candidates))
	for _, i := range candidates {
		if claimed[i] {
			continue
		}
		claimed[i] = true

		peak := huePeak{bin: i, count: bins[i].count}
		peak.members = append(peak.members, bins[i].members...)

		for _, n := range [2]int{wrapBin(i - 1), wrapBin(i + 1)} {
			if claimed[n] || smoothed[n] <= smoothed[i]*peakMergeRatio {
				continue
			}
			claimed[n] = true
			peak.count += bins[n].count
			peak.members = append(peak.members, bins[n].members...)
		}

		if len(peak.members) == 0 {
			continue
		}
		peak.hue = meanHue(peak.members)
		peaks = append(peaks, peak)
	}
	return peaks
}

// scorePeak favours populous, saturated, mid-lightness peaks.
func scorePeak(p *huePeak) {
	var satSum, lightSum float64
	for _, m := range p.members {
		satSum += float64(m.S)
		lightSum += float64(m.L)
	}
	n := float64(len(p.members))
	avgSat := satSum / n
	avgLight := lightSum / n

	lightnessScore := 1.0
	switch {
	case avgLight < 20:
		lightnessScore = 0.5 + 0.5*avgLight/20
	case avgLight > 80:
		lightnessScore = 0.5 + 0.5*(100-avgLight)/20
	}

	sat := avgSat / 100
	score := math.Sqrt(float64(p.count)) * sat * sat * lightnessScore * 100
	p.score = math.Max(score, float64(p.count)*0.01)
}

// selectPeaks greedily picks the highest scoring peaks that are far enough
// apart in hue, relaxing the separation once if slots remain.
func selectPeaks(peaks []huePeak, count int) []huePeak {
	slices.SortStableFunc(peaks, func(a, b huePeak) int {
		return cmp.Compare(b.score, a.score)
	})

	selected := make([]huePeak, 0, count)
	used := make([]bool, len(peaks))
	for _, separation := range [2]float64{primaryHueSeparation, secondaryHueSeparation} {
		for i, p := range peaks {
			if len(selected) >= count {
				return selected
			}
			if used[i] || !separated(p.hue, selected, separation) {
				continue
			}
			used[i] = true
			selected = append(selected, p)
		}
	}
	return selected
}

func separated(hue float64, selected []huePeak, minDistance float64) bool {
	for _, s := range selected {
		if HueDistance(hue, s.hue) < minDistance {
			return false
		}
	}
	return true
}

// achromaticFill splits the achromatic samples, brightest first, into
// contiguous groups and returns one colour per group.
func achromaticFill(samples []PixelSample, slots int) []RGB {
	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b PixelSample) int {
		return cmp.Compare(b.L, a.L)
	})

	groups := min(slots, len(sorted))
	colors := make([]RGB, 0, groups)
	for g := range groups {
		start := g * len(sorted) / groups
		end := (g + 1) * len(sorted) / groups
		colors = append(colors, weightedAverage(sorted[start:end]))
	}
	return colors
}

// weightedAverage averages samples with weight 1 + 100*(s/100)^2, so
// saturated pixels dominate the result.
func weightedAverage(samples []PixelSample) RGB {
	if len(samples) == 0 {
		return Gray
	}

	var r, g, b, total float64
	for _, s := range samples {
		sat := float64(s.S) / 100
		w := 1 + 100*sat*sat
		r += float64(s.RGB.R) * w
		g += float64(s.RGB.G) * w
		b += float64(s.RGB.B) * w
		total += w
	}

	return RGB{
		R: clampChannel(math.Round(r / total)),
		G: clampChannel(math.Round(g / total)),
		B: clampChannel(math.Round(b / total)),
	}
}

// meanHue returns the circular mean of the samples' hues in [0, 360).
func meanHue(samples []PixelSample) float64 {
	var x, y float64
	for _, s := range samples {
		rad := float64(s.H) * math.Pi / 180
		x += math.Cos(rad)
		y += math.Sin(rad)
	}
	if x == 0 && y == 0 {
		return float64(samples[0].H)
	}
	h := math.Atan2(y, x) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}

func wrapBin(i int) int {
	return ((i % hueBinCount) + hueBinCount) % hueBinCount
}
