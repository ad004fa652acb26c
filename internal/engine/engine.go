// Package engine is the palette extraction entry point. It decodes an image
// once, runs the selected extractor and never fails: any error is logged and
// replaced by the fixed fallback palette.
package engine

import (
	"encoding/binary"
	"fmt"
	stdimage "image"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/tincture/internal/colour"
	"github.com/jmylchreest/tincture/internal/image"
	"github.com/jmylchreest/tincture/internal/util/hash"
)

// SeedMode determines how the k-means random seed is chosen.
type SeedMode string

const (
	// SeedModeRandom uses a fresh seed on every call.
	SeedModeRandom SeedMode = "random"

	// SeedModeContent derives the seed from the sampled pixels, so the same
	// picture gives the same palette whether it is passed encoded or decoded.
	SeedModeContent SeedMode = "content"

	// SeedModeManual uses Options.Seed.
	SeedModeManual SeedMode = "manual"
)

// ValidSeedModes returns the supported seed modes.
func ValidSeedModes() []SeedMode {
	return []SeedMode{SeedModeRandom, SeedModeContent, SeedModeManual}
}

// ParseSeedMode parses a seed mode name. An empty string means SeedModeRandom.
func ParseSeedMode(s string) (SeedMode, error) {
	m := SeedMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return SeedModeRandom, nil
	case SeedModeRandom, SeedModeContent, SeedModeManual:
		return m, nil
	default:
		return "", fmt.Errorf("invalid seed mode '%s' (valid: random, content, manual)", s)
	}
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	// Decoder controls downscaling and the alpha threshold.
	Decoder *image.Decoder

	// ExtractStride is the pixel stride for palette extraction.
	ExtractStride int

	// HistogramStride is the pixel stride for luminosity analysis.
	HistogramStride int

	// MaxIterations bounds k-means refinement.
	MaxIterations int

	// SeedMode selects how the k-means seed is derived.
	SeedMode SeedMode

	// Seed is used when SeedMode is SeedModeManual.
	Seed int64

	// Logger receives fallback warnings. Nil discards them.
	Logger hclog.Logger
}

// Engine extracts palettes and luminosity reports from images.
// It holds only configuration and is safe for concurrent use.
type Engine struct {
	decoder         *image.Decoder
	extractStride   int
	histogramStride int
	maxIterations   int
	seedMode        SeedMode
	seed            int64
	logger          hclog.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		decoder:         opts.Decoder,
		extractStride:   opts.ExtractStride,
		histogramStride: opts.HistogramStride,
		maxIterations:   opts.MaxIterations,
		seedMode:        opts.SeedMode,
		seed:            opts.Seed,
		logger:          opts.Logger,
	}
	if e.decoder == nil {
		e.decoder = image.NewDecoder()
	}
	if e.extractStride <= 0 {
		e.extractStride = image.DefaultExtractStride
	}
	if e.histogramStride <= 0 {
		e.histogramStride = image.DefaultHistogramStride
	}
	if e.maxIterations <= 0 {
		e.maxIterations = colour.DefaultMaxIterations
	}
	if e.seedMode == "" {
		e.seedMode = SeedModeRandom
	}
	if e.logger == nil {
		e.logger = hclog.NewNullLogger()
	}
	return e
}

// ExtractPalette returns colorCount uppercase hex colours ordered brightest first.
// colorCount is clamped to [3, 8]. On any failure the fallback palette is returned.
func (e *Engine) ExtractPalette(data []byte, colorCount int, method colour.Method) []string {
	hexes, _ := e.TryExtractPalette(data, colorCount, method)
	return hexes
}

// TryExtractPalette is ExtractPalette that also returns the failure, if any,
// that caused the fallback palette to be returned. hexes is never empty.
func (e *Engine) TryExtractPalette(data []byte, colorCount int, method colour.Method) (hexes []string, err error) {
	colorCount = colour.ClampCount(colorCount)
	defer e.recoverPalette(&hexes, &err, colorCount, method)

	palette, err := e.Extract(data, colorCount, method)
	if err != nil {
		return e.fallback(err, colorCount, method), err
	}
	return palette.ToHex(), nil
}

// ExtractPaletteFromImage is ExtractPalette for an already decoded image.
func (e *Engine) ExtractPaletteFromImage(img stdimage.Image, colorCount int, method colour.Method) (hexes []string) {
	colorCount = colour.ClampCount(colorCount)
	var err error
	defer e.recoverPalette(&hexes, &err, colorCount, method)

	palette, err := e.ExtractFromImage(img, colorCount, method)
	if err != nil {
		return e.fallback(err, colorCount, method)
	}
	return palette.ToHex()
}

// Extract is the error-returning form of ExtractPalette.
func (e *Engine) Extract(data []byte, colorCount int, method colour.Method) (*colour.Palette, error) {
	colorCount = colour.ClampCount(colorCount)
	pixels, err := e.decoder.Decode(data, e.extractStride)
	if err != nil {
		return nil, err
	}

	extractor, err := e.newExtractor(method, func() int64 { return pixelSeed(pixels) })
	if err != nil {
		return nil, err
	}

	return colour.NewPalette(extractor.Extract(pixels, colorCount)), nil
}

// ExtractFromImage is the error-returning form of ExtractPaletteFromImage.
func (e *Engine) ExtractFromImage(img stdimage.Image, colorCount int, method colour.Method) (*colour.Palette, error) {
	colorCount = colour.ClampCount(colorCount)
	pixels, err := e.decoder.Sample(img, e.extractStride)
	if err != nil {
		return nil, err
	}

	extractor, err := e.newExtractor(method, func() int64 { return pixelSeed(pixels) })
	if err != nil {
		return nil, err
	}

	return colour.NewPalette(extractor.Extract(pixels, colorCount)), nil
}

// AnalyzeLuminosity returns the luminosity histogram of encoded image bytes,
// or nil if the image cannot be decoded or has no opaque pixels.
func (e *Engine) AnalyzeLuminosity(data []byte) (h *colour.LuminosityHistogram) {
	defer e.recoverHistogram(&h)

	pixels, err := e.decoder.Decode(data, e.histogramStride)
	if err != nil {
		e.logger.Warn("luminosity analysis failed", "error", err)
		return nil
	}
	return colour.AnalyzeLuminosity(pixels)
}

// AnalyzeLuminosityFromImage is AnalyzeLuminosity for an already decoded image.
func (e *Engine) AnalyzeLuminosityFromImage(img stdimage.Image) (h *colour.LuminosityHistogram) {
	defer e.recoverHistogram(&h)

	pixels, err := e.decoder.Sample(img, e.histogramStride)
	if err != nil {
		e.logger.Warn("luminosity analysis failed", "error", err)
		return nil
	}
	return colour.AnalyzeLuminosity(pixels)
}

// newExtractor builds a fresh extractor per call; contentSeed is only
// evaluated in content seed mode.
func (e *Engine) newExtractor(method colour.Method, contentSeed func() int64) (colour.Extractor, error) {
	opts := colour.ExtractorOptions{MaxIterations: e.maxIterations}

	switch e.seedMode {
	case SeedModeContent:
		seed := contentSeed()
		opts.Seed = &seed
	case SeedModeManual:
		seed := e.seed
		opts.Seed = &seed
	}

	if e.logger.IsDebug() {
		if opts.Seed != nil {
			e.logger.Debug("creating extractor", "method", method, "seed_mode", e.seedMode, "seed", *opts.Seed)
		} else {
			e.logger.Debug("creating extractor", "method", method, "seed_mode", e.seedMode)
		}
	}

	return colour.NewExtractor(method, opts)
}

func (e *Engine) fallback(err error, colorCount int, method colour.Method) []string {
	e.logger.Warn("palette extraction failed, using fallback palette",
		"method", method, "colours", colorCount, "error", err)
	return colour.FallbackPalette(colorCount)
}

func (e *Engine) recoverPalette(hexes *[]string, errp *error, colorCount int, method colour.Method) {
	if r := recover(); r != nil {
		*errp = fmt.Errorf("panic: %v", r)
		*hexes = e.fallback(*errp, colorCount, method)
	}
}

func (e *Engine) recoverHistogram(h **colour.LuminosityHistogram) {
	if r := recover(); r != nil {
		e.logger.Warn("luminosity analysis failed", "error", fmt.Errorf("panic: %v", r))
		*h = nil
	}
}

// pixelSeed hashes sampled pixels for SeedModeContent.
func pixelSeed(pixels []colour.RGB) int64 {
	buf := make([]byte, 0, len(pixels)*3+8)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(pixels)))
	for _, p := range pixels {
		buf = append(buf, p.R, p.G, p.B)
	}
	return hash.ContentSeed(buf)
}
