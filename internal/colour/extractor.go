package colour

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Extractor reduces a set of sampled pixels to a palette.
type Extractor interface {
	// Extract returns exactly count colours ordered brightest first.
	// Degenerate input is padded rather than reported as an error.
	Extract(pixels []RGB, count int) []RGB
}

// Method names a colour extraction algorithm.
type Method string

const (
	// MethodKMeans clusters pixels in RGB space.
	MethodKMeans Method = "kmeans"

	// MethodHistogram picks peaks from a hue histogram.
	MethodHistogram Method = "histogram"
)

// ValidMethods returns the supported extraction methods.
func ValidMethods() []Method {
	return []Method{MethodKMeans, MethodHistogram}
}

// ParseMethod parses a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodKMeans, MethodHistogram:
		return m, nil
	default:
		return "", fmt.Errorf("unknown method: %s (valid methods: %v)", s, ValidMethods())
	}
}

// ExtractorOptions configures extractor construction.
type ExtractorOptions struct {
	// Seed pins the k-means++ random source. Nil means unseeded.
	Seed *int64

	// MaxIterations bounds k-means refinement. Zero means DefaultMaxIterations.
	MaxIterations int
}

// NewExtractor creates the Extractor for the given method.
// Extractors are not safe for concurrent use; create one per extraction.
func NewExtractor(method Method, opts ExtractorOptions) (Extractor, error) {
	switch method {
	case MethodKMeans:
		seed := time.Now().UnixNano()
		if opts.Seed != nil {
			seed = *opts.Seed
		}
		return NewKMeansExtractor(rand.New(rand.NewSource(seed)), opts.MaxIterations), nil
	case MethodHistogram:
		return NewHueHistogramExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown method: %s (valid methods: %v)", method, ValidMethods())
	}
}
