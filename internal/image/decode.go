package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/jmylchreest/tincture/internal/colour"
)

// ErrDecodeFailure is returned when no usable pixels can be produced from an image.
var ErrDecodeFailure = errors.New("failed to decode image")

const (
	// DefaultMaxDimension bounds the longer image side before sampling.
	DefaultMaxDimension = 150

	// DefaultAlphaThreshold drops pixels below roughly 50% opacity.
	DefaultAlphaThreshold = 128

	// DefaultExtractStride is the sampling stride used for palette extraction.
	DefaultExtractStride = 4

	// DefaultHistogramStride is the sampling stride used for luminosity analysis.
	DefaultHistogramStride = 2
)

// Decoder turns encoded images into flat pixel samples.
// The zero value uses the defaults above.
type Decoder struct {
	// MaxDimension is the longest side after downscaling. Zero means DefaultMaxDimension.
	MaxDimension int

	// AlphaThreshold is the minimum alpha a pixel needs to be kept. Zero means DefaultAlphaThreshold.
	AlphaThreshold uint8
}

// NewDecoder creates a Decoder with default settings.
func NewDecoder() *Decoder {
	return &Decoder{
		MaxDimension:   DefaultMaxDimension,
		AlphaThreshold: DefaultAlphaThreshold,
	}
}

// Decode decodes encoded image bytes and samples every stride-th opaque pixel.
// Supported formats: JPEG, PNG, GIF, WebP, BMP, TIFF, AVIF.
func (d *Decoder) Decode(data []byte, stride int) ([]colour.RGB, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecodeFailure)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w (format: %s): %v", ErrDecodeFailure, format, err)
	}

	return d.Sample(img, stride)
}

// Sample downscales img and returns every stride-th pixel in row-major order,
// skipping pixels whose alpha is below the threshold.
func (d *Decoder) Sample(img image.Image, stride int) ([]colour.RGB, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrDecodeFailure)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecodeFailure)
	}

	stride = max(stride, 1)
	threshold := d.alphaThreshold()

	src := d.resize(img)
	bounds := src.Bounds()

	pixels := make([]colour.RGB, 0, bounds.Dx()*bounds.Dy()/stride+1)
	index := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if index%stride == 0 {
				off := src.PixOffset(x, y)
				px := src.Pix[off : off+4 : off+4]
				if px[3] >= threshold {
					pixels = append(pixels, colour.RGB{R: px[0], G: px[1], B: px[2]})
				}
			}
			index++
		}
	}

	if len(pixels) == 0 {
		return nil, fmt.Errorf("%w: no opaque pixels", ErrDecodeFailure)
	}

	return pixels, nil
}

func (d *Decoder) maxDimension() int {
	if d.MaxDimension <= 0 {
		return DefaultMaxDimension
	}
	return d.MaxDimension
}

func (d *Decoder) alphaThreshold() uint8 {
	if d.AlphaThreshold == 0 {
		return DefaultAlphaThreshold
	}
	return d.AlphaThreshold
}

// resize fits img within the configured bounds and returns it as NRGBA.
func (d *Decoder) resize(img image.Image) *image.NRGBA {
	limit := d.maxDimension()
	bounds := img.Bounds()
	if bounds.Dx() > limit || bounds.Dy() > limit {
		return imaging.Fit(img, limit, limit, imaging.Lanczos)
	}
	return toNRGBA(img)
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}
