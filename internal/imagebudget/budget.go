// Package imagebudget shrinks base64-encoded photos until they fit a byte
// budget before they are sent to the chef.
package imagebudget

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/nfnt/resize"
)

// ErrDecode is returned when the input is not a decodable image.
var ErrDecode = errors.New("failed to decode image")

const (
	DefaultMaxBytes     = 900 * 1024
	DefaultMaxDimension = 768
	DefaultMinDimension = 384
	DefaultQuality      = 75
	DefaultMinQuality   = 45
	DefaultQualityStep  = 10
	DefaultShrinkRatio  = 0.85
	DefaultMaxAttempts  = 8
)

// Options tunes Fit. Zero values take the defaults above.
type Options struct {
	MaxBytes     int
	MaxDimension int
	MinDimension int
	Quality      int // JPEG quality, 1-100
	MinQuality   int
	QualityStep  int
	ShrinkRatio  float64
	MaxAttempts  int
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.MinDimension <= 0 {
		o.MinDimension = DefaultMinDimension
	}
	if o.MinDimension > o.MaxDimension {
		o.MinDimension = o.MaxDimension
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MinQuality <= 0 {
		o.MinQuality = DefaultMinQuality
	}
	if o.MinQuality > o.Quality {
		o.MinQuality = o.Quality
	}
	if o.QualityStep <= 0 {
		o.QualityStep = DefaultQualityStep
	}
	if o.ShrinkRatio <= 0 || o.ShrinkRatio >= 1 {
		o.ShrinkRatio = DefaultShrinkRatio
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	return o
}

// EstimateBytes returns the decoded size of a base64 payload without decoding it.
func EstimateBytes(b64 string) int {
	padding := 0
	if strings.HasSuffix(b64, "==") {
		padding = 2
	} else if strings.HasSuffix(b64, "=") {
		padding = 1
	}
	return len(b64)*3/4 - padding
}

// StripDataURI removes a "data:image/jpeg;base64," style prefix.
func StripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Fit returns a base64 JPEG estimated to be at most opts.MaxBytes. Inputs that
// already fit are returned untouched. Otherwise the image is re-encoded with
// decreasing quality, then decreasing dimensions, for at most opts.MaxAttempts
// tries. When the budget is never met the smallest attempt is returned, or the
// input if nothing came out smaller.
func Fit(b64 string, opts Options) (string, error) {
	opts = opts.withDefaults()

	original := EstimateBytes(b64)
	if b64 == "" || original <= opts.MaxBytes {
		return b64, nil
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	best, bestSize := b64, original
	maxDim := opts.MaxDimension
	quality := opts.Quality

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		encoded, err := encode(img, maxDim, quality)
		if err != nil {
			return "", err
		}

		size := EstimateBytes(encoded)
		if size <= opts.MaxBytes {
			return encoded, nil
		}
		if size < bestSize {
			best, bestSize = encoded, size
		}

		// Lower quality first, then dimensions.
		if quality > opts.MinQuality {
			quality = max(opts.MinQuality, quality-opts.QualityStep)
		} else {
			maxDim = max(opts.MinDimension, int(float64(maxDim)*opts.ShrinkRatio))
		}
	}

	return best, nil
}

// encode scales img so that its longer side is at most maxDim and returns it as base64 JPEG.
func encode(img image.Image, maxDim, quality int) (string, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := min(1, float64(maxDim)/float64(max(w, h)))
	width := max(1, int(float64(w)*scale))
	height := max(1, int(float64(h)*scale))

	scaled := img
	if width != w || height != h {
		scaled = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
