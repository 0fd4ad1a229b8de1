// Package obscure derives the public, intentionally degraded version of a
// member photo: auto-oriented, shrunk into a fixed box, heavily blurred and
// re-encoded as low-quality JPEG.
package obscure

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const ContentType = "image/jpeg"

type Options struct {
	MaxWidth  int
	MaxHeight int
	Sigma     float64 // Gaussian blur strength
	Quality   int     // JPEG quality 1-100
	MaxPixels int64   // decoded width*height limit, 0 means unlimited
}

// ErrTooManyPixels rejects images whose declared dimensions exceed MaxPixels.
// A small compressed file can declare a huge canvas.
var ErrTooManyPixels = errors.New("obscure: image dimensions exceed limit")

// DefaultOptions are tuned so faces are unrecognisable at any output size.
var DefaultOptions = Options{MaxWidth: 320, MaxHeight: 320, Sigma: 18, Quality: 60, MaxPixels: 40_000_000}

// Obscure decodes raw (JPEG, PNG or GIF) and returns the obscured JPEG. The
// output depends only on raw and opts.
func Obscure(raw []byte, opts Options) ([]byte, error) {
	if err := CheckDimensions(raw, opts.MaxPixels); err != nil {
		return nil, err
	}
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("obscure: decode: %w", err)
	}

	w, h := Fit(src.Bounds().Dx(), src.Bounds().Dy(), opts.MaxWidth, opts.MaxHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	blurred := imaging.Blur(dst, opts.Sigma)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, blurred, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("obscure: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// CheckDimensions reads only the image header and fails with
// ErrTooManyPixels when width*height exceeds maxPixels.
func CheckDimensions(raw []byte, maxPixels int64) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("obscure: decode config: %w", err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	return nil
}

// Fit scales (w, h) down to fit inside (maxW, maxH) keeping the aspect
// ratio. Images already inside the box keep their size.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	// Compare w/maxW against h/maxH without floats.
	if w*maxH >= h*maxW {
		nh := h * maxW / w
		if nh < 1 {
			nh = 1
		}
		return maxW, nh
	}
	nw := w * maxH / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxH
}
