// Package mhi - motion history image construction from a stream of grayscale
// frames.
//
// The package has two pieces: a frame Differencer that turns a pair of
// consecutive frames into a binary motion mask, and a Builder that folds the
// masks into a per-pixel recency buffer (the motion history). The Differencer
// is an interface so the Builder's decay logic can be exercised in isolation
// with a synthetic mask source.
package mhi

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mhi/images"
)

// ErrShapeMismatch is returned when a frame's dimensions disagree with the
// dimensions the builder recorded from its first frame. The frame is never
// resized or truncated to fit.
var ErrShapeMismatch = errors.New("mhi: frame dimensions differ from first frame")

// Differencer produces a binary motion mask from two consecutive grayscale
// frames. Implementations must be stateless: the same frame pair always
// yields the same mask.
type Differencer interface {
	// Mask writes a {0, 1} motion mask into dst. All three grids must share
	// the same dimensions.
	Mask(prev, cur, dst *images.Grid) error
}

// ThresholdDifferencer flags a pixel as moving when the absolute intensity
// difference between consecutive frames exceeds Theta.
type ThresholdDifferencer struct {
	// Theta is the intensity-difference threshold. A pixel moves when
	// |cur - prev| > Theta. Must be >= 0.
	Theta float32
}

// Mask computes the thresholded absolute frame difference.
//
// Arguments:
//   - prev: The earlier grayscale frame.
//   - cur: The later grayscale frame.
//   - dst: Destination mask, overwritten with 0 or 1 per pixel.
//
// Returns:
//   - error: If the grids do not share dimensions.
func (d ThresholdDifferencer) Mask(prev, cur, dst *images.Grid) error {
	if !prev.SameShape(cur) || !prev.SameShape(dst) {
		return errors.Wrapf(ErrShapeMismatch, "differencer: %dx%d vs %dx%d",
			prev.Width, prev.Height, cur.Width, cur.Height)
	}

	theta := d.Theta
	images.Parallel(len(cur.Pix), func(start, end int) {
		for i := start; i < end; i++ {
			if math32.Abs(cur.Pix[i]-prev.Pix[i]) > theta {
				dst.Pix[i] = 1
			} else {
				dst.Pix[i] = 0
			}
		}
	})
	return nil
}

// BackgroundDifferencer flags a pixel as moving when it deviates from a
// fixed reference frame rather than from the previous frame. With a static
// background reference, a region that appears and then holds still keeps
// registering as motion instead of fading after one frame.
type BackgroundDifferencer struct {
	// Reference is the background frame, typically the clip's first frame.
	Reference *images.Grid
	// Theta is the intensity-difference threshold against the reference.
	Theta float32
}

// Mask computes the thresholded difference against the reference frame. The
// prev argument is ignored; it exists to satisfy the Differencer contract.
func (d BackgroundDifferencer) Mask(prev, cur, dst *images.Grid) error {
	if d.Reference == nil {
		return errors.New("mhi: background differencer has no reference frame")
	}
	if !d.Reference.SameShape(cur) || !d.Reference.SameShape(dst) {
		return errors.Wrapf(ErrShapeMismatch, "background differencer: %dx%d vs %dx%d",
			d.Reference.Width, d.Reference.Height, cur.Width, cur.Height)
	}

	ref := d.Reference.Pix
	theta := d.Theta
	images.Parallel(len(cur.Pix), func(start, end int) {
		for i := start; i < end; i++ {
			if math32.Abs(cur.Pix[i]-ref[i]) > theta {
				dst.Pix[i] = 1
			} else {
				dst.Pix[i] = 0
			}
		}
	})
	return nil
}
