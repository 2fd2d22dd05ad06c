package mhi

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mhi/images"
)

// Config contains the parameters for motion history construction.
type Config struct {
	// Theta is the frame-difference threshold that classifies a pixel as
	// moving. Must be >= 0.
	Theta float32
	// Tau is the decay window: the number of frames a motion event stays
	// visible before fading to zero. Must be >= 1.
	Tau float32
	// Differencer overrides the motion mask computation. When nil, a
	// ThresholdDifferencer with Theta is used.
	Differencer Differencer
}

// DefaultConfig returns the parameters used when a clip has no overrides.
func DefaultConfig() Config {
	return Config{
		Theta: 10,
		Tau:   30,
	}
}

// Builder accumulates per-pixel motion recency over a sequence of frames.
//
// The builder owns a history buffer H with the same dimensions as the frames.
// Each processed frame sets H to Tau where motion is detected and decays it
// by one (clamped at zero) elsewhere, producing the classic linear motion
// trail. The builder is stateful and strictly sequential: frames of one clip
// must be fed in order from a single goroutine. Different clips use different
// Builder instances and are free to run concurrently.
type Builder struct {
	config  Config
	differ  Differencer
	history *images.Grid
	prev    *images.Grid
	mask    *images.Grid
	frames  int
}

// New creates a motion history builder from a clip's first frame.
//
// The first frame fixes the spatial dimensions for the lifetime of the clip
// and seeds the previous-frame state, so the first Process call observes no
// motion against it (there is no earlier frame to differ with).
//
// Arguments:
//   - first: The clip's first grayscale frame.
//   - config: Theta/Tau parameters and optional Differencer override.
//
// Returns:
//   - *Builder: The initialized builder with a zero-filled history buffer.
//   - error: If Tau < 1 or Theta < 0.
//
// @example
// builder, err := mhi.New(firstFrame, mhi.Config{Theta: 10, Tau: 30})
//
//	if err != nil {
//	    return err
//	}
//
// motion, err := builder.Process(nextFrame)
func New(first *images.Grid, config Config) (*Builder, error) {
	if config.Tau < 1 {
		return nil, errors.Errorf("mhi: tau must be >= 1, got %v", config.Tau)
	}
	if config.Theta < 0 {
		return nil, errors.Errorf("mhi: theta must be >= 0, got %v", config.Theta)
	}
	if first == nil || len(first.Pix) == 0 {
		return nil, errors.New("mhi: first frame is empty")
	}

	differ := config.Differencer
	if differ == nil {
		differ = ThresholdDifferencer{Theta: config.Theta}
	}

	history, err := images.NewGrid(first.Width, first.Height)
	if err != nil {
		return nil, errors.Wrap(err, "mhi: allocating history buffer")
	}
	mask, _ := images.NewGrid(first.Width, first.Height)

	return &Builder{
		config:  config,
		differ:  differ,
		history: history,
		prev:    first.Clone(),
		mask:    mask,
	}, nil
}

// Process folds one frame into the history buffer and returns the current
// normalized motion history image.
//
// Pixels flagged by the differencer are raised to Tau; all others decay by
// one frame, clamped at zero. The buffer mutation completes before the
// method returns, so an early-stopped clip always leaves the builder in a
// state where MHI remains valid.
//
// Arguments:
//   - frame: The next grayscale frame of the clip.
//
// Returns:
//   - *images.Grid: Snapshot of the motion history normalized to [0, 1].
//   - error: ErrShapeMismatch if the frame's dimensions disagree with the
//     first frame; the history buffer is left untouched in that case.
func (b *Builder) Process(frame *images.Grid) (*images.Grid, error) {
	if !frame.SameShape(b.history) {
		return nil, errors.Wrapf(ErrShapeMismatch, "process: got %dx%d, want %dx%d",
			frame.Width, frame.Height, b.history.Width, b.history.Height)
	}

	if err := b.differ.Mask(b.prev, frame, b.mask); err != nil {
		return nil, errors.Wrap(err, "mhi: computing motion mask")
	}

	tau := b.config.Tau
	h := b.history.Pix
	mask := b.mask.Pix
	images.Parallel(len(h), func(start, end int) {
		for i := start; i < end; i++ {
			if mask[i] != 0 {
				h[i] = tau
			} else if h[i] > 0 {
				h[i]--
				if h[i] < 0 {
					h[i] = 0
				}
			}
		}
	})

	// Keep our own copy; callers may reuse or mutate their frame buffer.
	copy(b.prev.Pix, frame.Pix)
	b.frames++

	return b.MHI(), nil
}

// MHI returns the motion history normalized to [0, 1] as a fresh grid. It is
// valid at any point in the builder's life: before the first Process call it
// is all zero, and after processing stops it reflects the last update.
func (b *Builder) MHI() *images.Grid {
	out := b.history.Clone()
	inv := 1 / b.config.Tau
	images.Parallel(len(out.Pix), func(start, end int) {
		for i := start; i < end; i++ {
			out.Pix[i] *= inv
		}
	})
	return out
}

// Frames returns the number of frames processed so far.
func (b *Builder) Frames() int {
	return b.frames
}

// MEI derives the binary motion energy image from a motion history image:
// 1 wherever the MHI is positive, 0 elsewhere.
func MEI(m *images.Grid) *images.Grid {
	out := m.Clone()
	images.Parallel(len(out.Pix), func(start, end int) {
		for i := start; i < end; i++ {
			if out.Pix[i] > 0 {
				out.Pix[i] = 1
			} else {
				out.Pix[i] = 0
			}
		}
	})
	return out
}
