package pipeline

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mhi/images"
	"github.com/nvr-ai/go-mhi/mhi"
	"github.com/nvr-ai/go-mhi/video"
)

// SnapshotFunc observes the per-frame motion image during MHI construction,
// e.g. to save selected frames to disk. The grid is a private snapshot; the
// callback may retain it.
type SnapshotFunc func(frameIndex int, motion *images.Grid) error

// BuildMHI runs a motion history builder over one clip and returns the MHI
// captured at params.MHIFrame, or at the end of the clip if the source runs
// out first (or MHIFrame is unset).
//
// Frame indices are zero-based; the clip's first frame both seeds the
// builder and counts as frame 0. Cancelling the context stops the loop
// between frames, which by the builder's per-frame atomicity still leaves a
// coherent (if truncated) MHI; it is returned alongside the context error so
// the caller can choose to keep it.
//
// Arguments:
//   - ctx: Cancellation for long clips.
//   - src: The clip's frame source; not closed by this function.
//   - params: Resolved theta/tau/snapshot-frame parameters.
//   - snap: Optional per-frame observer, may be nil.
//
// Returns:
//   - *images.Grid: The motion history image, normalized to [0, 1].
//   - error: Construction or frame errors, a snapshot callback error, or the
//     context error on cancellation.
func BuildMHI(ctx context.Context, src video.Source, params ClipParams, snap SnapshotFunc) (*images.Grid, error) {
	first, err := src.Next()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("pipeline: clip has no frames")
		}
		return nil, errors.Wrap(err, "pipeline: reading first frame")
	}

	builder, err := mhi.New(first, mhi.Config{Theta: params.Theta, Tau: params.Tau})
	if err != nil {
		return nil, err
	}

	frame := first
	for frameIndex := 0; ; frameIndex++ {
		if err := ctx.Err(); err != nil {
			return builder.MHI(), errors.Wrap(err, "pipeline: clip cancelled")
		}

		motion, err := builder.Process(frame)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			if err := snap(frameIndex, motion); err != nil {
				return nil, errors.Wrap(err, "pipeline: snapshot callback")
			}
		}
		if params.MHIFrame > 0 && frameIndex == params.MHIFrame {
			return motion, nil
		}

		frame, err = src.Next()
		if err == io.EOF {
			return builder.MHI(), nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "pipeline: reading frame")
		}
	}
}
