package pipeline

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mhi/images"
	"github.com/nvr-ai/go-mhi/video"
)

// countingSource wraps a Source and counts how many frames were pulled.
type countingSource struct {
	video.Source
	reads int
}

func (c *countingSource) Next() (*images.Grid, error) {
	g, err := c.Source.Next()
	if err == nil {
		c.reads++
	}
	return g, err
}

func blankFrames(n, w, h int) []*images.Grid {
	frames := make([]*images.Grid, n)
	for i := range frames {
		frames[i] = images.MustGrid(w, h)
	}
	return frames
}

func TestBuildMHIBlankClipYieldsZeroMotion(t *testing.T) {
	src := video.NewGridSource(blankFrames(10, 6, 6)...)

	m, err := BuildMHI(context.Background(), src, DefaultParams(), nil)
	require.NoError(t, err)
	for _, v := range m.Pix {
		require.Equal(t, float32(0), v)
	}
}

func TestBuildMHICapturesMotion(t *testing.T) {
	// Pixel (1, 1) toggles every frame; with tau 2 it should sit at full
	// intensity when the clip ends, while static pixels stay at zero.
	frames := blankFrames(6, 4, 4)
	for i := 1; i < 6; i += 2 {
		frames[i].Set(1, 1, 200)
	}
	src := video.NewGridSource(frames...)

	m, err := BuildMHI(context.Background(), src, ClipParams{Theta: 10, Tau: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, float32(1), m.At(1, 1))
	assert.Equal(t, float32(0), m.At(0, 0))
}

func TestBuildMHIStopsAtSnapshotFrame(t *testing.T) {
	src := &countingSource{Source: video.NewGridSource(blankFrames(10, 4, 4)...)}

	var indices []int
	snap := func(frameIndex int, motion *images.Grid) error {
		indices = append(indices, frameIndex)
		require.NotNil(t, motion)
		return nil
	}

	_, err := BuildMHI(context.Background(), src, ClipParams{Theta: 10, Tau: 2, MHIFrame: 3}, snap)
	require.NoError(t, err)

	// Frames 0 through 3 inclusive, nothing beyond the snapshot frame.
	assert.Equal(t, []int{0, 1, 2, 3}, indices)
	assert.Equal(t, 4, src.reads)
}

func TestBuildMHIRunsToEOFWhenSnapshotFrameUnset(t *testing.T) {
	src := &countingSource{Source: video.NewGridSource(blankFrames(5, 4, 4)...)}

	var last int
	_, err := BuildMHI(context.Background(), src, ClipParams{Theta: 10, Tau: 2}, func(i int, _ *images.Grid) error {
		last = i
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, last)
	assert.Equal(t, 5, src.reads)
}

func TestBuildMHIEmptyClip(t *testing.T) {
	_, err := BuildMHI(context.Background(), video.NewGridSource(), DefaultParams(), nil)
	require.Error(t, err)
}

func TestBuildMHICancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := video.NewGridSource(blankFrames(10, 4, 4)...)
	m, err := BuildMHI(ctx, src, DefaultParams(), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, m, "a truncated MHI is still returned on cancellation")
}

func TestBuildMHISnapshotErrorAborts(t *testing.T) {
	src := video.NewGridSource(blankFrames(10, 4, 4)...)
	boom := errors.New("disk full")

	_, err := BuildMHI(context.Background(), src, DefaultParams(), func(i int, _ *images.Grid) error {
		if i == 2 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
}
