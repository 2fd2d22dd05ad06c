package video

import (
	"io"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-mhi/images"
)

// ClipOptions configures video-file decoding.
type ClipOptions struct {
	// TargetWidth downscales frames to this width (height follows the aspect
	// ratio) before grayscale conversion. Zero keeps the native resolution.
	// Frames are never upscaled.
	TargetWidth int
}

// Clip is a Source backed by a video file decoded through OpenCV.
type Clip struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	opts    ClipOptions
	closed  bool
}

// OpenClip opens a video file for sequential frame reading.
//
// Arguments:
//   - path: Path to the video file (any container/codec OpenCV can read).
//   - opts: Decoding options.
//
// Returns:
//   - *Clip: The opened clip.
//   - error: If the file cannot be opened as a video.
//
// @example
// clip, err := video.OpenClip("A1P1T1.mp4", video.ClipOptions{})
//
//	if err != nil {
//	    return err
//	}
//
// defer clip.Close()
func OpenClip(path string, opts ClipOptions) (*Clip, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, errors.Wrapf(err, "video: opening clip %s", path)
	}
	return &Clip{
		capture: capture,
		mat:     gocv.NewMat(),
		opts:    opts,
	}, nil
}

// FrameCount reports the container's frame count, when the backend knows it.
func (c *Clip) FrameCount() int {
	return int(c.capture.Get(gocv.VideoCaptureFrameCount))
}

// Next implements Source by decoding, optionally downscaling, and
// grayscale-converting the next frame.
func (c *Clip) Next() (*images.Grid, error) {
	if c.closed {
		return nil, errors.New("video: clip already closed")
	}
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, io.EOF
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "video: converting frame")
	}

	if w := c.opts.TargetWidth; w > 0 && w < img.Bounds().Dx() {
		img = resize.Resize(uint(w), 0, img, resize.Bilinear)
	}

	return images.FromImage(img), nil
}

// Close releases the capture handle and scratch buffers.
func (c *Clip) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	if err := c.capture.Close(); err != nil {
		return errors.Wrap(err, "video: closing capture")
	}
	return nil
}
