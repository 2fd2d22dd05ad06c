package video

import (
	"image/png"
	"os"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mhi/images"
)

// SavePNG writes a [0, 1] grid (an MHI or MEI snapshot) to disk as an 8-bit
// grayscale PNG scaled to [0, 255].
//
// Arguments:
//   - path: Destination file path.
//   - g: The grid to persist.
//
// Returns:
//   - error: If the file cannot be created or encoded.
func SavePNG(path string, g *images.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "video: creating %s", path)
	}
	defer f.Close()

	if err := png.Encode(f, images.ToGray(g)); err != nil {
		return errors.Wrapf(err, "video: encoding %s", path)
	}
	return nil
}
