// Package images - single-channel float32 grids and conversions used by the
// motion-history pipeline.
//
// A Grid is the one pixel container shared by every stage: decoded video
// frames (intensities in [0, 255]), motion masks ({0, 1}), history buffers
// ([0, tau]) and normalized motion history images ([0, 1]). Keeping a single
// flat float32 representation avoids per-stage conversions and lets the hot
// per-pixel loops run over a contiguous slice.
package images

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Grid is a single-channel 2-D image with float32 samples stored row-major.
type Grid struct {
	// Width is the number of columns.
	Width int
	// Height is the number of rows.
	Height int
	// Pix holds Width*Height samples; Pix[y*Width+x] is the sample at (x, y).
	Pix []float32
}

// NewGrid allocates a zero-filled grid of the given dimensions.
//
// Arguments:
//   - width: Number of columns, must be > 0.
//   - height: Number of rows, must be > 0.
//
// Returns:
//   - *Grid: The allocated grid.
//   - error: If either dimension is not positive.
func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("images: invalid grid dimensions %dx%d", width, height)
	}
	return &Grid{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}, nil
}

// MustGrid is NewGrid for dimensions known to be valid; it panics otherwise.
// Intended for tests and literals.
func MustGrid(width, height int) *Grid {
	g, err := NewGrid(width, height)
	if err != nil {
		panic(err)
	}
	return g
}

// At returns the sample at (x, y). Out-of-range coordinates are a caller bug
// and panic via the slice bounds check.
func (g *Grid) At(x, y int) float32 {
	return g.Pix[y*g.Width+x]
}

// Set stores a sample at (x, y).
func (g *Grid) Set(x, y int, v float32) {
	g.Pix[y*g.Width+x] = v
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	pix := make([]float32, len(g.Pix))
	copy(pix, g.Pix)
	return &Grid{Width: g.Width, Height: g.Height, Pix: pix}
}

// SameShape reports whether two grids have identical spatial dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// FromImage converts any image.Image into a grayscale grid with samples in
// [0, 255], using ITU-R BT.709 luma coefficients for perceptually accurate
// conversion.
//
// Arguments:
//   - img: The source image.
//
// Returns:
//   - *Grid: Grayscale grid with the same dimensions as the source bounds.
func FromImage(img image.Image) *Grid {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	g := &Grid{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}

	// BT.709 luma weights: human eye sensitivity per channel.
	const (
		redWeight   = 0.2126
		greenWeight = 0.7152
		blueWeight  = 0.0722
	)

	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			srcY := bounds.Min.Y + y
			row := y * width
			for x := 0; x < width; x++ {
				r, gc, b, _ := img.At(bounds.Min.X+x, srcY).RGBA()
				// RGBA() yields 16-bit channels; fold to 8-bit range.
				luma := redWeight*float64(r>>8) + greenWeight*float64(gc>>8) + blueWeight*float64(b>>8)
				g.Pix[row+x] = float32(luma)
			}
		}
	})

	return g
}

// ToGray renders a grid with samples in [0, 1] as an 8-bit grayscale image
// scaled to [0, 255]. Values outside [0, 1] are clamped.
//
// Arguments:
//   - g: The source grid, typically an MHI or MEI snapshot.
//
// Returns:
//   - *image.Gray: The rendered image, ready for PNG encoding.
func ToGray(g *Grid) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	Parallel(g.Height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			row := y * g.Width
			for x := 0; x < g.Width; x++ {
				v := Clamp(float64(g.Pix[row+x])*255.0, 0, 255)
				dst.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
			}
		}
	})
	return dst
}
