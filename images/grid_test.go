package images

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridRejectsBadDimensions(t *testing.T) {
	cases := []struct {
		name          string
		width, height int
	}{
		{"zero_width", 0, 4},
		{"zero_height", 4, 0},
		{"negative", -1, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGrid(tc.width, tc.height)
			require.Error(t, err)
		})
	}
}

func TestGridAtSetClone(t *testing.T) {
	g := MustGrid(4, 3)
	g.Set(2, 1, 7.5)
	require.Equal(t, float32(7.5), g.At(2, 1))

	c := g.Clone()
	require.True(t, g.SameShape(c))
	require.Equal(t, float32(7.5), c.At(2, 1))

	// A clone must not alias the original's pixels.
	c.Set(2, 1, 0)
	assert.Equal(t, float32(7.5), g.At(2, 1))
}

func TestFromImageUsesBT709Luma(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 100, G: 200, B: 50, A: 255})

	g := FromImage(img)
	require.Equal(t, 2, g.Width)
	require.Equal(t, 1, g.Height)

	// White maps to full intensity.
	assert.InDelta(t, 255.0, float64(g.At(0, 0)), 0.5)

	// 0.2126*100 + 0.7152*200 + 0.0722*50 = 167.91
	assert.InDelta(t, 167.91, float64(g.At(1, 0)), 0.5)
}

func TestFromImageHonorsNonZeroBounds(t *testing.T) {
	img := image.NewGray(image.Rect(3, 5, 6, 8))
	img.SetGray(3, 5, color.Gray{Y: 200})

	g := FromImage(img)
	require.Equal(t, 3, g.Width)
	require.Equal(t, 3, g.Height)
	assert.InDelta(t, 200.0, float64(g.At(0, 0)), 0.5)
}

func TestToGrayScalesAndClamps(t *testing.T) {
	g := MustGrid(3, 1)
	g.Set(0, 0, 0)
	g.Set(1, 0, 0.5)
	g.Set(2, 0, 1.5) // out of range, must clamp to 255

	gray := ToGray(g)
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(128), gray.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(2, 0).Y)
}

func TestParallelCoversEveryIndexOnce(t *testing.T) {
	const n = 1000
	var mu sync.Mutex
	seen := make([]int, n)

	Parallel(n, func(start, end int) {
		mu.Lock()
		defer mu.Unlock()
		for i := start; i < end; i++ {
			seen[i]++
		}
	})

	for i, count := range seen {
		require.Equalf(t, 1, count, "index %d visited %d times", i, count)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-10, 0, 255))
	assert.Equal(t, 255.0, Clamp(300, 0, 255))
	assert.Equal(t, 42.0, Clamp(42, 0, 255))
}
