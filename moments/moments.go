// Package moments - image moment computation for shape description.
//
// Given any single-channel non-negative grid (a motion history image or its
// binary motion energy variant), the engine computes raw geometric moments,
// translation-invariant central moments, and additionally scale-invariant
// normalized moments for a fixed set of (p, q) orders. Two grids always
// produce comparable descriptors because the order set is a package-level
// constant.
package moments

import (
	"math"

	"github.com/nvr-ai/go-mhi/images"
)

// Pair is a moment order: the exponents applied to the x and y coordinates.
type Pair struct {
	P, Q int
}

// DescriptorPairs is the fixed, ordered set of moment orders that make up a
// shape descriptor. The selection covers every second- and third-order
// moment plus the (2,2) cross term, giving eight linearly independent
// measurements per image. Changing this set invalidates every stored
// descriptor, so it is deliberately not configurable.
var DescriptorPairs = [8]Pair{
	{2, 0}, {0, 2}, {1, 1}, {1, 2}, {2, 1}, {2, 2}, {3, 0}, {0, 3},
}

// Moments holds the moment decomposition of one grid.
type Moments struct {
	// Mass is the raw moment M00: the total intensity of the grid.
	Mass float64
	// CentroidX, CentroidY locate the intensity centroid (M10/M00, M01/M00).
	// Both are zero for a grid with no mass.
	CentroidX float64
	CentroidY float64

	mu  [8]float64
	eta [8]float64
}

// Raw computes the raw geometric moment M_pq = sum over x,y of x^p * y^q * I(x,y).
//
// Arguments:
//   - g: The source grid.
//   - p: Exponent applied to the x coordinate.
//   - q: Exponent applied to the y coordinate.
//
// Returns:
//   - float64: The raw moment value.
func Raw(g *images.Grid, p, q int) float64 {
	var sum float64
	for y := 0; y < g.Height; y++ {
		yq := ipow(float64(y), q)
		row := y * g.Width
		for x := 0; x < g.Width; x++ {
			v := float64(g.Pix[row+x])
			if v == 0 {
				continue
			}
			sum += ipow(float64(x), p) * yq * v
		}
	}
	return sum
}

// Compute derives the full moment decomposition of a grid: mass, centroid,
// and the central and scale-invariant moments for every descriptor order.
//
// A grid with zero total mass has no defined centroid; by contract the
// engine returns all-zero moments for it rather than dividing by zero, so a
// blank clip yields a well-defined zero descriptor.
//
// Arguments:
//   - g: The source grid, assumed non-negative.
//
// Returns:
//   - Moments: The computed decomposition.
func Compute(g *images.Grid) Moments {
	var m Moments

	// Single pass for mass and first-order moments.
	var m00, m10, m01 float64
	for y := 0; y < g.Height; y++ {
		row := y * g.Width
		fy := float64(y)
		for x := 0; x < g.Width; x++ {
			v := float64(g.Pix[row+x])
			if v == 0 {
				continue
			}
			m00 += v
			m10 += float64(x) * v
			m01 += fy * v
		}
	}

	if m00 == 0 {
		// Degenerate image: no signal, zero descriptor by definition.
		return m
	}

	m.Mass = m00
	m.CentroidX = m10 / m00
	m.CentroidY = m01 / m00

	// Central moments. Offsets from the centroid factor into per-axis powers,
	// so precompute dx^p per column and dy^q per row up to order 3.
	xpow := make([][4]float64, g.Width)
	for x := 0; x < g.Width; x++ {
		dx := float64(x) - m.CentroidX
		xpow[x] = [4]float64{1, dx, dx * dx, dx * dx * dx}
	}
	ypow := make([][4]float64, g.Height)
	for y := 0; y < g.Height; y++ {
		dy := float64(y) - m.CentroidY
		ypow[y] = [4]float64{1, dy, dy * dy, dy * dy * dy}
	}

	for y := 0; y < g.Height; y++ {
		row := y * g.Width
		yp := ypow[y]
		for x := 0; x < g.Width; x++ {
			v := float64(g.Pix[row+x])
			if v == 0 {
				continue
			}
			xp := xpow[x]
			for i, pair := range DescriptorPairs {
				m.mu[i] += xp[pair.P] * yp[pair.Q] * v
			}
		}
	}

	// Scale-invariant moments: eta_pq = mu_pq / mu_00^((p+q)/2 + 1), where
	// mu_00 == M00.
	for i, pair := range DescriptorPairs {
		m.eta[i] = m.mu[i] / math.Pow(m00, float64(pair.P+pair.Q)/2+1)
	}

	return m
}

// Central returns the central moments mu_pq in DescriptorPairs order.
// Translation-invariant: shifting the image content leaves them unchanged.
func (m Moments) Central() [8]float64 {
	return m.mu
}

// Scaled returns the scale-invariant moments eta_pq in DescriptorPairs order.
// Invariant to both translation and uniform intensity scaling.
func (m Moments) Scaled() [8]float64 {
	return m.eta
}

// Descriptor concatenates the moment vectors of an MHI/MEI pair into the
// 16-dimensional clip descriptor.
//
// Arguments:
//   - mhi: Moments of the motion history image.
//   - mei: Moments of the motion energy image.
//   - scaled: Select the scale-invariant variant instead of plain central.
//
// Returns:
//   - []float64: 8 MHI values followed by 8 MEI values.
func Descriptor(mhi, mei Moments, scaled bool) []float64 {
	var a, b [8]float64
	if scaled {
		a, b = mhi.Scaled(), mei.Scaled()
	} else {
		a, b = mhi.Central(), mei.Central()
	}
	out := make([]float64, 0, 16)
	out = append(out, a[:]...)
	out = append(out, b[:]...)
	return out
}

// ipow raises v to a small non-negative integer power.
func ipow(v float64, n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= v
	}
	return out
}
