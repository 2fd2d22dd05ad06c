package mhi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mhi/images"
)

// scriptedDifferencer replays a fixed sequence of masks, letting the decay
// logic be tested independently of frame content.
type scriptedDifferencer struct {
	masks []*images.Grid
	calls int
}

func (s *scriptedDifferencer) Mask(prev, cur, dst *images.Grid) error {
	var src *images.Grid
	if s.calls < len(s.masks) {
		src = s.masks[s.calls]
	}
	s.calls++
	if src == nil {
		for i := range dst.Pix {
			dst.Pix[i] = 0
		}
		return nil
	}
	copy(dst.Pix, src.Pix)
	return nil
}

func frame(w, h int, v float32) *images.Grid {
	g := images.MustGrid(w, h)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	first := frame(4, 4, 0)

	cases := []struct {
		name   string
		config Config
	}{
		{"zero_tau", Config{Theta: 10, Tau: 0}},
		{"negative_tau", Config{Theta: 10, Tau: -5}},
		{"fractional_tau", Config{Theta: 10, Tau: 0.5}},
		{"negative_theta", Config{Theta: -1, Tau: 30}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(first, tc.config)
			require.Error(t, err)
		})
	}
}

func TestMHIBeforeProcessingIsZero(t *testing.T) {
	b, err := New(frame(3, 3, 100), DefaultConfig())
	require.NoError(t, err)

	m := b.MHI()
	for _, v := range m.Pix {
		require.Equal(t, float32(0), v)
	}
}

func TestProcessRejectsShapeMismatch(t *testing.T) {
	b, err := New(frame(4, 4, 0), DefaultConfig())
	require.NoError(t, err)

	_, err = b.Process(frame(4, 5, 0))
	require.ErrorIs(t, err, ErrShapeMismatch)

	// The failed frame must not have touched the history.
	for _, v := range b.MHI().Pix {
		require.Equal(t, float32(0), v)
	}
}

func TestDecayReachesExactlyZeroAfterTauFrames(t *testing.T) {
	const tau = 5

	motion := images.MustGrid(3, 3)
	motion.Set(1, 1, 1)
	differ := &scriptedDifferencer{masks: []*images.Grid{motion}} // motion once, then silence

	b, err := New(frame(3, 3, 0), Config{Theta: 10, Tau: tau, Differencer: differ})
	require.NoError(t, err)

	blank := frame(3, 3, 0)

	m, err := b.Process(blank)
	require.NoError(t, err)
	require.Equal(t, float32(1), m.At(1, 1), "pixel should saturate on motion")

	// Each silent frame decays by 1/tau.
	for i := 1; i <= tau; i++ {
		m, err = b.Process(blank)
		require.NoError(t, err)
		want := float32(tau-i) / tau
		assert.InDeltaf(t, want, m.At(1, 1), 1e-6, "after %d silent frames", i)
	}

	require.Equal(t, float32(0), m.At(1, 1), "decay must reach exactly zero")

	// Further silence keeps it at zero, never negative.
	m, err = b.Process(blank)
	require.NoError(t, err)
	require.Equal(t, float32(0), m.At(1, 1))
}

func TestMHIRangeAndMEIAgreement(t *testing.T) {
	b, err := New(frame(8, 8, 0), Config{Theta: 10, Tau: 3})
	require.NoError(t, err)

	// Alternate two textures so every frame has real motion somewhere.
	bright := frame(8, 8, 200)
	dark := frame(8, 8, 0)

	var m *images.Grid
	for i := 0; i < 7; i++ {
		f := dark
		if i%2 == 0 {
			f = bright
		}
		m, err = b.Process(f)
		require.NoError(t, err)

		mei := MEI(m)
		for j, v := range m.Pix {
			require.GreaterOrEqual(t, v, float32(0))
			require.LessOrEqual(t, v, float32(1))
			if v > 0 {
				require.Equal(t, float32(1), mei.Pix[j])
			} else {
				require.Equal(t, float32(0), mei.Pix[j])
			}
		}
	}
}

func TestAlwaysMovingPixelStaysSaturated(t *testing.T) {
	const tau = 4

	// The pixel's intensity keeps changing every frame from frame 2 onward,
	// so consecutive-frame differencing flags it each time.
	b, err := New(frame(3, 3, 0), Config{Theta: 10, Tau: tau})
	require.NoError(t, err)

	vals := []float32{0, 0, 200, 100, 200, 100, 200}
	for i, v := range vals {
		f := frame(3, 3, 0)
		f.Set(2, 0, v)
		m, err := b.Process(f)
		require.NoError(t, err)
		if i >= 2 {
			require.Equalf(t, float32(1), m.At(2, 0), "frame %d should stay saturated", i)
		}
	}
}

func TestBackgroundDifferencerHoldsStaticForeground(t *testing.T) {
	const tau = 4

	background := frame(3, 3, 0)
	b, err := New(background, Config{
		Theta:       10,
		Tau:         tau,
		Differencer: BackgroundDifferencer{Reference: background.Clone(), Theta: 10},
	})
	require.NoError(t, err)

	// Pixel turns on at frame 1 and then holds perfectly still; against the
	// background reference it keeps counting as motion.
	on := frame(3, 3, 0)
	on.Set(1, 2, 255)

	m, err := b.Process(background)
	require.NoError(t, err)
	require.Equal(t, float32(0), m.At(1, 2))

	for i := 0; i < 2*tau; i++ {
		m, err = b.Process(on)
		require.NoError(t, err)
		require.Equal(t, float32(1), m.At(1, 2))
	}
}

func TestFirstFrameObservesNoMotion(t *testing.T) {
	// The clip's first frame seeds the builder; re-processing it must not
	// register motion anywhere.
	first := frame(5, 5, 180)
	b, err := New(first, Config{Theta: 10, Tau: 30})
	require.NoError(t, err)

	m, err := b.Process(first)
	require.NoError(t, err)
	for _, v := range m.Pix {
		require.Equal(t, float32(0), v)
	}
}

func TestThresholdDifferencerBoundary(t *testing.T) {
	prev := frame(2, 1, 100)
	cur := frame(2, 1, 100)
	cur.Set(0, 0, 110) // difference exactly theta: not motion
	cur.Set(1, 0, 111) // strictly above theta: motion

	dst := images.MustGrid(2, 1)
	require.NoError(t, ThresholdDifferencer{Theta: 10}.Mask(prev, cur, dst))
	assert.Equal(t, float32(0), dst.At(0, 0))
	assert.Equal(t, float32(1), dst.At(1, 0))
}
