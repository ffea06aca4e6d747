package control

import (
	"math"

	"github.com/satindergrewal/pulsedrive/internal/pulse"
)

// PositionalFunc maps time and volume to per-channel intensity targets (0-100).
type PositionalFunc func(t, volume float64) (a, b int)

// Uniform drives both channels at the volume.
func Uniform() PositionalFunc {
	return func(_, volume float64) (int, int) {
		v := percent(volume)
		return v, v
	}
}

// Positional returns Balance(position), or Uniform when position is nil.
func Positional(position Curve) PositionalFunc {
	if position == nil {
		return Uniform()
	}
	return Balance(position)
}

// Balance pans between channel A (position 0) and B (position 1) with a
// constant-power law. The position curve is clamped to [0,1].
func Balance(position Curve) PositionalFunc {
	return func(t, volume float64) (int, int) {
		p := math.Max(0, math.Min(1, position.At(t)))
		return percent(volume * math.Cos(p*math.Pi/2)), percent(volume * math.Sin(p*math.Pi/2))
	}
}

func percent(v float64) int {
	return max(0, min(100, int(math.Round(v*100))))
}

// Curves are the time-varying parameters of one channel.
type Curves struct {
	Carrier        Curve // carrier frequency, Hz
	RiseTime       Curve // pulse rise time, carrier cycles
	PulseFrequency Curve // pulse frequency, Hz
	PulseInterval  Curve // interval randomization, fraction
	PulseWidth     Curve // pulse width
}

// Close releases the curves' resources.
func (c Curves) Close() {
	Release(c.Carrier, c.RiseTime, c.PulseFrequency, c.PulseInterval, c.PulseWidth)
}

// Side selects a channel of a PositionalFunc's output.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideB {
		return "B"
	}
	return "A"
}

// ChannelSource samples one channel's curves together with the shared volume
// and positional mapping. It implements pulse.Source.
type ChannelSource struct {
	Side      Side
	Curves    Curves
	Volume    VolumeSource
	Intensity PositionalFunc
}

func (s *ChannelSource) Controls(t float64) pulse.Controls {
	a, b := s.Intensity(t, VolumeAt(s.Volume))
	target := a
	if s.Side == SideB {
		target = b
	}
	return pulse.Controls{
		Intensity:      float64(target),
		CarrierHz:      at(s.Curves.Carrier, t),
		RiseCycles:     at(s.Curves.RiseTime, t),
		PulseFrequency: at(s.Curves.PulseFrequency, t),
		Jitter:         at(s.Curves.PulseInterval, t),
		PulseWidth:     at(s.Curves.PulseWidth, t),
	}
}

func at(c Curve, t float64) float64 {
	if c == nil {
		return 0
	}
	return c.At(t)
}
