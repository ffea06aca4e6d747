package pulse

// DurationLimits is an integer ms interval, Min <= Max.
type DurationLimits struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (l DurationLimits) clamp(ms int) int {
	return clampInt(ms, l.Min, l.Max)
}

// Window is a channel's legal frequency range and the duration limits derived from it.
type Window struct {
	MinHz  float64        `json:"min_hz"`
	MaxHz  float64        `json:"max_hz"`
	Limits DurationLimits `json:"limits"`
}

// NewWindow clamps a configured frequency range to the hardware and derives
// integer duration limits. Inverted ranges fall back to hardware-wide values.
func NewWindow(minHz, maxHz float64) Window {
	lo := clamp(finite(minHz, MinFrequency), MinFrequency, MaxFrequency)
	hi := clamp(finite(maxHz, MaxFrequency), MinFrequency, MaxFrequency)
	if lo >= hi {
		lo, hi = MinFrequency, MaxFrequency
	}

	limits := DurationLimits{
		Min: clampInt(roundInt(1000/hi), MinDuration, MaxDuration),
		Max: clampInt(roundInt(1000/lo), MinDuration, MaxDuration),
	}
	if limits.Min > limits.Max {
		limits = DurationLimits{Min: MinDuration, Max: MaxDuration}
	}

	return Window{MinHz: lo, MaxHz: hi, Limits: limits}
}

// FullWindow spans the whole hardware frequency range.
func FullWindow() Window {
	return NewWindow(MinFrequency, MaxFrequency)
}
