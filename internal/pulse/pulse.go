package pulse

import "math"

// Hardware limits of the device. Every pulse that leaves a Channel is
// within [MinDuration, MaxDuration] and every packet holds PacketSize pulses.
const (
	MinDuration  = 5   // ms, shortest pulse the device accepts
	MaxDuration  = 200 // ms
	MinFrequency = 5   // Hz
	MaxFrequency = 200 // Hz
	PacketSize   = 4   // pulses per channel per packet
)

// Pulse is a single hardware instruction for one channel.
type Pulse struct {
	Frequency int `json:"frequency"` // Hz, round(1000/Duration)
	Intensity int `json:"intensity"` // 0-100
	Duration  int `json:"duration"`  // ms
}

// Packet is the fixed group of pulses sent for one channel.
// It is a value type: copies never alias the queue they came from.
type Packet [PacketSize]Pulse

// DurationMs returns the summed duration of the packet's pulses.
func (p Packet) DurationMs() int {
	total := 0
	for _, pl := range p {
		total += pl.Duration
	}
	return total
}

// InertPulse is the "off" instruction used to pad a packet when the queue runs dry.
func InertPulse() Pulse {
	return Pulse{Frequency: 0, Intensity: 0, Duration: MinDuration}
}

// FrequencyFor returns the pulse frequency matching a duration in ms.
func FrequencyFor(durationMs int) int {
	if durationMs <= 0 {
		return 1
	}
	return max(1, roundInt(1000/float64(durationMs)))
}

// Range is a closed input interval used to normalize control values.
type Range struct {
	Lo float64
	Hi float64
}

// Normalize maps v into [0,1] against the range. A degenerate range gives 0.
func (r Range) Normalize(v float64) float64 {
	span := r.Hi - r.Lo
	if span <= 0 || math.IsNaN(v) {
		return 0
	}
	return clamp((v-r.Lo)/span, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundInt rounds half away from zero.
func roundInt(v float64) int {
	return int(math.Round(v))
}
