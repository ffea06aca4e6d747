package pulse

import (
	"math"
	"math/rand/v2"
)

// headroomEpsilon is the smallest headroom (ms) treated as usable for texture.
const headroomEpsilon = 1e-6

// Rand is the jitter source. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// NewRand returns a seeded generator so jitter can be reproduced.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Controls are the control-signal values sampled for one pulse.
type Controls struct {
	Intensity      float64 // requested intensity, 0-100
	CarrierHz      float64 // carrier frequency, drives the smoother's rise time
	RiseCycles     float64 // rise time in carrier cycles
	PulseFrequency float64 // raw pulse-frequency control, normalized against SynthConfig.FrequencyInput
	Jitter         float64 // raw jitter fraction
	PulseWidth     float64 // raw pulse-width control, normalized against SynthConfig.WidthInput
}

// TextureMode names the shape applied to the duration offset.
type TextureMode string

const (
	TextureNone TextureMode = "none"
	TextureSym  TextureMode = "sym"
	TextureUp   TextureMode = "up"
	TextureDown TextureMode = "down"
)

// Trace records every intermediate value of one synthesis step.
type Trace struct {
	Time            float64        `json:"time"`
	RawFrequency    float64        `json:"raw_frequency"`
	NormFrequency   float64        `json:"norm_frequency"`
	MappedFrequency float64        `json:"mapped_frequency"`
	Limits          DurationLimits `json:"limits"`
	BaseDuration    float64        `json:"base_duration"`
	JitterFraction  float64        `json:"jitter_fraction"`
	JitterFactor    float64        `json:"jitter_factor"`
	WidthNorm       float64        `json:"width_norm"`
	TextureMode     TextureMode    `json:"texture_mode"`
	TextureOffset   float64        `json:"texture_offset"`
	TexturePhase    float64        `json:"texture_phase"`
	DesiredMs       float64        `json:"desired_ms"`
	ResidualIn      float64        `json:"residual_in"`
	ResidualOut     float64        `json:"residual_out"`
	RoundedMs       int            `json:"rounded_ms"`
	Clamped         bool           `json:"clamped"`
	Pulse           Pulse          `json:"pulse"`
}

// SynthConfig is the per-channel input mapping for a Synthesizer.
type SynthConfig struct {
	Window         Window
	FrequencyInput Range // raw pulse-frequency range mapped onto Window
	WidthInput     Range // raw pulse-width range mapped onto [0,1]
}

// Synthesizer turns sampled control values into hardware-legal pulses for one channel.
// It is not safe for concurrent use.
type Synthesizer struct {
	tuning Tuning
	cfg    SynthConfig
	rng    Rand

	phase    float64 // texture phase, radians in [0, 2π)
	residual float64 // carried rounding error, ms
	lastTime float64
	started  bool
}

// NewSynthesizer creates a synthesizer. A nil rng disables jitter.
func NewSynthesizer(tuning Tuning, cfg SynthConfig, rng Rand) *Synthesizer {
	return &Synthesizer{tuning: tuning, cfg: cfg, rng: rng}
}

// Residual returns the rounding error carried into the next call.
func (s *Synthesizer) Residual() float64 { return s.residual }

// Phase returns the current texture phase.
func (s *Synthesizer) Phase() float64 { return s.phase }

// Window returns the channel's frequency window.
func (s *Synthesizer) Window() Window { return s.cfg.Window }

// Synthesize produces one pulse for time t (seconds).
func (s *Synthesizer) Synthesize(t float64, c Controls) (Pulse, Trace) {
	w := s.cfg.Window
	limits := w.Limits
	tr := Trace{Time: t, Limits: limits, RawFrequency: c.PulseFrequency}

	// base duration from the frequency control
	tr.NormFrequency = s.cfg.FrequencyInput.Normalize(c.PulseFrequency)
	mapped := w.MinHz + tr.NormFrequency*(w.MaxHz-w.MinHz)
	if mapped <= 0 {
		mapped = 1000 / float64(limits.Max)
	}
	tr.MappedFrequency = mapped
	base := 1000 / mapped
	tr.BaseDuration = base

	// jitter is independent per pulse
	tr.JitterFraction = clamp(finite(c.Jitter, 0), 0, s.tuning.JitterLimit())
	tr.JitterFactor = 1
	if tr.JitterFraction > 0 && s.rng != nil {
		tr.JitterFactor = 1 + (2*s.rng.Float64()-1)*tr.JitterFraction
	}

	// texture is phase-coherent across pulses
	tr.WidthNorm = s.cfg.WidthInput.Normalize(c.PulseWidth)
	s.advancePhase(t, tr.WidthNorm)
	tr.TexturePhase = s.phase
	if tr.WidthNorm > 0 && s.tuning.TextureDepth() > 0 {
		scale := s.tuning.TextureDepth() * tr.WidthNorm
		up := math.Max(0, float64(limits.Max)-base) * scale
		down := math.Max(0, base-float64(limits.Min)) * scale
		tr.TextureMode, tr.TextureOffset = TextureOffset(up, down, s.phase)
	} else {
		tr.TextureMode = TextureNone
	}

	// residual-corrected rounding
	tr.DesiredMs = base*tr.JitterFactor + tr.TextureOffset
	tr.ResidualIn = s.residual
	total := tr.DesiredMs + s.residual
	rounded := roundInt(total)
	bound := s.tuning.ResidualBound()
	s.residual = clamp(total-float64(rounded), -bound, bound)
	// never below 1ms; the hardware clamp below makes this floor redundant
	rounded = max(1, rounded)
	tr.RoundedMs = rounded

	clamped := limits.clamp(rounded)
	if clamped != rounded {
		// a clamped pulse breaks the error model, drop the carry
		s.residual = 0
		tr.Clamped = true
	}
	tr.ResidualOut = s.residual

	final := max(MinDuration, clamped)
	p := Pulse{
		Frequency: FrequencyFor(final),
		Intensity: clampInt(roundInt(finite(c.Intensity, 0)), 0, 100),
		Duration:  final,
	}
	tr.Pulse = p
	return p, tr
}

// advancePhase moves the texture phase forward by the time since the last call.
func (s *Synthesizer) advancePhase(t, widthNorm float64) {
	if s.started && t > s.lastTime {
		speed := s.tuning.TextureMinHz() + (s.tuning.TextureMaxHz()-s.tuning.TextureMinHz())*widthNorm
		s.phase = math.Mod(s.phase+2*math.Pi*speed*(t-s.lastTime), 2*math.Pi)
	}
	s.lastTime = t
	s.started = true
}

// TextureOffset returns the duration offset (ms) for the given headrooms and phase.
// With room on both sides it is a symmetric sine; with room on one side only it is
// a rectified sine pushed toward that side, so it never leaves the legal window.
// The one-sided shapes have a mean of ±2/π·headroom, which shifts the average
// pulse rate while the mode is up or down. Keeping the offset on one side takes
// precedence over keeping the mean at zero.
func TextureOffset(up, down, phase float64) (TextureMode, float64) {
	hasUp := up > headroomEpsilon
	hasDown := down > headroomEpsilon
	switch {
	case hasUp && hasDown:
		return TextureSym, math.Min(up, down) * math.Sin(phase)
	case hasUp:
		return TextureUp, up * math.Abs(math.Sin(phase))
	case hasDown:
		return TextureDown, -down * math.Abs(math.Sin(phase))
	default:
		return TextureNone, 0
	}
}
