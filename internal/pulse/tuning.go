package pulse

import "math"

// Stock generation settings used when a value is missing or invalid.
const (
	DefaultHorizonSeconds  = 0.75
	DefaultPacketMargin    = 0.5
	DefaultTextureMinHz    = 0.2
	DefaultTextureMaxHz    = 2.0
	DefaultTextureDepth    = 0.5
	DefaultJitterLimit     = 0.3
	DefaultResidualBound   = 2.0
	DefaultMaxStepPerPulse = 10.0
)

// MaxHorizonSeconds caps the fill horizon so one Fill stays small.
const MaxHorizonSeconds = 10.0

// TuningParams are the raw generation settings before validation.
type TuningParams struct {
	HorizonSeconds  float64 // how far ahead the queue stays filled
	PacketMargin    float64 // fraction of a packet that plays before the next is due
	TextureMinHz    float64 // texture speed at zero pulse width
	TextureMaxHz    float64 // texture speed at full pulse width
	TextureDepth    float64 // fraction of the duration headroom texture may use
	JitterLimit     float64 // upper bound on the jitter fraction
	ResidualBound   float64 // max carried rounding error, ms
	MaxStepPerPulse float64 // smoother cap in percentage points, 0 = uncapped
}

// DefaultTuningParams returns the stock generation settings.
func DefaultTuningParams() TuningParams {
	return TuningParams{
		HorizonSeconds:  DefaultHorizonSeconds,
		PacketMargin:    DefaultPacketMargin,
		TextureMinHz:    DefaultTextureMinHz,
		TextureMaxHz:    DefaultTextureMaxHz,
		TextureDepth:    DefaultTextureDepth,
		JitterLimit:     DefaultJitterLimit,
		ResidualBound:   DefaultResidualBound,
		MaxStepPerPulse: DefaultMaxStepPerPulse,
	}
}

// Tuning is the validated, read-only generation configuration shared by all channels.
type Tuning struct {
	horizonSeconds  float64
	packetMargin    float64
	textureMinHz    float64
	textureMaxHz    float64
	textureDepth    float64
	jitterLimit     float64
	residualBound   float64
	maxStepPerPulse float64
}

// NewTuning range-clamps the params into a Tuning. It never fails:
// out-of-range values degrade to the nearest legal value or the default.
func NewTuning(p TuningParams) Tuning {
	horizon := p.HorizonSeconds
	if horizon <= 0 || math.IsNaN(horizon) || math.IsInf(horizon, 0) {
		horizon = DefaultHorizonSeconds
	}
	horizon = min(horizon, MaxHorizonSeconds)

	texMin := math.Max(0, finite(p.TextureMinHz, DefaultTextureMinHz))
	texMax := finite(p.TextureMaxHz, DefaultTextureMaxHz)
	if texMax <= texMin {
		texMax = texMin + 1
	}

	return Tuning{
		horizonSeconds:  horizon,
		packetMargin:    clamp(finite(p.PacketMargin, DefaultPacketMargin), 0.1, 1.0),
		textureMinHz:    texMin,
		textureMaxHz:    texMax,
		textureDepth:    clamp(finite(p.TextureDepth, 0), 0, 1),
		jitterLimit:     clamp(finite(p.JitterLimit, 0), 0, 1),
		residualBound:   math.Max(0, finite(p.ResidualBound, DefaultResidualBound)),
		maxStepPerPulse: math.Max(0, finite(p.MaxStepPerPulse, 0)),
	}
}

// DefaultTuning is NewTuning(DefaultTuningParams()).
func DefaultTuning() Tuning {
	return NewTuning(DefaultTuningParams())
}

// HorizonSeconds is how far past now Fill keeps each queue covered.
func (t Tuning) HorizonSeconds() float64 { return t.horizonSeconds }

// PacketMargin is the fraction of a packet that plays before the next is sent.
func (t Tuning) PacketMargin() float64 { return t.packetMargin }

// TextureMinHz is the texture phase speed at zero pulse width.
func (t Tuning) TextureMinHz() float64 { return t.textureMinHz }

// TextureMaxHz is the texture phase speed at full pulse width.
func (t Tuning) TextureMaxHz() float64 { return t.textureMaxHz }

// TextureDepth is the share of the duration headroom texture may use.
func (t Tuning) TextureDepth() float64 { return t.textureDepth }

// JitterLimit bounds the jitter fraction.
func (t Tuning) JitterLimit() float64 { return t.jitterLimit }

// ResidualBound bounds the carried rounding error, in ms.
func (t Tuning) ResidualBound() float64 { return t.residualBound }

// MaxStepPerPulse caps the smoother step in percentage points; 0 is uncapped.
func (t Tuning) MaxStepPerPulse() float64 { return t.maxStepPerPulse }

// Params returns the clamped values, e.g. for status reporting.
func (t Tuning) Params() TuningParams {
	return TuningParams{
		HorizonSeconds:  t.horizonSeconds,
		PacketMargin:    t.packetMargin,
		TextureMinHz:    t.textureMinHz,
		TextureMaxHz:    t.textureMaxHz,
		TextureDepth:    t.textureDepth,
		JitterLimit:     t.jitterLimit,
		ResidualBound:   t.residualBound,
		MaxStepPerPulse: t.maxStepPerPulse,
	}
}

func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
