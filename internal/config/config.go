package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/satindergrewal/pulsedrive/internal/control"
	"github.com/satindergrewal/pulsedrive/internal/pulse"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Engine
	TickInterval time.Duration
	Seed         uint64 // jitter seed for channel A, B uses Seed+1
	TraceLog     bool   // log every synthesized pulse

	// Generation tuning, range-clamped by Tuning()
	Horizon         float64 // seconds
	PacketMargin    float64
	TextureMinHz    float64
	TextureMaxHz    float64
	TextureDepth    float64
	JitterLimit     float64
	ResidualBound   float64 // ms
	MaxStepPerPulse float64

	// Per-channel frequency windows
	AMinHz, AMaxHz float64
	BMinHz, BMaxHz float64

	// Raw control input ranges
	FrequencyInput pulse.Range
	WidthInput     pulse.Range

	// Control curves, see control.ParseCurve
	CarrierCurve   string
	RiseCurve      string
	FrequencyCurve string
	IntervalCurve  string
	WidthCurve     string
	PositionCurve  string // empty drives both channels equally

	// Volume
	Gains   control.Gains
	Playing bool

	// Monitor outputs
	Speaker    bool
	RecordPath string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("PULSE_PORT", 8080),

		TickInterval: time.Duration(envInt("PULSE_TICK_MS", 20)) * time.Millisecond,
		Seed:         uint64(envInt("PULSE_SEED", 1)),
		TraceLog:     envBool("PULSE_TRACE", false),

		Horizon:         envFloat("PULSE_HORIZON", pulse.DefaultHorizonSeconds),
		PacketMargin:    envFloat("PULSE_PACKET_MARGIN", pulse.DefaultPacketMargin),
		TextureMinHz:    envFloat("PULSE_TEXTURE_MIN_HZ", pulse.DefaultTextureMinHz),
		TextureMaxHz:    envFloat("PULSE_TEXTURE_MAX_HZ", pulse.DefaultTextureMaxHz),
		TextureDepth:    envFloat("PULSE_TEXTURE_DEPTH", pulse.DefaultTextureDepth),
		JitterLimit:     envFloat("PULSE_JITTER_LIMIT", pulse.DefaultJitterLimit),
		ResidualBound:   envFloat("PULSE_RESIDUAL_BOUND", pulse.DefaultResidualBound),
		MaxStepPerPulse: envFloat("PULSE_MAX_STEP", pulse.DefaultMaxStepPerPulse),

		AMinHz: envFloat("PULSE_A_MIN_HZ", pulse.MinFrequency),
		AMaxHz: envFloat("PULSE_A_MAX_HZ", pulse.MaxFrequency),
		BMinHz: envFloat("PULSE_B_MIN_HZ", pulse.MinFrequency),
		BMaxHz: envFloat("PULSE_B_MAX_HZ", pulse.MaxFrequency),

		FrequencyInput: pulse.Range{
			Lo: envFloat("PULSE_FREQUENCY_INPUT_MIN", pulse.MinFrequency),
			Hi: envFloat("PULSE_FREQUENCY_INPUT_MAX", pulse.MaxFrequency),
		},
		WidthInput: pulse.Range{
			Lo: envFloat("PULSE_WIDTH_INPUT_MIN", 0),
			Hi: envFloat("PULSE_WIDTH_INPUT_MAX", 1),
		},

		CarrierCurve:   envStr("PULSE_CARRIER", "700"),
		RiseCurve:      envStr("PULSE_RISE", "5"),
		FrequencyCurve: envStr("PULSE_FREQUENCY", "50"),
		IntervalCurve:  envStr("PULSE_INTERVAL", "0"),
		WidthCurve:     envStr("PULSE_WIDTH", "0"),
		PositionCurve:  envStr("PULSE_POSITION", ""),

		Gains: control.Gains{
			Master:     envFloat("PULSE_VOLUME_MASTER", 1),
			API:        envFloat("PULSE_VOLUME_API", 1),
			Inactivity: envFloat("PULSE_VOLUME_INACTIVITY", 1),
			External:   envFloat("PULSE_VOLUME_EXTERNAL", 1),
		},
		Playing: envBool("PULSE_PLAYING", false),

		Speaker:    envBool("PULSE_SPEAKER", false),
		RecordPath: envStr("PULSE_RECORD", ""),
	}
}

// Tuning validates the generation settings.
func (c Config) Tuning() pulse.Tuning {
	return pulse.NewTuning(pulse.TuningParams{
		HorizonSeconds:  c.Horizon,
		PacketMargin:    c.PacketMargin,
		TextureMinHz:    c.TextureMinHz,
		TextureMaxHz:    c.TextureMaxHz,
		TextureDepth:    c.TextureDepth,
		JitterLimit:     c.JitterLimit,
		ResidualBound:   c.ResidualBound,
		MaxStepPerPulse: c.MaxStepPerPulse,
	})
}

// SynthConfig returns the input mapping for one channel.
func (c Config) SynthConfig(side control.Side) pulse.SynthConfig {
	w := pulse.NewWindow(c.AMinHz, c.AMaxHz)
	if side == control.SideB {
		w = pulse.NewWindow(c.BMinHz, c.BMaxHz)
	}
	return pulse.SynthConfig{
		Window:         w,
		FrequencyInput: c.FrequencyInput,
		WidthInput:     c.WidthInput,
	}
}

// Curves parses the control curve settings.
func (c Config) Curves() (control.Curves, error) {
	var cv control.Curves
	for _, f := range []struct {
		key string
		src string
		dst *control.Curve
	}{
		{"PULSE_CARRIER", c.CarrierCurve, &cv.Carrier},
		{"PULSE_RISE", c.RiseCurve, &cv.RiseTime},
		{"PULSE_FREQUENCY", c.FrequencyCurve, &cv.PulseFrequency},
		{"PULSE_INTERVAL", c.IntervalCurve, &cv.PulseInterval},
		{"PULSE_WIDTH", c.WidthCurve, &cv.PulseWidth},
	} {
		curve, err := control.ParseCurve(f.src)
		if err != nil {
			return control.Curves{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = curve
	}
	return cv, nil
}

// Position parses the balance curve. It is nil when unset, which drives
// both channels equally (see control.Positional).
func (c Config) Position() (control.Curve, error) {
	if c.PositionCurve == "" {
		return nil, nil
	}
	pos, err := control.ParseCurve(c.PositionCurve)
	if err != nil {
		return nil, fmt.Errorf("PULSE_POSITION: %w", err)
	}
	return pos, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
