package control

import (
	"math"
	"sync"
)

// Gains are the independent volume factors, each in [0,1].
// An Inactivity gain of exactly 0 means the inactivity fade is disabled.
type Gains struct {
	Master     float64 `json:"master"`
	API        float64 `json:"api"`
	Inactivity float64 `json:"inactivity"`
	External   float64 `json:"external"`
}

// VolumeSource reports whether media is playing and the current gains.
type VolumeSource interface {
	IsPlaying() bool
	Gains() Gains
}

// VolumeAt returns the product of all gains, or 0 when nothing is playing.
func VolumeAt(src VolumeSource) float64 {
	if src == nil || !src.IsPlaying() {
		return 0
	}
	g := src.Gains()
	inactivity := g.Inactivity
	if inactivity == 0 {
		inactivity = 1
	}
	return unit(g.Master) * unit(g.API) * unit(inactivity) * unit(g.External)
}

// Mixer is a VolumeSource that can be updated from other goroutines.
type Mixer struct {
	mu      sync.RWMutex
	playing bool
	gains   Gains
}

// NewMixer creates a mixer with the given starting state.
func NewMixer(gains Gains, playing bool) *Mixer {
	return &Mixer{gains: gains, playing: playing}
}

func (m *Mixer) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playing
}

func (m *Mixer) Gains() Gains {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gains
}

// SetPlaying starts or stops output.
func (m *Mixer) SetPlaying(playing bool) {
	m.mu.Lock()
	m.playing = playing
	m.mu.Unlock()
}

// SetGains replaces all gains, clamping each to [0,1].
func (m *Mixer) SetGains(g Gains) {
	g.Master = unit(g.Master)
	g.API = unit(g.API)
	g.Inactivity = unit(g.Inactivity)
	g.External = unit(g.External)
	m.mu.Lock()
	m.gains = g
	m.mu.Unlock()
}

// Volume is VolumeAt(m).
func (m *Mixer) Volume() float64 {
	return VolumeAt(m)
}

func unit(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
