package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/satindergrewal/pulsedrive/internal/control"
	"github.com/satindergrewal/pulsedrive/internal/pulse"
)

// DefaultTickInterval is how often the engine fills queues and checks for a due packet.
const DefaultTickInterval = 20 * time.Millisecond

// Dispatch is one packet sent to a channel and when the device starts
// playing it. Start is back to back with the channel's previous packet
// unless the channel went idle.
type Dispatch struct {
	Start  float64      `json:"start"` // seconds since engine start
	Packet pulse.Packet `json:"packet"`
}

// Frame is the set of packets dispatched on one tick. Each channel keeps its
// own schedule, so either side may be nil. Frames are shared between
// consumers and must not be modified.
type Frame struct {
	Seq    uint64    `json:"seq"`
	Time   float64   `json:"time"` // seconds since engine start
	Volume float64   `json:"volume"`
	A      *Dispatch `json:"a,omitempty"`
	B      *Dispatch `json:"b,omitempty"`
}

// ChannelConfig configures one output channel.
type ChannelConfig struct {
	Synth  pulse.SynthConfig
	Curves control.Curves
	Seed   uint64 // jitter seed
}

// Config holds engine parameters.
type Config struct {
	Tuning       pulse.Tuning
	TickInterval time.Duration
	A, B         ChannelConfig
	Volume       control.VolumeSource
	Intensity    control.PositionalFunc
	TraceLog     bool // log every synthesized pulse
}

type channel struct {
	ctl      *pulse.Channel
	playback pulse.Playback
}

// Engine runs the per-channel pulse queues and emits a Frame whenever the
// device is due for the next packet.
type Engine struct {
	id       string
	tuning   pulse.Tuning
	interval time.Duration
	volume   control.VolumeSource
	a, b     *channel
	frameCh  chan Frame

	// tick-loop state, touched only by the goroutine calling Tick
	seq uint64

	mu     sync.RWMutex
	status Status
}

// New creates an engine. The engine owns both channels' state; drive it from
// one goroutine only (Run, or Tick in tests).
func New(cfg Config) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Intensity == nil {
		cfg.Intensity = control.Uniform()
	}

	e := &Engine{
		id:       uuid.NewString(),
		tuning:   cfg.Tuning,
		interval: cfg.TickInterval,
		volume:   cfg.Volume,
		frameCh:  make(chan Frame, 16),
	}
	e.a = e.newChannel("A", control.SideA, cfg.A, cfg)
	e.b = e.newChannel("B", control.SideB, cfg.B, cfg)
	e.status = Status{Session: e.id}
	return e
}

func (e *Engine) newChannel(name string, side control.Side, cc ChannelConfig, cfg Config) *channel {
	src := &control.ChannelSource{
		Side:      side,
		Curves:    cc.Curves,
		Volume:    cfg.Volume,
		Intensity: cfg.Intensity,
	}
	synth := pulse.NewSynthesizer(cfg.Tuning, cc.Synth, pulse.NewRand(cc.Seed))
	ch := pulse.NewChannel(name, cfg.Tuning, synth, src)
	if cfg.TraceLog {
		ch.SetTraceFunc(func(tr pulse.Trace) {
			log.Printf("Pulse %s t=%.3f freq=%.1f->%.1fHz base=%.2fms jitter=%.3f texture=%s%+.2fms desired=%.2fms residual=%+.2f->%+.2f clamped=%v -> %+v",
				name, tr.Time, tr.RawFrequency, tr.MappedFrequency, tr.BaseDuration, tr.JitterFactor,
				tr.TextureMode, tr.TextureOffset, tr.DesiredMs, tr.ResidualIn, tr.ResidualOut, tr.Clamped, tr.Pulse)
		})
	}
	return &channel{ctl: ch}
}

// ID returns the session id of this engine instance.
func (e *Engine) ID() string {
	return e.id
}

// Tuning returns the engine's generation settings.
func (e *Engine) Tuning() pulse.Tuning {
	return e.tuning
}

// Frames returns the channel of dispatched frames.
func (e *Engine) Frames() <-chan Frame {
	return e.frameCh
}

// Tick syncs playback to now (seconds), tops up both queues and pops a
// packet for every channel whose current packet has played past the margin.
// The second result reports whether anything was dispatched.
func (e *Engine) Tick(now float64) (Frame, bool) {
	margin := e.tuning.PacketMargin()
	f := Frame{
		Time: now,
		A:    e.a.dispatch(now, margin),
		B:    e.b.dispatch(now, margin),
	}
	due := f.A != nil || f.B != nil
	if due {
		e.seq++
		f.Seq = e.seq
		f.Volume = control.VolumeAt(e.volume)
	}

	e.updateStatus(now, f, due)
	return f, due
}

// dispatch sends the next packet once margin of the current one has played.
// The new packet starts when the current one finishes, so a channel never
// receives pulses faster than it plays them.
func (c *channel) dispatch(now, margin float64) *Dispatch {
	c.ctl.Fill(now)
	c.playback.Sync(now)
	if !c.playback.Due(margin) {
		return nil
	}
	d := &Dispatch{
		Start:  c.playback.NextStart(now),
		Packet: c.ctl.NextPacket(),
	}
	c.playback.Load(d.Start, d.Packet)
	c.playback.Sync(now)
	return d
}

// Run drives Tick from a ticker and publishes frames. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.frameCh)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	start := time.Now()
	log.Printf("Pulse engine %s started (horizon %.2fs, tick %v)", e.id, e.tuning.HorizonSeconds(), e.interval)

	for {
		f, ok := e.Tick(time.Since(start).Seconds())
		if ok {
			select {
			case e.frameCh <- f:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			log.Printf("Pulse engine %s stopped after %d packets", e.id, e.seq)
			return
		case <-ticker.C:
		}
	}
}
