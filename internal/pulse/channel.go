package pulse

// Source samples a channel's control signals at time t (seconds).
// Controls.Intensity is the target before smoothing.
type Source interface {
	Controls(t float64) Controls
}

// SourceFunc adapts a function to Source.
type SourceFunc func(t float64) Controls

func (f SourceFunc) Controls(t float64) Controls { return f(t) }

// TraceFunc receives a trace for every synthesized pulse.
type TraceFunc func(Trace)

// Channel keeps one channel's pulse queue filled to the tuning horizon and
// serves fixed-size packets from it. It is owned by a single goroutine;
// observers get copies via Snapshot.
type Channel struct {
	Name string

	tuning   Tuning
	source   Source
	synth    *Synthesizer
	smoother *Smoother
	onTrace  TraceFunc

	queue     []Pulse
	queuedMs  int
	lastTrace Trace
}

// NewChannel wires a queue controller around a synthesizer and a control source.
func NewChannel(name string, tuning Tuning, synth *Synthesizer, source Source) *Channel {
	return &Channel{
		Name:     name,
		tuning:   tuning,
		source:   source,
		synth:    synth,
		smoother: NewSmoother(tuning),
	}
}

// SetTraceFunc registers a hook called for each synthesized pulse. Pass nil to disable.
func (c *Channel) SetTraceFunc(fn TraceFunc) {
	c.onTrace = fn
}

// Fill synthesizes pulses until the queue covers the horizon past now and
// holds at least one packet. The packet floor wins over the horizon.
func (c *Channel) Fill(now float64) int {
	horizonEnd := now + c.tuning.HorizonSeconds()
	coverageEnd := now + float64(c.queuedMs)/1000

	added := 0
	for coverageEnd < horizonEnd || len(c.queue) < PacketSize {
		p := c.generate(coverageEnd)
		c.push(p)
		coverageEnd += float64(p.Duration) / 1000
		added++
	}
	return added
}

func (c *Channel) generate(t float64) Pulse {
	ctl := c.source.Controls(t)
	ctl.Intensity = c.smoother.Apply(ctl.Intensity, t, ctl.CarrierHz, ctl.RiseCycles)

	p, tr := c.synth.Synthesize(t, ctl)
	c.lastTrace = tr
	if c.onTrace != nil {
		c.onTrace(tr)
	}
	return p
}

func (c *Channel) push(p Pulse) {
	c.queue = append(c.queue, p)
	c.queuedMs += p.Duration
}

// NextPacket pops one packet FIFO. When the queue runs dry the remaining
// slots are padded with inert pulses so the packet is always complete.
func (c *Channel) NextPacket() Packet {
	var pkt Packet
	for i := range pkt {
		if len(c.queue) == 0 {
			pkt[i] = InertPulse()
			continue
		}
		p := c.queue[0]
		c.queue = c.queue[1:]
		c.queuedMs = max(0, c.queuedMs-p.Duration)
		pkt[i] = p
	}
	return pkt
}

// HasPulses reports whether at least n pulses are queued.
func (c *Channel) HasPulses(n int) bool {
	return len(c.queue) >= n
}

// QueueDurationMs returns the cached total duration of queued pulses.
func (c *Channel) QueueDurationMs() int {
	return c.queuedMs
}

// Len returns the number of queued pulses.
func (c *Channel) Len() int {
	return len(c.queue)
}

// Snapshot returns a copy of the queued pulses.
func (c *Channel) Snapshot() []Pulse {
	out := make([]Pulse, len(c.queue))
	copy(out, c.queue)
	return out
}

// LastTrace returns the trace of the most recently synthesized pulse.
func (c *Channel) LastTrace() Trace {
	return c.lastTrace
}

// Synthesizer exposes the channel's synthesizer for observers.
func (c *Channel) Synthesizer() *Synthesizer {
	return c.synth
}
