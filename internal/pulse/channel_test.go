package pulse

import "testing"

// constSource asks for the same controls every time.
func constSource(hz, intensity float64) Source {
	return SourceFunc(func(float64) Controls {
		return Controls{Intensity: intensity, PulseFrequency: freqControl(hz)}
	})
}

func newTestChannel(tuning Tuning, hz float64) *Channel {
	synth := NewSynthesizer(tuning, testSynthConfig(MinFrequency, MaxFrequency), nil)
	return NewChannel("A", tuning, synth, constSource(hz, 50))
}

func queueSum(c *Channel) int {
	total := 0
	for _, p := range c.Snapshot() {
		total += p.Duration
	}
	return total
}

func TestNextPacketEmptyQueue(t *testing.T) {
	c := newTestChannel(DefaultTuning(), 50)
	pkt := c.NextPacket()
	for i, p := range pkt {
		if p != InertPulse() {
			t.Errorf("slot %d = %+v, want inert pulse", i, p)
		}
	}
	if c.QueueDurationMs() != 0 {
		t.Errorf("QueueDurationMs = %d, want 0", c.QueueDurationMs())
	}
}

func TestNextPacketPartialUnderflow(t *testing.T) {
	c := newTestChannel(DefaultTuning(), 50)
	c.push(Pulse{Frequency: 50, Intensity: 30, Duration: 20})
	c.push(Pulse{Frequency: 40, Intensity: 30, Duration: 25})

	pkt := c.NextPacket()
	if pkt[0].Duration != 20 || pkt[1].Duration != 25 {
		t.Errorf("queued pulses not served FIFO: %+v", pkt)
	}
	if pkt[2] != InertPulse() || pkt[3] != InertPulse() {
		t.Errorf("underflow slots = %+v, %+v; want inert", pkt[2], pkt[3])
	}
	if c.Len() != 0 || c.QueueDurationMs() != 0 {
		t.Errorf("queue after drain: len=%d ms=%d, want empty", c.Len(), c.QueueDurationMs())
	}
}

func TestFillCoversHorizon(t *testing.T) {
	tuning := DefaultTuning() // 0.75s horizon
	c := newTestChannel(tuning, 50)
	for i := 0; i < 4; i++ {
		c.push(Pulse{Frequency: 50, Intensity: 50, Duration: 20})
	}

	c.Fill(0)
	if c.QueueDurationMs() < 750 {
		t.Errorf("QueueDurationMs after Fill = %d, want >= 750", c.QueueDurationMs())
	}
	if !c.HasPulses(PacketSize) {
		t.Errorf("HasPulses(%d) = false after Fill", PacketSize)
	}
	if got := queueSum(c); got != c.QueueDurationMs() {
		t.Errorf("cached total %d != summed %d", c.QueueDurationMs(), got)
	}

	before := c.QueueDurationMs()
	n := c.Len()
	pkt := c.NextPacket()
	if c.Len() != n-PacketSize {
		t.Errorf("Len after NextPacket = %d, want %d", c.Len(), n-PacketSize)
	}
	if got := before - c.QueueDurationMs(); got != pkt.DurationMs() {
		t.Errorf("queued duration dropped by %d, want packet duration %d", got, pkt.DurationMs())
	}
	for i, p := range pkt {
		if p.Duration != 20 {
			t.Errorf("slot %d duration = %d, want the pre-queued 20ms", i, p.Duration)
		}
	}
}

func TestFillStopsAtHorizon(t *testing.T) {
	c := newTestChannel(DefaultTuning(), 50)
	c.Fill(10)
	added := c.Fill(10)
	if added != 0 {
		t.Errorf("second Fill at the same time added %d pulses, want 0", added)
	}
	// one pulse past the horizon at most
	if c.QueueDurationMs() >= 750+20 {
		t.Errorf("QueueDurationMs = %d, overshoots horizon by a whole pulse", c.QueueDurationMs())
	}
}

func TestFillPacketFloorBeatsHorizon(t *testing.T) {
	params := DefaultTuningParams()
	params.HorizonSeconds = 0.01
	tuning := NewTuning(params)
	c := newTestChannel(tuning, MinFrequency) // 200ms pulses

	c.Fill(0)
	if c.Len() != PacketSize {
		t.Errorf("Len = %d, want %d (packet floor)", c.Len(), PacketSize)
	}
	if c.QueueDurationMs() != PacketSize*MaxDuration {
		t.Errorf("QueueDurationMs = %d, want %d", c.QueueDurationMs(), PacketSize*MaxDuration)
	}
}

func TestFillBoundedByMinimumDuration(t *testing.T) {
	c := newTestChannel(DefaultTuning(), MaxFrequency) // 5ms pulses
	c.Fill(0)
	limit := int(DefaultHorizonSeconds*1000)/MinDuration + 1
	if c.Len() > limit {
		t.Errorf("Len = %d, want <= horizon/min duration (%d)", c.Len(), limit)
	}
}

func TestCachedTotalNoDrift(t *testing.T) {
	params := DefaultTuningParams()
	params.JitterLimit = 0.5
	params.TextureDepth = 1
	tuning := NewTuning(params)
	rng := NewRand(11)
	src := SourceFunc(func(t float64) Controls {
		return Controls{Intensity: 60, PulseFrequency: 20 + rng.Float64()*150, Jitter: 0.4, PulseWidth: rng.Float64()}
	})
	c := NewChannel("B", tuning, NewSynthesizer(tuning, testSynthConfig(MinFrequency, MaxFrequency), NewRand(5)), src)

	now := 0.0
	for tick := 0; tick < 500; tick++ {
		c.Fill(now)
		if got := queueSum(c); got != c.QueueDurationMs() {
			t.Fatalf("tick %d after Fill: cached %d != summed %d", tick, c.QueueDurationMs(), got)
		}
		if tick%3 == 0 {
			c.NextPacket()
			if got := queueSum(c); got != c.QueueDurationMs() {
				t.Fatalf("tick %d after NextPacket: cached %d != summed %d", tick, c.QueueDurationMs(), got)
			}
		}
		now += 0.02
	}
}

func TestChannelSmoothsIntensity(t *testing.T) {
	params := DefaultTuningParams()
	params.MaxStepPerPulse = 5
	tuning := NewTuning(params)

	target := 0.0
	src := SourceFunc(func(float64) Controls {
		return Controls{Intensity: target, CarrierHz: 100, RiseCycles: 1, PulseFrequency: 50}
	})
	c := NewChannel("A", tuning, NewSynthesizer(tuning, testSynthConfig(MinFrequency, MaxFrequency), nil), src)

	var traces []Trace
	c.SetTraceFunc(func(tr Trace) { traces = append(traces, tr) })

	c.Fill(0)
	for c.Len() > 0 {
		c.NextPacket()
	}
	target = 100
	c.Fill(1)

	prev := -1
	for _, tr := range traces {
		if prev >= 0 && tr.Pulse.Intensity-prev > 5 {
			t.Fatalf("intensity jumped %d -> %d, cap is 5", prev, tr.Pulse.Intensity)
		}
		prev = tr.Pulse.Intensity
	}
	if len(traces) == 0 {
		t.Fatal("trace hook never called")
	}
	if c.LastTrace() != traces[len(traces)-1] {
		t.Error("LastTrace does not match the final hooked trace")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	c := newTestChannel(DefaultTuning(), 50)
	c.Fill(0)
	snap := c.Snapshot()
	snap[0].Intensity = 99
	if c.Snapshot()[0].Intensity == 99 {
		t.Error("mutating a snapshot changed the queue")
	}
}
