package pulse

// Playback tracks how much of the last dispatched packet has played.
// Bookkeeping only: it does not generate or send anything.
type Playback struct {
	packet     Packet
	loaded     bool
	elapsedMs  float64
	totalMs    float64
	startTime  float64
	finishTime float64
}

// Load replaces the state with a freshly dispatched packet starting at start (seconds).
func (p *Playback) Load(start float64, pkt Packet) {
	p.packet = pkt
	p.loaded = true
	p.totalMs = float64(pkt.DurationMs())
	p.elapsedMs = 0
	p.startTime = start
	p.finishTime = start + p.totalMs/1000
}

// NextStart returns when a packet dispatched at now begins playing: right
// after the loaded packet, or at now when the device has gone idle.
func (p *Playback) NextStart(now float64) float64 {
	if !p.loaded {
		return now
	}
	return max(now, p.finishTime)
}

// Sync sets the played time from the clock. A packet queued behind the
// previous one has played nothing until its start time.
func (p *Playback) Sync(now float64) {
	if !p.loaded {
		return
	}
	p.elapsedMs = clamp((now-p.startTime)*1000, 0, p.totalMs)
}

// Advance adds played time. Non-positive deltas are ignored.
func (p *Playback) Advance(deltaMs float64) {
	if deltaMs <= 0 {
		return
	}
	p.elapsedMs = min(p.totalMs, p.elapsedMs+deltaMs)
}

// Remaining returns the unplayed part of the packet in ms.
func (p *Playback) Remaining() float64 {
	return max(0, p.totalMs-p.elapsedMs)
}

// Ready reports whether the packet has fully played.
func (p *Playback) Ready() bool {
	return p.Remaining() <= 0
}

// Due reports whether at least margin (0-1] of the packet has played.
// Due(1) is Ready.
func (p *Playback) Due(margin float64) bool {
	if p.totalMs <= 0 {
		return true
	}
	return p.elapsedMs >= p.totalMs*clamp(margin, 0, 1)
}

func (p *Playback) Elapsed() float64    { return p.elapsedMs }
func (p *Playback) Total() float64      { return p.totalMs }
func (p *Playback) StartTime() float64  { return p.startTime }
func (p *Playback) FinishTime() float64 { return p.finishTime }

// Packet returns the loaded packet and whether one has been loaded.
func (p *Playback) Packet() (Packet, bool) {
	return p.packet, p.loaded
}
