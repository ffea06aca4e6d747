package engine

import "github.com/satindergrewal/pulsedrive/internal/pulse"

// ChannelStatus is a copy of one channel's observable state.
type ChannelStatus struct {
	QueueLength     int          `json:"queue_length"`
	QueueDurationMs int          `json:"queue_duration_ms"`
	RemainingMs     float64      `json:"remaining_ms"`
	LastPacket      pulse.Packet `json:"last_packet"`
	LastTrace       pulse.Trace  `json:"last_trace"`
	Window          pulse.Window `json:"window"`
	Residual        float64      `json:"residual"`
}

// Status is a snapshot of the engine, safe to read from any goroutine.
type Status struct {
	Session string        `json:"session"`
	Time    float64       `json:"time"`
	Packets uint64        `json:"packets"`
	Volume  float64       `json:"volume"`
	A       ChannelStatus `json:"a"`
	B       ChannelStatus `json:"b"`
}

// Status returns the state as of the last tick.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

func (e *Engine) updateStatus(now float64, f Frame, dispatched bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Time = now
	e.status.Packets = e.seq
	if dispatched {
		e.status.Volume = f.Volume
	}
	e.status.A = channelStatus(e.a)
	e.status.B = channelStatus(e.b)
}

func channelStatus(ch *channel) ChannelStatus {
	pkt, _ := ch.playback.Packet()
	return ChannelStatus{
		QueueLength:     ch.ctl.Len(),
		QueueDurationMs: ch.ctl.QueueDurationMs(),
		RemainingMs:     ch.playback.Remaining(),
		LastPacket:      pkt,
		LastTrace:       ch.ctl.LastTrace(),
		Window:          ch.ctl.Synthesizer().Window(),
		Residual:        ch.ctl.Synthesizer().Residual(),
	}
}
