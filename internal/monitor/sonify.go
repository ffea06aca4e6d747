package monitor

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/satindergrewal/pulsedrive/internal/engine"
	"github.com/satindergrewal/pulsedrive/internal/pulse"
)

const (
	SampleRate    = 48000
	Channels      = 2
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame

	samplesPerMs = SampleRate / 1000
	clickSamples = samplesPerMs / 2 // each half of the biphasic click is 0.5ms
	peakLevel    = 0.8 * 32767
)

// Sonifier renders dispatched packets into audible PCM: channel A on the
// left, B on the right, each pulse a biphasic click scaled by intensity.
// Packets are placed at their start times, so a channel that went idle
// plays silence until its next packet.
type Sonifier struct {
	left  []int16
	right []int16

	origin   int64 // absolute sample index of left[0] and right[0]
	anchored bool
}

// NewSonifier creates an empty sonifier.
func NewSonifier() *Sonifier {
	return &Sonifier{}
}

// Push renders the packets of one frame. The timeline is anchored at the
// earliest packet of the first frame pushed.
func (s *Sonifier) Push(f engine.Frame) {
	if !s.anchored {
		first, ok := earliestStart(f)
		if !ok {
			return
		}
		s.origin = first
		s.anchored = true
	}
	if f.A != nil {
		s.left = s.place(s.left, f.A)
	}
	if f.B != nil {
		s.right = s.place(s.right, f.B)
	}
}

func (s *Sonifier) place(buf []int16, d *engine.Dispatch) []int16 {
	if gap := int(startSample(d.Start)-s.origin) - len(buf); gap > 0 {
		buf = append(buf, make([]int16, gap)...)
	}
	return renderPacket(buf, d.Packet)
}

func earliestStart(f engine.Frame) (int64, bool) {
	switch {
	case f.A != nil && f.B != nil:
		return min(startSample(f.A.Start), startSample(f.B.Start)), true
	case f.A != nil:
		return startSample(f.A.Start), true
	case f.B != nil:
		return startSample(f.B.Start), true
	}
	return 0, false
}

func startSample(seconds float64) int64 {
	return int64(math.Round(seconds * SampleRate))
}

// Pending returns the number of samples per channel rendered on both sides
// but not yet framed.
func (s *Sonifier) Pending() int {
	return min(len(s.left), len(s.right))
}

// Frames drains every complete 20ms interleaved stereo frame. A frame is
// complete once both channels have rendered past its end.
func (s *Sonifier) Frames() [][]int16 {
	var out [][]int16
	for s.Pending() >= FrameSize {
		frame := make([]int16, FrameSamples)
		for i := 0; i < FrameSize; i++ {
			frame[i*2] = s.left[i]
			frame[i*2+1] = s.right[i]
		}
		out = append(out, frame)
		s.left = s.left[FrameSize:]
		s.right = s.right[FrameSize:]
		s.origin += FrameSize
	}
	return out
}

func renderPacket(buf []int16, pkt pulse.Packet) []int16 {
	for _, p := range pkt {
		buf = renderPulse(buf, p)
	}
	return buf
}

func renderPulse(buf []int16, p pulse.Pulse) []int16 {
	n := p.Duration * samplesPerMs
	level := int16(0)
	if p.Frequency > 0 {
		level = int16(peakLevel * float64(p.Intensity) / 100)
	}
	for i := 0; i < n; i++ {
		switch {
		case i < clickSamples:
			buf = append(buf, level)
		case i < 2*clickSamples:
			buf = append(buf, -level)
		default:
			buf = append(buf, 0)
		}
	}
	return buf
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
