package monitor

import (
	"context"
	"log"

	"github.com/satindergrewal/pulsedrive/internal/engine"
)

// Sink receives interleaved stereo PCM frames.
type Sink interface {
	Name() string
	WriteFrame(frame []int16) error
}

// Run sonifies frames and feeds every sink until ctx is cancelled or frames
// is closed. A sink that fails is dropped.
func Run(ctx context.Context, frames <-chan engine.Frame, sinks ...Sink) {
	son := NewSonifier()
	active := append([]Sink(nil), sinks...)

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			son.Push(f)
			for _, pcm := range son.Frames() {
				active = writeAll(active, pcm)
			}
			if len(active) == 0 {
				log.Println("Monitor: no sinks left, stopping")
				return
			}
		}
	}
}

func writeAll(sinks []Sink, pcm []int16) []Sink {
	kept := sinks[:0]
	for _, s := range sinks {
		if err := s.WriteFrame(pcm); err != nil {
			log.Printf("Monitor: %s failed, dropping: %v", s.Name(), err)
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
