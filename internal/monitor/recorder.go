package monitor

import (
	"fmt"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes the sonified stream to a 16-bit stereo WAV file.
type Recorder struct {
	path   string
	f      *os.File
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	frames int
}

// NewRecorder creates (or truncates) the WAV file at path.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	return &Recorder{
		path: path,
		f:    f,
		enc:  wav.NewEncoder(f, SampleRate, 16, Channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
			Data:           make([]int, FrameSamples),
			SourceBitDepth: 16,
		},
	}, nil
}

func (r *Recorder) Name() string { return "recorder " + r.path }

// WriteFrame appends one frame to the file.
func (r *Recorder) WriteFrame(frame []int16) error {
	r.buf.Data = r.buf.Data[:len(frame)]
	for i, s := range frame {
		r.buf.Data[i] = int(s)
	}
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	r.frames++
	return nil
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	if err := r.enc.Close(); err != nil {
		r.f.Close()
		return fmt.Errorf("recorder: %w", err)
	}
	log.Printf("Recorded %d frames to %s", r.frames, r.path)
	return r.f.Close()
}
