package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// maxSpeakerBacklog bounds how far the speaker may lag behind the engine.
const maxSpeakerBacklog = 500 * time.Millisecond

// Speaker plays the sonified stream on the local audio device.
type Speaker struct {
	ctx    *oto.Context
	player *oto.Player

	mu  sync.Mutex
	buf []byte
}

// NewSpeaker opens the default audio device.
func NewSpeaker() (*Speaker, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   2 * FrameDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("speaker: %w", err)
	}
	<-ready

	s := &Speaker{ctx: ctx}
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

func (s *Speaker) Name() string { return "speaker" }

// WriteFrame queues a frame for playback, dropping the oldest audio when
// the backlog exceeds maxSpeakerBacklog.
func (s *Speaker) WriteFrame(frame []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, SamplesToBytes(frame)...)
	limit := int(maxSpeakerBacklog/FrameDuration) * FrameSamples * 2
	if len(s.buf) > limit {
		s.buf = s.buf[len(s.buf)-limit:]
	}
	return nil
}

// Read implements io.Reader for the oto player. It never blocks: when
// nothing is queued it plays silence.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	clear(p[n:])
	return len(p), nil
}

// Close stops playback.
func (s *Speaker) Close() error {
	return s.player.Close()
}
