package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/satindergrewal/pulsedrive/internal/engine"
	"github.com/satindergrewal/pulsedrive/internal/pulse"
)

func packetOf(p pulse.Pulse) pulse.Packet {
	return pulse.Packet{p, p, p, p}
}

func at(start float64, p pulse.Pulse) *engine.Dispatch {
	return &engine.Dispatch{Start: start, Packet: packetOf(p)}
}

// --- Constants ---

func TestConstants(t *testing.T) {
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
}

// --- Sonifier ---

func TestSonifierFrames(t *testing.T) {
	s := NewSonifier()
	// 4 x 20ms = 80ms per side -> 4 frames
	s.Push(engine.Frame{
		A: at(0, pulse.Pulse{Frequency: 50, Intensity: 100, Duration: 20}),
		B: at(0, pulse.Pulse{Frequency: 50, Intensity: 50, Duration: 20}),
	})
	frames := s.Frames()
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}

	f := frames[0]
	if len(f) != FrameSamples {
		t.Fatalf("frame length = %d, want %d", len(f), FrameSamples)
	}
	peak := float64(peakLevel)
	wantLeft := int16(peak)
	wantRight := int16(peak * 0.5)
	if f[0] != wantLeft || f[1] != wantRight {
		t.Errorf("first samples = (%d, %d), want (%d, %d)", f[0], f[1], wantLeft, wantRight)
	}
	neg := clickSamples * 2
	if f[neg] != -wantLeft || f[neg+1] != -wantRight {
		t.Errorf("second click phase = (%d, %d), want (%d, %d)", f[neg], f[neg+1], -wantLeft, -wantRight)
	}
	tail := 2 * clickSamples * 2
	if f[tail] != 0 || f[tail+1] != 0 {
		t.Errorf("after click = (%d, %d), want silence", f[tail], f[tail+1])
	}
}

func TestSonifierInertIsSilent(t *testing.T) {
	s := NewSonifier()
	s.Push(engine.Frame{A: at(0, pulse.InertPulse()), B: at(0, pulse.InertPulse())})
	// 4 x 5ms = 20ms -> exactly one frame
	frames := s.Frames()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	for i, v := range frames[0] {
		if v != 0 {
			t.Fatalf("sample %d = %d, want silence", i, v)
		}
	}
}

func TestSonifierWaitsForSlowerChannel(t *testing.T) {
	s := NewSonifier()
	s.Push(engine.Frame{
		A: at(0, pulse.Pulse{Frequency: 100, Intensity: 10, Duration: 10}), // 40ms
		B: at(0, pulse.Pulse{Frequency: 20, Intensity: 10, Duration: 50}),  // 200ms
	})
	if n := len(s.Frames()); n != 2 {
		t.Fatalf("got %d frames, want 2 (limited by channel A)", n)
	}

	// A's next packet starts at 200ms after an idle stretch
	s.Push(engine.Frame{A: at(0.2, pulse.Pulse{Frequency: 100, Intensity: 10, Duration: 10})})
	frames := s.Frames()
	if len(frames) != 8 {
		t.Fatalf("got %d frames, want 8", len(frames))
	}
	// 180-200ms: A idle
	idle := frames[7]
	for i := 0; i < len(idle); i += 2 {
		if idle[i] != 0 {
			t.Fatalf("left sample %d = %d while channel A idle, want 0", i/2, idle[i])
		}
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0 (B has nothing past 200ms)", s.Pending())
	}
}

func TestSonifierAnchorsAtFirstPacket(t *testing.T) {
	s := NewSonifier()
	p := pulse.Pulse{Frequency: 50, Intensity: 100, Duration: 20}
	// a late joiner first sees packets at 120s and must not render 120s of silence
	s.Push(engine.Frame{A: at(120, p), B: at(120.04, p)})
	frames := s.Frames()
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	if frames[0][0] == 0 {
		t.Error("first left sample is silent, want a click at the anchor")
	}
	if frames[0][1] != 0 || frames[2][1] == 0 {
		t.Errorf("right channel should start 40ms in: got %d at 0ms, %d at 40ms", frames[0][1], frames[2][1])
	}
}

func TestSonifierIgnoresEmptyFrame(t *testing.T) {
	s := NewSonifier()
	s.Push(engine.Frame{Seq: 1})
	if s.Pending() != 0 || len(s.Frames()) != 0 {
		t.Error("empty frame produced audio")
	}
}

func TestSonifierKeepsPartialFrame(t *testing.T) {
	s := NewSonifier()
	p := pulse.Pulse{Frequency: 200, Intensity: 10, Duration: 6} // 24ms
	s.Push(engine.Frame{A: at(0, p), B: at(0, p)})
	if n := len(s.Frames()); n != 1 {
		t.Fatalf("got %d frames, want 1", n)
	}
	if s.Pending() != 4*samplesPerMs {
		t.Errorf("Pending = %d, want %d", s.Pending(), 4*samplesPerMs)
	}
}

func TestSamplesToBytes(t *testing.T) {
	buf := SamplesToBytes([]int16{0, 256, -1})
	want := []byte{0x00, 0x00, 0x00, 0x01, 0xff, 0xff}
	if string(buf) != string(want) {
		t.Errorf("SamplesToBytes = %x, want %x", buf, want)
	}
}

// --- Recorder ---

func TestRecorderWritesWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.wav")
	r, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	frame := make([]int16, FrameSamples)
	frame[0] = 1000
	for i := 0; i < 50; i++ {
		if err := r.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("recorded file is not a valid WAV")
	}
	if dec.SampleRate != SampleRate || dec.NumChans != Channels || dec.BitDepth != 16 {
		t.Errorf("format = %dHz/%dch/%dbit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if len(buf.Data) != 50*FrameSamples {
		t.Errorf("recorded %d samples, want %d", len(buf.Data), 50*FrameSamples)
	}
	if len(buf.Data) > 0 && buf.Data[0] != 1000 {
		t.Errorf("first sample = %d, want 1000", buf.Data[0])
	}
}

func TestRecorderBadPath(t *testing.T) {
	if _, err := NewRecorder(filepath.Join(t.TempDir(), "missing", "x.wav")); err == nil {
		t.Error("NewRecorder in a missing directory succeeded")
	}
}

// --- Run ---

type fakeSink struct {
	frames int
	fail   bool
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) WriteFrame([]int16) error {
	if s.fail {
		return errors.New("broken")
	}
	s.frames++
	return nil
}

func TestRunFeedsSinks(t *testing.T) {
	frames := make(chan engine.Frame, 4)
	p := pulse.Pulse{Frequency: 50, Intensity: 40, Duration: 20}
	frames <- engine.Frame{A: at(0, p), B: at(0, p)}
	frames <- engine.Frame{A: at(0.08, p), B: at(0.08, p)}
	close(frames)

	good := &fakeSink{}
	bad := &fakeSink{fail: true}
	Run(context.Background(), frames, good, bad)

	if good.frames != 8 {
		t.Errorf("good sink got %d frames, want 8", good.frames)
	}
	if bad.frames != 0 {
		t.Errorf("failing sink recorded %d frames", bad.frames)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, make(chan engine.Frame), &fakeSink{})
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
