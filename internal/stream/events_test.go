package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/satindergrewal/pulsedrive/internal/engine"
)

func TestEventsHandlerStreamsFrames(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan engine.Frame, 4)
	go b.Run(ctx, source)

	srv := httptest.NewServer(NewEventsHandler(b))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// Wait for the handler to subscribe before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for b.ListenerCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	source <- frameWithSeq(9)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream ended before a data line")
			}
			data, found := strings.CutPrefix(line, "data: ")
			if !found {
				continue
			}
			var got engine.Frame
			if err := json.Unmarshal([]byte(data), &got); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if got.Seq != 9 || got.A == nil || got.A.Packet[0].Duration != 20 {
				t.Errorf("event frame = %+v, want seq 9 with 20ms pulses", got)
			}
			return
		case <-time.After(2 * time.Second):
			t.Fatal("no event received")
		}
	}
}

func TestEventsHandlerUnsubscribesOnDisconnect(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(NewEventsHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for b.ListenerCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := b.ListenerCount(); n != 0 {
		t.Errorf("ListenerCount after disconnect = %d, want 0", n)
	}
}
