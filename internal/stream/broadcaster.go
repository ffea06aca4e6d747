package stream

import (
	"context"
	"sync"

	"github.com/satindergrewal/pulsedrive/internal/engine"
)

// listenerBuffer is ~3 seconds of packets at a 40ms dispatch interval.
const listenerBuffer = 75

// Broadcaster fans out engine frames from one source to N listeners.
// Frames are values, so every listener gets its own copy.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	last      engine.Frame
	hasLast   bool
}

// Listener receives frames from the broadcaster.
type Listener struct {
	C    chan engine.Frame
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener. The most recent frame, if any, is
// queued first so a new observer does not start blank.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan engine.Frame, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	if b.hasLast {
		l.C <- b.last
	}
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call more than once.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[l]; !ok {
		return
	}
	delete(b.listeners, l)
	close(l.done)
}

// Last returns the most recent frame and whether one has been broadcast.
func (b *Broadcaster) Last() (engine.Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.hasLast
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
// When the source closes every listener is unsubscribed.
func (b *Broadcaster) Run(ctx context.Context, source <-chan engine.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				b.closeAll()
				return
			}
			b.mu.Lock()
			b.last = frame
			b.hasLast = true
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					// listener too slow, drop frame to keep broadcast moving
				}
			}
			b.mu.Unlock()
		}
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for l := range b.listeners {
		delete(b.listeners, l)
		close(l.done)
	}
}
