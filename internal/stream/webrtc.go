package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/satindergrewal/pulsedrive/internal/engine"
	"github.com/satindergrewal/pulsedrive/internal/monitor"
	"gopkg.in/hraban/opus.v2"
)

// packetsLabel is the data channel a client opens to receive raw packets.
const packetsLabel = "packets"

// WebRTCHandler serves WebRTC SDP negotiation. Each peer gets an Opus
// track carrying the sonified pulse stream, and can open a "packets" data
// channel to receive every dispatched Frame as JSON.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	mu          sync.Mutex
	peers       map[string]*webrtc.PeerConnection
}

// NewWebRTCHandler creates a WebRTC stream handler.
func NewWebRTCHandler(b *Broadcaster) *WebRTCHandler {
	return &WebRTCHandler{
		broadcaster: b,
		peers:       make(map[string]*webrtc.PeerConnection),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}
	id := uuid.NewString()

	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"pulsedrive-"+id,
	)
	if err != nil {
		pc.Close()
		http.Error(w, "create audio track failed", http.StatusInternalServerError)
		return
	}

	if _, err := pc.AddTrack(audioTrack); err != nil {
		pc.Close()
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != packetsLabel {
			return
		}
		dc.OnOpen(func() {
			go h.packetsToPeer(id, dc)
		})
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}

	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}

	// Wait for ICE gathering to complete
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	<-gatherComplete

	h.mu.Lock()
	h.peers[id] = pc
	h.mu.Unlock()

	log.Printf("WebRTC peer %s connected (total: %d)", id, h.PeerCount())

	// Stream audio in background
	go h.audioToPeer(id, audioTrack)

	// Clean up on disconnect
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed ||
			s == webrtc.PeerConnectionStateDisconnected {
			if h.removePeer(id) {
				pc.Close()
				log.Printf("WebRTC peer %s disconnected (remaining: %d)", id, h.PeerCount())
			}
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// audioToPeer sonifies frames for one peer and writes them as Opus samples.
// Each peer has its own sonifier since rendering is stateful.
func (h *WebRTCHandler) audioToPeer(id string, track *webrtc.TrackLocalStaticSample) {
	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(monitor.SampleRate, monitor.Channels, opus.AppAudio)
	if err != nil {
		log.Printf("WebRTC %s: opus encoder error: %v", id, err)
		return
	}
	enc.SetBitrate(128000)

	son := monitor.NewSonifier()
	opusBuf := make([]byte, 4000)

	for {
		select {
		case <-listener.Done():
			return
		case frame := <-listener.C:
			if !h.hasPeer(id) {
				return
			}
			son.Push(frame)
			for _, pcm := range son.Frames() {
				n, err := enc.Encode(pcm, opusBuf)
				if err != nil {
					log.Printf("WebRTC %s: opus encode error: %v", id, err)
					continue
				}
				if err := track.WriteSample(media.Sample{
					Data:     opusBuf[:n],
					Duration: monitor.FrameDuration,
				}); err != nil {
					return
				}
			}
		}
	}
}

func (h *WebRTCHandler) packetsToPeer(id string, dc *webrtc.DataChannel) {
	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	for {
		select {
		case <-listener.Done():
			return
		case frame := <-listener.C:
			if !h.hasPeer(id) {
				return
			}
			if err := sendFrame(dc, frame); err != nil {
				log.Printf("WebRTC %s: data channel closed: %v", id, err)
				return
			}
		}
	}
}

func sendFrame(dc *webrtc.DataChannel, frame engine.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return dc.SendText(string(data))
}

func (h *WebRTCHandler) hasPeer(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.peers[id]
	return ok
}

func (h *WebRTCHandler) removePeer(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[id]; !ok {
		return false
	}
	delete(h.peers, id)
	return true
}
