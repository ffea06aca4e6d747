package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/satindergrewal/pulsedrive/internal/config"
	"github.com/satindergrewal/pulsedrive/internal/control"
	"github.com/satindergrewal/pulsedrive/internal/engine"
	"github.com/satindergrewal/pulsedrive/internal/monitor"
	"github.com/satindergrewal/pulsedrive/internal/stream"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("pulsedrive starting up...")

	curves, err := cfg.Curves()
	if err != nil {
		log.Fatalf("Invalid control curve: %v", err)
	}
	position, err := cfg.Position()
	if err != nil {
		log.Fatalf("Invalid position curve: %v", err)
	}
	// Lua curves are released only after the engine has stopped sampling them.
	defer control.Release(position)
	defer curves.Close()

	mixer := control.NewMixer(cfg.Gains, cfg.Playing)

	eng := engine.New(engine.Config{
		Tuning:       cfg.Tuning(),
		TickInterval: cfg.TickInterval,
		A:            engine.ChannelConfig{Synth: cfg.SynthConfig(control.SideA), Curves: curves, Seed: cfg.Seed},
		B:            engine.ChannelConfig{Synth: cfg.SynthConfig(control.SideB), Curves: curves, Seed: cfg.Seed + 1},
		Volume:       mixer,
		Intensity:    control.Positional(position),
		TraceLog:     cfg.TraceLog,
	})
	var engineWG sync.WaitGroup
	engineWG.Add(1)
	go func() {
		defer engineWG.Done()
		eng.Run(ctx)
	}()

	// Broadcaster: fan-out dispatched packets to all observers
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, eng.Frames())

	// Local monitor outputs (optional)
	var sinks []monitor.Sink
	if cfg.Speaker {
		spk, err := monitor.NewSpeaker()
		if err != nil {
			log.Printf("Speaker not available: %v", err)
		} else {
			defer spk.Close()
			sinks = append(sinks, spk)
		}
	}
	if cfg.RecordPath != "" {
		rec, err := monitor.NewRecorder(cfg.RecordPath)
		if err != nil {
			log.Fatalf("Recorder: %v", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Printf("Recorder close: %v", err)
			}
		}()
		sinks = append(sinks, rec)
	}
	var monitorWG sync.WaitGroup
	if len(sinks) > 0 {
		listener := broadcaster.Subscribe()
		monitorWG.Add(1)
		go func() {
			defer monitorWG.Done()
			defer broadcaster.Unsubscribe(listener)
			monitor.Run(ctx, listener.C, sinks...)
		}()
		log.Printf("Monitor enabled (%d sinks)", len(sinks))
	}

	webrtcHandler := stream.NewWebRTCHandler(broadcaster)

	// HTTP routes
	mux := http.NewServeMux()

	mux.Handle("/events", stream.NewEventsHandler(broadcaster))
	mux.Handle("/offer", webrtcHandler)

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(map[string]any{
			"engine":           eng.Status(),
			"playing":          mixer.IsPlaying(),
			"gains":            mixer.Gains(),
			"volume":           mixer.Volume(),
			"tuning":           eng.Tuning().Params(),
			"event_listeners":  broadcaster.ListenerCount(),
			"webrtc_listeners": webrtcHandler.PeerCount(),
		})
	})

	mux.HandleFunc("/api/volume", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Master     *float64 `json:"master"`
			API        *float64 `json:"api"`
			Inactivity *float64 `json:"inactivity"`
			External   *float64 `json:"external"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		g := mixer.Gains()
		if req.Master != nil {
			g.Master = *req.Master
		}
		if req.API != nil {
			g.API = *req.API
		}
		if req.Inactivity != nil {
			g.Inactivity = *req.Inactivity
		}
		if req.External != nil {
			g.External = *req.External
		}
		mixer.SetGains(g)
		log.Printf("Volume: gains=%+v volume=%.2f", mixer.Gains(), mixer.Volume())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "gains": mixer.Gains(), "volume": mixer.Volume()})
	})

	mux.HandleFunc("/api/playing", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Playing bool `json:"playing"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		mixer.SetPlaying(req.Playing)
		log.Printf("Playing: %v", req.Playing)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "playing": req.Playing})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("pulsedrive live on %s (session %s)", addr, eng.ID())
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
	engineWG.Wait()
	monitorWG.Wait()
}
