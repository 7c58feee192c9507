// Paddle Link — host bridge
//
// Responsibilities:
//   - BLE central: find the paddle and subscribe to telemetry notifications
//   - Pipeline: parse wire lines → stroke detection → link liveness, one
//     packet per tick in arrival order
//   - WebSocket /ws → broadcast session state to the dashboard
//   - HTTP      → REST session + calibration API
//   - Optional MQTT bridge for stroke and link events

package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/noorbagus/asdp-boat-sub002/ble"
	"github.com/noorbagus/asdp-boat-sub002/bridge"
	"github.com/noorbagus/asdp-boat-sub002/config"
	"github.com/noorbagus/asdp-boat-sub002/gesture"
	"github.com/noorbagus/asdp-boat-sub002/link"
	"github.com/noorbagus/asdp-boat-sub002/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to bridge.yaml (defaults used when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	central := ble.NewCentral(ble.Config{
		LocalName:   cfg.Paddle.LocalName,
		ServiceUUID: cfg.Paddle.ServiceUUID,
		CharUUID:    cfg.Paddle.CharUUID,
	})
	if err := central.Enable(); err != nil {
		log.Fatalf("BLE: %v", err)
	}

	detector := gesture.NewDetector(gesture.Params{
		LeftThreshold:    cfg.Detection.LeftThresholdDeg,
		RightThreshold:   cfg.Detection.RightThresholdDeg,
		NeutralThreshold: cfg.Detection.NeutralThresholdDeg,
		Debounce:         cfg.Detection.Debounce(),
	})
	monitor := link.NewMonitor()
	pump := bridge.NewPump(central, detector, monitor, bridge.Options{
		Axes:         cfg.Detection.AxisMap(),
		PollInterval: cfg.Link.Poll(),
	})

	hub := telemetry.NewHub()
	publisher, err := telemetry.NewPublisher(
		cfg.Telemetry.MQTTBroker, cfg.Telemetry.MQTTClient, cfg.Telemetry.MQTTTopic)
	if err != nil {
		log.Fatalf("MQTT: %v", err)
	}
	defer publisher.Close()

	pump.SetStrokeHandler(func(ev gesture.StrokeEvent) {
		log.Printf("STROKE %s  angle=%.1f°", ev.Side, ev.Angle)
		publisher.PublishStroke(ev)
	})

	var linkMu sync.Mutex
	lastLink := monitor.State().String()
	pump.SetStateHandler(func(s *bridge.Session) {
		hub.BroadcastJSON(s)
		linkMu.Lock()
		changed := s.Link != lastLink
		lastLink = s.Link
		linkMu.Unlock()
		if changed {
			publisher.PublishLink(s.Link)
		}
	})

	// Transport lifecycle events feed the liveness monitor.
	unsubscribe := central.Subscribe(func(ev ble.Event) {
		switch ev.Kind {
		case ble.EventConnectionFailed:
			pump.NoteConnectionFailed()
		case ble.EventScanEnded:
			if !central.IsConnected() {
				pump.NoteScanning()
			}
		}
	})
	defer unsubscribe()

	scanConfig := ble.DefaultScanConfig()
	scanConfig.ScanInterval = cfg.Link.Poll()
	scanner := ble.NewScanner(central, scanConfig)
	scanner.Start()

	// Pump loop: single goroutine, fixed tick, at most one packet per tick.
	stopPump := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Link.Tick())
		defer ticker.Stop()
		for {
			select {
			case <-stopPump:
				return
			case now := <-ticker.C:
				pump.Tick(now)
			}
		}
	}()

	// Dashboard heartbeat: elapsed time updates once a second.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			hub.BroadcastJSON(pump.Snapshot(time.Now()))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.Handler())

	mux.HandleFunc("/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		pump.StartSession(time.Now())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/api/session/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		pump.ResetSession()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/api/calibrate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		trim, err := strconv.Atoi(r.URL.Query().Get("trim"))
		if err != nil || trim < -128 || trim > 127 {
			http.Error(w, "trim must be an int8", http.StatusBadRequest)
			return
		}
		if err := central.Send([]byte{0x01, byte(int8(trim))}); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	server := &http.Server{Addr: cfg.Telemetry.HTTPAddr, Handler: mux}
	go func() {
		log.Printf("HTTP/WS server on %s", cfg.Telemetry.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP listen: %v", err)
		}
	}()

	// Block until shutdown; the radio link is released on every exit path.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	close(stopPump)
	scanner.Stop()
	if err := central.Close(); err != nil {
		log.Printf("BLE: %v", err)
	}
	server.Close()
}
