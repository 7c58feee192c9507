package ble

import (
	"log"
	"sync/atomic"
	"time"
)

// ScanConfig holds configuration for the reconnect supervisor.
type ScanConfig struct {
	// RetryDelay is how long to wait before retrying a failed connection
	RetryDelay time.Duration
	// ScanInterval is how often to check for a lost paddle (default 2s)
	ScanInterval time.Duration
	// AutoReconnect enables automatic reconnection on disconnect
	AutoReconnect bool
}

// DefaultScanConfig returns sensible defaults for scanning.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		RetryDelay:    2 * time.Second,
		ScanInterval:  2 * time.Second,
		AutoReconnect: true,
	}
}

// Scanner keeps the paddle connected: it periodically checks the link and
// restarts discovery whenever the paddle is gone.
type Scanner struct {
	central *Central
	config  ScanConfig
	// running is read from transport goroutines via onEvent.
	running atomic.Bool
	stop    chan struct{}
	cancel  func()
}

// NewScanner creates a Scanner with the given Central and config.
func NewScanner(central *Central, config ScanConfig) *Scanner {
	return &Scanner{
		central: central,
		config:  config,
		stop:    make(chan struct{}),
	}
}

// Start begins the supervision loop. With AutoReconnect enabled a failed
// connect attempt schedules a retry after RetryDelay instead of waiting for
// the next interval.
func (s *Scanner) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stop = make(chan struct{})

	if s.config.AutoReconnect {
		s.cancel = s.central.Subscribe(s.onEvent)
	}

	go s.scanLoop()
}

// onEvent reacts to transport events while supervising.
func (s *Scanner) onEvent(ev Event) {
	if !s.running.Load() {
		return
	}
	switch ev.Kind {
	case EventConnectionFailed:
		log.Printf("Scanner: Connect failed (%v), retrying in %s", ev.Err, s.config.RetryDelay)
		time.AfterFunc(s.config.RetryDelay, s.checkAndScan)
	case EventScanEnded:
		log.Printf("Scanner: Scan pass ended, %d device(s) seen", ev.DeviceCount)
	}
}

// Stop halts the supervision loop.
func (s *Scanner) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	close(s.stop)
	s.central.StopScanning()
}

// scanLoop is the main supervision goroutine.
func (s *Scanner) scanLoop() {
	log.Println("Scanner: Starting scan loop (checking every", s.config.ScanInterval, ")")

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	// Do an initial check immediately
	s.checkAndScan()

	for {
		select {
		case <-s.stop:
			log.Println("Scanner: Stopped")
			return
		case <-ticker.C:
			s.checkAndScan()
		}
	}
}

// checkAndScan starts a scan pass if the paddle is not connected.
func (s *Scanner) checkAndScan() {
	if s.central.IsConnected() {
		return
	}
	if err := s.central.StartScanning(); err != nil {
		log.Printf("Scanner: Failed to start scan: %v", err)
	}
}

// WaitForPaddle blocks until the paddle is connected or the timeout expires
// (0 = wait forever).
func (s *Scanner) WaitForPaddle(timeout time.Duration) bool {
	start := time.Now()
	for {
		if s.central.IsConnected() {
			return true
		}
		if timeout > 0 && time.Since(start) > timeout {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
