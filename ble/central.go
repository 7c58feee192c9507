// Package ble connects to the paddle peripheral and exposes its notify
// stream as a non-blocking byte queue.
package ble

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/bluez"
	"github.com/muka/go-bluetooth/bluez/profile/gatt"
	"tinygo.org/x/bluetooth"
)

// Standard big-endian UUID strings as BlueZ returns them in
// GetManagedObjects. bluetooth.UUID.String() outputs little-endian bytes and
// does NOT match these.
const (
	// DefaultServiceUUID is the paddle telemetry service.
	DefaultServiceUUID = "4fafc201-1fb5-459e-8fcc-c5c9c331914b"
	// DefaultCharUUID is the single read/write/notify characteristic.
	DefaultCharUUID = "beb5483e-36e1-4688-b7f5-ea07361b26a8"
	// DefaultLocalName is the advertised name of the reference paddle.
	DefaultLocalName = "ASDP-Paddle"
)

const defaultRxQueueSize = 64

// Config identifies the paddle peripheral.
type Config struct {
	LocalName   string
	ServiceUUID string
	CharUUID    string
	RxQueueSize int
}

// DefaultConfig matches the reference paddle firmware.
func DefaultConfig() Config {
	return Config{
		LocalName:   DefaultLocalName,
		ServiceUUID: DefaultServiceUUID,
		CharUUID:    DefaultCharUUID,
		RxQueueSize: defaultRxQueueSize,
	}
}

// Central manages the BLE connection to the paddle. Notifications land in a
// bounded queue drained by TryReceive; when the queue is full the oldest
// sample is dropped so the stream stays fresh.
type Central struct {
	cfg     Config
	adapter *bluetooth.Adapter

	mu        sync.Mutex
	device    *bluetooth.Device
	char      *gatt.GattCharacteristic1
	propCh    chan *bluez.PropertyChanged
	connected bool
	scanning  bool

	rx chan []byte

	subs    map[int]func(Event)
	nextSub int
}

// NewCentral creates a Central for the configured paddle identity. Zero
// config fields take the reference defaults.
func NewCentral(cfg Config) *Central {
	if cfg.LocalName == "" {
		cfg.LocalName = DefaultLocalName
	}
	if cfg.ServiceUUID == "" {
		cfg.ServiceUUID = DefaultServiceUUID
	}
	if cfg.CharUUID == "" {
		cfg.CharUUID = DefaultCharUUID
	}
	if cfg.RxQueueSize <= 0 {
		cfg.RxQueueSize = defaultRxQueueSize
	}
	return &Central{
		cfg:     cfg,
		adapter: bluetooth.DefaultAdapter,
		rx:      make(chan []byte, cfg.RxQueueSize),
		subs:    make(map[int]func(Event)),
	}
}

// Enable initializes the BLE adapter.
func (c *Central) Enable() error {
	log.Println("BLE: Enabling adapter...")
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable BLE adapter: %w", err)
	}
	log.Println("BLE: Adapter enabled")
	return nil
}

// IsConnected reports whether the paddle notify stream is established.
func (c *Central) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// TryReceive returns the next queued notification without blocking. The
// second return is false when nothing is pending.
func (c *Central) TryReceive() ([]byte, bool) {
	select {
	case b := <-c.rx:
		return b, true
	default:
		return nil, false
	}
}

// Send writes a raw command (two bytes in the reference firmware) to the
// characteristic. Fire-and-forget: no retry on failure.
func (c *Central) Send(data []byte) error {
	c.mu.Lock()
	char := c.char
	connected := c.connected
	c.mu.Unlock()

	if !connected || char == nil {
		return fmt.Errorf("send: paddle not connected")
	}
	if err := char.WriteValue(data, nil); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// enqueue adds a notification to the rx queue, evicting the oldest entry if
// the pump has fallen behind.
func (c *Central) enqueue(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	for {
		select {
		case c.rx <- buf:
			return
		default:
		}
		select {
		case <-c.rx:
		default:
		}
	}
}

// waitForServicesResolved blocks until BlueZ reports ServicesResolved = true
// for the given device address, or until the timeout expires.
//
// BlueZ performs GATT service discovery asynchronously after the ACL
// connection is established. The ServicesResolved property on the Device1
// D-Bus object transitions false → true when the GATT profile is fully
// resolved. Polling DiscoverServices before this event yields an empty list
// even on success.
func waitForServicesResolved(addr bluetooth.Address, timeout time.Duration) error {
	// Derive the BlueZ D-Bus object path from the MAC address.
	// e.g. "D4:E9:F4:E2:B5:8A" → "/org/bluez/hci0/dev_D4_E9_F4_E2_B5_8A"
	mac := strings.ToUpper(addr.String())
	devID := strings.ReplaceAll(mac, ":", "_")
	devPath := dbus.ObjectPath("/org/bluez/hci0/dev_" + devID)

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("dbus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object("org.bluez", devPath)

	// Fast path: already resolved (e.g. reconnect after prior session).
	v, err := obj.GetProperty("org.bluez.Device1.ServicesResolved")
	if err == nil {
		if resolved, ok := v.Value().(bool); ok && resolved {
			return nil
		}
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(devPath),
	); err != nil {
		return fmt.Errorf("dbus match: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return fmt.Errorf("dbus signal channel closed")
			}
			if len(sig.Body) < 2 {
				continue
			}
			iface, ok := sig.Body[0].(string)
			if !ok || iface != "org.bluez.Device1" {
				continue
			}
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			if v, ok := changed["ServicesResolved"]; ok {
				if resolved, ok := v.Value().(bool); ok && resolved {
					return nil
				}
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ServicesResolved")
		}
	}
}

// discoverGATT opens a fresh D-Bus connection and calls GetManagedObjects
// directly on org.bluez, bypassing the go-bluetooth singleton ObjectManager
// which can return a stale/incomplete view of the GATT object tree.
//
// It returns the GattCharacteristic1 for the given (serviceUUID, charUUID)
// pair under the device identified by addr.
func discoverGATT(addr bluetooth.Address, serviceUUIDStr, charUUIDStr string) (*gatt.GattCharacteristic1, error) {
	mac := strings.ToUpper(addr.String())
	devID := strings.ReplaceAll(mac, ":", "_")
	devPath := "/org/bluez/hci0/dev_" + devID

	serviceUUIDStr = strings.ToLower(serviceUUIDStr)
	charUUIDStr = strings.ToLower(charUUIDStr)

	// Open a fresh D-Bus connection — NOT the go-bluetooth singleton.
	// The singleton's cached connection may return stale GetManagedObjects data.
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	obj := conn.Object("org.bluez", "/")
	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&managed); err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", err)
	}

	// Find the service path under our device.
	var servicePath string
	for path, ifaces := range managed {
		pathStr := string(path)

		// Must be exactly one level under devPath: devPath/serviceXXXX
		if !strings.HasPrefix(pathStr, devPath+"/service") {
			continue
		}
		suffix := pathStr[len(devPath)+1:]
		if strings.Contains(suffix, "/") {
			continue
		}

		svcIface, ok := ifaces["org.bluez.GattService1"]
		if !ok {
			continue
		}
		uuidVar, ok := svcIface["UUID"]
		if !ok {
			continue
		}
		uuid, ok := uuidVar.Value().(string)
		if !ok {
			continue
		}
		if strings.ToLower(uuid) == serviceUUIDStr {
			servicePath = pathStr
			break
		}
	}

	if servicePath == "" {
		return nil, fmt.Errorf("service %s not found on %s", serviceUUIDStr, devPath)
	}

	// Find the telemetry characteristic under the matched service.
	var charPath string
	for path, ifaces := range managed {
		pathStr := string(path)

		if !strings.HasPrefix(pathStr, servicePath+"/char") {
			continue
		}
		suffix := pathStr[len(servicePath)+1:]
		if strings.Contains(suffix, "/") {
			continue
		}

		charIface, ok := ifaces["org.bluez.GattCharacteristic1"]
		if !ok {
			continue
		}
		uuidVar, ok := charIface["UUID"]
		if !ok {
			continue
		}
		uuid, ok := uuidVar.Value().(string)
		if !ok {
			continue
		}
		if strings.ToLower(uuid) == charUUIDStr {
			charPath = pathStr
			break
		}
	}

	if charPath == "" {
		return nil, fmt.Errorf("characteristic %s not found under %s", charUUIDStr, servicePath)
	}

	// NewGattCharacteristic1 uses the go-bluetooth Client which lazily
	// connects via the singleton D-Bus connection — fine for method calls
	// like StartNotify and WatchProperties; only GetManagedObjects was
	// unreliable.
	char, err := gatt.NewGattCharacteristic1(dbus.ObjectPath(charPath))
	if err != nil {
		return nil, fmt.Errorf("NewGattCharacteristic1(%s): %w", charPath, err)
	}

	return char, nil
}

// connectToDevice establishes the notify stream on a discovered paddle.
func (c *Central) connectToDevice(result bluetooth.ScanResult) error {
	log.Printf("BLE: Connecting to %s (%s)...", result.LocalName(), result.Address.String())

	device, err := c.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	log.Printf("BLE: Connected to %s, waiting for GATT profile...", result.LocalName())

	if err := waitForServicesResolved(result.Address, 15*time.Second); err != nil {
		device.Disconnect()
		return fmt.Errorf("GATT not resolved on %s: %w", result.LocalName(), err)
	}

	char, err := discoverGATT(result.Address, c.cfg.ServiceUUID, c.cfg.CharUUID)
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("GATT discovery failed on %s: %w", result.LocalName(), err)
	}

	// Subscribe to PropertiesChanged signals for this characteristic. This
	// replicates bluetooth.DeviceCharacteristic.EnableNotifications internally.
	propCh, err := char.WatchProperties()
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("WatchProperties failed: %w", err)
	}

	if err := char.StartNotify(); err != nil {
		_ = char.UnwatchProperties(propCh)
		device.Disconnect()
		return fmt.Errorf("StartNotify failed: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.char = char
	c.propCh = propCh
	c.connected = true
	c.mu.Unlock()

	// Dispatch incoming GATT notifications into the rx queue.
	go func() {
		for update := range propCh {
			if update == nil {
				continue
			}
			if update.Interface == "org.bluez.GattCharacteristic1" && update.Name == "Value" {
				if value, ok := update.Value.([]byte); ok {
					c.enqueue(value)
				}
			}
		}
	}()

	log.Printf("BLE: Paddle connected and streaming")
	return nil
}

// StartScanning begins scanning for the paddle. The scan stops on its own
// once the paddle is connected.
func (c *Central) StartScanning() error {
	c.mu.Lock()
	if c.scanning {
		c.mu.Unlock()
		return nil
	}
	c.scanning = true
	c.mu.Unlock()

	log.Printf("BLE: Starting scan for %q...", c.cfg.LocalName)

	go func() {
		seen := make(map[string]struct{})

		err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			seen[result.Address.String()] = struct{}{}

			if result.LocalName() != c.cfg.LocalName {
				return
			}
			if c.IsConnected() {
				return
			}

			log.Printf("BLE: Found %s at %s", result.LocalName(), result.Address.String())
			adapter.StopScan()

			if err := c.connectToDevice(result); err != nil {
				log.Printf("BLE: Failed to connect to %s: %v", result.LocalName(), err)
				c.emit(Event{Kind: EventConnectionFailed, Err: err})
				return
			}
			c.emit(Event{Kind: EventConnected})
		})

		if err != nil {
			log.Printf("BLE: Scan error: %v", err)
		}

		c.mu.Lock()
		c.scanning = false
		c.mu.Unlock()
		c.emit(Event{Kind: EventScanEnded, DeviceCount: len(seen)})
	}()

	return nil
}

// StopScanning stops an in-progress scan.
func (c *Central) StopScanning() {
	c.mu.Lock()
	scanning := c.scanning
	c.mu.Unlock()

	if scanning {
		c.adapter.StopScan()
		log.Println("BLE: Scan stopped")
	}
}

// Disconnect tears down the notify stream and releases the link. Safe to
// call on every shutdown path; it is a no-op when nothing is connected.
func (c *Central) Disconnect() error {
	c.mu.Lock()
	device, char, propCh := c.device, c.char, c.propCh
	wasConnected := c.connected
	c.device, c.char, c.propCh = nil, nil, nil
	c.connected = false
	c.mu.Unlock()

	if !wasConnected {
		return nil
	}

	if char != nil {
		_ = char.StopNotify()
		if propCh != nil {
			_ = char.UnwatchProperties(propCh)
		}
	}
	if device != nil {
		if err := device.Disconnect(); err != nil {
			return fmt.Errorf("failed to disconnect paddle: %w", err)
		}
	}
	log.Println("BLE: Paddle disconnected")
	return nil
}

// Close stops scanning and releases the link.
func (c *Central) Close() error {
	c.StopScanning()
	return c.Disconnect()
}
