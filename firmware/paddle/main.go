//go:build tinygo

// Paddle firmware: samples the IMU at a fixed cadence, frames each reading
// in the paddle wire format, and pushes it through the telemetry notify
// characteristic while a client is attached. On disconnect it restarts
// advertising after a short guard delay.
package main

import (
	"machine"
	"math"
	"time"

	"tinygo.org/x/bluetooth"
	"tinygo.org/x/drivers/bno08x"

	"github.com/noorbagus/asdp-boat-sub002/wire"
)

const (
	localName = "ASDP-Paddle"

	samplePeriod = 25 * time.Millisecond
	// Microseconds between IMU reports, matched to the sample loop.
	reportInterval = 25000

	// Guard delay before re-advertising, to avoid racing the radio
	// stack's connection teardown.
	advRestartGuard = 200 * time.Millisecond

	// emitRawTriple switches the outbound format from "A:<angle>" to the
	// raw "<x>,<y>,<z>," triple. The host parser accepts both.
	emitRawTriple = false
)

var (
	serviceUUID = bluetooth.NewUUID([16]byte{
		0x4f, 0xaf, 0xc2, 0x01, 0x1f, 0xb5, 0x45, 0x9e,
		0x8f, 0xcc, 0xc5, 0xc9, 0xc3, 0x31, 0x91, 0x4b})
	telemetryUUID = bluetooth.NewUUID([16]byte{
		0xbe, 0xb5, 0x48, 0x3e, 0x36, 0xe1, 0x46, 0x88,
		0xb7, 0xf5, 0xea, 0x07, 0x36, 0x1b, 0x26, 0xa8})
)

var (
	adapter       = bluetooth.DefaultAdapter
	telemetryChar bluetooth.Characteristic

	// attached is the sole state shared between the connect callback and
	// the sample loop: single bit, single writer, single periodic reader.
	attached bool

	// trimDeg is an angle offset set over the write characteristic.
	trimDeg int8
)

func main() {
	// Let the host side of the USB serial settle before the first prints.
	time.Sleep(2 * time.Second)

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz}); err != nil {
		fatal(led, "I2C configure failed: "+err.Error())
	}

	sensor := bno08x.NewI2C(i2c)
	if err := sensor.Configure(bno08x.Config{}); err != nil {
		// No telemetry can be trusted without a working IMU; halt rather
		// than emit garbage.
		fatal(led, "sensor init failed: "+err.Error())
	}
	if err := sensor.EnableReport(bno08x.SensorAccelerometer, reportInterval); err != nil {
		fatal(led, "enable accelerometer failed: "+err.Error())
	}
	println("paddle: sensor ready")

	must("enable BLE stack", adapter.Enable())

	adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		attached = connected
	})

	must("add service", adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &telemetryChar,
				UUID:   telemetryUUID,
				Flags: bluetooth.CharacteristicReadPermission |
					bluetooth.CharacteristicNotifyPermission |
					bluetooth.CharacteristicWritePermission |
					bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: handleCommand,
			},
		},
	}))

	adv := adapter.DefaultAdvertisement()
	must("config adv", adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    localName,
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	}))
	must("start adv", adv.Start())
	println("paddle: advertising as", localName)

	buf := make([]byte, 0, 48)
	wasAttached := false

	for {
		time.Sleep(samplePeriod)

		if attached != wasAttached {
			wasAttached = attached
			if attached {
				println("paddle: client attached")
				trimDeg = 0
			} else {
				println("paddle: client detached, re-advertising")
				time.Sleep(advRestartGuard)
				if err := adv.Start(); err != nil {
					println("paddle: adv restart failed:", err.Error())
				}
				continue
			}
		}

		event, ok := sensor.GetSensorEvent()
		if !ok || event.ID() != bno08x.SensorAccelerometer {
			continue
		}
		if !attached {
			continue
		}

		v := event.Accelerometer()

		buf = buf[:0]
		if emitRawTriple {
			buf = wire.AppendTriple(buf, float64(v.X), float64(v.Y), float64(v.Z))
		} else {
			angle := math.Atan2(float64(v.Y), float64(v.Z)) * 180 / math.Pi
			angle = wire.NormalizeAngle(angle + float64(trimDeg))
			buf = wire.AppendAngle(buf, angle)
		}

		if _, err := telemetryChar.Write(buf); err != nil {
			println("paddle: notify failed:", err.Error())
		}
	}
}

// handleCommand interprets the two-byte host command: byte 0 selects the
// command, byte 1 carries its argument. 0x01 sets the angle trim in degrees.
func handleCommand(client bluetooth.Connection, offset int, value []byte) {
	if offset != 0 || len(value) < 2 {
		return
	}
	switch value[0] {
	case 0x01:
		trimDeg = int8(value[1])
		println("paddle: trim set to", trimDeg)
	}
}

// fatal signals an unrecoverable condition on the LED and halts. The sample
// loop never starts.
func fatal(led machine.Pin, msg string) {
	println("paddle: FATAL:", msg)
	for {
		led.High()
		time.Sleep(150 * time.Millisecond)
		led.Low()
		time.Sleep(150 * time.Millisecond)
	}
}

func must(action string, err error) {
	if err != nil {
		panic("failed to " + action + ": " + err.Error())
	}
}
