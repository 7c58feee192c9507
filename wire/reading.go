// Package wire implements the paddle's textual telemetry formats: the
// direct-angle line, the raw accelerometer triple, and the legacy discrete
// trigger tokens. The same encoders run on the firmware side, so this package
// stays free of anything the TinyGo toolchain cannot compile.
package wire

import (
	"math"
	"time"
)

// Side identifies a paddle stroke direction.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	}
	return "none"
}

// Reading is a single timestamped paddle angle in degrees, always within
// (-180, 180].
type Reading struct {
	Angle float64
	At    time.Time
}

// Kind discriminates the parse result.
type Kind int

const (
	// KindReading is a continuous angle sample.
	KindReading Kind = iota
	// KindDiscrete is a legacy L:1 / R:1 trigger token.
	KindDiscrete
)

// Message is one decoded telemetry line: either a continuous Reading or a
// legacy discrete trigger for one Side.
type Message struct {
	Kind    Kind
	Reading Reading
	Side    Side
}

// AxisMap selects which fields of a comma triple feed the derived angle:
// angle = atan2(field[Numerator], field[Denominator]). Firmware variants
// disagree on axis order, so the mapping is configuration, not law.
type AxisMap struct {
	Numerator   int `yaml:"numerator"`
	Denominator int `yaml:"denominator"`
}

// DefaultAxisMap matches the reference firmware: atan2(y, z).
func DefaultAxisMap() AxisMap {
	return AxisMap{Numerator: 1, Denominator: 2}
}

// NormalizeAngle wraps a finite angle in degrees into (-180, 180]. Callers
// must reject NaN and infinities before normalizing.
func NormalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}
