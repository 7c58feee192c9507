package wire

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Upper bound on triple fields: three axes plus a little slack for
// firmware variants that append extras.
const maxTripleFields = 8

// ParseLine decodes one telemetry line. Formats are attempted in a fixed
// order so that mixed firmware variants can share a stream:
//
//  1. "A:<decimal>"            direct angle in degrees
//  2. "<x>,<y>,<z>[,]"         raw triple, angle derived via axes
//  3. "L:1" / "R:1"            legacy discrete trigger
//
// Anything else fails with ErrUnrecognizedFormat. Parse failures never carry
// partial results; callers keep their previous state.
func ParseLine(line []byte, axes AxisMap, now time.Time) (Message, error) {
	line = bytes.TrimSpace(line)

	if len(line) >= 2 && line[0] == 'A' && line[1] == ':' {
		angle, err := strconv.ParseFloat(string(line[2:]), 64)
		// ParseFloat accepts "Inf" and "NaN"; neither is a paddle angle.
		if err != nil || math.IsNaN(angle) || math.IsInf(angle, 0) {
			return Message{}, fmt.Errorf("%w: %q", ErrMalformedAngle, line)
		}
		return Message{
			Kind:    KindReading,
			Reading: Reading{Angle: NormalizeAngle(angle), At: now},
		}, nil
	}

	if bytes.IndexByte(line, ',') >= 0 {
		return parseTriple(line, axes, now)
	}

	switch string(line) {
	case "L:1":
		return Message{Kind: KindDiscrete, Side: SideLeft}, nil
	case "R:1":
		return Message{Kind: KindDiscrete, Side: SideRight}, nil
	}

	return Message{}, fmt.Errorf("%w: %q", ErrUnrecognizedFormat, line)
}

// parseTriple decodes ">=3 comma-delimited decimals", tolerating one trailing
// empty field ("0.1,0.2,9.8," is a common firmware framing).
func parseTriple(line []byte, axes AxisMap, now time.Time) (Message, error) {
	var fields [maxTripleFields]float64
	n := 0

	rest := line
	for len(rest) > 0 && n < maxTripleFields {
		i := bytes.IndexByte(rest, ',')
		var field []byte
		if i < 0 {
			field, rest = rest, nil
		} else {
			field, rest = rest[:i], rest[i+1:]
		}
		if len(field) == 0 && len(rest) == 0 {
			break // trailing comma
		}
		v, err := strconv.ParseFloat(string(bytes.TrimSpace(field)), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Message{}, fmt.Errorf("%w: field %d of %q", ErrMalformedTriple, n, line)
		}
		fields[n] = v
		n++
	}

	if n < 3 {
		return Message{}, fmt.Errorf("%w: %d fields in %q", ErrMalformedTriple, n, line)
	}

	num, den := axes.Numerator, axes.Denominator
	if num < 0 || num >= n || den < 0 || den >= n {
		return Message{}, fmt.Errorf("%w: axis map (%d,%d) outside %d fields",
			ErrMalformedTriple, num, den, n)
	}

	angle := math.Atan2(fields[num], fields[den]) * 180 / math.Pi
	return Message{
		Kind:    KindReading,
		Reading: Reading{Angle: NormalizeAngle(angle), At: now},
	}, nil
}
