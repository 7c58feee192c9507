package wire

import "strconv"

// AppendAngle appends the direct-angle format ("A:-45.0", one decimal place)
// to dst and returns the extended slice.
func AppendAngle(dst []byte, angle float64) []byte {
	dst = append(dst, 'A', ':')
	return strconv.AppendFloat(dst, angle, 'f', 1, 64)
}

// AppendTriple appends the raw triple format ("x,y,z,") to dst. The trailing
// comma matches the reference firmware framing; the parser tolerates it.
func AppendTriple(dst []byte, x, y, z float64) []byte {
	dst = strconv.AppendFloat(dst, x, 'f', 2, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, y, 'f', 2, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, z, 'f', 2, 64)
	return append(dst, ',')
}

// AppendDiscrete appends a legacy trigger token ("L:1" or "R:1").
func AppendDiscrete(dst []byte, side Side) []byte {
	if side == SideRight {
		return append(dst, 'R', ':', '1')
	}
	return append(dst, 'L', ':', '1')
}

// AppendDebugFrame appends the serial-only diagnostic frame
// "G:<gx>,<gy>,<gz>,A:<ax>,<ay>,<az>,T:<temp>". The host parser never
// consumes this; it exists for bench debugging over USB serial.
func AppendDebugFrame(dst []byte, gx, gy, gz, ax, ay, az, temp float64) []byte {
	dst = append(dst, 'G', ':')
	dst = strconv.AppendFloat(dst, gx, 'f', 2, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, gy, 'f', 2, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, gz, 'f', 2, 64)
	dst = append(dst, ',', 'A', ':')
	dst = strconv.AppendFloat(dst, ax, 'f', 2, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, ay, 'f', 2, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, az, 'f', 2, 64)
	dst = append(dst, ',', 'T', ':')
	return strconv.AppendFloat(dst, temp, 'f', 1, 64)
}
