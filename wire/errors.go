package wire

import "errors"

var (
	// ErrMalformedAngle indicates an "A:" line whose numeric suffix did not parse.
	ErrMalformedAngle = errors.New("malformed angle")
	// ErrMalformedTriple indicates a comma line with fewer than three parseable fields.
	ErrMalformedTriple = errors.New("malformed triple")
	// ErrUnrecognizedFormat indicates a line matching none of the known formats.
	ErrUnrecognizedFormat = errors.New("unrecognized format")
)
