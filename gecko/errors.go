package gecko

import "errors"

// Error taxonomy for the codec and container layers.
var (
	// ErrInvalidCommand covers an unknown opcode after masking, or a
	// malformed field such as a register index outside 0-15.
	ErrInvalidCommand = errors.New("gecko: invalid command")
	// ErrMagicMismatch is returned by DecodeCodeTableBinary when its input
	// does not begin with the required magic bytes. The textual decoders
	// do not check for a magic line and never return it.
	ErrMagicMismatch = errors.New("gecko: magic mismatch")
	// ErrTruncatedInput is returned when a variable-length payload extends
	// past the end of the input.
	ErrTruncatedInput = errors.New("gecko: truncated input")
)
