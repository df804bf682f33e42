package gecko

import (
	"fmt"
	"strings"
)

// ParseHexLine parses one "XXXXXXXX XXXXXXXX" textual command line into
// its 8 raw bytes.
func ParseHexLine(s string) ([8]byte, error) {
	var out [8]byte
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	if len(fields) != 2 || len(fields[0]) != 8 || len(fields[1]) != 8 {
		return out, fmt.Errorf("%w: malformed hex line %q", ErrInvalidCommand, s)
	}
	var a, b uint32
	if _, err := fmt.Sscanf(fields[0], "%08X", &a); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if _, err := fmt.Sscanf(fields[1], "%08X", &b); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	putBE32(out[0:4], a)
	putBE32(out[4:8], b)
	return out, nil
}

// FormatHexLine renders one 8-byte command line as "XXXXXXXX XXXXXXXX".
func FormatHexLine(line []byte) string {
	return fmt.Sprintf("%08X %08X", be32(line[0:4]), be32(line[4:8]))
}

// linesToBytes concatenates a run of textual hex lines into raw bytes.
func linesToBytes(lines []string) ([]byte, error) {
	out := make([]byte, 0, len(lines)*8)
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		b, err := ParseHexLine(l)
		if err != nil {
			return nil, err
		}
		out = append(out, b[:]...)
	}
	return out, nil
}

// bytesToLines groups raw bytes into 8-byte hex lines.
func bytesToLines(data []byte) []string {
	lines := make([]string, 0, len(data)/8)
	for i := 0; i+8 <= len(data); i += 8 {
		lines = append(lines, FormatHexLine(data[i:i+8]))
	}
	return lines
}

// DecodeText decodes a single command (with children, for block kinds)
// from a run of textual hex lines, returning the command and the number
// of lines consumed.
func DecodeText(lines []string) (*Command, int, error) {
	data, err := linesToBytes(lines)
	if err != nil {
		return nil, 0, err
	}
	cmd, n, err := DecodeBinary(data)
	if err != nil {
		return nil, 0, err
	}
	if n%8 != 0 {
		return nil, 0, fmt.Errorf("%w: misaligned text decode", ErrInvalidCommand)
	}
	return cmd, n / 8, nil
}

// EncodeText renders a command (with children) as textual hex lines.
func EncodeText(c *Command) ([]string, error) {
	data, err := EncodeBinary(c)
	if err != nil {
		return nil, err
	}
	return bytesToLines(data), nil
}
