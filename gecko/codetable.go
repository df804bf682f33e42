package gecko

import (
	"fmt"
	"strings"
)

// TextType is the textual codelist flavor, detected by a one-pass sniff
// of the first non-empty line.
type TextType int

const (
	Unknown TextType = iota
	Dolphin
	Ocarina
	Raw
)

func (t TextType) String() string {
	switch t {
	case Dolphin:
		return "Dolphin"
	case Ocarina:
		return "Ocarina"
	case Raw:
		return "Raw"
	default:
		return "Unknown"
	}
}

var (
	magicBytes      = []byte{0x00, 0xD0, 0xC0, 0xDE, 0x00, 0xD0, 0xC0, 0xDE}
	terminatorBytes = []byte{0xF0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

// CodeTable is an ordered collection of named Codes plus game metadata.
// Iteration order equals insertion order.
type CodeTable struct {
	GameID   string
	GameName string

	order []string
	codes map[string]*Code
}

// NewCodeTable returns an empty table for the given game.
func NewCodeTable(gameID, gameName string) *CodeTable {
	return &CodeTable{GameID: gameID, GameName: gameName, codes: map[string]*Code{}}
}

// AddCode appends code, preserving insertion order. A second Add of the
// same name replaces the existing entry in place, not at the end.
func (t *CodeTable) AddCode(code *Code) {
	if t.codes == nil {
		t.codes = map[string]*Code{}
	}
	if _, exists := t.codes[code.Name]; !exists {
		t.order = append(t.order, code.Name)
	}
	t.codes[code.Name] = code
}

// Code returns the named code, if present.
func (t *CodeTable) Code(name string) (*Code, bool) {
	c, ok := t.codes[name]
	return c, ok
}

// RemoveCode deletes the named code, returning whether it existed.
func (t *CodeTable) RemoveCode(name string) bool {
	if _, ok := t.codes[name]; !ok {
		return false
	}
	delete(t.codes, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Codes returns every code in insertion order.
func (t *CodeTable) Codes() []*Code {
	out := make([]*Code, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.codes[n])
	}
	return out
}

// VirtualLength is the table's length in 8-byte lines, the magic and
// terminator included.
func (t *CodeTable) VirtualLength() int {
	total := 2 // magic and terminator
	for _, c := range t.Codes() {
		total += c.VirtualLength()
	}
	return total
}

// Hash is the multiset-sum of the table's Code hashes: two tables with
// the same codes in any order hash equally.
func (t *CodeTable) Hash() uint64 {
	var sum uint64
	for _, c := range t.Codes() {
		sum += c.Hash()
	}
	return sum
}

// Equal reports whether t and other have the same multiset-sum of Code
// hashes.
func (t *CodeTable) Equal(other *CodeTable) bool {
	return t.Hash() == other.Hash()
}

// EncodeBinary renders the magic, the flattened commands of every code
// in order, and the terminator. The binary GCT form carries no
// per-code boundaries or names; that information lives only in the
// textual presentations.
func (t *CodeTable) EncodeBinary() ([]byte, error) {
	out := append([]byte(nil), magicBytes...)
	for _, c := range t.Codes() {
		b, err := c.EncodeBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	out = append(out, terminatorBytes...)
	return out, nil
}

// DecodeCodeTableBinary decodes a magic-prefixed, terminator-suffixed
// binary codelist. Because the binary form has no code-name boundaries,
// the result is a table holding a single unnamed Code with the full
// flattened command sequence.
//
// Decoding is best-effort: on a malformed command the loop stops and the
// commands accumulated so far are kept. An error is returned only when
// the magic is missing or nothing at all could be decoded.
func DecodeCodeTableBinary(data []byte) (*CodeTable, error) {
	if len(data) < 8 || string(data[:8]) != string(magicBytes) {
		return nil, ErrMagicMismatch
	}
	body := data[8:]
	code, _, err := DecodeCodeBinary(body)
	if err != nil && len(code.Commands) == 0 {
		return nil, err
	}
	t := NewCodeTable("", "")
	t.AddCode(code)
	return t, nil
}

// PrintMap renders a human-readable, indented map of every code and its
// command tree, width spaces per nesting level, followed by a closing
// EXIT line for the table terminator.
func (t *CodeTable) PrintMap(width int) []string {
	var lines []string
	for _, c := range t.Codes() {
		header := c.Name
		if c.Author != "" {
			header = fmt.Sprintf("%s [%s]", c.Name, c.Author)
		}
		lines = append(lines, header)
		for _, cmd := range c.Commands {
			lines = append(lines, DescribeTree(cmd, 1, width)...)
		}
	}
	lines = append(lines, Exit.String())
	return lines
}

// DetectCodelistType sniffs the first non-empty, trimmed line of text.
func DetectCodelistType(text string) TextType {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "[Gecko]" {
			return Dolphin
		}
		if len(line) == 6 {
			return Ocarina
		}
		return Raw
	}
	return Unknown
}

// DecodeCodeTableText parses any of the three textual flavors,
// auto-detected. Parsing is best-effort: a malformed command line drops
// the remainder of that code's hex block and moves on, matching the
// historical tools this format comes from.
func DecodeCodeTableText(text string) (*CodeTable, error) {
	switch DetectCodelistType(text) {
	case Dolphin:
		return decodeDolphin(text, false)
	case Ocarina:
		return decodeOcarina(text, false)
	default:
		return decodeRaw(text, false)
	}
}

// DecodeCodeTableTextStrict parses like DecodeCodeTableText but fails on
// the first malformed command line instead of dropping it.
func DecodeCodeTableTextStrict(text string) (*CodeTable, error) {
	switch DetectCodelistType(text) {
	case Dolphin:
		return decodeDolphin(text, true)
	case Ocarina:
		return decodeOcarina(text, true)
	default:
		return decodeRaw(text, true)
	}
}

// AsText renders the table in the requested flavor.
func (t *CodeTable) AsText(flavor TextType) (string, error) {
	switch flavor {
	case Dolphin:
		return t.asDolphin(), nil
	case Ocarina:
		return t.asOcarina(), nil
	case Raw:
		return t.asRaw(), nil
	default:
		return "", fmt.Errorf("%w: unknown text flavor", ErrInvalidCommand)
	}
}

// AsCodelist renders the canonical textual binary-container form:
// magic line, the hex lines of every command (payload and children
// included), terminator line.
func (t *CodeTable) AsCodelist() (string, error) {
	var b strings.Builder
	b.WriteString(FormatHexLine(magicBytes))
	b.WriteString("\n")
	for _, c := range t.Codes() {
		for _, cmd := range c.Commands {
			lines, err := EncodeText(cmd)
			if err != nil {
				return "", err
			}
			for _, l := range lines {
				b.WriteString(l)
				b.WriteString("\n")
			}
		}
	}
	b.WriteString(FormatHexLine(terminatorBytes))
	return b.String(), nil
}

// --- Dolphin flavor ---

func parseDolphinHeader(line string) (name, author string, volatile bool) {
	line = strings.TrimPrefix(line, "$")
	if idx := strings.Index(line, "[[volatile]]"); idx >= 0 {
		volatile = true
		line = strings.TrimSpace(line[:idx])
	}
	if open := strings.Index(line, "["); open >= 0 {
		shut := strings.LastIndex(line, "]")
		if shut > open {
			author = line[open+1 : shut]
			line = line[:open]
		}
	}
	name = strings.TrimSpace(line)
	return
}

// flushCodeHex decodes the buffered hex lines into code's command list.
// Commands decoded before the first malformed line are kept; the rest of
// the buffer is dropped unless strict is set, in which case the error is
// surfaced instead.
func flushCodeHex(code *Code, hexBuf []string, strict bool) error {
	if code == nil || len(hexBuf) == 0 {
		return nil
	}
	var data []byte
	var lineErr error
	for _, l := range hexBuf {
		b, err := ParseHexLine(l)
		if err != nil {
			lineErr = err
			break
		}
		data = append(data, b[:]...)
	}
	if strict && lineErr != nil {
		return lineErr
	}
	for len(data) > 0 {
		cmd, n, err := DecodeBinary(data)
		if err != nil {
			if strict {
				return err
			}
			return nil
		}
		code.Commands = append(code.Commands, cmd)
		data = data[n:]
	}
	return nil
}

func decodeDolphin(text string, strict bool) (*CodeTable, error) {
	t := NewCodeTable("", "")
	lines := strings.Split(text, "\n")

	inEnabled := false
	var cur *Code
	var hexBuf []string

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || trimmed == "[Gecko]":
			continue
		case trimmed == "[Gecko_Enabled]":
			if err := flushCodeHex(cur, hexBuf, strict); err != nil {
				return nil, err
			}
			hexBuf = nil
			inEnabled = true
			continue
		case inEnabled:
			if strings.HasPrefix(trimmed, "$") {
				if c, ok := t.Code(strings.TrimPrefix(trimmed, "$")); ok {
					c.Enabled = true
				}
			}
		case strings.HasPrefix(trimmed, "$"):
			if err := flushCodeHex(cur, hexBuf, strict); err != nil {
				return nil, err
			}
			name, author, volatile := parseDolphinHeader(trimmed)
			cur = NewCode(name)
			cur.Author = author
			cur.Enabled = false
			cur.PreApplicable = !volatile
			t.AddCode(cur)
			hexBuf = nil
		case strings.HasPrefix(trimmed, "*"):
			if cur != nil {
				cur.Description = append(cur.Description, strings.TrimPrefix(trimmed, "*"))
			}
		default:
			hexBuf = append(hexBuf, trimmed)
		}
	}
	if err := flushCodeHex(cur, hexBuf, strict); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *CodeTable) asDolphin() string {
	var b strings.Builder
	b.WriteString("[Gecko]\n")
	for _, c := range t.Codes() {
		header := "$" + c.Name
		if c.Author != "" {
			header += fmt.Sprintf(" [%s]", c.Author)
		}
		if !c.PreApplicable {
			header += " [[volatile]]"
		}
		b.WriteString(header + "\n")
		for _, cmd := range c.Commands {
			lines, _ := EncodeText(cmd)
			for _, l := range lines {
				b.WriteString(l + "\n")
			}
		}
		for _, d := range c.Description {
			b.WriteString("*" + d + "\n")
		}
	}
	b.WriteString("[Gecko_Enabled]\n")
	for _, c := range t.Codes() {
		if c.Enabled {
			b.WriteString("$" + c.Name + "\n")
		}
	}
	return b.String()
}

// --- Ocarina flavor ---

func isOcarinaHexLine(trimmed string) (string, bool) {
	if !strings.HasPrefix(trimmed, "*") {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "*"))
	if len(rest) == 17 {
		return rest, true
	}
	return "", false
}

func decodeOcarina(text string, strict bool) (*CodeTable, error) {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return nil, ErrTruncatedInput
	}
	gameID := strings.TrimSpace(lines[0])
	gameName := strings.TrimSpace(lines[1])
	t := NewCodeTable(gameID, gameName)

	var cur *Code
	var hexBuf []string

	for _, raw := range lines[2:] {
		trimmed := strings.TrimSpace(strings.TrimRight(raw, "\r"))
		if trimmed == "" {
			if err := flushCodeHex(cur, hexBuf, strict); err != nil {
				return nil, err
			}
			cur = nil
			hexBuf = nil
			continue
		}
		if hex, ok := isOcarinaHexLine(trimmed); ok {
			hexBuf = append(hexBuf, hex)
			continue
		}
		if strings.HasPrefix(trimmed, "*") {
			if cur != nil {
				cur.Description = append(cur.Description, strings.TrimSpace(strings.TrimPrefix(trimmed, "*")))
			}
			continue
		}
		// a new code header
		if err := flushCodeHex(cur, hexBuf, strict); err != nil {
			return nil, err
		}
		name, author, volatile := parseDolphinHeader(trimmed)
		cur = NewCode(name)
		cur.Author = author
		cur.Enabled = true
		cur.PreApplicable = !volatile
		t.AddCode(cur)
		hexBuf = nil
	}
	if err := flushCodeHex(cur, hexBuf, strict); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *CodeTable) asOcarina() string {
	var b strings.Builder
	b.WriteString(t.GameID + "\n")
	b.WriteString(t.GameName + "\n\n")
	for _, c := range t.Codes() {
		header := c.Name
		if c.Author != "" {
			header += fmt.Sprintf(" [%s]", c.Author)
		}
		if !c.PreApplicable {
			header += " [[volatile]]"
		}
		b.WriteString(header + "\n")
		for _, cmd := range c.Commands {
			lines, _ := EncodeText(cmd)
			for _, l := range lines {
				b.WriteString("* " + l + "\n")
			}
		}
		for _, d := range c.Description {
			b.WriteString("*" + d + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// --- Raw flavor ---

func decodeRaw(text string, strict bool) (*CodeTable, error) {
	t := NewCodeTable("", "")
	groups := strings.Split(text, "\n\n")
	idx := 0
	for _, g := range groups {
		var hexBuf []string
		for _, raw := range strings.Split(g, "\n") {
			trimmed := strings.TrimSpace(raw)
			if trimmed != "" {
				hexBuf = append(hexBuf, trimmed)
			}
		}
		if len(hexBuf) == 0 {
			continue
		}
		idx++
		code := NewCode(fmt.Sprintf("Code %d", idx))
		if err := flushCodeHex(code, hexBuf, strict); err != nil {
			return nil, err
		}
		t.AddCode(code)
	}
	return t, nil
}

func (t *CodeTable) asRaw() string {
	var b strings.Builder
	codes := t.Codes()
	for i, c := range codes {
		for _, cmd := range c.Commands {
			lines, _ := EncodeText(cmd)
			for _, l := range lines {
				b.WriteString(l + "\n")
			}
		}
		if i != len(codes)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Apply pre-applies every code in the table against img, in insertion
// order, returning the logical OR of all per-code results.
func (t *CodeTable) Apply(img Image) bool {
	applied := false
	for _, c := range t.Codes() {
		if c.Apply(img) {
			applied = true
		}
	}
	return applied
}
