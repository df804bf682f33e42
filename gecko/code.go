package gecko

import (
	"hash/fnv"
	"strings"
)

// Code is a named, authored, optionally-enabled sequence of commands. It
// is never terminated by an explicit Exit in memory; the owning
// CodeTable appends the global terminator on emission.
type Code struct {
	Name          string
	Author        string
	Description   []string
	Enabled       bool
	PreApplicable bool
	Commands      []*Command
}

// NewCode returns an enabled, pre-applicable Code with no commands.
func NewCode(name string) *Code {
	return &Code{Name: name, Enabled: true, PreApplicable: true}
}

// EncodeBinary serializes every command in order; it carries no header
// or magic of its own (that belongs to the owning CodeTable).
func (code *Code) EncodeBinary() ([]byte, error) {
	var out []byte
	for _, c := range code.Commands {
		b, err := EncodeBinary(c)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// DecodeCodeBinary decodes commands from data until it is exhausted or a
// top-level Exit is reached (left unconsumed, for the caller/CodeTable
// to recognize as the table terminator). On a parse error the commands
// decoded so far are still returned alongside the error, so callers can
// choose between strict and best-effort handling.
func DecodeCodeBinary(data []byte) (*Code, int, error) {
	cur := newCursor(data)
	code := &Code{Enabled: true, PreApplicable: true}
	for cur.remaining() > 0 {
		op, ok := cur.peekOpcode()
		if !ok {
			break
		}
		if k, _, err := KindFromOpcode(op); err == nil && k == Exit {
			break
		}
		c, err := decodeOne(cur)
		if err != nil {
			return code, cur.pos, err
		}
		code.Commands = append(code.Commands, c)
	}
	return code, cur.pos, nil
}

// bodyText renders every command as hex lines, the representation hashed
// for equality purposes (body-equality ignores name/author/description).
func (code *Code) bodyText() []string {
	var lines []string
	for _, c := range code.Commands {
		ls, err := EncodeText(c)
		if err != nil {
			continue
		}
		lines = append(lines, ls...)
	}
	return lines
}

// Hash returns a hash of the textual form of the command sequence plus
// its textual header (name/author), per the equality rule in the
// container design: two Codes with the same Hash are indistinguishable
// as a unit in a CodeTable.
func (code *Code) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(code.Name))
	h.Write([]byte{0})
	h.Write([]byte(code.Author))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(code.bodyText(), "\n")))
	return h.Sum64()
}

// BodyHash hashes only the command sequence, ignoring name/author/description.
func (code *Code) BodyHash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.Join(code.bodyText(), "\n")))
	return h.Sum64()
}

// EqualBody reports whether code and other decode to the same command
// sequence, regardless of name/author/description.
func (code *Code) EqualBody(other *Code) bool {
	return code.BodyHash() == other.BodyHash()
}

// VirtualLength returns the code's length in 8-byte lines, including
// every nested child and payload line.
func (code *Code) VirtualLength() int {
	total := 0
	for _, c := range code.Commands {
		total += commandVirtualLength(c)
	}
	return total
}

func commandVirtualLength(c *Command) int {
	b, err := EncodeBinary(c)
	if err != nil {
		return 0
	}
	return len(b) / 8
}

// Apply pre-applies every statically-applicable command in the code
// against img, in order, returning the logical OR of all per-command
// results. Non-pre-applicable commands (including any inside a block's
// children) are silently skipped and contribute false.
func (code *Code) Apply(img Image) bool {
	if !code.Enabled || !code.PreApplicable {
		return false
	}
	applied := false
	for _, c := range code.Commands {
		if applyCommand(c, img) {
			applied = true
		}
	}
	return applied
}
