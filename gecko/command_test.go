package gecko_test

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/Urethramancer/geckolist/gecko"
)

// decodeAndMatch decodes hexIn, re-encodes it, and checks the output is
// byte-identical to the input, then applies the given checks to the
// decoded command.
func decodeAndMatch(t *testing.T, name, hexIn string, check func(t *testing.T, c *gecko.Command)) {
	t.Helper()

	hexIn = strings.ToLower(strings.Join(strings.Fields(hexIn), ""))
	in, err := hex.DecodeString(hexIn)
	if err != nil {
		t.Fatalf("[%s] invalid input hex: %v", name, err)
	}

	cmd, n, err := gecko.DecodeBinary(in)
	if err != nil {
		t.Fatalf("[%s] decode failed: %v", name, err)
	}
	if n != len(in) {
		t.Fatalf("[%s] consumed %d bytes, want %d", name, n, len(in))
	}
	if check != nil {
		check(t, cmd)
	}

	out, err := gecko.EncodeBinary(cmd)
	if err != nil {
		t.Fatalf("[%s] encode failed: %v", name, err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("[%s] round trip mismatch\n in: % X\nout: % X", name, in, out)
	}
}

func TestWrite32RoundTrip(t *testing.T) {
	decodeAndMatch(t, "WRITE_32", "04123456 DEADBEEF", func(t *testing.T, c *gecko.Command) {
		if c.Kind != gecko.Write32 {
			t.Errorf("kind = %s, want WRITE_32", c.Kind)
		}
		if c.Address != 0x123456 {
			t.Errorf("address = 0x%X, want 0x123456", c.Address)
		}
		if c.Value != 0xDEADBEEF {
			t.Errorf("value = 0x%X, want 0xDEADBEEF", c.Value)
		}
		if c.IsPointer {
			t.Errorf("isPointer = true, want false")
		}
	})
}

func TestWrite8RepeatRoundTrip(t *testing.T) {
	decodeAndMatch(t, "WRITE_8", "00003000 00050042", func(t *testing.T, c *gecko.Command) {
		if c.Kind != gecko.Write8 || c.Value != 0x42 || c.Repeat != 5 {
			t.Errorf("unexpected fields: %+v", c)
		}
	})
}

func TestWrite16PointerRoundTrip(t *testing.T) {
	decodeAndMatch(t, "WRITE_16_PTR", "12003000 00000042", func(t *testing.T, c *gecko.Command) {
		if c.Kind != gecko.Write16 || !c.IsPointer {
			t.Errorf("unexpected fields: %+v", c)
		}
	})
}

func TestWriteStrRoundTrip(t *testing.T) {
	// "HELLO" padded to 8 bytes with NULs.
	decodeAndMatch(t, "WRITE_STR", "06003000 00000005 48454C4C 4F000000", func(t *testing.T, c *gecko.Command) {
		if c.Kind != gecko.WriteStr {
			t.Fatalf("kind = %s, want WRITE_STR", c.Kind)
		}
		if string(c.Bytes) != "HELLO" {
			t.Errorf("bytes = %q, want %q", c.Bytes, "HELLO")
		}
	})
}

func TestWriteSerialRoundTrip(t *testing.T) {
	decodeAndMatch(t, "WRITE_SERIAL",
		"08003000 00000001 20000004 00000010",
		func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.WriteSerial {
				t.Fatalf("kind = %s, want WRITE_SERIAL", c.Kind)
			}
			if c.ValueSize != 2 || c.AddressInc != 4 || c.ValueInc != 0x10 {
				t.Errorf("unexpected fields: %+v", c)
			}
		})
}

func TestIfEqual32WithChildAndTerminator(t *testing.T) {
	// IF_EQ_32 at 0x3000 (endif set), one WRITE_8 child, then a sibling
	// TERMINATOR which must NOT be consumed as part of the block.
	in, err := hex.DecodeString(strings.ToLower(strings.Join(strings.Fields(
		"20003001 00000005 "+ // IF_EQ_32 addr=0x3000 endif=1 value=5
			"00003100 00000001 "+ // WRITE_8 child
			"E0000000 00000000", // TERMINATOR sibling
	), "")))
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}

	cmd, n, err := gecko.DecodeBinary(in)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != 16 {
		t.Fatalf("consumed %d bytes, want 16 (terminator left for caller)", n)
	}
	if cmd.Kind != gecko.IfEqual32 || !cmd.Endif {
		t.Fatalf("unexpected header: %+v", cmd)
	}
	if len(cmd.Children) != 1 || cmd.Children[0].Kind != gecko.Write8 {
		t.Fatalf("unexpected children: %+v", cmd.Children)
	}

	out, err := gecko.EncodeBinary(cmd)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(out, in[:16]) {
		t.Errorf("round trip mismatch\n in: % X\nout: % X", in[:16], out)
	}
}

func TestAsmInsertAppendsNop(t *testing.T) {
	blob := make([]byte, 8) // one exact 8-byte line, non-empty
	blob[0] = 0x7C
	cmd := &gecko.Command{Kind: gecko.AsmInsert, Address: 0x1000, Bytes: blob}

	out, err := gecko.EncodeBinary(cmd)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(out) != 8+16 { // header + (original 8 + nop 4, padded to 16)
		t.Fatalf("length = %d, want %d", len(out), 8+16)
	}
	nopOffset := 8 + 8 // past the header and the original 8-byte blob
	if !bytes.Equal(out[nopOffset:nopOffset+4], []byte{0x60, 0x00, 0x00, 0x00}) {
		t.Errorf("missing appended nop at offset %d: % X", nopOffset, out)
	}

	decoded, _, err := gecko.DecodeBinary(out)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded.Bytes) != 16 {
		t.Errorf("decoded payload length = %d, want 16", len(decoded.Bytes))
	}
}

func TestAsmExecuteNoNopAppended(t *testing.T) {
	// ASM_EXECUTE is not in the ASM_INSERT* family, no nop padding rule.
	blob := make([]byte, 8)
	cmd := &gecko.Command{Kind: gecko.AsmExecute, Address: 0x1000, Bytes: blob}
	out, err := gecko.EncodeBinary(cmd)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(out) != 16 {
		t.Fatalf("length = %d, want 16 (no nop appended)", len(out))
	}
}

func TestRegisterOutOfRangeRejected(t *testing.T) {
	cmd := &gecko.Command{Kind: gecko.GeckoRegSet, Register: 0x1F}
	if _, err := gecko.EncodeBinary(cmd); err == nil {
		t.Fatal("expected error for out-of-range register, got nil")
	}
}

func TestUnknownOpcodeRejected(t *testing.T) {
	in := []byte{0x0A, 0, 0, 0, 0, 0, 0, 0} // 0x0A is not a member of the taxonomy
	if _, _, err := gecko.DecodeBinary(in); err == nil {
		t.Fatal("expected error for unknown opcode, got nil")
	}
}

func TestTruncatedWriteStrRejected(t *testing.T) {
	// Claims 64 bytes of string payload but supplies none.
	in, _ := hex.DecodeString("06003000" + "00000040")
	if _, _, err := gecko.DecodeBinary(in); err == nil {
		t.Fatal("expected truncated-input error, got nil")
	}
}

func TestBrainslugSearchWithChildren(t *testing.T) {
	pattern := make([]byte, 16) // two lines
	for i := range pattern {
		pattern[i] = byte(i)
	}
	search := &gecko.Command{
		Kind:        gecko.BrainslugSearch,
		Bytes:       pattern,
		SearchRange: [2]uint16{0x8000, 0x8100},
		Children: []*gecko.Command{
			{Kind: gecko.Write32, Address: 0x1000, Value: 1},
			{Kind: gecko.Write32, Address: 0x1004, Value: 2},
		},
	}
	out, err := gecko.EncodeBinary(search)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	// A real codelist always follows a block with a sibling Terminator or
	// Exit; decodeChildren needs one to know where the block ends.
	terminator, err := gecko.EncodeBinary(&gecko.Command{Kind: gecko.Terminator})
	if err != nil {
		t.Fatalf("encoding terminator failed: %v", err)
	}
	withTerminator := append(append([]byte(nil), out...), terminator...)

	decoded, n, err := gecko.DecodeBinary(withTerminator)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != len(out) {
		t.Fatalf("consumed %d bytes, want %d (terminator left unconsumed)", n, len(out))
	}
	if len(decoded.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(decoded.Children))
	}
	if decoded.SearchRange != search.SearchRange {
		t.Errorf("search range = %v, want %v", decoded.SearchRange, search.SearchRange)
	}
}

func TestBaseAddressFamilyRoundTrip(t *testing.T) {
	tests := []struct {
		name, hex string
		check     func(t *testing.T, c *gecko.Command)
	}{
		{"BASE_ADDR_LOAD", "40011003 80003000", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.BaseAddrLoad || c.Flags != 0x011 || c.Register != 3 || c.Value != 0x80003000 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"BASE_ADDR_SET_PTR", "52100000 00500000", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.BaseAddrSet || !c.IsPointer || c.Flags != 0x100 || c.Register != 0 || c.Value != 0x00500000 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"BASE_ADDR_STORE", "44010001 80001000", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.BaseAddrStore || c.Flags != 0x010 || c.Register != 1 || c.Value != 0x80001000 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"BASE_GET_NEXT", "460000F0 00000000", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.BaseGetNext || c.Value != 0xF0 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"PTR_ADDR_LOAD", "48000000 80003FF8", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.PtrAddrLoad || c.Flags != 0 || c.Value != 0x80003FF8 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"PTR_ADDR_SET", "4A001005 80300000", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.PtrAddrSet || c.Flags != 0x001 || c.Register != 5 || c.Value != 0x80300000 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"PTR_ADDR_STORE", "4C011002 80001004", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.PtrAddrStore || c.Flags != 0x011 || c.Register != 2 || c.Value != 0x80001004 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"PTR_GET_NEXT", "4E000010 00000000", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.PtrGetNext || c.Value != 0x10 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
	}
	for _, tt := range tests {
		decodeAndMatch(t, tt.name, tt.hex, tt.check)
	}
}

func TestFlowControlRoundTrip(t *testing.T) {
	tests := []struct {
		name, hex string
		check     func(t *testing.T, c *gecko.Command)
	}{
		{"REPEAT_SET", "60000020 00000004", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.RepeatSet || c.Repeat != 0x20 || c.Register != 4 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"REPEAT_EXEC", "62000000 00000004", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.RepeatExec || c.Register != 4 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"RETURN", "64200000 00000008", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.Return || c.Flags != 2 || c.Register != 8 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"GOTO", "66100005 00000000", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.Goto || c.Flags != 1 || c.Offset != 5 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
		{"GOSUB", "68000003 00000009", func(t *testing.T, c *gecko.Command) {
			if c.Kind != gecko.Gosub || c.Flags != 0 || c.Offset != 3 || c.Register != 9 {
				t.Errorf("unexpected fields: %+v", c)
			}
		}},
	}
	for _, tt := range tests {
		decodeAndMatch(t, tt.name, tt.hex, tt.check)
	}
}

func TestCounterIfRoundTrip(t *testing.T) {
	// Counter conditionals have no address or pointer form: the counter
	// sits in metadata bits 4-19 and the flag bits (reset-on-true,
	// apply-endif) in bits 0 and 3.
	decodeAndMatch(t, "COUNTER_IF_EQ_16", "A8001239 FF000001", func(t *testing.T, c *gecko.Command) {
		if c.Kind != gecko.CounterIfEqual16 {
			t.Fatalf("kind = %s, want COUNTER_IF_EQ_16", c.Kind)
		}
		if c.Counter != 0x123 || c.Flags != 9 || c.Mask != 0xFF00 || c.Value != 1 {
			t.Errorf("unexpected fields: %+v", c)
		}
		if c.IsPointer {
			t.Errorf("counter conditionals have no pointer form")
		}
	})
	decodeAndMatch(t, "COUNTER_IF_NEQ_16", "AA000101 0000FFFF", func(t *testing.T, c *gecko.Command) {
		if c.Kind != gecko.CounterIfNotEqual16 || c.Counter != 0x10 || c.Flags != 1 || c.Mask != 0 || c.Value != 0xFFFF {
			t.Errorf("unexpected fields: %+v", c)
		}
	})
	decodeAndMatch(t, "COUNTER_IF_GT_16", "AC000058 00FF0002", func(t *testing.T, c *gecko.Command) {
		if c.Kind != gecko.CounterIfGreaterThan16 || c.Counter != 5 || c.Flags != 8 || c.Mask != 0xFF || c.Value != 2 {
			t.Errorf("unexpected fields: %+v", c)
		}
	})
	decodeAndMatch(t, "COUNTER_IF_LT_16", "AE000020 00000064", func(t *testing.T, c *gecko.Command) {
		if c.Kind != gecko.CounterIfLesserThan16 || c.Counter != 2 || c.Flags != 0 || c.Mask != 0 || c.Value != 0x64 {
			t.Errorf("unexpected fields: %+v", c)
		}
	})
}

func TestCounterIfWithChildren(t *testing.T) {
	in, err := hex.DecodeString(strings.ToLower(strings.Join(strings.Fields(
		"A8000015 00000001 "+ // COUNTER_IF_EQ_16 counter=1 flags=5(masked to 1) value=1
			"04003000 60000000 "+ // WRITE_32 child
			"E0000000 00000000", // TERMINATOR sibling
	), "")))
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	cmd, n, err := gecko.DecodeBinary(in)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != 16 {
		t.Fatalf("consumed %d bytes, want 16 (terminator left for caller)", n)
	}
	if cmd.Counter != 1 || cmd.Flags != 1 {
		t.Fatalf("unexpected header fields: %+v", cmd)
	}
	if len(cmd.Children) != 1 || cmd.Children[0].Kind != gecko.Write32 {
		t.Fatalf("unexpected children: %+v", cmd.Children)
	}
}

func TestTextRoundTrip(t *testing.T) {
	lines := []string{
		"28003001 00FF0005", // IF_EQ_16 addr=0x3000 endif=1 mask=0x00FF value=5
		"00003100 00000001", // WRITE_8 child
	}
	cmd, n, err := gecko.DecodeText(lines)
	if err != nil {
		t.Fatalf("DecodeText failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("consumed %d lines, want 2", n)
	}
	if cmd.Kind != gecko.IfEqual16 || cmd.Mask != 0x00FF || !cmd.Endif {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	out, err := gecko.EncodeText(cmd)
	if err != nil {
		t.Fatalf("EncodeText failed: %v", err)
	}
	if len(out) != len(lines) {
		t.Fatalf("got %d lines, want %d", len(out), len(lines))
	}
	for i := range lines {
		if out[i] != lines[i] {
			t.Errorf("line %d = %q, want %q", i, out[i], lines[i])
		}
	}
}

func TestAddChildKeepsExitLast(t *testing.T) {
	block := &gecko.Command{Kind: gecko.IfEqual32, Address: 0x3000}
	block.AddChild(&gecko.Command{Kind: gecko.Write8, Address: 0x10})
	block.AddChild(&gecko.Command{Kind: gecko.Exit})
	block.AddChild(&gecko.Command{Kind: gecko.Write8, Address: 0x20})

	if len(block.Children) != 3 {
		t.Fatalf("children = %d, want 3", len(block.Children))
	}
	if block.Children[1].Kind != gecko.Write8 || block.Children[1].Address != 0x20 {
		t.Errorf("new command not inserted before the trailing Exit: %+v", block.Children)
	}
	if block.Children[2].Kind != gecko.Exit {
		t.Errorf("Exit no longer last: %+v", block.Children)
	}
}

func TestNormalizeAddress(t *testing.T) {
	c := &gecko.Command{Kind: gecko.Write32, Address: 0x2123457}
	c.NormalizeAddress()
	if c.Address != 0x123454 {
		t.Errorf("address = 0x%X, want 0x123454", c.Address)
	}
}

func TestKindFromOpcodeMasking(t *testing.T) {
	tests := []struct {
		opcode        uint8
		wantKind      gecko.Kind
		wantIsPointer bool
	}{
		{0x00, gecko.Write8, false},
		{0x10, gecko.Write8, true},
		{0x20, gecko.IfEqual32, false},
		{0x21, gecko.IfEqual32, false}, // low bit is endif, masked off the tag
		{0xC2, gecko.AsmInsert, false},
		{0xF2, gecko.AsmInsertXOR, false},
		{0xF4, gecko.AsmInsertXOR, true},
	}
	for _, tt := range tests {
		k, ptr, err := gecko.KindFromOpcode(tt.opcode)
		if err != nil {
			t.Errorf("opcode 0x%02X: unexpected error %v", tt.opcode, err)
			continue
		}
		if k != tt.wantKind || ptr != tt.wantIsPointer {
			t.Errorf("opcode 0x%02X: got (%s, %t), want (%s, %t)", tt.opcode, k, ptr, tt.wantKind, tt.wantIsPointer)
		}
	}
}
