package gecko

import "fmt"

// addressMask returns the alignment mask applied to a command's address
// field, per the natural alignment of its payload width.
func addressMask(k Kind) uint32 {
	switch k {
	case Write32, IfEqual32, IfNotEqual32, IfGreaterThan32, IfLesserThan32:
		return 0x1FFFFFC
	case Write16, IfEqual16, IfNotEqual16, IfGreaterThan16, IfLesserThan16,
		GeckoIfEqual16, GeckoIfNotEqual16, GeckoIfGreaterThan16, GeckoIfLesserThan16,
		WriteBranch:
		// WriteBranch's low bit is the "linked" flag (see Command.Endif),
		// not part of the address.
		return 0x1FFFFFE
	default:
		return 0x1FFFFFF
	}
}

func isConditional32(k Kind) bool {
	switch k {
	case IfEqual32, IfNotEqual32, IfGreaterThan32, IfLesserThan32:
		return true
	}
	return false
}

func isConditional16(k Kind) bool {
	switch k {
	case IfEqual16, IfNotEqual16, IfGreaterThan16, IfLesserThan16:
		return true
	}
	return false
}

func isGeckoConditional16(k Kind) bool {
	switch k {
	case GeckoIfEqual16, GeckoIfNotEqual16, GeckoIfGreaterThan16, GeckoIfLesserThan16:
		return true
	}
	return false
}

func isCounterConditional16(k Kind) bool {
	switch k {
	case CounterIfEqual16, CounterIfNotEqual16, CounterIfGreaterThan16, CounterIfLesserThan16:
		return true
	}
	return false
}

// DecodeBinary decodes a single command (and, for block kinds, its full
// subtree) from the head of data. It returns the command and the number
// of bytes consumed.
func DecodeBinary(data []byte) (*Command, int, error) {
	cur := newCursor(data)
	cmd, err := decodeOne(cur)
	if err != nil {
		return nil, cur.pos, err
	}
	return cmd, cur.pos, nil
}

func decodeOne(cur *cursor) (*Command, error) {
	line, err := cur.takeLine()
	if err != nil {
		return nil, err
	}
	metadata := be32(line[0:4])
	info := be32(line[4:8])
	opcode := uint8(metadata >> 24)

	kind, isPointer, err := KindFromOpcode(opcode)
	if err != nil {
		return nil, fmt.Errorf("%w: opcode 0x%02X", err, opcode)
	}

	c := &Command{Kind: kind, IsPointer: isPointer}
	body := metadata & 0x00FFFFFF

	switch {
	case isConditional32(kind):
		c.Address = body & addressMask(kind)
		c.Endif = metadata&1 != 0
		c.Value = info

	case isConditional16(kind):
		c.Address = body & addressMask(kind)
		c.Endif = metadata&1 != 0
		c.Mask = uint16(info >> 16)
		c.Value = info & 0xFFFF

	case isGeckoConditional16(kind):
		c.Address = body & addressMask(kind)
		c.Endif = metadata&1 != 0
		c.OtherRegister = uint8(info >> 28)
		c.Register = uint8((info >> 24) & 0xF)
		c.Mask = uint16(info & 0xFFFF)

	case isCounterConditional16(kind):
		// No address or pointer concept in this family: the counter lives
		// in metadata bits 4-19, the flag bits (reset-on-true, apply-endif)
		// in bits 0 and 3.
		c.Counter = uint16((body >> 4) & 0xFFFF)
		c.Flags = uint16(body & 9)
		c.Mask = uint16(info >> 16)
		c.Value = info & 0xFFFF

	case kind == Write8:
		c.Address = body & addressMask(kind)
		c.Repeat = uint16(info >> 16)
		c.Value = info & 0xFF

	case kind == Write16:
		c.Address = body & addressMask(kind)
		c.Repeat = uint16(info >> 16)
		c.Value = info & 0xFFFF

	case kind == Write32:
		c.Address = body & addressMask(kind)
		c.Value = info

	case kind == WriteStr:
		c.Address = body & addressMask(kind)
		n := int(info)
		raw, err := cur.takeBytes(align8(n))
		if err != nil {
			return nil, err
		}
		if len(raw) < n {
			return nil, ErrTruncatedInput
		}
		c.Bytes = append([]byte(nil), raw[:n]...)

	case kind == WriteSerial:
		c.Address = body & addressMask(kind)
		c.Value = info
		line2, err := cur.takeLine()
		if err != nil {
			return nil, err
		}
		subinfo := be32(line2[0:4])
		c.ValueSize = uint8(subinfo >> 28)
		c.Repeat = uint16((subinfo >> 16) & 0xFFF)
		c.AddressInc = uint16(subinfo & 0xFFFF)
		c.ValueInc = be32(line2[4:8])

	case kind == BaseAddrLoad, kind == BaseAddrSet, kind == BaseAddrStore,
		kind == PtrAddrLoad, kind == PtrAddrSet, kind == PtrAddrStore:
		// Three flag nibbles in metadata bits 12-23, register in the low
		// nibble; the 32-bit operand is the whole info word.
		c.Flags = uint16((body >> 12) & 0xFFF)
		c.Register = uint8(body & 0xF)
		c.Value = info

	case kind == BaseGetNext, kind == PtrGetNext:
		c.Value = body & 0xFFFF

	case kind == RepeatSet:
		c.Repeat = uint16(body & 0xFFFF)
		c.Register = uint8(info & 0xF)

	case kind == RepeatExec:
		c.Register = uint8(info & 0xF)

	case kind == Return:
		c.Flags = uint16((body >> 20) & 0x3)
		c.Register = uint8(info & 0xF)

	case kind == Goto:
		c.Flags = uint16((body >> 20) & 0x3)
		c.Offset = uint16(body & 0xFFFF)

	case kind == Gosub:
		c.Flags = uint16((body >> 20) & 0x3)
		c.Offset = uint16(body & 0xFFFF)
		c.Register = uint8(info & 0xF)

	case kind == GeckoRegSet:
		c.Register = uint8(body & 0xF)
		c.Value = info

	case kind == GeckoRegLoad:
		c.Register = uint8((body >> 20) & 0xF)
		c.Address = body & 0xFFFFF

	case kind == GeckoRegStore:
		c.Flags = uint16((body >> 12) & 0xFF)
		c.Repeat = uint16((body >> 4) & 0xFF)
		c.Register = uint8(body & 0xF)
		c.Address = info

	case kind == GeckoRegOperateI:
		c.ArithOp = ArithmeticType((body >> 20) & 0xF)
		c.Register = uint8((body >> 16) & 0xF)
		c.Value = info

	case kind == GeckoRegOperate:
		c.ArithOp = ArithmeticType((body >> 20) & 0xF)
		c.Register = uint8((body >> 16) & 0xF)
		c.OtherRegister = uint8((body >> 12) & 0xF)

	case kind == MemCopy1, kind == MemCopy2:
		c.Register = uint8((body >> 20) & 0xF)
		c.OtherRegister = uint8((body >> 16) & 0xF)
		c.Size = uint16(info)

	case kind == AsmExecute, kind == AsmInsert, kind == AsmInsertLink:
		c.Address = body & addressMask(kind)
		n := int(info)
		raw, err := cur.takeBytes(n * 8)
		if err != nil {
			return nil, err
		}
		c.Bytes = append([]byte(nil), raw...)

	case kind == WriteBranch:
		c.Address = body & addressMask(kind)
		c.Endif = metadata&1 != 0 // doubles as the "linked" flag
		c.Value = info

	case kind == Switch:
		c.Flags = uint16(body & 0xFF)

	case kind == AddrRangeCheck:
		c.Address = body & addressMask(kind)
		c.Value = info

	case kind == Terminator:
		// no body

	case kind == Endif:
		c.AsElse = (body>>20)&1 != 0
		c.NumEndifs = uint8(body & 0xFF)

	case kind == Exit:
		// no body

	case kind == AsmInsertXOR:
		c.Address = body & addressMask(kind)
		n := int(info)
		line2, err := cur.takeLine()
		if err != nil {
			return nil, err
		}
		xorWord := be32(line2[0:4])
		c.XorCount = uint8(xorWord >> 16)
		c.Mask = uint16(xorWord & 0xFFFF)
		raw, err := cur.takeBytes(n * 8)
		if err != nil {
			return nil, err
		}
		c.Bytes = append([]byte(nil), raw...)

	case kind == BrainslugSearch:
		n := int(info)
		raw, err := cur.takeBytes(n * 8)
		if err != nil {
			return nil, err
		}
		c.Bytes = append([]byte(nil), raw...)
		rangeLine, err := cur.takeLine()
		if err != nil {
			return nil, err
		}
		rangeWord := be32(rangeLine[0:4])
		c.SearchRange[0] = uint16(rangeWord >> 16)
		c.SearchRange[1] = uint16(rangeWord & 0xFFFF)

	default:
		return nil, fmt.Errorf("%w: unhandled kind %s", ErrInvalidCommand, kind)
	}

	if kind.IsBlock() {
		children, err := decodeChildren(cur)
		if err != nil {
			return nil, err
		}
		c.Children = children
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// decodeChildren decodes commands until the next line's opcode is
// Terminator or Exit, which is left unconsumed: it belongs to the
// enclosing level as an ordinary sibling. End of input also closes the
// block, so a codelist fragment ending on a block's last child decodes.
func decodeChildren(cur *cursor) ([]*Command, error) {
	var children []*Command
	for {
		op, ok := cur.peekOpcode()
		if !ok {
			return children, nil
		}
		if k, _, err := KindFromOpcode(op); err == nil && (k == Terminator || k == Exit) {
			return children, nil
		}
		child, err := decodeOne(cur)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
}
