package gecko

import "fmt"

// nopWord is the canonical PPC "nop" (ori r0,r0,0) appended to
// ASM_INSERT/ASM_INSERT_L/ASM_INSERT_XOR payloads that are an exact,
// non-empty multiple of 8 bytes, guaranteeing a known branch-back slot.
var nopWord = []byte{0x60, 0x00, 0x00, 0x00}

func needsNop(b []byte) bool {
	return len(b) > 0 && len(b)%8 == 0
}

// appendNopAligned appends the canonical nop to b when it is an exact,
// non-empty multiple of 8 bytes, then zero-pads the result back up to
// the next 8-byte boundary - mirroring the Python original, which grows
// the payload by a 4-byte instruction and re-aligns rather than
// requiring the nop itself to land on a line boundary.
func appendNopAligned(b []byte) []byte {
	if !needsNop(b) {
		return b
	}
	grown := append(append([]byte(nil), b...), nopWord...)
	padded := make([]byte, align8(len(grown)))
	copy(padded, grown)
	return padded
}

// EncodeBinary serializes c (and, for block kinds, its children) and
// returns the bytes.
func EncodeBinary(c *Command) ([]byte, error) {
	var out []byte
	if err := encodeOne(&out, c); err != nil {
		return nil, err
	}
	return out, nil
}

func putLine(out *[]byte, metadata, info uint32) {
	var line [8]byte
	putBE32(line[0:4], metadata)
	putBE32(line[4:8], info)
	*out = append(*out, line[:]...)
}

func encodeOne(out *[]byte, c *Command) error {
	if err := c.Validate(); err != nil {
		return err
	}
	op := uint32(encodeOpcodeByte(c))
	kind := c.Kind

	switch {
	case isConditional32(kind):
		endifBit := uint32(0)
		if c.Endif {
			endifBit = 1
		}
		metadata := op<<24 | (c.Address & addressMask(kind)) | endifBit
		putLine(out, metadata, c.Value)

	case isConditional16(kind):
		endifBit := uint32(0)
		if c.Endif {
			endifBit = 1
		}
		metadata := op<<24 | (c.Address & addressMask(kind)) | endifBit
		info := uint32(c.Mask)<<16 | (c.Value & 0xFFFF)
		putLine(out, metadata, info)

	case isGeckoConditional16(kind):
		endifBit := uint32(0)
		if c.Endif {
			endifBit = 1
		}
		metadata := op<<24 | (c.Address & addressMask(kind)) | endifBit
		info := uint32(c.OtherRegister)<<28 | uint32(c.Register&0xF)<<24 | uint32(c.Mask)
		putLine(out, metadata, info)

	case isCounterConditional16(kind):
		metadata := op<<24 | uint32(c.Counter)<<4 | uint32(c.Flags&9)
		info := uint32(c.Mask)<<16 | (c.Value & 0xFFFF)
		putLine(out, metadata, info)

	case kind == Write8:
		metadata := op<<24 | (c.Address & addressMask(kind))
		info := uint32(c.Repeat)<<16 | (c.Value & 0xFF)
		putLine(out, metadata, info)

	case kind == Write16:
		metadata := op<<24 | (c.Address & addressMask(kind))
		info := uint32(c.Repeat)<<16 | (c.Value & 0xFFFF)
		putLine(out, metadata, info)

	case kind == Write32:
		metadata := op<<24 | (c.Address & addressMask(kind))
		putLine(out, metadata, c.Value)

	case kind == WriteStr:
		metadata := op<<24 | (c.Address & addressMask(kind))
		putLine(out, metadata, uint32(len(c.Bytes)))
		padded := make([]byte, align8(len(c.Bytes)))
		copy(padded, c.Bytes)
		*out = append(*out, padded...)

	case kind == WriteSerial:
		metadata := op<<24 | (c.Address & addressMask(kind))
		putLine(out, metadata, c.Value)
		subinfo := uint32(c.ValueSize)<<28 | uint32(c.Repeat&0xFFF)<<16 | uint32(c.AddressInc)
		putLine(out, subinfo, c.ValueInc)

	case kind == BaseAddrLoad, kind == BaseAddrSet, kind == BaseAddrStore,
		kind == PtrAddrLoad, kind == PtrAddrSet, kind == PtrAddrStore:
		metadata := op<<24 | uint32(c.Flags&0xFFF)<<12 | uint32(c.Register&0xF)
		putLine(out, metadata, c.Value)

	case kind == BaseGetNext, kind == PtrGetNext:
		putLine(out, op<<24|(c.Value&0xFFFF), 0)

	case kind == RepeatSet:
		putLine(out, op<<24|uint32(c.Repeat), uint32(c.Register&0xF))

	case kind == RepeatExec:
		putLine(out, op<<24, uint32(c.Register&0xF))

	case kind == Return:
		putLine(out, op<<24|uint32(c.Flags&0x3)<<20, uint32(c.Register&0xF))

	case kind == Goto:
		putLine(out, op<<24|uint32(c.Flags&0x3)<<20|uint32(c.Offset), 0)

	case kind == Gosub:
		putLine(out, op<<24|uint32(c.Flags&0x3)<<20|uint32(c.Offset), uint32(c.Register&0xF))

	case kind == GeckoRegSet:
		putLine(out, op<<24|uint32(c.Register&0xF), c.Value)

	case kind == GeckoRegLoad:
		metadata := op<<24 | uint32(c.Register&0xF)<<20 | (c.Address & 0xFFFFF)
		putLine(out, metadata, 0)

	case kind == GeckoRegStore:
		metadata := op<<24 | uint32(c.Flags)<<12 | uint32(c.Repeat&0xFF)<<4 | uint32(c.Register&0xF)
		putLine(out, metadata, c.Address)

	case kind == GeckoRegOperateI:
		metadata := op<<24 | uint32(c.ArithOp&0xF)<<20 | uint32(c.Register&0xF)<<16
		putLine(out, metadata, c.Value)

	case kind == GeckoRegOperate:
		metadata := op<<24 | uint32(c.ArithOp&0xF)<<20 | uint32(c.Register&0xF)<<16 | uint32(c.OtherRegister&0xF)<<12
		putLine(out, metadata, 0)

	case kind == MemCopy1, kind == MemCopy2:
		metadata := op<<24 | uint32(c.Register&0xF)<<20 | uint32(c.OtherRegister&0xF)<<16
		putLine(out, metadata, uint32(c.Size))

	case kind == AsmExecute, kind == AsmInsert, kind == AsmInsertLink:
		blob := c.Bytes
		if kind == AsmInsert || kind == AsmInsertLink {
			blob = appendNopAligned(blob)
		}
		if len(blob)%8 != 0 {
			return fmt.Errorf("%w: %s payload not 8-byte aligned", ErrInvalidCommand, kind)
		}
		metadata := op<<24 | (c.Address & addressMask(kind))
		putLine(out, metadata, uint32(len(blob)/8))
		*out = append(*out, blob...)

	case kind == WriteBranch:
		linkBit := uint32(0)
		if c.Endif {
			linkBit = 1
		}
		metadata := op<<24 | (c.Address & addressMask(kind)) | linkBit
		putLine(out, metadata, c.Value)

	case kind == Switch:
		putLine(out, op<<24|uint32(c.Flags), 0)

	case kind == AddrRangeCheck:
		metadata := op<<24 | (c.Address & addressMask(kind))
		putLine(out, metadata, c.Value)

	case kind == Terminator:
		putLine(out, op<<24, 0)

	case kind == Endif:
		metadata := op << 24
		if c.AsElse {
			metadata |= 1 << 20
		}
		metadata |= uint32(c.NumEndifs)
		putLine(out, metadata, 0)

	case kind == Exit:
		putLine(out, op<<24, 0)

	case kind == AsmInsertXOR:
		blob := appendNopAligned(c.Bytes)
		if len(blob)%8 != 0 {
			return fmt.Errorf("%w: %s payload not 8-byte aligned", ErrInvalidCommand, kind)
		}
		metadata := op<<24 | (c.Address & addressMask(kind))
		putLine(out, metadata, uint32(len(blob)/8))
		xorWord := uint32(c.XorCount)<<16 | uint32(c.Mask)
		putLine(out, xorWord, 0)
		*out = append(*out, blob...)

	case kind == BrainslugSearch:
		if len(c.Bytes)%8 != 0 {
			return fmt.Errorf("%w: %s pattern not 8-byte aligned", ErrInvalidCommand, kind)
		}
		putLine(out, op<<24, uint32(len(c.Bytes)/8))
		*out = append(*out, c.Bytes...)
		rangeWord := uint32(c.SearchRange[0])<<16 | uint32(c.SearchRange[1])
		putLine(out, rangeWord, 0)

	default:
		return fmt.Errorf("%w: unhandled kind %s", ErrInvalidCommand, kind)
	}

	if kind.IsBlock() {
		for _, child := range c.Children {
			if err := encodeOne(out, child); err != nil {
				return err
			}
		}
	}
	return nil
}
