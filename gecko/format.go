package gecko

import (
	"fmt"
	"strings"
)

// describeLine renders a single command's own fields, ignoring children.
func describeLine(c *Command) string {
	switch {
	case isConditional32(c.Kind), isConditional16(c.Kind):
		return fmt.Sprintf("%s %s=0x%X value=0x%X mask=0x%X endif=%t",
			c.Kind, c.addrStr(), c.Address, c.Value, c.Mask, c.Endif)

	case isGeckoConditional16(c.Kind):
		return fmt.Sprintf("%s %s=0x%X reg=%d other=%d mask=0x%X endif=%t",
			c.Kind, c.addrStr(), c.Address, c.Register, c.OtherRegister, c.Mask, c.Endif)

	case isCounterConditional16(c.Kind):
		return fmt.Sprintf("%s counter=%d value=0x%X mask=0x%X flags=0x%X",
			c.Kind, c.Counter, c.Value, c.Mask, c.Flags)

	case c.Kind == Write8, c.Kind == Write16:
		return fmt.Sprintf("%s %s=0x%X value=0x%X repeat=%d",
			c.Kind, c.addrStr(), c.Address, c.Value, c.Repeat)

	case c.Kind == Write32:
		return fmt.Sprintf("%s %s=0x%X value=0x%X", c.Kind, c.addrStr(), c.Address, c.Value)

	case c.Kind == WriteStr:
		return fmt.Sprintf("%s %s=0x%X %d bytes", c.Kind, c.addrStr(), c.Address, len(c.Bytes))

	case c.Kind == WriteSerial:
		return fmt.Sprintf("%s %s=0x%X value=0x%X size=%d repeat=%d addrInc=0x%X valueInc=0x%X",
			c.Kind, c.addrStr(), c.Address, c.Value, c.ValueSize, c.Repeat, c.AddressInc, c.ValueInc)

	case c.Kind == AsmExecute, c.Kind == AsmInsert, c.Kind == AsmInsertLink, c.Kind == AsmInsertXOR:
		return fmt.Sprintf("%s %s=0x%X %d code bytes", c.Kind, c.addrStr(), c.Address, len(c.Bytes))

	case c.Kind == WriteBranch:
		linked := c.Endif
		return fmt.Sprintf("%s %s=0x%X -> 0x%X linked=%t", c.Kind, c.addrStr(), c.Address, c.Value, linked)

	case c.Kind == BrainslugSearch:
		return fmt.Sprintf("%s %d pattern bytes range=[%d,%d]",
			c.Kind, len(c.Bytes), c.SearchRange[0], c.SearchRange[1])

	case c.Kind == BaseAddrLoad, c.Kind == BaseAddrSet, c.Kind == BaseAddrStore,
		c.Kind == PtrAddrLoad, c.Kind == PtrAddrSet, c.Kind == PtrAddrStore:
		return fmt.Sprintf("%s flags=0x%03X reg=%d value=0x%X", c.Kind, c.Flags, c.Register, c.Value)

	case c.Kind == BaseGetNext, c.Kind == PtrGetNext:
		return fmt.Sprintf("%s value=0x%X", c.Kind, c.Value)

	case c.Kind == RepeatSet:
		return fmt.Sprintf("%s repeat=%d reg=%d", c.Kind, c.Repeat, c.Register)

	case c.Kind == RepeatExec:
		return fmt.Sprintf("%s reg=%d", c.Kind, c.Register)

	case c.Kind == Return:
		return fmt.Sprintf("%s flags=%d reg=%d", c.Kind, c.Flags, c.Register)

	case c.Kind == Goto:
		return fmt.Sprintf("%s flags=%d offset=%d", c.Kind, c.Flags, c.Offset)

	case c.Kind == Gosub:
		return fmt.Sprintf("%s flags=%d offset=%d reg=%d", c.Kind, c.Flags, c.Offset, c.Register)

	case c.Kind == GeckoRegSet:
		return fmt.Sprintf("%s reg=%d value=0x%X", c.Kind, c.Register, c.Value)

	case c.Kind == GeckoRegOperateI:
		return fmt.Sprintf("%s reg=%d op=%s value=0x%X", c.Kind, c.Register, c.ArithOp, c.Value)

	case c.Kind == GeckoRegOperate:
		return fmt.Sprintf("%s reg=%d op=%s other=%d", c.Kind, c.Register, c.ArithOp, c.OtherRegister)

	case c.Kind == Endif:
		return fmt.Sprintf("%s asElse=%t numEndifs=%d", c.Kind, c.AsElse, c.NumEndifs)

	case c.Kind == Terminator, c.Kind == Exit:
		return c.Kind.String()

	default:
		return fmt.Sprintf("%s addr=0x%X value=0x%X", c.Kind, c.Address, c.Value)
	}
}

// DescribeTree renders c and, recursively, its children, one line per
// command, indented by depth*width spaces. No package-level state is
// threaded; depth is passed explicitly by the caller at each level.
func DescribeTree(c *Command, depth, width int) []string {
	lines := []string{strings.Repeat(" ", depth*width) + describeLine(c)}
	for _, child := range c.Children {
		lines = append(lines, DescribeTree(child, depth+1, width)...)
	}
	return lines
}
