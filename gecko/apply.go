package gecko

// Image is the mapped executable image the pre-applier mutates. It is an
// external collaborator: the library neither maps nor owns one, it only
// drives seek/write/branch-synthesis calls against it. Seek followed by
// Write is a sequential transaction; committing is the caller's job.
type Image interface {
	IsMapped(addr uint32) bool
	Seek(addr uint32) error
	Write(b []byte) (int, error)
	InsertBranch(dst, src uint32, link bool) error
}

const mappedBase = 0x80000000

// applyCommand statically executes c against img if it is one of the
// pre-applicable kinds, recursing into any children (a block's children
// may themselves contain pre-applicable write-family commands even
// though the block command itself never is). It returns true iff at
// least one write actually happened.
func applyCommand(c *Command, img Image) bool {
	applied := false

	if c.Kind.IsPreApplicable() {
		addr := c.Address | mappedBase
		if img.IsMapped(addr) {
			if applyOne(c, img, addr) {
				applied = true
			}
		}
	}

	for _, child := range c.Children {
		if applyCommand(child, img) {
			applied = true
		}
	}
	return applied
}

func applyOne(c *Command, img Image, addr uint32) bool {
	switch c.Kind {
	case Write8:
		return writeRepeated(img, addr, []byte{byte(c.Value)}, int(c.Repeat)+1)

	case Write16:
		b := []byte{byte(c.Value >> 8), byte(c.Value)}
		return writeRepeated(img, addr, b, int(c.Repeat)+1)

	case Write32:
		b := []byte{byte(c.Value >> 24), byte(c.Value >> 16), byte(c.Value >> 8), byte(c.Value)}
		return writeRepeated(img, addr, b, 1)

	case WriteStr:
		if err := img.Seek(addr); err != nil {
			return false
		}
		n, err := img.Write(c.Bytes)
		return err == nil && n == len(c.Bytes)

	case WriteSerial:
		ok := false
		for i := 0; i <= int(c.Repeat); i++ {
			a := addr + uint32(i)*uint32(c.AddressInc)
			if !img.IsMapped(a) {
				continue
			}
			v := c.Value + uint32(i)*c.ValueInc
			var b []byte
			switch c.ValueSize {
			case 0:
				b = []byte{byte(v)}
			case 1:
				b = []byte{byte(v >> 8), byte(v)}
			default:
				b = []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
			}
			if writeRepeated(img, a, b, 1) {
				ok = true
			}
		}
		return ok

	case WriteBranch:
		return img.InsertBranch(c.Value, addr, c.Endif) == nil

	default:
		return false
	}
}

func writeRepeated(img Image, addr uint32, b []byte, times int) bool {
	wrote := false
	for i := 0; i < times; i++ {
		a := addr + uint32(i*len(b))
		if !img.IsMapped(a) {
			continue
		}
		if err := img.Seek(a); err != nil {
			continue
		}
		n, err := img.Write(b)
		if err == nil && n == len(b) {
			wrote = true
		}
	}
	return wrote
}
