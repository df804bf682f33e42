package main

import "errors"

var errNotMapped = errors.New("geckoctl: address not mapped in image")

// flatImage is a minimal gecko.Image backed by an in-memory byte slice,
// mapped starting at base. It exists only so geckoctl can exercise the
// library's pre-applier against a plain dumped binary; real consumers
// (Dolphin, a debugger, a ROM-patcher) supply their own Image with
// proper section mapping.
type flatImage struct {
	buf    []byte
	base   uint32
	cursor uint32
}

func newFlatImage(buf []byte) *flatImage {
	return &flatImage{buf: buf, base: 0x80000000}
}

func (f *flatImage) IsMapped(addr uint32) bool {
	if addr < f.base {
		return false
	}
	off := addr - f.base
	return off < uint32(len(f.buf))
}

func (f *flatImage) Seek(addr uint32) error {
	if !f.IsMapped(addr) {
		return errNotMapped
	}
	f.cursor = addr - f.base
	return nil
}

func (f *flatImage) Write(b []byte) (int, error) {
	end := int(f.cursor) + len(b)
	if end > len(f.buf) {
		return 0, errNotMapped
	}
	n := copy(f.buf[f.cursor:end], b)
	f.cursor += uint32(n)
	return n, nil
}

// InsertBranch writes a PPC branch instruction (b/bl) at src targeting
// dst; link selects bl vs b.
func (f *flatImage) InsertBranch(dst, src uint32, link bool) error {
	if err := f.Seek(src); err != nil {
		return err
	}
	delta := dst - src
	instr := uint32(0x48000000) | (delta & 0x03FFFFFC)
	if link {
		instr |= 1
	}
	b := []byte{byte(instr >> 24), byte(instr >> 16), byte(instr >> 8), byte(instr)}
	_, err := f.Write(b)
	return err
}
