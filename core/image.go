package core

type imageOp uint8

const (
	opStore8  imageOp = iota // whole byte owned
	opStore16                // 16-bit pair, high byte first
	opModify                 // only Mask bits owned (shared register)
	opAck                    // write-one-to-clear flags
)

type imageEntry struct {
	op    imageOp
	reg   Register
	mask  uint8
	value uint16
}

// registerImage is an ordered set of register values assembled before any
// hardware access. Entries for the same register merge, so the 8-bit
// timers' single control register collects bits from both halves.
type registerImage struct {
	entries []imageEntry
}

func (im *registerImage) find(op imageOp, r Register) *imageEntry {
	for i := range im.entries {
		if im.entries[i].reg == r && im.entries[i].op == op {
			return &im.entries[i]
		}
	}
	return nil
}

func (im *registerImage) set8(r Register, v uint8) {
	if e := im.find(opStore8, r); e != nil {
		e.value = uint16(v)
		return
	}
	im.entries = append(im.entries, imageEntry{op: opStore8, reg: r, value: uint16(v)})
}

func (im *registerImage) or8(r Register, bits uint8) {
	if e := im.find(opStore8, r); e != nil {
		e.value |= uint16(bits)
		return
	}
	im.entries = append(im.entries, imageEntry{op: opStore8, reg: r, value: uint16(bits)})
}

func (im *registerImage) set16(r Register, v uint16) {
	if e := im.find(opStore16, r); e != nil {
		e.value = v
		return
	}
	im.entries = append(im.entries, imageEntry{op: opStore16, reg: r, value: v})
}

// set writes v to r with the timer's width.
func (im *registerImage) set(l *RegisterLayout, r Register, v uint32) {
	if l.Wide() {
		im.set16(r, uint16(v))
	} else {
		im.set8(r, uint8(v))
	}
}

func (im *registerImage) modify(r Register, mask, bits uint8) {
	if e := im.find(opModify, r); e != nil {
		e.mask |= mask
		e.value = e.value&^uint16(mask) | uint16(bits&mask)
		return
	}
	im.entries = append(im.entries, imageEntry{op: opModify, reg: r, mask: mask, value: uint16(bits & mask)})
}

func (im *registerImage) ack(r Register, mask uint8) {
	if e := im.find(opAck, r); e != nil {
		e.mask |= mask
		return
	}
	im.entries = append(im.entries, imageEntry{op: opAck, reg: r, mask: mask})
}

// value returns the byte an entry for r would write, for tests and
// debugging. ok is false when the image does not touch r.
func (im *registerImage) value(r Register) (uint16, bool) {
	for _, e := range im.entries {
		if e.reg == r && e.op != opAck {
			return e.value, true
		}
	}
	return 0, false
}

// apply writes the image in entry order.
func (im *registerImage) apply(regs RegisterFile) {
	for _, e := range im.entries {
		switch e.op {
		case opStore8:
			regs.Store8(e.reg, uint8(e.value))
		case opStore16:
			store16(regs, e.reg, e.value)
		case opModify:
			modify8(regs, e.reg, e.mask, uint8(e.value))
		case opAck:
			ack(regs, e.reg, e.mask)
		}
	}
}
