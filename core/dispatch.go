package core

import "sync/atomic"

// InterruptSource is a logical interrupt owner. Each has one callback slot.
type InterruptSource uint8

const (
	SourceTimer0 InterruptSource = iota
	SourceTimer1
	SourceTimer2
	SourceExt0
	SourceExt1
	SourceExt2
	NumSources
)

func (s InterruptSource) String() string { return enumName(SourceNames, uint8(s)) }

// Vector is a hardware interrupt vector. Several vectors may share one
// source (Timer1 has three).
type Vector uint8

const (
	VectorINT0 Vector = iota
	VectorINT1
	VectorINT2
	VectorTimer2Comp
	VectorTimer2Ovf
	VectorTimer1CompA
	VectorTimer1CompB
	VectorTimer1Ovf
	VectorTimer0Comp
	VectorTimer0Ovf
	NumVectors
)

func (v Vector) String() string { return enumName(VectorNames, uint8(v)) }

type vectorInfo struct {
	source InterruptSource
	flag   Register
	mask   uint8
}

var vectors = [NumVectors]vectorInfo{
	VectorINT0:        {SourceExt0, GIFR, 1 << bitINT0},
	VectorINT1:        {SourceExt1, GIFR, 1 << bitINT1},
	VectorINT2:        {SourceExt2, GIFR, 1 << bitINT2},
	VectorTimer2Comp:  {SourceTimer2, TIFR, 1 << bitOCIE2},
	VectorTimer2Ovf:   {SourceTimer2, TIFR, 1 << bitTOIE2},
	VectorTimer1CompA: {SourceTimer1, TIFR, 1 << bitOCIE1A},
	VectorTimer1CompB: {SourceTimer1, TIFR, 1 << bitOCIE1B},
	VectorTimer1Ovf:   {SourceTimer1, TIFR, 1 << bitTOIE1},
	VectorTimer0Comp:  {SourceTimer0, TIFR, 1 << bitOCIE0},
	VectorTimer0Ovf:   {SourceTimer0, TIFR, 1 << bitTOIE0},
}

// Source returns the callback slot the vector dispatches to.
func (v Vector) Source() (InterruptSource, bool) {
	if v >= NumVectors {
		return 0, false
	}
	return vectors[v].source, true
}

// Flag returns the register and bit mask of v's pending flag.
func (v Vector) Flag() (Register, uint8, bool) {
	if v >= NumVectors {
		return 0, 0, false
	}
	return vectors[v].flag, vectors[v].mask, true
}

// Enable returns the register and bit mask that enable v. Enable bits sit
// at the same position as their flags.
func (v Vector) Enable() (Register, uint8, bool) {
	if v >= NumVectors {
		return 0, 0, false
	}
	if vectors[v].flag == GIFR {
		return GICR, vectors[v].mask, true
	}
	return TIMSK, vectors[v].mask, true
}

// VectorByName looks a vector up by its datasheet name.
func VectorByName(name string) (Vector, bool) {
	for i, n := range VectorNames {
		if n == name {
			return Vector(i), true
		}
	}
	return 0, false
}

type handler struct {
	fn func()
}

// DispatchRegistry holds one callback per InterruptSource and runs them
// from interrupt context. Slots are replaced with a single atomic store, so
// Dispatch sees either the old or the new handler, never a torn one.
//
// Handlers run with interrupts disabled on the target and must not block.
type DispatchRegistry struct {
	regs   RegisterFile
	slots  [NumSources]atomic.Pointer[handler]
	counts [NumVectors]atomic.Uint32
}

// NewDispatchRegistry creates an empty registry that acknowledges flags in
// regs.
func NewDispatchRegistry(regs RegisterFile) *DispatchRegistry {
	return &DispatchRegistry{regs: regs}
}

// SetCallback stores cb for src, replacing any previous handler. A nil cb
// empties the slot.
func (r *DispatchRegistry) SetCallback(src InterruptSource, cb func()) error {
	if src >= NumSources {
		return configErr("set callback", CodeInvalidSource, src.String())
	}
	if cb == nil {
		r.slots[src].Store(nil)
		return nil
	}
	r.slots[src].Store(&handler{fn: cb})
	return nil
}

// Registered reports whether src has a handler.
func (r *DispatchRegistry) Registered(src InterruptSource) bool {
	if src >= NumSources {
		return false
	}
	return r.slots[src].Load() != nil
}

// Dispatch runs the handler for v, if any, then acknowledges v's flag.
// The flag is cleared even without a handler so the vector does not fire
// again. Unknown vectors are ignored.
func (r *DispatchRegistry) Dispatch(v Vector) {
	if v >= NumVectors {
		return
	}
	info := &vectors[v]

	handled := uint32(0)
	if h := r.slots[info.source].Load(); h != nil {
		h.fn()
		handled = 1
	}
	ack(r.regs, info.flag, info.mask)

	n := r.counts[v].Add(1)
	RecordEvent(EvtDispatch, uint8(v), handled, n)
}

// Count returns how many times v has been dispatched.
func (r *DispatchRegistry) Count(v Vector) uint32 {
	if v >= NumVectors {
		return 0
	}
	return r.counts[v].Load()
}

// SourceCount sums the dispatch counts of every vector of src.
func (r *DispatchRegistry) SourceCount(src InterruptSource) uint32 {
	var n uint32
	for v := Vector(0); v < NumVectors; v++ {
		if vectors[v].source == src {
			n += r.counts[v].Load()
		}
	}
	return n
}
