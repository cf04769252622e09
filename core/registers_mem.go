package core

import "sync"

// RegisterWrite is one store recorded by MemoryRegisters.
type RegisterWrite struct {
	Reg   Register
	Value uint8
}

// MemoryRegisters is an in-memory I/O space used by the host simulator and
// by tests. Flag registers (TIFR, GIFR) follow the hardware rule that
// writing a one clears the bit and writing a zero leaves it alone.
type MemoryRegisters struct {
	mu     sync.Mutex
	image  [NumRegisters]uint8
	writes []RegisterWrite
	hooks  map[Register]func(v uint8)
}

// NewMemoryRegisters returns a register file with every register at reset (0).
func NewMemoryRegisters() *MemoryRegisters {
	return &MemoryRegisters{}
}

// Load8 returns the current register value.
func (m *MemoryRegisters) Load8(r Register) uint8 {
	if r >= NumRegisters {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.image[r]
}

// Store8 writes a register and records the write.
func (m *MemoryRegisters) Store8(r Register, v uint8) {
	if r >= NumRegisters {
		return
	}
	m.mu.Lock()
	if isFlagRegister(r) {
		m.image[r] &^= v
	} else {
		m.image[r] = v
	}
	m.writes = append(m.writes, RegisterWrite{Reg: r, Value: v})
	hook := m.hooks[r]
	m.mu.Unlock()

	if hook != nil {
		hook(v)
	}
}

// Raise sets bits the way the peripheral would, bypassing the
// write-one-to-clear rule. Used to simulate pending interrupt flags and
// status bits.
func (m *MemoryRegisters) Raise(r Register, mask uint8) {
	if r >= NumRegisters {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.image[r] |= mask
}

// Poke overwrites a register without recording a write. Used to model
// values produced by the peripheral itself (ADC result, pin levels).
func (m *MemoryRegisters) Poke(r Register, v uint8) {
	if r >= NumRegisters {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.image[r] = v
}

// OnStore installs a hook called after every store to r. The hook runs
// outside the register lock and may call Poke or Raise.
func (m *MemoryRegisters) OnStore(r Register, hook func(v uint8)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hooks == nil {
		m.hooks = make(map[Register]func(uint8))
	}
	m.hooks[r] = hook
}

// Load16 reads a 16-bit register pair without the interrupt masking the
// firmware path uses; intended for inspection.
func (m *MemoryRegisters) Load16(lo Register) uint16 {
	return uint16(m.Load8(lo+1))<<8 | uint16(m.Load8(lo))
}

// Snapshot returns a copy of the whole register image.
func (m *MemoryRegisters) Snapshot() [NumRegisters]uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.image
}

// Writes returns the stores recorded since the last ResetLog.
func (m *MemoryRegisters) Writes() []RegisterWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RegisterWrite, len(m.writes))
	copy(out, m.writes)
	return out
}

// ResetLog discards the recorded stores.
func (m *MemoryRegisters) ResetLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = m.writes[:0]
}
