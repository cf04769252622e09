//go:build tinygo && avr

package core

import (
	"runtime/volatile"
	"unsafe"
)

// VolatileRegisters accesses the real I/O space through its data-space
// mapping. Every access is a single volatile byte load or store.
type VolatileRegisters struct{}

func ioAddr(r Register) *uint8 {
	return (*uint8)(unsafe.Pointer(uintptr(r) + IOBase))
}

// Load8 reads one I/O register
func (VolatileRegisters) Load8(r Register) uint8 {
	return volatile.LoadUint8(ioAddr(r))
}

// Store8 writes one I/O register
func (VolatileRegisters) Store8(r Register, v uint8) {
	volatile.StoreUint8(ioAddr(r), v)
}
