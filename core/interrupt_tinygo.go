//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts clears the global interrupt enable and returns the
// previous SREG state
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the saved interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}

// Dispatch runs with interrupts off, so masking them is enough to keep the
// event ring consistent.
func lockEvents() interrupt.State {
	return interrupt.Disable()
}

func unlockEvents(state interrupt.State) {
	interrupt.Restore(state)
}
