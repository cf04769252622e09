//go:build !tinygo

package core

import "sync"

// State is a placeholder for the saved interrupt state on regular Go
type State uintptr

// disableInterrupts is a no-op on regular Go; MemoryRegisters serialises
// register access itself.
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on regular Go
func restoreInterrupts(state State) {
}

// The simulator dispatches from its own goroutine, so the event ring needs
// a real lock on the host.
var eventMu sync.Mutex

func lockEvents() State {
	eventMu.Lock()
	return 0
}

func unlockEvents(state State) {
	eventMu.Unlock()
}
