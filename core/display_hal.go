package core

// Display renders text for the main loop. Nothing in the timer or
// interrupt code depends on it.
type Display interface {
	Clear()
	MoveCursor(row, col uint8)
	PrintString(s string)
	PrintUint(v uint32)
}

// Global singleton used by core code.
var display Display

// SetDisplay is called by target-specific code to register its display.
func SetDisplay(d Display) {
	display = d
}

// MustDisplay returns the configured display or panics if missing.
func MustDisplay() Display {
	if display == nil {
		panic("display not configured")
	}
	return display
}
