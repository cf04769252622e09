// Package serial opens the link to the timer firmware.
package serial

import (
	"io"
)

// DefaultBaud matches the UART setup of the ATmega32 target (8 MHz, UBRR 12).
const DefaultBaud = 38400

// Port represents a serial port interface. The native implementation uses
// github.com/tarm/serial; the simulator and tests hand in pipes.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate of the MCU UART
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the configuration for the reference board.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}

// PipePort adapts any ReadWriteCloser (an io.Pipe pair, a simulator) to
// Port.
type PipePort struct {
	io.ReadWriteCloser
}

// Flush is a no-op; pipes are unbuffered.
func (PipePort) Flush() error { return nil }
