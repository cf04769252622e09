//go:build avr

package main

import (
	"runtime/interrupt"

	"avrpwm/core"
	"avrpwm/protocol"
)

var (
	sys  *core.System
	uart *core.UART

	// rxBuffer is filled by the USART receive interrupt; inputBuffer is
	// only touched by the main loop.
	rxBuffer    *protocol.FifoBuffer
	inputBuffer *protocol.FifoBuffer
	output      *protocol.ScratchOutput
	transport   *protocol.Transport
)

func main() {
	regs := core.VolatileRegisters{}

	uart = core.NewUART(regs, cpuFrequency, linkBaud)
	rxBuffer = protocol.NewFifoBuffer(128)
	inputBuffer = protocol.NewFifoBuffer(256)
	output = protocol.NewScratchOutput()

	core.SetMotorDriver(core.NewPortMotor(regs, core.MotorIN1, core.MotorIN2))
	core.SetAnalogSampler(core.NewRegisterSampler(regs))
	bus := core.NewTWIMaster(regs, cpuFrequency, twiClock)
	if lcd, err := core.NewLCD(bus, core.LCDAddress, lcdCols, lcdRows); err == nil {
		core.SetDisplay(lcd)
	}

	sys = core.NewSystem(regs)
	sys.Dict.AddConstant("CLOCK_FREQ", uint32(cpuFrequency))
	sys.Dict.AddConstant("SERIAL_BAUD", uint32(linkBaud))
	sys.Dict.AddConstant("BOARD", boardName)
	sys.Dict.SetBuildInfo("tinygo-avr")
	app := sys.AttachApplication(core.DefaultSpeedConfig())

	transport = protocol.NewTransport(output, sys.HandleCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		output.Reset()
	})
	// ACKs go out before the response they precede
	transport.SetFlushCallback(writeOutput)
	sys.SetTransport(transport)

	installVectors()
	if err := app.Setup(); err != nil {
		// leave the link up so the host can inspect the state
		sys.EmergencyStop()
	}

	var chunk [32]byte
	idle := 0
	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					sys.Stats.LinkErrors.Add(1)
					inputBuffer.Reset()
					output.Reset()
				}
			}()

			state := interrupt.Disable()
			n := rxBuffer.Read(chunk[:])
			interrupt.Restore(state)

			if n > 0 {
				inputBuffer.Write(chunk[:n])
				transport.Receive(inputBuffer)
			}
			writeOutput()

			idle++
			if idle >= appPeriodLoops {
				idle = 0
				// failures are counted and published by query_stats
				_ = sys.Step()
			}
		}()
	}
}

// writeOutput drains the queued frames to the UART.
func writeOutput() {
	data := output.Result()
	if len(data) == 0 {
		return
	}
	if _, err := uart.Write(data); err != nil {
		sys.Stats.LinkErrors.Add(1)
	}
	output.Reset()
}
