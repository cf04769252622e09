//go:build avr

package main

import (
	"device/avr"
	"runtime/interrupt"

	"avrpwm/core"
)

// installVectors routes every timer and external interrupt vector through
// the dispatch registry. interrupt.New needs a constant IRQ and a function
// literal per vector, hence the repetition.
func installVectors() {
	interrupt.New(avr.IRQ_INT0, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorINT0) })
	interrupt.New(avr.IRQ_INT1, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorINT1) })
	interrupt.New(avr.IRQ_INT2, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorINT2) })
	interrupt.New(avr.IRQ_TIMER2_COMP, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorTimer2Comp) })
	interrupt.New(avr.IRQ_TIMER2_OVF, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorTimer2Ovf) })
	interrupt.New(avr.IRQ_TIMER1_COMPA, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorTimer1CompA) })
	interrupt.New(avr.IRQ_TIMER1_COMPB, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorTimer1CompB) })
	interrupt.New(avr.IRQ_TIMER1_OVF, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorTimer1Ovf) })
	interrupt.New(avr.IRQ_TIMER0_COMP, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorTimer0Comp) })
	interrupt.New(avr.IRQ_TIMER0_OVF, func(interrupt.Interrupt) { sys.IRQ.Dispatch(core.VectorTimer0Ovf) })

	interrupt.New(avr.IRQ_USART_RXC, func(interrupt.Interrupt) {
		if b, ok := uart.Received(); ok {
			if !rxBuffer.WriteByte(b) {
				sys.Stats.RxOverruns.Add(1)
			}
		}
	})
}
