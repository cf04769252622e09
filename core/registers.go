package core

// Register is an ATmega32 I/O-space address (0x00-0x3F).
// The memory-mapped data-space address is Register + IOBase.
type Register uint8

// IOBase is the offset of I/O space inside the AVR data space.
const IOBase = 0x20

// NumRegisters is the size of the I/O register space.
const NumRegisters = 0x40

// I/O register addresses used by the timer and interrupt subsystems.
// 16-bit registers are addressed by their low byte; the high byte follows.
const (
	TWBR   Register = 0x00
	TWSR   Register = 0x01
	TWAR   Register = 0x02
	TWDR   Register = 0x03
	ADCL   Register = 0x04
	ADCH   Register = 0x05
	ADCSRA Register = 0x06
	ADMUX  Register = 0x07
	UBRRL  Register = 0x09
	UCSRB  Register = 0x0A
	UCSRA  Register = 0x0B
	UDR    Register = 0x0C
	PIND   Register = 0x10
	DDRD   Register = 0x11
	PORTD  Register = 0x12
	PINC   Register = 0x13
	DDRC   Register = 0x14
	PORTC  Register = 0x15
	PINB   Register = 0x16
	DDRB   Register = 0x17
	PORTB  Register = 0x18
	PINA   Register = 0x19
	DDRA   Register = 0x1A
	PORTA  Register = 0x1B
	UCSRC  Register = 0x20 // shared with UBRRH, selected by URSEL
	ASSR   Register = 0x22
	OCR2   Register = 0x23
	TCNT2  Register = 0x24
	TCCR2  Register = 0x25
	ICR1   Register = 0x26
	OCR1B  Register = 0x28
	OCR1A  Register = 0x2A
	TCNT1  Register = 0x2C
	TCCR1B Register = 0x2E
	TCCR1A Register = 0x2F
	TCNT0  Register = 0x32
	TCCR0  Register = 0x33
	MCUCSR Register = 0x34
	MCUCR  Register = 0x35
	TWCR   Register = 0x36
	TIFR   Register = 0x38
	TIMSK  Register = 0x39
	GIFR   Register = 0x3A
	GICR   Register = 0x3B
	OCR0   Register = 0x3C
	SREG   Register = 0x3F
)

// TCCR0 / TCCR2 bits
const (
	bitFOC0  = 7
	bitWGM00 = 6
	bitCOM00 = 4
	bitWGM01 = 3
)

// TCCR1A / TCCR1B bits
const (
	bitCOM1A0 = 6
	bitCOM1B0 = 4
	bitFOC1A  = 3
	bitFOC1B  = 2
	bitWGM11  = 1
	bitWGM10  = 0
	bitWGM13  = 4
	bitWGM12  = 3
)

// TIMSK enable bits; TIFR uses the same positions for the matching flags.
const (
	bitOCIE2  = 7
	bitTOIE2  = 6
	bitTICIE1 = 5
	bitOCIE1A = 4
	bitOCIE1B = 3
	bitTOIE1  = 2
	bitOCIE0  = 1
	bitTOIE0  = 0
)

// MCUCR / MCUCSR sense control
const (
	bitISC10 = 2
	bitISC00 = 0
	bitISC2  = 6
)

// GICR enable bits; GIFR uses the same positions for the matching flags.
const (
	bitINT1 = 7
	bitINT0 = 6
	bitINT2 = 5
)

// Port pins
const (
	PB0 = 0
	PB1 = 1
	PB2 = 2
	PB3 = 3
	PD2 = 2
	PD3 = 3
	PD4 = 4
	PD5 = 5
	PD7 = 7
)

// clockSelectMask covers CSn2:0 in every timer's clock control register.
const clockSelectMask = 0x07

// RegisterFile is the access path to the peripheral registers.
// Implementations must make each single-byte access atomic, which the
// hardware guarantees and MemoryRegisters emulates.
type RegisterFile interface {
	Load8(r Register) uint8
	Store8(r Register, v uint8)
}

// isFlagRegister reports registers whose bits are cleared by writing one.
func isFlagRegister(r Register) bool {
	return r == TIFR || r == GIFR
}

// load16 reads a 16-bit register pair, low byte first so the hardware
// latches the high byte into TEMP.
func load16(regs RegisterFile, lo Register) uint16 {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	l := regs.Load8(lo)
	h := regs.Load8(lo + 1)
	return uint16(h)<<8 | uint16(l)
}

// store16 writes a 16-bit register pair, high byte first. TEMP is shared by
// every 16-bit register, so the pair is written with interrupts masked.
func store16(regs RegisterFile, lo Register, v uint16) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	regs.Store8(lo+1, uint8(v>>8))
	regs.Store8(lo, uint8(v))
}

// modify8 rewrites only the bits in mask. Shared registers (TIMSK, GICR,
// DDRx) are updated this way so other owners' bits survive.
func modify8(regs RegisterFile, r Register, mask, bits uint8) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	regs.Store8(r, regs.Load8(r)&^mask|bits&mask)
}

// ack acknowledges flags in a write-one-to-clear register. A plain store
// of the mask is used; read-modify-write would clear every pending flag.
func ack(regs RegisterFile, r Register, mask uint8) {
	if mask == 0 {
		return
	}
	regs.Store8(r, mask)
}

// RegisterName returns the datasheet name of r, or "" when unnamed.
func RegisterName(r Register) string {
	switch r {
	case TWBR:
		return "TWBR"
	case TWSR:
		return "TWSR"
	case TWDR:
		return "TWDR"
	case ADCL:
		return "ADCL"
	case ADCH:
		return "ADCH"
	case ADCSRA:
		return "ADCSRA"
	case ADMUX:
		return "ADMUX"
	case UDR:
		return "UDR"
	case PIND:
		return "PIND"
	case DDRD:
		return "DDRD"
	case PORTD:
		return "PORTD"
	case PINB:
		return "PINB"
	case DDRB:
		return "DDRB"
	case PORTB:
		return "PORTB"
	case ASSR:
		return "ASSR"
	case OCR2:
		return "OCR2"
	case TCNT2:
		return "TCNT2"
	case TCCR2:
		return "TCCR2"
	case ICR1:
		return "ICR1L"
	case ICR1 + 1:
		return "ICR1H"
	case OCR1B:
		return "OCR1BL"
	case OCR1B + 1:
		return "OCR1BH"
	case OCR1A:
		return "OCR1AL"
	case OCR1A + 1:
		return "OCR1AH"
	case TCNT1:
		return "TCNT1L"
	case TCNT1 + 1:
		return "TCNT1H"
	case TCCR1B:
		return "TCCR1B"
	case TCCR1A:
		return "TCCR1A"
	case TCNT0:
		return "TCNT0"
	case TCCR0:
		return "TCCR0"
	case MCUCSR:
		return "MCUCSR"
	case MCUCR:
		return "MCUCR"
	case TWCR:
		return "TWCR"
	case UBRRL:
		return "UBRRL"
	case UCSRA:
		return "UCSRA"
	case UCSRB:
		return "UCSRB"
	case UCSRC:
		return "UCSRC"
	case TIFR:
		return "TIFR"
	case TIMSK:
		return "TIMSK"
	case GIFR:
		return "GIFR"
	case GICR:
		return "GICR"
	case OCR0:
		return "OCR0"
	case SREG:
		return "SREG"
	}
	return ""
}
