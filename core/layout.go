package core

import "avrpwm/x/mathx"

// PinRef names one port pin by its direction and output registers.
type PinRef struct {
	DDR  Register
	Port Register
	Bit  uint8
}

func (p PinRef) mask() uint8 { return 1 << p.Bit }

// ChannelLayout describes one output compare unit.
type ChannelLayout struct {
	Compare     Register // OCRn, 16-bit pair on Timer1
	COMShift    uint8    // position of the 2-bit COM field in ControlA
	FOC         uint8    // force output compare strobe in ControlA
	CompareIE   uint8    // TIMSK enable
	CompareFlag uint8    // TIFR flag
	Pin         PinRef   // OCn output pin
}

func (c *ChannelLayout) comMask() uint8 { return 0x03 << c.COMShift }

// WaveformBits are the WGM bits a mode sets in ControlA and ControlB.
type WaveformBits struct {
	A uint8
	B uint8
}

// RegisterLayout describes everything the configurator needs to know about
// one counter. On the 8-bit timers ControlA and ControlB are the same
// register.
type RegisterLayout struct {
	ID           TimerID
	Width        uint8
	ControlA     Register
	ControlB     Register
	Counter      Register
	Top          Register // period register for PWM modes; valid when HasTop
	HasTop       bool
	Extra        []Register // additional registers owned by the timer
	OverflowIE   uint8
	OverflowFlag uint8
	Channels     []ChannelLayout
	ClockSelect  [numClocks]uint8
	Waveform     [numModes]WaveformBits
}

// Wide reports a 16-bit counter.
func (l *RegisterLayout) Wide() bool { return l.Width == 16 }

// Max is the largest value the compare and counter registers hold.
func (l *RegisterLayout) Max() uint32 { return mathx.MaxOf(l.Width) }

// DualChannel reports whether channel B exists.
func (l *RegisterLayout) DualChannel() bool { return len(l.Channels) > 1 }

// Channel returns the compare unit for ch. Single-channel timers ignore ch.
func (l *RegisterLayout) Channel(ch ChannelSelect) *ChannelLayout {
	if ch == ChannelB && l.DualChannel() {
		return &l.Channels[1]
	}
	return &l.Channels[0]
}

// interruptMask covers every TIMSK bit owned by the timer.
func (l *RegisterLayout) interruptMask() uint8 {
	m := l.OverflowIE
	for i := range l.Channels {
		m |= l.Channels[i].CompareIE
	}
	return m
}

// flagMask covers every TIFR bit owned by the timer.
func (l *RegisterLayout) flagMask() uint8 {
	m := l.OverflowFlag
	for i := range l.Channels {
		m |= l.Channels[i].CompareFlag
	}
	return m
}

// sameControl reports the 8-bit single control register arrangement.
func (l *RegisterLayout) sameControl() bool { return l.ControlA == l.ControlB }

var clockSelectT01 = [numClocks]uint8{
	ClockNone:    0,
	ClockDiv1:    1,
	ClockDiv8:    2,
	ClockDiv64:   3,
	ClockDiv256:  4,
	ClockDiv1024: 5,
}

// Timer2 has its own prescaler with /32 and /128 taps in between.
var clockSelectT2 = [numClocks]uint8{
	ClockNone:    0,
	ClockDiv1:    1,
	ClockDiv8:    2,
	ClockDiv64:   4,
	ClockDiv256:  6,
	ClockDiv1024: 7,
}

var waveform8 = [numModes]WaveformBits{
	ModeOverflow:        {},
	ModePhaseCorrectPWM: {A: 1 << bitWGM00},
	ModeCTC:             {A: 1 << bitWGM01},
	ModeFastPWM:         {A: 1<<bitWGM00 | 1<<bitWGM01},
}

// Timer1 modes: 0 normal, 10 phase correct TOP=ICR1, 4 CTC TOP=OCR1A,
// 14 fast PWM TOP=ICR1.
var waveform16 = [numModes]WaveformBits{
	ModeOverflow:        {},
	ModePhaseCorrectPWM: {A: 1 << bitWGM11, B: 1 << bitWGM13},
	ModeCTC:             {B: 1 << bitWGM12},
	ModeFastPWM:         {A: 1 << bitWGM11, B: 1<<bitWGM13 | 1<<bitWGM12},
}

var layouts = [NumTimers]RegisterLayout{
	Timer0: {
		ID:           Timer0,
		Width:        8,
		ControlA:     TCCR0,
		ControlB:     TCCR0,
		Counter:      TCNT0,
		OverflowIE:   1 << bitTOIE0,
		OverflowFlag: 1 << bitTOIE0,
		Channels: []ChannelLayout{{
			Compare:     OCR0,
			COMShift:    bitCOM00,
			FOC:         1 << bitFOC0,
			CompareIE:   1 << bitOCIE0,
			CompareFlag: 1 << bitOCIE0,
			Pin:         PinRef{DDR: DDRB, Port: PORTB, Bit: PB3},
		}},
		ClockSelect: clockSelectT01,
		Waveform:    waveform8,
	},
	Timer1: {
		ID:           Timer1,
		Width:        16,
		ControlA:     TCCR1A,
		ControlB:     TCCR1B,
		Counter:      TCNT1,
		Top:          ICR1,
		HasTop:       true,
		OverflowIE:   1 << bitTOIE1,
		OverflowFlag: 1 << bitTOIE1,
		Channels: []ChannelLayout{
			{
				Compare:     OCR1A,
				COMShift:    bitCOM1A0,
				FOC:         1 << bitFOC1A,
				CompareIE:   1 << bitOCIE1A,
				CompareFlag: 1 << bitOCIE1A,
				Pin:         PinRef{DDR: DDRD, Port: PORTD, Bit: PD5},
			},
			{
				Compare:     OCR1B,
				COMShift:    bitCOM1B0,
				FOC:         1 << bitFOC1B,
				CompareIE:   1 << bitOCIE1B,
				CompareFlag: 1 << bitOCIE1B,
				Pin:         PinRef{DDR: DDRD, Port: PORTD, Bit: PD4},
			},
		},
		ClockSelect: clockSelectT01,
		Waveform:    waveform16,
	},
	Timer2: {
		ID:           Timer2,
		Width:        8,
		ControlA:     TCCR2,
		ControlB:     TCCR2,
		Counter:      TCNT2,
		Extra:        []Register{ASSR},
		OverflowIE:   1 << bitTOIE2,
		OverflowFlag: 1 << bitTOIE2,
		Channels: []ChannelLayout{{
			Compare:     OCR2,
			COMShift:    bitCOM00,
			FOC:         1 << bitFOC0,
			CompareIE:   1 << bitOCIE2,
			CompareFlag: 1 << bitOCIE2,
			Pin:         PinRef{DDR: DDRD, Port: PORTD, Bit: PD7},
		}},
		ClockSelect: clockSelectT2,
		Waveform:    waveform8,
	},
}

// LayoutFor returns the register layout of id.
func LayoutFor(id TimerID) (*RegisterLayout, bool) {
	if id >= NumTimers {
		return nil, false
	}
	return &layouts[id], true
}
