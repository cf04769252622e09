package core

// PWMOutput is one duty-controlled output. The speed loop only needs these
// two calls, so it can be driven by a mock in tests.
type PWMOutput interface {
	// SetDuty sets the compare value; values above MaxDuty are truncated
	SetDuty(value uint32) error

	// MaxDuty returns the largest compare value (255 for 8-bit timers)
	MaxDuty() uint32

	// Width returns the compare register width in bits
	Width() uint8
}

// TimerPWM binds a PWMOutput to one channel of a configured timer.
type TimerPWM struct {
	timers *Timers
	id     TimerID
	ch     ChannelSelect
}

// NewTimerPWM returns the output for ch of timer id.
func NewTimerPWM(timers *Timers, id TimerID, ch ChannelSelect) *TimerPWM {
	return &TimerPWM{timers: timers, id: id, ch: ch}
}

func (p *TimerPWM) SetDuty(value uint32) error {
	return p.timers.ChangeCompareValue(p.id, value, p.ch)
}

func (p *TimerPWM) MaxDuty() uint32 {
	if l, ok := LayoutFor(p.id); ok {
		return l.Max()
	}
	return 0
}

func (p *TimerPWM) Width() uint8 {
	if l, ok := LayoutFor(p.id); ok {
		return l.Width
	}
	return 0
}
