package core

// Timers configures the three counter peripherals. One value owns all
// three; each TimerID maps to exactly one physical counter.
//
// Every method runs on the main loop. The only state shared with interrupt
// context is the dispatch registry, which has its own atomic slots.
type Timers struct {
	regs  RegisterFile
	irq   *DispatchRegistry
	state [NumTimers]TimerState
	cfg   [NumTimers]TimerConfig
}

// NewTimers creates the timer configurator. A nil registry gets a private
// one bound to the same register file.
func NewTimers(regs RegisterFile, irq *DispatchRegistry) *Timers {
	if irq == nil {
		irq = NewDispatchRegistry(regs)
	}
	return &Timers{regs: regs, irq: irq}
}

// Registry returns the dispatch registry timer callbacks are stored in.
func (t *Timers) Registry() *DispatchRegistry {
	return t.irq
}

func (t *Timers) validate(op string, cfg TimerConfig) (*RegisterLayout, error) {
	l, ok := LayoutFor(cfg.Timer)
	switch {
	case !ok:
		return nil, t.reject(op, CodeInvalidTimer, cfg.Timer.String(), uint8(cfg.Timer))
	case cfg.Mode >= numModes:
		return nil, t.reject(op, CodeInvalidMode, cfg.Mode.String(), uint8(cfg.Timer))
	case cfg.Clock >= numClocks:
		return nil, t.reject(op, CodeInvalidClock, cfg.Clock.String(), uint8(cfg.Timer))
	case cfg.Output >= numOutputModes:
		return nil, t.reject(op, CodeInvalidOutput, cfg.Output.String(), uint8(cfg.Timer))
	case cfg.Channel >= numChannels:
		return nil, t.reject(op, CodeInvalidChannel, cfg.Channel.String(), uint8(cfg.Timer))
	case cfg.Channel == ChannelB && !l.DualChannel():
		return nil, t.reject(op, CodeInvalidChannel, cfg.Timer.String()+" has no channel B", uint8(cfg.Timer))
	}
	return l, nil
}

func (t *Timers) reject(op string, c Code, what string, target uint8) error {
	RecordEvent(EvtConfigError, target, 0, 0)
	DebugPrintln("[TIMER] " + op + " rejected: " + string(c) + " " + what)
	return configErr(op, c, what)
}

// configured returns the layout of a timer that has been initialised.
func (t *Timers) configured(op string, id TimerID) (*RegisterLayout, error) {
	l, ok := LayoutFor(id)
	if !ok {
		return nil, t.reject(op, CodeInvalidTimer, id.String(), uint8(id))
	}
	if t.state[id] == TimerUninit {
		return nil, t.reject(op, CodeNotConfigured, id.String(), uint8(id))
	}
	return l, nil
}

// clearImage zeroes every register the timer owns. Shared TIMSK/TIFR are
// touched only at the timer's own bit positions.
func clearImage(l *RegisterLayout) *registerImage {
	im := &registerImage{}
	im.set8(l.ControlB, 0) // clock off first
	im.set8(l.ControlA, 0)
	im.set(l, l.Counter, 0)
	for i := range l.Channels {
		im.set(l, l.Channels[i].Compare, 0)
	}
	if l.HasTop {
		im.set16(l.Top, 0)
	}
	for _, r := range l.Extra {
		im.set8(r, 0)
	}
	im.modify(TIMSK, l.interruptMask(), 0)
	im.ack(TIFR, l.flagMask())
	return im
}

// configImage assembles the register values selecting cfg. It assumes the
// clear image has been applied.
func configImage(l *RegisterLayout, cfg TimerConfig) *registerImage {
	im := &registerImage{}
	ch := l.Channel(cfg.Channel)
	v := cfg.CompareMatchValue & l.Max()

	im.set(l, l.Counter, cfg.InitialValue&l.Max())

	switch {
	case cfg.Mode == ModeOverflow:
		// no compare register
	case pairedCompare(l, cfg):
		writeComparePair(im, l, v)
	default:
		im.set(l, ch.Compare, v)
	}
	if cfg.Mode.isPWM() && l.HasTop {
		im.set16(l.Top, uint16(v))
	}

	if cfg.Mode.isPWM() {
		im.modify(ch.Pin.DDR, ch.Pin.mask(), ch.Pin.mask())
	}

	wf := l.Waveform[cfg.Mode]
	a := uint8(cfg.Output)<<ch.COMShift&ch.comMask() | wf.A
	if !cfg.Mode.isPWM() {
		a |= ch.FOC
	}
	im.or8(l.ControlA, a)
	im.or8(l.ControlB, wf.B|l.ClockSelect[cfg.Clock])

	switch cfg.Mode {
	case ModeOverflow:
		im.modify(TIMSK, l.interruptMask(), l.OverflowIE)
	case ModeCTC:
		im.modify(TIMSK, l.interruptMask(), ch.CompareIE)
	}
	return im
}

// pairedCompare reports configurations where OCR1A must stay one count
// ahead of OCR1B.
func pairedCompare(l *RegisterLayout, cfg TimerConfig) bool {
	return l.Wide() && cfg.Channel == ChannelB && (cfg.Mode == ModeCTC || cfg.Mode == ModeFastPWM)
}

// writeComparePair keeps channel A one count ahead of channel B. The sum
// wraps at the register width, so 65535 gives OCR1A == 0.
func writeComparePair(im *registerImage, l *RegisterLayout, v uint32) {
	im.set(l, l.Channels[0].Compare, (v+1)&l.Max())
	im.set(l, l.Channels[1].Compare, v)
}

// Init configures a timer from a cleared register image. It is valid from
// any state and is idempotent. Compare and initial values are truncated to
// the timer width. On error nothing is written.
func (t *Timers) Init(cfg TimerConfig) error {
	l, err := t.validate("timer init", cfg)
	if err != nil {
		return err
	}

	clearImage(l).apply(t.regs)
	configImage(l, cfg).apply(t.regs)

	t.cfg[cfg.Timer] = cfg
	t.state[cfg.Timer] = TimerConfigured

	RecordEvent(EvtTimerInit, uint8(cfg.Timer), uint32(cfg.Mode), cfg.CompareMatchValue&l.Max())
	DebugPrintln("[TIMER] init " + cfg.Timer.String() + " mode=" + cfg.Mode.String() +
		" clock=" + cfg.Clock.String() + " ocr=" + utoa(cfg.CompareMatchValue&l.Max()))
	return nil
}

// Stop clears the clock-select field only. Mode, compare and counter are
// preserved so Start with the same clock resumes the identical waveform.
func (t *Timers) Stop(id TimerID) error {
	l, err := t.configured("timer stop", id)
	if err != nil {
		return err
	}
	modify8(t.regs, l.ControlB, clockSelectMask, 0)
	t.state[id] = TimerStopped
	RecordEvent(EvtTimerStop, uint8(id), 0, 0)
	return nil
}

// Start writes the clock-select field for clock. Starting a running timer
// with the same clock rewrites the same bits.
func (t *Timers) Start(id TimerID, clock ClockPrescale) error {
	l, err := t.configured("timer start", id)
	if err != nil {
		return err
	}
	if clock >= numClocks {
		return t.reject("timer start", CodeInvalidClock, clock.String(), uint8(id))
	}
	modify8(t.regs, l.ControlB, clockSelectMask, l.ClockSelect[clock])
	t.cfg[id].Clock = clock
	t.state[id] = TimerConfigured
	RecordEvent(EvtTimerStart, uint8(id), uint32(clock), 0)
	return nil
}

// Deinit zeroes every register associated with the timer. Its callback
// slot is left alone.
func (t *Timers) Deinit(id TimerID) error {
	l, ok := LayoutFor(id)
	if !ok {
		return t.reject("timer deinit", CodeInvalidTimer, id.String(), uint8(id))
	}
	clearImage(l).apply(t.regs)
	t.cfg[id] = TimerConfig{}
	t.state[id] = TimerUninit
	RecordEvent(EvtTimerDeinit, uint8(id), 0, 0)
	DebugPrintln("[TIMER] deinit " + id.String())
	return nil
}

// SetCallback stores cb in the timer's dispatch slot. A nil cb clears it.
func (t *Timers) SetCallback(id TimerID, cb func()) error {
	if id >= NumTimers {
		return configErr("timer callback", CodeInvalidTimer, id.String())
	}
	return t.irq.SetCallback(SourceTimer0+InterruptSource(id), cb)
}

// State returns the lifecycle state; unknown ids report TimerUninit.
func (t *Timers) State(id TimerID) TimerState {
	if id >= NumTimers {
		return TimerUninit
	}
	return t.state[id]
}

// Config returns the configuration last applied by Init, with the clock
// updated by Start.
func (t *Timers) Config(id TimerID) (TimerConfig, bool) {
	if id >= NumTimers || t.state[id] == TimerUninit {
		return TimerConfig{}, false
	}
	return t.cfg[id], true
}
