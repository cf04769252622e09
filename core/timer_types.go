package core

// TimerID identifies one physical counter. Timer0 and Timer2 are 8-bit with
// a single compare channel; Timer1 is 16-bit with channels A and B.
type TimerID uint8

const (
	Timer0 TimerID = iota
	Timer1
	Timer2
	NumTimers
)

// TimerMode selects the waveform generation mode.
type TimerMode uint8

const (
	ModeOverflow TimerMode = iota
	ModePhaseCorrectPWM
	ModeCTC
	ModeFastPWM
	numModes
)

func (m TimerMode) isPWM() bool {
	return m == ModePhaseCorrectPWM || m == ModeFastPWM
}

// ClockPrescale selects the counter clock. ClockNone stops the counter.
type ClockPrescale uint8

const (
	ClockNone ClockPrescale = iota
	ClockDiv1
	ClockDiv8
	ClockDiv64
	ClockDiv256
	ClockDiv1024
	numClocks
)

// Divider returns the prescaler ratio, 0 for ClockNone.
func (c ClockPrescale) Divider() uint32 {
	switch c {
	case ClockDiv1:
		return 1
	case ClockDiv8:
		return 8
	case ClockDiv64:
		return 64
	case ClockDiv256:
		return 256
	case ClockDiv1024:
		return 1024
	}
	return 0
}

// ChannelSelect picks a compare channel. Only Timer1 has channel B.
type ChannelSelect uint8

const (
	ChannelA ChannelSelect = iota
	ChannelB
	numChannels
)

// CompareOutputMode is the COM field: what the OC pin does on a match.
type CompareOutputMode uint8

const (
	OutputDisconnected CompareOutputMode = iota
	OutputToggle
	OutputClear
	OutputSet
	numOutputModes
)

// TimerConfig is built by the caller and consumed by Timers.Init.
// InitialValue and CompareMatchValue are masked to the timer width.
type TimerConfig struct {
	Timer             TimerID
	Mode              TimerMode
	Clock             ClockPrescale
	InitialValue      uint32
	CompareMatchValue uint32
	Output            CompareOutputMode
	Channel           ChannelSelect
}

// TimerState is the lifecycle state of one timer.
type TimerState uint8

const (
	TimerUninit TimerState = iota
	TimerConfigured
	TimerStopped
)

// Enumeration names published in the data dictionary. The index is the
// wire value.
var (
	TimerNames      = []string{"timer0", "timer1", "timer2"}
	TimerModeNames  = []string{"overflow", "phase_correct_pwm", "ctc", "fast_pwm"}
	ClockNames      = []string{"none", "div1", "div8", "div64", "div256", "div1024"}
	ChannelNames    = []string{"A", "B"}
	OutputModeNames = []string{"disconnected", "toggle", "clear", "set"}
	TimerStateNames = []string{"uninit", "configured", "stopped"}
	LineNames       = []string{"int0", "int1", "int2"}
	EdgeModeNames   = []string{"low_level", "any_change", "falling", "rising"}
	LineStateNames  = []string{"uninit", "configured"}
	SourceNames     = []string{"timer0", "timer1", "timer2", "ext0", "ext1", "ext2"}
	VectorNames     = []string{"INT0", "INT1", "INT2", "TIMER2_COMP", "TIMER2_OVF", "TIMER1_COMPA", "TIMER1_COMPB", "TIMER1_OVF", "TIMER0_COMP", "TIMER0_OVF"}
)

func enumName(names []string, i uint8) string {
	if int(i) < len(names) {
		return names[i]
	}
	return "unknown(" + itoa(int(i)) + ")"
}

func (id TimerID) String() string          { return enumName(TimerNames, uint8(id)) }
func (m TimerMode) String() string         { return enumName(TimerModeNames, uint8(m)) }
func (c ClockPrescale) String() string     { return enumName(ClockNames, uint8(c)) }
func (c ChannelSelect) String() string     { return enumName(ChannelNames, uint8(c)) }
func (o CompareOutputMode) String() string { return enumName(OutputModeNames, uint8(o)) }
func (s TimerState) String() string        { return enumName(TimerStateNames, uint8(s)) }
