package core

import (
	"sync/atomic"

	"avrpwm/x/mathx"
)

// SpeedConfig describes the potentiometer speed-control application.
type SpeedConfig struct {
	PWM           TimerConfig
	Button        ExternalInterruptConfig
	SampleChannel uint8
	Label         string
	ValueRow      uint8
	ValueCol      uint8
}

// DefaultSpeedConfig is the reference board wiring: Timer0 fast PWM on OC0
// (the H-bridge enable), a push button on INT1 and the potentiometer on
// ADC0.
func DefaultSpeedConfig() SpeedConfig {
	return SpeedConfig{
		PWM: TimerConfig{
			Timer:  Timer0,
			Mode:   ModeFastPWM,
			Clock:  ClockDiv8,
			Output: OutputClear,
		},
		Button:        ExternalInterruptConfig{Line: LineINT1, Edge: EdgeRising},
		SampleChannel: 0,
		Label:         "ADC Value = ",
		ValueRow:      0,
		ValueCol:      12,
	}
}

// SpeedController reads the potentiometer and turns it into a duty cycle.
// The button callback flips the motor direction from interrupt context.
type SpeedController struct {
	cfg     SpeedConfig
	timers  *Timers
	ext     *ExternalInterrupts
	pwm     PWMOutput
	motor   MotorDriver
	sampler AnalogSampler
	display Display

	lastSample uint16
	lastDuty   uint32
	toggles    atomic.Uint32
}

// NewSpeedController wires the application. display may be nil on boards
// without one.
func NewSpeedController(cfg SpeedConfig, timers *Timers, ext *ExternalInterrupts,
	motor MotorDriver, sampler AnalogSampler, display Display) *SpeedController {
	return &SpeedController{
		cfg:     cfg,
		timers:  timers,
		ext:     ext,
		pwm:     NewTimerPWM(timers, cfg.PWM.Timer, cfg.PWM.Channel),
		motor:   motor,
		sampler: sampler,
		display: display,
	}
}

// Setup registers the button callback before the line is enabled, then
// configures the line and the PWM timer and starts the motor forward.
func (s *SpeedController) Setup() error {
	if err := s.ext.SetCallback(s.cfg.Button.Line, s.ToggleDirection); err != nil {
		return err
	}
	if err := s.ext.Init(s.cfg.Button); err != nil {
		return err
	}
	if err := s.timers.Init(s.cfg.PWM); err != nil {
		return err
	}
	if s.display != nil {
		s.display.Clear()
		s.display.PrintString(s.cfg.Label)
	}
	s.motor.DriveForward()
	DebugPrintln("[SPEED] running, pwm=" + s.cfg.PWM.Timer.String() + " button=" + s.cfg.Button.Line.String())
	return nil
}

// Step runs one iteration of the main loop: sample, scale to the compare
// width, update the duty and show the raw sample.
func (s *SpeedController) Step() error {
	sample := s.sampler.ReadChannel(s.cfg.SampleChannel)
	duty := uint32(mathx.ScaleBits(uint32(sample), s.sampler.Resolution(), s.pwm.Width()))
	if err := s.pwm.SetDuty(duty); err != nil {
		return err
	}
	s.lastSample = sample
	s.lastDuty = duty

	if s.display != nil {
		s.display.MoveCursor(s.cfg.ValueRow, s.cfg.ValueCol)
		s.display.PrintUint(uint32(sample))
		// blank digits left over from a longer previous value
		if n := digitCount(uint32(sample)); n < 4 {
			s.display.PrintString("    "[:4-n])
		}
	}
	return nil
}

// ToggleDirection reverses a running motor. A stopped motor stays stopped.
// Runs as the button's interrupt callback.
func (s *SpeedController) ToggleDirection() {
	switch s.motor.Direction() {
	case DirForward:
		s.motor.DriveReverse()
	case DirReverse:
		s.motor.DriveForward()
	default:
		return
	}
	s.toggles.Add(1)
}

// LastSample returns the most recent ADC sample and the duty it produced.
func (s *SpeedController) LastSample() (uint16, uint32) {
	return s.lastSample, s.lastDuty
}

// Toggles returns how many times the button reversed the motor.
func (s *SpeedController) Toggles() uint32 {
	return s.toggles.Load()
}

func digitCount(v uint32) int {
	n := 1
	for v >= 10 {
		v /= 10
		n++
	}
	return n
}
