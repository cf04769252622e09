package core

import (
	"sync/atomic"

	"avrpwm/protocol"
)

// FirmwareVersion is reported in the data dictionary.
const FirmwareVersion = "avrpwm-0.3.0"

// System owns every configurator of one MCU and the command set that
// drives them remotely. The firmware creates exactly one; tests and the
// simulator create as many as they like.
type System struct {
	Regs     RegisterFile
	IRQ      *DispatchRegistry
	Timers   *Timers
	Ext      *ExternalInterrupts
	Commands *CommandRegistry
	Dict     *Dictionary

	// Stats is published by query_stats.
	Stats Stats

	app         *SpeedController
	transport   *protocol.Transport
	shutdown    atomic.Bool
	stepFailing bool
}

// Stats counts faults the firmware recovers from without stopping.
type Stats struct {
	RxOverruns atomic.Uint32 // bytes dropped by a full receive FIFO
	LinkErrors atomic.Uint32 // main loop panics and failed transmits
	StepErrors atomic.Uint32 // failed application passes
}

// NewSystem builds the configurators around regs and registers the
// command set. The dictionary is built by the first identify.
func NewSystem(regs RegisterFile) *System {
	irq := NewDispatchRegistry(regs)
	s := &System{
		Regs:     regs,
		IRQ:      irq,
		Timers:   NewTimers(regs, irq),
		Ext:      NewExternalInterrupts(regs, irq),
		Commands: NewCommandRegistry(),
	}
	s.Dict = NewDictionary(s.Commands, FirmwareVersion)
	s.registerCoreCommands()
	s.registerTimerCommands()
	return s
}

// SetTransport connects responses to the link. Handler errors are
// reported to the host as command_error.
func (s *System) SetTransport(t *protocol.Transport) {
	s.transport = t
	t.SetErrorCallback(func(cmdID uint16, err error) {
		code := CodeOf(err)
		DebugPrintln("[CMD] " + itoa(int(cmdID)) + " failed: " + err.Error())
		s.SendResponse("command_error", func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, uint32(cmdID))
			protocol.EncodeVLQString(out, string(code))
		})
	})
}

// HandleCommand is the protocol.CommandHandler for this system.
func (s *System) HandleCommand(cmdID uint16, data *[]byte) error {
	return s.Commands.Dispatch(cmdID, data)
}

// SendResponse frames a registered response. Without a transport it is
// dropped.
func (s *System) SendResponse(name string, args func(out protocol.OutputBuffer)) {
	if s.transport == nil {
		return
	}
	cmd, ok := s.Commands.GetCommandByName(name)
	if !ok {
		panic("response not registered: " + name)
	}
	s.transport.SendCommand(cmd.ID, args)
}

// AttachApplication creates the speed-control loop from the registered
// HAL drivers. The display is optional.
func (s *System) AttachApplication(cfg SpeedConfig) *SpeedController {
	s.app = NewSpeedController(cfg, s.Timers, s.Ext, MustMotor(), MustSampler(), display)
	return s.app
}

// Application returns the attached speed controller, or nil.
func (s *System) Application() *SpeedController {
	return s.app
}

// Step runs one main-loop iteration of the application. After an
// emergency stop it does nothing until clear_shutdown.
//
// Failures are counted in Stats.StepErrors. The first failure of a run is
// also recorded in the event ring, so a timer deinitialised by the host
// shows up once rather than filling the ring.
func (s *System) Step() error {
	if s.app == nil || s.IsShutdown() {
		return nil
	}
	err := s.app.Step()
	if err == nil {
		s.stepFailing = false
		return nil
	}
	n := s.Stats.StepErrors.Add(1)
	if !s.stepFailing {
		s.stepFailing = true
		RecordEvent(EvtStepError, 0, 0, n)
		DebugPrintln("[APP] step failed: " + err.Error())
	}
	return err
}

// EmergencyStop halts every configured timer, disables every external line
// and stops the motor. The system stays shut down until ClearShutdown.
func (s *System) EmergencyStop() {
	s.shutdown.Store(true)
	for id := TimerID(0); id < NumTimers; id++ {
		if s.Timers.State(id) == TimerConfigured {
			_ = s.Timers.Stop(id)
		}
	}
	for line := Line(0); line < NumLines; line++ {
		if s.Ext.State(line) == LineConfigured {
			_ = s.Ext.Deinit(line)
		}
	}
	if s.app != nil {
		s.app.motor.StopMotor()
	}
	RecordEvent(EvtEmergencyStop, 0, 0, 0)
	DebugPrintln("[SYS] emergency stop")
}

// ClearShutdown leaves the shut down state. Timers stay stopped until
// started again.
func (s *System) ClearShutdown() {
	s.shutdown.Store(false)
}

// IsShutdown reports whether EmergencyStop has run.
func (s *System) IsShutdown() bool {
	return s.shutdown.Load()
}
