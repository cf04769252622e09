// Package sim runs the timer firmware in-process on an in-memory register
// file, so the host tools can be used without a board.
package sim

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"avrpwm/core"
	"avrpwm/host/serial"
	"avrpwm/protocol"
)

// Simulator is one simulated ATmega32 running core.System. Link traffic,
// interrupt dispatch and the application loop are serialised by one lock,
// standing in for the target's single core with interrupts masked.
//
// The HAL drivers are registered through the core.Set* singletons, so only
// one Simulator should run the application at a time.
type Simulator struct {
	Regs    *core.MemoryRegisters
	Sys     *core.System
	Display *Display

	mu  sync.Mutex
	tr  *protocol.Transport
	out *protocol.ScratchOutput
	pot uint16

	mcuR  *io.PipeReader
	mcuW  *io.PipeWriter
	hostR *io.PipeReader
	hostW *io.PipeWriter

	period time.Duration
	debug  io.Writer

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithAppPeriod runs the speed-control application every period. Zero (the
// default) leaves stepping to the caller.
func WithAppPeriod(period time.Duration) Option {
	return func(s *Simulator) { s.period = period }
}

// WithDebug routes core debug output to w.
func WithDebug(w io.Writer) Option {
	return func(s *Simulator) { s.debug = w }
}

// New builds the simulated board: register file, HAL drivers, system and
// application. The application is attached but not set up; Start does
// that.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		Regs:    core.NewMemoryRegisters(),
		Display: NewDisplay(2, 16),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.debug != nil {
		w := s.debug
		core.SetDebugWriter(func(msg string) { fmt.Fprintln(w, msg) })
		core.SetDebugEnabled(true)
	}

	// conversions complete as soon as ADSC is written
	s.Regs.OnStore(core.ADCSRA, s.convert)

	core.SetMotorDriver(core.NewPortMotor(s.Regs, core.MotorIN1, core.MotorIN2))
	core.SetAnalogSampler(core.NewRegisterSampler(s.Regs))
	core.SetDisplay(s.Display)

	s.Sys = core.NewSystem(s.Regs)
	s.Sys.Dict.AddConstant("CLOCK_FREQ", uint32(8000000))
	s.Sys.Dict.AddConstant("BOARD", "sim")
	s.Sys.Dict.SetBuildInfo("go-sim")
	s.Sys.AttachApplication(core.DefaultSpeedConfig())

	s.out = protocol.NewScratchOutput()
	s.tr = protocol.NewTransport(s.out, s.Sys.HandleCommand)
	s.tr.SetFlushCallback(s.flush)
	s.Sys.SetTransport(s.tr)

	s.mcuR, s.hostW = io.Pipe()
	s.hostR, s.mcuW = io.Pipe()
	return s
}

// convert models the ADC finishing a conversion started by a store to
// ADCSRA with ADSC set.
func (s *Simulator) convert(v uint8) {
	const adsc = 1 << 6
	if v&adsc == 0 {
		return
	}
	s.Regs.Poke(core.ADCL, uint8(s.pot))
	s.Regs.Poke(core.ADCH, uint8(s.pot>>8)&0x03)
	s.Regs.Poke(core.ADCSRA, v&^adsc)
}

// flush pushes queued frames to the host. Runs with mu held.
func (s *Simulator) flush() {
	data := s.out.Result()
	if len(data) == 0 {
		return
	}
	// the pipe blocks until the host reads, so write a copy
	buf := append([]byte(nil), data...)
	s.out.Reset()
	_, _ = s.mcuW.Write(buf)
}

// Start runs the application setup and the link and application loops.
func (s *Simulator) Start() error {
	s.mu.Lock()
	err := s.Sys.Application().Setup()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("application setup: %w", err)
	}

	s.wg.Add(1)
	go s.linkLoop()
	if s.period > 0 {
		s.wg.Add(1)
		go s.appLoop()
	}
	return nil
}

func (s *Simulator) linkLoop() {
	defer s.wg.Done()
	in := protocol.NewFifoBuffer(1024)
	buf := make([]byte, 128)
	for {
		n, err := s.mcuR.Read(buf)
		if n > 0 {
			s.mu.Lock()
			in.Write(buf[:n])
			s.tr.Receive(in)
			s.flush()
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (s *Simulator) appLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.Step(); err != nil {
				core.DebugPrintln("[SIM] step: " + err.Error())
			}
		}
	}
}

// Port returns the host end of the link.
func (s *Simulator) Port() serial.Port {
	return serial.PipePort{ReadWriteCloser: &hostEnd{r: s.hostR, w: s.hostW}}
}

// Step runs one application iteration.
func (s *Simulator) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Sys.Step()
}

// SetPotentiometer sets the 10-bit value the next conversion returns.
func (s *Simulator) SetPotentiometer(v uint16) {
	s.mu.Lock()
	s.pot = v & 0x3FF
	s.mu.Unlock()
}

// ErrUnknownVector is returned by Raise for names no vector has.
var ErrUnknownVector = errors.New("unknown vector")

// Raise latches v's flag the way the peripheral would. If the vector is
// enabled the flag is serviced at once, as the target would on the next
// instruction. It reports whether a dispatch happened.
func (s *Simulator) Raise(v core.Vector) (bool, error) {
	flag, mask, ok := v.Flag()
	if !ok {
		return false, fmt.Errorf("raise %d: %w", v, ErrUnknownVector)
	}
	enable, _, _ := v.Enable()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Regs.Raise(flag, mask)
	if s.Regs.Load8(enable)&mask == 0 {
		return false, nil
	}
	s.Sys.IRQ.Dispatch(v)
	return true, nil
}

// RaiseByName is Raise for a datasheet vector name such as TIMER0_OVF.
func (s *Simulator) RaiseByName(name string) (bool, error) {
	v, ok := core.VectorByName(name)
	if !ok {
		return false, fmt.Errorf("raise %s: %w", name, ErrUnknownVector)
	}
	return s.Raise(v)
}

// Close stops the loops and closes both pipe ends.
func (s *Simulator) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.hostW.Close()
		s.mcuR.Close()
		s.mcuW.Close()
		s.hostR.Close()
		s.wg.Wait()
	})
	return nil
}

type hostEnd struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (h *hostEnd) Read(p []byte) (int, error)  { return h.r.Read(p) }
func (h *hostEnd) Write(p []byte) (int, error) { return h.w.Write(p) }
func (h *hostEnd) Close() error {
	h.w.Close()
	return h.r.Close()
}
