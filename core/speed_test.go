package core

import (
	"strings"
	"testing"
)

type fakeSampler struct {
	value uint16
	reads []uint8
}

func (f *fakeSampler) ReadChannel(ch uint8) uint16 {
	f.reads = append(f.reads, ch)
	return f.value
}

func (f *fakeSampler) Resolution() uint8 { return ADCResolution }

type fakeDisplay struct {
	ops []string
}

func (f *fakeDisplay) Clear()                    { f.ops = append(f.ops, "clear") }
func (f *fakeDisplay) MoveCursor(row, col uint8) { f.ops = append(f.ops, "at "+utoa(uint32(row))+","+utoa(uint32(col))) }
func (f *fakeDisplay) PrintString(s string)      { f.ops = append(f.ops, "str "+s) }
func (f *fakeDisplay) PrintUint(v uint32)        { f.ops = append(f.ops, "uint "+utoa(v)) }

func newTestSpeed(t *testing.T) (*SpeedController, *MemoryRegisters, *fakeSampler, *fakeDisplay) {
	t.Helper()
	regs := NewMemoryRegisters()
	irq := NewDispatchRegistry(regs)
	timers := NewTimers(regs, irq)
	ext := NewExternalInterrupts(regs, irq)
	sampler := &fakeSampler{}
	disp := &fakeDisplay{}
	app := NewSpeedController(DefaultSpeedConfig(), timers, ext, NewPortMotor(regs, MotorIN1, MotorIN2), sampler, disp)
	if err := app.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return app, regs, sampler, disp
}

func TestSpeedSetup(t *testing.T) {
	app, regs, _, disp := newTestSpeed(t)

	if got := regs.Load8(TCCR0); got != 0x6A {
		t.Errorf("TCCR0 = %#x, want fast PWM /8 clear (0x6a)", got)
	}
	if got := regs.Load8(GICR); got != 1<<bitINT1 {
		t.Errorf("GICR = %#x, want INT1 enabled", got)
	}
	if got := regs.Load8(MCUCR) & 0x0C; got != 0x0C {
		t.Errorf("MCUCR ISC1 = %#x, want rising edge", got)
	}
	if app.motor.Direction() != DirForward {
		t.Errorf("direction = %v, want forward", app.motor.Direction())
	}
	if len(disp.ops) != 2 || disp.ops[0] != "clear" || disp.ops[1] != "str ADC Value = " {
		t.Errorf("display ops = %q", disp.ops)
	}
}

func TestSpeedStepScalesSample(t *testing.T) {
	tests := []struct {
		sample uint16
		duty   uint8
		shown  string
	}{
		{0, 0, "uint 0|str    "},
		{512, 128, "uint 512|str  "},
		{1023, 255, "uint 1023"},
		{4095, 255, "uint 4095"}, // out of range samples saturate
	}
	for _, tt := range tests {
		app, regs, sampler, disp := newTestSpeed(t)
		sampler.value = tt.sample
		disp.ops = nil

		if err := app.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if got := regs.Load8(OCR0); got != tt.duty {
			t.Errorf("sample %d: OCR0 = %d, want %d", tt.sample, got, tt.duty)
		}
		if sample, duty := app.LastSample(); sample != tt.sample || duty != uint32(tt.duty) {
			t.Errorf("LastSample = %d, %d", sample, duty)
		}
		if len(disp.ops) == 0 || disp.ops[0] != "at 0,12" {
			t.Fatalf("display ops = %q", disp.ops)
		}
		if got := strings.Join(disp.ops[1:], "|"); got != tt.shown {
			t.Errorf("sample %d shown as %q, want %q", tt.sample, got, tt.shown)
		}
		if len(sampler.reads) != 1 || sampler.reads[0] != 0 {
			t.Errorf("reads = %v, want channel 0 once", sampler.reads)
		}
	}
}

func TestSpeedStepLeavesTimerConfig(t *testing.T) {
	app, regs, sampler, _ := newTestSpeed(t)
	sampler.value = 700
	before := regs.Load8(TCCR0)
	for i := 0; i < 3; i++ {
		if err := app.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if regs.Load8(TCCR0) != before {
		t.Errorf("TCCR0 changed from %#x to %#x", before, regs.Load8(TCCR0))
	}
}

func TestButtonTogglesDirection(t *testing.T) {
	app, regs, _, _ := newTestSpeed(t)
	irq := app.timers.Registry()

	regs.Raise(GIFR, 1<<bitINT1)
	irq.Dispatch(VectorINT1)
	if d := app.motor.Direction(); d != DirReverse {
		t.Errorf("after one press direction = %v, want reverse", d)
	}
	if regs.Load8(GIFR) != 0 {
		t.Error("INT1 flag not acknowledged")
	}

	irq.Dispatch(VectorINT1)
	if d := app.motor.Direction(); d != DirForward {
		t.Errorf("after two presses direction = %v, want forward", d)
	}
	if app.Toggles() != 2 {
		t.Errorf("Toggles = %d, want 2", app.Toggles())
	}

	app.motor.StopMotor()
	irq.Dispatch(VectorINT1)
	if d := app.motor.Direction(); d != DirStopped {
		t.Errorf("stopped motor moved: %v", d)
	}
	if app.Toggles() != 2 {
		t.Errorf("Toggles = %d after press on stopped motor", app.Toggles())
	}
}

func TestPortMotorPreservesPort(t *testing.T) {
	regs := NewMemoryRegisters()
	regs.Poke(PORTB, 1<<PB3|1<<PB2)
	regs.Poke(DDRB, 1<<PB3)
	m := NewPortMotor(regs, MotorIN1, MotorIN2)

	if got := regs.Load8(DDRB); got != 1<<PB3|1<<PB0|1<<PB1 {
		t.Errorf("DDRB = %#x", got)
	}
	if m.Direction() != DirStopped {
		t.Errorf("initial direction = %v", m.Direction())
	}

	m.DriveForward()
	if got := regs.Load8(PORTB); got != 1<<PB3|1<<PB2|1<<PB1 {
		t.Errorf("forward PORTB = %#x", got)
	}
	m.DriveReverse()
	if got := regs.Load8(PORTB); got != 1<<PB3|1<<PB2|1<<PB0 {
		t.Errorf("reverse PORTB = %#x", got)
	}
	if m.Direction() != DirReverse {
		t.Errorf("direction = %v, want reverse", m.Direction())
	}
	m.StopMotor()
	if got := regs.Load8(PORTB); got != 1<<PB3|1<<PB2 {
		t.Errorf("stopped PORTB = %#x", got)
	}
}

func TestPortMotorNeverDrivesBothLines(t *testing.T) {
	regs := NewMemoryRegisters()
	m := NewPortMotor(regs, MotorIN1, MotorIN2)
	m.DriveForward()

	both := uint8(1<<PB0 | 1<<PB1)
	regs.OnStore(PORTB, func(v uint8) {
		if v&both == both {
			t.Errorf("PORTB = %#x drives both lines", v)
		}
	})
	m.DriveReverse()
	m.DriveForward()
	m.StopMotor()
}

func TestRegisterSampler(t *testing.T) {
	regs := NewMemoryRegisters()
	// the conversion completes as soon as it is started
	regs.OnStore(ADCSRA, func(v uint8) {
		if v&(1<<bitADSC) == 0 {
			return
		}
		regs.Poke(ADCL, 0xFF)
		regs.Poke(ADCH, 0x03)
		regs.Poke(ADCSRA, v&^(1<<bitADSC))
	})
	s := NewRegisterSampler(regs)

	if got := regs.Load8(ADCSRA); got != 1<<bitADEN|adpsDiv128 {
		t.Errorf("ADCSRA = %#x", got)
	}
	if got := s.ReadChannel(5); got != 1023 {
		t.Errorf("ReadChannel = %d, want 1023", got)
	}
	if got := regs.Load8(ADMUX); got != 1<<bitREFS0|5 {
		t.Errorf("ADMUX = %#x, want REFS0 | channel 5", got)
	}
	if s.Resolution() != 10 {
		t.Errorf("Resolution = %d", s.Resolution())
	}
}

func TestRegisterSamplerTimeoutKeepsLast(t *testing.T) {
	regs := NewMemoryRegisters()
	done := true
	regs.OnStore(ADCSRA, func(v uint8) {
		if v&(1<<bitADSC) != 0 && done {
			regs.Poke(ADCL, 42)
			regs.Poke(ADCSRA, v&^(1<<bitADSC))
		}
	})
	s := NewRegisterSampler(regs)
	if got := s.ReadChannel(0); got != 42 {
		t.Fatalf("ReadChannel = %d, want 42", got)
	}

	done = false
	regs.Poke(ADCL, 7)
	if got := s.ReadChannel(0); got != 42 {
		t.Errorf("timed out ReadChannel = %d, want previous 42", got)
	}
}
