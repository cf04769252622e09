package core

import (
	"testing"

	"avrpwm/protocol"
)

// link drives a System through its Transport the way the host would.
type link struct {
	t   *testing.T
	sys *System
	tr  *protocol.Transport
	out *protocol.ScratchOutput
	seq uint8
}

type reply struct {
	name string
	args []uint32
	text string // %s argument of command_error
}

func newLink(t *testing.T, regs RegisterFile) *link {
	t.Helper()
	sys := NewSystem(regs)
	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, sys.HandleCommand)
	sys.SetTransport(tr)
	return &link{t: t, sys: sys, tr: tr, out: out, seq: protocol.MessageDest}
}

func (l *link) call(name string, args ...uint32) []reply {
	l.t.Helper()
	cmd, ok := l.sys.Commands.GetCommandByName(name)
	if !ok {
		l.t.Fatalf("no command %q", name)
	}
	payload := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(payload, uint32(cmd.ID))
	for _, a := range args {
		protocol.EncodeVLQUint(payload, a)
	}
	frame, err := protocol.BuildFrame(l.seq, payload.Result())
	if err != nil {
		l.t.Fatal(err)
	}
	l.seq = (l.seq+1)&protocol.MessageSeqMask | protocol.MessageDest

	l.out.Reset()
	l.tr.Receive(protocol.NewSliceInputBuffer(frame))
	return l.replies()
}

func (l *link) replies() []reply {
	l.t.Helper()
	var out []reply
	protocol.NewDeframer(false).Split(l.out.Result(), func(f protocol.Frame) {
		if f.IsAck() {
			return
		}
		p := f.Payload
		id, err := protocol.DecodeVLQUint(&p)
		if err != nil {
			l.t.Fatalf("bad response: %v", err)
		}
		cmd, ok := l.sys.Commands.GetCommand(uint16(id))
		if !ok {
			l.t.Fatalf("unknown response id %d", id)
		}
		r := reply{name: cmd.Name}
		if cmd.Name == "command_error" {
			v, _ := protocol.DecodeVLQUint(&p)
			r.args = []uint32{v}
			r.text, _ = protocol.DecodeVLQString(&p)
			out = append(out, r)
			return
		}
		for len(p) > 0 {
			v, err := protocol.DecodeVLQUint(&p)
			if err != nil {
				l.t.Fatalf("%s: %v", cmd.Name, err)
			}
			r.args = append(r.args, v)
		}
		out = append(out, r)
	})
	return out
}

func expectOne(t *testing.T, got []reply, name string) reply {
	t.Helper()
	if len(got) != 1 || got[0].name != name {
		t.Fatalf("replies = %+v, want one %s", got, name)
	}
	return got[0]
}

func TestConfigTimerCommand(t *testing.T) {
	regs := NewMemoryRegisters()
	l := newLink(t, regs)

	r := expectOne(t, l.call("config_timer",
		uint32(Timer1), uint32(ModeCTC), uint32(ClockDiv64), uint32(OutputClear), uint32(ChannelB), 0, 99), "timer_state")

	want := []uint32{uint32(Timer1), uint32(TimerConfigured), uint32(ModeCTC), uint32(ClockDiv64),
		uint32(OutputClear), uint32(ChannelB), 99, 100, 99, 0x24, 0x0B}
	if len(r.args) != len(want) {
		t.Fatalf("timer_state args = %v", r.args)
	}
	for i := range want {
		if r.args[i] != want[i] {
			t.Errorf("timer_state arg %d = %d, want %d", i, r.args[i], want[i])
		}
	}
	if regs.Load16(OCR1A) != 100 {
		t.Errorf("OCR1A = %d", regs.Load16(OCR1A))
	}
}

func TestSetCompareStreamsWithoutReply(t *testing.T) {
	regs := NewMemoryRegisters()
	l := newLink(t, regs)
	l.call("config_timer", uint32(Timer0), uint32(ModeFastPWM), uint32(ClockDiv8), uint32(OutputClear), 0, 0, 0)

	if got := l.call("set_compare", uint32(Timer0), 0, 128); len(got) != 0 {
		t.Errorf("set_compare replied %+v", got)
	}
	if regs.Load8(OCR0) != 128 {
		t.Errorf("OCR0 = %d, want 128", regs.Load8(OCR0))
	}

	r := expectOne(t, l.call("query_timer", uint32(Timer0)), "timer_state")
	if r.args[6] != 128 || r.args[7] != 128 {
		t.Errorf("query_timer compare=%d ocr_a=%d", r.args[6], r.args[7])
	}
	// single-channel timers have no second compare register
	if r.args[8] != 0 {
		t.Errorf("query_timer ocr_b=%d on timer0, want 0", r.args[8])
	}
}

func TestCommandErrorsReported(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		args []uint32
		code Code
	}{
		{"bad timer", "config_timer", []uint32{5, 0, 1, 0, 0, 0, 0}, CodeInvalidTimer},
		{"oversized enum", "config_timer", []uint32{0, 300, 1, 0, 0, 0, 0}, CodeInvalidMode},
		{"channel b on timer2", "config_timer", []uint32{2, 2, 1, 0, 1, 0, 0}, CodeInvalidChannel},
		{"stop uninit", "timer_stop", []uint32{1}, CodeNotConfigured},
		{"compare uninit", "set_compare", []uint32{0, 0, 10}, CodeNotConfigured},
		{"int2 low level", "config_ext_irq", []uint32{2, 0}, CodeUnsupportedEdge},
		{"query bad line", "query_irq", []uint32{9}, CodeInvalidLine},
		{"no application", "query_speed", nil, CodeNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs := NewMemoryRegisters()
			l := newLink(t, regs)
			r := expectOne(t, l.call(tt.cmd, tt.args...), "command_error")
			cmd, _ := l.sys.Commands.GetCommandByName(tt.cmd)
			if r.args[0] != uint32(cmd.ID) || Code(r.text) != tt.code {
				t.Errorf("command_error cmd=%d code=%s, want %d %s", r.args[0], r.text, cmd.ID, tt.code)
			}
			for _, w := range regs.Writes() {
				t.Errorf("register %s written on error", RegisterName(w.Reg))
			}
		})
	}
}

func TestTimerLifecycleCommands(t *testing.T) {
	regs := NewMemoryRegisters()
	l := newLink(t, regs)
	l.call("config_timer", uint32(Timer2), uint32(ModeOverflow), uint32(ClockDiv1024), 0, 0, 0, 0)

	r := expectOne(t, l.call("timer_stop", uint32(Timer2)), "timer_state")
	if r.args[1] != uint32(TimerStopped) || regs.Load8(TCCR2)&clockSelectMask != 0 {
		t.Errorf("after stop state=%d TCCR2=%#x", r.args[1], regs.Load8(TCCR2))
	}

	r = expectOne(t, l.call("timer_start", uint32(Timer2), uint32(ClockDiv8)), "timer_state")
	if r.args[1] != uint32(TimerConfigured) || r.args[3] != uint32(ClockDiv8) {
		t.Errorf("after start state=%d clock=%d", r.args[1], r.args[3])
	}
	if regs.Load8(TCCR2)&clockSelectMask != 2 {
		t.Errorf("TCCR2 = %#x, want /8 selected", regs.Load8(TCCR2))
	}

	r = expectOne(t, l.call("timer_deinit", uint32(Timer2)), "timer_state")
	if r.args[1] != uint32(TimerUninit) || regs.Load8(TCCR2) != 0 {
		t.Errorf("after deinit state=%d TCCR2=%#x", r.args[1], regs.Load8(TCCR2))
	}
}

func TestExtIRQCommands(t *testing.T) {
	regs := NewMemoryRegisters()
	l := newLink(t, regs)

	r := expectOne(t, l.call("config_ext_irq", uint32(LineINT0), uint32(EdgeFalling)), "irq_state")
	if r.args[0] != 0 || r.args[1] != uint32(LineConfigured) || r.args[2] != uint32(EdgeFalling) || r.args[3] != 0 {
		t.Errorf("irq_state = %v", r.args)
	}

	l.sys.IRQ.Dispatch(VectorINT0)
	l.sys.IRQ.Dispatch(VectorINT0)
	r = expectOne(t, l.call("query_irq", uint32(LineINT0)), "irq_state")
	if r.args[3] != 2 {
		t.Errorf("count = %d, want 2", r.args[3])
	}

	r = expectOne(t, l.call("ext_irq_deinit", uint32(LineINT0)), "irq_state")
	if r.args[1] != uint32(LineUninit) || regs.Load8(GICR) != 0 {
		t.Errorf("after deinit state=%d GICR=%#x", r.args[1], regs.Load8(GICR))
	}
}

func TestEmergencyStopAndClear(t *testing.T) {
	regs := NewMemoryRegisters()
	l := newLink(t, regs)
	l.call("config_timer", uint32(Timer0), uint32(ModeFastPWM), uint32(ClockDiv8), uint32(OutputClear), 0, 0, 50)
	l.call("config_ext_irq", uint32(LineINT1), uint32(EdgeRising))

	if got := l.call("emergency_stop"); len(got) != 0 {
		t.Errorf("emergency_stop replied %+v", got)
	}
	if regs.Load8(TCCR0)&clockSelectMask != 0 || regs.Load8(GICR) != 0 {
		t.Errorf("after stop TCCR0=%#x GICR=%#x", regs.Load8(TCCR0), regs.Load8(GICR))
	}

	r := expectOne(t, l.call("config_timer", uint32(Timer0), uint32(ModeFastPWM), uint32(ClockDiv8), 0, 0, 0, 0), "command_error")
	if Code(r.text) != CodeShutdown {
		t.Errorf("config while shut down: %s", r.text)
	}
	r = expectOne(t, l.call("get_config"), "config")
	if r.args[0] != 1 || r.args[1] != 1 || r.args[2] != 0 || r.args[3] != 0 {
		t.Errorf("config = %v, want shutdown with one stopped timer", r.args)
	}

	l.call("clear_shutdown")
	expectOne(t, l.call("timer_start", uint32(Timer0), uint32(ClockDiv8)), "timer_state")
	if regs.Load8(TCCR0) != 0x6A {
		t.Errorf("TCCR0 = %#x after restart, want 0x6a", regs.Load8(TCCR0))
	}
}

func TestIdentifyReturnsDictionary(t *testing.T) {
	l := newLink(t, NewMemoryRegisters())
	data := l.sys.Dict.Generate()

	var got []byte
	for offset := uint32(0); ; {
		resp := l.call("identify", offset, 40)
		if len(resp) != 1 || resp[0].name != "identify_response" {
			t.Fatalf("identify replies = %+v", resp)
		}
		// identify_response carries a byte string; re-decode it raw
		frames := 0
		protocol.NewDeframer(false).Split(l.out.Result(), func(f protocol.Frame) {
			if f.IsAck() {
				return
			}
			frames++
			p := f.Payload
			protocol.DecodeVLQUint(&p)
			protocol.DecodeVLQUint(&p)
			chunk, err := protocol.DecodeVLQBytes(&p)
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, chunk...)
			offset += uint32(len(chunk))
		})
		if frames != 1 {
			t.Fatalf("%d identify frames", frames)
		}
		if offset >= uint32(len(data)) {
			break
		}
	}
	if string(got) != string(data) {
		t.Error("identify chunks do not reassemble the dictionary")
	}
}

func TestDumpEventsPages(t *testing.T) {
	ClearEvents()
	defer ClearEvents()

	l := newLink(t, NewMemoryRegisters())
	for i := 0; i < 12; i++ {
		RecordEvent(EvtCompare, 0, 0, uint32(i))
	}

	first := l.call("dump_events", 0)
	if len(first) != eventsPerPage {
		t.Fatalf("first page has %d events", len(first))
	}
	second := l.call("dump_events", eventsPerPage)
	if len(second) != 12-eventsPerPage {
		t.Fatalf("second page has %d events", len(second))
	}
	last := second[len(second)-1]
	if last.args[0] != 11 || last.args[1] != 12 || last.args[5] != 11 {
		t.Errorf("last event = %v", last.args)
	}
}

func TestSpeedApplicationOverLink(t *testing.T) {
	regs := NewMemoryRegisters()
	SetMotorDriver(NewPortMotor(regs, MotorIN1, MotorIN2))
	SetAnalogSampler(&fakeSampler{value: 400})
	SetDisplay(nil)
	defer func() {
		SetMotorDriver(nil)
		SetAnalogSampler(nil)
	}()

	l := newLink(t, regs)
	app := l.sys.AttachApplication(DefaultSpeedConfig())
	if err := app.Setup(); err != nil {
		t.Fatal(err)
	}
	if err := l.sys.Step(); err != nil {
		t.Fatal(err)
	}
	l.sys.IRQ.Dispatch(VectorINT1)

	r := expectOne(t, l.call("query_speed"), "speed_state")
	want := []uint32{400, 100, uint32(DirReverse), 1}
	for i := range want {
		if r.args[i] != want[i] {
			t.Errorf("speed_state arg %d = %d, want %d", i, r.args[i], want[i])
		}
	}

	l.sys.EmergencyStop()
	if app.motor.Direction() != DirStopped {
		t.Error("motor still running after emergency stop")
	}
	regs.ResetLog()
	if err := l.sys.Step(); err != nil {
		t.Fatal(err)
	}
	if len(regs.Writes()) != 0 {
		t.Error("Step ran while shut down")
	}
}

func TestStepFailuresCounted(t *testing.T) {
	regs := NewMemoryRegisters()
	SetMotorDriver(NewPortMotor(regs, MotorIN1, MotorIN2))
	SetAnalogSampler(&fakeSampler{value: 400})
	SetDisplay(nil)
	defer func() {
		SetMotorDriver(nil)
		SetAnalogSampler(nil)
	}()
	ClearEvents()
	defer ClearEvents()

	l := newLink(t, regs)
	app := l.sys.AttachApplication(DefaultSpeedConfig())
	if err := app.Setup(); err != nil {
		t.Fatal(err)
	}
	expectOne(t, l.call("timer_deinit", uint32(Timer0)), "timer_state")

	for i := 0; i < 3; i++ {
		if err := l.sys.Step(); CodeOf(err) != CodeNotConfigured {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	stepEvents := func() int {
		n := 0
		for _, e := range Events() {
			if e.Type == EvtStepError {
				n++
			}
		}
		return n
	}
	if n := stepEvents(); n != 1 {
		t.Errorf("%d step events after a run of failures, want 1", n)
	}

	l.sys.Stats.RxOverruns.Add(2)
	l.sys.Stats.LinkErrors.Add(1)
	r := expectOne(t, l.call("query_stats"), "stats")
	want := []uint32{2, 1, 3}
	for i := range want {
		if r.args[i] != want[i] {
			t.Errorf("stats arg %d = %d, want %d", i, r.args[i], want[i])
		}
	}

	// a good pass ends the run; the next failure is recorded again
	l.call("config_timer", uint32(Timer0), uint32(ModeFastPWM), uint32(ClockDiv8), uint32(OutputClear), 0, 0, 0)
	if err := l.sys.Step(); err != nil {
		t.Fatal(err)
	}
	l.call("timer_deinit", uint32(Timer0))
	_ = l.sys.Step()
	if n := stepEvents(); n != 2 {
		t.Errorf("%d step events, want 2", n)
	}
	if l.sys.Stats.StepErrors.Load() != 4 {
		t.Errorf("StepErrors = %d, want 4", l.sys.Stats.StepErrors.Load())
	}
}
