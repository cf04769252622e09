package core

import "avrpwm/protocol"

// registerTimerCommands exposes the timer and external interrupt
// configurators over the link. Every enum argument uses the index of the
// matching dictionary enumeration.
func (s *System) registerTimerCommands() {
	r := s.Commands
	r.Register("config_timer", "timer=%c mode=%c clock=%c output=%c channel=%c initial=%hu compare=%hu", s.handleConfigTimer)
	r.Register("timer_start", "timer=%c clock=%c", s.handleTimerStart)
	r.Register("timer_stop", "timer=%c", s.handleTimerStop)
	r.Register("timer_deinit", "timer=%c", s.handleTimerDeinit)
	r.Register("set_compare", "timer=%c channel=%c value=%hu", s.handleSetCompare)
	r.Register("query_timer", "timer=%c", s.handleQueryTimer)

	r.Register("config_ext_irq", "line=%c edge=%c", s.handleConfigExtIRQ)
	r.Register("ext_irq_deinit", "line=%c", s.handleExtIRQDeinit)
	r.Register("query_irq", "line=%c", s.handleQueryIRQ)
	r.Register("query_speed", "", s.handleQuerySpeed)

	r.RegisterResponse("timer_state", "timer=%c state=%c mode=%c clock=%c output=%c channel=%c compare=%hu ocr_a=%hu ocr_b=%hu control_a=%c control_b=%c")
	r.RegisterResponse("irq_state", "line=%c state=%c edge=%c count=%u")
	r.RegisterResponse("speed_state", "sample=%hu duty=%u direction=%c toggles=%u")

	d := s.Dict
	d.AddEnumeration("timer", TimerNames)
	d.AddEnumeration("timer_mode", TimerModeNames)
	d.AddEnumeration("clock", ClockNames)
	d.AddEnumeration("output_mode", OutputModeNames)
	d.AddEnumeration("channel", ChannelNames)
	d.AddEnumeration("timer_state", TimerStateNames)
	d.AddEnumeration("line", LineNames)
	d.AddEnumeration("edge", EdgeModeNames)
	d.AddEnumeration("line_state", LineStateNames)
	d.AddEnumeration("direction", directionNames)
	d.AddEnumeration("vector", VectorNames)
}

// decodeByte reads an enum argument. Values that do not fit a byte become
// 0xFF, which no enumeration uses, so the configurator rejects them rather
// than wrapping onto a valid value.
func decodeByte(data *[]byte) (uint8, error) {
	v, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0xFF, nil
	}
	return uint8(v), nil
}

func decodeBytes(data *[]byte, out ...*uint8) error {
	for _, p := range out {
		v, err := decodeByte(data)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

func (s *System) handleConfigTimer(data *[]byte) error {
	var timer, mode, clock, output, channel uint8
	if err := decodeBytes(data, &timer, &mode, &clock, &output, &channel); err != nil {
		return err
	}
	initial, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	compare, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if s.IsShutdown() {
		return configErr("config_timer", CodeShutdown, "")
	}

	cfg := TimerConfig{
		Timer:             TimerID(timer),
		Mode:              TimerMode(mode),
		Clock:             ClockPrescale(clock),
		Output:            CompareOutputMode(output),
		Channel:           ChannelSelect(channel),
		InitialValue:      initial,
		CompareMatchValue: compare,
	}
	if err := s.Timers.Init(cfg); err != nil {
		return err
	}
	s.sendTimerState(cfg.Timer)
	return nil
}

func (s *System) handleTimerStart(data *[]byte) error {
	var timer, clock uint8
	if err := decodeBytes(data, &timer, &clock); err != nil {
		return err
	}
	if s.IsShutdown() {
		return configErr("timer_start", CodeShutdown, "")
	}
	if err := s.Timers.Start(TimerID(timer), ClockPrescale(clock)); err != nil {
		return err
	}
	s.sendTimerState(TimerID(timer))
	return nil
}

func (s *System) handleTimerStop(data *[]byte) error {
	timer, err := decodeByte(data)
	if err != nil {
		return err
	}
	if err := s.Timers.Stop(TimerID(timer)); err != nil {
		return err
	}
	s.sendTimerState(TimerID(timer))
	return nil
}

func (s *System) handleTimerDeinit(data *[]byte) error {
	timer, err := decodeByte(data)
	if err != nil {
		return err
	}
	if err := s.Timers.Deinit(TimerID(timer)); err != nil {
		return err
	}
	s.sendTimerState(TimerID(timer))
	return nil
}

// handleSetCompare sends no reply; it is meant to be streamed.
func (s *System) handleSetCompare(data *[]byte) error {
	var timer, channel uint8
	if err := decodeBytes(data, &timer, &channel); err != nil {
		return err
	}
	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	return s.Timers.ChangeCompareValue(TimerID(timer), value, ChannelSelect(channel))
}

func (s *System) handleQueryTimer(data *[]byte) error {
	timer, err := decodeByte(data)
	if err != nil {
		return err
	}
	if TimerID(timer) >= NumTimers {
		return configErr("query_timer", CodeInvalidTimer, TimerID(timer).String())
	}
	s.sendTimerState(TimerID(timer))
	return nil
}

// sendTimerState reports the stored configuration next to what the
// registers actually hold.
func (s *System) sendTimerState(id TimerID) {
	l, ok := LayoutFor(id)
	if !ok {
		return
	}
	cfg, _ := s.Timers.Config(id)
	ocrA, _ := s.Timers.CompareValue(id, ChannelA)
	var ocrB uint32
	if l.DualChannel() {
		ocrB, _ = s.Timers.CompareValue(id, ChannelB)
	}
	s.SendResponse("timer_state", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(id))
		protocol.EncodeVLQUint(out, uint32(s.Timers.State(id)))
		protocol.EncodeVLQUint(out, uint32(cfg.Mode))
		protocol.EncodeVLQUint(out, uint32(cfg.Clock))
		protocol.EncodeVLQUint(out, uint32(cfg.Output))
		protocol.EncodeVLQUint(out, uint32(cfg.Channel))
		protocol.EncodeVLQUint(out, cfg.CompareMatchValue)
		protocol.EncodeVLQUint(out, ocrA)
		protocol.EncodeVLQUint(out, ocrB)
		protocol.EncodeVLQUint(out, uint32(s.Regs.Load8(l.ControlA)))
		protocol.EncodeVLQUint(out, uint32(s.Regs.Load8(l.ControlB)))
	})
}

func (s *System) handleConfigExtIRQ(data *[]byte) error {
	var line, edge uint8
	if err := decodeBytes(data, &line, &edge); err != nil {
		return err
	}
	if s.IsShutdown() {
		return configErr("config_ext_irq", CodeShutdown, "")
	}
	cfg := ExternalInterruptConfig{Line: Line(line), Edge: EdgeMode(edge)}
	if err := s.Ext.Init(cfg); err != nil {
		return err
	}
	s.sendIRQState(cfg.Line)
	return nil
}

func (s *System) handleExtIRQDeinit(data *[]byte) error {
	line, err := decodeByte(data)
	if err != nil {
		return err
	}
	if err := s.Ext.Deinit(Line(line)); err != nil {
		return err
	}
	s.sendIRQState(Line(line))
	return nil
}

func (s *System) handleQueryIRQ(data *[]byte) error {
	line, err := decodeByte(data)
	if err != nil {
		return err
	}
	if Line(line) >= NumLines {
		return configErr("query_irq", CodeInvalidLine, Line(line).String())
	}
	s.sendIRQState(Line(line))
	return nil
}

func (s *System) sendIRQState(line Line) {
	edge, _ := s.Ext.Edge(line)
	count := s.IRQ.SourceCount(SourceExt0 + InterruptSource(line))
	s.SendResponse("irq_state", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(line))
		protocol.EncodeVLQUint(out, uint32(s.Ext.State(line)))
		protocol.EncodeVLQUint(out, uint32(edge))
		protocol.EncodeVLQUint(out, count)
	})
}

func (s *System) handleQuerySpeed(data *[]byte) error {
	if s.app == nil {
		return configErr("query_speed", CodeNotConfigured, "no application")
	}
	sample, duty := s.app.LastSample()
	s.SendResponse("speed_state", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(sample))
		protocol.EncodeVLQUint(out, duty)
		protocol.EncodeVLQUint(out, uint32(s.app.motor.Direction()))
		protocol.EncodeVLQUint(out, s.app.Toggles())
	})
	return nil
}
