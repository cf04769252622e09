package core

import "avrpwm/protocol"

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// registerCoreCommands registers the link bootstrap and housekeeping
// commands. identify_response and identify must stay at ids 0 and 1; the
// host uses them before it has a dictionary.
func (s *System) registerCoreCommands() {
	r := s.Commands
	r.RegisterResponse("identify_response", "offset=%u data=%.*s") // ID 0
	r.Register("identify", "offset=%u count=%c", s.handleIdentify) // ID 1

	r.Register("get_config", "", s.handleGetConfig)
	r.Register("emergency_stop", "", s.handleEmergencyStop)
	r.Register("clear_shutdown", "", s.handleClearShutdown)
	r.Register("set_debug", "enable=%c", s.handleSetDebug)
	r.Register("dump_events", "start=%c", s.handleDumpEvents)
	r.Register("query_stats", "", s.handleQueryStats)

	r.RegisterResponse("config", "is_shutdown=%c timers=%c lines=%c app=%c")
	r.RegisterResponse("event", "index=%c total=%c type=%c target=%c v1=%u v2=%u")
	r.RegisterResponse("command_error", "cmd=%hu code=%s")
	r.RegisterResponse("stats", "rx_overruns=%u link_errors=%u step_errors=%u")

	s.Dict.AddConstant("MCU", "atmega32")
	s.Dict.AddConstant("PROTOCOL", protocol.Version)
}

// handleIdentify returns chunks of the data dictionary
func (s *System) handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := s.Dict.GetChunk(offset, uint8(count))
	s.SendResponse("identify_response", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQBytes(out, chunk)
	})
	return nil
}

// handleGetConfig reports shutdown state and how many timers and lines are
// configured.
func (s *System) handleGetConfig(data *[]byte) error {
	var timers, lines uint32
	for id := TimerID(0); id < NumTimers; id++ {
		if s.Timers.State(id) != TimerUninit {
			timers++
		}
	}
	for line := Line(0); line < NumLines; line++ {
		if s.Ext.State(line) == LineConfigured {
			lines++
		}
	}
	s.SendResponse("config", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, boolArg(s.IsShutdown()))
		protocol.EncodeVLQUint(out, timers)
		protocol.EncodeVLQUint(out, lines)
		protocol.EncodeVLQUint(out, boolArg(s.app != nil))
	})
	return nil
}

func (s *System) handleEmergencyStop(data *[]byte) error {
	s.EmergencyStop()
	return nil
}

func (s *System) handleClearShutdown(data *[]byte) error {
	s.ClearShutdown()
	return nil
}

func (s *System) handleQueryStats(data *[]byte) error {
	s.SendResponse("stats", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, s.Stats.RxOverruns.Load())
		protocol.EncodeVLQUint(out, s.Stats.LinkErrors.Load())
		protocol.EncodeVLQUint(out, s.Stats.StepErrors.Load())
	})
	return nil
}

func (s *System) handleSetDebug(data *[]byte) error {
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	SetDebugEnabled(enable != 0)
	return nil
}

// eventsPerPage keeps one dump_events reply inside a single output flush.
const eventsPerPage = 8

// handleDumpEvents sends up to eventsPerPage events of the ring, oldest
// first, starting at start. The host pages until index+1 == total.
func (s *System) handleDumpEvents(data *[]byte) error {
	start, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	events := Events()
	total := uint32(len(events))
	for i := start; i < total && i < start+eventsPerPage; i++ {
		evt, idx := events[i], i
		s.SendResponse("event", func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, idx)
			protocol.EncodeVLQUint(out, total)
			protocol.EncodeVLQUint(out, uint32(evt.Type))
			protocol.EncodeVLQUint(out, uint32(evt.Target))
			protocol.EncodeVLQUint(out, evt.Value1)
			protocol.EncodeVLQUint(out, evt.Value2)
		})
	}
	return nil
}
