package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event captures one configuration or dispatch event for post-mortem
// analysis.
type Event struct {
	Type   uint8 // Event type code
	Target uint8 // Timer, line or vector the event refers to
	Value1 uint32
	Value2 uint32
}

// Event type codes
const (
	EvtTimerInit     = 1  // timer configured (v1=mode, v2=compare)
	EvtTimerStop     = 2  // clock select cleared
	EvtTimerStart    = 3  // clock select restored (v1=clock)
	EvtTimerDeinit   = 4  // timer registers cleared
	EvtCompare       = 5  // compare value changed (v1=channel, v2=value)
	EvtDispatch      = 6  // vector dispatched (v1=handled)
	EvtExtInit       = 7  // external line configured (v1=edge)
	EvtExtDeinit     = 8  // external line cleared
	EvtConfigError   = 9  // configuration rejected
	EvtEmergencyStop = 10 // every timer and line stopped
	EvtStepError     = 11 // application pass failed (v2=failures so far)
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer (non-blocking, for post-mortem). Written from both
	// the main loop and dispatch, so access goes through lockEvents.
	eventRing     [EventRingSize]Event
	eventRingHead uint8
	eventsEnabled bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent captures an event in the ring buffer. It never blocks on I/O
// and is safe to call from dispatch.
func RecordEvent(eventType, target uint8, value1, value2 uint32) {
	if !eventsEnabled {
		return
	}
	state := lockEvents()
	idx := eventRingHead
	eventRing[idx] = Event{
		Type:   eventType,
		Target: target,
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
	unlockEvents(state)
}

// Events returns the recorded events, oldest first.
func Events() []Event {
	state := lockEvents()
	defer unlockEvents(state)

	out := make([]Event, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Type == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

func eventName(t uint8) string {
	switch t {
	case EvtTimerInit:
		return "TIMER_INIT"
	case EvtTimerStop:
		return "TIMER_STOP"
	case EvtTimerStart:
		return "TIMER_START"
	case EvtTimerDeinit:
		return "TIMER_DEINIT"
	case EvtCompare:
		return "COMPARE"
	case EvtDispatch:
		return "DISPATCH"
	case EvtExtInit:
		return "EXT_INIT"
	case EvtExtDeinit:
		return "EXT_DEINIT"
	case EvtConfigError:
		return "CONFIG_ERR!"
	case EvtEmergencyStop:
		return "ESTOP"
	case EvtStepError:
		return "STEP_ERR!"
	}
	return "UNKNOWN"
}

// DumpEvents outputs the event ring buffer (call on shutdown/error)
func DumpEvents() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENTS] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENTS] " + eventName(evt.Type) +
			" target=" + itoa(int(evt.Target)) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEvents clears the event buffer
func ClearEvents() {
	state := lockEvents()
	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
	unlockEvents(state)
}
