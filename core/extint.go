package core

// Line is an external interrupt input.
type Line uint8

const (
	LineINT0 Line = iota
	LineINT1
	LineINT2
	NumLines
)

// EdgeMode selects the input condition that raises the interrupt. The wire
// value equals the ISCn1:0 encoding of lines 0 and 1.
type EdgeMode uint8

const (
	EdgeLowLevel EdgeMode = iota
	EdgeAnyChange
	EdgeFalling
	EdgeRising
	numEdges
)

// ExternalInterruptConfig is consumed by ExternalInterrupts.Init.
type ExternalInterruptConfig struct {
	Line Line
	Edge EdgeMode
}

// LineState is the lifecycle state of one external line.
type LineState uint8

const (
	LineUninit LineState = iota
	LineConfigured
)

func (l Line) String() string      { return enumName(LineNames, uint8(l)) }
func (e EdgeMode) String() string  { return enumName(EdgeModeNames, uint8(e)) }
func (s LineState) String() string { return enumName(LineStateNames, uint8(s)) }

type lineLayout struct {
	pin        PinRef
	pullUp     bool // fixed per board, not selectable at runtime
	sense      Register
	senseShift uint8
	senseWidth uint8 // INT2 has a single ISC2 bit
	enable     uint8 // GICR enable, GIFR flag
}

func (l *lineLayout) senseMask() uint8 {
	return (1<<l.senseWidth - 1) << l.senseShift
}

// senseBits encodes edge for this line. ok is false when the selector is
// too narrow for edge.
func (l *lineLayout) senseBits(edge EdgeMode) (uint8, bool) {
	if l.senseWidth == 1 {
		switch edge {
		case EdgeFalling:
			return 0, true
		case EdgeRising:
			return 1 << l.senseShift, true
		}
		return 0, false
	}
	return uint8(edge) << l.senseShift, true
}

var lines = [NumLines]lineLayout{
	LineINT0: {
		pin:        PinRef{DDR: DDRD, Port: PORTD, Bit: PD2},
		pullUp:     true,
		sense:      MCUCR,
		senseShift: bitISC00,
		senseWidth: 2,
		enable:     1 << bitINT0,
	},
	LineINT1: {
		pin:        PinRef{DDR: DDRD, Port: PORTD, Bit: PD3},
		pullUp:     true,
		sense:      MCUCR,
		senseShift: bitISC10,
		senseWidth: 2,
		enable:     1 << bitINT1,
	},
	LineINT2: {
		pin:        PinRef{DDR: DDRB, Port: PORTB, Bit: PB2},
		sense:      MCUCSR,
		senseShift: bitISC2,
		senseWidth: 1,
		enable:     1 << bitINT2,
	},
}

// ExternalInterrupts configures INT0..INT2. Callbacks live in the shared
// DispatchRegistry.
type ExternalInterrupts struct {
	regs  RegisterFile
	irq   *DispatchRegistry
	state [NumLines]LineState
	edge  [NumLines]EdgeMode
}

// NewExternalInterrupts creates the configurator. A nil registry gets a
// private one.
func NewExternalInterrupts(regs RegisterFile, irq *DispatchRegistry) *ExternalInterrupts {
	if irq == nil {
		irq = NewDispatchRegistry(regs)
	}
	return &ExternalInterrupts{regs: regs, irq: irq}
}

func (e *ExternalInterrupts) reject(op string, c Code, what string, line Line) error {
	RecordEvent(EvtConfigError, uint8(line), 0, 0)
	DebugPrintln("[EXTINT] " + op + " rejected: " + string(c) + " " + what)
	return configErr(op, c, what)
}

// Init configures the line as an input with its fixed pull-up, selects the
// sense condition and enables the interrupt. The enable bit is off while
// the sense bits change, and a flag latched by the old setting is
// acknowledged before it is turned back on.
func (e *ExternalInterrupts) Init(cfg ExternalInterruptConfig) error {
	if cfg.Line >= NumLines {
		return e.reject("ext init", CodeInvalidLine, cfg.Line.String(), cfg.Line)
	}
	l := &lines[cfg.Line]
	if cfg.Edge >= numEdges {
		return e.reject("ext init", CodeUnsupportedEdge, cfg.Edge.String(), cfg.Line)
	}
	bits, ok := l.senseBits(cfg.Edge)
	if !ok {
		return e.reject("ext init", CodeUnsupportedEdge, cfg.Line.String()+" "+cfg.Edge.String(), cfg.Line)
	}

	modify8(e.regs, GICR, l.enable, 0)
	modify8(e.regs, l.pin.DDR, l.pin.mask(), 0)
	pull := uint8(0)
	if l.pullUp {
		pull = l.pin.mask()
	}
	modify8(e.regs, l.pin.Port, l.pin.mask(), pull)
	modify8(e.regs, l.sense, l.senseMask(), bits)
	ack(e.regs, GIFR, l.enable)
	modify8(e.regs, GICR, l.enable, l.enable)

	e.state[cfg.Line] = LineConfigured
	e.edge[cfg.Line] = cfg.Edge
	RecordEvent(EvtExtInit, uint8(cfg.Line), uint32(cfg.Edge), 0)
	DebugPrintln("[EXTINT] init " + cfg.Line.String() + " edge=" + cfg.Edge.String())
	return nil
}

// Deinit clears the line's sense and enable bits. Other lines sharing
// MCUCR and GICR are untouched.
func (e *ExternalInterrupts) Deinit(line Line) error {
	if line >= NumLines {
		return e.reject("ext deinit", CodeInvalidLine, line.String(), line)
	}
	l := &lines[line]
	modify8(e.regs, GICR, l.enable, 0)
	modify8(e.regs, l.sense, l.senseMask(), 0)

	e.state[line] = LineUninit
	e.edge[line] = 0
	RecordEvent(EvtExtDeinit, uint8(line), 0, 0)
	return nil
}

// SetCallback stores cb in the line's dispatch slot. A nil cb clears it.
func (e *ExternalInterrupts) SetCallback(line Line, cb func()) error {
	if line >= NumLines {
		return configErr("ext callback", CodeInvalidLine, line.String())
	}
	return e.irq.SetCallback(SourceExt0+InterruptSource(line), cb)
}

// State returns the lifecycle state; unknown lines report LineUninit.
func (e *ExternalInterrupts) State(line Line) LineState {
	if line >= NumLines {
		return LineUninit
	}
	return e.state[line]
}

// Edge returns the sense condition of a configured line.
func (e *ExternalInterrupts) Edge(line Line) (EdgeMode, bool) {
	if line >= NumLines || e.state[line] == LineUninit {
		return 0, false
	}
	return e.edge[line], true
}

// Registry returns the dispatch registry line callbacks are stored in.
func (e *ExternalInterrupts) Registry() *DispatchRegistry {
	return e.irq
}
