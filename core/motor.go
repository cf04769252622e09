package core

// PortMotor is a MotorDriver on two pins of one port. Each line change is
// a masked read-modify-write so the rest of the port is preserved, which
// matters because PB3 on the same port is the OC0 output.
type PortMotor struct {
	regs RegisterFile
	in1  PinRef
	in2  PinRef
}

// Motor direction pins on the reference board.
var (
	MotorIN1 = PinRef{DDR: DDRB, Port: PORTB, Bit: PB0}
	MotorIN2 = PinRef{DDR: DDRB, Port: PORTB, Bit: PB1}
)

// NewPortMotor configures both direction pins as outputs, driven low.
func NewPortMotor(regs RegisterFile, in1, in2 PinRef) *PortMotor {
	m := &PortMotor{regs: regs, in1: in1, in2: in2}
	m.set(false, false)
	modify8(regs, in1.DDR, in1.mask(), in1.mask())
	modify8(regs, in2.DDR, in2.mask(), in2.mask())
	return m
}

func (m *PortMotor) set(a, b bool) {
	write := func(p PinRef, on bool) {
		v := uint8(0)
		if on {
			v = p.mask()
		}
		modify8(m.regs, p.Port, p.mask(), v)
	}
	// The active line is released first so both are never high together.
	if a {
		write(m.in2, b)
		write(m.in1, a)
	} else {
		write(m.in1, a)
		write(m.in2, b)
	}
}

func (m *PortMotor) DriveForward() { m.set(false, true) }
func (m *PortMotor) DriveReverse() { m.set(true, false) }
func (m *PortMotor) StopMotor()    { m.set(false, false) }

// Direction reads the output latches. Both high is reported as stopped.
func (m *PortMotor) Direction() Direction {
	a := m.regs.Load8(m.in1.Port)&m.in1.mask() != 0
	b := m.regs.Load8(m.in2.Port)&m.in2.mask() != 0
	switch {
	case !a && b:
		return DirForward
	case a && !b:
		return DirReverse
	}
	return DirStopped
}
