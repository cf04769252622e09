package core

// Direction is the state of the two motor direction lines.
type Direction uint8

const (
	DirStopped Direction = iota
	DirForward
	DirReverse
)

var directionNames = []string{"stopped", "forward", "reverse"}

func (d Direction) String() string { return enumName(directionNames, uint8(d)) }

// MotorDriver drives an H-bridge through a two-line direction code. The
// timer subsystem never touches these lines; the PWM enable pin belongs to
// the timer's compare output.
type MotorDriver interface {
	// DriveForward sets IN1=0 IN2=1
	DriveForward()

	// DriveReverse sets IN1=1 IN2=0
	DriveReverse()

	// StopMotor clears both lines
	StopMotor()

	// Direction decodes the current line state
	Direction() Direction
}

// Global singleton used by core code.
var motorDriver MotorDriver

// SetMotorDriver is called by target-specific code to register its driver.
func SetMotorDriver(d MotorDriver) {
	motorDriver = d
}

// MustMotor returns the configured driver or panics if missing.
func MustMotor() MotorDriver {
	if motorDriver == nil {
		panic("motor driver not configured")
	}
	return motorDriver
}
