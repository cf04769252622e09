package core

import (
	"errors"

	"tinygo.org/x/drivers"
)

// TWCR bits
const (
	bitTWINT = 7
	bitTWEA  = 6
	bitTWSTA = 5
	bitTWSTO = 4
	bitTWEN  = 2
)

// TWSR status codes, prescaler bits masked off.
const (
	twiStatusMask  = 0xF8
	twiStart       = 0x08
	twiRepStart    = 0x10
	twiMTSlaAck    = 0x18
	twiMTSlaNack   = 0x20
	twiMTDataAck   = 0x28
	twiMTDataNack  = 0x30
	twiArbLost     = 0x38
	twiMRSlaAck    = 0x40
	twiMRSlaNack   = 0x48
	twiMRDataAck   = 0x50
	twiMRDataNack  = 0x58
	twiDefaultRate = 100000
)

// twiPollLimit bounds the wait for TWINT after each bus action.
const twiPollLimit = 20000

var (
	ErrTWINack    = errors.New("twi: not acknowledged")
	ErrTWITimeout = errors.New("twi: timeout")
	ErrTWIBus     = errors.New("twi: bus error")
)

// TWIError records the bus phase that failed and the status latched in
// TWSR at that point.
type TWIError struct {
	Addr   uint16
	Phase  string
	Status uint8
	Err    error
}

func (e *TWIError) Error() string {
	return e.Err.Error() + " at " + e.Phase + " addr=0x" + hex2(uint8(e.Addr)) +
		" status=0x" + hex2(e.Status)
}

func (e *TWIError) Unwrap() error { return e.Err }

// TWIMaster drives the two-wire interface as a polled bus master. It
// implements drivers.I2C so TinyGo device drivers can sit on top of it.
type TWIMaster struct {
	regs RegisterFile
}

var _ drivers.I2C = (*TWIMaster)(nil)

// NewTWIMaster enables the TWI with prescaler 1 and TWBR chosen for sclHz
// (100 kHz when zero).
func NewTWIMaster(regs RegisterFile, cpuHz, sclHz uint32) *TWIMaster {
	if sclHz == 0 {
		sclHz = twiDefaultRate
	}
	regs.Store8(TWSR, 0)
	regs.Store8(TWBR, TWIBitRate(cpuHz, sclHz))
	regs.Store8(TWCR, 1<<bitTWEN)
	return &TWIMaster{regs: regs}
}

// TWIBitRate computes TWBR for prescaler 1: SCL = F_CPU / (16 + 2*TWBR).
func TWIBitRate(cpuHz, sclHz uint32) uint8 {
	if sclHz == 0 || cpuHz/sclHz <= 16 {
		return 0
	}
	br := (cpuHz/sclHz - 16) / 2
	if br > 0xFF {
		return 0xFF
	}
	return uint8(br)
}

// Tx writes w and then reads len(r) bytes from the 7-bit address addr,
// with a repeated start between the two phases. The bus is always
// released with a stop, also on error.
func (t *TWIMaster) Tx(addr uint16, w, r []byte) error {
	err := t.tx(uint8(addr&0x7F), w, r)
	t.stop()
	return err
}

func (t *TWIMaster) tx(addr uint8, w, r []byte) error {
	fail := func(phase string, status uint8, err error) error {
		return &TWIError{Addr: uint16(addr), Phase: phase, Status: status, Err: err}
	}

	if len(w) > 0 || len(r) == 0 {
		st, err := t.start()
		if err != nil {
			return fail("start", st, err)
		}
		if st, err = t.send(addr << 1); err != nil {
			return fail("address", st, err)
		}
		if st != twiMTSlaAck {
			return fail("address", st, ErrTWINack)
		}
		for _, b := range w {
			if st, err = t.send(b); err != nil {
				return fail("write", st, err)
			}
			if st != twiMTDataAck {
				return fail("write", st, ErrTWINack)
			}
		}
	}

	if len(r) == 0 {
		return nil
	}
	st, err := t.start()
	if err != nil {
		return fail("restart", st, err)
	}
	if st, err = t.send(addr<<1 | 1); err != nil {
		return fail("address", st, err)
	}
	if st != twiMRSlaAck {
		return fail("address", st, ErrTWINack)
	}
	for i := range r {
		last := i == len(r)-1
		ctl := uint8(1<<bitTWINT | 1<<bitTWEN)
		if !last {
			ctl |= 1 << bitTWEA
		}
		t.regs.Store8(TWCR, ctl)
		if st, err = t.wait(); err != nil {
			return fail("read", st, err)
		}
		if (last && st != twiMRDataNack) || (!last && st != twiMRDataAck) {
			return fail("read", st, ErrTWIBus)
		}
		r[i] = t.regs.Load8(TWDR)
	}
	return nil
}

func (t *TWIMaster) start() (uint8, error) {
	t.regs.Store8(TWCR, 1<<bitTWINT|1<<bitTWSTA|1<<bitTWEN)
	st, err := t.wait()
	if err != nil {
		return st, err
	}
	if st != twiStart && st != twiRepStart {
		return st, ErrTWIBus
	}
	return st, nil
}

func (t *TWIMaster) send(b uint8) (uint8, error) {
	t.regs.Store8(TWDR, b)
	t.regs.Store8(TWCR, 1<<bitTWINT|1<<bitTWEN)
	st, err := t.wait()
	if err == nil && st == twiArbLost {
		err = ErrTWIBus
	}
	return st, err
}

func (t *TWIMaster) stop() {
	t.regs.Store8(TWCR, 1<<bitTWINT|1<<bitTWSTO|1<<bitTWEN)
}

func (t *TWIMaster) wait() (uint8, error) {
	for i := 0; i < twiPollLimit; i++ {
		if t.regs.Load8(TWCR)&(1<<bitTWINT) != 0 {
			return t.regs.Load8(TWSR) & twiStatusMask, nil
		}
	}
	return t.regs.Load8(TWSR) & twiStatusMask, ErrTWITimeout
}
