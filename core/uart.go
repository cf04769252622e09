package core

// UCSRA / UCSRB / UCSRC bits
const (
	bitRXC   = 7
	bitUDRE  = 5
	bitRXCIE = 7
	bitRXEN  = 4
	bitTXEN  = 3
	bitURSEL = 7
	bitUCSZ1 = 2
	bitUCSZ0 = 1
)

// uartPollLimit bounds the wait for the transmit buffer.
const uartPollLimit = 50000

// UARTDivisor returns UBRR for normal-speed asynchronous mode, rounded to
// the nearest divisor.
func UARTDivisor(cpuHz, baud uint32) uint16 {
	if baud == 0 {
		return 0
	}
	d := (cpuHz + 8*baud) / (16 * baud)
	if d == 0 {
		return 0
	}
	return uint16(d - 1)
}

// UART is the on-chip USART in 8N1 asynchronous mode. Transmission polls
// UDRE; reception is interrupt driven and the target moves UDR into its
// FIFO from the RXC handler.
type UART struct {
	regs    RegisterFile
	dropped uint32
}

// NewUART sets the baud divisor and frame format and enables the receiver,
// the receive interrupt and the transmitter.
func NewUART(regs RegisterFile, cpuHz, baud uint32) *UART {
	ubrr := UARTDivisor(cpuHz, baud)
	// UBRRH shares its address with UCSRC; URSEL clear selects UBRRH
	regs.Store8(UCSRC, uint8(ubrr>>8)&0x0F)
	regs.Store8(UBRRL, uint8(ubrr))
	regs.Store8(UCSRC, 1<<bitURSEL|1<<bitUCSZ1|1<<bitUCSZ0)
	regs.Store8(UCSRB, 1<<bitRXCIE|1<<bitRXEN|1<<bitTXEN)
	return &UART{regs: regs}
}

// WriteByte waits for an empty transmit buffer and queues b. A byte that
// cannot be queued within the poll limit is counted and dropped.
func (u *UART) WriteByte(b byte) error {
	for i := 0; i < uartPollLimit; i++ {
		if u.regs.Load8(UCSRA)&(1<<bitUDRE) != 0 {
			u.regs.Store8(UDR, b)
			return nil
		}
	}
	u.dropped++
	return errUARTBusy
}

// Write sends p, stopping at the first byte that cannot be queued.
func (u *UART) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := u.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// Received reads UDR if a byte is waiting.
func (u *UART) Received() (byte, bool) {
	if u.regs.Load8(UCSRA)&(1<<bitRXC) == 0 {
		return 0, false
	}
	return u.regs.Load8(UDR), true
}

// Dropped counts transmit bytes lost to a stuck transmitter.
func (u *UART) Dropped() uint32 { return u.dropped }

var errUARTBusy = Code("uart_busy")
