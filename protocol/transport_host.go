package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultAckTimeout bounds SendCommand.
const DefaultAckTimeout = 2 * time.Second

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrTimeout         = errors.New("timeout")
)

// ResponseHandler receives every response frame as it arrives, with the
// command id already decoded.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host end of the link: it frames commands, waits for
// the firmware's ACK and queues response frames.
type HostTransport struct {
	port io.ReadWriteCloser

	seq      atomic.Uint32 // sequence of the next command, 0x10..0x1F
	deframer *Deframer
	input    *FifoBuffer

	writeMu sync.Mutex // one command in flight
	acks    chan Frame
	resps   chan Frame

	handlerMu sync.RWMutex
	handler   ResponseHandler

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHostTransport starts reading port in the background.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:     port,
		deframer: NewDeframer(false),
		input:    NewFifoBuffer(1024),
		acks:     make(chan Frame, 4),
		resps:    make(chan Frame, 32),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	t.seq.Store(MessageDest)
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits for its ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout is SendCommand with an explicit ACK timeout.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	payload := NewScratchOutput()
	EncodeVLQUint(payload, uint32(cmdID))
	if args != nil {
		args(payload)
	}

	seq := uint8(t.seq.Load())
	frame, err := BuildFrame(seq, payload.Result())
	if err != nil {
		return fmt.Errorf("command %d: %w", cmdID, err)
	}

	t.drainAcks()
	if _, err := t.port.Write(frame); err != nil {
		return fmt.Errorf("write command %d: %w", cmdID, err)
	}
	if err := t.waitForAck(nextSeq(seq), timeout); err != nil {
		return fmt.Errorf("command %d: %w", cmdID, err)
	}
	t.seq.Store(uint32(nextSeq(seq)))
	return nil
}

func (t *HostTransport) drainAcks() {
	for {
		select {
		case <-t.acks:
		default:
			return
		}
	}
}

// waitForAck waits for an ACK naming want as the next expected sequence.
// Stale ACKs from resync are skipped.
func (t *HostTransport) waitForAck(want uint8, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ack := <-t.acks:
			if ack.Seq == want {
				return nil
			}
		case <-deadline.C:
			return fmt.Errorf("ACK for seq 0x%02x: %w after %v", want, ErrTimeout, timeout)
		case <-t.stop:
			return ErrTransportClosed
		}
	}
}

// ReceiveResponse returns the next queued response frame.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Frame, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case f := <-t.resps:
		return f, nil
	case <-deadline.C:
		return Frame{}, fmt.Errorf("response: %w after %v", ErrTimeout, timeout)
	case <-t.stop:
		return Frame{}, ErrTransportClosed
	}
}

// SetResponseHandler installs a callback run from the reader goroutine.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.handler = handler
	t.handlerMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			consumed := t.deframer.Split(t.input.Data(), t.route)
			t.input.Pop(consumed)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			select {
			case <-t.stop:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
		select {
		case <-t.stop:
			return
		default:
		}
	}
}

func (t *HostTransport) route(f Frame) {
	// Split hands out slices of the fifo; keep a private copy.
	f.Payload = append([]byte(nil), f.Payload...)

	if f.IsAck() {
		select {
		case t.acks <- f:
		default:
		}
		return
	}

	t.handlerMu.RLock()
	h := t.handler
	t.handlerMu.RUnlock()
	if h != nil {
		p := f.Payload
		if id, err := DecodeVLQUint(&p); err == nil {
			_ = h(uint16(id), &p)
		}
	}

	select {
	case t.resps <- f:
	default:
		// queue full: drop the oldest so the latest state wins
		select {
		case <-t.resps:
		default:
		}
		t.resps <- f
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}

// Reset restarts the sequence and discards queued frames.
func (t *HostTransport) Reset() {
	t.seq.Store(MessageDest)
	t.deframer.Resync()
	t.drainAcks()
	for len(t.resps) > 0 {
		<-t.resps
	}
}

// CurrentSequence returns the sequence the next command will carry.
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(t.seq.Load())
}
