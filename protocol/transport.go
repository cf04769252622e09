package protocol

import "sync/atomic"

// CommandHandler runs one decoded command. It decodes its own arguments
// from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link. Receive deframes host
// commands, dispatches them in order and acknowledges every frame;
// SendCommand frames responses into the output buffer.
type Transport struct {
	deframer *Deframer
	nextSeq  atomic.Uint32 // next expected host sequence, 0x10..0x1F
	output   OutputBuffer
	handler  CommandHandler

	resetCallback func()
	flushCallback func()
	errorCallback func(cmdID uint16, err error)
}

// NewTransport creates a transport writing to output.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		deframer: NewDeframer(true),
		output:   output,
		handler:  handler,
	}
	t.nextSeq.Store(MessageDest)
	t.deframer.OnResync = t.sendAck
	return t
}

// Receive consumes every complete frame in input.
func (t *Transport) Receive(input InputBuffer) {
	n := t.deframer.Split(input.Data(), t.handleFrame)
	if n > 0 {
		input.Pop(n)
	}
}

func (t *Transport) handleFrame(f Frame) {
	expected := uint8(t.nextSeq.Load())
	if f.Seq == MessageDest && expected != MessageDest {
		// host restarted its sequence
		t.nextSeq.Store(MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}
	if f.Seq == expected {
		t.nextSeq.Store(uint32(nextSeq(f.Seq)))
		t.dispatch(f.Payload)
	}
	// A mismatched sequence gets the same reply, which the host reads as
	// a NAK naming the sequence we want.
	t.sendAck()
}

// dispatch runs each command in the payload. A panicking handler desyncs
// the link instead of taking the firmware down.
func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.deframer.Desync()
		}
	}()

	for len(payload) > 0 {
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			t.deframer.Desync()
			return
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(id), &payload); err != nil {
			if t.errorCallback != nil {
				t.errorCallback(uint16(id), err)
			}
			// arguments of the failed command are unknown; drop the rest
			return
		}
	}
}

func (t *Transport) sendAck() {
	seq := uint8(t.nextSeq.Load())
	t.output.Output(appendTrailer([]byte{MessageLengthMin, seq}))
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame frames whatever frameData writes, patching the length byte
// and appending the trailer in place.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(t.nextSeq.Load())})
	frameData(t.output)
	n := len(t.output.DataSince(start)) + MessageTrailerSize
	t.output.Update(start, uint8(n))

	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// SendCommand frames a response: its id followed by the arguments args
// writes.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns to the power-on state.
func (t *Transport) Reset() {
	t.deframer.Resync()
	t.nextSeq.Store(MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback run when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback run after every ACK so it can be pushed
// out ahead of queued responses
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorCallback sets a callback for command handler errors
func (t *Transport) SetErrorCallback(callback func(cmdID uint16, err error)) {
	t.errorCallback = callback
}

// Synchronized reports whether the receive stream is trusted.
func (t *Transport) Synchronized() bool {
	return t.deframer.Synchronized()
}
