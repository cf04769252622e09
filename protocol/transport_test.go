package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func frameOf(t *testing.T, seq uint8, payload []byte) []byte {
	t.Helper()
	f, err := BuildFrame(seq, payload)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	return f
}

func TestBuildFrameLayout(t *testing.T) {
	f := frameOf(t, MessageDest, nil)
	want := []byte{5, MessageDest, 0x9E, 0x81, MessageValueSync}
	if !bytes.Equal(f, want) {
		t.Errorf("empty frame = % X, want % X", f, want)
	}
	if _, err := BuildFrame(MessageDest, make([]byte, MessageLengthMax)); !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("oversized payload: got %v", err)
	}
}

func TestDeframerResync(t *testing.T) {
	good := frameOf(t, MessageDest, []byte{7, 8})
	corrupt := frameOf(t, MessageDest, []byte{1})
	corrupt[2] ^= 0xFF

	stream := append(append([]byte{}, corrupt...), good...)
	resyncs := 0
	d := NewDeframer(true)
	d.OnResync = func() { resyncs++ }

	var got []Frame
	n := d.Split(stream, func(f Frame) { got = append(got, f) })
	if n != len(stream) {
		t.Errorf("consumed %d of %d bytes", n, len(stream))
	}
	if len(got) != 1 || !bytes.Equal(got[0].Payload, []byte{7, 8}) {
		t.Fatalf("frames = %+v, want the good one only", got)
	}
	if resyncs != 1 {
		t.Errorf("resyncs = %d, want 1", resyncs)
	}
}

func TestDeframerPartialFrame(t *testing.T) {
	f := frameOf(t, MessageDest, []byte{1, 2, 3})
	d := NewDeframer(true)
	calls := 0
	if n := d.Split(f[:4], func(Frame) { calls++ }); n != 0 || calls != 0 {
		t.Errorf("partial frame: consumed %d, %d frames", n, calls)
	}
	if n := d.Split(f, func(Frame) { calls++ }); n != len(f) || calls != 1 {
		t.Errorf("full frame: consumed %d, %d frames", n, calls)
	}
}

func TestTransportAcksAndDispatches(t *testing.T) {
	out := NewScratchOutput()
	var ids []uint16
	tr := NewTransport(out, func(id uint16, data *[]byte) error {
		ids = append(ids, id)
		_, err := DecodeVLQUint(data)
		return err
	})

	payload := NewScratchOutput()
	EncodeVLQUint(payload, 3)
	EncodeVLQUint(payload, 100)
	EncodeVLQUint(payload, 4)
	EncodeVLQUint(payload, 200)
	in := NewSliceInputBuffer(frameOf(t, MessageDest, payload.Result()))
	tr.Receive(in)

	if len(ids) != 2 || ids[0] != 3 || ids[1] != 4 {
		t.Errorf("dispatched %v, want [3 4]", ids)
	}
	if in.Available() != 0 {
		t.Errorf("%d input bytes left", in.Available())
	}
	ack := frameOf(t, MessageDest+1, nil)
	if !bytes.Equal(out.Result(), ack) {
		t.Errorf("ack = % X, want % X", out.Result(), ack)
	}

	// a repeat of the same sequence is not dispatched again
	out.Reset()
	tr.Receive(NewSliceInputBuffer(frameOf(t, MessageDest+1, nil)))
	tr.Receive(NewSliceInputBuffer(frameOf(t, MessageDest+1, payload.Result())))
	if len(ids) != 2 {
		t.Errorf("stale frame dispatched: %v", ids)
	}
}

func TestTransportSendCommand(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, nil)
	tr.SendCommand(9, func(o OutputBuffer) { EncodeVLQUint(o, 42) })

	var frames []Frame
	NewDeframer(false).Split(out.Result(), func(f Frame) { frames = append(frames, f) })
	if len(frames) != 1 {
		t.Fatalf("got %d frames", len(frames))
	}
	p := frames[0].Payload
	id, _ := DecodeVLQUint(&p)
	v, _ := DecodeVLQUint(&p)
	if id != 9 || v != 42 {
		t.Errorf("response id=%d v=%d", id, v)
	}
}

// loopback wires a HostTransport to a firmware Transport through two pipes.
type loopback struct {
	hostR *io.PipeReader
	hostW *io.PipeWriter
}

func (l *loopback) Read(p []byte) (int, error)  { return l.hostR.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.hostW.Write(p) }
func (l *loopback) Close() error {
	l.hostR.Close()
	return l.hostW.Close()
}

func TestHostTransportRoundTrip(t *testing.T) {
	toMCU, fromHost := io.Pipe()
	toHost, fromMCU := io.Pipe()

	out := NewScratchOutput()
	var mcu *Transport
	mcu = NewTransport(out, func(id uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		mcu.SendCommand(id+1, func(o OutputBuffer) { EncodeVLQUint(o, v*2) })
		return nil
	})

	go func() {
		buf := make([]byte, 64)
		for {
			n, err := toMCU.Read(buf)
			if err != nil {
				fromMCU.Close()
				return
			}
			out.Reset()
			mcu.Receive(NewSliceInputBuffer(buf[:n]))
			if _, err := fromMCU.Write(append([]byte(nil), out.Result()...)); err != nil {
				return
			}
		}
	}()

	host := NewHostTransport(&loopback{hostR: toHost, hostW: fromHost})
	defer host.Close()

	for i := uint32(1); i <= 3; i++ {
		if err := host.SendCommand(5, func(o OutputBuffer) { EncodeVLQUint(o, i) }); err != nil {
			t.Fatalf("SendCommand %d: %v", i, err)
		}
		resp, err := host.ReceiveResponse(time.Second)
		if err != nil {
			t.Fatalf("ReceiveResponse: %v", err)
		}
		p := resp.Payload
		id, _ := DecodeVLQUint(&p)
		v, _ := DecodeVLQUint(&p)
		if id != 6 || v != 2*i {
			t.Errorf("response %d: id=%d v=%d", i, id, v)
		}
	}
	if seq := host.CurrentSequence(); seq != MessageDest+3 {
		t.Errorf("sequence = 0x%02X, want 0x13", seq)
	}
}
