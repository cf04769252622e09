package protocol

import (
	"errors"
	"sync/atomic"
)

// ErrFrameTooLong is returned when a payload does not fit in one frame.
var ErrFrameTooLong = errors.New("frame too long")

// Frame is one validated frame.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// IsAck reports an empty ACK/NAK frame.
func (f Frame) IsAck() bool { return len(f.Payload) == 0 }

// BuildFrame encodes payload into a complete frame.
func BuildFrame(seq uint8, payload []byte) ([]byte, error) {
	n := MessageHeaderSize + len(payload) + MessageTrailerSize
	if n > MessageLengthMax {
		return nil, ErrFrameTooLong
	}
	buf := make([]byte, 0, n)
	buf = append(buf, uint8(n), seq)
	buf = append(buf, payload...)
	return appendTrailer(buf), nil
}

// Deframer splits a byte stream into frames. After a bad frame it drops
// bytes up to the next sync byte before trusting the stream again.
type Deframer struct {
	synced atomic.Bool

	// CheckDest rejects frames whose seq lacks the destination marker.
	// The firmware side sets it; the host accepts any sequence.
	CheckDest bool

	// OnResync runs when a sync byte ends a desynchronised stretch.
	OnResync func()
}

// NewDeframer returns a deframer in the synchronised state.
func NewDeframer(checkDest bool) *Deframer {
	d := &Deframer{CheckDest: checkDest}
	d.synced.Store(true)
	return d
}

// Synchronized reports whether the stream is currently trusted.
func (d *Deframer) Synchronized() bool { return d.synced.Load() }

// Desync drops the stream until the next sync byte.
func (d *Deframer) Desync() { d.synced.Store(false) }

// Resync marks the stream trusted again without waiting for a sync byte.
func (d *Deframer) Resync() { d.synced.Store(true) }

// Split calls emit for every complete frame at the front of data and
// returns the number of bytes consumed. Payload slices alias data.
func (d *Deframer) Split(data []byte, emit func(Frame)) int {
	total := len(data)
	for len(data) > 0 {
		if !d.synced.Load() {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			d.synced.Store(true)
			if d.OnResync != nil {
				d.OnResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		n := int(data[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax {
			d.synced.Store(false)
			continue
		}
		seq := data[MessagePositionSeq]
		if d.CheckDest && seq&^MessageSeqMask != MessageDest {
			d.synced.Store(false)
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-MessageTrailerSync] != MessageValueSync {
			d.synced.Store(false)
			continue
		}
		got := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
		if got != CRC16(data[:n-MessageTrailerSize]) {
			d.synced.Store(false)
			continue
		}

		f := Frame{Seq: seq, Payload: data[MessageHeaderSize : n-MessageTrailerSize]}
		data = data[n:]
		emit(f)
	}
	return total - len(data)
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}
