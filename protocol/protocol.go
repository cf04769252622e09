// Package protocol implements the framed serial link between the timer
// firmware and the host tools.
//
// A frame is
//
//	len | seq | payload ... | crc16 hi | crc16 lo | 0x7E
//
// where len counts the whole frame, seq carries the 0x10 destination
// marker in its high nibble and a 4-bit sequence number, and the payload is
// a run of VLQ-encoded command ids and arguments. An empty payload is an
// ACK/NAK carrying the next expected sequence.
package protocol

// Version is the link protocol version reported in the data dictionary.
const Version = "avrpwm-1"

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax is the size of one output scratch buffer; several frames
	// may be queued in it between flushes.
	MessageMax = 256
)

// nextSeq advances a sequence byte within the destination nibble.
func nextSeq(seq uint8) uint8 {
	return (seq+1)&MessageSeqMask | MessageDest
}
