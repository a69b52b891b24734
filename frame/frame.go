// Package frame defines the fixed binary layout exchanged over the visual
// channel, and the sequencer that stamps every outgoing frame.
//
//	offset 0..4   : sequence (uint32, big-endian)
//	offset 4..5   : type     (uint8: 0x01 CTS, 0x02 DONE, 0x03 SEGMENT)
//	offset 5..9   : segment offset (uint32, CTS/SEGMENT only)
//	offset 9..13  : segment count  (uint32, SEGMENT only; 0 means unknown)
//	offset 13..   : segment bytes  (SEGMENT only)
package frame

import (
	"encoding/binary"
	"sync/atomic"
)

// Frame types.
const (
	TypeCTS     byte = 0x01
	TypeDone    byte = 0x02
	TypeSegment byte = 0x03
)

const (
	sequenceLen = 4
	headerLen   = sequenceLen + 1

	minCTSLen     = headerLen + 4
	minDoneLen    = headerLen
	minSegmentLen = headerLen + 4 + 4
)

// Frame is the atomic unit displayed on screen. It holds the encoded wire
// bytes; accessors slice into them. The QR decoder validates its own
// checksums, so a malformed buffer reaching the accessors is a programming
// error rather than a protocol error - callers gate on Wellformed instead.
type Frame struct {
	encoded []byte
}

// New wraps an already-encoded byte string, typically the payload of a
// decoded QR code.
func New(encoded []byte) Frame {
	return Frame{encoded: encoded}
}

// Wellformed reports whether the encoded bytes are long enough for their
// type tag, and the tag is known.
func (f Frame) Wellformed() bool {
	if len(f.encoded) < headerLen {
		return false
	}
	switch f.Type() {
	case TypeCTS:
		return len(f.encoded) >= minCTSLen
	case TypeDone:
		return len(f.encoded) >= minDoneLen
	case TypeSegment:
		return len(f.encoded) >= minSegmentLen
	}
	return false
}

// Sequence delivers the process-unique sequence number stamped on the frame.
func (f Frame) Sequence() int {
	return int(binary.BigEndian.Uint32(f.encoded[0:4]))
}

// Type delivers the frame type tag.
func (f Frame) Type() byte {
	return f.encoded[4]
}

// SegmentOffset delivers the segment offset carried by a CTS or SEGMENT
// frame.
func (f Frame) SegmentOffset() int {
	return int(binary.BigEndian.Uint32(f.encoded[5:9]))
}

// SegmentCount delivers the total segment count carried by a SEGMENT frame;
// zero means the sender does not know the stream length.
func (f Frame) SegmentCount() int {
	return int(binary.BigEndian.Uint32(f.encoded[9:13]))
}

// Data delivers the payload bytes of a SEGMENT frame.
func (f Frame) Data() []byte {
	return f.encoded[13:]
}

// Bytes delivers the encoded wire representation.
func (f Frame) Bytes() []byte {
	return f.encoded
}

// IsCTS reports whether the frame is a clear-to-send.
func (f Frame) IsCTS() bool {
	return f.Type() == TypeCTS
}

// IsDone reports whether the frame is an end-of-stream marker.
func (f Frame) IsDone() bool {
	return f.Type() == TypeDone
}

// IsSegment reports whether the frame carries segment data.
func (f Frame) IsSegment() bool {
	return f.Type() == TypeSegment
}

// Sequencer stamps frames with a monotonically increasing sequence number.
// All frames produced by either direction within one process must share one
// sequencer, so that the observing side can tell "same image re-photographed"
// from "new image".
type Sequencer struct {
	counter uint32
}

// NewSequencer delivers a sequencer whose first frame will carry sequence 0.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

func (s *Sequencer) next() uint32 {
	return atomic.AddUint32(&s.counter, 1) - 1
}

// CTS builds a clear-to-send frame requesting the given segment offset.
func (s *Sequencer) CTS(segmentOffset int) Frame {
	encoded := make([]byte, minCTSLen)
	binary.BigEndian.PutUint32(encoded[0:4], s.next())
	encoded[4] = TypeCTS
	binary.BigEndian.PutUint32(encoded[5:9], uint32(segmentOffset))
	return Frame{encoded: encoded}
}

// Done builds an end-of-stream frame.
func (s *Sequencer) Done() Frame {
	encoded := make([]byte, minDoneLen)
	binary.BigEndian.PutUint32(encoded[0:4], s.next())
	encoded[4] = TypeDone
	return Frame{encoded: encoded}
}

// Segment builds a data frame for the given segment offset. The payload is
// copied; the frame never shares the caller's buffer.
func (s *Sequencer) Segment(segmentOffset, segmentCount int, data []byte) Frame {
	encoded := make([]byte, minSegmentLen+len(data))
	binary.BigEndian.PutUint32(encoded[0:4], s.next())
	encoded[4] = TypeSegment
	binary.BigEndian.PutUint32(encoded[5:9], uint32(segmentOffset))
	binary.BigEndian.PutUint32(encoded[9:13], uint32(segmentCount))
	copy(encoded[minSegmentLen:], data)
	return Frame{encoded: encoded}
}
