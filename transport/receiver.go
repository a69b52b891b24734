package transport

import (
	"fmt"

	"github.com/piccp/piccp/frame"
)

// The receiver task drives the flow-control handshake. The same physical
// frame is photographed many times while the peer waits, so only the first
// arrival per sequence number advances state.

type receiver struct {
	config   *Config
	events   chan<- Event
	seq      *frame.Sequencer
	sender   chan<- command
	commands chan command

	expectedFrameSequence int
	expectedSegmentOffset int
}

func startReceiver(config *Config, events chan<- Event, seq *frame.Sequencer, sender chan<- command) chan command {
	commands := make(chan command, commandQueueDepth)
	r := &receiver{
		config:   config,
		events:   events,
		seq:      seq,
		sender:   sender,
		commands: commands,
	}
	go r.run()
	return commands
}

func (r *receiver) run() {
	for cmd := range r.commands {
		switch cmd.kind {
		case cmdReceiveNextFrame:
			r.solicit()
		case cmdReceiveFrame:
			if !r.receiveFrame(cmd.frame) {
				return
			}
		case cmdShutdown:
			return
		}
	}
}

// solicit asks the peer for the next segment by displaying a CTS. Idempotent:
// called once at startup on a receiving endpoint and again after every
// accepted segment.
func (r *receiver) solicit() {
	f := r.seq.CTS(r.expectedSegmentOffset)
	r.events <- Event{Kind: EventDisplayFrame, Frame: f}
	r.config.trace.FrameDisplayed(r.config, f)
}

// receiveFrame dedupes by sequence number and dispatches on frame type. It
// reports whether the task should keep running.
func (r *receiver) receiveFrame(f frame.Frame) bool {
	if f.Sequence() != r.expectedFrameSequence {
		r.drop(f, fmt.Sprintf("unexpected frame %d", f.Sequence()))
		return true
	}
	r.expectedFrameSequence++
	r.config.trace.FrameReceived(r.config, f)

	switch {
	case f.IsCTS():
		// The peer tells our sender what to show next.
		r.expectedSegmentOffset = f.SegmentOffset()
		r.sender <- command{kind: cmdSendFrame, offset: r.expectedSegmentOffset}

	case f.IsDone():
		// Show a terminal DONE for the peer's final confirmation photo, then
		// tear everything down.
		done := r.seq.Done()
		r.events <- Event{Kind: EventDisplayFrame, Frame: done}
		r.config.trace.FrameDisplayed(r.config, done)
		r.events <- Event{Kind: EventShutdown}
		r.sender <- command{kind: cmdShutdown}
		return false

	case f.IsSegment():
		// Sequence dedup already enforces ordering; the offset check guards
		// against a peer bug.
		if f.SegmentOffset() != r.expectedSegmentOffset {
			r.drop(f, fmt.Sprintf("unexpected segment %d", f.SegmentOffset()))
			return true
		}
		r.events <- Event{Kind: EventAppendOutput, Frame: f}
		r.expectedSegmentOffset++
		// Request the next segment. Solicited inline rather than through the
		// command queue so a camera burst can never wedge the task on its
		// own channel.
		r.solicit()
	}
	return true
}

func (r *receiver) drop(f frame.Frame, reason string) {
	r.config.trace.FrameDropped(r.config, f, reason)
	r.events <- Event{Kind: EventLog, Text: reason}
}
