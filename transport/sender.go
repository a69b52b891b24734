package transport

import (
	"time"

	"github.com/piccp/piccp/frame"
)

// The sender task is purely reactive: it never decides when to advance, the
// peer's CTS does. One inbound send command produces exactly one displayed
// frame.

type sender struct {
	config  *Config
	events  chan<- Event
	seq     *frame.Sequencer
	factory SourceFactory

	source       SegmentSource
	buf          []byte
	segmentCount int
}

func startSender(config *Config, events chan<- Event, seq *frame.Sequencer, factory SourceFactory) chan<- command {
	commands := make(chan command, commandQueueDepth)
	s := &sender{config: config, events: events, seq: seq, factory: factory}
	go s.run(commands)
	return commands
}

func (s *sender) run(commands <-chan command) {
	for cmd := range commands {
		switch cmd.kind {
		case cmdSendFrame:
			if !s.sendFrame(cmd.offset) {
				return
			}
		case cmdShutdown:
			return
		}
	}
}

// sendFrame publishes the segment at the requested offset, or a DONE frame
// when the source is exhausted. It reports whether the task should keep
// running.
func (s *sender) sendFrame(offset int) bool {
	if s.source == nil {
		source, err := s.factory.CreateSource()
		if err != nil {
			s.config.trace.Error("create source", s.config, err)
			s.display(s.seq.Done())
			return false
		}
		s.source = source
		s.buf = make([]byte, s.config.fragmentSize)
		if size, known := source.Size(); known {
			s.segmentCount = size / s.config.fragmentSize
		}
	}

	begin := time.Now()
	n, err := s.source.ReadSegment(offset, s.buf)
	s.config.trace.SegmentRead(s.config, offset, n, err, time.Since(begin))
	if err != nil {
		// End-of-input or an unreadable source both end the stream.
		s.display(s.seq.Done())
		return false
	}
	s.display(s.seq.Segment(offset, s.segmentCount, s.buf[:n]))
	return true
}

func (s *sender) display(f frame.Frame) {
	s.events <- Event{Kind: EventDisplayFrame, Frame: f}
	s.config.trace.FrameDisplayed(s.config, f)
}
