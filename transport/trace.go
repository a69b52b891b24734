package transport

import (
	"log"
	"time"

	"github.com/piccp/piccp/frame"
)

// Trace defines a structure for handling trace events.
type Trace struct {
	// FrameDisplayed is called after a frame has been handed to the display.
	FrameDisplayed func(config *Config, f frame.Frame)

	// FrameReceived is called when a frame arriving from the camera has been
	// accepted by the receiver.
	FrameReceived func(config *Config, f frame.Frame)

	// FrameDropped is called when an arriving frame is discarded, with reason
	// indicating why.
	FrameDropped func(config *Config, f frame.Frame, reason string)

	// SegmentRead is called after the sender has read a segment from its
	// source.
	SegmentRead func(config *Config, offset, n int, err error, d time.Duration)

	// Error is called after an error condition has been detected.
	Error func(location string, config *Config, err error)
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &Trace{
	Error: func(location string, config *Config, err error) {
		log.Printf("piccp-Error context:%s session:%s err:%v\n", location, config.sessionID, err)
	},
}

// DiagnosticLoggingHooks provides a set of hooks that log all events with all data.
var DiagnosticLoggingHooks = &Trace{
	FrameDisplayed: func(config *Config, f frame.Frame) {
		log.Printf("piccp-FrameDisplayed session:%s seq:%d type:%#02x len:%d\n",
			config.sessionID, f.Sequence(), f.Type(), len(f.Bytes()))
	},
	FrameReceived: func(config *Config, f frame.Frame) {
		log.Printf("piccp-FrameReceived session:%s seq:%d type:%#02x\n",
			config.sessionID, f.Sequence(), f.Type())
	},
	FrameDropped: func(config *Config, f frame.Frame, reason string) {
		log.Printf("piccp-FrameDropped session:%s seq:%d reason:%s\n",
			config.sessionID, f.Sequence(), reason)
	},
	SegmentRead: func(config *Config, offset, n int, err error, d time.Duration) {
		log.Printf("piccp-SegmentRead session:%s offset:%d len:%d err:%v took:%dus\n",
			config.sessionID, offset, n, err, d.Microseconds())
	},
	Error: DefaultLoggingHooks.Error,
}

// NoOpLoggingHooks provides a set of hooks that do nothing.
var NoOpLoggingHooks = &Trace{
	FrameDisplayed: func(config *Config, f frame.Frame) {},
	FrameReceived:  func(config *Config, f frame.Frame) {},
	FrameDropped:   func(config *Config, f frame.Frame, reason string) {},
	SegmentRead:    func(config *Config, offset, n int, err error, d time.Duration) {},
	Error:          func(location string, config *Config, err error) {},
}
