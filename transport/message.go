package transport

import "github.com/piccp/piccp/frame"

// Events are delivered to the endpoint's display loop, which owns the screen
// and the output sink. The bus owns event payloads by value.

// EventKind identifies what the display loop should do with an Event.
type EventKind int

const (
	// EventDisplayFrame asks the display to render the frame as a QR code.
	EventDisplayFrame EventKind = iota
	// EventAppendOutput asks the display loop to append the frame's payload
	// to the output sink.
	EventAppendOutput
	// EventLog surfaces a transient diagnostic in the log pane.
	EventLog
	// EventShutdown tells the display loop to tear down.
	EventShutdown
)

// Event is a message published by the transport for the display loop.
type Event struct {
	Kind  EventKind
	Frame frame.Frame
	Text  string
}

// commandKind identifies an operation requested of a transport task.
type commandKind int

const (
	cmdSendFrame commandKind = iota
	cmdReceiveNextFrame
	cmdReceiveFrame
	cmdShutdown
)

// command drives the sender and receiver state machines. Commands on a given
// task's channel are handled strictly sequentially.
type command struct {
	kind   commandKind
	offset int
	frame  frame.Frame
}
