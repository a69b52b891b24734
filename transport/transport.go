// Package transport implements the reliable lock-step transport over the
// one-frame-at-a-time visual channel: the sender and receiver state
// machines, the clear-to-send flow control, and duplicate suppression.
package transport

import (
	"sync"

	"github.com/google/uuid"
	"github.com/imdario/mergo"

	"github.com/piccp/piccp/frame"
)

// The protocol is lock-step, so at most a handful of commands are ever in
// flight per task; the queues exist to decouple the tasks, not to buffer.
const commandQueueDepth = 64

// DefaultFragmentSize is the default byte count of a SEGMENT payload.
const DefaultFragmentSize = 128

// Transport binds the sender and receiver tasks for one endpoint. Both
// endpoints of a session run both tasks: a sending endpoint still receives
// the peer's CTS frames, and a receiving endpoint still displays them.
type Transport interface {
	// Receive solicits the next segment from the peer. Called once at
	// startup on the receiving endpoint to kick off the handshake.
	Receive()

	// ReceiveFrame routes a frame decoded from the camera into the receiver
	// task.
	ReceiveFrame(f frame.Frame)

	// Close shuts down both tasks. Safe to call more than once.
	Close()
}

type transportImpl struct {
	config   *Config
	sender   chan<- command
	receiver chan command

	closeOnce sync.Once
}

// Config defines properties controlling transport behaviour.
type Config struct {
	// Bytes per SEGMENT payload.
	fragmentSize int
	// Trace hooks.
	trace *Trace
	// Process-unique id reported by trace hooks.
	sessionID string
}

var defaultConfig = Config{
	fragmentSize: DefaultFragmentSize,
	trace:        DefaultLoggingHooks,
}

// Option implements options for configuring transport behaviour.
type Option func(*Config)

// FragmentSize defines the maximum byte count of a SEGMENT payload.
// Default value is DefaultFragmentSize.
func FragmentSize(n int) Option {
	return func(c *Config) {
		c.fragmentSize = n
	}
}

// LoggingHooks defines a set of trace hooks to be used by the transport.
// Default value is DefaultLoggingHooks.
func LoggingHooks(trace *Trace) Option {
	return func(c *Config) {
		c.trace = trace
	}
}

// NewTransport delivers a transport publishing display and output events to
// the events channel. The factory is invoked lazily, inside the sender task,
// when the peer first asks for a segment.
func NewTransport(events chan<- Event, factory SourceFactory, opts ...Option) Transport {
	config := defaultConfig
	config.sessionID = uuid.New().String()
	for _, opt := range opts {
		opt(&config)
	}

	_ = mergo.Merge(config.trace, NoOpLoggingHooks)

	// One sequencer per process: local CTS traffic and local data traffic
	// share a sequence namespace, so an observer can dedupe either.
	seq := frame.NewSequencer()

	senderCh := startSender(&config, events, seq, factory)
	receiverCh := startReceiver(&config, events, seq, senderCh)

	return &transportImpl{
		config:   &config,
		sender:   senderCh,
		receiver: receiverCh,
	}
}

func (t *transportImpl) Receive() {
	t.receiver <- command{kind: cmdReceiveNextFrame}
}

// ReceiveFrame never blocks the caller: the camera thread must keep
// capturing during brief receiver pauses. A frame dropped here is
// re-photographed on the next capture anyway.
func (t *transportImpl) ReceiveFrame(f frame.Frame) {
	select {
	case t.receiver <- command{kind: cmdReceiveFrame, frame: f}:
	default:
		t.config.trace.FrameDropped(t.config, f, "receiver queue full")
	}
}

func (t *transportImpl) Close() {
	t.closeOnce.Do(func() {
		t.sender <- command{kind: cmdShutdown}
		t.receiver <- command{kind: cmdShutdown}
	})
}
