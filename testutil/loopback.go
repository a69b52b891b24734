// Package testutil provides an in-process stand-in for the physical
// screen/camera channel, connecting two transport endpoints for tests.
package testutil

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/piccp/piccp/frame"
	"github.com/piccp/piccp/transport"
)

// Endpoint hosts one transport plus captures of everything it published:
// displayed frames, appended output and log lines.
type Endpoint struct {
	Transport transport.Transport

	events chan transport.Event
	peer   *Endpoint

	// Copies is how many times each displayed frame is delivered to the
	// peer, modelling the same physical frame being photographed repeatedly.
	Copies int

	mu        sync.Mutex
	output    bytes.Buffer
	logs      []string
	displayed []frame.Frame
	shutdown  chan struct{}
}

// NewEndpoint delivers an endpoint whose transport reads segments via
// factory.
func NewEndpoint(factory transport.SourceFactory, opts ...transport.Option) *Endpoint {
	e := &Endpoint{
		events:   make(chan transport.Event, 256),
		Copies:   1,
		shutdown: make(chan struct{}),
	}
	opts = append([]transport.Option{transport.LoggingHooks(transport.NoOpLoggingHooks)}, opts...)
	e.Transport = transport.NewTransport(e.events, factory, opts...)
	return e
}

// Connect wires the two endpoints' displays to each other's cameras and
// starts the pumps.
func Connect(a, b *Endpoint) {
	a.peer = b
	b.peer = a
	go a.pump()
	go b.pump()
}

// pump plays the role of the display plus the peer's camera: every displayed
// frame is observed Copies times by the peer's transport.
func (e *Endpoint) pump() {
	for event := range e.events {
		switch event.Kind {
		case transport.EventDisplayFrame:
			e.mu.Lock()
			e.displayed = append(e.displayed, event.Frame)
			e.mu.Unlock()
			for i := 0; i < e.Copies; i++ {
				e.peer.Transport.ReceiveFrame(event.Frame)
			}
		case transport.EventAppendOutput:
			e.mu.Lock()
			e.output.Write(event.Frame.Data()) // nolint: gosec, errcheck
			e.mu.Unlock()
		case transport.EventLog:
			e.mu.Lock()
			e.logs = append(e.logs, event.Text)
			e.mu.Unlock()
		case transport.EventShutdown:
			close(e.shutdown)
			return
		}
	}
}

// Wait blocks until the endpoint observed its shutdown event.
func (e *Endpoint) Wait(timeout time.Duration) bool {
	select {
	case <-e.shutdown:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Output delivers the bytes appended to the endpoint's sink so far.
func (e *Endpoint) Output() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.output.Bytes()...)
}

// Logs delivers the log lines surfaced so far.
func (e *Endpoint) Logs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.logs...)
}

// Displayed delivers every frame the endpoint has handed to its display.
func (e *Endpoint) Displayed() []frame.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]frame.Frame(nil), e.displayed...)
}

// EmptyFactory delivers a source factory whose stream is immediately
// exhausted; useful for pure receiving endpoints.
func EmptyFactory() transport.SourceFactory {
	return BytesFactory(nil)
}

// BytesFactory delivers a source factory over an in-memory byte string with
// unknown length.
func BytesFactory(data []byte) transport.SourceFactory {
	return transport.SourceFactoryFunc(func() (transport.SegmentSource, error) {
		return transport.NewStreamSource(bytes.NewReader(data)), nil
	})
}

// SizedBytesFactory delivers a source factory over an in-memory byte string
// that reports its length, like a file does.
func SizedBytesFactory(data []byte) transport.SourceFactory {
	return transport.SourceFactoryFunc(func() (transport.SegmentSource, error) {
		return &sizedSource{r: bytes.NewReader(data), size: len(data)}, nil
	})
}

type sizedSource struct {
	r    *bytes.Reader
	size int
}

func (s *sizedSource) Size() (int, bool) {
	return s.size, true
}

func (s *sizedSource) ReadSegment(offset int, buf []byte) (int, error) {
	n, err := s.r.ReadAt(buf, int64(offset)*int64(len(buf)))
	if n > 0 {
		return n, nil
	}
	if err == nil {
		err = io.EOF
	}
	return 0, err
}
