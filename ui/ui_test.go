package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piccp/piccp/frame"
	"github.com/piccp/piccp/transport"
)

func plainRender(f frame.Frame) (string, error) {
	return "block", nil
}

func newTestUI(events chan transport.Event, out *bytes.Buffer, render RenderFunc) *UI {
	u := New(events, out, render)
	u.app.SetScreen(tcell.NewSimulationScreen("UTF-8"))
	return u
}

func TestRunCleanTransfer(t *testing.T) {
	events := make(chan transport.Event, 16)
	var out bytes.Buffer
	u := newTestUI(events, &out, plainRender)

	seq := frame.NewSequencer()
	go func() {
		events <- transport.Event{Kind: transport.EventAppendOutput, Frame: seq.Segment(0, 2, []byte("abc"))}
		events <- transport.Event{Kind: transport.EventAppendOutput, Frame: seq.Segment(1, 2, []byte("def"))}
		events <- transport.Event{Kind: transport.EventLog, Text: "unexpected frame 3"}
		events <- transport.Event{Kind: transport.EventDisplayFrame, Frame: seq.Done()}
		events <- transport.Event{Kind: transport.EventShutdown}
	}()

	require.NoError(t, u.Run())
	assert.Equal(t, "abcdef", out.String())
}

func TestRunRenderFailureIsFatal(t *testing.T) {
	events := make(chan transport.Event, 16)
	var out bytes.Buffer
	u := newTestUI(events, &out, func(f frame.Frame) (string, error) {
		return "", errors.New("frame too large for any qr version")
	})

	seq := frame.NewSequencer()
	go func() {
		events <- transport.Event{Kind: transport.EventDisplayFrame, Frame: seq.CTS(0)}
	}()

	err := u.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame too large")
}

func TestRunEscapeAborts(t *testing.T) {
	events := make(chan transport.Event, 16)
	var out bytes.Buffer
	u := newTestUI(events, &out, plainRender)

	go func() {
		// Give the event loop a moment to come up before pressing escape.
		time.Sleep(200 * time.Millisecond)
		u.app.QueueEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	}()

	assert.Equal(t, ErrAborted, errors.Cause(u.Run()))
}

func TestStatusProgress(t *testing.T) {
	events := make(chan transport.Event)
	u := New(events, &bytes.Buffer{}, plainRender)

	assert.Equal(t, "waiting", u.status())

	u.bytesOut = 128
	u.segments = 1
	u.segmentCount = 4
	assert.Equal(t, "segment 1/4 - 128 bytes", u.status())

	u.segmentCount = 0
	assert.Equal(t, "segment 1/? - 128 bytes", u.status())

	u.done = true
	assert.Equal(t, "done - 128 bytes", u.status())
}
