// Package ui renders the endpoint's screen: the QR pane the peer's camera
// films, a progress pane, and a single-line log pane for transient channel
// noise.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
	"github.com/rivo/tview"

	"github.com/piccp/piccp/frame"
	"github.com/piccp/piccp/transport"
)

// ErrAborted reports that the user pressed escape before the transfer
// completed.
var ErrAborted = errors.New("aborted by user")

// RenderFunc converts a frame to the glyph block shown in the QR pane.
type RenderFunc func(frame.Frame) (string, error)

// UI owns the event-bus consumer loop and the terminal.
type UI struct {
	app      *tview.Application
	qrView   *tview.TextView
	infoView *tview.TextView
	logView  *tview.TextView

	events <-chan transport.Event
	sink   io.Writer
	render RenderFunc

	mu           sync.Mutex
	fatal        error
	aborted      bool
	bytesOut     int
	segments     int
	segmentCount int
	done         bool
}

// New delivers a UI consuming events, appending received payloads to sink.
func New(events <-chan transport.Event, sink io.Writer, render RenderFunc) *UI {
	u := &UI{
		app:      tview.NewApplication(),
		qrView:   tview.NewTextView().SetTextAlign(tview.AlignCenter),
		infoView: tview.NewTextView().SetTextAlign(tview.AlignCenter),
		logView:  tview.NewTextView(),
		events:   events,
		sink:     sink,
		render:   render,
	}

	u.qrView.SetBorder(true).SetTitle("piccp")
	u.infoView.SetBorder(true).SetTitle("info")
	u.logView.SetBorder(true).SetTitle("log")

	return u
}

// Run drives the terminal until a DONE is observed or the user presses
// escape. It delivers nil on a clean transfer, ErrAborted on escape, and the
// underlying fault when rendering or the output sink fails.
func (u *UI) Run() error {
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(u.qrView, 0, 1, true).
		AddItem(u.infoView, 3, 0, false).
		AddItem(u.logView, 3, 0, false)

	u.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			u.mu.Lock()
			u.aborted = true
			u.mu.Unlock()
			u.app.Stop()
			return nil
		}
		return event
	})

	go u.pump()

	if err := u.app.SetRoot(layout, true).Run(); err != nil {
		return errors.Wrap(err, "terminal")
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	switch {
	case u.fatal != nil:
		return u.fatal
	case u.aborted && !u.done:
		return ErrAborted
	}
	return nil
}

func (u *UI) pump() {
	for event := range u.events {
		switch event.Kind {
		case transport.EventDisplayFrame:
			u.displayFrame(event.Frame)
		case transport.EventAppendOutput:
			u.appendOutput(event.Frame)
		case transport.EventLog:
			u.log(event.Text)
		case transport.EventShutdown:
			// QueueUpdate serialises with the event loop, so a transfer that
			// finishes instantly cannot stop the application before Run has
			// brought it up.
			u.app.QueueUpdate(func() {
				u.app.Stop()
			})
			return
		}
	}
}

func (u *UI) displayFrame(f frame.Frame) {
	block, err := u.render(f)
	if err != nil {
		u.fail(err)
		return
	}
	u.mu.Lock()
	if f.IsDone() {
		u.done = true
	}
	u.mu.Unlock()
	u.app.QueueUpdateDraw(func() {
		u.qrView.SetText(block)
		u.infoView.SetText(u.status())
	})
}

func (u *UI) appendOutput(f frame.Frame) {
	data := f.Data()
	if _, err := u.sink.Write(data); err != nil {
		u.fail(errors.Wrap(err, "write output"))
		return
	}
	u.mu.Lock()
	u.bytesOut += len(data)
	u.segments++
	u.segmentCount = f.SegmentCount()
	u.mu.Unlock()
	u.app.QueueUpdateDraw(func() {
		u.infoView.SetText(u.status())
	})
}

func (u *UI) log(text string) {
	u.app.QueueUpdateDraw(func() {
		u.logView.SetText(text)
	})
}

func (u *UI) fail(err error) {
	u.mu.Lock()
	u.fatal = err
	u.mu.Unlock()
	u.app.QueueUpdate(func() {
		u.app.Stop()
	})
}

// status summarises progress. A segment count of zero means the peer does
// not know the stream length, so progress is indeterminate.
func (u *UI) status() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return fmt.Sprintf("done - %d bytes", u.bytesOut)
	}
	if u.segments == 0 {
		return "waiting"
	}
	if u.segmentCount > 0 {
		return fmt.Sprintf("segment %d/%d - %d bytes", u.segments, u.segmentCount, u.bytesOut)
	}
	return fmt.Sprintf("segment %d/? - %d bytes", u.segments, u.bytesOut)
}
