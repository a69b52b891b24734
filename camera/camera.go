// Package camera pulls images from a V4L2 device, decodes any QR codes they
// contain and routes the resulting frames into the transport.
package camera

import (
	"bytes"
	"image"
	"image/jpeg"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"

	"github.com/piccp/piccp/frame"
	"github.com/piccp/piccp/qr"
	"github.com/piccp/piccp/transport"
)

// DefaultDevice is the V4L2 device opened when none is configured.
const DefaultDevice = "/dev/video0"

const (
	targetFramerate  = 30
	waitTimeoutSecs  = 1
	bridgeQueueDepth = 64
)

func fourCCToU32(b []byte) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

var pixFmtMJPEG = fourCCToU32([]byte("MJPG"))

// Config defines properties controlling camera behaviour.
type Config struct {
	device string
	logf   qr.LogFunc
}

// Option implements options for configuring camera behaviour.
type Option func(*Config)

// Device defines the V4L2 device path to open.
// Default value is DefaultDevice.
func Device(path string) Option {
	return func(c *Config) {
		c.device = path
	}
}

// LogFunc defines where transient capture diagnostics are reported.
// Default is to discard them.
func LogFunc(logf qr.LogFunc) Option {
	return func(c *Config) {
		c.logf = logf
	}
}

// Camera owns the capture thread. The underlying driver is blocking, so
// capture runs on a dedicated OS thread rather than as a cooperative task;
// it polls a shutdown flag after each frame.
type Camera struct {
	done atomic.Bool
}

// New opens the device, selects the largest MJPEG mode, and starts the
// capture thread. Decoded frames are forwarded to t through a bridge that
// never blocks the thread.
func New(t transport.Transport, dec *qr.Decoder, opts ...Option) (*Camera, error) {
	config := Config{device: DefaultDevice, logf: func(string, ...interface{}) {}}
	for _, opt := range opts {
		opt(&config)
	}

	cam, err := webcam.Open(config.device)
	if err != nil {
		return nil, errors.Wrapf(err, "open camera %s", config.device)
	}

	if err = setupFormat(cam); err != nil {
		cam.Close() // nolint: gosec, errcheck
		return nil, err
	}

	if err = cam.StartStreaming(); err != nil {
		cam.Close() // nolint: gosec, errcheck
		return nil, errors.Wrap(err, "start streaming")
	}

	c := &Camera{}

	// Bridge between the capture thread and the cooperative world. The
	// thread side never blocks: a frame that does not fit is dropped and
	// re-photographed on the next capture.
	frames := make(chan frame.Frame, bridgeQueueDepth)
	go func() {
		for f := range frames {
			t.ReceiveFrame(f)
		}
	}()

	go c.capture(cam, dec, frames, config.logf)

	return c, nil
}

// Close asks the capture thread to exit. It does so within one frame
// interval.
func (c *Camera) Close() {
	c.done.Store(true)
}

func (c *Camera) capture(cam *webcam.Webcam, dec *qr.Decoder, frames chan<- frame.Frame, logf qr.LogFunc) {
	// The driver blocks in ioctl; keep those syscalls on one thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer close(frames)
	defer cam.Close() // nolint: gosec, errcheck

	for !c.done.Load() {
		err := cam.WaitForFrame(waitTimeoutSecs)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			logf("camera wait: %v", err)
			time.Sleep(time.Second)
			continue
		}

		raw, err := cam.ReadFrame()
		if err != nil || len(raw) == 0 {
			continue
		}

		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			// Interlaced or torn MJPEG frames happen; skip them.
			continue
		}

		for _, f := range dec.Decode(toLuminance(img)) {
			select {
			case frames <- f:
			default:
				logf("ingest queue full, dropped frame %d", f.Sequence())
			}
		}
	}
}

// setupFormat selects MJPEG at the highest-resolution supported size and
// asks for the target framerate. Resolution wins over framerate: a bigger
// image carries a denser code further from the screen.
func setupFormat(cam *webcam.Webcam) error {
	formats := cam.GetSupportedFormats()
	if _, ok := formats[pixFmtMJPEG]; !ok {
		return errors.New("camera does not support MJPEG")
	}

	var best webcam.FrameSize
	for _, size := range cam.GetSupportedFrameSizes(pixFmtMJPEG) {
		if size.MaxWidth*size.MaxHeight > best.MaxWidth*best.MaxHeight {
			best = size
		}
	}
	if best.MaxWidth == 0 {
		return errors.New("camera reports no MJPEG frame sizes")
	}

	if _, _, _, err := cam.SetImageFormat(pixFmtMJPEG, best.MaxWidth, best.MaxHeight); err != nil {
		return errors.Wrap(err, "set image format")
	}

	// Best effort; some drivers pin the rate to the format.
	_ = cam.SetFramerate(targetFramerate)

	return nil
}

// toLuminance converts a decoded camera image to 8-bit luminance once,
// rather than letting the QR library re-sample the full-colour image per
// probe.
func toLuminance(img image.Image) image.Image {
	if _, ok := img.(*image.Gray); ok {
		return img
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}
