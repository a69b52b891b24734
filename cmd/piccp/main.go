// Command piccp copies a byte stream between two machines using only a
// display and a camera: segments go over the screen as QR codes, flow
// control comes back the same way.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/piccp/piccp/camera"
	"github.com/piccp/piccp/frame"
	"github.com/piccp/piccp/qr"
	"github.com/piccp/piccp/transport"
	"github.com/piccp/piccp/ui"
)

const eventQueueDepth = 64

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "piccp",
		Short:         "pic copy - copy files using pictures",
		Long:          "Copies a byte stream between two machines over a screen/camera pair.\nRun one endpoint with --send and aim its camera at the --receive endpoint's screen, and vice versa.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.Flags()
	flags.BoolP("send", "s", false, "act as the sending endpoint")
	flags.BoolP("receive", "r", false, "act as the receiving endpoint")
	flags.StringP("input-file", "i", "", "read segments from a file instead of stdin (implies --send)")
	flags.StringP("output-file", "o", "", "write received segments to a file instead of stdout (implies --receive)")
	flags.IntP("fragment-size", "f", transport.DefaultFragmentSize, "bytes per displayed segment")
	flags.IntP("scale-width", "W", qr.DefaultModuleWidth, "QR module width in terminal cells")
	flags.IntP("scale-height", "H", qr.DefaultModuleHeight, "QR module height in terminal cells")
	flags.BoolP("hide-quiet-zone", "Q", false, "suppress the border around the QR code")
	flags.StringP("device", "d", camera.DefaultDevice, "camera device")
	flags.BoolP("compress", "z", false, "zstd-compress the stream (both endpoints must agree)")
	flags.Bool("diagnostics", false, "log every transport event to stderr")

	v := viper.New()
	v.SetEnvPrefix("piccp")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
	// The scale env vars predate the flag names.
	_ = v.BindEnv("scale-width", "PICCP_BLOCK_WIDTH")
	_ = v.BindEnv("scale-height", "PICCP_BLOCK_HEIGHT")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(v)
	}

	return cmd
}

func run(v *viper.Viper) error {
	send := v.GetBool("send") || v.GetString("input-file") != ""
	receive := v.GetBool("receive") || v.GetString("output-file") != ""
	if send == receive {
		return errors.New("exactly one of --send and --receive is required")
	}
	if v.GetInt("fragment-size") <= 0 {
		return errors.New("fragment size must be positive")
	}

	factory, err := buildSourceFactory(send, v.GetString("input-file"), v.GetBool("compress"))
	if err != nil {
		return err
	}

	sink, closeSink, err := buildSink(receive, v.GetString("output-file"), v.GetBool("compress"))
	if err != nil {
		return err
	}

	events := make(chan transport.Event, eventQueueDepth)
	logf := busLogger(events)

	hooks := transport.DefaultLoggingHooks
	if v.GetBool("diagnostics") {
		hooks = transport.DiagnosticLoggingHooks
	}

	t := transport.NewTransport(events, factory,
		transport.FragmentSize(v.GetInt("fragment-size")),
		transport.LoggingHooks(hooks),
	)
	defer t.Close()

	cam, err := camera.New(t, qr.NewDecoder(logf),
		camera.Device(v.GetString("device")),
		camera.LogFunc(logf),
	)
	if err != nil {
		return err
	}
	defer cam.Close()

	if receive {
		// Kick off the handshake: solicit segment zero. The sending endpoint
		// is purely reactive and waits for this CTS to arrive by camera.
		t.Receive()
	}

	renderOpts := qr.RenderOptions{
		ModuleWidth:   v.GetInt("scale-width"),
		ModuleHeight:  v.GetInt("scale-height"),
		HideQuietZone: v.GetBool("hide-quiet-zone"),
	}
	render := func(f frame.Frame) (string, error) {
		return qr.Encode(f, renderOpts)
	}

	runErr := ui.New(events, sink, render).Run()
	if err := closeSink(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// buildSourceFactory wires the sending endpoint's byte source. The factory
// runs inside the sender task on first use; a receiving endpoint never asks
// for a segment, so its factory just reports end-of-input.
func buildSourceFactory(send bool, inputFile string, compress bool) (transport.SourceFactory, error) {
	if !send {
		return transport.SourceFactoryFunc(func() (transport.SegmentSource, error) {
			return transport.NewStreamSource(strings.NewReader("")), nil
		}), nil
	}

	if inputFile != "" && !compress {
		return transport.SourceFactoryFunc(func() (transport.SegmentSource, error) {
			return transport.NewFileSource(inputFile)
		}), nil
	}

	return transport.SourceFactoryFunc(func() (transport.SegmentSource, error) {
		var r io.Reader = os.Stdin
		if inputFile != "" {
			f, err := os.Open(inputFile) // nolint: gosec
			if err != nil {
				return nil, errors.Wrap(err, "open input file")
			}
			r = f
		}
		if compress {
			r = transport.NewCompressedReader(r)
		}
		return transport.NewStreamSource(r), nil
	}), nil
}

// buildSink wires the receiving endpoint's output. Received bytes go to the
// output file, or to stdout when none is given; redirect stdout when piping,
// the UI owns the terminal.
func buildSink(receive bool, outputFile string, compress bool) (io.Writer, func() error, error) {
	if !receive {
		return io.Discard, func() error { return nil }, nil
	}

	var w io.Writer = os.Stdout
	closer := func() error { return nil }
	if outputFile != "" {
		f, err := os.Create(outputFile) // nolint: gosec
		if err != nil {
			return nil, nil, errors.Wrap(err, "create output file")
		}
		w = f
		closer = f.Close
	}

	if compress {
		dec := transport.NewDecompressingWriter(w)
		inner := closer
		closer = func() error {
			if err := dec.Close(); err != nil {
				inner() // nolint: gosec, errcheck
				return err
			}
			return inner()
		}
		w = dec
	}

	return w, closer, nil
}

// busLogger posts diagnostics to the UI log pane without ever blocking the
// caller.
func busLogger(events chan<- transport.Event) qr.LogFunc {
	return func(format string, args ...interface{}) {
		select {
		case events <- transport.Event{Kind: transport.EventLog, Text: fmt.Sprintf(format, args...)}:
		default:
		}
	}
}
