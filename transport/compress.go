package transport

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Optional zstd compression of the byte stream. Compression happens before
// segmentation on the sending endpoint and after reassembly on the receiving
// endpoint, so the wire format is unchanged; both endpoints must agree on
// the setting. A compressed stream has no known length, so segment counts go
// on the wire as zero.

// NewCompressedReader delivers a reader producing the zstd-compressed form
// of r. Feed it to NewStreamSource on a sending endpoint.
func NewCompressedReader(r io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		enc, err := zstd.NewWriter(pw)
		if err != nil {
			pw.CloseWithError(errors.Wrap(err, "zstd writer"))
			return
		}
		if _, err = io.Copy(enc, r); err != nil {
			enc.Close() // nolint: gosec, errcheck
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(enc.Close())
	}()
	return pr
}

// decompressingWriter feeds written bytes through a zstd decoder into the
// wrapped writer. Close flushes the decoder and reports any decode failure.
type decompressingWriter struct {
	pw   *io.PipeWriter
	done chan error
}

// NewDecompressingWriter wraps w so that zstd-compressed bytes written to
// the result arrive at w decompressed. Close must be called to drain the
// decoder.
func NewDecompressingWriter(w io.Writer) io.WriteCloser {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		dec, err := zstd.NewReader(pr)
		if err != nil {
			pr.CloseWithError(err)
			done <- errors.Wrap(err, "zstd reader")
			return
		}
		_, err = io.Copy(w, dec)
		dec.Close()
		pr.CloseWithError(err)
		done <- err
	}()
	return &decompressingWriter{pw: pw, done: done}
}

func (d *decompressingWriter) Write(p []byte) (int, error) {
	return d.pw.Write(p)
}

func (d *decompressingWriter) Close() error {
	if err := d.pw.Close(); err != nil {
		return err
	}
	return <-d.done
}
