package transport

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// SegmentSource provides the sender with byte segments at requested offsets.
type SegmentSource interface {
	// Size delivers the total byte length of the source, if known.
	Size() (size int, known bool)

	// ReadSegment fills buf with the segment indexed by offset and delivers
	// the number of bytes written, which is less than len(buf) at
	// end-of-input. A call after end-of-input fails with io.EOF.
	ReadSegment(offset int, buf []byte) (int, error)
}

// SourceFactory creates the sender's segment source. The factory runs once,
// inside the sender task, on the first send command.
type SourceFactory interface {
	CreateSource() (SegmentSource, error)
}

// SourceFactoryFunc adapts a function to the SourceFactory interface.
type SourceFactoryFunc func() (SegmentSource, error)

// CreateSource calls f.
func (f SourceFactoryFunc) CreateSource() (SegmentSource, error) {
	return f()
}

// fileSource reads segments from a seekable file. Segment offset k maps to
// byte offset k*len(buf).
type fileSource struct {
	f    *os.File
	size int
}

// NewFileSource delivers a seekable segment source over the named file.
func NewFileSource(path string) (SegmentSource, error) {
	f, err := os.Open(path) // nolint: gosec
	if err != nil {
		return nil, errors.Wrap(err, "open input file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() // nolint: gosec, errcheck
		return nil, errors.Wrap(err, "stat input file")
	}
	return &fileSource{f: f, size: int(info.Size())}, nil
}

func (s *fileSource) Size() (int, bool) {
	return s.size, true
}

func (s *fileSource) ReadSegment(offset int, buf []byte) (int, error) {
	n, err := s.f.ReadAt(buf, int64(offset)*int64(len(buf)))
	if n > 0 {
		// A short read at the tail still delivers bytes; the next call runs
		// off the end and fails.
		return n, nil
	}
	if err == nil {
		err = io.EOF
	}
	return 0, err
}

// streamSource reads segments sequentially from a non-seekable reader such
// as standard input. The protocol only ever asks for the next offset, so the
// source asserts sequential access rather than buffering.
type streamSource struct {
	r    io.Reader
	next int
	eof  bool
}

// NewStreamSource delivers a sequential-only segment source over r. The
// stream length is unknown, so segment counts go on the wire as zero.
func NewStreamSource(r io.Reader) SegmentSource {
	return &streamSource{r: r}
}

func (s *streamSource) Size() (int, bool) {
	return 0, false
}

func (s *streamSource) ReadSegment(offset int, buf []byte) (int, error) {
	if offset != s.next {
		return 0, errors.Errorf("non-sequential read: offset %d, expected %d", offset, s.next)
	}
	if s.eof {
		return 0, io.EOF
	}
	n, err := io.ReadFull(s.r, buf)
	switch {
	case err == io.EOF:
		s.eof = true
		return 0, io.EOF
	case err == io.ErrUnexpectedEOF:
		s.eof = true
		s.next++
		return n, nil
	case err != nil:
		return 0, err
	}
	s.next++
	return n, nil
}
