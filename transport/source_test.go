package transport

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFileSource(t *testing.T) {
	data := []byte("0123456789abcdef")
	src, err := NewFileSource(writeTempFile(t, data))
	require.NoError(t, err)

	size, known := src.Size()
	assert.True(t, known)
	assert.Equal(t, 16, size)

	buf := make([]byte, 10)

	n, err := src.ReadSegment(0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), buf[:n])

	// The tail segment is short.
	n, err = src.ReadSegment(1, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), buf[:n])

	// Past the end fails.
	_, err = src.ReadSegment(2, buf)
	assert.Equal(t, io.EOF, err)
}

func TestFileSourceSeeksByOffset(t *testing.T) {
	data := []byte("0123456789abcdef")
	src, err := NewFileSource(writeTempFile(t, data))
	require.NoError(t, err)

	// Seekable sources honour out-of-order reads.
	buf := make([]byte, 4)
	n, err := src.ReadSegment(2, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("89ab"), buf[:n])

	n, err = src.ReadSegment(0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), buf[:n])
}

func TestFileSourceMissing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestStreamSourceSequential(t *testing.T) {
	src := NewStreamSource(bytes.NewReader([]byte("0123456789ab")))

	_, known := src.Size()
	assert.False(t, known)

	buf := make([]byte, 5)

	n, err := src.ReadSegment(0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("01234"), buf[:n])

	n, err = src.ReadSegment(1, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("56789"), buf[:n])

	// Short tail, then end-of-input.
	n, err = src.ReadSegment(2, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), buf[:n])

	_, err = src.ReadSegment(3, buf)
	assert.Equal(t, io.EOF, err)
}

func TestStreamSourceRejectsOutOfOrder(t *testing.T) {
	src := NewStreamSource(bytes.NewReader([]byte("0123456789")))
	buf := make([]byte, 4)

	// The protocol only ever asks for the next sequential segment; anything
	// else is a failure, not a buffering exercise.
	_, err := src.ReadSegment(2, buf)
	assert.Error(t, err)

	n, err := src.ReadSegment(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = src.ReadSegment(0, buf)
	assert.Error(t, err)
}

func TestStreamSourceEmpty(t *testing.T) {
	src := NewStreamSource(bytes.NewReader(nil))
	buf := make([]byte, 8)
	_, err := src.ReadSegment(0, buf)
	assert.Equal(t, io.EOF, err)
}

func TestStreamSourceExactBoundary(t *testing.T) {
	src := NewStreamSource(bytes.NewReader([]byte("01234567")))
	buf := make([]byte, 8)

	n, err := src.ReadSegment(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	_, err = src.ReadSegment(1, buf)
	assert.Equal(t, io.EOF, err)
}
