package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piccp/piccp/transport"
)

func TestFlagDefaults(t *testing.T) {
	cmd := newRootCommand()

	fragmentSize, err := cmd.Flags().GetInt("fragment-size")
	require.NoError(t, err)
	assert.Equal(t, transport.DefaultFragmentSize, fragmentSize)

	width, err := cmd.Flags().GetInt("scale-width")
	require.NoError(t, err)
	assert.Equal(t, 4, width)

	height, err := cmd.Flags().GetInt("scale-height")
	require.NoError(t, err)
	assert.Equal(t, 2, height)

	device, err := cmd.Flags().GetString("device")
	require.NoError(t, err)
	assert.Equal(t, "/dev/video0", device)
}

func TestRoleValidation(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	// Neither role selected.
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--send")
}

func TestBuildSourceFactoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	factory, err := buildSourceFactory(true, path, false)
	require.NoError(t, err)

	src, err := factory.CreateSource()
	require.NoError(t, err)

	size, known := src.Size()
	assert.True(t, known)
	assert.Equal(t, 7, size)

	buf := make([]byte, 16)
	n, err := src.ReadSegment(0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), buf[:n])
}

func TestBuildSourceFactoryCompressedFileIsStreaming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	factory, err := buildSourceFactory(true, path, true)
	require.NoError(t, err)

	src, err := factory.CreateSource()
	require.NoError(t, err)

	// Compressed length is unknown ahead of time.
	_, known := src.Size()
	assert.False(t, known)
}

func TestBuildSinkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")

	sink, closeSink, err := buildSink(true, path, false)
	require.NoError(t, err)
	_, err = sink.Write([]byte("received"))
	require.NoError(t, err)
	require.NoError(t, closeSink())

	data, err := os.ReadFile(path) // nolint: gosec
	require.NoError(t, err)
	assert.Equal(t, []byte("received"), data)
}

func TestBuildSinkCompressedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")

	var compressed bytes.Buffer
	r := transport.NewCompressedReader(bytes.NewReader([]byte("the payload")))
	_, err := compressed.ReadFrom(r)
	require.NoError(t, err)

	sink, closeSink, err := buildSink(true, path, true)
	require.NoError(t, err)
	_, err = sink.Write(compressed.Bytes())
	require.NoError(t, err)
	require.NoError(t, closeSink())

	data, err := os.ReadFile(path) // nolint: gosec
	require.NoError(t, err)
	assert.Equal(t, []byte("the payload"), data)
}

func TestBuildSinkDiscardForSender(t *testing.T) {
	sink, closeSink, err := buildSink(false, "", false)
	require.NoError(t, err)
	assert.Equal(t, io.Discard, sink)
	assert.NoError(t, closeSink())
}
