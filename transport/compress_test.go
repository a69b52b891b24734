package transport

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressedRoundTrip(t *testing.T) {
	data := make([]byte, 32*1024)
	rng := rand.New(rand.NewSource(7)) // nolint: gosec
	rng.Read(data)                     // nolint: gosec, errcheck

	r := NewCompressedReader(bytes.NewReader(data))
	defer r.Close() // nolint: gosec, errcheck
	compressed, err := io.ReadAll(r)
	require.NoError(t, err)

	var out bytes.Buffer
	w := NewDecompressingWriter(&out)
	_, err = w.Write(compressed)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, data, out.Bytes())
}

func TestCompressedRoundTripThroughSegments(t *testing.T) {
	data := bytes.Repeat([]byte("piccp "), 10_000)

	src := NewStreamSource(NewCompressedReader(bytes.NewReader(data)))
	_, known := src.Size()
	assert.False(t, known)

	var out bytes.Buffer
	w := NewDecompressingWriter(&out)

	// Walk the stream the way the sender task does.
	buf := make([]byte, 128)
	for offset := 0; ; offset++ {
		n, err := src.ReadSegment(offset, buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		_, err = w.Write(buf[:n])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.Equal(t, data, out.Bytes())
}

func TestCompressedEmptyStream(t *testing.T) {
	r := NewCompressedReader(bytes.NewReader(nil))
	compressed, err := io.ReadAll(r)
	require.NoError(t, err)

	var out bytes.Buffer
	w := NewDecompressingWriter(&out)
	_, err = w.Write(compressed)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Empty(t, out.Bytes())
}
