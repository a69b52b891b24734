package qr

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	qrmulti "github.com/makiuchi-d/gozxing/multi/qrcode"

	"github.com/piccp/piccp/frame"
)

// LogFunc surfaces transient decode diagnostics, typically into the UI log
// pane.
type LogFunc func(format string, args ...interface{})

// Decoder extracts frames from camera images. It keeps a first-line
// expected-sequence counter so stale re-photographed frames are flagged as
// early as possible; authoritative duplicate suppression stays with the
// transport receiver, since one image can yield several codes.
type Decoder struct {
	reader   multi.MultipleBarcodeReader
	expected int
	logf     LogFunc
}

// NewDecoder delivers a decoder reporting diagnostics through logf.
func NewDecoder(logf LogFunc) *Decoder {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Decoder{
		reader: qrmulti.NewQRCodeMultiReader(),
		logf:   logf,
	}
}

// Decode delivers every well-formed frame found in the image. Images with no
// recognisable code are common - the camera sees the screen mid-refresh, at
// an angle, or out of focus - and yield an empty slice.
func (d *Decoder) Decode(img image.Image) []frame.Frame {
	bmp, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(gozxing.NewLuminanceSourceFromImage(img)))
	if err != nil {
		d.logf("binarize image: %v", err)
		return nil
	}

	results, err := d.reader.DecodeMultiple(bmp, nil)
	if err != nil {
		// No code in this image; the peer keeps displaying it.
		return nil
	}

	frames := make([]frame.Frame, 0, len(results))
	for _, result := range results {
		f := frame.New(payload(result))
		if !f.Wellformed() {
			d.logf("malformed frame (%d bytes)", len(f.Bytes()))
			continue
		}
		if f.Sequence() == d.expected {
			d.expected++
		} else {
			d.logf("unexpected frame %d", f.Sequence())
		}
		frames = append(frames, f)
	}
	return frames
}

// payload recovers the raw encoded bytes from a decode result. The byte
// segments carry the data untouched; the text form has been run through
// charset guessing and is only a fallback.
func payload(result *gozxing.Result) []byte {
	meta := result.GetResultMetadata()
	if segments, ok := meta[gozxing.ResultMetadataType_BYTE_SEGMENTS].([][]byte); ok {
		var data []byte
		for _, segment := range segments {
			data = append(data, segment...)
		}
		return data
	}
	return []byte(result.GetText())
}
