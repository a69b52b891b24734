// Package qr converts frames to QR codes for the terminal and back from
// camera images.
package qr

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/pkg/errors"

	"github.com/piccp/piccp/frame"
)

// Default module cell dimensions in terminal character cells. A terminal
// cell is roughly twice as tall as it is wide, so 4x2 renders near-square
// modules.
const (
	DefaultModuleWidth  = 4
	DefaultModuleHeight = 2
)

const (
	lightGlyph = '█' // full block
	darkGlyph  = ' '
)

// RenderOptions control how a QR code is scaled into terminal glyphs.
type RenderOptions struct {
	// ModuleWidth and ModuleHeight give the size of one QR module in
	// character cells. Zero selects the default.
	ModuleWidth  int
	ModuleHeight int
	// HideQuietZone suppresses the border around the code.
	HideQuietZone bool
}

// Encode renders a frame as a two-colour character matrix. The error
// correction level is the lowest available: the channel is a physically
// co-located screen/camera pair, so raw capacity matters more than
// redundancy. Colours are inverted - dark modules become spaces - because
// terminals render spaces crisply and cameras get better contrast when the
// bright background is the large uniform region.
func Encode(f frame.Frame, opts RenderOptions) (string, error) {
	code, err := qrcode.New(string(f.Bytes()), qrcode.Low)
	if err != nil {
		return "", errors.Wrap(err, "encode frame")
	}
	code.DisableBorder = opts.HideQuietZone

	w := opts.ModuleWidth
	if w <= 0 {
		w = DefaultModuleWidth
	}
	h := opts.ModuleHeight
	if h <= 0 {
		h = DefaultModuleHeight
	}

	bitmap := code.Bitmap()
	var b strings.Builder
	row := make([]rune, 0, len(bitmap)*w)
	for _, modules := range bitmap {
		row = row[:0]
		for _, dark := range modules {
			glyph := lightGlyph
			if dark {
				glyph = darkGlyph
			}
			for i := 0; i < w; i++ {
				row = append(row, glyph)
			}
		}
		line := string(row)
		for i := 0; i < h; i++ {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}
