package pyramidtiff

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard(n int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			c := color.RGBA{A: 255}
			if (x/4+y/4)%2 == 0 {
				c.R, c.G, c.B = 200, 40, 40
			} else {
				c.R, c.G, c.B = 10, 90, 200
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSplitJPEGTablesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, checkerboard(32), &jpeg.Options{Quality: 80}))
	original := buf.Bytes()

	tables, stripped, err := splitJPEGTables(original)
	require.NoError(t, err)
	assert.NotEmpty(t, tables)
	assert.Less(t, len(stripped), len(original), "stripped stream must shrink by the removed DQT/DHT segments")

	reassembled := reassembleJPEG(tables, stripped)
	img, err := jpeg.Decode(bytes.NewReader(reassembled))
	require.NoError(t, err, "reassembled stream must still be a valid jpeg")
	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())
}

func TestTileEncoderCapturesTablesOnlyFromFirstTile(t *testing.T) {
	e := newTileEncoder(Config{Quality: 85, SharedQuantTables: true})

	ws := &seekBuf{}
	off1, n1, err := e.encodeTile(ws, checkerboard(16))
	require.NoError(t, err)
	assert.Zero(t, off1)
	assert.Positive(t, n1)
	first := e.sharedTables()
	assert.NotEmpty(t, first)

	off2, n2, err := e.encodeTile(ws, checkerboard(16))
	require.NoError(t, err)
	assert.Equal(t, n1, off2, "second tile must be written immediately after the first")
	assert.Positive(t, n2)
	assert.Equal(t, first, e.sharedTables(), "tables must not change after the first tile")
}

// seekBuf is a minimal io.WriteSeeker over an in-memory buffer, used only to
// drive tileEncoder.encodeTile without pulling in a real file.
type seekBuf struct {
	buf []byte
	pos int64
}

func (s *seekBuf) Write(p []byte) (int, error) {
	end := int(s.pos) + len(p)
	if end > len(s.buf) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:end], p)
	s.pos = int64(end)
	return len(p), nil
}

func (s *seekBuf) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		s.pos = offset
	case 1:
		s.pos += offset
	case 2:
		s.pos = int64(len(s.buf)) + offset
	}
	return s.pos, nil
}
