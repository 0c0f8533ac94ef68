package pyramidtiff

import (
	"context"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/google/tiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ReadAt lets seekBuf double as the ReadWriteSeeker the overview generator
// needs to re-read the file it is itself writing.
func (s *seekBuf) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, s.buf[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func solidTile(n int, r, g, b uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	c := color.RGBA{R: r, G: g, B: b, A: 255}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestGenerateOverviewsAppendsOneHalvedIFD(t *testing.T) {
	buf := &seekBuf{}
	out, err := newContainer(buf, false)
	require.NoError(t, err)

	cfg, err := NewConfig(OutputTileSize(8), MinOverviewSize(1), Quality(80))
	require.NoError(t, err)

	// Write a 32x16 base layer as 4x2 tiles of 8x8, each a distinct solid
	// color, mirroring what writeBaseLayer itself would have produced.
	enc := newTileEncoder(cfg)
	const cols, rows = 4, 2
	offsets := make([]uint64, 0, cols*rows)
	counts := make([]uint64, 0, cols*rows)
	for ty := 0; ty < rows; ty++ {
		for tx := 0; tx < cols; tx++ {
			off, n, err := enc.encodeTile(buf, solidTile(8, uint8(tx*50), uint8(ty*50), 10))
			require.NoError(t, err)
			offsets = append(offsets, off)
			counts = append(counts, n)
		}
	}
	require.NoError(t, out.AppendIFD(ifdTiles{
		width: 32, height: 16, tileWidth: 8, tileLen: 8,
		tileOffsets: offsets, tileByteCounts: counts,
	}))
	out.baseWidth, out.baseHeight = 32, 16

	require.NoError(t, generateOverviews(context.Background(), buf, out, cfg, NoopSink{}))

	// One halving (32x16 -> 16x8) exhausts MinOverviewSize(1) against
	// OutputTileSize(8): min(16,8)=8 is not > O=8, so generation stops there.
	tif, err := tiff.Parse(buf, nil, nil)
	require.NoError(t, err)
	assert.Len(t, tif.IFDs(), 2, "base IFD plus exactly one overview IFD")

	var level1 readIFD
	level1.r = tif.R()
	require.NoError(t, tiff.UnmarshalIFD(tif.IFDs()[1], &level1))
	assert.EqualValues(t, 16, level1.ImageWidth)
	assert.EqualValues(t, 8, level1.ImageLength)
}
