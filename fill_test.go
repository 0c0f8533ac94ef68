package pyramidtiff

import (
	"context"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource is a fake Source whose "tiles" are tiny synthetic images
// tagged with their own (col,row), used to verify the Region Filler's
// compositing and its at-most-twice-per-tile fetch guarantee without
// touching real JPEG codecs.
type countingSource struct {
	manifest Manifest
	fetches  map[[2]int]int
}

func newCountingSource(m Manifest) *countingSource {
	return &countingSource{manifest: m, fetches: map[[2]int]int{}}
}

func (s *countingSource) Manifest() Manifest { return s.manifest }

func (s *countingSource) CopyTile(ctx context.Context, layer, col, row int, sink io.Writer) error {
	s.fetches[[2]int{col, row}]++
	// Encode (col,row) as two bytes; decode reconstructs a solid-color tile.
	_, err := sink.Write([]byte{byte(col), byte(row)})
	return err
}

func (s *countingSource) Decode(data []byte) (image.Image, error) {
	col, row := int(data[0]), int(data[1])
	cols, rows := s.manifest.SourceTileGrid()

	w, h := s.manifest.TileSize, s.manifest.TileSize
	if col > 0 {
		w += s.manifest.Overlap
	}
	if col < cols-1 {
		w += s.manifest.Overlap
	}
	if row > 0 {
		h += s.manifest.Overlap
	}
	if row < rows-1 {
		h += s.manifest.Overlap
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: uint8(col * 40), G: uint8(row * 40), B: 1, A: 255}
	for i := range img.Pix {
		if i%4 == 0 {
			img.Set(i/4%w, i/4/w, c)
		}
	}
	return img, nil
}

func TestRegionFillerFetchesEachSourceTileAtMostTwice(t *testing.T) {
	manifest := Manifest{Format: "jpeg", TileSize: 8, Overlap: 1, Width: 40, Height: 24}
	src := newCountingSource(manifest)
	filler := newRegionFiller(manifest, src)

	const outputTile = 12
	grid := NewOutputGrid(manifest.Width, manifest.Height, outputTile)
	canvas := image.NewRGBA(image.Rect(0, 0, outputTile, outputTile))

	ctx := context.Background()
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			x, y := grid.Origin(col, row)
			require.NoError(t, filler.fill(ctx, x, y, canvas))
		}
	}

	for k, n := range src.fetches {
		assert.LessOrEqualf(t, n, 2, "source tile %v fetched %d times", k, n)
	}
}

func TestRegionFillerClearsCanvasBetweenTiles(t *testing.T) {
	manifest := Manifest{Format: "jpeg", TileSize: 8, Overlap: 0, Width: 8, Height: 8}
	src := newCountingSource(manifest)
	filler := newRegionFiller(manifest, src)

	canvas := image.NewRGBA(image.Rect(0, 0, 16, 16))
	// Paint it non-zero first so a stale pixel would be detectable.
	for i := range canvas.Pix {
		canvas.Pix[i] = 0xFF
	}

	require.NoError(t, filler.fill(context.Background(), 0, 0, canvas))

	// The bottom-right quadrant lies outside the 8x8 source image and must
	// have been left at zero, not the pre-fill 0xFF.
	idx := canvas.PixOffset(15, 15)
	assert.Equal(t, byte(0), canvas.Pix[idx+3], "alpha of untouched region must be cleared")
}
