package pyramidtiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestValidate(t *testing.T) {
	ok := Manifest{Width: 10, Height: 10, TileSize: 254, Overlap: 1}
	require.NoError(t, ok.Validate())

	bad := Manifest{Width: 0, Height: 10, TileSize: 254}
	assert.ErrorIs(t, bad.Validate(), ErrManifestInvalid)

	negOverlap := Manifest{Width: 10, Height: 10, TileSize: 254, Overlap: -1}
	assert.ErrorIs(t, negOverlap.Validate(), ErrManifestInvalid)
}

func TestBaseLayer(t *testing.T) {
	// A 1x1 image has exactly one layer, index 0.
	m := Manifest{Width: 1, Height: 1, TileSize: 254}
	assert.Equal(t, 0, m.BaseLayer())

	// Deep Zoom prepends ceil(./2) layers down to 1x1: a 300x150 image needs
	// 300 -> 150 -> 75 -> 38 -> 19 -> 10 -> 5 -> 3 -> 2 -> 1, i.e. 9 halvings.
	m2 := Manifest{Width: 300, Height: 150, TileSize: 254}
	assert.Equal(t, 9, m2.BaseLayer())
}

func TestSourceTileGrid(t *testing.T) {
	m := Manifest{Width: 600, Height: 300, TileSize: 254, Overlap: 1}
	cols, rows := m.SourceTileGrid()
	assert.Equal(t, 3, cols) // ceil(600/254)
	assert.Equal(t, 2, rows) // ceil(300/254)
}

func TestNextDimsIndependentPerAxis(t *testing.T) {
	w, h := NextDims(7, 4)
	assert.Equal(t, 4, w) // ceil(7/2)
	assert.Equal(t, 2, h) // ceil(4/2)
}

func TestCountOverviewLevelsMatchesGeneratorPredicate(t *testing.T) {
	// Manually walk the same predicate the generator uses and compare.
	w, h, o, minSize := 1000, 800, 256, 32
	levels := CountOverviewLevels(w, h, o, minSize)

	n := 0
	for min(w, h) > o && min(w, h) >= minSize {
		w, h = NextDims(w, h)
		n++
	}
	assert.Equal(t, n, levels)
}

func TestOutputGrid(t *testing.T) {
	g := NewOutputGrid(600, 300, 256)
	assert.Equal(t, 3, g.Cols)
	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 6, g.TileCount())

	x, y := g.Origin(2, 1)
	assert.Equal(t, 512, x)
	assert.Equal(t, 256, y)
}
