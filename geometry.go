package pyramidtiff

// Manifest is the parsed, validated DZI descriptor (§3). It is immutable
// once returned by ParseManifest.
type Manifest struct {
	Format   string // lowercase tile codec extension, e.g. "jpeg", "png"
	TileSize int    // S: source tile side, excluding overlap
	Overlap  int    // pixels of edge duplication on each inner side
	Width    int
	Height   int
}

// Validate checks the Manifest invariants (§3): width,height,tile_size > 0;
// overlap >= 0.
func (m Manifest) Validate() error {
	if m.Width <= 0 || m.Height <= 0 || m.TileSize <= 0 {
		return newErr(KindManifestInvalid, "width, height and tile_size must be positive", nil)
	}
	if m.Overlap < 0 {
		return newErr(KindManifestInvalid, "overlap must be non-negative", nil)
	}
	return nil
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// BaseLayer derives the DZI base (largest) layer index: starting from
// (width,height), Deep Zoom prepends ceil(·/2) layers down to 1×1; the base
// layer is the last one, at index count-1.
func (m Manifest) BaseLayer() int {
	w, h := m.Width, m.Height
	count := 1
	for w > 1 || h > 1 {
		w = ceilDiv(w, 2)
		h = ceilDiv(h, 2)
		count++
	}
	return count - 1
}

// SourceTileGrid returns the number of DZI source tiles (columns, rows) at
// the base layer.
func (m Manifest) SourceTileGrid() (cols, rows int) {
	return ceilDiv(m.Width, m.TileSize), ceilDiv(m.Height, m.TileSize)
}

// SourceTileOrigin returns the pixel origin (px,py) of DZI source tile
// (col,row) at the base layer: (col*S, row*S).
func (m Manifest) SourceTileOrigin(col, row int) (px, py int) {
	return col * m.TileSize, row * m.TileSize
}

// OutputGrid describes the regular, non-overlapping output-tile grid (§3)
// derived from a Manifest and an output tile size O.
type OutputGrid struct {
	O            int
	Width        int
	Height       int
	Cols, Rows   int
}

// NewOutputGrid computes the output-tile grid for an image of the given
// exact pixel dimensions: ceil(width/O) x ceil(height/O) tiles, each O×O,
// with right/bottom tiles zero-padded.
func NewOutputGrid(width, height, o int) OutputGrid {
	return OutputGrid{
		O:      o,
		Width:  width,
		Height: height,
		Cols:   ceilDiv(width, o),
		Rows:   ceilDiv(height, o),
	}
}

// TileCount returns Cols*Rows.
func (g OutputGrid) TileCount() int { return g.Cols * g.Rows }

// Origin returns the pixel origin of output tile (col,row).
func (g OutputGrid) Origin(col, row int) (x, y int) {
	return col * g.O, row * g.O
}

// NextDims returns the 2x-downsampled dimensions used by the
// reduced-resolution generator: ceil(w/2), ceil(h/2) computed independently
// per axis (§9 note 1 — the source's "(width+1)/2 for both axes" update is a
// defect and is not reproduced here).
func NextDims(w, h int) (int, int) {
	return ceilDiv(w, 2), ceilDiv(h, 2)
}

// CountOverviewLevels applies the reduced-resolution termination predicate
// (min(cur_w,cur_h) > O && min(cur_w,cur_h) >= minOverviewSize) to
// successive NextDims halvings and returns how many levels it allows.
// generateOverviews advertises this count via start_pyramid and runs exactly
// this many levels, so the two cannot drift apart (§9 note 2).
func CountOverviewLevels(width, height, o, minOverviewSize int) int {
	w, h := width, height
	n := 0
	for min(w, h) > o && min(w, h) >= minOverviewSize {
		w, h = NextDims(w, h)
		n++
	}
	return n
}
