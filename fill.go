package pyramidtiff

import (
	"context"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// regionFiller implements C4: for a given output-tile pixel rectangle, it
// determines which DZI source tiles cover it, acquires each (from cache or
// fetch+decode), composites them into an output-sized canvas accounting for
// DZI edge overlap, and deposits reusable tiles into the next-generation
// cache.
type regionFiller struct {
	manifest Manifest
	src      Source
	cols     int // DZI source-tile column count
	rows     int // DZI source-tile row count
	caches   *stripeCaches
}

func newRegionFiller(manifest Manifest, src Source) *regionFiller {
	cols, rows := manifest.SourceTileGrid()
	return &regionFiller{manifest: manifest, src: src, cols: cols, rows: rows, caches: newStripeCaches()}
}

// fill fully overwrites canvas (first cleared to zero) with pixels of the
// base image at rectangle [outX,outX+O) x [outY,outY+O), clipped to image
// bounds (outside = remains zero). It must be called once per output tile,
// in row-major grid order, for the cache rotation invariants to hold.
func (f *regionFiller) fill(ctx context.Context, outX, outY int, canvas *image.RGBA) error {
	clearCanvas(canvas)

	S := f.manifest.TileSize
	O := canvas.Bounds().Dx()

	tx0 := outX / S
	txCount := min(ceilDiv(outX%S+O, S), f.cols-tx0)
	ty0 := outY / S
	tyCount := min(ceilDiv(outY%S+O, S), f.rows-ty0)

	// Column-major order: outer loop x, inner loop y. This order is what
	// determines which tiles become right-edge carries vs bottom-edge
	// carries (§4.4).
	for txi := 0; txi < txCount; txi++ {
		tx := tx0 + txi
		for tyi := 0; tyi < tyCount; tyi++ {
			ty := ty0 + tyi
			if err := ctx.Err(); err != nil {
				return newErr(KindCancelled, "fill cancelled", err)
			}
			if err := f.placeTile(ctx, canvas, outX, outY, tx, ty, tx == tx0, ty == ty0, O); err != nil {
				return err
			}
		}
	}

	f.caches.Rotate()
	return nil
}

func (f *regionFiller) placeTile(ctx context.Context, canvas *image.RGBA, outX, outY, tx, ty int, leftmost, topmost bool, O int) error {
	S := f.manifest.TileSize
	overlap := f.manifest.Overlap
	px, py := f.manifest.SourceTileOrigin(tx, ty)

	var tile image.Image
	var ok bool
	if leftmost {
		tile, ok = f.caches.current.vertical.tryTake(px, py)
	}
	if !ok && topmost {
		tile, ok = f.caches.current.horizontal.tryTake(px, py)
	}
	if !ok {
		var err error
		tile, err = fetchAndDecode(ctx, f.src, f.manifest.BaseLayer(), tx, ty)
		if err != nil {
			return err
		}
	}

	// Composite: the decoded tile naturally includes the overlap border, so
	// its draw origin is offset by -overlap (clamped to 0 at image-outer
	// edges, where the tile carries no such border).
	dx, dy := px-outX-overlap, py-outY-overlap
	if tx == 0 {
		dx = px - outX
	}
	if ty == 0 {
		dy = py - outY
	}
	b := tile.Bounds()
	dst := image.Rect(dx, dy, dx+b.Dx(), dy+b.Dy())
	draw.Draw(canvas, dst, tile, b.Min, draw.Src)

	rightEdge := (px+S) > (outX+O)
	bottomEdge := (py+S) > (outY+O)
	switch {
	case rightEdge && bottomEdge:
		// Both carries needed: the original goes to the vertical cache, a
		// deep clone to the horizontal cache (§9 note 3 — either
		// assignment is valid; this is the one chosen).
		f.caches.backup.vertical.insert(px, py, tile)
		f.caches.backup.horizontal.insert(px, py, imaging.Clone(tile))
	case rightEdge:
		f.caches.backup.vertical.insert(px, py, tile)
	case bottomEdge:
		f.caches.backup.horizontal.insert(px, py, tile)
	}
	return nil
}

func clearCanvas(canvas *image.RGBA) {
	for i := range canvas.Pix {
		canvas.Pix[i] = 0
	}
}
