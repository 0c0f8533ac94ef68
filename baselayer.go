package pyramidtiff

import (
	"context"
	"image"
)

// writeBaseLayer implements C5: drive the Region Filler across the full
// output-tile grid in row-major order, JPEG-encode each canvas, append the
// encoded bytes to out, and flush the resulting base IFD — the file's
// first IFD — once every tile has been written.
func writeBaseLayer(ctx context.Context, out *container, enc *tileEncoder, filler *regionFiller, grid OutputGrid, cfg Config, sink ProgressSink) error {
	tileOffsets := make([]uint64, 0, grid.TileCount())
	tileByteCounts := make([]uint64, 0, grid.TileCount())
	total := grid.TileCount()
	sink.StartBase(total)

	canvas := image.NewRGBA(image.Rect(0, 0, cfg.OutputTileSize, cfg.OutputTileSize))

	var totalBytes int64
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			if err := ctx.Err(); err != nil {
				return newErr(KindCancelled, "base layer cancelled", err)
			}

			outX, outY := grid.Origin(col, row)
			if err := filler.fill(ctx, outX, outY, canvas); err != nil {
				return err
			}

			offset, n, err := enc.encodeTile(out.w, canvas)
			if err != nil {
				return err
			}
			tileOffsets = append(tileOffsets, offset)
			tileByteCounts = append(tileByteCounts, n)
			totalBytes += int64(n)
			sink.BaseProgress(len(tileOffsets), total)
		}
	}

	out.baseWidth, out.baseHeight = grid.Width, grid.Height

	var jpegTables []byte
	if cfg.SharedQuantTables {
		jpegTables = enc.sharedTables()
	}

	ifd := ifdTiles{
		width:          uint64(grid.Width),
		height:         uint64(grid.Height),
		tileWidth:      uint32(cfg.OutputTileSize),
		tileLen:        uint32(cfg.OutputTileSize),
		tileOffsets:    tileOffsets,
		tileByteCounts: tileByteCounts,
		jpegTables:     jpegTables,
		software:       cfg.SoftwareField,
	}
	if err := out.AppendIFD(ifd); err != nil {
		return err
	}
	sink.CompleteBase(total, totalBytes)
	return nil
}
