package pyramidtiff

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/jpeg"
	"io"

	"github.com/disintegration/imaging"
	"github.com/google/tiff"
)

// readIFD mirrors the small subset of TIFF tags the reduced-resolution
// generator needs to read back out of the file it is itself writing,
// following the teacher's tag-struct idiom (cog.go) but limited to our own
// tag set rather than the full GeoTIFF catalogue.
type readIFD struct {
	r              tiff.BReader
	ImageWidth     uint64   `tiff:"field,tag=256"`
	ImageLength    uint64   `tiff:"field,tag=257"`
	TileWidth      uint16   `tiff:"field,tag=322"`
	TileLength     uint16   `tiff:"field,tag=323"`
	TileOffsets    []uint64 `tiff:"field,tag=324"`
	TileByteCounts []uint64 `tiff:"field,tag=325"`
	JPEGTables     []byte   `tiff:"field,tag=347"`
}

// generateOverviews implements C6: repeatedly reopen the file being
// written, read back its most recently appended IFD via the TIFF container
// reader, downsample it 2x by re-decoding and box-filtering source tiles,
// and append a new reduced-resolution IFD — until the shorter side drops
// below cfg.MinOverviewSize() or to the output tile size or below.
func generateOverviews(ctx context.Context, f ReadWriteSeeker, out *container, cfg Config, sink ProgressSink) error {
	levels := CountOverviewLevels(out.baseWidth, out.baseHeight, cfg.OutputTileSize, cfg.MinOverviewSize())
	sink.StartPyramid(levels)
	for i := 0; i < levels; i++ {
		if err := ctx.Err(); err != nil {
			return newErr(KindCancelled, "overview generation cancelled", err)
		}
		if err := generateOneOverview(ctx, f, out, cfg, i+1, sink); err != nil {
			return err
		}
	}
	sink.CompletePyramid(levels)
	return nil
}

// ReadWriteSeeker is the minimal capability the engine needs from its
// output file: it is read back (for the TIFF container reader and tile
// re-decoding the reduced-resolution generator performs) and written/
// seeked (to append tile bytes and IFDs). *os.File satisfies it.
type ReadWriteSeeker interface {
	io.ReaderAt
	io.WriteSeeker
}

func generateOneOverview(ctx context.Context, f ReadWriteSeeker, out *container, cfg Config, layer int, sink ProgressSink) error {
	tif, err := tiff.Parse(f, nil, nil)
	if err != nil {
		return newErr(KindIoFailed, "reparse output tiff", err)
	}
	ifds := tif.IFDs()
	if len(ifds) == 0 {
		return newErr(KindIoFailed, "output tiff has no ifds yet", nil)
	}
	prev := &readIFD{r: tif.R()}
	if err := tiff.UnmarshalIFD(ifds[len(ifds)-1], prev); err != nil {
		return newErr(KindIoFailed, "unmarshal previous ifd", err)
	}

	newW, newH := NextDims(int(prev.ImageWidth), int(prev.ImageLength))
	grid := NewOutputGrid(newW, newH, cfg.OutputTileSize)
	enc := newTileEncoder(cfg)

	tileOffsets := make([]uint64, 0, grid.TileCount())
	tileByteCounts := make([]uint64, 0, grid.TileCount())
	total := grid.TileCount()
	sink.StartLayer(layer, total, newW, newH)
	var totalBytes int64

	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			if err := ctx.Err(); err != nil {
				return newErr(KindCancelled, "overview level cancelled", err)
			}
			outX, outY := grid.Origin(col, row)

			x0, y0 := outX*2, outY*2
			x1 := min(x0+cfg.OutputTileSize*2, int(prev.ImageWidth))
			y1 := min(y0+cfg.OutputTileSize*2, int(prev.ImageLength))

			region, err := assemblePrevRegion(f, prev, x0, y0, x1, y1)
			if err != nil {
				return err
			}

			downW, downH := ceilDiv(x1-x0, 2), ceilDiv(y1-y0, 2)
			small := imaging.Resize(region, downW, downH, imaging.Box)

			canvas := image.NewRGBA(image.Rect(0, 0, cfg.OutputTileSize, cfg.OutputTileSize))
			draw.Draw(canvas, small.Bounds(), small, image.Point{}, draw.Src)

			offset, n, err := enc.encodeTile(out.w, canvas)
			if err != nil {
				return err
			}
			tileOffsets = append(tileOffsets, offset)
			tileByteCounts = append(tileByteCounts, n)
			totalBytes += int64(n)
			sink.LayerProgress(layer, len(tileOffsets), total)
		}
	}

	var jpegTables []byte
	if cfg.SharedQuantTables {
		jpegTables = enc.sharedTables()
	}

	if err := out.AppendIFD(ifdTiles{
		width:             uint64(newW),
		height:            uint64(newH),
		tileWidth:         uint32(cfg.OutputTileSize),
		tileLen:           uint32(cfg.OutputTileSize),
		tileOffsets:       tileOffsets,
		tileByteCounts:    tileByteCounts,
		jpegTables:        jpegTables,
		software:          cfg.SoftwareField,
		reducedResolution: true,
	}); err != nil {
		return err
	}
	sink.CompleteLayer(layer, total, totalBytes)
	return nil
}

// assemblePrevRegion reads and decodes every previous-level tile
// overlapping [x0,x1)x[y0,y1) and composites them into one canvas of
// exactly that size, re-attaching prev.JPEGTables to each tile's stream
// first when the previous level used shared quantization tables.
func assemblePrevRegion(f io.ReaderAt, prev *readIFD, x0, y0, x1, y1 int) (*image.RGBA, error) {
	tw, tl := int(prev.TileWidth), int(prev.TileLength)
	cols := ceilDiv(int(prev.ImageWidth), tw)

	canvas := image.NewRGBA(image.Rect(0, 0, x1-x0, y1-y0))

	tx0, tx1 := x0/tw, ceilDiv(x1, tw)
	ty0, ty1 := y0/tl, ceilDiv(y1, tl)

	for ty := ty0; ty < ty1; ty++ {
		for tx := tx0; tx < tx1; tx++ {
			idx := ty*cols + tx
			if idx >= len(prev.TileOffsets) {
				continue
			}
			off, n := prev.TileOffsets[idx], prev.TileByteCounts[idx]
			buf := make([]byte, n)
			if _, err := f.ReadAt(buf, int64(off)); err != nil {
				return nil, newErr(KindIoFailed, "read previous-level tile", err)
			}
			if prev.JPEGTables != nil {
				buf = reassembleJPEG(prev.JPEGTables, buf)
			}
			img, err := jpeg.Decode(bytes.NewReader(buf))
			if err != nil {
				return nil, newErr(KindDecodeFailed, "decode previous-level tile", err)
			}

			px, py := tx*tw, ty*tl
			dx, dy := px-x0, py-y0
			b := img.Bounds()
			dst := image.Rect(dx, dy, dx+b.Dx(), dy+b.Dy())
			draw.Draw(canvas, dst, img, b.Min, draw.Src)
		}
	}
	return canvas, nil
}

// reassembleJPEG splices a shared JPEGTables stream back into a
// table-stripped tile stream, inserting the table segments immediately
// after SOI, the inverse of splitJPEGTables.
func reassembleJPEG(tables, tileData []byte) []byte {
	if len(tables) < 4 {
		return tileData
	}
	tbody := tables[2 : len(tables)-2]
	out := make([]byte, 0, len(tileData)+len(tbody))
	out = append(out, tileData[:2]...)
	out = append(out, tbody...)
	out = append(out, tileData[2:]...)
	return out
}
