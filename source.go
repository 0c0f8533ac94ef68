package pyramidtiff

import (
	"bytes"
	"context"
	"image"
	"io"
)

// TileFetcher is the external contract of C1: given (layer,col,row), it
// writes the raw encoded bytes of one DZI tile to sink. Implementations
// must be idempotent on retry. The engine never calls CopyTile
// concurrently with itself; serialization is the caller's discipline.
type TileFetcher interface {
	CopyTile(ctx context.Context, layer, col, row int, sink io.Writer) error
}

// TileDecoder is the external contract of C2: decode raw tile bytes into an
// RGB8 image whose (width,height) match the tile's actual stored
// dimensions, which may be smaller than S+2*overlap for edge tiles.
type TileDecoder interface {
	Decode(data []byte) (image.Image, error)
}

// Source bundles a TileFetcher and TileDecoder for one DZI tree, plus the
// parsed manifest describing it. Concrete variants live in
// internal/dzisrc: HTTPSource, LocalSource, S3Source, RasterPassthroughSource.
type Source interface {
	Manifest() Manifest
	TileFetcher
	TileDecoder
}

// fetchAndDecode is the "otherwise (and on further miss), fetch+decode"
// path of §4.4 step 2: acquire the raw bytes via the fetcher, then decode
// them, surfacing DecodeFailed distinctly from a fetch failure.
func fetchAndDecode(ctx context.Context, src Source, layer, col, row int) (image.Image, error) {
	buf := &bytes.Buffer{}
	if err := src.CopyTile(ctx, layer, col, row, buf); err != nil {
		return nil, err
	}
	img, err := src.Decode(buf.Bytes())
	if err != nil {
		return nil, newErr(KindDecodeFailed, "decode tile", err)
	}
	return img, nil
}
