package dzisrc

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/dzipyramid/pyramidtiff"
)

const passthroughTileSize = 256

// RasterPassthroughSource wraps a single local raster file (not a DZI tree)
// as a degenerate one-layer, zero-overlap DZI source (§4.11): tiles are
// synthesized on demand by cropping the in-memory raster, rather than read
// from a `_files/` tree on disk.
type RasterPassthroughSource struct {
	img      image.Image
	manifest pyramidtiff.Manifest
}

// NewRasterSource sniffs path's content (JPEG or PNG magic bytes, not its
// extension) and loads it whole via gg.LoadJPG/gg.LoadPNG, the same calls
// RoomOfRequirement-deepzoom's own loadImage makes for a local file path.
func NewRasterSource(path string) (*RasterPassthroughSource, error) {
	magic, err := readMagic(path)
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindIoFailed, "sniff raster file", err)
	}

	var img image.Image
	switch {
	case isJPEGMagic(magic):
		img, err = gg.LoadJPG(path)
	case isPNGMagic(magic):
		img, err = gg.LoadPNG(path)
	default:
		return nil, pyramidtiff.NewError(pyramidtiff.KindManifestInvalid, "unrecognized raster format", nil)
	}
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindDecodeFailed, "load raster file", err)
	}

	b := img.Bounds()
	return &RasterPassthroughSource{
		img: img,
		manifest: pyramidtiff.Manifest{
			Format:   "jpeg",
			TileSize: passthroughTileSize,
			Overlap:  0,
			Width:    b.Dx(),
			Height:   b.Dy(),
		},
	}, nil
}

// IsDZIManifest reports whether path's content looks like an XML DZI
// manifest rather than a raster image, by sniffing its leading bytes.
func IsDZIManifest(path string) (bool, error) {
	magic, err := readMagic(path)
	if err != nil {
		return false, err
	}
	return !isJPEGMagic(magic) && !isPNGMagic(magic), nil
}

func readMagic(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, 8)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func isJPEGMagic(b []byte) bool { return len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 }
func isPNGMagic(b []byte) bool {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(b) >= len(png) && bytes.Equal(b[:len(png)], png)
}

func (s *RasterPassthroughSource) Manifest() pyramidtiff.Manifest { return s.manifest }

// CopyTile crops the in-memory raster to the requested tile's region and
// JPEG-encodes it to sink. Only the base layer is ever requested: the
// region filler only fetches base-layer source tiles, since the reduced-
// resolution pyramid is generated downstream from the written output file.
func (s *RasterPassthroughSource) CopyTile(ctx context.Context, layer, col, row int, sink io.Writer) error {
	if err := ctx.Err(); err != nil {
		return pyramidtiff.NewError(pyramidtiff.KindCancelled, "fetch cancelled", err)
	}
	x0, y0 := col*passthroughTileSize, row*passthroughTileSize
	b := s.img.Bounds()
	x1 := min(x0+passthroughTileSize, b.Dx())
	y1 := min(y0+passthroughTileSize, b.Dy())
	rect := image.Rect(x0, y0, x1, y1)
	tile := imaging.Crop(s.img, rect)
	return jpeg.Encode(sink, tile, &jpeg.Options{Quality: 92})
}

// Decode satisfies pyramidtiff.TileDecoder by delegating to the package's
// default format-sniffing decoder.
func (s *RasterPassthroughSource) Decode(data []byte) (image.Image, error) {
	return defaultDecoder{}.Decode(data)
}
