package dzisrc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// defaultDecoder implements pyramidtiff.TileDecoder by decoding with
// imaging.Decode, which dispatches to the right stdlib codec (JPEG or PNG
// for DZI tiles) from the stream's own magic bytes rather than trusting the
// manifest's declared Format.
type defaultDecoder struct{}

func (defaultDecoder) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode dzi tile: %w", err)
	}
	return img, nil
}
