// Package dzisrc provides concrete Source implementations — HTTP, local
// file, S3, and local-raster-passthrough — for the engine's external tile
// fetcher/decoder contract.
package dzisrc

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/dzipyramid/pyramidtiff"
)

// dziImage mirrors the DZI manifest's XML shape:
//
//	<Image Format="jpg" Overlap="1" TileSize="256" xmlns="...">
//	  <Size Height="..." Width="..."/>
//	</Image>
type dziImage struct {
	XMLName xml.Name `xml:"Image"`
	Format  string   `xml:"Format,attr"`
	Overlap int      `xml:"Overlap,attr"`
	TileSize int     `xml:"TileSize,attr"`
	Size    struct {
		Width  int `xml:"Width,attr"`
		Height int `xml:"Height,attr"`
	} `xml:"Size"`
}

// ParseManifest decodes a DZI XML document into a pyramidtiff.Manifest and
// validates it.
func ParseManifest(data []byte) (pyramidtiff.Manifest, error) {
	var img dziImage
	if err := xml.Unmarshal(data, &img); err != nil {
		return pyramidtiff.Manifest{}, pyramidtiff.NewError(pyramidtiff.KindManifestInvalid, "parse dzi manifest", err)
	}
	m := pyramidtiff.Manifest{
		Format:   strings.ToLower(img.Format),
		TileSize: img.TileSize,
		Overlap:  img.Overlap,
		Width:    img.Size.Width,
		Height:   img.Size.Height,
	}
	if err := m.Validate(); err != nil {
		return pyramidtiff.Manifest{}, err
	}
	return m, nil
}

// tileURL builds the conventional DZI tile URL:
// {baseURI}/{baseName}_files/{layer}/{col}_{row}.{format}. It is used by the
// HTTP source; the local file and S3 sources build the same layout
// themselves.
func tileURL(baseURI, baseName, format string, layer, col, row int) string {
	return fmt.Sprintf("%s/%s_files/%d/%d_%d.%s", strings.TrimSuffix(baseURI, "/"), baseName, layer, col, row, format)
}
