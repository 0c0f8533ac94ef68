package dzisrc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dzipyramid/pyramidtiff"
)

// LocalSource reads a DZI tree rooted at a local .dzi manifest file,
// following the identical on-disk layout the HTTP source expects of a
// remote tree: {dir}/{baseName}_files/{layer}/{col}_{row}.{format}.
type LocalSource struct {
	defaultDecoder

	dir      string
	baseName string
	manifest pyramidtiff.Manifest
}

// NewLocalSource reads and parses manifestPath.
func NewLocalSource(manifestPath string) (*LocalSource, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindIoFailed, "read dzi manifest", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(manifestPath)
	baseName := strings.TrimSuffix(filepath.Base(manifestPath), filepath.Ext(manifestPath))
	return &LocalSource{dir: dir, baseName: baseName, manifest: manifest}, nil
}

func (s *LocalSource) Manifest() pyramidtiff.Manifest { return s.manifest }

// CopyTile reads the tile file for (layer,col,row) and copies it to sink.
// A tile file that cannot be opened is reported as FetchFailed and a failed
// read as IoFailed; there is nothing to retry against a local filesystem.
func (s *LocalSource) CopyTile(ctx context.Context, layer, col, row int, sink io.Writer) error {
	if err := ctx.Err(); err != nil {
		return pyramidtiff.NewError(pyramidtiff.KindCancelled, "fetch cancelled", err)
	}
	p := filepath.Join(s.dir, s.baseName+"_files", strconv.Itoa(layer), strconv.Itoa(col)+"_"+strconv.Itoa(row)+"."+s.manifest.Format)
	f, err := os.Open(p)
	if err != nil {
		return pyramidtiff.NewError(pyramidtiff.KindFetchFailed, "open local tile", err)
	}
	defer f.Close()
	if _, err := io.Copy(sink, f); err != nil {
		return pyramidtiff.NewError(pyramidtiff.KindIoFailed, "read local tile", err)
	}
	return nil
}
