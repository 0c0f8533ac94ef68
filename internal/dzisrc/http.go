package dzisrc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dzipyramid/pyramidtiff"
)

// HTTPSource fetches a DZI tree's manifest and tiles over HTTP(S), retrying
// each tile a fixed number of times at a fixed interval — the simplest
// retry policy the spec calls for, deliberately not exponential backoff.
type HTTPSource struct {
	defaultDecoder

	client        *http.Client
	manifestURI   string
	baseURI       string
	baseName      string
	manifest      pyramidtiff.Manifest
	maxRetries    int
	retryInterval time.Duration
	log           *zap.Logger
}

// NewHTTPSource fetches and parses the manifest at manifestURI (e.g.
// https://host/path/slide.dzi) and derives the tile tree's base URI/name
// from it per the DZI convention (§6).
func NewHTTPSource(ctx context.Context, manifestURI string, maxRetries int, retryInterval time.Duration, log *zap.Logger) (*HTTPSource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURI, nil)
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindIoFailed, "build manifest request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindFetchFailed, "fetch dzi manifest", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, pyramidtiff.NewError(pyramidtiff.KindFetchFailed, "fetch dzi manifest", fmt.Errorf("status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindIoFailed, "read dzi manifest body", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(manifestURI)
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindManifestInvalid, "parse manifest uri", err)
	}
	base := strings.TrimSuffix(u.Path, path.Ext(u.Path))
	baseName := path.Base(base)
	u.Path = path.Dir(base)
	baseURI := u.String()

	return &HTTPSource{
		client: client, manifestURI: manifestURI, baseURI: baseURI, baseName: baseName,
		manifest: manifest, maxRetries: maxRetries, retryInterval: retryInterval, log: log,
	}, nil
}

func (s *HTTPSource) Manifest() pyramidtiff.Manifest { return s.manifest }

// CopyTile fetches the tile at (layer,col,row), making up to maxRetries
// attempts at a fixed interval on transport or non-200 failures, and writes
// the raw response body to sink.
func (s *HTTPSource) CopyTile(ctx context.Context, layer, col, row int, sink io.Writer) error {
	u := tileURL(s.baseURI, s.baseName, s.manifest.Format, layer, col, row)

	var causes error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return pyramidtiff.NewError(pyramidtiff.KindCancelled, "fetch cancelled", err)
		}
		err := s.fetchOnce(ctx, u, sink)
		if err == nil {
			return nil
		}
		causes = multierr.Append(causes, err)
		s.log.Warn("tile fetch attempt failed", zap.String("url", u), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				return pyramidtiff.NewError(pyramidtiff.KindCancelled, "fetch cancelled", ctx.Err())
			case <-time.After(s.retryInterval):
			}
		}
	}
	return pyramidtiff.NewError(pyramidtiff.KindFetchFailed, fmt.Sprintf("exhausted retries fetching %s", u), causes)
}

func (s *HTTPSource) fetchOnce(ctx context.Context, u string, sink io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	_, err = io.Copy(sink, resp.Body)
	return err
}
