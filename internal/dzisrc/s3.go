package dzisrc

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dzipyramid/pyramidtiff"
)

// S3Source reads a DZI tree whose manifest and tiles live under an
// s3://bucket/prefix/name.dzi key, using the same object-storage client the
// wider pack's tile-rank builder uses for its own inputs.
type S3Source struct {
	defaultDecoder

	client   *minio.Client
	bucket   string
	dir      string // key prefix the manifest lives under
	baseName string
	manifest pyramidtiff.Manifest
}

// NewS3Source connects to endpoint with static credentials and loads the
// manifest at bucket/key.
func NewS3Source(ctx context.Context, endpoint, accessKey, secretKey string, secure bool, bucket, key string) (*S3Source, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindIoFailed, "create s3 client", err)
	}
	client.SetAppInfo("pyramidtiff", "1.0")

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindFetchFailed, "get dzi manifest object", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, pyramidtiff.NewError(pyramidtiff.KindFetchFailed, "read dzi manifest object", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	dir := path.Dir(key)
	baseName := strings.TrimSuffix(path.Base(key), path.Ext(key))
	return &S3Source{client: client, bucket: bucket, dir: dir, baseName: baseName, manifest: manifest}, nil
}

func (s *S3Source) Manifest() pyramidtiff.Manifest { return s.manifest }

// CopyTile fetches one tile object and copies it to sink. minio-go already
// retries transient transport errors internally, so a single attempt here
// is sufficient; any failure surfaces as FetchFailed.
func (s *S3Source) CopyTile(ctx context.Context, layer, col, row int, sink io.Writer) error {
	key := fmt.Sprintf("%s/%s_files/%d/%d_%d.%s", s.dir, s.baseName, layer, col, row, s.manifest.Format)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return pyramidtiff.NewError(pyramidtiff.KindFetchFailed, "get tile object "+key, err)
	}
	defer obj.Close()
	if _, err := io.Copy(sink, obj); err != nil {
		return pyramidtiff.NewError(pyramidtiff.KindFetchFailed, "read tile object "+key, err)
	}
	return nil
}
