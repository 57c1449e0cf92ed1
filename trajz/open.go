package trajz

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rotblauer/trajd/params"
)

var ErrBadS3URI = errors.New("bad s3 uri")

const s3Scheme = "s3://"

// Open opens a point source for reading.
// uri is "-" for stdin, an s3://bucket/key object, or a local path.
// Sources ending in .gz are decompressed.
func Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	switch {
	case uri == "-" || uri == "":
		return io.NopCloser(os.Stdin), nil
	case strings.HasPrefix(uri, s3Scheme):
		bucket, key, err := ParseS3URI(uri)
		if err != nil {
			return nil, err
		}
		return OpenS3(ctx, bucket, key)
	case strings.HasSuffix(uri, ".gz"):
		return NewGZFileReader(uri)
	}
	return os.Open(uri)
}

// ParseS3URI splits s3://bucket/key/parts into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", fmt.Errorf("%w: %q has no s3:// scheme", ErrBadS3URI, uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrBadS3URI, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs a bucket and a key", ErrBadS3URI, uri)
	}
	return bucket, key, nil
}

// OpenS3 downloads an object into memory.
// Credentials and region come from the shared AWS config and environment,
// with params.AWS_REGION as the fallback region; configs override both.
func OpenS3(ctx context.Context, bucket, key string, configs ...*aws.Config) (io.ReadCloser, error) {
	cfg := aws.NewConfig().WithRegion(params.AWS_REGION)
	cfg.MergeIn(configs...)
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	return downloadS3(ctx, s3manager.NewDownloader(sess), bucket, key)
}

func downloadS3(ctx context.Context, downloader *s3manager.Downloader, bucket, key string) (io.ReadCloser, error) {
	buf := aws.NewWriteAtBuffer([]byte{})
	n, err := downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	r := bytes.NewReader(buf.Bytes()[:n])
	if strings.HasSuffix(key, ".gz") {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gzr, nil
	}
	return io.NopCloser(r), nil
}

// Create opens a result sink for writing.
// path is "-" for stdout; paths ending in .gz are compressed.
func Create(path string) (io.WriteCloser, error) {
	switch {
	case path == "-" || path == "":
		return nopWriteCloser{os.Stdout}, nil
	case strings.HasSuffix(path, ".gz"):
		return NewGZFileWriter(path, DefaultGZFileWriterConfig())
	}
	return os.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
