package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bioconv/internal/logging"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

// S3Config configures an S3-compatible input bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool

	Includes    []string
	Excludes    []string
	CacheDir    string
	Parallelism int
}

// S3 lists and downloads input files from a bucket.
type S3 struct {
	client *minio.Client
	cfg    S3Config
}

// NewS3 creates the bucket client.
func NewS3(cfg S3Config) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "bioconv-cache")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3{client: client, cfg: cfg}, nil
}

// List downloads the matching objects into the cache directory and returns
// them sorted by key. Patterns match the key with the prefix removed.
func (s *S3) List(ctx context.Context) ([]File, error) {
	prefix := s.cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var rel []string
	for obj := range s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.cfg.Bucket, prefix, obj.Err)
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		rel = append(rel, strings.TrimPrefix(obj.Key, prefix))
	}

	matched, err := MatchKeys(rel, s.cfg.Includes, s.cfg.Excludes)
	if err != nil {
		return nil, err
	}

	files := make([]File, len(matched))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, name := range matched {
		key := prefix + name
		local := filepath.Join(s.cfg.CacheDir, s.cfg.Bucket, filepath.FromSlash(key))
		files[i] = File{Path: key, Local: local}
		g.Go(func() error {
			logging.SourceDebug("Downloading s3://%s/%s", s.cfg.Bucket, key)
			if err := s.client.FGetObject(gctx, s.cfg.Bucket, key, local, minio.GetObjectOptions{}); err != nil {
				return fmt.Errorf("download s3://%s/%s: %w", s.cfg.Bucket, key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.Source("Fetched %d input files from s3://%s/%s", len(files), s.cfg.Bucket, prefix)
	return files, nil
}
