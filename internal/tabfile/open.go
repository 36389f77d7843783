package tabfile

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// Open opens path for reading, decompressing it when the name ends in .gz.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !IsGzip(path) {
		return f, nil
	}
	return NewGzipReader(f)
}

// IsGzip reports whether a file name denotes gzip content.
func IsGzip(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".gz")
}

// NewGzipReader decompresses rc. Closing the result closes rc as well.
func NewGzipReader(rc io.ReadCloser) (io.ReadCloser, error) {
	zr, err := pgzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	return &gzipReadCloser{Reader: zr, under: rc}, nil
}

type gzipReadCloser struct {
	*pgzip.Reader
	under io.Closer
}

func (g *gzipReadCloser) Close() error {
	zerr := g.Reader.Close()
	if err := g.under.Close(); err != nil {
		return err
	}
	return zerr
}
