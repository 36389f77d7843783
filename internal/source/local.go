package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"bioconv/internal/logging"
)

// Local lists files under a directory.
type Local struct {
	Dir      string
	Includes []string
	Excludes []string
}

// List walks Dir and returns the matching regular files sorted by path.
func (l *Local) List(ctx context.Context) ([]File, error) {
	dir := l.Dir
	if dir == "" {
		dir = "."
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	var names []string
	err = fs.WalkDir(os.DirFS(dir), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	matched, err := MatchKeys(names, l.Includes, l.Excludes)
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(matched))
	for _, name := range matched {
		files = append(files, File{Path: filepath.Join(dir, filepath.FromSlash(name))})
	}
	logging.Source("Found %d input files in %s", len(files), dir)
	return files, nil
}
