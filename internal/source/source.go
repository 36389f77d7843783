// Package source finds the input files for a conversion run, either in a
// local directory or in an S3-compatible bucket.
package source

import (
	"context"
	"fmt"
	"io"
	"sort"

	"bioconv/internal/tabfile"

	"github.com/bmatcuk/doublestar/v4"
)

// File is one input file.
type File struct {
	// Path names the file for converters; class detection looks at it.
	// For bucket objects this is the object key.
	Path string
	// Local is where the bytes are on disk. Empty means Path.
	Local string
}

// Name returns the path converters see.
func (f File) Name() string {
	return f.Path
}

// Open opens the file, decompressing .gz content.
func (f File) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	local := f.Local
	if local == "" {
		local = f.Path
	}
	return tabfile.Open(local)
}

// Lister returns input files in processing order.
type Lister interface {
	List(ctx context.Context) ([]File, error)
}

// filter applies include and exclude patterns to slash-separated names.
// No includes means everything is included.
type filter struct {
	includes []string
	excludes []string
}

func newFilter(includes, excludes []string) (filter, error) {
	for _, p := range append(append([]string(nil), includes...), excludes...) {
		if !doublestar.ValidatePattern(p) {
			return filter{}, fmt.Errorf("invalid pattern: %s", p)
		}
	}
	return filter{includes: includes, excludes: excludes}, nil
}

func (f filter) match(name string) bool {
	included := len(f.includes) == 0
	for _, p := range f.includes {
		if ok, _ := doublestar.Match(p, name); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, p := range f.excludes {
		if ok, _ := doublestar.Match(p, name); ok {
			return false
		}
	}
	return true
}

// MatchKeys filters names with the include and exclude patterns and sorts them.
func MatchKeys(names, includes, excludes []string) ([]string, error) {
	f, err := newFilter(includes, excludes)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if f.match(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}
