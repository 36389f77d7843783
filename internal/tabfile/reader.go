// Package tabfile reads tab-delimited flat files one record at a time.
package tabfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// maxLineSize bounds a single record; identifier tables have short lines.
const maxLineSize = 4 * 1024 * 1024

// Reader splits each input line on tabs.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

type options struct {
	enc encoding.Encoding
}

// Option configures a Reader.
type Option func(*options) error

// WithEncoding decodes the input from the named character set.
// Supported: utf-8 (default), latin1/iso-8859-1, windows-1252.
func WithEncoding(name string) Option {
	return func(o *options) error {
		enc, err := LookupEncoding(name)
		if err != nil {
			return err
		}
		o.enc = enc
		return nil
	}
}

// LookupEncoding maps a configuration name to a text encoding.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
}

// NewReader wraps r.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	o := options{enc: unicode.UTF8}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.enc != unicode.UTF8 {
		r = o.enc.NewDecoder().Reader(r)
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: sc}, nil
}

// Next returns the fields of the next line, or io.EOF when the input is exhausted.
// Empty and trailing fields are kept, so an empty line yields a single empty field.
func (r *Reader) Next() ([]string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line+1, err)
		}
		return nil, io.EOF
	}
	r.line++
	text := strings.TrimSuffix(r.scanner.Text(), "\r")
	return strings.Split(text, "\t"), nil
}

// Line is the 1-based number of the line last returned by Next.
func (r *Reader) Line() int {
	return r.line
}
