package tabfile

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderSplitsOnTabs(t *testing.T) {
	input := "# header\nAGAP000001\tENSANGG1 ENSANGG2\n\nA\t\t\r\nlast"
	r, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)

	var records [][]string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		records = append(records, rec)
	}

	want := [][]string{
		{"# header"},
		{"AGAP000001", "ENSANGG1 ENSANGG2"},
		{""},
		{"A", "", ""},
		{"last"},
	}
	assert.Equal(t, want, records)
	assert.Equal(t, 5, r.Line())
}

func TestReaderNextEOF(t *testing.T) {
	r, err := NewReader(strings.NewReader(""))
	require.NoError(t, err)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, r.Line())
}

func TestReaderLatin1(t *testing.T) {
	// 0xE9 is e-acute in ISO-8859-1.
	input := []byte("caf\xe9\tx\n")
	r, err := NewReader(bytes.NewReader(input), WithEncoding("latin1"))
	require.NoError(t, err)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"café", "x"}, rec)
}

func TestUnsupportedEncoding(t *testing.T) {
	_, err := NewReader(strings.NewReader(""), WithEncoding("ebcdic"))
	assert.Error(t, err)
}

func TestOpenGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Genes.txt.gz")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("AGAP000001\tENSANGG1\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	rc, err := Open(path)
	require.NoError(t, err)
	defer rc.Close()

	r, err := NewReader(rc)
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"AGAP000001", "ENSANGG1"}, rec)
}

func TestOpenPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Transcripts.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\tb\n"), 0644))

	rc, err := Open(path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "a\tb\n", string(data))

	_, err = Open(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
