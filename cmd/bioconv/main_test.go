package main

import (
	"bytes"
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bioconv/internal/config"
	"bioconv/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, dir, name, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
}

// writeConfig saves a config pointing the items database into dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	c := config.DefaultConfig()
	c.Store.DSN = filepath.Join(dir, "items.db")
	c.Logging.Level = "error"
	path := filepath.Join(dir, "bioconv.yaml")
	require.NoError(t, c.Save(path))
	return path
}

func resetFlags() {
	convertName = "anopheles-identifiers"
	convertDir, convertXML, convertModel, convertOSName, convertMetrics = "", "", "", "", ""
	convertInclude, convertExclude = nil, nil
	convertS3, convertDryRun, convertPost = false, false, false
	convertClean = true
	statsOSName = ""
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "BIOCONV_DB_DRIVER", "BIOCONV_DB_DSN", "BIOCONV_LOG_LEVEL", "BIOCONV_METRICS_TEXTFILE"} {
		t.Setenv(k, "")
	}
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConvertDryRunWithXML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0755))
	writeInput(t, in, "Genes.txt", "# header\nAGAP000001\tENSANGG00000000001 ENSANGG00000000009\n")
	xmlPath := filepath.Join(dir, "out", "items.xml")

	out, err := execute(t, "--config", cfgPath, "convert", "--dir", in, "--dry-run", "--xml", xmlPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Converted 1 files")
	assert.Contains(t, out, "Synonym")

	_, err = os.Stat(filepath.Join(dir, "items.db"))
	assert.True(t, os.IsNotExist(err), "dry run must not create the items database")

	data, err := os.ReadFile(xmlPath)
	require.NoError(t, err)
	var doc struct {
		Items []struct {
			Class string `xml:"class,attr"`
		} `xml:"item"`
	}
	require.NoError(t, xml.Unmarshal(data, &doc))
	// DataSource, DataSet, Organism, Gene, three synonyms
	require.Len(t, doc.Items, 7)
	assert.True(t, strings.HasSuffix(doc.Items[3].Class, "#Gene"))
}

func TestConvertThenStats(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	writeInput(t, dir, "Transcripts.txt", "AGAP000001-RA\tENSANGT00000000001\n")
	metricsPath := filepath.Join(dir, "metrics", "bioconv.prom")

	_, err := execute(t, "--config", cfgPath, "convert", "--dir", dir, "--include", "*.txt", "--metrics-file", metricsPath)
	require.NoError(t, err)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "bioconv_files_processed_total 1")

	out, err := execute(t, "--config", cfgPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Transcript")
	assert.Contains(t, out, "total")

	// post-processing is a no-op on SQLite
	_, err = execute(t, "--config", cfgPath, "postprocess")
	require.NoError(t, err)
}

func TestConvertUnknownFileClass(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	writeInput(t, dir, "Exons.txt", "E1\tENSANGE1\n")

	_, err := execute(t, "--config", cfgPath, "convert", "--dir", dir, "--include", "*.txt", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not determine class from filename")
}

func TestConvertUnknownConverter(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	_, err := execute(t, "--config", cfgPath, "convert", "--dir", dir, "--dry-run", "--converter", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown converter")
}

func TestConvertersList(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "--config", writeConfig(t, dir), "converters")
	require.NoError(t, err)
	assert.Contains(t, out, "anopheles-identifiers\tVectorBase / Anopheles genes (taxon 180454, model genomic)")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", " ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}

// openItems reopens the items database a test config points at.
func openItems(t *testing.T, dir string) *store.SQLStore {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{Driver: "sqlite3", DSN: filepath.Join(dir, "items.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func runStatuses(t *testing.T, s *store.SQLStore) []string {
	t.Helper()
	rows, err := s.DB().Query(`SELECT status FROM load_run WHERE finished_at IS NOT NULL ORDER BY started_at, rowid`)
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var status string
		require.NoError(t, rows.Scan(&status))
		out = append(out, status)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestConvertTwiceIntoSameDatabase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	writeInput(t, dir, "Genes.txt", "AGAP000001\tENSANGG00000000001\n")

	for i := 0; i < 2; i++ {
		_, err := execute(t, "--config", cfgPath, "convert", "--dir", dir, "--include", "*.txt")
		require.NoError(t, err, "run %d", i+1)
	}

	s := openItems(t, dir)
	counts, err := s.CountByClass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []store.ClassCount{
		{ClassName: "DataSet", Count: 1},
		{ClassName: "DataSource", Count: 1},
		{ClassName: "Gene", Count: 1},
		{ClassName: "Organism", Count: 1},
		{ClassName: "Synonym", Count: 2},
	}, counts, "the second load replaces the first")
	assert.Equal(t, []string{store.RunComplete, store.RunComplete}, runStatuses(t, s))
}

func TestConvertWithoutCleanRejectsReload(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	writeInput(t, dir, "Genes.txt", "AGAP000001\tENSANGG00000000001\n")

	_, err := execute(t, "--config", cfgPath, "convert", "--dir", dir, "--include", "*.txt")
	require.NoError(t, err)
	_, err = execute(t, "--config", cfgPath, "convert", "--dir", dir, "--include", "*.txt", "--clean=false")
	require.Error(t, err)

	s := openItems(t, dir)
	assert.Equal(t, []string{store.RunComplete, store.RunFailed}, runStatuses(t, s))
}

func TestConvertFailureCommitsNothing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	writeInput(t, dir, "Genes.txt", "AGAP000001\tENSANGG00000000001\n")
	writeInput(t, dir, "Notes.txt", "AGAP000002\tENSANGG00000000002\n")

	_, err := execute(t, "--config", cfgPath, "convert", "--dir", dir, "--include", "*.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not determine class from filename")

	s := openItems(t, dir)
	counts, err := s.CountByClass(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts, "Genes.txt items were only buffered when Notes.txt failed")
	assert.Equal(t, []string{store.RunFailed}, runStatuses(t, s))
}

func TestPostProcessModel(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.PostProcess.Model = "genomic"

	assert.Equal(t, "testmodel", postProcessModel("testmodel"))
	assert.Equal(t, "genomic", postProcessModel("/etc/bioconv/custom_model.yaml"))
	assert.Equal(t, "genomic", postProcessModel(""))
}

func TestBootLogging(t *testing.T) {
	dir := t.TempDir()
	c := config.DefaultConfig()
	c.Store.DSN = filepath.Join(dir, "items.db")
	c.Logging.Level = "debug"
	c.Logging.File = filepath.Join(dir, "logs", "bioconv.log")
	cfgPath := filepath.Join(dir, "bioconv.yaml")
	require.NoError(t, c.Save(cfgPath))

	_, err := execute(t, "--config", cfgPath, "converters")
	require.NoError(t, err)

	data, err := os.ReadFile(c.Logging.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "store driver sqlite3")
	assert.Contains(t, string(data), "boot")
	assert.Contains(t, string(data), "Source local")
}
