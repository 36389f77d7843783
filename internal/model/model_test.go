package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bioconv/internal/item"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultModel(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "genomic", m.Name)
	assert.Equal(t, "http://www.flymine.org/model/genomic#Gene", m.QualifiedName("Gene"))
	for _, class := range []string{"DataSource", "DataSet", "Organism", "Gene", "Transcript", "Translation", "Synonym"} {
		cd, ok := m.Class(class)
		require.True(t, ok, "missing class %s", class)
		assert.Equal(t, class, cd.Name)
	}
}

func TestValidate(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	gene := item.New("1_1", "Gene")
	gene.SetAttribute("identifier", "AGAP000001")
	gene.SetReferenceID("organism", "2_1")
	gene.SetCollection("evidence", []string{"3_1"})
	assert.NoError(t, m.Validate(gene))

	gene.SetAttribute("colour", "blue")
	err = m.Validate(gene)
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.Contains(t, err.Error(), "Gene.colour")

	bogus := item.New("9_1", "Protein")
	assert.True(t, errors.Is(m.Validate(bogus), ErrUnknownClass))

	syn := item.New("4_1", "Synonym")
	syn.SetCollection("evidence", nil)
	assert.True(t, errors.Is(m.Validate(syn), ErrUnknownField))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("namespace: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("name: empty\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("name: [\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny_model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: tiny\nclasses:\n  Thing:\n"), 0644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Thing"}, m.ClassNames())

	assert.NoError(t, m.Validate(item.New("0_1", "Thing")))
}
