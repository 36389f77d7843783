package store

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"testing"

	"bioconv/internal/item"
	"bioconv/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNS = "http://www.flymine.org/model/genomic#"

func genomicModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Default()
	require.NoError(t, err)
	return m
}

func TestXMLWriter(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	w := NewXMLWriter(&buf, genomicModel(t))

	ds := item.New("0_1", "DataSource")
	ds.SetAttribute("name", "VectorBase")
	require.NoError(t, w.StoreAll(ctx, []*item.Item{ds, sampleGene()}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	var doc struct {
		Items []xmlItem `xml:"item"`
	}
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Items, 2)

	assert.Equal(t, "0_1", doc.Items[0].ID)
	assert.Equal(t, testNS+"DataSource", doc.Items[0].Class)
	assert.Equal(t, []xmlAttribute{{Name: "name", Value: "VectorBase"}}, doc.Items[0].Attributes)

	gene := doc.Items[1]
	assert.Equal(t, []xmlReference{{Name: "organism", RefID: "2_1"}}, gene.References)
	require.Len(t, gene.Collections, 1)
	assert.Equal(t, "evidence", gene.Collections[0].Name)
	assert.Equal(t, []xmlReference{{RefID: "3_1"}, {RefID: "3_2"}}, gene.Collections[0].References)

	assert.Error(t, w.Store(ctx, ds))
}

func TestXMLWriterEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXMLWriter(&buf, genomicModel(t)).Close())
	assert.Equal(t, "<items>\n</items>\n", buf.String())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	f := item.NewFactory()
	gene := f.Make("Gene")
	syn := f.Make("Synonym")
	require.NoError(t, m.Store(ctx, gene))
	require.NoError(t, m.Store(ctx, syn))
	assert.Error(t, m.Store(ctx, gene), "duplicate identifiers are rejected")

	assert.Len(t, m.Items(), 2)
	assert.Equal(t, []*item.Item{syn}, m.ByClass("Synonym"))
	got, ok := m.Get(gene.Identifier)
	assert.True(t, ok)
	assert.Same(t, gene, got)
	assert.NoError(t, m.Close())
}

type failingWriter struct {
	closeErr error
}

func (f *failingWriter) Store(context.Context, *item.Item) error {
	return errors.New("store failed")
}
func (f *failingWriter) StoreAll(context.Context, []*item.Item) error {
	return errors.New("store failed")
}
func (f *failingWriter) Close() error { return f.closeErr }

func TestMultiWriter(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemoryStore(), NewMemoryStore()
	mw := NewMultiWriter(a, nil, b)

	require.NoError(t, mw.Store(ctx, item.New("0_1", "Organism")))
	require.NoError(t, mw.StoreAll(ctx, []*item.Item{item.New("1_1", "Gene")}))
	assert.Len(t, a.Items(), 2)
	assert.Len(t, b.Items(), 2)
	assert.NoError(t, mw.Close())

	closeErr := errors.New("close failed")
	bad := NewMultiWriter(NewMemoryStore(), &failingWriter{closeErr: closeErr})
	assert.Error(t, bad.Store(ctx, item.New("0_1", "Organism")))
	assert.True(t, errors.Is(bad.Close(), closeErr))
}
