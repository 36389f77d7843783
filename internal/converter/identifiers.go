package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"bioconv/internal/item"
	"bioconv/internal/logging"
	"bioconv/internal/metrics"
	"bioconv/internal/tabfile"
)

// IdentifiersName is the registry name of the VectorBase identifiers converter.
const IdentifiersName = "anopheles-identifiers"

// Header defaults for the identifiers converter.
const (
	DefaultDataSource = "VectorBase"
	DefaultDataSet    = "Anopheles genes"
	DefaultTaxonID    = "180454"
)

const synonymType = "identifier"

func init() {
	MustRegister(IdentifiersName, func(ctx context.Context, opts Options) (Converter, error) {
		return NewIdentifiersConverter(ctx, opts)
	})
}

// fileClasses maps a file name fragment to the feature class of its rows.
// Checked in order; the first match wins.
var fileClasses = []struct {
	fragment string
	class    string
}{
	{"Genes", "Gene"},
	{"Transcripts", "Transcript"},
	{"Translations", "Translation"},
}

// ClassForFile returns the feature class for a VectorBase identifiers file.
// The whole path is searched, so a directory named after the class works too.
func ClassForFile(path string) (string, error) {
	for _, fc := range fileClasses {
		if strings.Contains(path, fc.fragment) {
			return fc.class, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFileClass, path)
}

// IdentifiersConverter loads VectorBase identifier tables. Each row is
//
//	identifier <TAB> organismDbId[ extraId ...]
//
// and becomes one feature plus an "identifier" synonym per id.
type IdentifiersConverter struct {
	*FileConverter

	encoding string

	dataSource *item.Item
	dataSet    *item.Item
	organism   *item.Item

	// organismDbIds already assigned to a feature, across all files.
	seen map[string]struct{}
}

// NewIdentifiersConverter stores the DataSource, DataSet and Organism
// header items and returns a converter ready for Process.
func NewIdentifiersConverter(ctx context.Context, opts Options) (*IdentifiersConverter, error) {
	base, err := NewFileConverter(opts)
	if err != nil {
		return nil, err
	}
	if opts.Encoding != "" {
		if _, err := tabfile.LookupEncoding(opts.Encoding); err != nil {
			return nil, err
		}
	}

	c := &IdentifiersConverter{
		FileConverter: base,
		encoding:      opts.Encoding,
		seen:          make(map[string]struct{}),
	}

	c.dataSource = c.CreateItem("DataSource")
	c.dataSource.SetAttribute("name", orDefault(opts.DataSource, DefaultDataSource))
	if err := c.Store(ctx, c.dataSource); err != nil {
		return nil, err
	}

	c.dataSet = c.CreateItem("DataSet")
	c.dataSet.SetAttribute("title", orDefault(opts.DataSet, DefaultDataSet))
	c.dataSet.SetReference("dataSource", c.dataSource)
	if err := c.Store(ctx, c.dataSet); err != nil {
		return nil, err
	}

	c.organism = c.CreateItem("Organism")
	c.organism.SetAttribute("taxonId", orDefault(opts.TaxonID, DefaultTaxonID))
	if err := c.Store(ctx, c.organism); err != nil {
		return nil, err
	}

	return c, nil
}

// Process reads every row of the current file.
func (c *IdentifiersConverter) Process(ctx context.Context, r io.Reader) error {
	className, err := ClassForFile(c.CurrentFile())
	if err != nil {
		return err
	}

	var readerOpts []tabfile.Option
	if c.encoding != "" {
		readerOpts = append(readerOpts, tabfile.WithEncoding(c.encoding))
	}
	tr, err := tabfile.NewReader(r, readerOpts...)
	if err != nil {
		return err
	}

	var features, skipped int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch {
		case len(fields) <= 1:
			c.skipLine(metrics.SkipShort)
			skipped++
			continue
		case strings.HasPrefix(fields[0], "#"):
			c.skipLine(metrics.SkipComment)
			skipped++
			continue
		}

		if err := c.processRow(ctx, className, fields); err != nil {
			return fmt.Errorf("line %d: %w", tr.Line(), err)
		}
		features++
	}

	logging.Convert("%s: %d %s features, %d lines skipped", c.CurrentFile(), features, className, skipped)
	return nil
}

func (c *IdentifiersConverter) processRow(ctx context.Context, className string, fields []string) error {
	identifier := fields[0]
	ids := strings.Split(fields[1], " ")
	organismDbID, extra := ids[0], ids[1:]

	feature := c.CreateItem(className)
	var synonyms []*item.Item

	if organismDbID != "" {
		if _, dup := c.seen[organismDbID]; !dup {
			feature.SetAttribute("organismDbId", organismDbID)
			synonyms = append(synonyms, c.newSynonym(feature, organismDbID))
			c.seen[organismDbID] = struct{}{}
		} else {
			logging.ConvertDebug("organismDbId %s already seen, not set on %s", organismDbID, feature.Identifier)
		}
	}
	if identifier != "" {
		feature.SetAttribute("identifier", identifier)
		synonyms = append(synonyms, c.newSynonym(feature, identifier))
	}
	for _, id := range extra {
		if id == "" {
			continue
		}
		synonyms = append(synonyms, c.newSynonym(feature, id))
	}

	feature.SetReference("organism", c.organism)
	feature.SetCollection("evidence", []string{c.dataSet.Identifier})

	if err := c.Store(ctx, feature); err != nil {
		return err
	}
	if len(synonyms) == 0 {
		return nil
	}
	return c.Store(ctx, synonyms...)
}

func (c *IdentifiersConverter) newSynonym(subject *item.Item, value string) *item.Item {
	syn := c.CreateItem("Synonym")
	syn.SetAttribute("type", synonymType)
	syn.SetAttribute("value", value)
	syn.SetReference("source", c.dataSource)
	syn.SetReference("subject", subject)
	return syn
}

// SeenCount reports how many distinct organismDbIds have been assigned.
func (c *IdentifiersConverter) SeenCount() int {
	return len(c.seen)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
