// Package converter turns flat input files into items.
//
// A FileConverter holds the plumbing every converter shares: the item
// factory, the model the items are checked against and the writer they are
// stored in. Concrete converters embed it and implement Process.
package converter

import (
	"context"
	"fmt"
	"io"

	"bioconv/internal/item"
	"bioconv/internal/logging"
	"bioconv/internal/metrics"
	"bioconv/internal/model"
	"bioconv/internal/store"
)

// Converter reads one input file at a time.
type Converter interface {
	// SetCurrentFile records the path of the file about to be processed.
	SetCurrentFile(path string)
	// Process consumes the whole reader.
	Process(ctx context.Context, r io.Reader) error
	// Close is called once after the last file.
	Close(ctx context.Context) error
}

// Options are shared by every converter constructor.
type Options struct {
	Writer  store.ItemWriter
	Model   *model.Model
	Metrics *metrics.Metrics // optional

	// Encoding of the input files; empty means UTF-8.
	Encoding string

	// Header values, converter specific. Blank fields take the converter's defaults.
	DataSource string
	DataSet    string
	TaxonID    string
}

// FileConverter is the base for converters.
type FileConverter struct {
	writer  store.ItemWriter
	model   *model.Model
	metrics *metrics.Metrics
	factory *item.Factory

	currentFile string
}

// NewFileConverter validates opts and returns the shared base.
func NewFileConverter(opts Options) (*FileConverter, error) {
	if opts.Writer == nil {
		return nil, fmt.Errorf("converter requires an item writer")
	}
	m := opts.Model
	if m == nil {
		var err error
		if m, err = model.Default(); err != nil {
			return nil, err
		}
	}
	return &FileConverter{
		writer:  opts.Writer,
		model:   m,
		metrics: opts.Metrics,
		factory: item.NewFactory(),
	}, nil
}

// CreateItem makes a new item of className with a fresh identifier.
func (c *FileConverter) CreateItem(className string) *item.Item {
	return c.factory.Make(className)
}

// Store checks items against the model and hands them to the writer in order.
func (c *FileConverter) Store(ctx context.Context, items ...*item.Item) error {
	for _, it := range items {
		if err := c.model.Validate(it); err != nil {
			return err
		}
	}
	if err := c.writer.StoreAll(ctx, items); err != nil {
		return fmt.Errorf("failed to store items: %w", err)
	}
	if c.metrics != nil {
		for _, it := range items {
			c.metrics.ItemsStored.WithLabelValues(it.ClassName).Inc()
		}
	}
	return nil
}

// SetCurrentFile records the file being processed.
func (c *FileConverter) SetCurrentFile(path string) {
	c.currentFile = path
}

// CurrentFile returns the file being processed.
func (c *FileConverter) CurrentFile() string {
	return c.currentFile
}

// Model returns the model items are validated against.
func (c *FileConverter) Model() *model.Model {
	return c.model
}

func (c *FileConverter) skipLine(reason string) {
	if c.metrics != nil {
		c.metrics.LinesSkipped.WithLabelValues(reason).Inc()
	}
}

// Close is a no-op for the base; the writer belongs to the caller.
func (c *FileConverter) Close(context.Context) error {
	return nil
}

// File is an input the driver can open.
type File interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ConvertFiles runs conv over files in order and stops at the first error.
// Close is not called; the caller decides when the converter is done.
func ConvertFiles(ctx context.Context, conv Converter, files []File, m *metrics.Metrics) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := convertFile(ctx, conv, f); err != nil {
			return err
		}
		if m != nil {
			m.FilesProcessed.Inc()
		}
	}
	return nil
}

func convertFile(ctx context.Context, conv Converter, f File) error {
	timer := logging.StartTimer(logging.CategoryConvert, "convert "+f.Name())
	defer timer.Stop()

	conv.SetCurrentFile(f.Name())
	rc, err := f.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name(), err)
	}
	defer rc.Close()

	logging.Convert("Processing %s", f.Name())
	if err := conv.Process(ctx, rc); err != nil {
		return fmt.Errorf("processing %s: %w", f.Name(), err)
	}
	return nil
}
