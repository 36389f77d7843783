package store

import (
	"bufio"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sync"

	"bioconv/internal/item"
	"bioconv/internal/model"
)

type xmlItem struct {
	XMLName     xml.Name        `xml:"item"`
	ID          string          `xml:"id,attr"`
	Class       string          `xml:"class,attr"`
	Implements  string          `xml:"implements,attr"`
	Attributes  []xmlAttribute  `xml:"attribute"`
	References  []xmlReference  `xml:"reference"`
	Collections []xmlCollection `xml:"collection"`
}

type xmlAttribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlReference struct {
	Name  string `xml:"name,attr,omitempty"`
	RefID string `xml:"ref_id,attr"`
}

type xmlCollection struct {
	Name       string         `xml:"name,attr"`
	References []xmlReference `xml:"reference"`
}

// XMLWriter streams items as an <items> document.
type XMLWriter struct {
	mu      sync.Mutex
	out     io.Writer
	buf     *bufio.Writer
	enc     *xml.Encoder
	model   *model.Model
	started bool
	closed  bool
}

// NewXMLWriter writes to w, qualifying class names with m's namespace.
// If w is an io.Closer it is closed by Close.
func NewXMLWriter(w io.Writer, m *model.Model) *XMLWriter {
	buf := bufio.NewWriter(w)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	return &XMLWriter{out: w, buf: buf, enc: enc, model: m}
}

func (x *XMLWriter) Store(ctx context.Context, it *item.Item) error {
	return x.StoreAll(ctx, []*item.Item{it})
}

func (x *XMLWriter) StoreAll(_ context.Context, items []*item.Item) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return fmt.Errorf("xml writer is closed")
	}
	if err := x.startLocked(); err != nil {
		return err
	}
	for _, it := range items {
		if err := x.enc.Encode(x.toXML(it)); err != nil {
			return fmt.Errorf("failed to encode item %s: %w", it.Identifier, err)
		}
	}
	return nil
}

func (x *XMLWriter) startLocked() error {
	if x.started {
		return nil
	}
	x.started = true
	_, err := x.buf.WriteString("<items>")
	return err
}

func (x *XMLWriter) toXML(it *item.Item) xmlItem {
	out := xmlItem{
		ID:         it.Identifier,
		Class:      x.model.QualifiedName(it.ClassName),
		Implements: it.Implementations,
	}
	for _, a := range it.Attributes {
		out.Attributes = append(out.Attributes, xmlAttribute{Name: a.Name, Value: a.Value})
	}
	for _, r := range it.References {
		out.References = append(out.References, xmlReference{Name: r.Name, RefID: r.RefID})
	}
	for _, c := range it.Collections {
		col := xmlCollection{Name: c.Name}
		for _, id := range c.RefIDs {
			col.References = append(col.References, xmlReference{RefID: id})
		}
		out.Collections = append(out.Collections, col)
	}
	return out
}

// Close terminates the document and flushes it.
func (x *XMLWriter) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true

	if err := x.startLocked(); err != nil {
		return err
	}
	if err := x.enc.Flush(); err != nil {
		return err
	}
	if _, err := x.buf.WriteString("\n</items>\n"); err != nil {
		return err
	}
	if err := x.buf.Flush(); err != nil {
		return err
	}
	if c, ok := x.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
