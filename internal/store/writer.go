// Package store persists items produced by converters.
//
// Writers:
//   - SQLStore: the source items database (item, attribute, reference,
//     referencelist tables) on SQLite or Postgres
//   - MemoryStore: in-memory, for dry runs and tests
//   - XMLWriter: an <items> XML document
//   - MultiWriter: fan-out to several writers
package store

import (
	"context"
	"database/sql"
	"errors"

	"bioconv/internal/item"
)

// ErrNotFound is returned when an item identifier is not in the store.
var ErrNotFound = errors.New("item not found")

// ItemWriter receives items in the order converters create them.
type ItemWriter interface {
	Store(ctx context.Context, it *item.Item) error
	StoreAll(ctx context.Context, items []*item.Item) error
	Close() error
}

// Session is a dedicated database connection. *sql.Conn satisfies it.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// MultiWriter stores every item in each of its writers.
type MultiWriter struct {
	writers []ItemWriter
}

// NewMultiWriter combines writers; nil entries are ignored.
func NewMultiWriter(writers ...ItemWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

func (m *MultiWriter) Store(ctx context.Context, it *item.Item) error {
	for _, w := range m.writers {
		if err := w.Store(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) StoreAll(ctx context.Context, items []*item.Item) error {
	for _, w := range m.writers {
		if err := w.StoreAll(ctx, items); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
