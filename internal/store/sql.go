package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"bioconv/internal/item"
	"bioconv/internal/logging"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// DefaultBatchSize is the number of items written per transaction.
const DefaultBatchSize = 1000

// Options configures an SQLStore.
type Options struct {
	Driver    string // sqlite3 (cgo), sqlite (pure Go) or pgx
	DSN       string
	BatchSize int
}

// SQLStore writes items into the source items database.
// Items are buffered and flushed in one transaction per batch.
type SQLStore struct {
	db        *sql.DB
	mu        sync.Mutex
	driver    string
	dialect   Dialect
	batchSize int
	pending   []*item.Item
	stored    int
	closed    bool
}

// Open connects to the database and creates the schema if needed.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if dialect == DialectSQLite && opts.DSN != ":memory:" && !strings.HasPrefix(opts.DSN, "file:") {
		dir := filepath.Dir(opts.DSN)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	logging.Store("Opening items database (driver=%s)", opts.Driver)
	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == DialectSQLite {
		// A single connection keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range sqlitePragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				logging.StoreDebug("Failed to apply %q: %v", pragma, err)
			}
		}
	}

	s := &SQLStore{
		db:        db,
		driver:    opts.Driver,
		dialect:   dialect,
		batchSize: opts.BatchSize,
	}
	if err := s.initialize(ctx); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Items database schema ready")
	return s, nil
}

func (s *SQLStore) initialize(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return s.runMigrations(ctx)
}

func (s *SQLStore) runMigrations(ctx context.Context) error {
	for _, m := range pendingMigrations {
		if s.columnExists(ctx, m.Table, m.Column) {
			continue
		}
		logging.Store("Adding column %s.%s", m.Table, m.Column)
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s.%s: %w", m.Table, m.Column, err)
		}
	}
	return nil
}

func (s *SQLStore) columnExists(ctx context.Context, table, column string) bool {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s LIMIT 0", column, table))
	if err != nil {
		return false
	}
	rows.Close()
	return true
}

// Dialect reports the SQL dialect of the underlying database.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Store buffers an item, flushing when the batch is full.
func (s *SQLStore) Store(ctx context.Context, it *item.Item) error {
	return s.StoreAll(ctx, []*item.Item{it})
}

// StoreAll buffers items in order, flushing whenever the batch is full.
func (s *SQLStore) StoreAll(ctx context.Context, items []*item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	for _, it := range items {
		s.pending = append(s.pending, it)
		if len(s.pending) >= s.batchSize {
			if err := s.flushLocked(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush writes any buffered items.
func (s *SQLStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *SQLStore) flushLocked(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	timer := logging.StartTimer(logging.CategoryStore, "flush")
	defer timer.Stop()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := make(map[string]*sql.Stmt, 4)
	for _, q := range []string{insertItemSQL, insertAttributeSQL, insertReferenceSQL, insertReferenceListSQL} {
		stmt, err := tx.PrepareContext(ctx, rebind(s.dialect, q))
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()
		stmts[q] = stmt
	}

	for _, it := range s.pending {
		if _, err := stmts[insertItemSQL].ExecContext(ctx, it.Identifier, it.ClassName, it.Implementations); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", it.Identifier, err)
		}
		for _, a := range it.Attributes {
			if _, err := stmts[insertAttributeSQL].ExecContext(ctx, it.Identifier, a.Name, a.Value); err != nil {
				return fmt.Errorf("failed to insert attribute %s.%s: %w", it.Identifier, a.Name, err)
			}
		}
		for _, r := range it.References {
			if _, err := stmts[insertReferenceSQL].ExecContext(ctx, it.Identifier, r.Name, r.RefID); err != nil {
				return fmt.Errorf("failed to insert reference %s.%s: %w", it.Identifier, r.Name, err)
			}
		}
		for _, c := range it.Collections {
			refids := strings.Join(c.RefIDs, " ")
			if _, err := stmts[insertReferenceListSQL].ExecContext(ctx, it.Identifier, c.Name, refids); err != nil {
				return fmt.Errorf("failed to insert collection %s.%s: %w", it.Identifier, c.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	logging.StoreDebug("Flushed %d items", len(s.pending))
	s.stored += len(s.pending)
	s.pending = s.pending[:0]
	return nil
}

// Clear deletes every loaded item and drops anything still buffered.
// Load run history is kept. A source items database is rebuilt for each load,
// and item identifiers restart with every converter.
func (s *SQLStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	s.pending = nil

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, table := range itemTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	s.stored = 0
	logging.Store("Cleared items database")
	return nil
}

// Discard drops buffered items without writing them.
func (s *SQLStore) Discard() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	s.pending = nil
	return n
}

// Stored reports how many items have been committed.
func (s *SQLStore) Stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored
}

// GetItem loads an item by identifier. Fields come back sorted by name.
func (s *SQLStore) GetItem(ctx context.Context, identifier string) (*item.Item, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}

	it := &item.Item{Identifier: identifier}
	row := s.db.QueryRowContext(ctx,
		rebind(s.dialect, `SELECT classname, implementations FROM item WHERE identifier = ?`), identifier)
	if err := row.Scan(&it.ClassName, &it.Implementations); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
		}
		return nil, err
	}

	if err := s.scanPairs(ctx, `SELECT name, value FROM attribute WHERE itemid = ? ORDER BY name`, identifier,
		func(name, value string) { it.SetAttribute(name, value) }); err != nil {
		return nil, err
	}
	if err := s.scanPairs(ctx, `SELECT name, refid FROM reference WHERE itemid = ? ORDER BY name`, identifier,
		func(name, refid string) { it.SetReferenceID(name, refid) }); err != nil {
		return nil, err
	}
	if err := s.scanPairs(ctx, `SELECT name, refids FROM referencelist WHERE itemid = ? ORDER BY name`, identifier,
		func(name, refids string) { it.SetCollection(name, strings.Fields(refids)) }); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *SQLStore) scanPairs(ctx context.Context, query, identifier string, fn func(a, b string)) error {
	rows, err := s.db.QueryContext(ctx, rebind(s.dialect, query), identifier)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a string
		var b sql.NullString
		if err := rows.Scan(&a, &b); err != nil {
			return err
		}
		fn(a, b.String)
	}
	return rows.Err()
}

// ClassCount is the number of stored items of one class.
type ClassCount struct {
	ClassName string
	Count     int
}

// CountByClass returns per-class item counts sorted by class name.
func (s *SQLStore) CountByClass(ctx context.Context) ([]ClassCount, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT classname, COUNT(*) FROM item GROUP BY classname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []ClassCount
	for rows.Next() {
		var c ClassCount
		if err := rows.Scan(&c.ClassName, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].ClassName < counts[j].ClassName })
	return counts, rows.Err()
}

// BeginRun records the start of a load and returns its run id.
func (s *SQLStore) BeginRun(ctx context.Context, source string) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		rebind(s.dialect, `INSERT INTO load_run (run_id, source, started_at, status) VALUES (?, ?, ?, ?)`),
		runID, source, time.Now().UTC().Format(time.RFC3339), RunRunning)
	if err != nil {
		return "", fmt.Errorf("failed to record load run: %w", err)
	}
	return runID, nil
}

// FinishRun flushes pending items and stamps the run with the stored count.
func (s *SQLStore) FinishRun(ctx context.Context, runID string) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		rebind(s.dialect, `UPDATE load_run SET finished_at = ?, items = ?, status = ? WHERE run_id = ?`),
		time.Now().UTC().Format(time.RFC3339), s.Stored(), RunComplete, runID)
	if err != nil {
		return fmt.Errorf("failed to finish load run: %w", err)
	}
	return nil
}

// FailRun drops buffered items so Close does not commit a partial batch,
// and stamps the run as failed.
func (s *SQLStore) FailRun(ctx context.Context, runID string, cause error) error {
	dropped := s.Discard()
	logging.Get(logging.CategoryStore).Warn("Load run %s failed, %d buffered items dropped: %v", runID, dropped, cause)
	_, err := s.db.ExecContext(ctx,
		rebind(s.dialect, `UPDATE load_run SET finished_at = ?, items = ?, status = ? WHERE run_id = ?`),
		time.Now().UTC().Format(time.RFC3339), s.Stored(), RunFailed, runID)
	if err != nil {
		return fmt.Errorf("failed to mark load run failed: %w", err)
	}
	return nil
}

// Session flushes pending items and checks out a dedicated connection.
// The caller must Close it to return it to the pool.
func (s *SQLStore) Session(ctx context.Context) (Session, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return conn, nil
}

// DB returns the underlying database handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close flushes buffered items and closes the database. Safe to call twice.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.flushLocked(context.Background())
	logging.Store("Closing items database (%d items stored)", s.stored)
	if err := s.db.Close(); err != nil {
		return err
	}
	return flushErr
}
