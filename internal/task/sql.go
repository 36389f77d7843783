// Package task holds build steps that run after items are loaded.
package task

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"bioconv/internal/logging"
	"bioconv/internal/metrics"
	"bioconv/internal/store"
	"bioconv/resources"
)

// ErrMissingResource is returned when a model has no post-processing SQL file.
var ErrMissingResource = errors.New("missing post-processing resource")

const (
	refidStatistics = "ALTER TABLE reference ALTER refid SET STATISTICS 1000"
	analyse         = "ANALYSE"
)

// Target is an items database the maintenance SQL can run against.
type Target interface {
	Dialect() store.Dialect
	Session(ctx context.Context) (store.Session, error)
}

// PostProcessor runs the "<model>_src_items.sql" maintenance script.
type PostProcessor struct {
	Model  string
	OSName string

	// Resources holds the SQL files; nil means the embedded resources.
	Resources fs.FS
	Metrics   *metrics.Metrics
}

// ResourceName is the SQL file looked up for a model.
func ResourceName(model string) string {
	return model + "_src_items.sql"
}

// DoSQL executes the maintenance statements over one dedicated session.
// Targets that are not Postgres are left alone.
func (p *PostProcessor) DoSQL(ctx context.Context, target Target) (err error) {
	if p.Model == "" {
		return fmt.Errorf("post-processing requires a model name")
	}
	if d := target.Dialect(); d != store.DialectPostgres {
		logging.Task("Skipping post-processing for %s: %s store is not Postgres", p.osName(), d)
		return nil
	}

	timer := logging.StartTimer(logging.CategoryTask, "post-process "+p.osName())
	defer timer.StopWithInfo()

	sess, err := target.Session(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection for %s: %w", p.osName(), err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to release connection: %w", cerr)
		}
	}()

	if err := p.exec(ctx, sess, refidStatistics); err != nil {
		return err
	}

	statements, err := p.statements()
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if err := p.exec(ctx, sess, stmt); err != nil {
			return err
		}
	}

	return p.exec(ctx, sess, analyse)
}

func (p *PostProcessor) statements() ([]string, error) {
	fsys := p.Resources
	if fsys == nil {
		fsys = resources.FS
	}
	name := ResourceName(p.Model)
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: model '%s' does not have an associated src items post-processing sql file (resources/%s)",
			ErrMissingResource, p.Model, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return ParseStatements(data), nil
}

// ParseStatements returns one statement per line, skipping blank and "--" lines.
func ParseStatements(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func (p *PostProcessor) exec(ctx context.Context, sess store.Session, stmt string) error {
	logging.Task("Executing sql: %s", stmt)
	if _, err := sess.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute %q: %w", stmt, err)
	}
	if p.Metrics != nil {
		p.Metrics.SQLStatements.Inc()
	}
	return nil
}

func (p *PostProcessor) osName() string {
	if p.OSName == "" {
		return "default"
	}
	return p.OSName
}
