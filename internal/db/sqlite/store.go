package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/kailas-cloud/recall/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds the location of the local database file.
type Config struct {
	Path string
	// ReadOnly opens an existing file without creating it or running migrations.
	ReadOnly bool
}

// Store is the in-process local memory database.
type Store struct {
	db   *sql.DB
	path string
}

// Record is one row to upsert. Fields keys must be columns of the target table.
type Record struct {
	Table     string
	Fields    map[string]any
	Embedding []float32
}

// NewStore opens (and on first use creates) the local database.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	if cfg.ReadOnly {
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, &db.Error{Op: db.OpOpen, Err: err}
		}
	} else if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &db.Error{Op: db.OpOpen, Err: err}
		}
	}

	dsn, err := fileDSN(cfg.Path, cfg.ReadOnly)
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}

	s := &Store{db: conn, path: cfg.Path}
	if !cfg.ReadOnly {
		if err := s.migrate(); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return s, nil
}

// fileDSN builds a SQLite URI for path. The path is escaped so '?' and '#'
// in directory names are not read as the query or fragment.
func fileDSN(path string, readOnly bool) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // windows drive letter
	}
	mode := "rwc"
	if readOnly {
		mode = "ro"
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: "mode=" + mode}
	return u.String(), nil
}

func (s *Store) migrate() error {
	for _, t := range tables {
		if _, err := s.db.Exec(t.DDL); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("create %s: %w", t.Name, err)}
		}
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Ping checks that the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SearchKNN scans a table and scores every row against the query vector.
// Rows below the threshold are dropped; the rest come back by similarity, highest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	t, ok := lookupTable(q.IndexName)
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %q", db.ErrIndexNotFound, q.IndexName)}
	}

	cols := append([]string{"embedding"}, t.Columns...)
	//nolint:gosec // table and column names come from the fixed schema
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE embedding IS NOT NULL", strings.Join(cols, ", "), t.Name)

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var entries []db.SearchEntry
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}

		var emb []float32
		if err := json.Unmarshal([]byte(vals[0].String), &emb); err != nil {
			continue // row with a corrupt embedding cannot be scored
		}
		if len(emb) != len(q.Vector) {
			continue // embedded by a different model
		}
		sim := db.Cosine(q.Vector, emb)
		if sim < q.Threshold {
			continue
		}

		fields := make(map[string]string, len(t.Columns))
		for i, c := range t.Columns {
			if vals[i+1].Valid {
				fields[c] = vals[i+1].String
			}
		}
		entries = append(entries, db.SearchEntry{
			Key:    fields["file_path"],
			Score:  sim,
			Fields: fields,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	total := len(entries)
	if len(entries) > q.K {
		entries = entries[:q.K]
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// Upsert inserts a row or updates the existing one with the same file_path.
func (s *Store) Upsert(ctx context.Context, r Record) error {
	t, ok := lookupTable(r.Table)
	if !ok {
		return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("%w: %q", db.ErrIndexNotFound, r.Table)}
	}
	if fp, _ := r.Fields["file_path"].(string); fp == "" {
		return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("file_path is required")}
	}

	cols := make([]string, 0, len(r.Fields)+1)
	for c := range r.Fields {
		if !t.hasColumn(c) {
			return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("unknown column %q for %s", c, t.Name)}
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		args = append(args, r.Fields[c])
	}
	if r.Embedding != nil {
		raw, err := json.Marshal(r.Embedding)
		if err != nil {
			return &db.Error{Op: db.OpUpsert, Err: err}
		}
		cols = append(cols, "embedding")
		args = append(args, string(raw))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	updates := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != "file_path" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	//nolint:gosec // identifiers are validated against the fixed schema
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), placeholders)
	if len(updates) > 0 {
		stmt += " ON CONFLICT(file_path) DO UPDATE SET " + strings.Join(updates, ", ")
	} else {
		stmt += " ON CONFLICT(file_path) DO NOTHING"
	}

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}
	return nil
}

// Delete removes rows matching every equality filter and returns the count.
// An empty filter set is rejected so a bare call can never wipe a table.
func (s *Store) Delete(ctx context.Context, tableName string, filters map[string]string) (int64, error) {
	t, ok := lookupTable(tableName)
	if !ok {
		return 0, &db.Error{Op: db.OpDelete, Err: fmt.Errorf("%w: %q", db.ErrIndexNotFound, tableName)}
	}
	if len(filters) == 0 {
		return 0, &db.Error{Op: db.OpDelete, Err: db.ErrFilterRequired}
	}

	cols := make([]string, 0, len(filters))
	for c := range filters {
		if !t.hasColumn(c) {
			return 0, &db.Error{Op: db.OpDelete, Err: fmt.Errorf("unknown column %q for %s", c, t.Name)}
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		conds[i] = c + " = ?"
		args[i] = filters[c]
	}

	//nolint:gosec // identifiers are validated against the fixed schema
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", t.Name, strings.Join(conds, " AND "))
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	return n, nil
}
