// Package library persists extracted palettes and user preferences in SQLite.
package library

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Register the "sqlite" driver

	"github.com/jmylchreest/tincture/internal/colour"
)

// ErrPaletteNotFound is returned when no saved palette matches a lookup.
var ErrPaletteNotFound = errors.New("palette not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed palette library and key-value settings store.
type Store struct {
	db *sqlx.DB

	mu          sync.Mutex
	nextSubID   int
	subscribers map[string]map[int]chan Change
}

// Open opens (creating if needed) the library at path and applies migrations.
// Use ":memory:" for a private in-memory store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { // #nosec G301 - user data directory
			return nil, fmt.Errorf("create library directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:          db,
		subscribers: make(map[string]map[int]chan Change),
	}, nil
}

// Close closes all subscriber channels and the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for key, subs := range s.subscribers {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(s.subscribers, key)
	}
	s.mu.Unlock()

	return s.db.Close()
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(entries)

	for _, name := range entries {
		var count int
		if err := db.GetContext(ctx, &count, "SELECT COUNT(1) FROM schema_migrations WHERE name = ?", name); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		body, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("start migration tx %s: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations(name, applied_at) VALUES (?, ?)",
			name, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// SavedPalette is a palette stored in the library.
type SavedPalette struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name,omitempty"`
	Source      string        `json:"source,omitempty"`
	ContentHash string        `json:"content_hash"`
	Method      colour.Method `json:"method"`
	Colors      []string      `json:"colors"`
	CreatedAt   time.Time     `json:"created_at"`
}

type paletteRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Source      string `db:"source"`
	ContentHash string `db:"content_hash"`
	Method      string `db:"method"`
	Colours     int    `db:"colours"`
	Hexes       string `db:"hexes"`
	CreatedAt   int64  `db:"created_at"`
}

func (r paletteRow) palette() SavedPalette {
	var colors []string
	if r.Hexes != "" {
		colors = strings.Split(r.Hexes, ",")
	}
	return SavedPalette{
		ID:          r.ID,
		Name:        r.Name,
		Source:      r.Source,
		ContentHash: r.ContentHash,
		Method:      colour.Method(r.Method),
		Colors:      colors,
		CreatedAt:   time.Unix(r.CreatedAt, 0).UTC(),
	}
}

const paletteColumns = "id, name, source, content_hash, method, colours, hexes, created_at"

const upsertPalette = `
INSERT INTO palettes (name, source, content_hash, method, colours, hexes, created_at)
VALUES (:name, :source, :content_hash, :method, :colours, :hexes, :created_at)
ON CONFLICT (content_hash, method, colours) DO UPDATE SET
	name = excluded.name,
	source = excluded.source,
	hexes = excluded.hexes,
	created_at = excluded.created_at
RETURNING id`

// SavePalette stores p, replacing any entry with the same content hash, method
// and colour count. It returns the entry ID.
func (s *Store) SavePalette(ctx context.Context, p SavedPalette) (int64, error) {
	if p.ContentHash == "" {
		return 0, fmt.Errorf("content hash is required")
	}
	if len(p.Colors) == 0 {
		return 0, fmt.Errorf("palette has no colours")
	}
	for _, h := range p.Colors {
		if _, err := colour.ParseHex(h); err != nil {
			return 0, err
		}
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := paletteRow{
		Name:        p.Name,
		Source:      p.Source,
		ContentHash: p.ContentHash,
		Method:      string(p.Method),
		Colours:     len(p.Colors),
		Hexes:       strings.ToUpper(strings.Join(p.Colors, ",")),
		CreatedAt:   createdAt.Unix(),
	}

	query, args, err := sqlx.Named(upsertPalette, row)
	if err != nil {
		return 0, fmt.Errorf("bind palette: %w", err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("save palette: %w", err)
	}
	return id, nil
}

// GetPalette returns the palette with the given ID.
func (s *Store) GetPalette(ctx context.Context, id int64) (SavedPalette, error) {
	var row paletteRow
	err := s.db.GetContext(ctx, &row, "SELECT "+paletteColumns+" FROM palettes WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedPalette{}, fmt.Errorf("%w: id %d", ErrPaletteNotFound, id)
	}
	if err != nil {
		return SavedPalette{}, fmt.Errorf("get palette %d: %w", id, err)
	}
	return row.palette(), nil
}

// FindByContent returns the newest palette extracted from content with the given hash.
// An empty method matches any method.
func (s *Store) FindByContent(ctx context.Context, contentHash string, method colour.Method) (SavedPalette, error) {
	query := "SELECT " + paletteColumns + " FROM palettes WHERE content_hash = ?"
	args := []any{contentHash}
	if method != "" {
		query += " AND method = ?"
		args = append(args, string(method))
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT 1"

	var row paletteRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedPalette{}, fmt.Errorf("%w: content %s", ErrPaletteNotFound, contentHash)
	}
	if err != nil {
		return SavedPalette{}, fmt.Errorf("find palette: %w", err)
	}
	return row.palette(), nil
}

// ListOptions filters ListPalettes.
type ListOptions struct {
	// Method restricts results to one extraction method.
	Method colour.Method

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// ListPalettes returns saved palettes, newest first.
func (s *Store) ListPalettes(ctx context.Context, opts ListOptions) ([]SavedPalette, error) {
	query := "SELECT " + paletteColumns + " FROM palettes"
	var args []any
	if opts.Method != "" {
		query += " WHERE method = ?"
		args = append(args, string(opts.Method))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []paletteRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list palettes: %w", err)
	}

	palettes := make([]SavedPalette, len(rows))
	for i, r := range rows {
		palettes[i] = r.palette()
	}
	return palettes, nil
}

// DeletePalette removes the palette with the given ID.
func (s *Store) DeletePalette(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM palettes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete palette %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete palette %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrPaletteNotFound, id)
	}
	return nil
}
