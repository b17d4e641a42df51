// Package catalog mirrors an index file into a SQLite database so tags can be
// queried with SQL. The index file stays the source of truth; a catalog is
// rebuilt from it.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/grape-pipeline/grape/internal/index"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Catalog is a SQLite mirror of one index.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog at dbPath. ":memory:" is accepted.
func Open(ctx context.Context, dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open catalog %s: %w", dbPath, err)
	}
	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		position INTEGER PRIMARY KEY,
		file TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_file ON entries(file);

	CREATE TABLE IF NOT EXISTS tags (
		entry INTEGER NOT NULL REFERENCES entries(position) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (entry, position)
	);
	CREATE INDEX IF NOT EXISTS idx_tags_key_value ON tags(key, value);
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("cannot create catalog schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Replace swaps the catalog content for entries in a single transaction.
func (c *Catalog) Replace(ctx context.Context, entries []index.Entry) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tags`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return err
	}

	insEntry, err := tx.PrepareContext(ctx, `INSERT INTO entries (position, file) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insEntry.Close()
	insTag, err := tx.PrepareContext(ctx, `INSERT INTO tags (entry, position, key, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insTag.Close()

	for i, e := range entries {
		if _, err = insEntry.ExecContext(ctx, i, e.File); err != nil {
			return fmt.Errorf("cannot insert %s: %w", e.File, err)
		}
		for j, t := range e.Metadata.All() {
			if _, err = insTag.ExecContext(ctx, i, j, t.Key, t.Value); err != nil {
				return fmt.Errorf("cannot insert tag %s of %s: %w", t.Key, e.File, err)
			}
		}
	}
	return tx.Commit()
}

// Export mirrors idx into the catalog at dbPath.
func Export(ctx context.Context, dbPath string, idx *index.Index) error {
	c, err := Open(ctx, dbPath)
	if err != nil {
		return err
	}
	if err := c.Replace(ctx, idx.Entries()); err != nil {
		c.Close()
		return err
	}
	return c.Close()
}

// Count returns the number of mirrored entries.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

// Entries rebuilds the mirrored entries in index order.
func (c *Catalog) Entries(ctx context.Context) ([]index.Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT e.position, e.file, t.key, t.value
		FROM entries e LEFT JOIN tags t ON t.entry = e.position
		ORDER BY e.position, t.position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out  []index.Entry
		tags []index.Tag
		cur  = -1
		file string
	)
	flush := func() error {
		if cur < 0 {
			return nil
		}
		m, err := index.NewMetadata(tags...)
		if err != nil {
			return err
		}
		out = append(out, index.Entry{File: file, Metadata: m})
		return nil
	}
	for rows.Next() {
		var (
			pos        int
			f          string
			key, value sql.NullString
		)
		if err := rows.Scan(&pos, &f, &key, &value); err != nil {
			return nil, err
		}
		if pos != cur {
			if err := flush(); err != nil {
				return nil, err
			}
			cur, file, tags = pos, f, nil
		}
		if key.Valid {
			tags = append(tags, index.Tag{Key: key.String, Value: value.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// FilesWithTag returns the distinct files carrying key=value, sorted.
func (c *Catalog) FilesWithTag(ctx context.Context, key, value string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT DISTINCT e.file
		FROM entries e JOIN tags t ON t.entry = e.position
		WHERE t.key = ? AND t.value = ?
		ORDER BY e.file
	`, key, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
