package kbindex

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/state"
	"curator/internal/textutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	author        TEXT NOT NULL DEFAULT '',
	category_path TEXT NOT NULL,
	artifact_path TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	source_url    TEXT NOT NULL DEFAULT '',
	indexed_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_category ON entries(category_path);
`

// Index is the SQLite search index over generated entries.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

// Entry is one search result row.
type Entry struct {
	ID           string
	Title        string
	Author       string
	CategoryPath string
	ArtifactPath string
	SourceURL    string
	IndexedAt    time.Time
}

// Open opens (or creates) the index database at path.
func Open(path string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "index", "open", "open index database", err)
	}
	// The index is only touched from the db-gated phase, but a second handle
	// from the search command may overlap with a run.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, services.Wrap(services.ErrConfiguration, "index", "open", "apply schema", err)
	}
	return &Index{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// IndexEntry upserts the item's row. It is the phase function for the index
// phase.
func (ix *Index) IndexEntry(ctx context.Context, item *state.ItemState) error {
	if item.ArtifactPath == "" || item.CategoryPath == "" {
		return services.Wrap(services.ErrValidation, "index", "upsert", "item has no generated entry", nil)
	}
	var author, content string
	if item.Payload != nil {
		author = item.Payload.Author
		content = textutil.Truncate(item.Payload.Text, 16384)
	}
	title := textutil.FirstNonEmpty(item.Title, item.ID)

	_, err := ix.db.ExecContext(ctx, `
INSERT INTO entries (id, title, author, category_path, artifact_path, content, source_url, indexed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	author = excluded.author,
	category_path = excluded.category_path,
	artifact_path = excluded.artifact_path,
	content = excluded.content,
	source_url = excluded.source_url,
	indexed_at = excluded.indexed_at`,
		item.ID, title, author, item.CategoryPath, item.ArtifactPath, content,
		item.SourceURL, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrTransient, "index", "upsert", "write entry row", err)
	}
	return nil
}

// Search returns entries whose title, content or category match the query,
// newest first.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "index", "search", "empty query", nil)
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := ix.db.QueryContext(ctx, `
SELECT id, title, author, category_path, artifact_path, source_url, indexed_at
FROM entries
WHERE title LIKE ? ESCAPE '\'
   OR content LIKE ? ESCAPE '\'
   OR category_path LIKE ? ESCAPE '\'
ORDER BY indexed_at DESC
LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "index", "search", "query entries", err)
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var entry Entry
		var indexedAt string
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Author, &entry.CategoryPath,
			&entry.ArtifactPath, &entry.SourceURL, &indexedAt); err != nil {
			return nil, services.Wrap(services.ErrTransient, "index", "search", "scan row", err)
		}
		entry.IndexedAt, _ = time.Parse(time.RFC3339, indexedAt)
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "index", "search", "iterate rows", err)
	}
	return results, nil
}

// Count returns the number of indexed entries.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return 0, services.Wrap(services.ErrTransient, "index", "count", "count entries", err)
	}
	return count, nil
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
