package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteChunkStore persists chunk content and the parent map in SQLite.
// WAL mode allows concurrent readers while the index builder writes.
type SQLiteChunkStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ ChunkStore = (*SQLiteChunkStore)(nil)

// NewSQLiteChunkStore creates or opens a chunk store.
// If path is empty, creates an in-memory store for testing.
func NewSQLiteChunkStore(path string) (*SQLiteChunkStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteChunkStore{
		db:   db,
		path: path,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the chunks table.
func (s *SQLiteChunkStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id        TEXT PRIMARY KEY,
		texto     TEXT NOT NULL,
		contexto  TEXT NOT NULL DEFAULT '',
		secao     TEXT NOT NULL DEFAULT '',
		titulo    TEXT NOT NULL DEFAULT '',
		pagina    INTEGER NOT NULL DEFAULT 0,
		fonte     TEXT NOT NULL DEFAULT '',
		ano       INTEGER NOT NULL DEFAULT 0,
		tipo      TEXT NOT NULL DEFAULT '',
		parent_id TEXT NOT NULL DEFAULT '',
		is_parent INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_parent ON chunks(parent_id)
		WHERE parent_id != '';

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// PutChunks upserts chunks in a single transaction.
func (s *SQLiteChunkStore) PutChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, texto, contexto, secao, titulo, pagina, fonte, ano, tipo, parent_id, is_parent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			texto = excluded.texto,
			contexto = excluded.contexto,
			secao = excluded.secao,
			titulo = excluded.titulo,
			pagina = excluded.pagina,
			fonte = excluded.fonte,
			ano = excluded.ano,
			tipo = excluded.tipo,
			parent_id = excluded.parent_id,
			is_parent = excluded.is_parent`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		isParent := 0
		if c.IsParent {
			isParent = 1
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Texto, c.Contexto, c.Secao, c.Titulo,
			c.Pagina, c.Fonte, c.Ano, c.Tipo, c.ParentID, isParent); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetChunk returns a single chunk. Returns ErrNotFound for misses.
func (s *SQLiteChunkStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, texto, contexto, secao, titulo, pagina, fonte, ano, tipo, parent_id, is_parent
		FROM chunks WHERE id = ?`, id)

	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk %s: %w", id, err)
	}
	return chunk, nil
}

// GetChunks returns chunks in request order, silently skipping missing IDs.
func (s *SQLiteChunkStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return []*Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, texto, contexto, secao, titulo, pagina, fonte, ano, tipo, parent_id, is_parent
		FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		byID[chunk.ID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	// Preserve request order, skip misses
	result := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			result = append(result, chunk)
		}
	}
	return result, nil
}

// ParentMap returns the child ID to parent ID mapping.
func (s *SQLiteChunkStore) ParentMap(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, parent_id FROM chunks WHERE parent_id != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to query parent map: %w", err)
	}
	defer rows.Close()

	parents := make(map[string]string)
	for rows.Next() {
		var id, parentID string
		if err := rows.Scan(&id, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan parent row: %w", err)
		}
		parents[id] = parentID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parent map: %w", err)
	}
	return parents, nil
}

// Count returns the number of stored chunks.
func (s *SQLiteChunkStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Close closes the store.
func (s *SQLiteChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanChunk.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var isParent int
	if err := row.Scan(&c.ID, &c.Texto, &c.Contexto, &c.Secao, &c.Titulo,
		&c.Pagina, &c.Fonte, &c.Ano, &c.Tipo, &c.ParentID, &isParent); err != nil {
		return nil, err
	}
	c.IsParent = isParent != 0
	return &c, nil
}
