package vector

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/zero-day-ai/threatviz/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

const tableName = "chunks"

// SqliteStore is a single-file SQLite container for index records. Files are
// written once by Create/WriteAll and afterwards only opened read-only.
type SqliteStore struct {
	db   *sql.DB
	path string
}

// Create makes a new database file at path. The file must not exist.
func Create(ctx context.Context, path string) (*SqliteStore, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, types.NewError(types.INDEX_WRITE_FAILED, fmt.Sprintf("database %s already exists", path))
	}

	// rollback journal keeps the published artifact a single file
	dsn := fmt.Sprintf("file:%s?_journal_mode=DELETE&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.INDEX_WRITE_FAILED, "failed to open database", err)
	}
	db.SetMaxOpenConns(1)

	schema := fmt.Sprintf(`
		CREATE TABLE %s (
			ordinal   INTEGER PRIMARY KEY,
			source    TEXT NOT NULL,
			title     TEXT NOT NULL DEFAULT '',
			page      INTEGER NOT NULL DEFAULT 0,
			content   TEXT NOT NULL,
			embedding BLOB NOT NULL
		)
	`, tableName)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, types.WrapError(types.INDEX_WRITE_FAILED, "failed to initialize schema", err)
	}

	return &SqliteStore{db: db, path: path}, nil
}

// OpenReadOnly opens an existing database file. Any failure is reported as
// INDEX_CORRUPT since the caller already established that the file should exist.
func OpenReadOnly(ctx context.Context, path string) (*SqliteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, types.WrapError(types.INDEX_CORRUPT, "index database missing", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, types.WrapError(types.INDEX_CORRUPT, "failed to open index database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, types.WrapError(types.INDEX_CORRUPT, "failed to open index database", err)
	}

	return &SqliteStore{db: db, path: path}, nil
}

// WriteAll inserts records in a single transaction.
func (s *SqliteStore) WriteAll(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.WrapError(types.INDEX_WRITE_FAILED, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (ordinal, source, title, page, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`, tableName))
	if err != nil {
		return types.WrapError(types.INDEX_WRITE_FAILED, "failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.Ordinal, rec.Source, rec.Title, rec.Page, rec.Content, encodeEmbedding(rec.Embedding),
		); err != nil {
			return types.WrapError(types.INDEX_WRITE_FAILED,
				fmt.Sprintf("failed to insert chunk %d", rec.Ordinal), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.WrapError(types.INDEX_WRITE_FAILED, "failed to commit records", err)
	}
	return nil
}

// ReadAll returns every record in ordinal order. Blobs that do not decode to
// exactly dims finite values are reported as INDEX_CORRUPT.
func (s *SqliteStore) ReadAll(ctx context.Context, dims int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT ordinal, source, title, page, content, embedding
		FROM %s ORDER BY ordinal ASC
	`, tableName))
	if err != nil {
		return nil, types.WrapError(types.INDEX_CORRUPT, "failed to query index records", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec  Record
			blob []byte
		)
		if err := rows.Scan(&rec.Ordinal, &rec.Source, &rec.Title, &rec.Page, &rec.Content, &blob); err != nil {
			return nil, types.WrapError(types.INDEX_CORRUPT, "failed to scan index record", err)
		}
		rec.Embedding, err = decodeEmbedding(blob, dims)
		if err != nil {
			return nil, types.WrapError(types.INDEX_CORRUPT,
				fmt.Sprintf("chunk %d has an invalid embedding", rec.Ordinal), err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.INDEX_CORRUPT, "failed to iterate index records", err)
	}

	return records, nil
}

// Close releases the database handle.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}
