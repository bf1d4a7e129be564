// Package catalog provides the SQLite-backed persistence layer: board
// rasters, a queryable mirror of the gallery directory, and the API
// credential store.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inkhorn/easel/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS boards (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	width      INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	png        BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS gallery (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	width      INTEGER NOT NULL DEFAULT 0,
	height     INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS credentials (
	provider   TEXT PRIMARY KEY,
	api_key    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_boards_updated ON boards(updated_at);
`

// Store defines the catalog operations. Consumers should depend on this
// interface rather than the concrete *DB type to facilitate testing with mocks.
type Store interface {
	SaveBoard(b models.Board, png []byte) error
	UpdateBoardRaster(id, checksum string, png []byte, updatedAt time.Time) error
	GetBoard(id string) (*models.Board, []byte, error)
	ListBoards(query, sort string) ([]models.Board, error)
	RenameBoard(id, name string) error
	DeleteBoard(id string) error

	UpsertGalleryImage(img models.GalleryImage) error
	DeleteGalleryImage(path string) error
	ListGallery() ([]models.GalleryImage, error)
	GalleryChecksums() (map[string]string, error)

	SetCredential(provider, apiKey string) error
	GetCredential(provider string) (string, error)
	DeleteCredential(provider string) error

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// DB wraps a sql.DB with catalog-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
