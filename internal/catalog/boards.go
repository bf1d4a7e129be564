package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inkhorn/easel/internal/apperr"
	"github.com/inkhorn/easel/internal/models"
)

// SaveBoard inserts or replaces a board row together with its current raster PNG.
func (db *DB) SaveBoard(b models.Board, png []byte) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO boards (id, name, width, height, checksum, png, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			checksum   = excluded.checksum,
			png        = excluded.png,
			updated_at = excluded.updated_at
	`, b.ID, b.Name, b.Width, b.Height, b.Checksum, png, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: save board: %w", err)
	}

	return tx.Commit()
}

// GetBoard returns a board row and its raster PNG.
func (db *DB) GetBoard(id string) (*models.Board, []byte, error) {
	var b models.Board
	var png []byte
	err := db.conn.QueryRow(`
		SELECT id, name, width, height, checksum, png, created_at, updated_at
		FROM boards WHERE id = ?
	`, id).Scan(&b.ID, &b.Name, &b.Width, &b.Height, &b.Checksum, &png, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: get board: %w", err)
	}
	return &b, png, nil
}

// ListBoards returns board metadata (without raster blobs), newest first by
// default. query filters by name substring; sort is one of "updated_at",
// "created_at", or "name".
func (db *DB) ListBoards(query, sort string) ([]models.Board, error) {
	orderBy := "updated_at DESC"
	switch sort {
	case "name":
		orderBy = "name COLLATE NOCASE ASC"
	case "created_at":
		orderBy = "created_at DESC"
	}

	q := `SELECT id, name, width, height, checksum, created_at, updated_at FROM boards`
	args := []any{}
	if query != "" {
		q += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(query)+"%")
	}
	q += " ORDER BY " + orderBy

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list boards: %w", err)
	}
	defer rows.Close()

	var out []models.Board
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.ID, &b.Name, &b.Width, &b.Height, &b.Checksum, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBoardRaster replaces a board's raster PNG and checksum without
// touching its name or creation time.
func (db *DB) UpdateBoardRaster(id, checksum string, png []byte, updatedAt time.Time) error {
	res, err := db.conn.Exec(`
		UPDATE boards SET checksum = ?, png = ?, updated_at = ? WHERE id = ?
	`, checksum, png, updatedAt, id)
	if err != nil {
		return fmt.Errorf("catalog: update board raster: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// RenameBoard updates a board's display name.
func (db *DB) RenameBoard(id, name string) error {
	res, err := db.conn.Exec(`UPDATE boards SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("catalog: rename board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteBoard removes a board row.
func (db *DB) DeleteBoard(id string) error {
	res, err := db.conn.Exec(`DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// escapeLike escapes LIKE metacharacters in user-supplied filter strings.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
