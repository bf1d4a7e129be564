package catalog

import (
	"fmt"

	"github.com/inkhorn/easel/internal/models"
)

// UpsertGalleryImage inserts or replaces a gallery row.
func (db *DB) UpsertGalleryImage(img models.GalleryImage) error {
	_, err := db.conn.Exec(`
		INSERT INTO gallery (path, checksum, width, height, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			width      = excluded.width,
			height     = excluded.height,
			updated_at = excluded.updated_at
	`, img.Path, img.Checksum, img.Width, img.Height, img.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert gallery image: %w", err)
	}
	return nil
}

// DeleteGalleryImage removes a gallery row.
func (db *DB) DeleteGalleryImage(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM gallery WHERE path = ?`, path); err != nil {
		return fmt.Errorf("catalog: delete gallery image: %w", err)
	}
	return nil
}

// ListGallery returns every indexed gallery image, newest first.
func (db *DB) ListGallery() ([]models.GalleryImage, error) {
	rows, err := db.conn.Query(`
		SELECT path, checksum, width, height, updated_at
		FROM gallery ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list gallery: %w", err)
	}
	defer rows.Close()

	var out []models.GalleryImage
	for rows.Next() {
		var img models.GalleryImage
		if err := rows.Scan(&img.Path, &img.Checksum, &img.Width, &img.Height, &img.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// GalleryChecksums returns a path → checksum map for every indexed gallery image.
func (db *DB) GalleryChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM gallery`)
	if err != nil {
		return nil, fmt.Errorf("catalog: gallery checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
