package catalog

import (
	"log/slog"
	"time"

	"github.com/inkhorn/easel/internal/checksum"
	"github.com/inkhorn/easel/internal/models"
	"github.com/inkhorn/easel/internal/raster"
	"github.com/inkhorn/easel/internal/storage"
)

// Sync walks the gallery directory and brings the catalog mirror up to date:
//   - new/changed image files are decoded and upserted
//   - files removed from disk are deleted from the mirror
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	infos, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.GalleryChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(infos))
	for _, fi := range infos {
		disk[fi.Path] = struct{}{}

		if checksums[fi.Path] == fi.Checksum {
			continue
		}

		data, err := store.Read(fi.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexImage(db, fi.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", fi.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteGalleryImage(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexImage decodes the image header and upserts the gallery row.
func indexImage(db *DB, path string, data []byte) error {
	cfg, _, err := raster.DecodeConfig(data)
	if err != nil {
		return err
	}
	return db.UpsertGalleryImage(models.GalleryImage{
		Path:      path,
		Checksum:  checksum.Sum(data),
		Width:     cfg.Width,
		Height:    cfg.Height,
		UpdatedAt: time.Now(),
	})
}
