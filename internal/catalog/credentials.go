package catalog

import (
	"database/sql"
	"errors"
	"fmt"
)

// SetCredential stores the opaque API key for a provider, replacing any
// previous value.
func (db *DB) SetCredential(provider, apiKey string) error {
	_, err := db.conn.Exec(`
		INSERT INTO credentials (provider, api_key, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(provider) DO UPDATE SET
			api_key    = excluded.api_key,
			updated_at = excluded.updated_at
	`, provider, apiKey)
	if err != nil {
		return fmt.Errorf("catalog: set credential: %w", err)
	}
	return nil
}

// GetCredential returns the stored API key for a provider, or empty string
// when none is configured.
func (db *DB) GetCredential(provider string) (string, error) {
	var key string
	err := db.conn.QueryRow(`SELECT api_key FROM credentials WHERE provider = ?`, provider).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: get credential: %w", err)
	}
	return key, nil
}

// DeleteCredential removes the stored API key for a provider.
func (db *DB) DeleteCredential(provider string) error {
	if _, err := db.conn.Exec(`DELETE FROM credentials WHERE provider = ?`, provider); err != nil {
		return fmt.Errorf("catalog: delete credential: %w", err)
	}
	return nil
}
