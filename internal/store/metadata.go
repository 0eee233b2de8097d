package store

import (
	"database/sql"
)

const importKeyPrefix = "import:"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// ImportedFileHash returns the SHA-256 recorded for a corpus file, or "" if
// the file was never imported.
func (s *Store) ImportedFileHash(path string) (string, error) {
	return s.GetMetadata(importKeyPrefix + path)
}

// SetImportedFileHash records the SHA-256 of an imported corpus file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	return s.SetMetadata(importKeyPrefix+path, hash)
}
