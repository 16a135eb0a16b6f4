package store

import (
	"database/sql"
	"errors"
	"time"
)

// SaveCredential replaces the stored credential.
func (db *DB) SaveCredential(c Credential) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.TokenType == "" {
		c.TokenType = "bearer"
	}
	_, err := db.Exec(`
		INSERT INTO credentials (id, token, token_type, username, created_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			token_type = excluded.token_type,
			username = excluded.username,
			created_at = excluded.created_at`,
		c.Token, c.TokenType, c.Username, c.CreatedAt.UnixMilli())
	return err
}

// LoadCredential returns the stored credential, if any.
func (db *DB) LoadCredential() (Credential, bool, error) {
	var (
		c       Credential
		created int64
	)
	err := db.QueryRow(`SELECT token, token_type, username, created_at FROM credentials WHERE id = 1`).
		Scan(&c.Token, &c.TokenType, &c.Username, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, err
	}
	c.CreatedAt = time.UnixMilli(created)
	return c, true, nil
}

// DeleteCredential removes the stored credential. Deleting nothing is not an error.
func (db *DB) DeleteCredential() error {
	_, err := db.Exec(`DELETE FROM credentials WHERE id = 1`)
	return err
}
