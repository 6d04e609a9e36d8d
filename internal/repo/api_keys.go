package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"healthbridge/internal/domain"
)

const apiKeyColumns = `id, actor_id, COALESCE(name,''), role, key_hash, created_at`

// HashAPIKey returns the SHA-256 hex digest stored in place of a key.
// Surrounding whitespace is not part of the key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

func scanAPIKey(row rowScanner) (domain.APIKey, error) {
	var key domain.APIKey
	err := row.Scan(&key.ID, &key.ActorID, &key.Name, &key.Role, &key.KeyHash, &key.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return key, ErrNotFound
	}
	return key, err
}

// InsertAPIKey stores a key record; KeyHash must already be hashed and
// CreatedAt set by the caller. A nil tx writes directly to the DB.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sql.Tx, key domain.APIKey) error {
	switch {
	case key.ID == "":
		return errors.New("id required")
	case key.ActorID == "":
		return errors.New("actor_id required")
	case key.Role == "":
		return errors.New("role required")
	case len(key.KeyHash) != sha256.Size*2:
		return errors.New("key_hash must be a sha256 hex digest")
	case key.CreatedAt == "":
		return errors.New("created_at required")
	}
	query := `INSERT INTO api_keys(id, actor_id, name, role, key_hash, created_at) VALUES (?,?,?,?,?,?)`
	args := []any{key.ID, key.ActorID, nullable(key.Name), key.Role, key.KeyHash, key.CreatedAt}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.DB.ExecContext(ctx, query, args...)
	}
	return err
}

// GetAPIKeyByHash resolves a presented key's hash to its record.
func (r Repo) GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	return scanAPIKey(r.DB.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash=?`, hash))
}

// ListAPIKeys returns keys newest first, optionally for one actor.
func (r Repo) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys`
	var args []any
	if actorID != "" {
		query += ` WHERE actor_id=?`
		args = append(args, actorID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := []domain.APIKey{}
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteAPIKey removes a key and returns the removed record, so revocation
// events can name the actor and role that lost access.
func (r Repo) DeleteAPIKey(ctx context.Context, tx *sql.Tx, id string) (domain.APIKey, error) {
	if strings.TrimSpace(id) == "" {
		return domain.APIKey{}, errors.New("id required")
	}
	query := `DELETE FROM api_keys WHERE id=? RETURNING ` + apiKeyColumns
	if tx != nil {
		return scanAPIKey(tx.QueryRowContext(ctx, query, id))
	}
	return scanAPIKey(r.DB.QueryRowContext(ctx, query, id))
}
