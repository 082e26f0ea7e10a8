package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RevocationStore persists tokens invalidated before their natural expiry.
// Records store a sha256 digest of the token, never the token itself.
type RevocationStore struct {
	db *sql.DB
}

func NewRevocationStore(db *sql.DB) *RevocationStore {
	return &RevocationStore{db: db}
}

// Revoke inserts a revocation record and returns only once it is committed,
// so a logout response is never raced by a request using the same token.
// Revoking an already-revoked token is a no-op.
func (s *RevocationStore) Revoke(ctx context.Context, token string, expiresAt *time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate revocation id: %w", err)
	}

	var expiry any
	if expiresAt != nil {
		expiry = expiresAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (id, token_hash, revoked_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO NOTHING
	`, id.String(), hashToken(token), time.Now().UTC(), expiry)
	if err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}

	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_hash = $1)
	`, hashToken(token)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query revoked token: %w", err)
	}

	return exists, nil
}

// CleanupExpired deletes records whose expiry has passed. Records with an
// unknown expiry are kept; an expired token is already rejected by
// verification, so reclaiming the row is safe once expires_at < now.
func (s *RevocationStore) CleanupExpired(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := s.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM revoked_tokens
			WHERE expires_at IS NOT NULL AND expires_at < NOW()
			ORDER BY revoked_at ASC
			LIMIT $1
		)
		DELETE FROM revoked_tokens t
		USING stale
		WHERE t.id = stale.id
	`, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete expired revoked tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired revoked tokens rows affected: %w", err)
	}

	return affected, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
