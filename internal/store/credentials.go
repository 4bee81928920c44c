package store

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagechat/sage/internal/models"
)

// CredentialStore persists API credentials. Secrets are held only as sha256
// hashes; the plaintext token is returned exactly once, at creation.
type CredentialStore struct {
	db *DB
}

func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Create mints a credential for a user. ttl <= 0 means no expiry. The second
// return value is the plaintext token.
func (s *CredentialStore) Create(userID, label string, ttl time.Duration) (*models.APICredential, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generate secret: %w", err)
	}
	token := "sk-" + hex.EncodeToString(raw)

	now := time.Now().Unix()
	cred := &models.APICredential{
		ID:         uuid.New().String(),
		UserID:     userID,
		SecretHash: HashSecret(token),
		Label:      label,
		Active:     true,
		CreatedAt:  now,
	}
	if ttl > 0 {
		exp := time.Now().Add(ttl).Unix()
		cred.ExpiresAt = &exp
	}

	_, err := s.db.Exec(`
		INSERT INTO api_credentials (id, user_id, secret_hash, label, expires_at, usage_count, active, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 1, ?)
	`, cred.ID, cred.UserID, cred.SecretHash, cred.Label, cred.ExpiresAt, now)
	if err != nil {
		return nil, "", fmt.Errorf("insert credential: %w", err)
	}
	return cred, token, nil
}

// Resolve maps a bearer token to its owning user, records the use, and
// returns nil for unknown, revoked, or expired tokens. The three failure
// modes are indistinguishable to the caller.
func (s *CredentialStore) Resolve(token string) (*models.APICredential, error) {
	var cred models.APICredential
	var expiresAt, lastUsedAt sql.NullInt64
	err := s.db.QueryRow(`
		SELECT id, user_id, secret_hash, label, expires_at, last_used_at, usage_count, active, created_at
		FROM api_credentials WHERE secret_hash = ?
	`, HashSecret(token)).Scan(
		&cred.ID, &cred.UserID, &cred.SecretHash, &cred.Label,
		&expiresAt, &lastUsedAt, &cred.UsageCount, &cred.Active, &cred.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}

	if expiresAt.Valid {
		cred.ExpiresAt = &expiresAt.Int64
	}
	if lastUsedAt.Valid {
		cred.LastUsedAt = &lastUsedAt.Int64
	}

	if !cred.Active {
		return nil, nil
	}
	now := time.Now().Unix()
	if cred.ExpiresAt != nil && *cred.ExpiresAt < now {
		return nil, nil
	}

	if _, err := s.db.Exec(`
		UPDATE api_credentials SET last_used_at = ?, usage_count = usage_count + 1 WHERE id = ?
	`, now, cred.ID); err != nil {
		return nil, fmt.Errorf("record credential use: %w", err)
	}
	cred.UsageCount++
	cred.LastUsedAt = &now
	return &cred, nil
}

// Revoke deactivates a credential for its owner.
func (s *CredentialStore) Revoke(userID, credentialID string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE api_credentials SET active = 0 WHERE id = ? AND user_id = ?
	`, credentialID, userID)
	if err != nil {
		return false, fmt.Errorf("revoke credential: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// HashSecret computes the sha256 hex digest used to store and look up
// credential secrets.
func HashSecret(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
