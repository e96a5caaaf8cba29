package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// KeyPrefix identifies generated API keys
	KeyPrefix = "hg_"
	// KeyLength is the number of random bytes in a key (32 bytes = 256 bits)
	KeyLength = 32
	// displayPrefixLength is how many characters of a key may appear in logs
	displayPrefixLength = 5
)

// APIKeyRecord is a stored API key. Keys are matched verbatim.
type APIKeyRecord struct {
	Key        string    `json:"key"`
	OwnerEmail string    `json:"owner_email"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Principal builds the request principal for a key. API keys always carry
// the user role.
func (k *APIKeyRecord) Principal() *Principal {
	name := EmailLocalPart(k.OwnerEmail)
	if name == "" {
		name = DefaultName
	}
	return &Principal{
		ID:         k.OwnerEmail,
		Email:      k.OwnerEmail,
		Name:       name,
		Role:       RoleUser,
		AuthMethod: AuthMethodAPIKey,
	}
}

// APIKeyStore looks up API keys presented as bearer credentials
type APIKeyStore interface {
	// LookupAPIKey returns the active record for key, or nil if there is none
	LookupAPIKey(ctx context.Context, key string) (*APIKeyRecord, error)
}

// GenerateAPIKey creates a new random key.
// Format: hg_<base64url(32 random bytes)>
func GenerateAPIKey() (string, error) {
	randomBytes := make([]byte, KeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// RedactAPIKey returns the first few characters of a key followed by "***",
// safe to write to logs
func RedactAPIKey(key string) string {
	if len(key) <= displayPrefixLength {
		return "***"
	}
	return key[:displayPrefixLength] + "***"
}

// SQLAPIKeyStore keeps API keys in the api_keys table
type SQLAPIKeyStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLAPIKeyStore creates a new SQL-backed key store
func NewSQLAPIKeyStore(db *sql.DB) *SQLAPIKeyStore {
	return &SQLAPIKeyStore{db: db, now: time.Now}
}

const createAPIKeysTable = `
	CREATE TABLE IF NOT EXISTS api_keys (
		api_key     TEXT PRIMARY KEY,
		owner_email TEXT NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMP NOT NULL
	)`

// Each owner holds at most one key; issuing a new one replaces it.
const createAPIKeysOwnerIndex = `
	CREATE UNIQUE INDEX IF NOT EXISTS api_keys_owner_email_idx ON api_keys (owner_email)`

// Migrate creates the api_keys table and its owner index if they do not exist
func (s *SQLAPIKeyStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createAPIKeysTable); err != nil {
		return fmt.Errorf("failed to create api_keys table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createAPIKeysOwnerIndex); err != nil {
		return fmt.Errorf("failed to create api_keys owner index: %w", err)
	}
	return nil
}

// LookupAPIKey implements APIKeyStore
func (s *SQLAPIKeyStore) LookupAPIKey(ctx context.Context, key string) (*APIKeyRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}

	record := &APIKeyRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT api_key, owner_email, is_active, created_at
		FROM api_keys
		WHERE api_key = $1 AND is_active
	`, key).Scan(&record.Key, &record.OwnerEmail, &record.Active, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	return record, nil
}

// CreateAPIKey generates an active key for ownerEmail. An existing key for
// the same owner is replaced and stops resolving.
func (s *SQLAPIKeyStore) CreateAPIKey(ctx context.Context, ownerEmail string) (*APIKeyRecord, error) {
	if ownerEmail == "" {
		return nil, errors.New("owner email is required")
	}

	key, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	record := &APIKeyRecord{
		Key:        key,
		OwnerEmail: ownerEmail,
		Active:     true,
		CreatedAt:  s.now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (api_key, owner_email, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_email) DO UPDATE SET
			api_key = excluded.api_key,
			is_active = excluded.is_active,
			created_at = excluded.created_at
	`, record.Key, record.OwnerEmail, record.Active, record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}
	return record, nil
}

// ErrAPIKeyNotFound is returned when changing the status of an unknown key
var ErrAPIKeyNotFound = errors.New("api key not found")

// DeactivateAPIKey marks a key inactive. Requests presenting it are
// rejected from then on.
func (s *SQLAPIKeyStore) DeactivateAPIKey(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE api_keys SET is_active = $1 WHERE api_key = $2`, false, key)
	if err != nil {
		return fmt.Errorf("failed to deactivate api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate api key: %w", err)
	}
	if n == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// SetAPIKeyStatus activates or deactivates the key held by ownerEmail
func (s *SQLAPIKeyStore) SetAPIKeyStatus(ctx context.Context, ownerEmail string, active bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE api_keys SET is_active = $1 WHERE owner_email = $2`, active, ownerEmail)
	if err != nil {
		return fmt.Errorf("failed to update api key status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update api key status: %w", err)
	}
	if n == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
