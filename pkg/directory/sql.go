package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/homegate/pkg/auth"
)

// Schema is portable between PostgreSQL and SQLite
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	provider      TEXT NOT NULL,
	provider_id   TEXT NOT NULL,
	email         TEXT NOT NULL,
	name          TEXT NOT NULL,
	avatar_url    TEXT,
	role          TEXT NOT NULL DEFAULT 'user',
	created_at    TIMESTAMP NOT NULL,
	last_login_at TIMESTAMP NOT NULL,
	UNIQUE (provider, provider_id)
);
CREATE INDEX IF NOT EXISTS idx_users_email ON users (email);
`

const userColumns = `id, provider, provider_id, email, name, avatar_url, role, created_at, last_login_at`

// SQLDirectory implements Directory on database/sql. Queries use $N
// placeholders, which both lib/pq and go-sqlite3 accept.
type SQLDirectory struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLDirectory creates a directory over db
func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock used for timestamps
func (d *SQLDirectory) WithClock(now func() time.Time) *SQLDirectory {
	d.now = now
	return d
}

// Migrate creates the users table if it does not exist
func (d *SQLDirectory) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

// Find returns the user for (provider, providerID), or nil if there is none
func (d *SQLDirectory) Find(ctx context.Context, provider, providerID string) (*User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_id = $2`,
		provider, providerID)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Get returns the user with id
func (d *SQLDirectory) Get(ctx context.Context, id string) (*User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Upsert finds or creates the user for identity in one statement. An
// existing user keeps its profile; only last_login_at is refreshed, and the
// role is raised to admin if the policy now grants it.
func (d *SQLDirectory) Upsert(ctx context.Context, identity *auth.NormalizedIdentity, policy *RolePolicy) (*User, error) {
	if identity == nil || identity.Provider == "" || identity.ProviderID == "" {
		return nil, ErrInvalidIdentity
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := *identity
	id.ApplyDefaults()
	now := d.now()

	row := d.db.QueryRowContext(ctx, `
		INSERT INTO users (id, provider, provider_id, email, name, avatar_url, role, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider, provider_id) DO UPDATE SET
			last_login_at = excluded.last_login_at,
			role = CASE WHEN excluded.role = 'admin' THEN 'admin' ELSE users.role END
		RETURNING `+userColumns,
		uuid.NewString(), id.Provider, id.ProviderID, id.Email, id.DisplayName,
		nullString(id.AvatarURL), string(policy.RoleFor(id.Email)), now, now,
	)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// SetRole changes a user's role. Tokens already issued keep the old role
// until they expire.
func (d *SQLDirectory) SetRole(ctx context.Context, id string, role auth.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role: %q", role)
	}
	result, err := d.db.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, string(role), id)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns up to limit users, most recent login first
func (d *SQLDirectory) List(ctx context.Context, limit int) ([]*User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY last_login_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Summary counts all users and admins
func (d *SQLDirectory) Summary(ctx context.Context) (*Summary, error) {
	var s Summary
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN role = 'admin' THEN 1 ELSE 0 END), 0) FROM users`,
	).Scan(&s.TotalUsers, &s.AdminUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize users: %w", err)
	}
	return &s, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*User, error) {
	var (
		user      User
		avatarURL sql.NullString
		role      string
		createdAt dbTime
		lastLogin dbTime
	)
	if err := row.Scan(&user.ID, &user.Provider, &user.ProviderID, &user.Email, &user.Name,
		&avatarURL, &role, &createdAt, &lastLogin); err != nil {
		return nil, err
	}
	user.AvatarURL = avatarURL.String
	user.Role = auth.Role(role)
	user.CreatedAt = createdAt.Time
	user.LastLoginAt = lastLogin.Time
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// dbTime scans timestamps that drivers return either as time.Time or, for
// SQLite RETURNING clauses, as text
type dbTime struct {
	time.Time
}

var sqliteTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (t *dbTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case nil:
		t.Time = time.Time{}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range sqliteTimeFormats {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}
