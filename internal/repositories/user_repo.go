package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by repositories. pgx transactions
// and pgxmock pools satisfy it as well.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, name, email, password_hash, role, phone, address, avatar_url, avatar_key,
		reset_token_hash, reset_token_expires_at, password_changed_at, created_at, updated_at`

type UserRepository struct {
	pool DBTX
}

func NewUserRepository(pool DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash *string

	err := scanner.Scan(
		&user.ID, &user.Name, &user.Email, &passwordHash, &user.Role,
		&user.Phone, &user.Address, &user.AvatarURL, &user.AvatarKey,
		&user.ResetTokenHash, &user.ResetTokenExpiresAt, &user.PasswordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR role = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, likeEscaper.Replace(filter.Search), filter.Role, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

// Count returns how many users match filter, ignoring paging.
func (r *UserRepository) Count(ctx context.Context, filter models.UserFilter) (int, error) {
	query := `SELECT count(*) FROM users
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR role = $2)`

	var count int
	if err := r.pool.QueryRow(ctx, query, likeEscaper.Replace(filter.Search), filter.Role).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.AvatarURL == "" {
		user.AvatarURL = models.DefaultAvatarURL
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, role, phone, address, avatar_url, password_changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, nullableString(user.PasswordHash), user.Role,
		user.Phone, user.Address, user.AvatarURL, user.PasswordChangedAt,
	))
}

// Update writes the profile and role columns. Password, avatar and reset
// fields have dedicated methods.
func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	query := `
		UPDATE users SET name = $1, email = $2, phone = $3, address = $4, role = $5, updated_at = now()
		WHERE id = $6
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Name, user.Email, user.Phone, user.Address, user.Role, id,
	))
}

// UpdatePassword stores a new hash and drops any pending reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users SET password_hash = $1, password_changed_at = now(),
			reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = now()
		WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id, avatarURL, avatarKey string) (*models.User, error) {
	query := `
		UPDATE users SET avatar_url = $1, avatar_key = $2, updated_at = now()
		WHERE id = $3
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query, avatarURL, avatarKey, id))
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetResetToken records a pending reset, replacing any earlier one.
func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users SET reset_token_hash = $1, reset_token_expires_at = $2, updated_at = now()
		WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, tokenHash, expiresAt, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearResetToken drops the pending reset only while it is still tokenHash,
// so a newer issuance is never wiped.
func (r *UserRepository) ClearResetToken(ctx context.Context, id, tokenHash string) error {
	query := `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND reset_token_hash = $2`

	if _, err := r.pool.Exec(ctx, query, id, tokenHash); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// ConsumeResetToken sets a new password on the account holding an unexpired
// reset token with the given hash and clears the token in the same statement.
// ErrNotFound means no such token was pending at now.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error) {
	query := `
		UPDATE users SET password_hash = $1, password_changed_at = $3,
			reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = $3
		WHERE reset_token_hash = $2 AND reset_token_expires_at > $3
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query, passwordHash, tokenHash, now))
}

// ClearExpiredResetTokens drops reset tokens that expired before now.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at <= $1`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
