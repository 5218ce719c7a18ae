package data

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tinz/tinz-api/internal/data/pgxutil"
	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	"github.com/tinz/tinz-api/internal/domain/model"
	apperrors "github.com/tinz/tinz-api/internal/errors"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at, last_login`

// UserRepo provides database operations for user identity records.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. The email-uniqueness constraint is enforced by
// the store; violations surface as conflict errors.
func (r *UserRepo) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if req == nil {
		return nil, apperrors.Validation("create user request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid create user request")
	}

	role := req.Role
	if role == "" {
		role = domainauth.RoleUser
	}

	now := r.timeProvider.Now().UTC()
	var out *model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		row := conn.QueryRow(ctx, `
			INSERT INTO users (
				id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, TRUE, $7, $7
			) RETURNING `+userColumns,
			uuid.NewString(),
			model.NormalizeEmail(req.Email),
			req.PasswordHash,
			strings.TrimSpace(req.FirstName),
			strings.TrimSpace(req.LastName),
			role,
			now,
		)
		u, scanErr := scanUser(row)
		if scanErr != nil {
			return scanErr
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, mapPgError(err, "user not found")
	}
	return out, nil
}

// FindByEmail returns the user with the given email, or a not_found error.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var out *model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		row := conn.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			model.NormalizeEmail(email),
		)
		u, scanErr := scanUser(row)
		if scanErr != nil {
			return scanErr
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, mapPgError(err, "user not found")
	}
	return out, nil
}

// FindByID returns the user with the given id, or a not_found error.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var out *model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
		u, scanErr := scanUser(row)
		if scanErr != nil {
			return scanErr
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, mapPgError(err, "user not found")
	}
	return out, nil
}

// UpdatePasswordByEmail replaces the password hash for the given email.
func (r *UserRepo) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	return r.updatePassword(ctx, `email = $2`, model.NormalizeEmail(email), passwordHash)
}

// UpdatePasswordByID replaces the password hash for the given user id.
func (r *UserRepo) UpdatePasswordByID(ctx context.Context, id, passwordHash string) error {
	return r.updatePassword(ctx, `id = $2`, id, passwordHash)
}

func (r *UserRepo) updatePassword(ctx context.Context, where, key, passwordHash string) error {
	now := r.timeProvider.Now().UTC()
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, execErr := conn.Exec(ctx,
			`UPDATE users SET password_hash = $1, updated_at = $3 WHERE `+where,
			passwordHash, key, now,
		)
		if execErr != nil {
			return execErr
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	return mapPgError(err, "user not found")
}

// TouchLastLogin stamps last_login with the current time.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string) error {
	now := r.timeProvider.Now().UTC()
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, execErr := conn.Exec(ctx,
			`UPDATE users SET last_login = $1 WHERE id = $2`,
			now, id,
		)
		if execErr != nil {
			return execErr
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	return mapPgError(err, "user not found")
}

// Delete removes a user row and any SSO linkages pointing at it in one
// transaction. Only used internally during explicit SSO re-linking; users
// are never hard-deleted in normal flows.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			if _, execErr := tx.Exec(ctx, `DELETE FROM sso_accounts WHERE user_id = $1`, id); execErr != nil {
				return execErr
			}
			tag, execErr := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
			if execErr != nil {
				return execErr
			}
			if tag.RowsAffected() == 0 {
				return pgx.ErrNoRows
			}
			return nil
		},
	})
	return mapPgError(err, "user not found")
}
