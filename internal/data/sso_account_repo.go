package data

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/tinz/tinz-api/internal/data/pgxutil"
	domainauth "github.com/tinz/tinz-api/internal/domain/auth"
	"github.com/tinz/tinz-api/internal/domain/model"
	apperrors "github.com/tinz/tinz-api/internal/errors"
)

// SsoAccountRepo provides database operations for SSO account linkages.
type SsoAccountRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSsoAccountRepo creates a new SsoAccountRepo with real time provider.
func NewSsoAccountRepo(db *sql.DB) *SsoAccountRepo {
	return &SsoAccountRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewSsoAccountRepoWithTimeProvider creates a new SsoAccountRepo with a custom time provider.
func NewSsoAccountRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *SsoAccountRepo {
	return &SsoAccountRepo{DB: db, timeProvider: tp}
}

// Create inserts an SSO account linkage. The (provider, provider_id)
// composite key is unique; violations surface as conflict errors.
func (r *SsoAccountRepo) Create(ctx context.Context, account *model.SsoAccount) error {
	if account == nil {
		return apperrors.Validation("sso account is required")
	}
	if err := account.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid sso account")
	}

	now := r.timeProvider.Now().UTC()
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, `
			INSERT INTO sso_accounts (provider, provider_id, user_id, created_at)
			VALUES ($1, $2, $3, $4)`,
			account.Provider, account.ProviderID, account.UserID, now,
		)
		return execErr
	})
	return mapPgError(err, "sso account not found")
}

// Find returns the linkage for (provider, providerID), or a not_found error.
func (r *SsoAccountRepo) Find(
	ctx context.Context,
	provider domainauth.SsoProvider,
	providerID string,
) (*model.SsoAccount, error) {
	var out *model.SsoAccount
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		row := conn.QueryRow(ctx, `
			SELECT provider, provider_id, user_id, created_at
			FROM sso_accounts
			WHERE provider = $1 AND provider_id = $2`,
			provider, providerID,
		)
		var a model.SsoAccount
		if scanErr := row.Scan(&a.Provider, &a.ProviderID, &a.UserID, &a.CreatedAt); scanErr != nil {
			return scanErr
		}
		out = &a
		return nil
	})
	if err != nil {
		return nil, mapPgError(err, "sso account not found")
	}
	return out, nil
}

// Relink points an existing linkage at a different user. Part of the
// explicit link-provider-to-existing-account flow.
func (r *SsoAccountRepo) Relink(
	ctx context.Context,
	provider domainauth.SsoProvider,
	providerID, userID string,
) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, execErr := conn.Exec(ctx, `
			UPDATE sso_accounts SET user_id = $3
			WHERE provider = $1 AND provider_id = $2`,
			provider, providerID, userID,
		)
		if execErr != nil {
			return execErr
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	return mapPgError(err, "sso account not found")
}
