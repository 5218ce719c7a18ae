package data

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/tinz/tinz-api/internal/errors"
)

// mapPgError translates driver-level failures into the application error
// taxonomy. Unique violations become conflicts so the orchestrator can map
// duplicate emails to 409 without inspecting SQLSTATE itself.
func mapPgError(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(notFoundMsg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstreamTimeout, "credential store timed out")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return apperrors.Wrap(err, apperrors.ErrCodeConflict, "record already exists")
		case pgerrcode.ForeignKeyViolation:
			return apperrors.Wrap(err, apperrors.ErrCodeValidation, "referenced record does not exist")
		}
	}

	return apperrors.Wrap(err, apperrors.ErrCodeInternal, "credential store error")
}
