package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/oncodose/treatment-api/internal/model"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
)

type OncologistRepository struct {
	db *sqlx.DB
}

func NewOncologistRepository(db *sqlx.DB) *OncologistRepository {
	return &OncologistRepository{db: db}
}

func (r *OncologistRepository) Create(ctx context.Context, o *model.Oncologist) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO oncologists (username, password_hash, full_name, is_admin)
		VALUES (:username, :password_hash, :full_name, :is_admin)`, o)
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (r *OncologistRepository) GetByUsername(ctx context.Context, username string) (*model.Oncologist, error) {
	var o model.Oncologist
	if err := r.db.GetContext(ctx, &o, `
		SELECT username, password_hash, full_name, is_admin
		FROM oncologists WHERE username = ?`, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("oncologist", err)
		}
		return nil, apperrors.Internal(err)
	}
	return &o, nil
}

func (r *OncologistRepository) Delete(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oncologists WHERE username = ?`, username)
	if err != nil {
		return apperrors.Internal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal(err)
	}
	if affected == 0 {
		return apperrors.NotFound("oncologist", sql.ErrNoRows)
	}
	return nil
}
