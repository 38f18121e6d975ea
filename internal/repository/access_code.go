package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/songon-extension/access-server/internal/model"
)

type AccessCodeRepository interface {
	// Insert stores a new code atomically. It returns ErrCodeTaken when the code string
	// already exists, so the caller can draw another one.
	Insert(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error)
	FindByCode(ctx context.Context, code string) (*model.AccessCode, error)
	FindByID(ctx context.Context, id string) (*model.AccessCode, error)
	List(ctx context.Context, filter model.AccessCodeFilter) ([]model.AccessCode, error)
	CountFiltered(ctx context.Context, filter model.AccessCodeFilter) (int, error)
	Revoke(ctx context.Context, id string) (*model.AccessCode, error)
	UpdateCamera(ctx context.Context, id string, params model.UpdateCameraParams) (*model.AccessCode, error)
	Counts(ctx context.Context, now time.Time) (*model.AccessCodeCounts, error)
}

type accessCodeRepo struct {
	db *sqlx.DB
}

func NewAccessCodeRepository(db *sqlx.DB) AccessCodeRepository {
	return &accessCodeRepo{db: db}
}

func (r *accessCodeRepo) Insert(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error) {
	parcelleIDs := params.ParcelleIDs
	if parcelleIDs == nil {
		parcelleIDs = []string{}
	}

	var code model.AccessCode
	err := r.db.GetContext(ctx, &code, `
		INSERT INTO access_codes (
			id, code, client_name, client_email, profile_type, parcelle_ids,
			parcelle_configs, expires_at, camera_enabled, video_url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO NOTHING
		RETURNING *
	`,
		params.ID, params.Code, params.ClientName, params.ClientEmail, params.ProfileType,
		pq.StringArray(parcelleIDs), params.ParcelleConfigs, params.ExpiresAt,
		params.CameraEnabled, params.VideoURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeTaken
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *accessCodeRepo) FindByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `SELECT * FROM access_codes WHERE code = $1`, code)
	return HandleNotFound(&ac, err)
}

func (r *accessCodeRepo) FindByID(ctx context.Context, id string) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `SELECT * FROM access_codes WHERE id = $1`, id)
	return HandleNotFound(&ac, err)
}

// accessCodeWhere renders the filter predicates. Paging is left to the caller.
func accessCodeWhere(filter model.AccessCodeFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.ProfileType != "" {
		args = append(args, filter.ProfileType)
		where = append(where, fmt.Sprintf("profile_type = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "active")
	}
	if filter.ParcelleID != "" {
		args = append(args, filter.ParcelleID)
		where = append(where, fmt.Sprintf("$%d = ANY(parcelle_ids)", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return ` WHERE ` + strings.Join(where, " AND "), args
}

func (r *accessCodeRepo) List(ctx context.Context, filter model.AccessCodeFilter) ([]model.AccessCode, error) {
	where, args := accessCodeWhere(filter)
	query := `SELECT * FROM access_codes` + where + ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	codes := []model.AccessCode{}
	if err := r.db.SelectContext(ctx, &codes, query, args...); err != nil {
		return nil, err
	}
	return codes, nil
}

// CountFiltered ignores Limit and Offset.
func (r *accessCodeRepo) CountFiltered(ctx context.Context, filter model.AccessCodeFilter) (int, error) {
	where, args := accessCodeWhere(filter)
	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM access_codes`+where, args...)
	return total, err
}

// Revoke flips active in one statement. The flag only ever goes from true to false.
func (r *accessCodeRepo) Revoke(ctx context.Context, id string) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		UPDATE access_codes
		SET active = FALSE, revoked_at = NOW()
		WHERE id = $1 AND active
		RETURNING *
	`, id)
	if err == nil {
		return &ac, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	return nil, ErrAlreadyRevoked
}

func (r *accessCodeRepo) UpdateCamera(ctx context.Context, id string, params model.UpdateCameraParams) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		UPDATE access_codes
		SET camera_enabled = $2, video_url = $3, parcelle_configs = $4
		WHERE id = $1 AND profile_type = 'PROPRIETAIRE'
		RETURNING *
	`, id, params.CameraEnabled, params.VideoURL, params.ParcelleConfigs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (r *accessCodeRepo) Counts(ctx context.Context, now time.Time) (*model.AccessCodeCounts, error) {
	var counts model.AccessCodeCounts
	err := r.db.GetContext(ctx, &counts, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE active AND (profile_type = 'PROPRIETAIRE' OR expires_at > $1)) AS active,
			COUNT(*) FILTER (WHERE NOT active) AS revoked,
			COUNT(*) FILTER (WHERE active AND profile_type = 'PROSPECT' AND expires_at <= $1) AS expired,
			COUNT(*) FILTER (WHERE profile_type = 'PROSPECT') AS prospects,
			COUNT(*) FILTER (WHERE profile_type = 'PROPRIETAIRE') AS proprietaires
		FROM access_codes
	`, now)
	if err != nil {
		return nil, err
	}
	return &counts, nil
}
