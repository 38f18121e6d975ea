package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/songon-extension/access-server/internal/model"
)

type CodeRequestRepository interface {
	Create(ctx context.Context, params model.CreateCodeRequestParams) (*model.CodeRequest, error)
	List(ctx context.Context, unreadOnly bool, limit, offset int) ([]model.CodeRequest, error)
	MarkRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context) (int, error)
}

type codeRequestRepo struct {
	db *sqlx.DB
}

func NewCodeRequestRepository(db *sqlx.DB) CodeRequestRepository {
	return &codeRequestRepo{db: db}
}

func (r *codeRequestRepo) Create(ctx context.Context, params model.CreateCodeRequestParams) (*model.CodeRequest, error) {
	var req model.CodeRequest
	err := r.db.GetContext(ctx, &req, `
		INSERT INTO code_requests (id, nom, prenom, whatsapp, parcelle_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ID, params.Nom, params.Prenom, params.WhatsApp, params.ParcelleID)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *codeRequestRepo) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]model.CodeRequest, error) {
	requests := []model.CodeRequest{}
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM code_requests
		WHERE NOT $1 OR NOT read
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *codeRequestRepo) MarkRead(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE code_requests SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *codeRequestRepo) CountUnread(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM code_requests WHERE NOT read`)
	return count, err
}
