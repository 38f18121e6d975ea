package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/songon-extension/access-server/internal/model"
)

// DocumentRepository holds vault metadata. File bytes live in storage.Storage.
type DocumentRepository interface {
	Create(ctx context.Context, params model.CreateDocumentFileParams) (*model.DocumentFile, error)
	FindByID(ctx context.Context, parcelleID, id string) (*model.DocumentFile, error)
	ListByParcelle(ctx context.Context, parcelleID string) ([]model.DocumentFile, error)
	ListByType(ctx context.Context, parcelleID, documentType string) ([]model.DocumentFile, error)
	Summaries(ctx context.Context, parcelleID string) ([]model.DocumentSummary, error)
	Delete(ctx context.Context, parcelleID, id string) (*model.DocumentFile, error)
}

type documentRepo struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, params model.CreateDocumentFileParams) (*model.DocumentFile, error) {
	var doc model.DocumentFile
	err := r.db.GetContext(ctx, &doc, `
		INSERT INTO parcelle_documents (
			id, parcelle_id, document_type, filename, original_name, content_type, size_bytes, checksum
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.ID, params.ParcelleID, params.DocumentType, params.Filename, params.OriginalName,
		params.ContentType, params.SizeBytes, params.Checksum)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) FindByID(ctx context.Context, parcelleID, id string) (*model.DocumentFile, error) {
	var doc model.DocumentFile
	err := r.db.GetContext(ctx, &doc, `
		SELECT * FROM parcelle_documents WHERE parcelle_id = $1 AND id = $2
	`, parcelleID, id)
	return HandleNotFound(&doc, err)
}

func (r *documentRepo) ListByParcelle(ctx context.Context, parcelleID string) ([]model.DocumentFile, error) {
	docs := []model.DocumentFile{}
	err := r.db.SelectContext(ctx, &docs, `
		SELECT * FROM parcelle_documents
		WHERE parcelle_id = $1
		ORDER BY document_type, seq
	`, parcelleID)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ListByType returns files in upload order.
func (r *documentRepo) ListByType(ctx context.Context, parcelleID, documentType string) ([]model.DocumentFile, error) {
	docs := []model.DocumentFile{}
	err := r.db.SelectContext(ctx, &docs, `
		SELECT * FROM parcelle_documents
		WHERE parcelle_id = $1 AND document_type = $2
		ORDER BY seq
	`, parcelleID, documentType)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) Summaries(ctx context.Context, parcelleID string) ([]model.DocumentSummary, error) {
	summaries := []model.DocumentSummary{}
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT document_type, COUNT(*) AS count
		FROM parcelle_documents
		WHERE parcelle_id = $1
		GROUP BY document_type
		ORDER BY MIN(seq)
	`, parcelleID)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		summaries[i].Label = model.DocumentLabel(summaries[i].Type)
	}
	return summaries, nil
}

func (r *documentRepo) Delete(ctx context.Context, parcelleID, id string) (*model.DocumentFile, error) {
	var doc model.DocumentFile
	err := r.db.GetContext(ctx, &doc, `
		DELETE FROM parcelle_documents WHERE parcelle_id = $1 AND id = $2
		RETURNING *
	`, parcelleID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
