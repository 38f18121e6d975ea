package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/songon-extension/access-server/internal/model"
)

type ParcelleRepository interface {
	FindByID(ctx context.Context, id string) (*model.Parcelle, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Parcelle, error)
	List(ctx context.Context, statut model.ParcelleStatut) ([]model.Parcelle, error)
	Upsert(ctx context.Context, params model.UpsertParcelleParams) (*model.Parcelle, error)
	UpdateStatut(ctx context.Context, id string, statut model.ParcelleStatut) (*model.Parcelle, error)
	Delete(ctx context.Context, id string) error
}

type parcelleRepo struct {
	db *sqlx.DB
}

func NewParcelleRepository(db *sqlx.DB) ParcelleRepository {
	return &parcelleRepo{db: db}
}

func (r *parcelleRepo) FindByID(ctx context.Context, id string) (*model.Parcelle, error) {
	var p model.Parcelle
	err := r.db.GetContext(ctx, &p, `SELECT * FROM parcelles WHERE id = $1`, id)
	return HandleNotFound(&p, err)
}

// FindByIDs returns the parcels that still exist, in no particular order.
func (r *parcelleRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Parcelle, error) {
	parcelles := []model.Parcelle{}
	if len(ids) == 0 {
		return parcelles, nil
	}
	err := r.db.SelectContext(ctx, &parcelles, `SELECT * FROM parcelles WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return parcelles, nil
}

func (r *parcelleRepo) List(ctx context.Context, statut model.ParcelleStatut) ([]model.Parcelle, error) {
	parcelles := []model.Parcelle{}
	var err error
	if statut == "" {
		err = r.db.SelectContext(ctx, &parcelles, `SELECT * FROM parcelles ORDER BY nom`)
	} else {
		err = r.db.SelectContext(ctx, &parcelles, `SELECT * FROM parcelles WHERE statut = $1 ORDER BY nom`, statut)
	}
	if err != nil {
		return nil, err
	}
	return parcelles, nil
}

func (r *parcelleRepo) Upsert(ctx context.Context, params model.UpsertParcelleParams) (*model.Parcelle, error) {
	var p model.Parcelle
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO parcelles (id, nom, reference_tf, superficie, unite_superficie, statut)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			nom = EXCLUDED.nom,
			reference_tf = EXCLUDED.reference_tf,
			superficie = EXCLUDED.superficie,
			unite_superficie = EXCLUDED.unite_superficie,
			statut = EXCLUDED.statut,
			updated_at = NOW()
		RETURNING *
	`, params.ID, params.Nom, params.ReferenceTF, params.Superficie, params.UniteSuperficie, params.Statut)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *parcelleRepo) UpdateStatut(ctx context.Context, id string, statut model.ParcelleStatut) (*model.Parcelle, error) {
	var p model.Parcelle
	err := r.db.GetContext(ctx, &p, `
		UPDATE parcelles SET statut = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, statut)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *parcelleRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parcelles WHERE id = $1`, id)
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
