package service

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/util"
)

const defaultUnite = "ha"

type ParcelleInput struct {
	Nom             string
	ReferenceTF     string
	Superficie      float64
	UniteSuperficie string
	Statut          model.ParcelleStatut
}

// ParcelleService is the parcel catalogue. Parcel ids are chosen by the back office
// and referenced by access codes and vault files.
type ParcelleService struct {
	repo      repository.ParcelleRepository
	documents *DocumentService
}

func NewParcelleService(repo repository.ParcelleRepository, documents *DocumentService) *ParcelleService {
	return &ParcelleService{repo: repo, documents: documents}
}

func (s *ParcelleService) List(ctx context.Context, statut model.ParcelleStatut) ([]model.Parcelle, error) {
	if statut != "" && !statut.Valid() {
		return nil, apperrors.InvalidInput("statut", "must be disponible, option or vendu")
	}
	parcelles, err := s.repo.List(ctx, statut)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return parcelles, nil
}

func (s *ParcelleService) Get(ctx context.Context, id string) (*model.Parcelle, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if p == nil {
		return nil, apperrors.NotFound("Parcelle")
	}
	return p, nil
}

func (s *ParcelleService) Upsert(ctx context.Context, id string, in ParcelleInput) (*model.Parcelle, error) {
	if !util.IsValidSlug(id) {
		return nil, apperrors.InvalidInput("id", "must be a simple identifier")
	}
	nom := strings.TrimSpace(in.Nom)
	if nom == "" {
		return nil, apperrors.MissingRequired("nom")
	}
	if in.Superficie < 0 {
		return nil, apperrors.InvalidInput("superficie", "must not be negative")
	}

	statut := in.Statut
	if statut == "" {
		statut = model.StatutDisponible
	}
	if !statut.Valid() {
		return nil, apperrors.InvalidInput("statut", "must be disponible, option or vendu")
	}
	unite := strings.TrimSpace(in.UniteSuperficie)
	if unite == "" {
		unite = defaultUnite
	}

	p, err := s.repo.Upsert(ctx, model.UpsertParcelleParams{
		ID:              id,
		Nom:             nom,
		ReferenceTF:     strings.TrimSpace(in.ReferenceTF),
		Superficie:      in.Superficie,
		UniteSuperficie: unite,
		Statut:          statut,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return p, nil
}

func (s *ParcelleService) UpdateStatut(ctx context.Context, id string, statut model.ParcelleStatut) (*model.Parcelle, error) {
	if !statut.Valid() {
		return nil, apperrors.InvalidInput("statut", "must be disponible, option or vendu")
	}
	p, err := s.repo.UpdateStatut(ctx, id, statut)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Parcelle")
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return p, nil
}

// Delete removes the parcel and its vault files. Access codes keep the stale id;
// portfolio resolution skips it.
func (s *ParcelleService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	s.documents.PurgeParcelle(ctx, id)

	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Parcelle")
	}
	if err != nil {
		return apperrors.Database(err)
	}
	return nil
}
