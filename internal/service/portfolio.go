package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/telemetry"
)

// Portfolio is every parcel an owner code is entitled to, in issuance order.
type Portfolio struct {
	ClientName      string                 `json:"client_name"`
	IsMultiParcelle bool                   `json:"is_multi_parcelle"`
	ParcelleCount   int                    `json:"parcelle_count"`
	Parcelles       []model.PortfolioEntry `json:"parcelles"`
}

type PortfolioService struct {
	verifier     *VerificationService
	parcelleRepo repository.ParcelleRepository
}

func NewPortfolioService(verifier *VerificationService, parcelleRepo repository.ParcelleRepository) *PortfolioService {
	return &PortfolioService{verifier: verifier, parcelleRepo: parcelleRepo}
}

// Resolve expands an owner code into its parcels. Parcels deleted since issuance are
// skipped and counted as stale scope instead of failing the whole portfolio.
func (s *PortfolioService) Resolve(ctx context.Context, code string) (*Portfolio, error) {
	decision, ac, err := s.verifier.verifyCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !decision.IsPermanent() {
		return nil, apperrors.Forbidden("Portefeuille réservé aux propriétaires")
	}

	found, err := s.parcelleRepo.FindByIDs(ctx, decision.ParcelleIDs)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	byID := make(map[string]model.Parcelle, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	entries := make([]model.PortfolioEntry, 0, len(decision.ParcelleIDs))
	for _, id := range decision.ParcelleIDs {
		p, ok := byID[id]
		if !ok {
			telemetry.StaleScopeTotal.Inc()
			log.Warn().
				Str("accessCodeId", decision.AccessCodeID).
				Str("parcelleId", id).
				Msg("portfolio references a deleted parcel, skipping")
			continue
		}
		cameraEnabled, _ := ac.Camera(id)
		entries = append(entries, model.PortfolioEntry{
			ParcelleID:      p.ID,
			Nom:             p.Nom,
			ReferenceTF:     p.ReferenceTF,
			Superficie:      p.Superficie,
			UniteSuperficie: p.UniteSuperficie,
			CameraEnabled:   cameraEnabled,
		})
	}

	return &Portfolio{
		ClientName:      decision.ClientName,
		IsMultiParcelle: len(entries) > 1,
		ParcelleCount:   len(entries),
		Parcelles:       entries,
	}, nil
}
