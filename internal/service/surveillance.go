package service

import (
	"context"
	"time"

	"github.com/songon-extension/access-server/internal/audit"
	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/telemetry"
	"github.com/songon-extension/access-server/internal/util"
)

const reasonNoCamera = "no_camera"

type StreamGrant struct {
	AccessGranted bool   `json:"access_granted"`
	VideoURL      string `json:"video_url"`
	ClientName    string `json:"client_name"`
	ParcelleID    string `json:"parcelle_id"`
}

// SurveillanceService authorizes access to externally hosted camera streams.
type SurveillanceService struct {
	verifier     *VerificationService
	parcelleRepo repository.ParcelleRepository
	recorder     AccessRecorder
	now          func() time.Time
}

func NewSurveillanceService(verifier *VerificationService, parcelleRepo repository.ParcelleRepository, recorder AccessRecorder) *SurveillanceService {
	return &SurveillanceService{
		verifier:     verifier,
		parcelleRepo: parcelleRepo,
		recorder:     recorder,
		now:          time.Now,
	}
}

// RequestStream returns the stream locator verbatim when the code is an owner code
// with the camera enabled for parcelleID.
func (s *SurveillanceService) RequestStream(ctx context.Context, code, parcelleID string) (*StreamGrant, error) {
	decision, err := s.verifier.Verify(ctx, code, parcelleID)
	if err != nil {
		return nil, err
	}

	if !decision.CanAccessSurveillance || decision.VideoURL == "" {
		telemetry.AccessDeniedTotal.WithLabelValues(reasonNoCamera).Inc()
		audit.LogContext(ctx, audit.Event{
			Type:       audit.EventAccessDenied,
			Code:       util.NormalizeCode(code),
			ParcelleID: parcelleID,
			Reason:     reasonNoCamera,
		})
		return nil, apperrors.SurveillanceDenied()
	}

	parcelle, err := s.parcelleRepo.FindByID(ctx, parcelleID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	s.recorder.Record(ctx, newAccessEntry(decision, parcelle, model.DocumentTypeSurveillance, s.now()))
	telemetry.RecordGranted(model.DocumentTypeSurveillance)

	return &StreamGrant{
		AccessGranted: true,
		VideoURL:      decision.VideoURL,
		ClientName:    decision.ClientName,
		ParcelleID:    parcelleID,
	}, nil
}
