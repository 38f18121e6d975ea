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

// VerificationService turns a submitted code into a Decision. It is the only producer
// of decisions; every consumer calls it again on each request.
type VerificationService struct {
	codeRepo repository.AccessCodeRepository
	secrets  *util.SecretBox
	now      func() time.Time
}

func NewVerificationService(codeRepo repository.AccessCodeRepository, secrets *util.SecretBox) *VerificationService {
	return &VerificationService{
		codeRepo: codeRepo,
		secrets:  secrets,
		now:      time.Now,
	}
}

// Verify checks code against one parcel. Failures are INVALID_CODE (unknown or
// revoked, indistinguishable), CODE_EXPIRED or NOT_SCOPED.
func (s *VerificationService) Verify(ctx context.Context, code, parcelleID string) (*model.Decision, error) {
	ac, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	decision, reason := model.Evaluate(ac, parcelleID, s.now())
	if reason != model.ReasonGranted {
		return nil, s.deny(ctx, code, parcelleID, reason)
	}
	return decision, nil
}

// VerifyCode checks existence, revocation and expiry without a target parcel.
func (s *VerificationService) VerifyCode(ctx context.Context, code string) (*model.Decision, error) {
	decision, _, err := s.verifyCode(ctx, code)
	return decision, err
}

// verifyCode also returns the registry entry the decision was computed from.
func (s *VerificationService) verifyCode(ctx context.Context, code string) (*model.Decision, *model.AccessCode, error) {
	ac, err := s.lookup(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	decision, reason := model.EvaluateCode(ac, s.now())
	if reason != model.ReasonGranted {
		return nil, nil, s.deny(ctx, code, "", reason)
	}
	return decision, ac, nil
}

// Diagnosis is the precise verification outcome shown to admins.
type Diagnosis struct {
	Reason     model.DenyReason  `json:"reason"`
	Decision   *model.Decision   `json:"decision,omitempty"`
	AccessCode *model.AccessCode `json:"access_code,omitempty"`
}

// Diagnose runs the same evaluation as Verify but reports the exact reason and does
// not count toward the denied-attempt metrics.
func (s *VerificationService) Diagnose(ctx context.Context, code, parcelleID string) (*Diagnosis, error) {
	ac, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var decision *model.Decision
	var reason model.DenyReason
	if parcelleID == "" {
		decision, reason = model.EvaluateCode(ac, now)
	} else {
		decision, reason = model.Evaluate(ac, parcelleID, now)
	}
	return &Diagnosis{Reason: reason, Decision: decision, AccessCode: ac}, nil
}

func (s *VerificationService) lookup(ctx context.Context, code string) (*model.AccessCode, error) {
	normalized := util.NormalizeCode(code)
	if normalized == "" {
		return nil, nil
	}
	ac, err := s.codeRepo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return openCode(s.secrets, ac), nil
}

// deny records the attempt on the security channel and maps the reason to the
// public taxonomy.
func (s *VerificationService) deny(ctx context.Context, code, parcelleID string, reason model.DenyReason) error {
	telemetry.RecordDenied(reason)
	audit.LogContext(ctx, audit.Event{
		Type:       audit.EventAccessDenied,
		Code:       util.NormalizeCode(code),
		ParcelleID: parcelleID,
		Reason:     string(reason),
	})

	switch reason {
	case model.ReasonExpired:
		return apperrors.CodeExpired()
	case model.ReasonNotScoped:
		return apperrors.NotScoped()
	default:
		return apperrors.InvalidCode()
	}
}
