package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/audit"
	"github.com/songon-extension/access-server/internal/config"
	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/telemetry"
	"github.com/songon-extension/access-server/internal/util"
)

const maxExpiresHours = 24 * 365

// CreateAccessCodeInput is an issuance request from the back office.
type CreateAccessCodeInput struct {
	ClientName      string
	ClientEmail     string
	ProfileType     model.ProfileType
	ParcelleIDs     []string
	ExpiresHours    int
	CameraEnabled   bool
	VideoURL        string
	ParcelleConfigs model.ParcelleConfigs
}

// AccessCodeView is an admin listing row with its derived state.
type AccessCodeView struct {
	model.AccessCode
	IsExpired bool `json:"is_expired"`
	IsUsable  bool `json:"is_usable"`
}

// AccessCodeService is the access code registry.
type AccessCodeService struct {
	codeRepo     repository.AccessCodeRepository
	parcelleRepo repository.ParcelleRepository
	secrets      *util.SecretBox
	generate     func(length int) (string, error)
	maxAttempts  int
	now          func() time.Time
}

func NewAccessCodeService(
	codeRepo repository.AccessCodeRepository,
	parcelleRepo repository.ParcelleRepository,
	secrets *util.SecretBox,
) *AccessCodeService {
	return &AccessCodeService{
		codeRepo:     codeRepo,
		parcelleRepo: parcelleRepo,
		secrets:      secrets,
		generate:     util.GenerateAccessCode,
		maxAttempts:  config.CodeGenerationMaxAttempts,
		now:          time.Now,
	}
}

// Create issues a new code. Each attempt is one atomic insert-if-absent, so two
// concurrent issuances can never end up with the same code.
func (s *AccessCodeService) Create(ctx context.Context, in CreateAccessCodeInput) (*model.AccessCode, error) {
	params, err := s.buildParams(ctx, in)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.generate(config.AccessCodeLength)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to generate access code", err)
		}
		params.ID = uuid.NewString()
		params.Code = code

		created, err := s.codeRepo.Insert(ctx, params)
		if errors.Is(err, repository.ErrCodeTaken) {
			telemetry.CodeGenerationCollisionsTotal.Inc()
			log.Warn().Int("attempt", attempt).Msg("access code collision, drawing another")
			continue
		}
		if err != nil {
			return nil, apperrors.Database(err)
		}

		audit.LogContext(ctx, audit.Event{
			Type: audit.EventCodeIssued,
			Code: created.Code,
			Details: map[string]interface{}{
				"profile_type":   string(created.ProfileType),
				"parcelle_count": len(created.ParcelleIDs),
				"attempts":       attempt,
			},
		})
		return openCode(s.secrets, created), nil
	}

	log.Error().Int("attempts", s.maxAttempts).Msg("access code generation exhausted")
	return nil, apperrors.GenerationExhausted(s.maxAttempts)
}

func (s *AccessCodeService) buildParams(ctx context.Context, in CreateAccessCodeInput) (model.CreateAccessCodeParams, error) {
	var params model.CreateAccessCodeParams

	name := strings.TrimSpace(in.ClientName)
	if name == "" {
		return params, apperrors.MissingRequired("client_name")
	}
	if !in.ProfileType.Valid() {
		return params, apperrors.InvalidInput("profile_type", "must be PROSPECT or PROPRIETAIRE")
	}

	parcelleIDs := dedupe(in.ParcelleIDs)
	for _, id := range parcelleIDs {
		if !util.IsValidSlug(id) {
			return params, apperrors.InvalidInput("parcelle_ids", fmt.Sprintf("invalid parcel id %q", id))
		}
	}
	if err := s.requireParcelles(ctx, parcelleIDs); err != nil {
		return params, err
	}

	params = model.CreateAccessCodeParams{
		ClientName:  name,
		ClientEmail: strings.TrimSpace(in.ClientEmail),
		ProfileType: in.ProfileType,
		ParcelleIDs: parcelleIDs,
	}

	switch in.ProfileType {
	case model.ProfileProspect:
		if in.ExpiresHours <= 0 || in.ExpiresHours > maxExpiresHours {
			return params, apperrors.InvalidInput("expires_hours", fmt.Sprintf("must be between 1 and %d", maxExpiresHours))
		}
		if in.CameraEnabled || len(in.ParcelleConfigs) > 0 {
			return params, apperrors.InvalidInput("camera_enabled", "surveillance is reserved to PROPRIETAIRE codes")
		}
		expiresAt := s.now().Add(time.Duration(in.ExpiresHours) * time.Hour)
		params.ExpiresAt = &expiresAt

	case model.ProfileProprietaire:
		if len(parcelleIDs) == 0 {
			return params, apperrors.InvalidInput("parcelle_ids", "a PROPRIETAIRE code needs at least one parcel")
		}
		for id := range in.ParcelleConfigs {
			if !slices.Contains(parcelleIDs, id) {
				return params, apperrors.InvalidInput("parcelle_configs", fmt.Sprintf("parcel %q is not in parcelle_ids", id))
			}
		}
		videoURL, configs, err := sealCameraFields(s.secrets, strings.TrimSpace(in.VideoURL), in.ParcelleConfigs)
		if err != nil {
			return params, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to protect video url", err)
		}
		params.CameraEnabled = in.CameraEnabled
		params.VideoURL = videoURL
		params.ParcelleConfigs = configs
	}

	return params, nil
}

func (s *AccessCodeService) requireParcelles(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.parcelleRepo.FindByIDs(ctx, ids)
	if err != nil {
		return apperrors.Database(err)
	}
	if len(found) == len(ids) {
		return nil
	}
	known := make(map[string]bool, len(found))
	for _, p := range found {
		known[p.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return apperrors.ValidationError("Unknown parcels in parcelle_ids").
		WithDetails(map[string]any{"missing": missing})
}

// Get looks a code up case-insensitively.
func (s *AccessCodeService) Get(ctx context.Context, code string) (*model.AccessCode, error) {
	ac, err := s.codeRepo.FindByCode(ctx, util.NormalizeCode(code))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if ac == nil {
		return nil, apperrors.NotFound("Access code")
	}
	return openCode(s.secrets, ac), nil
}

// Revoke flips active to false. It is one-way: a revoked code yields AlreadyRevoked.
func (s *AccessCodeService) Revoke(ctx context.Context, id string) (*model.AccessCode, error) {
	ac, err := s.codeRepo.Revoke(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NotFound("Access code")
	case errors.Is(err, repository.ErrAlreadyRevoked):
		return nil, apperrors.AlreadyRevoked()
	case err != nil:
		return nil, apperrors.Database(err)
	}

	audit.LogContext(ctx, audit.Event{Type: audit.EventCodeRevoked, Code: ac.Code})
	return openCode(s.secrets, ac), nil
}

// AccessCodePage is one page of the admin listing. Total counts every code matching
// the filter, not only the returned items.
type AccessCodePage struct {
	Items []AccessCodeView `json:"items"`
	Total int              `json:"total"`
}

func (s *AccessCodeService) List(ctx context.Context, filter model.AccessCodeFilter) (*AccessCodePage, error) {
	codes, err := s.codeRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	total, err := s.codeRepo.CountFiltered(ctx, filter)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	now := s.now()
	views := make([]AccessCodeView, 0, len(codes))
	for i := range codes {
		ac := openCode(s.secrets, &codes[i])
		views = append(views, AccessCodeView{
			AccessCode: *ac,
			IsExpired:  ac.IsExpired(now),
			IsUsable:   ac.IsUsable(now),
		})
	}
	return &AccessCodePage{Items: views, Total: total}, nil
}

// UpdateCameraInput replaces the surveillance settings of an owner code.
type UpdateCameraInput struct {
	CameraEnabled   bool
	VideoURL        string
	ParcelleConfigs model.ParcelleConfigs
}

func (s *AccessCodeService) UpdateCamera(ctx context.Context, id string, in UpdateCameraInput) (*model.AccessCode, error) {
	current, err := s.codeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if current == nil {
		return nil, apperrors.NotFound("Access code")
	}
	if current.ProfileType != model.ProfileProprietaire {
		return nil, apperrors.InvalidInput("camera_enabled", "surveillance is reserved to PROPRIETAIRE codes")
	}
	for pid := range in.ParcelleConfigs {
		if !slices.Contains(current.ParcelleIDs, pid) {
			return nil, apperrors.InvalidInput("parcelle_configs", fmt.Sprintf("parcel %q is not in parcelle_ids", pid))
		}
	}

	videoURL, configs, err := sealCameraFields(s.secrets, strings.TrimSpace(in.VideoURL), in.ParcelleConfigs)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to protect video url", err)
	}

	updated, err := s.codeRepo.UpdateCamera(ctx, id, model.UpdateCameraParams{
		CameraEnabled:   in.CameraEnabled,
		VideoURL:        videoURL,
		ParcelleConfigs: configs,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Access code")
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}

	audit.LogContext(ctx, audit.Event{
		Type:    audit.EventCameraUpdated,
		Code:    updated.Code,
		Details: map[string]interface{}{"camera_enabled": updated.CameraEnabled},
	})
	return openCode(s.secrets, updated), nil
}

func (s *AccessCodeService) Counts(ctx context.Context) (*model.AccessCodeCounts, error) {
	counts, err := s.codeRepo.Counts(ctx, s.now())
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return counts, nil
}

// dedupe trims ids and drops blanks and repeats, keeping first-seen order.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
