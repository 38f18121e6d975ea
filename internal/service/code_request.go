package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/sse"
	"github.com/songon-extension/access-server/internal/util"
)

type CodeRequestInput struct {
	Nom        string
	Prenom     string
	WhatsApp   string
	ParcelleID string
}

// CodeRequestService collects visitor requests for an access code and notifies the
// back office live feed.
type CodeRequestService struct {
	repo      repository.CodeRequestRepository
	publisher EventPublisher
}

func NewCodeRequestService(repo repository.CodeRequestRepository, publisher EventPublisher) *CodeRequestService {
	return &CodeRequestService{repo: repo, publisher: publisher}
}

func (s *CodeRequestService) Create(ctx context.Context, in CodeRequestInput) (*model.CodeRequest, error) {
	nom := strings.TrimSpace(in.Nom)
	prenom := strings.TrimSpace(in.Prenom)
	if nom == "" {
		return nil, apperrors.MissingRequired("nom")
	}
	if prenom == "" {
		return nil, apperrors.MissingRequired("prenom")
	}
	if len(util.PhoneDigits(in.WhatsApp)) < 8 {
		return nil, apperrors.InvalidInput("whatsapp", "must be a phone number")
	}

	params := model.CreateCodeRequestParams{
		ID:       uuid.NewString(),
		Nom:      nom,
		Prenom:   prenom,
		WhatsApp: strings.TrimSpace(in.WhatsApp),
	}
	if id := strings.TrimSpace(in.ParcelleID); id != "" {
		params.ParcelleID = &id
	}

	req, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	publish(ctx, s.publisher, sse.EventCodeRequest, req)
	return req, nil
}

func (s *CodeRequestService) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]model.CodeRequest, error) {
	requests, err := s.repo.List(ctx, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return requests, nil
}

func (s *CodeRequestService) MarkRead(ctx context.Context, id string) error {
	err := s.repo.MarkRead(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Code request")
	}
	if err != nil {
		return apperrors.Database(err)
	}
	return nil
}

func (s *CodeRequestService) CountUnread(ctx context.Context) (int, error) {
	n, err := s.repo.CountUnread(ctx)
	if err != nil {
		return 0, apperrors.Database(err)
	}
	return n, nil
}
