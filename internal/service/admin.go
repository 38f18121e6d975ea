package service

import (
	"context"
	"time"

	"github.com/songon-extension/access-server/internal/audit"
	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/util"
)

const AdminSessionTTL = 24 * time.Hour

// AdminService authenticates the back office and builds its dashboard.
type AdminService struct {
	sessionRepo   repository.AdminSessionRepository
	codeRepo      repository.AccessCodeRepository
	logRepo       repository.AccessLogRepository
	requestRepo   repository.CodeRequestRepository
	passwordHash  string
	sessionSecret string
	now           func() time.Time
}

func NewAdminService(
	sessionRepo repository.AdminSessionRepository,
	codeRepo repository.AccessCodeRepository,
	logRepo repository.AccessLogRepository,
	requestRepo repository.CodeRequestRepository,
	passwordHash, sessionSecret string,
) *AdminService {
	return &AdminService{
		sessionRepo:   sessionRepo,
		codeRepo:      codeRepo,
		logRepo:       logRepo,
		requestRepo:   requestRepo,
		passwordHash:  passwordHash,
		sessionSecret: sessionSecret,
		now:           time.Now,
	}
}

// Login returns an empty token when the password does not match.
func (s *AdminService) Login(ctx context.Context, password string) (string, error) {
	if s.passwordHash == "" || !util.CheckPasswordHash(password, s.passwordHash) {
		return "", nil
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", err
	}

	remoteAddr, userAgent := audit.Origin(ctx)
	_, err = s.sessionRepo.Create(ctx, model.CreateAdminSessionParams{
		TokenHash:  util.HmacSHA256(s.sessionSecret, token),
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
		ExpiresAt:  s.now().Add(AdminSessionTTL),
	})
	if err != nil {
		return "", apperrors.Database(err)
	}

	return token, nil
}

func (s *AdminService) Logout(ctx context.Context, token string) error {
	tokenHash := util.HmacSHA256(s.sessionSecret, token)
	return s.sessionRepo.DeleteByTokenHash(ctx, tokenHash)
}

type Stats struct {
	Codes          model.AccessCodeCounts `json:"codes"`
	AccessLogTotal int                    `json:"access_log_total"`
	UnreadRequests int                    `json:"unread_requests"`
	LiveListeners  int                    `json:"live_listeners"`
}

func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	counts, err := s.codeRepo.Counts(ctx, s.now())
	if err != nil {
		return nil, apperrors.Database(err)
	}

	logStats, err := s.logRepo.Stats(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	unread, err := s.requestRepo.CountUnread(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	return &Stats{
		Codes:          *counts,
		AccessLogTotal: logStats.Total,
		UnreadRequests: unread,
	}, nil
}
