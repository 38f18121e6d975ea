package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/audit"
	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/repository"
	"github.com/songon-extension/access-server/internal/util"
)

type contextKey string

const (
	AdminSessionCookie = "songon_admin_session"
	SessionMaxAge      = 24 * time.Hour
	AdminCookiePath    = "/admin"
)

const AdminSessionContextKey contextKey = "adminSession"

func GetAdminSession(ctx context.Context) *model.AdminSession {
	if session, ok := ctx.Value(AdminSessionContextKey).(*model.AdminSession); ok {
		return session
	}
	return nil
}

// AdminSessionMiddleware guards the back office. The cookie carries a random token;
// only its HMAC is stored.
type AdminSessionMiddleware struct {
	sessionRepo       repository.AdminSessionRepository
	adminPasswordHash string
	sessionSecret     string
	now               func() time.Time
}

func NewAdminSessionMiddleware(
	sessionRepo repository.AdminSessionRepository,
	adminPasswordHash, sessionSecret string,
) *AdminSessionMiddleware {
	return &AdminSessionMiddleware{
		sessionRepo:       sessionRepo,
		adminPasswordHash: adminPasswordHash,
		sessionSecret:     sessionSecret,
		now:               time.Now,
	}
}

func (m *AdminSessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.adminPasswordHash == "" {
			writeError(w, apperrors.Forbidden("Administration non configurée"))
			return
		}

		cookie, err := r.Cookie(AdminSessionCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, apperrors.Unauthorized("Session requise"))
			return
		}

		tokenHash := util.HmacSHA256(m.sessionSecret, cookie.Value)
		session, err := m.sessionRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("admin session middleware: database error")
			writeError(w, apperrors.Database(err))
			return
		}

		if session == nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure, Reason: "unknown_session"})
			writeError(w, apperrors.Unauthorized("Session expirée"))
			return
		}
		if session.Expired(m.now()) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure, Reason: "expired_session"})
			writeError(w, apperrors.Unauthorized("Session expirée"))
			return
		}

		ctx := context.WithValue(r.Context(), AdminSessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    token,
		Path:     AdminCookiePath,
		MaxAge:   int(SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    "",
		Path:     AdminCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
