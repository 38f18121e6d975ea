// Package audit writes the security log: denied code attempts and admin actions.
// It is separate from the client-facing access log, which only records granted access.
package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/util"
)

type EventType string

const (
	EventAccessDenied    EventType = "access_denied"
	EventCodeIssued      EventType = "code_issued"
	EventCodeRevoked     EventType = "code_revoked"
	EventCameraUpdated   EventType = "camera_updated"
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailure    EventType = "login_failure"
	EventLogout          EventType = "logout"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventCSRFFailure     EventType = "csrf_failure"
	EventAuthFailure     EventType = "auth_failure"
	EventDocumentUpload  EventType = "document_upload"
	EventDocumentDelete  EventType = "document_delete"
)

type Event struct {
	Type       EventType
	Code       string
	ParcelleID string
	Reason     string
	IP         string
	UserAgent  string
	Details    map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.Code != "" {
		logger = logger.With().Str("code", util.MaskCode(event.Code)).Logger()
	}
	if event.ParcelleID != "" {
		logger = logger.With().Str("parcelle_id", event.ParcelleID).Logger()
	}
	if event.Reason != "" {
		logger = logger.With().Str("reason", event.Reason).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	if event.Type == EventAccessDenied || event.Type == EventLoginFailure {
		logEvent = logger.Warn()
	}
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

type ctxKey struct{}

// WithRequest stores the caller's address and agent so services deep in the call
// chain can log security events without an *http.Request.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, ctxKey{}, Event{IP: getClientIP(r), UserAgent: r.UserAgent()})
}

// Origin returns the caller address and agent recorded by WithRequest.
func Origin(ctx context.Context) (ip, userAgent string) {
	origin, _ := ctx.Value(ctxKey{}).(Event)
	return origin.IP, origin.UserAgent
}

// LogContext is Log with IP and user agent taken from WithRequest when present.
func LogContext(ctx context.Context, event Event) {
	if origin, ok := ctx.Value(ctxKey{}).(Event); ok {
		if event.IP == "" {
			event.IP = origin.IP
		}
		if event.UserAgent == "" {
			event.UserAgent = origin.UserAgent
		}
	}
	Log(ctx, event)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
