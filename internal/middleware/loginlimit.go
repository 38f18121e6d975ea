package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/songon-extension/access-server/internal/audit"
	apperrors "github.com/songon-extension/access-server/internal/errors"
)

const (
	loginMaxAttempts   = 5
	loginWindow        = time.Minute
	loginCleanupPeriod = 5 * time.Minute
)

type loginWindowState struct {
	count int
	start time.Time
}

// LoginRateLimiter is a fixed-window limiter for the admin login form. It is kept in
// process memory so login keeps working when Redis is down.
type LoginRateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*loginWindowState
	lastCleanup time.Time
	now         func() time.Time
}

func NewLoginRateLimiter() *LoginRateLimiter {
	return &LoginRateLimiter{
		windows:     make(map[string]*loginWindowState),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (l *LoginRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) >= loginCleanupPeriod {
		for key, w := range l.windows {
			if now.Sub(w.start) > loginWindow {
				delete(l.windows, key)
			}
		}
		l.lastCleanup = now
	}

	w, ok := l.windows[ip]
	if !ok || now.Sub(w.start) > loginWindow {
		l.windows[ip] = &loginWindowState{count: 1, start: now}
		return true
	}
	if w.count >= loginMaxAttempts {
		return false
	}
	w.count++
	return true
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r.RemoteAddr) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"scope": "admin_login"},
			})
			w.Header().Set("Retry-After", "60")
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
