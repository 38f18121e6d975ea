package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/songon-extension/access-server/internal/audit"
	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/service"
)

// IPRateLimitMiddleware applies one policy per client address. Mount it after chi's
// RealIP so RemoteAddr is the client.
type IPRateLimitMiddleware struct {
	limiter *service.RateLimiter
	policy  service.RatePolicy
}

func NewIPRateLimitMiddleware(limiter *service.RateLimiter, policy service.RatePolicy) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{limiter: limiter, policy: policy}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verdict := m.limiter.Allow(r.Context(), m.policy, r.RemoteAddr)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.policy.Max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(verdict.Remaining))

		if !verdict.Allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"scope": m.policy.Scope},
			})
			retryAfter := int(math.Ceil(time.Until(verdict.ResetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
