package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/flemzord/gasbox/internal/security"
	"github.com/flemzord/gasbox/internal/telemetry"
)

// authGuard protects the MCP endpoint and the admin routes. Only failed
// attempts consume tokens of the limiter's auth bucket, so an authenticated
// client is never throttled here and a flood of bad credentials cannot lock
// it out.
type authGuard struct {
	cfg     AuthConfig
	audit   *security.AuditLogger
	limiter *security.RateLimiter
	metrics *telemetry.Metrics
}

func (a *authGuard) challenge() string {
	var schemes []string
	if a.cfg.BearerToken != "" {
		schemes = append(schemes, `Bearer realm="gasbox"`)
	}
	if a.cfg.BasicUser != "" && a.cfg.BasicPass != "" {
		schemes = append(schemes, `Basic realm="gasbox"`)
	}
	return strings.Join(schemes, ", ")
}

// authenticate reports the scheme that matched, or "" when none did.
func (a *authGuard) authenticate(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && a.cfg.BearerToken != "" {
		if constantTimeEqual(token, a.cfg.BearerToken) {
			return "bearer"
		}
	}
	if a.cfg.BasicUser != "" && a.cfg.BasicPass != "" {
		user, pass, ok := r.BasicAuth()
		// Evaluate both comparisons so timing does not reveal which half failed.
		userOK := constantTimeEqual(user, a.cfg.BasicUser)
		passOK := constantTimeEqual(pass, a.cfg.BasicPass)
		if ok && userOK && passOK {
			return "basic"
		}
	}
	return ""
}

func (a *authGuard) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if scheme := a.authenticate(r); scheme != "" {
			a.record(security.EventAuthSuccess, r, scheme)
			next.ServeHTTP(w, r)
			return
		}

		if err := a.limiter.Allow(security.KindAuth); err != nil {
			a.metrics.RateLimited(security.KindAuth)
			a.record(security.EventRateLimit, r, "too many failed authentication attempts")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		detail := "invalid credentials"
		if r.Header.Get("Authorization") == "" {
			detail = "missing authorization header"
		}
		a.record(security.EventAuthFailure, r, detail)
		w.Header().Set("WWW-Authenticate", a.challenge())
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func (a *authGuard) record(typ security.EventType, r *http.Request, detail string) {
	if a.audit == nil {
		return
	}
	a.audit.Log(security.AuditEvent{
		Type:   typ,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
