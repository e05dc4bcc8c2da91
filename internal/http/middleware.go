package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bloodbank/internal/domain"
	"bloodbank/internal/service"
)

// SessionCookie name of the HttpOnly cookie carrying the session token.
const SessionCookie = "bb_session"

type claimsKey struct{}

func withClaims(ctx context.Context, c *service.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func claimsFrom(ctx context.Context) (*service.SessionClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*service.SessionClaims)
	return c, ok && c != nil
}

// sessionToken cookie first, then "Authorization: Bearer".
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// SessionMiddleware rejects requests without a valid session and stores the verified
// claims in the request context.
type SessionMiddleware struct {
	auth   service.AuthService
	logger *zap.Logger
}

func NewSessionMiddleware(auth service.AuthService, logger *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{auth: auth, logger: logger}
}

func (m *SessionMiddleware) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, Fail("not signed in", ""))
			return
		}
		claims, err := m.auth.Verify(r.Context(), token)
		if err != nil {
			if domain.KindOf(err) == domain.KindAuthentication {
				res := Fail(domain.MessageOf(err), "")
				res.Code = ResultSessionExpired
				writeJSON(w, http.StatusUnauthorized, res)
				return
			}
			m.logger.Error("Session verification failed", zap.Error(err))
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

// accessLog wraps the mux with one debug line per request.
func accessLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
