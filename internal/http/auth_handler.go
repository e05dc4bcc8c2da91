package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"bloodbank/internal/service"
)

// AuthHandler login / logout / current session
type AuthHandler struct {
	auth      service.AuthService
	hospitals *service.HospitalService
	secure    bool
	logger    *zap.Logger
}

// NewAuthHandler secure sets the Secure flag on the session cookie (off in development).
func NewAuthHandler(auth service.AuthService, hospitals *service.HospitalService, secure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, hospitals: hospitals, secure: secure, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body", err.Error()))
		return
	}
	resp, err := h.auth.Login(r.Context(), service.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    resp.Token,
		Path:     "/",
		Expires:  resp.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Logout revokes the token when one is present and always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.logger.Warn("Logout failed", zap.Error(err))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

type meResponse struct {
	AdminID      int64  `json:"admin_id"`
	HospitalID   int64  `json:"hospital_id"`
	HospitalName string `json:"hospital_name"`
	Username     string `json:"username"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	writeJSON(w, http.StatusOK, Ok(meResponse{
		AdminID:      claims.AdminID,
		HospitalID:   claims.HospitalID,
		HospitalName: h.hospitals.HospitalName(r.Context(), claims.HospitalID),
		Username:     claims.Username,
	}))
}
