package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router http.ServeMux with per-route method checks.
type Router struct {
	mux     *http.ServeMux
	session *SessionMiddleware
	logger  *zap.Logger
}

func NewRouter(session *SessionMiddleware, logger *zap.Logger) *Router {
	return &Router{
		mux:     http.NewServeMux(),
		session: session,
		logger:  logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	accessLog(r.logger, r.mux).ServeHTTP(w, req)
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", method(http.MethodGet, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok("ok"))
	}))
}

func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.Handle("/auth/api/v1/login", method(http.MethodPost, h.Login))
	r.Handle("/auth/api/v1/logout", method(http.MethodPost, h.Logout))
	r.Handle("/auth/api/v1/me", method(http.MethodGet, r.session.Require(h.Me)))
}

func (r *Router) RegisterHospitalRoutes(h *HospitalHandler) {
	r.Handle("/api/v1/hospitals", method(http.MethodGet, r.session.Require(h.List)))
}

func (r *Router) RegisterSurplusRoutes(h *SurplusHandler) {
	r.Handle("/api/v1/surplus/alerts", method(http.MethodGet, r.session.Require(h.Alerts)))
	r.Handle("/api/v1/surplus/needing", method(http.MethodGet, r.session.Require(h.Needing)))
	r.Handle("/api/v1/surplus/summary", method(http.MethodGet, r.session.Require(h.Summary)))
	r.Handle("/api/v1/inventory/buckets", method(http.MethodGet, r.session.Require(h.Buckets)))
}

func (r *Router) RegisterDonationRoutes(h *DonationHandler) {
	r.Handle("/api/v1/donations", r.session.Require(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.Search(w, req)
		case http.MethodPost:
			h.Create(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	r.Handle("/api/v1/donations/export", method(http.MethodGet, r.session.Require(h.Export)))
	// {component}/{bagId}[/soft-delete|/restore]
	r.Handle("/api/v1/donations/", r.session.Require(h.Item))
}
