package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/refscan/internal/scanservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *scanservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/report", h.Report)
	r.Post("/scan", h.Scan)

	r.Get("/missing", h.Missing)
	r.Get("/missing/entries", h.MissingEntries)
	r.Get("/missing/modules", h.MissingModules)
	r.Get("/missing/assets", h.MissingAssets)

	r.Get("/references", h.References)
	r.Get("/references/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
