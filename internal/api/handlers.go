package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/refscan/internal/apperr"
	"github.com/starford/refscan/internal/scanservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *scanservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *scanservice.Service) *Handler {
	return &Handler{svc: svc}
}

// writeErr maps domain errors to status codes.
func writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNoReport):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUnknownCategory), errors.Is(err, apperr.ErrUnknownKind):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error("api: "+op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Report handles GET /report. The body is the JSON report of the latest scan.
func (h *Handler) Report(w http.ResponseWriter, _ *http.Request) {
	rep, err := h.svc.Report()
	if err != nil {
		writeErr(w, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// MissingModules handles GET /missing/modules.
func (h *Handler) MissingModules(w http.ResponseWriter, _ *http.Request) {
	mods, err := h.svc.MissingModules()
	if err != nil {
		writeErr(w, "missing modules", err)
		return
	}
	writeJSON(w, http.StatusOK, MissingModulesResponse{Modules: mods, Total: len(mods)})
}

// MissingAssets handles GET /missing/assets?category=.
func (h *Handler) MissingAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.svc.MissingAssets(r.URL.Query().Get("category"))
	if err != nil {
		writeErr(w, "missing assets", err)
		return
	}
	total := 0
	for _, paths := range assets {
		total += len(paths)
	}
	writeJSON(w, http.StatusOK, MissingAssetsResponse{Assets: assets, Total: total})
}

// Missing handles GET /missing?kind=. It lists every unresolved reference
// with its line, optionally limited to imports or assets.
func (h *Handler) Missing(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Missing(r.URL.Query().Get("kind"))
	if err != nil {
		writeErr(w, "missing", err)
		return
	}
	writeJSON(w, http.StatusOK, referencesBody(rows))
}

// MissingEntries handles GET /missing/entries. Unlike the report, entries
// are not de-duplicated and keep the text as written.
func (h *Handler) MissingEntries(w http.ResponseWriter, _ *http.Request) {
	entries, assets, err := h.svc.MissingEntries()
	if err != nil {
		writeErr(w, "missing entries", err)
		return
	}
	if entries == nil {
		entries = []MissingEntry{}
	}
	if assets == nil {
		assets = []MissingAsset{}
	}
	writeJSON(w, http.StatusOK, MissingEntriesResponse{Imports: entries, Assets: assets})
}

// References handles GET /references?target=.
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("target parameter is required"))
		return
	}
	rows, err := h.svc.Importers(target)
	if err != nil {
		writeErr(w, "references", err)
		return
	}
	writeJSON(w, http.StatusOK, referencesBody(rows))
}

// Search handles GET /references/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q parameter is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.svc.Search(q, limit)
	if err != nil {
		writeErr(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, referencesBody(rows))
}

// Scan handles POST /scan. It runs a scan synchronously and returns its counts.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Rescan(r.Context())
	if err != nil {
		writeErr(w, "scan", err)
		return
	}
	writeJSON(w, http.StatusOK, ScanResponse{
		Files:          out.Files,
		References:     out.Report.TotalReferences,
		MissingModules: out.Report.MissingModules,
		MissingAssets:  out.Report.MissingAssets,
		DurationMS:     out.Duration.Milliseconds(),
	})
}

func referencesBody(rows []Reference) ReferencesResponse {
	if rows == nil {
		rows = []Reference{}
	}
	return ReferencesResponse{References: rows, Total: len(rows)}
}
