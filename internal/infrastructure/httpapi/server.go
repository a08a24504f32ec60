// Package httpapi exposes the control API: campaign runs, source tests, CMS
// verification, ledger management, live run logs and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/events"
	"ArticlesPublisher/internal/ports"
	"ArticlesPublisher/internal/usecase"
)

// RunController starts and reports campaign runs.
type RunController interface {
	Trigger(ctx context.Context, campaignID string) (usecase.RunInfo, error)
	Running() (usecase.RunInfo, bool)
}

// RecordService manages ledger entries.
type RecordService interface {
	List(ctx context.Context, campaignID string) ([]domain.ProcessedRecord, error)
	Sync(ctx context.Context, campaignID string) (usecase.SyncResult, error)
	Delete(ctx context.Context, id string, deleteRemote bool) error
}

// SourceTester runs discovery for an arbitrary URL.
type SourceTester interface {
	Detect(ctx context.Context, sourceURL string) ([]domain.CandidateRef, string, error)
}

// Deps wires the handlers.
type Deps struct {
	Catalog  ports.CampaignCatalog
	Runs     RunController
	Records  RecordService
	Sources  SourceTester
	CMS      ports.CMSFactory
	Logs     *events.Broadcaster
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Handler serves the control API.
type Handler struct {
	deps   Deps
	logger *slog.Logger
	router chi.Router
}

// NewHandler builds the router.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	h := &Handler{deps: deps, logger: deps.Logger}
	h.router = h.routes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(h.requestLogger)

	mux.Get("/healthz", h.health)
	mux.Handle("/metrics", promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{}))
	mux.Get("/ws/logs/{runID}", h.streamLogs)

	mux.Route("/api/v1", func(r chi.Router) {
		r.Post("/sources/test", h.testSource)
		r.Get("/runs/current", h.currentRun)
		r.Delete("/records/{recordID}", h.deleteRecord)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.listCampaigns)
			r.Route("/{campaignID}", func(r chi.Router) {
				r.Get("/", h.getCampaign)
				r.Post("/run", h.runCampaign)
				r.Post("/cms/verify", h.verifyCMS)
				r.Get("/records", h.listRecords)
				r.Post("/records/sync", h.syncRecords)
			})
		})
	})
	return mux
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.deps.Catalog.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]campaignView, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, newCampaignView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": out})
}

func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := h.deps.Catalog.Get(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCampaignView(campaign))
}

func (h *Handler) runCampaign(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.Runs.Trigger(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newRunView(info))
}

func (h *Handler) currentRun(w http.ResponseWriter, _ *http.Request) {
	info, ok := h.deps.Runs.Running()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"running": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"running": true, "run": newRunView(info)})
}

func (h *Handler) verifyCMS(w http.ResponseWriter, r *http.Request) {
	campaign, err := h.deps.Catalog.Get(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	categories, err := h.deps.CMS(campaign.CMS).VerifyConnection(r.Context())
	if err != nil {
		h.logger.Warn("cms verification failed", "campaign_id", campaign.ID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"connected": false, "error": err.Error()})
		return
	}
	out := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryView{ID: c.ID, Name: c.Name, Slug: c.Slug})
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": true, "categories": out})
}

type sourceTestRequest struct {
	URL string `json:"url"`
}

func (h *Handler) testSource(w http.ResponseWriter, r *http.Request) {
	var req sourceTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"url\": \"...\"}")
		return
	}

	refs, method, err := h.deps.Sources.Detect(r.Context(), req.URL)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]candidateView, 0, len(refs))
	for _, ref := range refs {
		out = append(out, candidateView{URL: ref.URL, ObservedAt: ref.ObservedAt, Title: ref.Title, ImageURL: ref.ImageURL})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":      len(out) > 0,
		"method":     method,
		"count":      len(out),
		"candidates": out,
	})
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.deps.Records.List(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]recordView, 0, len(records))
	for _, rec := range records {
		out = append(out, newRecordView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (h *Handler) syncRecords(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Records.Sync(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil && errors.Is(err, domain.ErrNotFound) && result.Checked == 0 {
		h.fail(w, err)
		return
	}
	body := map[string]any{"checked": result.Checked, "updated": result.Updated}
	if err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	remote := r.URL.Query().Get("remote") == "true"
	if err := h.deps.Records.Delete(r.Context(), chi.URLParam(r, "recordID"), remote); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps domain errors onto status codes.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrFetch), errors.Is(err, domain.ErrParse):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
