package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/alerts"
	"github.com/azure/mentions-monitor/internal/analyzer"
	"github.com/azure/mentions-monitor/internal/discovery"
	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/scraper"
)

// CycleRunner runs monitoring cycles
type CycleRunner interface {
	RunCycle(ctx context.Context) (int, error)
	Trigger()
}

type Discoverer interface {
	Discover(ctx context.Context, profileID string) (*discovery.Result, error)
}

type Scraper interface {
	Scrape(ctx context.Context, sourceID string) (*scraper.Result, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, rawContentID string, generateEmbedding bool) (*analyzer.Result, error)
}

type AlertGenerator interface {
	GenerateAlert(ctx context.Context, req alerts.Request) (*alerts.Result, error)
}

// Handler exposes every pipeline stage over HTTP
type Handler struct {
	Cycles    CycleRunner
	Discovery Discoverer
	Scraper   Scraper
	Analyzer  Analyzer
	Alerts    AlertGenerator
	Metrics   *monitoring.Metrics
}

// Router builds the mux router
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/metrics", h.metrics).Methods(http.MethodGet)
	router.HandleFunc("/trigger", h.trigger).Methods(http.MethodPost)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/cycle", h.runCycle).Methods(http.MethodPost)
	v1.HandleFunc("/discover", h.discover).Methods(http.MethodPost)
	v1.HandleFunc("/scrape", h.scrape).Methods(http.MethodPost)
	v1.HandleFunc("/analyze", h.analyze).Methods(http.MethodPost)
	v1.HandleFunc("/alerts", h.generateAlert).Methods(http.MethodPost)

	return router
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.Metrics.GetMetrics()))
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	h.Cycles.Trigger()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Monitoring triggered successfully"})
}

func (h *Handler) runCycle(w http.ResponseWriter, r *http.Request) {
	processed, err := h.Cycles.RunCycle(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"message":           "Monitoring cycle completed",
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"profilesProcessed": processed,
	})
}

func (h *Handler) discover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileID string `json:"profileId"`
	}
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Discovery.Discover(r.Context(), req.ProfileID)
	if err != nil {
		writeError(w, err)
		return
	}
	added := result.AddedSources
	if added == nil {
		added = []models.DataSource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Source discovery completed",
		"addedSources": added,
	})
}

func (h *Handler) scrape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceID string `json:"sourceId"`
	}
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Scraper.Scrape(r.Context(), req.SourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	message := "Content stored"
	if result.Duplicate {
		message = "Content unchanged"
	}
	body := map[string]any{
		"success":     true,
		"message":     message,
		"contentId":   result.ContentID,
		"contentHash": result.ContentHash,
		"duplicate":   result.Duplicate,
	}
	if result.SnapshotURL != "" {
		body["snapshotUrl"] = result.SnapshotURL
	}
	if result.ScreenshotURL != "" {
		body["screenshotUrl"] = result.ScreenshotURL
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RawContentID      string `json:"rawContentId"`
		GenerateEmbedding *bool  `json:"generateEmbedding"`
	}
	if !decode(w, r, &req) {
		return
	}
	// embeddings are on unless the caller opts out
	generateEmbedding := req.GenerateEmbedding == nil || *req.GenerateEmbedding

	result, err := h.Analyzer.Analyze(r.Context(), req.RawContentID, generateEmbedding)
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{
		"success":        true,
		"insightId":      result.InsightID,
		"alertGenerated": result.AlertGenerated,
		"summary":        result.Summary,
	}
	if result.AlertID != "" {
		body["alertId"] = result.AlertID
	}
	if result.AlreadyProcessed {
		body["message"] = "Content already processed"
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) generateAlert(w http.ResponseWriter, r *http.Request) {
	var req alerts.Request
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Alerts.GenerateAlert(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"alertId":          result.AlertID,
		"notificationSent": result.NotificationSent,
		"channels":         result.Channels,
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// StatusCode maps pipeline errors to HTTP status codes
func StatusCode(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		logrus.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]any{"success": false, "message": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}
