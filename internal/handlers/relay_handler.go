package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/koios/arqia/internal/redesign"
	"github.com/koios/arqia/pkg/models"
	"go.uber.org/zap"
)

// Generator is the part of the redesign service exposed over HTTP
type Generator interface {
	Start(ctx context.Context, image redesign.Image, styleID string) (models.Job, error)
	GenerateBlocking(ctx context.Context, image redesign.Image, styleID string) (redesign.Result, error)
	Status(ctx context.Context, jobID string) (models.Job, error)
	Await(ctx context.Context, jobID string) (models.Job, error)
	Events(ctx context.Context, jobID string) (<-chan models.ProgressEvent, error)
	Cancel(ctx context.Context, jobID string) error
	Styles() []models.StyleDefinition
}

// RelayHandler handles HTTP requests for the generation relay
type RelayHandler struct {
	service      Generator
	logger       *zap.Logger
	validate     *validator.Validate
	maxBodyBytes int64
}

// NewRelayHandler creates a new relay handler
func NewRelayHandler(service Generator, maxBodyBytes int64, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{
		service:      service,
		logger:       logger,
		validate:     validator.New(),
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes registers the relay API routes
func (h *RelayHandler) RegisterRoutes(r chi.Router) {
	r.Get("/styles", h.handleStyles)
	r.Post("/generate", h.handleGenerate)
	r.Post("/generate-sync", h.handleGenerateSync)
	r.Get("/status/{jobId}", h.handleStatus)
	r.Post("/cancel/{jobId}", h.handleCancel)
	r.Get("/ws/{jobId}", h.handleStream)
}

// handleHealth handles GET /health - returns service health status
func (h *RelayHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}

// handleStyles handles GET /styles - returns the style catalog
func (h *RelayHandler) handleStyles(w http.ResponseWriter, r *http.Request) {
	styles := h.service.Styles()
	resp := models.StylesResponse{Styles: make([]models.StyleSummary, 0, len(styles))}
	for _, s := range styles {
		resp.Styles = append(resp.Styles, models.SummaryOf(s))
	}

	writeJSON(w, http.StatusOK, resp)
	h.logger.Debug("Served styles", zap.Int("count", len(resp.Styles)))
}

// handleGenerate handles POST /generate - starts a job, or runs it to
// completion when mode=sync
func (h *RelayHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("mode") == "sync" {
		h.handleGenerateSync(w, r)
		return
	}

	image, styleID, ok := h.decodeGenerate(w, r)
	if !ok {
		return
	}

	job, err := h.service.Start(r.Context(), image, styleID)
	if err != nil {
		h.writeServiceError(w, err, "Generation failed")
		return
	}

	h.logger.Info("Generation started", zap.String("job_id", job.ID), zap.String("style", styleID))
	writeJSON(w, http.StatusOK, models.GenerateResponse{JobID: job.ID, Status: job.State})
}

// handleGenerateSync handles POST /generate-sync - blocks until the image is ready
func (h *RelayHandler) handleGenerateSync(w http.ResponseWriter, r *http.Request) {
	image, styleID, ok := h.decodeGenerate(w, r)
	if !ok {
		return
	}

	result, err := h.service.GenerateBlocking(r.Context(), image, styleID)
	if err != nil {
		h.writeServiceError(w, err, "Generation failed")
		return
	}

	writeJSON(w, http.StatusOK, models.SyncResponse{JobID: result.JobID, ImageURL: result.ImageURL})
}

// handleStatus handles GET /status/{jobId}, blocking when wait=true
func (h *RelayHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	var (
		job models.Job
		err error
	)
	if r.URL.Query().Get("wait") == "true" {
		job, err = h.service.Await(r.Context(), jobID)
	} else {
		job, err = h.service.Status(r.Context(), jobID)
	}
	if err != nil {
		h.writeServiceError(w, err, "Failed to check status")
		return
	}

	writeJSON(w, http.StatusOK, models.StatusFromJob(job))
}

// handleCancel handles POST /cancel/{jobId}
func (h *RelayHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		h.writeServiceError(w, err, "Failed to cancel")
		return
	}

	writeJSON(w, http.StatusOK, models.CancelResponse{Status: models.StateCanceled})
}

// decodeGenerate reads and validates a generate request body
func (h *RelayHandler) decodeGenerate(w http.ResponseWriter, r *http.Request) (redesign.Image, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image too large", "payload_too_large")
			return redesign.Image{}, "", false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "invalid_request")
		return redesign.Image{}, "", false
	}

	if err := h.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Field() == "Style" {
			writeError(w, http.StatusBadRequest, "Invalid style", string(redesign.KindUnknownStyle))
			return redesign.Image{}, "", false
		}
		writeError(w, http.StatusBadRequest, "Image is required", string(redesign.KindInvalidImage))
		return redesign.Image{}, "", false
	}

	image, err := redesign.ParseDataURL(req.Image)
	if err != nil {
		h.writeServiceError(w, err, "Invalid image format")
		return redesign.Image{}, "", false
	}

	return image, req.Style, true
}
