package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/koios/arqia/internal/redesign"
	"github.com/koios/arqia/pkg/models"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, models.ErrorResponse{Error: message, Code: code})
}

// statusFor maps an error kind to the HTTP status and public message
func statusFor(err error, fallback string) (int, string) {
	detail := redesign.DetailOf(err)

	switch redesign.KindOf(err) {
	case redesign.KindUnknownStyle:
		return http.StatusBadRequest, "Invalid style"
	case redesign.KindInvalidImage:
		return http.StatusBadRequest, detail
	case redesign.KindNotFound:
		return http.StatusNotFound, "Job not found"
	case redesign.KindCanceled:
		return http.StatusConflict, "Generation was canceled"
	case redesign.KindTimedOut:
		return http.StatusGatewayTimeout, "Generation timed out"
	case redesign.KindSubmissionFailed, redesign.KindGenerationFailed:
		if detail == "" {
			detail = fallback
		}
		return http.StatusInternalServerError, detail
	default:
		return http.StatusInternalServerError, fallback
	}
}

func (h *RelayHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	status, message := statusFor(err, fallback)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		h.logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}

	code := string(redesign.KindOf(err))
	writeError(w, status, message, code)
}
