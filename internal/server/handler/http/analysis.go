package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/middleware"
	"github.com/parseldeger/imar/internal/models"
	"github.com/parseldeger/imar/internal/service"
)

// Messages shown when the caller is out of credits.
const (
	accountQuotaMessage   = "Krediniz bitti. Lütfen kredi satın alın."
	anonymousQuotaMessage = "Ücretsiz kullanım hakkınız dolmuştur. Lütfen giriş yapınız."
)

// AnalysisService defines the pipeline operations used by AnalysisHandler.
type AnalysisService interface {
	// Analyze runs a billed analysis of p for id.
	Analyze(ctx context.Context, id models.Identity, p models.Property) (*service.AnalysisOutcome, error)
	// Credits returns the remaining credits of id.
	Credits(ctx context.Context, id models.Identity) (int, error)
}

// AnalysisHandler serves the analysis and credit endpoints.
type AnalysisHandler struct {
	AnalysisService AnalysisService
	Log             *zap.Logger
}

// Analyze handles POST /api/analyze-property.
//
// Responses: 200 with {analysis, remaining_credits, search_query}; 403 when
// the caller is out of credits; 422 for a malformed body or missing fields;
// 500 otherwise.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.Log.Error("analyze called without identity middleware")
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	var p models.Property
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	out, err := h.AnalysisService.Analyze(r.Context(), id, p)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, out)
	case errors.Is(err, service.ErrValidation):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrQuotaExhausted):
		msg := anonymousQuotaMessage
		if id.Authenticated() {
			msg = accountQuotaMessage
		}
		writeDetail(w, http.StatusForbidden, msg)
	default:
		h.Log.Error("analysis failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Analiz hatası")
	}
}

// Credits handles GET /api/credits.
func (h *AnalysisHandler) Credits(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	remaining, err := h.AnalysisService.Credits(r.Context(), id)
	if err != nil {
		h.Log.Error("credits lookup failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"remaining_credits": remaining,
		"is_authenticated":  id.Authenticated(),
	})
}
