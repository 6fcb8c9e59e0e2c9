package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dvloznov/creditscore/internal/api/middleware"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/scores"
	"github.com/rs/zerolog"
)

// ScoreService is the score read surface.
type ScoreService interface {
	GetScore(ctx context.Context, req scores.Request) (*domain.CreditScore, error)
	GetRiskTier(ctx context.Context, businessID, requestedBy string) (domain.RiskTier, error)
	ScoreForStatement(ctx context.Context, statementID string, refresh bool, requestedBy string) (*scores.StatementScore, error)
	AuditTrail(ctx context.Context, businessID string) ([]domain.ScoreAuditEntry, error)
}

// ScoresHandler handles score endpoints.
type ScoresHandler struct {
	svc ScoreService
	log zerolog.Logger
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(svc ScoreService, log zerolog.Logger) *ScoresHandler {
	return &ScoresHandler{svc: svc, log: log}
}

// GetScore handles GET /api/businesses/{id}/score?refresh=true
func (h *ScoresHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	refresh, ok := parseRefresh(w, r)
	if !ok {
		return
	}

	score, err := h.svc.GetScore(r.Context(), scores.Request{
		BusinessID:  r.PathValue("id"),
		Refresh:     refresh,
		RequestedBy: middleware.PrincipalFrom(r.Context()),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, score)
}

// GetRiskTier handles GET /api/businesses/{id}/risk
func (h *ScoresHandler) GetRiskTier(w http.ResponseWriter, r *http.Request) {
	businessID := r.PathValue("id")

	tier, err := h.svc.GetRiskTier(r.Context(), businessID, middleware.PrincipalFrom(r.Context()))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"business_id": businessID,
		"risk_tier":   string(tier),
	})
}

// GetStatementScore handles GET /api/statements/{id}/score
func (h *ScoresHandler) GetStatementScore(w http.ResponseWriter, r *http.Request) {
	refresh, ok := parseRefresh(w, r)
	if !ok {
		return
	}

	res, err := h.svc.ScoreForStatement(r.Context(), r.PathValue("id"), refresh, middleware.PrincipalFrom(r.Context()))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// GetAuditTrail handles GET /api/businesses/{id}/audit
func (h *ScoresHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	businessID := r.PathValue("id")

	entries, err := h.svc.AuditTrail(r.Context(), businessID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.ScoreAuditEntry{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"business_id": businessID,
		"entries":     entries,
		"count":       len(entries),
	})
}

func parseRefresh(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("refresh")
	if raw == "" {
		return false, true
	}
	refresh, err := strconv.ParseBool(raw)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "refresh must be true or false")
		return false, false
	}
	return refresh, true
}
