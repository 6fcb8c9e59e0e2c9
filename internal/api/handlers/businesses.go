package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dvloznov/creditscore/internal/api/middleware"
	"github.com/dvloznov/creditscore/internal/businesses"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/rs/zerolog"
)

// BusinessService is the business lookup and creation surface.
type BusinessService interface {
	Create(ctx context.Context, req businesses.CreateRequest) (*domain.Business, error)
	Get(ctx context.Context, id string) (*domain.Business, error)
}

// BusinessesHandler handles business endpoints.
type BusinessesHandler struct {
	svc BusinessService
	log zerolog.Logger
}

// NewBusinessesHandler creates a new businesses handler.
func NewBusinessesHandler(svc BusinessService, log zerolog.Logger) *BusinessesHandler {
	return &BusinessesHandler{svc: svc, log: log}
}

// CreateBusiness handles POST /api/businesses
func (h *BusinessesHandler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req businesses.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, b)
}

// GetBusiness handles GET /api/businesses/{id}
func (h *BusinessesHandler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, b)
}
