// Package businesses creates and looks up the businesses that are scored.
package businesses

import (
	"context"
	"strings"
	"time"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CreateRequest is the input for a new business. ID is optional; one is
// generated when empty.
type CreateRequest struct {
	ID                 string `json:"id" validate:"omitempty,max=64,excludesall=/ "`
	Name               string `json:"name" validate:"required,max=255"`
	RegistrationNumber string `json:"registration_number" validate:"max=128"`
	Industry           string `json:"industry" validate:"max=128"`
	Country            string `json:"country" validate:"max=64"`
	City               string `json:"city" validate:"max=128"`
}

// Service manages businesses.
type Service struct {
	repo     store.BusinessRepository
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a business service. A nil now uses time.Now.
func NewService(repo store.BusinessRepository, log zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		now:      now,
	}
}

// Create validates req and stores a new business. An existing ID is a
// conflict.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Business, error) {
	const op = "businesses.Create"

	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, describe(err), err)
	}

	b := &domain.Business{
		ID:                 req.ID,
		Name:               req.Name,
		RegistrationNumber: strings.TrimSpace(req.RegistrationNumber),
		Industry:           strings.TrimSpace(req.Industry),
		Country:            strings.TrimSpace(req.Country),
		City:               strings.TrimSpace(req.City),
		CreatedAt:          s.now().UTC(),
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	if err := s.repo.CreateBusiness(ctx, b); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindPersistence, op, "creating business", err)
	}

	s.log.Info().Str("business_id", b.ID).Msg("Business created")
	return b, nil
}

// Get returns the business or a not-found error.
func (s *Service) Get(ctx context.Context, id string) (*domain.Business, error) {
	const op = "businesses.Get"

	b, err := s.repo.GetBusiness(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "loading business", err)
	}
	if b == nil {
		return nil, apperr.Newf(apperr.KindNotFound, op, "business %s not found", id)
	}
	return b, nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid business"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	if fe.Field() == "RegistrationNumber" {
		field = "registration_number"
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}
