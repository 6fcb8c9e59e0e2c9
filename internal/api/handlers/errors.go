package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/creditscore/internal/api/middleware"
	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/bulkupload"
	"github.com/dvloznov/creditscore/internal/logger"
)

// statusFor maps an error kind to its HTTP status. This is the only place
// kinds become status codes.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUpstream:
		return http.StatusBadGateway
	case apperr.KindExtraction, apperr.KindNoUsableRows:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError renders err with the status for its kind. Row-level upload
// failures are listed individually; internal failures hide their message.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Request failed")
	} else {
		log.Info().Err(err).Str("kind", string(kind)).Msg("Request rejected")
	}

	var batch *bulkupload.BatchError
	if errors.As(err, &batch) {
		middleware.WriteJSON(w, status, map[string]interface{}{
			"errors": batch.Rows(),
		})
		return
	}

	msg := apperr.Message(err)
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	middleware.WriteJSON(w, status, map[string]string{
		"error": msg,
		"kind":  string(kind),
	})
}
