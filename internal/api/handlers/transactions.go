package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/dvloznov/creditscore/internal/api/middleware"
	"github.com/dvloznov/creditscore/internal/bulkupload"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/rs/zerolog"
)

// UploadService is the bulk upload surface.
type UploadService interface {
	UploadFile(ctx context.Context, businessID, filename, contentType string, r io.Reader) (*bulkupload.Result, error)
	ListTransactions(ctx context.Context, businessID string) ([]domain.Transaction, error)
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	svc       UploadService
	maxUpload int64
	log       zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. maxUpload caps
// request bodies in bytes.
func NewTransactionsHandler(svc UploadService, maxUpload int64, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, maxUpload: maxUpload, log: log}
}

// UploadTransactions handles POST /api/businesses/{id}/transactions/upload.
// The batch arrives either as a multipart "file" part or as the raw body,
// whose format comes from Content-Type or the filename query parameter.
func (h *TransactionsHandler) UploadTransactions(w http.ResponseWriter, r *http.Request) {
	businessID := r.PathValue("id")

	up, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	defer up.body.Close()

	res, err := h.svc.UploadFile(r.Context(), businessID, up.filename, up.contentType, up.body)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"created": res.Created,
	})
}

// ListTransactions handles GET /api/businesses/{id}/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.ListTransactions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

type upload struct {
	filename    string
	contentType string
	body        io.ReadCloser
}

var errMissingFile = errors.New("file is required")

// readUpload returns the uploaded document from a multipart "file" part or
// from the raw request body.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*upload, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errMissingFile
		}
		if err != nil {
			return nil, err
		}
		return &upload{
			filename:    header.Filename,
			contentType: header.Header.Get("Content-Type"),
			body:        file,
		}, nil
	}

	if r.ContentLength == 0 {
		return nil, errMissingFile
	}
	return &upload{
		filename:    r.URL.Query().Get("filename"),
		contentType: mediaType,
		body:        r.Body,
	}, nil
}

func writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Upload too large")
	case errors.Is(err, errMissingFile):
		middleware.WriteError(w, http.StatusBadRequest, "A file is required")
	default:
		middleware.WriteError(w, http.StatusBadRequest, "Invalid upload")
	}
}
