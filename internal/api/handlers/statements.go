package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/dvloznov/creditscore/internal/api/middleware"
	"github.com/dvloznov/creditscore/internal/blob"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/jobs"
	"github.com/dvloznov/creditscore/internal/statement"
	"github.com/rs/zerolog"
)

// StatementService is the statement ingestion surface.
type StatementService interface {
	Ingest(ctx context.Context, req statement.Request) (*statement.Result, error)
	Document(ctx context.Context, statementID string) (*domain.Statement, []byte, error)
}

// StatementsHandler handles statement endpoints.
type StatementsHandler struct {
	svc        StatementService
	businesses BusinessService
	publisher  jobs.Publisher
	maxUpload  int64
	log        zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. A nil publisher
// disables asynchronous ingestion.
func NewStatementsHandler(svc StatementService, businesses BusinessService, publisher jobs.Publisher, maxUpload int64, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		svc:        svc,
		businesses: businesses,
		publisher:  publisher,
		maxUpload:  maxUpload,
		log:        log,
	}
}

// IngestStatement handles POST /api/businesses/{id}/statements. With
// ?async=true the document is queued and 202 is returned with the job id.
func (h *StatementsHandler) IngestStatement(w http.ResponseWriter, r *http.Request) {
	businessID := r.PathValue("id")

	up, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	defer up.body.Close()

	document, err := io.ReadAll(up.body)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		h.enqueue(w, r, businessID, up, document)
		return
	}

	res, err := h.svc.Ingest(r.Context(), statement.Request{
		BusinessID:  businessID,
		Filename:    up.filename,
		ContentType: up.contentType,
		Document:    document,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, res)
}

func (h *StatementsHandler) enqueue(w http.ResponseWriter, r *http.Request, businessID string, up *upload, document []byte) {
	ctx := r.Context()

	if h.publisher == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Asynchronous ingestion is not enabled")
		return
	}
	if len(document) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "A file is required")
		return
	}
	if _, err := h.businesses.Get(ctx, businessID); err != nil {
		writeAppError(w, r, err)
		return
	}

	job := &jobs.IngestStatementJob{
		BusinessID:  businessID,
		Filename:    up.filename,
		ContentType: up.contentType,
		Document:    document,
		RequestedBy: middleware.PrincipalFrom(ctx),
	}

	// The job outlives the request.
	if err := h.publisher.PublishIngestStatement(context.WithoutCancel(ctx), job); err != nil {
		h.log.Error().Err(err).Str("business_id", businessID).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue ingestion job")
		return
	}

	// The worker owns job from here on; only its ID is read.
	h.log.Info().Str("job_id", job.JobID).Str("business_id", businessID).Msg("Ingestion job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"business_id": businessID,
		"status":      string(jobs.JobStatusPending),
	})
}

// DownloadDocument handles GET /api/statements/{id}/document
func (h *StatementsHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	st, data, err := h.svc.Document(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	filename := st.Filename
	if filename == "" {
		filename = blob.FilenameFromURI(st.DocumentURI)
	}
	contentType := st.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(filename)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
