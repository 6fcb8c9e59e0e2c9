// Package api exposes the scoring services over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/creditscore/internal/api/handlers"
	"github.com/dvloznov/creditscore/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the resource handlers the router dispatches to. A nil
// Jobs handler leaves the job routes unregistered.
type Handlers struct {
	Businesses   *handlers.BusinessesHandler
	Transactions *handlers.TransactionsHandler
	Statements   *handlers.StatementsHandler
	Scores       *handlers.ScoresHandler
	Jobs         *handlers.JobsHandler
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Businesses
	mux.HandleFunc("POST /api/businesses", h.Businesses.CreateBusiness)
	mux.HandleFunc("GET /api/businesses/{id}", h.Businesses.GetBusiness)

	// Transactions
	mux.HandleFunc("POST /api/businesses/{id}/transactions/upload", h.Transactions.UploadTransactions)
	mux.HandleFunc("GET /api/businesses/{id}/transactions", h.Transactions.ListTransactions)

	// Statements
	mux.HandleFunc("POST /api/businesses/{id}/statements", h.Statements.IngestStatement)
	mux.HandleFunc("GET /api/statements/{id}/document", h.Statements.DownloadDocument)

	// Scores
	mux.HandleFunc("GET /api/businesses/{id}/score", h.Scores.GetScore)
	mux.HandleFunc("GET /api/businesses/{id}/risk", h.Scores.GetRiskTier)
	mux.HandleFunc("GET /api/businesses/{id}/audit", h.Scores.GetAuditTrail)
	mux.HandleFunc("GET /api/statements/{id}/score", h.Scores.GetStatementScore)

	// Jobs
	if h.Jobs != nil {
		mux.HandleFunc("GET /api/jobs", h.Jobs.ListJobs)
		mux.HandleFunc("GET /api/jobs/{id}", h.Jobs.GetJob)
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Principal,
		middleware.Logger(log),
		middleware.CORS,
	)
}
