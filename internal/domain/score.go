package domain

import "time"

// RiskTier is the coarse classification derived from a score.
type RiskTier string

const (
	RiskLow    RiskTier = "Low"
	RiskMedium RiskTier = "Medium"
	RiskHigh   RiskTier = "High"
)

// CreditScore is the cached latest score for a business. There is at most
// one per business and it is overwritten on every recomputation.
type CreditScore struct {
	BusinessID string    `json:"business_id"`
	Score      int       `json:"score"`
	RiskTier   RiskTier  `json:"risk_tier"`
	Version    string    `json:"version"`
	ComputedAt time.Time `json:"computed_at"`
}

// ScoreAuditEntry records one computation. Entries are append-only.
type ScoreAuditEntry struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Score       int       `json:"score"`
	RiskTier    RiskTier  `json:"risk_tier"`
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	RequestedBy string    `json:"requested_by"`
	StatementID string    `json:"statement_id,omitempty"`
}
