package postgres

import (
	"time"

	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/shopspring/decimal"
)

type businessRow struct {
	ID                 string    `gorm:"primaryKey;size:64"`
	Name               string    `gorm:"size:255;not null"`
	RegistrationNumber string    `gorm:"size:128"`
	Industry           string    `gorm:"size:128"`
	Country            string    `gorm:"size:64"`
	City               string    `gorm:"size:128"`
	CreatedAt          time.Time `gorm:"not null"`
}

func (businessRow) TableName() string { return "businesses" }

type transactionRow struct {
	ID           string           `gorm:"primaryKey;size:36"`
	BusinessID   string           `gorm:"size:64;not null;uniqueIndex:idx_transactions_business_reference,priority:1;index:idx_transactions_business_date,priority:1"`
	Date         time.Time        `gorm:"type:date;not null;index:idx_transactions_business_date,priority:2"`
	Description  string           `gorm:"size:1024;not null"`
	Amount       decimal.Decimal  `gorm:"type:numeric(18,2);not null"`
	Type         string           `gorm:"size:16;not null"`
	BalanceAfter *decimal.Decimal `gorm:"type:numeric(18,2)"`
	Reference    string           `gorm:"size:255;not null;uniqueIndex:idx_transactions_business_reference,priority:2"`
	CreatedAt    time.Time        `gorm:"not null"`
}

func (transactionRow) TableName() string { return "transactions" }

type statementRow struct {
	ID               string          `gorm:"primaryKey;size:36"`
	BusinessID       string          `gorm:"size:64;not null;uniqueIndex:idx_statements_business_checksum,priority:1"`
	Reference        string          `gorm:"size:32;not null;uniqueIndex"`
	StartDate        time.Time       `gorm:"type:date;not null"`
	EndDate          time.Time       `gorm:"type:date;not null"`
	TotalIncome      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TotalExpenditure decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	DocumentURI      string          `gorm:"size:1024"`
	Filename         string          `gorm:"size:512"`
	ContentType      string          `gorm:"size:128"`
	ChecksumSHA256   string          `gorm:"column:checksum_sha256;size:64;not null;uniqueIndex:idx_statements_business_checksum,priority:2"`
	CreatedAt        time.Time       `gorm:"not null"`
}

func (statementRow) TableName() string { return "statements" }

type statementTransactionRow struct {
	ID           string           `gorm:"primaryKey;size:36"`
	StatementID  string           `gorm:"size:36;not null;index"`
	BusinessID   string           `gorm:"size:64;not null;index:idx_statement_transactions_business_date,priority:1"`
	Date         time.Time        `gorm:"type:date;not null;index:idx_statement_transactions_business_date,priority:2"`
	Description  string           `gorm:"size:1024"`
	Amount       decimal.Decimal  `gorm:"type:numeric(18,2);not null"`
	Balance      *decimal.Decimal `gorm:"type:numeric(18,2)"`
	Type         string           `gorm:"size:16;not null"`
	Channel      string           `gorm:"size:64"`
	Counterparty string           `gorm:"size:255"`
}

func (statementTransactionRow) TableName() string { return "statement_transactions" }

type creditScoreRow struct {
	BusinessID string    `gorm:"primaryKey;size:64"`
	Score      int       `gorm:"not null"`
	RiskTier   string    `gorm:"size:16;not null"`
	Version    string    `gorm:"size:32;not null"`
	ComputedAt time.Time `gorm:"not null"`
}

func (creditScoreRow) TableName() string { return "credit_scores" }

type auditEntryRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Seq         int64     `gorm:"autoIncrement;not null"`
	BusinessID  string    `gorm:"size:64;not null;index:idx_score_audit_business_time,priority:1"`
	Score       int       `gorm:"not null"`
	RiskTier    string    `gorm:"size:16;not null"`
	Version     string    `gorm:"size:32;not null"`
	Timestamp   time.Time `gorm:"not null;index:idx_score_audit_business_time,priority:2"`
	RequestedBy string    `gorm:"size:255;not null"`
	StatementID string    `gorm:"size:36"`
}

func (auditEntryRow) TableName() string { return "score_audit_entries" }

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&businessRow{},
		&transactionRow{},
		&statementRow{},
		&statementTransactionRow{},
		&creditScoreRow{},
		&auditEntryRow{},
	}
}

func toBusinessRow(b *domain.Business) businessRow {
	return businessRow{
		ID:                 b.ID,
		Name:               b.Name,
		RegistrationNumber: b.RegistrationNumber,
		Industry:           b.Industry,
		Country:            b.Country,
		City:               b.City,
		CreatedAt:          b.CreatedAt,
	}
}

func (r businessRow) toDomain() *domain.Business {
	return &domain.Business{
		ID:                 r.ID,
		Name:               r.Name,
		RegistrationNumber: r.RegistrationNumber,
		Industry:           r.Industry,
		Country:            r.Country,
		City:               r.City,
		CreatedAt:          r.CreatedAt,
	}
}

func toTransactionRow(tx domain.Transaction) transactionRow {
	return transactionRow{
		ID:           tx.ID,
		BusinessID:   tx.BusinessID,
		Date:         tx.Date,
		Description:  tx.Description,
		Amount:       tx.Amount,
		Type:         string(tx.Type),
		BalanceAfter: tx.BalanceAfter,
		Reference:    tx.Reference,
		CreatedAt:    tx.CreatedAt,
	}
}

func (r transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:           r.ID,
		BusinessID:   r.BusinessID,
		Date:         domain.CalendarDate(r.Date),
		Description:  r.Description,
		Amount:       r.Amount,
		Type:         domain.TransactionType(r.Type),
		BalanceAfter: r.BalanceAfter,
		Reference:    r.Reference,
		CreatedAt:    r.CreatedAt,
	}
}

func toStatementRow(st *domain.Statement) statementRow {
	return statementRow{
		ID:               st.ID,
		BusinessID:       st.BusinessID,
		Reference:        st.Reference,
		StartDate:        st.StartDate,
		EndDate:          st.EndDate,
		TotalIncome:      st.TotalIncome,
		TotalExpenditure: st.TotalExpenditure,
		DocumentURI:      st.DocumentURI,
		Filename:         st.Filename,
		ContentType:      st.ContentType,
		ChecksumSHA256:   st.ChecksumSHA256,
		CreatedAt:        st.CreatedAt,
	}
}

func (r statementRow) toDomain() *domain.Statement {
	return &domain.Statement{
		ID:               r.ID,
		BusinessID:       r.BusinessID,
		Reference:        r.Reference,
		StartDate:        domain.CalendarDate(r.StartDate),
		EndDate:          domain.CalendarDate(r.EndDate),
		TotalIncome:      r.TotalIncome,
		TotalExpenditure: r.TotalExpenditure,
		DocumentURI:      r.DocumentURI,
		Filename:         r.Filename,
		ContentType:      r.ContentType,
		ChecksumSHA256:   r.ChecksumSHA256,
		CreatedAt:        r.CreatedAt,
	}
}

func toStatementTransactionRow(t domain.StatementTransaction) statementTransactionRow {
	return statementTransactionRow{
		ID:           t.ID,
		StatementID:  t.StatementID,
		BusinessID:   t.BusinessID,
		Date:         t.Date,
		Description:  t.Description,
		Amount:       t.Amount,
		Balance:      t.Balance,
		Type:         string(t.Type),
		Channel:      t.Channel,
		Counterparty: t.Counterparty,
	}
}

func (r statementTransactionRow) toDomain() domain.StatementTransaction {
	return domain.StatementTransaction{
		ID:           r.ID,
		StatementID:  r.StatementID,
		BusinessID:   r.BusinessID,
		Date:         domain.CalendarDate(r.Date),
		Description:  r.Description,
		Amount:       r.Amount,
		Balance:      r.Balance,
		Type:         domain.TransactionType(r.Type),
		Channel:      r.Channel,
		Counterparty: r.Counterparty,
	}
}

func toCreditScoreRow(cs domain.CreditScore) creditScoreRow {
	return creditScoreRow{
		BusinessID: cs.BusinessID,
		Score:      cs.Score,
		RiskTier:   string(cs.RiskTier),
		Version:    cs.Version,
		ComputedAt: cs.ComputedAt,
	}
}

func (r creditScoreRow) toDomain() *domain.CreditScore {
	return &domain.CreditScore{
		BusinessID: r.BusinessID,
		Score:      r.Score,
		RiskTier:   domain.RiskTier(r.RiskTier),
		Version:    r.Version,
		ComputedAt: r.ComputedAt,
	}
}

func toAuditEntryRow(e domain.ScoreAuditEntry) auditEntryRow {
	return auditEntryRow{
		ID:          e.ID,
		BusinessID:  e.BusinessID,
		Score:       e.Score,
		RiskTier:    string(e.RiskTier),
		Version:     e.Version,
		Timestamp:   e.Timestamp,
		RequestedBy: e.RequestedBy,
		StatementID: e.StatementID,
	}
}

func (r auditEntryRow) toDomain() domain.ScoreAuditEntry {
	return domain.ScoreAuditEntry{
		ID:          r.ID,
		BusinessID:  r.BusinessID,
		Score:       r.Score,
		RiskTier:    domain.RiskTier(r.RiskTier),
		Version:     r.Version,
		Timestamp:   r.Timestamp,
		RequestedBy: r.RequestedBy,
		StatementID: r.StatementID,
	}
}
