package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/store"
)

// CreateBusiness implements store.BusinessRepository.
func (r *Repository) CreateBusiness(ctx context.Context, b *domain.Business) error {
	q := r.client.Query(transactional(fmt.Sprintf(`
  IF EXISTS (SELECT 1 FROM %[1]s WHERE business_id = @business_id) THEN
    RAISE USING MESSAGE = '%[2]s';
  END IF;
  INSERT INTO %[1]s (business_id, name, registration_number, industry, country, city, created_ts)
  VALUES (@business_id, @name, @registration_number, @industry, @country, @city, @created_ts);`,
		r.table(businessesTable), duplicateBusinessMsg)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "business_id", Value: b.ID},
		{Name: "name", Value: b.Name},
		{Name: "registration_number", Value: nullString(b.RegistrationNumber)},
		{Name: "industry", Value: nullString(b.Industry)},
		{Name: "country", Value: nullString(b.Country)},
		{Name: "city", Value: nullString(b.City)},
		{Name: "created_ts", Value: b.CreatedAt},
	}

	return classify("CreateBusiness", runDML(ctx, q))
}

// GetBusiness implements store.BusinessRepository.
func (r *Repository) GetBusiness(ctx context.Context, id string) (*domain.Business, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT business_id, name, registration_number, industry, country, city, created_ts
		FROM %s
		WHERE business_id = @business_id
		LIMIT 1
	`, r.table(businessesTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "business_id", Value: id}}

	rows, err := readAll[businessRow](ctx, q)
	if err != nil {
		return nil, classify("GetBusiness", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

// ImportTransactions implements store.TransactionRepository. The guard sees
// the references found by a read before the write; the script repeats the
// check inside its transaction.
func (r *Repository) ImportTransactions(ctx context.Context, businessID string, txs []domain.Transaction, guard store.ReferenceGuard) error {
	refs := make([]string, 0, len(txs))
	params := make([]transactionParam, 0, len(txs))
	for _, tx := range txs {
		refs = append(refs, tx.Reference)
		params = append(params, toTransactionParam(tx))
	}

	existing, err := r.existingReferences(ctx, businessID, refs)
	if err != nil {
		return classify("ImportTransactions", err)
	}
	if guard != nil {
		if err := guard(existing); err != nil {
			return err
		}
	}
	if len(params) == 0 {
		return nil
	}

	q := r.client.Query(transactional(fmt.Sprintf(`
  IF EXISTS (
    SELECT 1 FROM %[1]s
    WHERE business_id = @business_id AND reference IN UNNEST(@references)
  ) THEN
    RAISE USING MESSAGE = '%[2]s';
  END IF;
  INSERT INTO %[1]s (transaction_id, business_id, transaction_date, description, amount, direction, balance_after, reference, created_ts)
  SELECT r.transaction_id, @business_id, r.transaction_date, r.description,
         CAST(r.amount AS NUMERIC), r.direction, CAST(r.balance_after AS NUMERIC),
         r.reference, r.created_ts
  FROM UNNEST(@rows) AS r;`,
		r.table(transactionsTable), duplicateReferenceMsg)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "business_id", Value: businessID},
		{Name: "references", Value: refs},
		{Name: "rows", Value: params},
	}

	return classify("ImportTransactions", runDML(ctx, q))
}

func (r *Repository) existingReferences(ctx context.Context, businessID string, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT reference
		FROM %s
		WHERE business_id = @business_id AND reference IN UNNEST(@references)
	`, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "business_id", Value: businessID},
		{Name: "references", Value: refs},
	}

	rows, err := readAll[struct {
		Reference string `bigquery:"reference"`
	}](ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Reference)
	}
	return out, nil
}

// ListTransactions implements store.TransactionRepository.
func (r *Repository) ListTransactions(ctx context.Context, businessID string) ([]domain.Transaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT transaction_id, business_id, transaction_date, description, amount,
		       direction, balance_after, reference, created_ts
		FROM %s
		WHERE business_id = @business_id
		ORDER BY transaction_date, created_ts
	`, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "business_id", Value: businessID}}

	rows, err := readAll[transactionRow](ctx, q)
	if err != nil {
		return nil, classify("ListTransactions", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toDomain()
		if err != nil {
			return nil, classify("ListTransactions", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// CreateStatement implements store.StatementRepository.
func (r *Repository) CreateStatement(ctx context.Context, st *domain.Statement, rows []domain.StatementTransaction) error {
	params := make([]statementTransactionParam, 0, len(rows))
	for _, row := range rows {
		params = append(params, toStatementTransactionParam(row))
	}

	q := r.client.Query(transactional(fmt.Sprintf(`
  IF EXISTS (
    SELECT 1 FROM %[1]s
    WHERE statement_id = @statement_id
       OR reference = @reference
       OR (business_id = @business_id AND checksum_sha256 = @checksum)
  ) THEN
    RAISE USING MESSAGE = '%[3]s';
  END IF;
  INSERT INTO %[1]s (statement_id, business_id, reference, start_date, end_date, total_income,
                     total_expenditure, document_uri, filename, content_type, checksum_sha256, created_ts)
  VALUES (@statement_id, @business_id, @reference, @start_date, @end_date,
          CAST(@total_income AS NUMERIC), CAST(@total_expenditure AS NUMERIC),
          @document_uri, @filename, @content_type, @checksum, @created_ts);
  INSERT INTO %[2]s (row_id, statement_id, business_id, transaction_date, description, amount,
                     balance, transaction_type, channel, counterparty)
  SELECT r.row_id, @statement_id, @business_id, r.transaction_date, r.description,
         CAST(r.amount AS NUMERIC), CAST(r.balance AS NUMERIC), r.transaction_type,
         r.channel, r.counterparty
  FROM UNNEST(@rows) AS r;`,
		r.table(statementsTable), r.table(statementTransactionsTable), duplicateStatementMsg)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: st.ID},
		{Name: "business_id", Value: st.BusinessID},
		{Name: "reference", Value: st.Reference},
		{Name: "start_date", Value: dateOf(st.StartDate)},
		{Name: "end_date", Value: dateOf(st.EndDate)},
		{Name: "total_income", Value: st.TotalIncome.StringFixed(2)},
		{Name: "total_expenditure", Value: st.TotalExpenditure.StringFixed(2)},
		{Name: "document_uri", Value: st.DocumentURI},
		{Name: "filename", Value: st.Filename},
		{Name: "content_type", Value: st.ContentType},
		{Name: "checksum", Value: st.ChecksumSHA256},
		{Name: "created_ts", Value: st.CreatedAt},
		{Name: "rows", Value: params},
	}

	return classify("CreateStatement", runDML(ctx, q))
}

const statementColumns = `statement_id, business_id, reference, start_date, end_date, total_income,
		       total_expenditure, document_uri, filename, content_type, checksum_sha256, created_ts`

// GetStatement implements store.StatementRepository.
func (r *Repository) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE statement_id = @statement_id
		LIMIT 1
	`, statementColumns, r.table(statementsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "statement_id", Value: id}}

	return r.oneStatement(ctx, "GetStatement", q)
}

// FindStatementByChecksum implements store.StatementRepository.
func (r *Repository) FindStatementByChecksum(ctx context.Context, businessID, checksum string) (*domain.Statement, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE business_id = @business_id AND checksum_sha256 = @checksum
		ORDER BY created_ts
		LIMIT 1
	`, statementColumns, r.table(statementsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "business_id", Value: businessID},
		{Name: "checksum", Value: checksum},
	}

	return r.oneStatement(ctx, "FindStatementByChecksum", q)
}

func (r *Repository) oneStatement(ctx context.Context, op string, q *bigquery.Query) (*domain.Statement, error) {
	rows, err := readAll[statementRow](ctx, q)
	if err != nil {
		return nil, classify(op, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	st, err := rows[0].toDomain()
	if err != nil {
		return nil, classify(op, err)
	}
	return st, nil
}

// ListStatementTransactions implements store.StatementRepository.
func (r *Repository) ListStatementTransactions(ctx context.Context, businessID string) ([]domain.StatementTransaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT row_id, statement_id, business_id, transaction_date, description, amount,
		       balance, transaction_type, channel, counterparty
		FROM %s
		WHERE business_id = @business_id
		ORDER BY transaction_date
	`, r.table(statementTransactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "business_id", Value: businessID}}

	rows, err := readAll[statementTransactionRow](ctx, q)
	if err != nil {
		return nil, classify("ListStatementTransactions", err)
	}

	out := make([]domain.StatementTransaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, classify("ListStatementTransactions", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// GetCreditScore implements store.ScoreRepository.
func (r *Repository) GetCreditScore(ctx context.Context, businessID string) (*domain.CreditScore, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT business_id, score, risk_tier, version, computed_ts
		FROM %s
		WHERE business_id = @business_id
		LIMIT 1
	`, r.table(creditScoresTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "business_id", Value: businessID}}

	rows, err := readAll[creditScoreRow](ctx, q)
	if err != nil {
		return nil, classify("GetCreditScore", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

// SaveScore implements store.ScoreRepository.
func (r *Repository) SaveScore(ctx context.Context, score domain.CreditScore, entry domain.ScoreAuditEntry) error {
	q := r.client.Query(transactional(fmt.Sprintf(`
  MERGE %[1]s AS t
  USING (SELECT @business_id AS business_id) AS s
  ON t.business_id = s.business_id
  WHEN MATCHED THEN
    UPDATE SET score = @score, risk_tier = @risk_tier, version = @version, computed_ts = @computed_ts
  WHEN NOT MATCHED THEN
    INSERT (business_id, score, risk_tier, version, computed_ts)
    VALUES (@business_id, @score, @risk_tier, @version, @computed_ts);
  INSERT INTO %[2]s (entry_id, business_id, score, risk_tier, version, entry_ts, requested_by, statement_id)
  VALUES (@entry_id, @business_id, @entry_score, @entry_risk_tier, @entry_version, @entry_ts, @requested_by, @statement_id);`,
		r.table(creditScoresTable), r.table(auditTable))))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "business_id", Value: score.BusinessID},
		{Name: "score", Value: score.Score},
		{Name: "risk_tier", Value: string(score.RiskTier)},
		{Name: "version", Value: score.Version},
		{Name: "computed_ts", Value: score.ComputedAt},
		{Name: "entry_id", Value: entry.ID},
		{Name: "entry_score", Value: entry.Score},
		{Name: "entry_risk_tier", Value: string(entry.RiskTier)},
		{Name: "entry_version", Value: entry.Version},
		{Name: "entry_ts", Value: entry.Timestamp},
		{Name: "requested_by", Value: entry.RequestedBy},
		{Name: "statement_id", Value: nullString(entry.StatementID)},
	}

	return classify("SaveScore", runDML(ctx, q))
}

// ListAuditEntries implements store.ScoreRepository.
func (r *Repository) ListAuditEntries(ctx context.Context, businessID string) ([]domain.ScoreAuditEntry, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT entry_id, business_id, score, risk_tier, version, entry_ts, requested_by, statement_id
		FROM %s
		WHERE business_id = @business_id
		ORDER BY entry_ts
	`, r.table(auditTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "business_id", Value: businessID}}

	rows, err := readAll[auditEntryRow](ctx, q)
	if err != nil {
		return nil, classify("ListAuditEntries", err)
	}

	out := make([]domain.ScoreAuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

var _ store.Repository = (*Repository)(nil)
