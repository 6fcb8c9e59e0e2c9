package bulkupload

import (
	"strings"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/store"
)

// Signature identifies a transaction by content. Two rows with equal
// signatures are the same transaction uploaded twice.
type Signature struct {
	BusinessID  string
	Date        string
	Description string
	Amount      string
	Type        domain.TransactionType
	Reference   string
}

// SignatureOf builds the signature of r. The description is trimmed and
// lower-cased and the amount is rendered canonically, so "100.00" and "100"
// produce the same signature.
func SignatureOf(r ValidRecord) Signature {
	return Signature{
		BusinessID:  r.BusinessID,
		Date:        r.Date.Format(dateLayout),
		Description: strings.ToLower(strings.TrimSpace(r.Description)),
		Amount:      r.Amount.String(),
		Type:        r.Type,
		Reference:   r.Reference,
	}
}

// CheckBatch enforces the in-batch rules on individually valid rows. Rows
// without a business id are attributed to businessID. It returns a conflict
// if rows name more than one business, repeat a signature, or reuse a
// reference.
func CheckBatch(businessID string, records []ValidRecord) error {
	for i := range records {
		if records[i].BusinessID == "" {
			records[i].BusinessID = businessID
		}
		if records[i].BusinessID != businessID {
			return apperr.Newf(apperr.KindConflict, "CheckBatch",
				"all transactions must belong to the same business: found %s and %s (row %d)",
				businessID, records[i].BusinessID, records[i].Row)
		}
	}

	signatures := make(map[Signature]int, len(records))
	references := make(map[string]int, len(records))
	for _, r := range records {
		sig := SignatureOf(r)
		if first, dup := signatures[sig]; dup {
			return apperr.Newf(apperr.KindConflict, "CheckBatch",
				"duplicate transaction in batch: row %d repeats row %d", r.Row, first)
		}
		signatures[sig] = r.Row

		if first, dup := references[r.Reference]; dup {
			return apperr.Newf(apperr.KindConflict, "CheckBatch",
				"duplicate reference %q in batch: row %d repeats row %d", r.Reference, r.Row, first)
		}
		references[r.Reference] = r.Row
	}
	return nil
}

// RejectExistingReferences is the store.ReferenceGuard used on import: any
// reference already persisted for the business rejects the whole batch.
func RejectExistingReferences(existing []string) error {
	if len(existing) == 0 {
		return nil
	}
	return apperr.Newf(apperr.KindConflict, "ImportTransactions",
		"transaction with reference %q already exists", existing[0])
}

var _ store.ReferenceGuard = RejectExistingReferences
