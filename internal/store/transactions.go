package store

import (
	"database/sql"

	"github.com/rotisserie/eris"
)

// Transaction is one detected spending event in the ledger.
type Transaction struct {
	ID          string
	EmailID     string
	Merchant    string
	AmountCents int64
	Currency    string
	TxDate      sql.NullString // as reported by the extraction oracle
	Category    string
	Confidence  float64
}

// TxID derives the deterministic transaction id for an email, so re-runs
// of the ledger builder are idempotent.
func TxID(emailID string) string {
	return "tx_" + emailID
}

// InsertTransaction inserts a ledger row. A violation of the
// (email_id, amount_cents) uniqueness constraint returns ErrDuplicate;
// the ledger builder logs it and continues.
func (s *Store) InsertTransaction(t *Transaction) error {
	_, err := s.db.Exec(`
		INSERT INTO tx (id, email_id, merchant, amount_cents, currency, tx_date, category, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.EmailID, t.Merchant, t.AmountCents, t.Currency, t.TxDate, t.Category, t.Confidence,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return eris.Wrap(err, "insert transaction")
	}
	return nil
}

// LedgeredEmailIDs returns the set of email ids that already have at least
// one transaction. The ledger builder excludes these from its candidate
// set so interrupted runs resume where they left off.
func (s *Store) LedgeredEmailIDs() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT DISTINCT email_id FROM tx`)
	if err != nil {
		return nil, eris.Wrap(err, "select ledgered email ids")
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "scan email id")
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ListTransactions returns every ledger row ordered by transaction date
// descending.
func (s *Store) ListTransactions() ([]Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, email_id, merchant, amount_cents, currency, tx_date, category, confidence
		FROM tx ORDER BY tx_date DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "list transactions")
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.EmailID, &t.Merchant, &t.AmountCents, &t.Currency, &t.TxDate, &t.Category, &t.Confidence); err != nil {
			return nil, eris.Wrap(err, "scan transaction")
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
