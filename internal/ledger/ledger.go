// Package ledger populates the transaction table: candidate selection
// over not-yet-ledgered emails, oracle-backed structured extraction, and
// idempotent inserts keyed by a deterministic transaction id.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mailtx/mailtx/internal/oracle"
	"github.com/mailtx/mailtx/internal/store"
	"github.com/rotisserie/eris"
)

// keywords is the recall-oriented candidate prefilter. It bounds oracle
// calls, not correctness: false negatives are accepted.
var keywords = []string{
	"receipt", "order", "invoice", "payment", "transaction",
	"total", "purchase", "amount", "charged", "paid",
}

const (
	// minBodyLen skips bodies too short to be a real transaction record.
	minBodyLen = 50
	// bodyBudget caps the oracle input body length.
	bodyBudget = 2000
)

// Stats reports the outcome of one BuildLedger run.
type Stats struct {
	Candidates int
	Processed  int
	Inserted   int
	Duplicates int
	Failed     int // oracle failures; records stay candidates for next run
}

// Builder runs the extraction stage.
type Builder struct {
	store  *store.Store
	oracle oracle.Chatter
	log    *slog.Logger
}

// New returns a Builder over the given store and oracle.
func New(st *store.Store, ch oracle.Chatter, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{store: st, oracle: ch, log: log}
}

// isCandidate applies the keyword prefilter. Subject and body are scanned
// independently, both lowercased.
func isCandidate(subject, body string) bool {
	subject = strings.ToLower(subject)
	body = strings.ToLower(body)
	for _, k := range keywords {
		if strings.Contains(subject, k) || strings.Contains(body, k) {
			return true
		}
	}
	return false
}

// oracleInput builds the extraction oracle input: date and subject up
// front to help the model, body capped at the character budget.
func oracleInput(date, subject, body string) string {
	if len(body) > bodyBudget {
		body = body[:bodyBudget]
	}
	return fmt.Sprintf("Date: %s\nSubject: %s\n\n%s", date, subject, body)
}

// BuildLedger selects candidates and populates the transaction table.
// Candidates are emails not yet in tx that pass the keyword prefilter and
// the minimum body length. Each successful insert commits on its own, so
// an interrupted run resumes without re-inserting. Oracle failures and
// malformed responses skip the record; a duplicate (email_id,
// amount_cents) insert is logged and never fatal.
func (b *Builder) BuildLedger(ctx context.Context) (Stats, error) {
	var stats Stats

	ledgered, err := b.store.LedgeredEmailIDs()
	if err != nil {
		return stats, err
	}
	emails, err := b.store.ListEmails()
	if err != nil {
		return stats, err
	}

	var candidates []store.Email
	for _, e := range emails {
		if ledgered[e.ID] {
			continue
		}
		if !isCandidate(e.Subject, e.BodyText) {
			continue
		}
		if len(e.BodyText) < minBodyLen {
			continue
		}
		candidates = append(candidates, e)
	}
	stats.Candidates = len(candidates)
	b.log.Info("ledger candidates",
		"candidates", len(candidates), "total", len(emails))

	for i, e := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "ledger build cancelled")
		}

		b.log.Debug("processing candidate",
			"n", i+1, "of", len(candidates), "email", e.ID, "subject", e.Subject)

		content, err := b.oracle.ChatJSON(ctx, extractionSystemPrompt,
			oracleInput(e.Date.String, e.Subject, e.BodyText))
		if err != nil {
			b.log.Warn("extraction oracle failed", "email", e.ID, "error", err)
			stats.Failed++
			continue
		}
		stats.Processed++

		result := interpretExtraction(content)
		switch result.Kind {
		case ResultEmpty:
			continue
		case ResultMalformed:
			b.log.Warn("malformed extraction response",
				"email", e.ID, "response", truncateForLog(result.RawText))
			continue
		}

		f := result.Fields
		tx := &store.Transaction{
			ID:          store.TxID(e.ID),
			EmailID:     e.ID,
			Merchant:    f.Merchant,
			AmountCents: f.AmountCents,
			Currency:    f.Currency,
			TxDate:      sql.NullString{String: f.Date, Valid: f.Date != ""},
			Category:    f.Category,
			Confidence:  f.Confidence,
		}

		err = b.store.InsertTransaction(tx)
		switch {
		case err == nil:
			stats.Inserted++
			b.log.Info("transaction recorded",
				"email", e.ID, "merchant", f.Merchant,
				"amount", float64(f.AmountCents)/100, "currency", f.Currency)
		case eris.Is(err, store.ErrDuplicate):
			stats.Duplicates++
			b.log.Warn("duplicate transaction skipped",
				"email", e.ID, "amount_cents", f.AmountCents)
		default:
			return stats, err
		}
	}

	b.log.Info("ledger build complete",
		"processed", stats.Processed, "inserted", stats.Inserted,
		"duplicates", stats.Duplicates, "failed", stats.Failed)
	return stats, nil
}

func truncateForLog(s string) string {
	const max = 200
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
