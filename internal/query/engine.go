// Package query translates natural-language questions about spending into
// constrained, parameterized queries over the transaction ledger, and
// formats the results for display.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mailtx/mailtx/internal/oracle"
	"github.com/mailtx/mailtx/internal/store"
)

// Engine executes translated queries against the ledger.
type Engine struct {
	db     *sql.DB
	oracle oracle.Chatter
	log    *slog.Logger

	// Now overrides the clock for intent date defaults. Nil means wall time.
	Now func() time.Time
}

// NewEngine returns an Engine over the given store and intent oracle.
func NewEngine(st *store.Store, ch oracle.Chatter, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{db: st.DB(), oracle: ch, log: log}
}

// SumRow is one aggregate result group.
type SumRow struct {
	TotalCents sql.NullInt64
	Currency   string
}

// ListRow is one itemized result row.
type ListRow struct {
	Merchant    string
	AmountCents int64
	Currency    string
	TxDate      sql.NullString
	Category    string
}

// Result holds either aggregate or itemized rows, per Params.Metric.
type Result struct {
	Sums  []SumRow
	Items []ListRow
}

// filterClause builds the additive, optional WHERE filters. Values are
// always bound via placeholders; untrusted input never reaches the SQL
// text.
func filterClause(p *Params) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString(" WHERE 1=1")
	if p.Merchant != "" {
		// SQLite LIKE is case-insensitive for ASCII; lowering both sides
		// keeps the contract explicit.
		sb.WriteString(" AND LOWER(merchant) LIKE ?")
		args = append(args, "%"+strings.ToLower(p.Merchant)+"%")
	}
	if p.StartDate != "" {
		sb.WriteString(" AND tx_date >= ?")
		args = append(args, p.StartDate)
	}
	if p.EndDate != "" {
		sb.WriteString(" AND tx_date <= ?")
		args = append(args, p.EndDate)
	}
	return sb.String(), args
}

// Execute runs the deterministic query built from params. A query
// failure returns nil; the caller reports "no matching transactions"
// rather than leaking error detail upstream of the translator.
func (e *Engine) Execute(ctx context.Context, p *Params) *Result {
	if p == nil {
		return nil
	}

	where, args := filterClause(p)

	if p.Metric == MetricSum {
		rows, err := e.db.QueryContext(ctx,
			"SELECT SUM(amount_cents) AS total, currency FROM tx"+where+" GROUP BY currency",
			args...)
		if err != nil {
			e.log.Warn("query failed", "error", err)
			return nil
		}
		defer rows.Close()

		res := &Result{}
		for rows.Next() {
			var r SumRow
			if err := rows.Scan(&r.TotalCents, &r.Currency); err != nil {
				e.log.Warn("scan failed", "error", err)
				return nil
			}
			res.Sums = append(res.Sums, r)
		}
		if rows.Err() != nil {
			e.log.Warn("query failed", "error", rows.Err())
			return nil
		}
		return res
	}

	rows, err := e.db.QueryContext(ctx,
		"SELECT merchant, amount_cents, currency, tx_date, category FROM tx"+where+" ORDER BY tx_date DESC",
		args...)
	if err != nil {
		e.log.Warn("query failed", "error", err)
		return nil
	}
	defer rows.Close()

	res := &Result{}
	for rows.Next() {
		var r ListRow
		if err := rows.Scan(&r.Merchant, &r.AmountCents, &r.Currency, &r.TxDate, &r.Category); err != nil {
			e.log.Warn("scan failed", "error", err)
			return nil
		}
		res.Items = append(res.Items, r)
	}
	if rows.Err() != nil {
		e.log.Warn("query failed", "error", rows.Err())
		return nil
	}
	return res
}

// noMatchMessage is the fixed empty-result rendering.
const noMatchMessage = "No transactions found matching your criteria."

// FormatResult renders a query result for display. Amounts are stored in
// integer cents and divided by 100 here only.
func FormatResult(res *Result, p *Params) string {
	if res == nil || (len(res.Sums) == 0 && len(res.Items) == 0) {
		return noMatchMessage
	}

	var out []string
	if p != nil && p.Metric == MetricSum {
		for _, r := range res.Sums {
			total := 0.0
			if r.TotalCents.Valid {
				total = float64(r.TotalCents.Int64) / 100.0
			}
			currency := r.Currency
			if currency == "" {
				currency = "USD"
			}
			out = append(out, fmt.Sprintf("Total spent: %.2f %s", total, currency))
		}
	} else {
		out = append(out, fmt.Sprintf("Found %d transactions:", len(res.Items)))
		for _, r := range res.Items {
			amount := float64(r.AmountCents) / 100.0
			out = append(out, fmt.Sprintf("- %s: %s (%.2f %s)",
				r.TxDate.String, r.Merchant, amount, r.Currency))
		}
	}
	return strings.Join(out, "\n")
}
