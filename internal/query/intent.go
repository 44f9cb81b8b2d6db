package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mailtx/mailtx/internal/oracle"
)

// Metric values the intent oracle may return.
const (
	MetricSum  = "sum"
	MetricList = "list"
)

// defaultWindowDays is the date window applied when the user specifies
// no period.
const defaultWindowDays = 30

// Params is the constrained parameter set a natural-language query is
// translated into. This enumerated filter set is the full query surface,
// not an open-ended DSL.
type Params struct {
	Merchant  string `json:"merchant"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Metric    string `json:"metric"`
}

// intentSystemPrompt fixes the output schema for the intent oracle.
// Today's date is interpolated so relative phrases resolve correctly.
const intentSystemPrompt = `You are a SQL query parameter extractor.
Your goal is to extract search parameters from the user's natural language query about their spending.
Return ONLY a JSON object. Do not include markdown formatting.

Required Keys:
- merchant (string, optional): The name of the merchant if specified (e.g., "Amazon", "Uber"). If not specified, omit or null.
- start_date (string, YYYY-MM-DD): The start date of the period.
- end_date (string, YYYY-MM-DD): The end date of the period.
- metric (string): 'sum' (for total spending) or 'list' (to see individual transactions).

Context:
- Today's date is: %s
- If the user says "last month", calculate the start and end of the previous month relative to today.
- If the user says "December", assume the most recent December relative to today.
- If no date is specified, default to the last 30 days.
`

// ParseIntent translates a natural-language query into Params via the
// intent oracle. Accidental markdown fences are stripped before parsing.
// Returns nil on any oracle or parse failure: the caller reports "could
// not understand the query" rather than an error.
func (e *Engine) ParseIntent(ctx context.Context, userQuery string) *Params {
	today := e.now().Format("2006-01-02")
	system := fmt.Sprintf(intentSystemPrompt, today)

	content, err := e.oracle.ChatJSON(ctx, system, userQuery)
	if err != nil {
		e.log.Warn("intent oracle failed", "error", err)
		return nil
	}

	var params Params
	if err := json.Unmarshal([]byte(oracle.ExtractJSON(content)), &params); err != nil {
		e.log.Warn("unparseable intent response", "error", err)
		return nil
	}

	e.applyDefaults(&params)
	return &params
}

// applyDefaults fills the documented fallbacks: last 30 days when the
// oracle returned no period, and list as the metric of last resort.
func (e *Engine) applyDefaults(p *Params) {
	if p.StartDate == "" && p.EndDate == "" {
		today := e.now()
		p.StartDate = today.AddDate(0, 0, -defaultWindowDays).Format("2006-01-02")
		p.EndDate = today.Format("2006-01-02")
	}
	if p.Metric != MetricSum && p.Metric != MetricList {
		p.Metric = MetricList
	}
	p.Merchant = strings.TrimSpace(p.Merchant)
}

// now returns the engine clock, defaulting to wall time. Tests pin it.
func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
