package query

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mailtx/mailtx/internal/store"
	"github.com/mailtx/mailtx/internal/testutil"
	"github.com/rotisserie/eris"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type stubChatter struct {
	resp string
	err  error
}

func (s *stubChatter) ChatJSON(context.Context, string, string) (string, error) {
	return s.resp, s.err
}

// fixedEngine pins the clock to 2025-06-30 for deterministic date defaults.
func fixedEngine(t *testing.T, st *store.Store, ch *stubChatter) *Engine {
	t.Helper()
	e := NewEngine(st, ch, discardLogger())
	e.Now = func() time.Time {
		return time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func seedTx(t *testing.T, st *store.Store, emailID, merchant string, cents int64, currency, date, category string) {
	t.Helper()
	testutil.SeedEmail(t, st, emailID, date, "seed", "seed body", "")
	testutil.MustNoErr(t, st.InsertTransaction(&store.Transaction{
		ID:          store.TxID(emailID),
		EmailID:     emailID,
		Merchant:    merchant,
		AmountCents: cents,
		Currency:    currency,
		TxDate:      sql.NullString{String: date, Valid: date != ""},
		Category:    category,
		Confidence:  1.0,
	}), "seed tx "+emailID)
}

func TestParseIntent(t *testing.T) {
	st := testutil.NewTestStore(t)
	e := fixedEngine(t, st, &stubChatter{
		resp: `{"merchant":"Uber","start_date":"2025-06-01","end_date":"2025-06-30","metric":"sum"}`,
	})

	p := e.ParseIntent(context.Background(), "how much on uber this month")
	if p == nil {
		t.Fatal("expected params, got nil")
	}
	if p.Merchant != "Uber" || p.StartDate != "2025-06-01" || p.EndDate != "2025-06-30" || p.Metric != MetricSum {
		t.Errorf("params = %+v", p)
	}
}

func TestParseIntentDefaultWindow(t *testing.T) {
	st := testutil.NewTestStore(t)
	e := fixedEngine(t, st, &stubChatter{resp: `{"merchant":"Uber"}`})

	p := e.ParseIntent(context.Background(), "uber spending")
	if p == nil {
		t.Fatal("expected params, got nil")
	}
	if p.StartDate != "2025-05-31" || p.EndDate != "2025-06-30" {
		t.Errorf("default window = %s..%s, want 2025-05-31..2025-06-30", p.StartDate, p.EndDate)
	}
	if p.Metric != MetricList {
		t.Errorf("metric = %q, want list fallback", p.Metric)
	}
}

func TestParseIntentStripsFences(t *testing.T) {
	st := testutil.NewTestStore(t)
	e := fixedEngine(t, st, &stubChatter{
		resp: "```json\n{\"merchant\":\"Amazon\",\"metric\":\"list\"}\n```",
	})

	p := e.ParseIntent(context.Background(), "list amazon orders")
	if p == nil {
		t.Fatal("expected params, got nil")
	}
	if p.Merchant != "Amazon" {
		t.Errorf("merchant = %q", p.Merchant)
	}
}

func TestParseIntentNilOnGarbage(t *testing.T) {
	st := testutil.NewTestStore(t)
	e := fixedEngine(t, st, &stubChatter{resp: "I don't understand the question."})
	if p := e.ParseIntent(context.Background(), "???"); p != nil {
		t.Errorf("expected nil for unparseable response, got %+v", p)
	}
}

func TestParseIntentNilOnOracleError(t *testing.T) {
	st := testutil.NewTestStore(t)
	e := fixedEngine(t, st, &stubChatter{err: eris.New("oracle down")})
	if p := e.ParseIntent(context.Background(), "anything"); p != nil {
		t.Errorf("expected nil on oracle failure, got %+v", p)
	}
}

func TestExecuteSum(t *testing.T) {
	st := testutil.NewTestStore(t)
	seedTx(t, st, "msg001", "Uber", 2350, "USD", "2025-06-03", "Transport")
	seedTx(t, st, "msg002", "Uber Eats", 1200, "USD", "2025-06-10", "Food")
	seedTx(t, st, "msg003", "Amazon", 9900, "USD", "2025-06-15", "Shopping")

	e := fixedEngine(t, st, &stubChatter{})
	p := &Params{Merchant: "uber", Metric: MetricSum}
	res := e.Execute(context.Background(), p)
	if res == nil {
		t.Fatal("expected result")
	}
	got := FormatResult(res, p)
	if got != "Total spent: 35.50 USD" {
		t.Errorf("formatted = %q", got)
	}
}

func TestExecuteSumGroupsByCurrency(t *testing.T) {
	st := testutil.NewTestStore(t)
	seedTx(t, st, "msg001", "Uber", 2350, "USD", "2025-06-03", "Transport")
	seedTx(t, st, "msg002", "Uber", 1000, "EUR", "2025-06-04", "Transport")

	e := fixedEngine(t, st, &stubChatter{})
	res := e.Execute(context.Background(), &Params{Metric: MetricSum})
	if res == nil || len(res.Sums) != 2 {
		t.Fatalf("expected one sum per currency, got %+v", res)
	}
}

func TestExecuteList(t *testing.T) {
	st := testutil.NewTestStore(t)
	seedTx(t, st, "msg001", "Uber", 2350, "USD", "2025-06-03", "Transport")
	seedTx(t, st, "msg002", "Amazon", 9900, "USD", "2025-06-15", "Shopping")

	e := fixedEngine(t, st, &stubChatter{})
	p := &Params{Metric: MetricList}
	res := e.Execute(context.Background(), p)
	if res == nil || len(res.Items) != 2 {
		t.Fatalf("result = %+v", res)
	}
	// Newest first.
	if res.Items[0].Merchant != "Amazon" {
		t.Errorf("items[0] = %+v, want newest", res.Items[0])
	}

	got := FormatResult(res, p)
	testutil.AssertContains(t, got, "Found 2 transactions:")
	testutil.AssertContains(t, got, "- 2025-06-15: Amazon (99.00 USD)")
	testutil.AssertContains(t, got, "- 2025-06-03: Uber (23.50 USD)")
}

func TestExecuteDateRange(t *testing.T) {
	st := testutil.NewTestStore(t)
	seedTx(t, st, "msg001", "Uber", 2350, "USD", "2025-05-01", "Transport")
	seedTx(t, st, "msg002", "Uber", 1200, "USD", "2025-06-10", "Transport")

	e := fixedEngine(t, st, &stubChatter{})
	res := e.Execute(context.Background(), &Params{
		StartDate: "2025-06-01", EndDate: "2025-06-30", Metric: MetricList,
	})
	if res == nil || len(res.Items) != 1 {
		t.Fatalf("result = %+v, want only the June transaction", res)
	}
	if res.Items[0].AmountCents != 1200 {
		t.Errorf("items[0] = %+v", res.Items[0])
	}
}

func TestExecuteMerchantCaseInsensitive(t *testing.T) {
	st := testutil.NewTestStore(t)
	seedTx(t, st, "msg001", "UBER", 2350, "USD", "2025-06-03", "Transport")

	e := fixedEngine(t, st, &stubChatter{})
	res := e.Execute(context.Background(), &Params{Merchant: "uber", Metric: MetricList})
	if res == nil || len(res.Items) != 1 {
		t.Fatalf("case-insensitive match failed: %+v", res)
	}
}

func TestExecuteNilParams(t *testing.T) {
	st := testutil.NewTestStore(t)
	e := fixedEngine(t, st, &stubChatter{})
	if res := e.Execute(context.Background(), nil); res != nil {
		t.Errorf("expected nil for nil params, got %+v", res)
	}
}

func TestFormatResultNoMatch(t *testing.T) {
	p := &Params{Metric: MetricList}
	if got := FormatResult(nil, p); got != noMatchMessage {
		t.Errorf("nil result: %q", got)
	}
	if got := FormatResult(&Result{}, p); got != noMatchMessage {
		t.Errorf("empty result: %q", got)
	}
}

func TestFormatResultSumDefaultsCurrency(t *testing.T) {
	res := &Result{Sums: []SumRow{{TotalCents: sql.NullInt64{Int64: 500, Valid: true}}}}
	got := FormatResult(res, &Params{Metric: MetricSum})
	if got != "Total spent: 5.00 USD" {
		t.Errorf("got %q", got)
	}
}

func TestFilterClauseAlwaysParameterized(t *testing.T) {
	where, args := filterClause(&Params{
		Merchant:  "x'; DROP TABLE tx; --",
		StartDate: "2025-01-01",
		EndDate:   "2025-12-31",
	})
	if strings.Contains(where, "DROP") {
		t.Errorf("untrusted input reached SQL text: %q", where)
	}
	if len(args) != 3 {
		t.Errorf("got %d args, want 3", len(args))
	}
}
