package store

import (
	"database/sql"
	"testing"

	"github.com/rotisserie/eris"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st
}

func testEmail(id string) *Email {
	return &Email{
		ID:          id,
		Date:        sql.NullString{String: "2025-06-01", Valid: true},
		FromAddr:    "noreply@uber.com",
		Subject:     "Your Tuesday trip receipt",
		BodyText:    "Thanks for riding. Total: $23.50",
		RawPath:     "data/raw/" + id + ".json",
		ContentHash: "hash-" + id,
	}
}

func TestInitSchemaIdempotent(t *testing.T) {
	st := newTestStore(t)
	if err := st.InitSchema(); err != nil {
		t.Fatalf("second InitSchema: %v", err)
	}
}

func TestInsertAndGetEmail(t *testing.T) {
	st := newTestStore(t)

	want := testEmail("msg001")
	if err := st.InsertEmail(want); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := st.GetEmail("msg001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected email, got nil")
	}
	if got.Subject != want.Subject || got.FromAddr != want.FromAddr || got.ContentHash != want.ContentHash {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.Date.String != "2025-06-01" {
		t.Errorf("date = %q, want 2025-06-01", got.Date.String)
	}
}

func TestGetEmailMissing(t *testing.T) {
	st := newTestStore(t)
	got, err := st.GetEmail("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing email, got %+v", got)
	}
}

func TestInsertEmailDuplicateID(t *testing.T) {
	st := newTestStore(t)

	if err := st.InsertEmail(testEmail("msg001")); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := testEmail("msg001")
	dup.ContentHash = "different-hash"
	err := st.InsertEmail(dup)
	if !eris.Is(err, ErrDuplicate) {
		t.Errorf("duplicate id: got %v, want ErrDuplicate", err)
	}
}

func TestInsertEmailDuplicateContentHash(t *testing.T) {
	st := newTestStore(t)

	if err := st.InsertEmail(testEmail("msg001")); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := testEmail("msg002")
	dup.ContentHash = "hash-msg001"
	err := st.InsertEmail(dup)
	if !eris.Is(err, ErrDuplicate) {
		t.Errorf("duplicate content hash: got %v, want ErrDuplicate", err)
	}
}

func TestListEmailsOrderedByID(t *testing.T) {
	st := newTestStore(t)
	for _, id := range []string{"msg003", "msg001", "msg002"} {
		if err := st.InsertEmail(testEmail(id)); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	emails, err := st.ListEmails()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(emails) != 3 {
		t.Fatalf("got %d emails, want 3", len(emails))
	}
	for i, want := range []string{"msg001", "msg002", "msg003"} {
		if emails[i].ID != want {
			t.Errorf("emails[%d].ID = %q, want %q", i, emails[i].ID, want)
		}
	}
}

func TestNullDateRoundTrip(t *testing.T) {
	st := newTestStore(t)

	e := testEmail("msg001")
	e.Date = sql.NullString{}
	if err := st.InsertEmail(e); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := st.GetEmail("msg001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Date.Valid {
		t.Errorf("expected null date, got %q", got.Date.String)
	}
}

func TestDeleteEmailCascadesEmbedding(t *testing.T) {
	st := newTestStore(t)

	if err := st.InsertEmail(testEmail("msg001")); err != nil {
		t.Fatalf("insert email: %v", err)
	}
	if err := st.InsertEmbedding("msg001", []float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("insert embedding: %v", err)
	}

	if err := st.DeleteEmail("msg001"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rows, err := st.ListEmbeddings()
	if err != nil {
		t.Fatalf("list embeddings: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("embedding should cascade on email delete, found %d rows", len(rows))
	}
}

func TestGetStats(t *testing.T) {
	st := newTestStore(t)

	if err := st.InsertEmail(testEmail("msg001")); err != nil {
		t.Fatalf("insert email: %v", err)
	}
	if err := st.InsertEmbedding("msg001", []float32{1, 0}); err != nil {
		t.Fatalf("insert embedding: %v", err)
	}
	if err := st.InsertTransaction(&Transaction{
		ID:          TxID("msg001"),
		EmailID:     "msg001",
		Merchant:    "Uber",
		AmountCents: 2350,
		Currency:    "USD",
		Category:    "Transport",
		Confidence:  1.0,
	}); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}

	stats, err := st.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.EmailCount != 1 || stats.EmbeddingCount != 1 || stats.TransactionCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1",
			stats.EmailCount, stats.EmbeddingCount, stats.TransactionCount)
	}
}
