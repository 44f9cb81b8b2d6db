// Package testutil provides shared test helpers: in-memory stores with
// the production schema, and small assertion utilities.
package testutil

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/mailtx/mailtx/internal/store"
)

// NewTestStore creates an in-memory store with the production schema
// loaded. The store is closed automatically when the test ends.
func NewTestStore(t testing.TB) *store.Store {
	t.Helper()

	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st
}

// SeedEmail inserts an email row with the given fields, failing the test
// on error. The content hash defaults to a per-id value when empty.
func SeedEmail(t testing.TB, st *store.Store, id, date, subject, body, hash string) {
	t.Helper()
	if hash == "" {
		hash = "hash-" + id
	}
	err := st.InsertEmail(&store.Email{
		ID:          id,
		Date:        sql.NullString{String: date, Valid: date != ""},
		FromAddr:    "sender@example.com",
		Subject:     subject,
		BodyText:    body,
		RawPath:     "data/raw/" + id + ".json",
		ContentHash: hash,
	})
	MustNoErr(t, err, "seed email "+id)
}

// MustNoErr fails the test immediately if err is non-nil.
func MustNoErr(t testing.TB, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// AssertContains asserts that got contains substr.
func AssertContains(t testing.TB, got, substr string) {
	t.Helper()
	if !strings.Contains(got, substr) {
		t.Errorf("result %q should contain %q", got, substr)
	}
}

// AssertStrings compares two string slices element-by-element.
func AssertStrings(t testing.TB, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got len %d, want %d: %v", len(got), len(want), got)
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("at index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
