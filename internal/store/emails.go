package store

import (
	"database/sql"

	"github.com/rotisserie/eris"
)

// Email is one normalized message row.
type Email struct {
	ID          string
	Date        sql.NullString // ISO calendar date, null when unparseable
	FromAddr    string
	Subject     string
	BodyText    string
	RawPath     string
	ContentHash string
}

// InsertEmail inserts a normalized email row. A uniqueness violation on
// either id or content_hash returns ErrDuplicate; callers count it as a
// skip and continue.
func (s *Store) InsertEmail(e *Email) error {
	_, err := s.db.Exec(`
		INSERT INTO emails (id, date, from_addr, subject, body_text, raw_path, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date, e.FromAddr, e.Subject, e.BodyText, e.RawPath, e.ContentHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return eris.Wrap(err, "insert email")
	}
	return nil
}

// GetEmail returns the email with the given id, or nil if absent.
func (s *Store) GetEmail(id string) (*Email, error) {
	e := &Email{}
	err := s.db.QueryRow(`
		SELECT id, date, from_addr, subject, body_text, raw_path, content_hash
		FROM emails WHERE id = ?`, id,
	).Scan(&e.ID, &e.Date, &e.FromAddr, &e.Subject, &e.BodyText, &e.RawPath, &e.ContentHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "get email")
	}
	return e, nil
}

// ListEmails returns every email row, ordered by id for stable iteration.
// Downstream stages use this as their full-scan input.
func (s *Store) ListEmails() ([]Email, error) {
	rows, err := s.db.Query(`
		SELECT id, date, from_addr, subject, body_text, raw_path, content_hash
		FROM emails ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "list emails")
	}
	defer rows.Close()

	var emails []Email
	for rows.Next() {
		var e Email
		if err := rows.Scan(&e.ID, &e.Date, &e.FromAddr, &e.Subject, &e.BodyText, &e.RawPath, &e.ContentHash); err != nil {
			return nil, eris.Wrap(err, "scan email")
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// DeleteEmail removes an email row. The FTS trigger retracts the indexed
// content and the embeddings foreign key cascades.
func (s *Store) DeleteEmail(id string) error {
	if _, err := s.db.Exec(`DELETE FROM emails WHERE id = ?`, id); err != nil {
		return eris.Wrap(err, "delete email")
	}
	return nil
}

// SearchResult is one full-text search hit.
type SearchResult struct {
	ID      string
	Date    sql.NullString
	From    string
	Subject string
}

// SearchEmails runs an FTS5 MATCH query over (subject, body_text) and
// returns up to limit hits in relevance order.
func (s *Store) SearchEmails(match string, limit int) ([]SearchResult, error) {
	if !s.fts5Available {
		return nil, eris.New("full-text search unavailable: FTS5 not present in this SQLite build")
	}
	rows, err := s.db.Query(`
		SELECT e.id, e.date, e.from_addr, e.subject
		FROM emails_fts f
		JOIN emails e ON e.rowid = f.rowid
		WHERE emails_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, eris.Wrap(err, "fts search")
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Date, &r.From, &r.Subject); err != nil {
			return nil, eris.Wrap(err, "scan search result")
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
