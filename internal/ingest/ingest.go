// Package ingest runs the normalizer stage: raw message blobs are decoded
// into email rows, deduplicated by content hash, and persisted with their
// provenance. The stage is idempotent; re-running over the same blob set
// inserts nothing new.
package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/mailtx/mailtx/internal/mime"
	"github.com/mailtx/mailtx/internal/rawstore"
	"github.com/mailtx/mailtx/internal/store"
	"github.com/rotisserie/eris"
)

// Stats reports the outcome of one normalizer run.
type Stats struct {
	Imported int
	Skipped  int // duplicate id or content hash
	Filtered int // dated outside the Days window
	Errors   int // malformed blobs
}

// Normalizer decodes raw blobs into email rows.
type Normalizer struct {
	store *store.Store
	raw   *rawstore.Store
	log   *slog.Logger

	// Days limits ingestion to messages dated within the last N days.
	// Zero means no limit. Undated messages always pass.
	Days int
}

// New returns a Normalizer over the given stores.
func New(st *store.Store, raw *rawstore.Store, log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{store: st, raw: raw, log: log}
}

// Run processes every blob in the content store. A malformed blob is
// logged and counted, never fatal; a uniqueness violation on id or
// content_hash is a skip. Only store unavailability aborts the run.
func (n *Normalizer) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	paths, err := n.raw.List()
	if err != nil {
		return stats, err
	}
	n.log.Info("processing raw blobs", "count", len(paths))

	var cutoff string
	if n.Days > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -n.Days).Format("2006-01-02")
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "ingest cancelled")
		}

		email, err := n.normalize(path)
		if err != nil {
			n.log.Warn("failed to parse blob", "path", path, "error", err)
			stats.Errors++
			continue
		}

		if cutoff != "" && email.Date.Valid && email.Date.String < cutoff {
			stats.Filtered++
			continue
		}

		err = n.store.InsertEmail(email)
		switch {
		case err == nil:
			stats.Imported++
		case eris.Is(err, store.ErrDuplicate):
			stats.Skipped++
		default:
			// Store-level failure is the only fatal error class
			return stats, err
		}
	}

	n.log.Info("ingest complete",
		"imported", stats.Imported, "skipped", stats.Skipped,
		"filtered", stats.Filtered, "errors", stats.Errors)
	return stats, nil
}

// normalize decodes one blob into an email row. The content hash is
// computed over the extracted body text only; it is the sole dedup key.
func (n *Normalizer) normalize(path string) (*store.Email, error) {
	blob, err := n.raw.Read(path)
	if err != nil {
		return nil, err
	}

	var msg *mime.Message
	switch {
	case blob.Raw != "":
		rawBytes, err := mime.DecodeBase64URL(blob.Raw)
		if err != nil {
			return nil, err
		}
		msg, err = mime.Parse(rawBytes)
		if err != nil {
			return nil, err
		}
	case blob.Payload != nil:
		msg, err = mime.ParseEnvelope(blob.Payload)
		if err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("blob %s carries neither raw message nor payload", path)
	}

	hash := sha256.Sum256([]byte(msg.BodyText))

	return &store.Email{
		ID:          blob.ID,
		Date:        sql.NullString{String: msg.Date, Valid: msg.Date != ""},
		FromAddr:    msg.FromAddr,
		Subject:     msg.Subject,
		BodyText:    msg.BodyText,
		RawPath:     path,
		ContentHash: hex.EncodeToString(hash[:]),
	}, nil
}
