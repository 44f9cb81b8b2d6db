// Package embed maintains the per-email semantic vector index and ranks
// emails by cosine similarity against a query vector.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/mailtx/mailtx/internal/oracle"
	"github.com/mailtx/mailtx/internal/store"
	"golang.org/x/sync/errgroup"
)

// Input budget for the embedding oracle: subject plus a body prefix. Long
// bodies are truncated, not chunked; the information loss is accepted.
const bodyBudget = 512

// Progress log cadence. Every insert commits on its own, so a crash
// mid-run loses at most the one in-flight record.
const progressEvery = 10

// Stats reports the outcome of one EnsureEmbeddings run.
type Stats struct {
	Embedded int
	Failed   int // oracle failures; records stay eligible for retry
}

// Match is one similarity hit.
type Match struct {
	EmailID    string
	Similarity float64
}

// Indexer fills and queries the embedding index.
type Indexer struct {
	store  *store.Store
	oracle oracle.Embedder
	log    *slog.Logger

	// Workers caps the embedding fan-out. Result application stays
	// serialized regardless, preserving commit ordering. Zero means 1.
	Workers int
}

// New returns an Indexer over the given store and oracle.
func New(st *store.Store, emb oracle.Embedder, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{store: st, oracle: emb, log: log, Workers: 1}
}

// oracleInput builds the bounded-size oracle input for one email.
func oracleInput(subject, body string) string {
	if len(body) > bodyBudget {
		body = body[:bodyBudget]
	}
	return fmt.Sprintf("Subject: %s\nBody: %s", subject, body)
}

type embedResult struct {
	emailID string
	vector  []float32
	err     error
}

// EnsureEmbeddings embeds every email that lacks a vector. Oracle calls
// fan out up to Workers at a time; inserts are applied serially on the
// consuming side, each committed as it lands. A failure on one record is
// logged and skipped without aborting the run; the record stays eligible
// for the next run.
func (ix *Indexer) EnsureEmbeddings(ctx context.Context) (Stats, error) {
	var stats Stats

	pending, err := ix.store.EmailsMissingEmbedding()
	if err != nil {
		return stats, err
	}
	ix.log.Info("emails to embed", "count", len(pending))
	if len(pending) == 0 {
		return stats, nil
	}

	workers := ix.Workers
	if workers < 1 {
		workers = 1
	}

	// Cancel on every return path so workers blocked on the results send
	// unblock and the producer goroutine drains; no worker ever errors, so
	// the errgroup context alone would not release them.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan embedResult)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	go func() {
		for _, in := range pending {
			in := in
			g.Go(func() error {
				vec, err := ix.oracle.Embed(gctx, oracleInput(in.Subject, in.BodyText))
				select {
				case results <- embedResult{emailID: in.EmailID, vector: vec, err: err}:
				case <-gctx.Done():
				}
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	inserted := 0
	for res := range results {
		if res.err != nil {
			ix.log.Warn("embedding failed", "email", res.emailID, "error", res.err)
			stats.Failed++
			continue
		}
		err := ix.store.InsertEmbedding(res.emailID, res.vector)
		switch {
		case err == nil:
			stats.Embedded++
			inserted++
			if inserted%progressEvery == 0 {
				ix.log.Debug("embedding progress", "embedded", stats.Embedded, "total", len(pending))
			}
		default:
			// Store failure aborts; a concurrent duplicate would also
			// surface here and there is no legitimate writer racing us.
			return stats, err
		}
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	ix.log.Info("embedding complete", "embedded", stats.Embedded, "failed", stats.Failed)
	return stats, nil
}

// FindSimilar embeds the query text and ranks every stored vector by
// cosine similarity, descending. Ties keep the stable email-id order of
// the underlying scan. This is an O(N*D) linear scan; at this scale no
// index structure is needed.
func (ix *Indexer) FindSimilar(ctx context.Context, queryText string, topK int) ([]Match, error) {
	queryVec, err := ix.oracle.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	rows, err := ix.store.ListEmbeddings()
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{
			EmailID:    row.EmailID,
			Similarity: CosineSimilarity(queryVec, row.Vector),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// CosineSimilarity returns dot(a,b)/(|a|*|b|), or 0 when either vector
// has zero norm. Mismatched lengths compare over the shorter prefix.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		normA += float64(v) * float64(v)
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
