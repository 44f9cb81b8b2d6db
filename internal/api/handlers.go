package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mailtx/mailtx/internal/query"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		s.logger.Error("stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"emails":        stats.EmailCount,
		"embeddings":    stats.EmbeddingCount,
		"transactions":  stats.TransactionCount,
		"database_size": stats.DatabaseSize,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	limit := intParam(r, "limit", 20)

	results, err := s.store.SearchEmails(q, limit)
	if err != nil {
		s.logger.Warn("search failed", "query", q, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	out := make([]map[string]interface{}, len(results))
	for i, res := range results {
		out[i] = map[string]interface{}{
			"id":      res.ID,
			"date":    res.Date.String,
			"from":    res.From,
			"subject": res.Subject,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	topK := intParam(r, "k", s.cfg.Embed.TopK)

	matches, err := s.indexer.FindSimilar(r.Context(), q, topK)
	if err != nil {
		s.logger.Warn("similarity search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	out := make([]map[string]interface{}, len(matches))
	for i, m := range matches {
		out[i] = map[string]interface{}{
			"email_id":   m.EmailID,
			"similarity": m.Similarity,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := &query.Params{
		Merchant:  q.Get("merchant"),
		StartDate: q.Get("start"),
		EndDate:   q.Get("end"),
		Metric:    q.Get("metric"),
	}
	if params.Metric != query.MetricSum {
		params.Metric = query.MetricList
	}

	result := s.engine.Execute(r.Context(), params)
	if result == nil {
		writeError(w, http.StatusInternalServerError, "transactions unavailable")
		return
	}

	if params.Metric == query.MetricSum {
		out := make([]map[string]interface{}, len(result.Sums))
		for i, row := range result.Sums {
			out[i] = map[string]interface{}{
				"total_cents": row.TotalCents.Int64,
				"currency":    row.Currency,
			}
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	out := make([]map[string]interface{}, len(result.Items))
	for i, row := range result.Items {
		out[i] = map[string]interface{}{
			"merchant":     row.Merchant,
			"amount_cents": row.AmountCents,
			"currency":     row.Currency,
			"tx_date":      row.TxDate.String,
			"category":     row.Category,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"question\": \"...\"}")
		return
	}

	params := s.engine.ParseIntent(r.Context(), req.Question)
	if params == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"answer": "Could not understand the query.",
		})
		return
	}

	result := s.engine.Execute(r.Context(), params)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"params": params,
		"answer": query.FormatResult(result, params),
	})
}

func intParam(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
