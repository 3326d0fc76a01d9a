package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/models"
	"github.com/hyperjump/reteval/internal/ranking"
	"github.com/hyperjump/reteval/internal/storage"
	"github.com/hyperjump/reteval/pkg/utils"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.config.DefaultLimit, s.config.MaxLimit); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	scheme := s.pool.DefaultScheme()
	if req.WeightScheme != "" {
		var err error
		if scheme, err = ranking.ParseScheme(req.WeightScheme); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	s.logger.Debug("search request",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("query", utils.Truncate(req.Query, 200)),
		zap.Stringer("scheme", scheme),
		zap.Int("limit", req.Limit))

	response, err := s.search(r.Context(), req, scheme)
	if err != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(scheme.String(), "error").Inc()
		s.logger.Error("search failed", zap.String("query", utils.Truncate(req.Query, 200)), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// search answers from the cache when possible. Concurrent identical requests share one evaluation.
func (s *Server) search(ctx context.Context, req models.SearchRequest, scheme ranking.Scheme) (*models.SearchResponse, error) {
	q := req.Document("")
	if s.analyzer != nil {
		var err error
		if q.Terms, err = s.analyzer.Analyze(q.Terms); err != nil {
			return nil, fmt.Errorf("failed to analyze query: %w", err)
		}
	}
	key := cacheKey(scheme, req.Limit, q.Terms)
	q.ID = key
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.SearchQueriesTotal.WithLabelValues(scheme.String(), "cached").Inc()
		hit := *cached
		hit.Query = req.Query
		hit.Cached = true
		return &hit, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		start := time.Now()
		// followers of this call must not fail because the leader's client went away
		out, err := s.pool.Search(context.WithoutCancel(ctx), scheme, q, req.Limit)
		if err != nil {
			return nil, err
		}
		elapsed := time.Since(start)
		s.metrics.SearchLatency.WithLabelValues(scheme.String()).Observe(elapsed.Seconds())
		s.metrics.SearchQueriesTotal.WithLabelValues(scheme.String(), "computed").Inc()
		s.metrics.DroppedTermsTotal.Add(float64(len(out.Dropped)))

		resp := &models.SearchResponse{
			Query:        req.Query,
			WeightScheme: scheme.String(),
			Results:      out.Result.Documents,
			DroppedTerms: out.Dropped,
			QueryTime:    elapsed.Milliseconds(),
		}
		if s.suggest != nil && len(out.Dropped) > 0 {
			resp.Suggestions = s.suggest.Best(out.Dropped)
		}
		if resp.Results == nil {
			resp.Results = []models.RankedDocument{}
		}
		s.cache.Set(key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp := *v.(*models.SearchResponse)
	resp.Query = req.Query
	return &resp, nil
}

func cacheKey(scheme ranking.Scheme, limit int, terms []string) string {
	return fmt.Sprintf("%s|%d|%s", scheme, limit, strings.Join(terms, " "))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := statsOf(s.pool.Index())
	resp := map[string]interface{}{
		"documents":      st.Documents,
		"terms":          st.Terms,
		"postings":       st.Postings,
		"avg_doc_length": st.AvgDocLength,
		"backend":        st.Backend,
		"weight_scheme":  s.pool.DefaultScheme().String(),
		"cache_entries":  s.cache.Len(),
	}
	if !st.SavedAt.IsZero() {
		resp["saved_at"] = st.SavedAt
	}
	if len(s.disk) > 0 {
		diskBytes, err := storage.DiskUsageBytes(s.disk...)
		if err != nil {
			s.logger.Warn("stats: disk usage failed", zap.Error(err))
		} else {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statsOf uses the index's own summary when it has one.
func statsOf(idx index.Index) index.Stats {
	if sp, ok := idx.(interface{ Stats() index.Stats }); ok {
		return sp.Stats()
	}
	st := index.Stats{Documents: idx.DocCount(), Terms: idx.TermCountUnique(), AvgDocLength: idx.DocLengthAvg()}
	for t := 1; t <= st.Terms; t++ {
		st.Postings += len(idx.Postings(t))
	}
	return st
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
