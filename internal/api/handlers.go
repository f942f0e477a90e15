package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"emlak-scraper/internal/crawl"
	"emlak-scraper/internal/domain"
	"emlak-scraper/internal/scraper"
	"emlak-scraper/internal/storage"
)

func (s *Server) handleCrawlRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Category == "" {
		req.Category = scraper.CategoryHousing
	}

	resp, err := s.runner.Trigger(r.Context(), req)
	if err != nil {
		if errors.Is(err, crawl.ErrRecentlySearched) {
			resp.Message = "search recently crawled, pass force to re-run"
			s.respondWithJSON(w, http.StatusOK, resp)
			return
		}
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondWithJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.PropertyFilter{
		Title:    q.Get("title"),
		Location: q.Get("location"),
		Category: q.Get("category"),
		Offset:   parseInt(q.Get("offset"), 0),
		Limit:    parseInt(q.Get("limit"), 12),
	}

	if v := q.Get("min_price"); v != "" {
		minPrice, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Invalid min_price")
			return
		}
		filter.MinPrice = &minPrice
	}
	if v := q.Get("max_price"); v != "" {
		maxPrice, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Invalid max_price")
			return
		}
		if filter.MinPrice != nil && maxPrice < *filter.MinPrice {
			s.respondWithError(w, http.StatusBadRequest, "max_price cannot be less than min_price")
			return
		}
		filter.MaxPrice = &maxPrice
	}

	props, total, err := s.pgStore.ListProperties(r.Context(), filter)
	if err != nil {
		s.logger.Error("property query failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not query properties")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"total":      total,
		"properties": props,
	})
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid property id")
		return
	}

	prop, err := s.pgStore.GetProperty(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Property not found")
			return
		}
		s.logger.Error("property lookup failed", zap.Int64("id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not fetch property")
		return
	}

	s.respondWithJSON(w, http.StatusOK, prop)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.pgStore.ListSearchRuns(r.Context())
	if err != nil {
		s.logger.Error("run history query failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not query search history")
		return
	}
	s.respondWithJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid run id")
		return
	}

	run, err := s.pgStore.GetSearchRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Run not found")
			return
		}
		s.logger.Error("run lookup failed", zap.Int64("id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not fetch run")
		return
	}

	// The audit row holds the terminal status; Redis may carry a fresher
	// live state while the run is still in flight.
	if state, err := s.redisStore.RunState(r.Context(), id); err == nil && state != "" {
		run.Status = state
	}

	s.respondWithJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.pgStore.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	if err := s.redisStore.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	isHealthy := healthStatus["postgres"] == "healthy" && healthStatus["redis"] == "healthy"
	if !isHealthy {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}

	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func parseInt(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
