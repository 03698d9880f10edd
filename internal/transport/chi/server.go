// Package chi exposes the search engine over HTTP. The surface is
// deliberately thin: the broader API layer lives outside this service.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
	"github.com/dealhound-cloud/dealhound/internal/domain/deal"
	healthuc "github.com/dealhound-cloud/dealhound/internal/usecase/health"
	searchuc "github.com/dealhound-cloud/dealhound/internal/usecase/search"
)

// Server wires the search and health services into chi handlers.
type Server struct {
	search *searchuc.Service
	health *healthuc.Service
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search *searchuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{search: search, health: health, logger: logger}
}

// Routes registers the server's handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.handleSearch)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// searchRequest is the wire shape of a search call. Prices are integer cents.
type searchRequest struct {
	Query            string   `json:"query"`
	PriceMinCents    int64    `json:"price_min_cents,omitempty"`
	PriceMaxCents    int64    `json:"price_max_cents,omitempty"`
	Categories       []string `json:"categories,omitempty"`
	Brands           []string `json:"brands,omitempty"`
	RequiredFeatures []string `json:"required_features,omitempty"`
	MinDiscountPct   float64  `json:"min_discount_pct,omitempty"`
	Limit            int      `json:"limit,omitempty"`
	Refresh          bool     `json:"refresh,omitempty"`
}

type searchItem struct {
	Key         string    `json:"key"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category,omitempty"`
	DiscountPct float64   `json:"discount_pct,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	Score       float64   `json:"score"`
	FoundAt     time.Time `json:"found_at"`
}

type sourceErrorBody struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
}

type searchResponse struct {
	Items        []searchItem      `json:"items"`
	Partial      bool              `json:"partial"`
	SourceErrors []sourceErrorBody `json:"source_errors,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	filters := criteria.Filters{
		PriceMinCents:    req.PriceMinCents,
		PriceMaxCents:    req.PriceMaxCents,
		Categories:       req.Categories,
		Brands:           req.Brands,
		RequiredFeatures: req.RequiredFeatures,
		MinDiscountPct:   req.MinDiscountPct,
	}
	opts := searchuc.Options{Limit: req.Limit, BypassCache: req.Refresh}

	result, err := s.search.Search(r.Context(), req.Query, filters, opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(result))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSourcesEnabled):
		writeError(w, http.StatusServiceUnavailable, "no_sources_enabled", err.Error())
	case errors.Is(err, domain.ErrSearchUnavailable):
		writeError(w, http.StatusServiceUnavailable, "search_unavailable", err.Error())
	default:
		s.logger.Error("search request failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	}
}

func toResponse(result searchuc.Result) searchResponse {
	resp := searchResponse{
		Items:   make([]searchItem, 0, len(result.Items)),
		Partial: result.Partial,
	}
	for _, d := range result.Items {
		resp.Items = append(resp.Items, toItem(d))
	}
	for _, se := range result.SourceErrors {
		resp.SourceErrors = append(resp.SourceErrors, sourceErrorBody{
			Source: se.Source,
			Kind:   string(se.Kind),
		})
	}
	return resp
}

func toItem(d deal.Deal) searchItem {
	return searchItem{
		Key:         d.Key,
		Source:      d.Source,
		URL:         d.URL,
		Title:       d.Title,
		PriceCents:  d.PriceCents,
		Currency:    d.Currency,
		Category:    d.Category,
		DiscountPct: d.DiscountPct,
		Rating:      d.Rating,
		Score:       d.Score,
		FoundAt:     d.FoundAt,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
