package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"SmartphoneRanker/internal/domain"
	"SmartphoneRanker/internal/usecase"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	version             = "1.0.0"
)

// RankingService is what the handlers need from the use case layer.
type RankingService interface {
	RankedList(ctx context.Context) ([]domain.RankedProduct, error)
	Refresh(ctx context.Context) usecase.RefreshAck
	Status() usecase.ServiceStatus
	History(ctx context.Context, limit int) ([]domain.RankingRun, error)
}

// Server exposes the ranking service over HTTP.
type Server struct {
	service        RankingService
	allowedOrigins map[string]bool
	logger         *slog.Logger
	now            func() time.Time
}

// NewServer builds the handler set. Origins listed are allowed cross-origin access.
func NewServer(service RankingService, allowedOrigins []string, log *slog.Logger) *Server {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	s := &Server{service: service, allowedOrigins: origins, now: time.Now}
	if log != nil {
		s.logger = log.With("component", "http")
	}
	return s
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /top-mobiles", s.handleTopMobiles)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /storage-status", s.handleStorageStatus)
	mux.HandleFunc("GET /history", s.handleHistory)

	return s.logRequest(s.cors(mux))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Sentiment-Ranked Smartphones API",
		"version": version,
		"endpoints": map[string]string{
			"top_mobiles":    "/top-mobiles",
			"refresh":        "/refresh",
			"health":         "/health",
			"storage_status": "/storage-status",
			"history":        "/history",
		},
	})
}

func (s *Server) handleTopMobiles(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.RankedList(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if products == nil {
		products = []domain.RankedProduct{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Refresh(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.service.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"timestamp":       s.now(),
		"model_loaded":    st.ClassifierConfigured,
		"cache_size":      st.Storage.Memory.Size,
		"run_in_flight":   st.RunInFlight,
		"history_enabled": st.HistoryEnabled,
		"storage": map[string]any{
			"smartphones_file_exists":   st.Storage.Snapshot.Exists,
			"smartphones_file_size":     st.Storage.Snapshot.SizeBytes,
			"smartphones_file_modified": st.Storage.Snapshot.Modified,
			"data_directory":            st.Storage.Directory,
		},
	})
}

func (s *Server) handleStorageStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status().Storage)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_limit", Detail: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if runs == nil {
		runs = []domain.RankingRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// writeError maps pipeline failures to distinct status codes and error codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrExtractionUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "extraction_unavailable", Detail: "Failed to scrape real smartphone data"})
	case errors.Is(err, domain.ErrNoDataProcessed):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "no_data_processed", Detail: "Failed to process any smartphone data"})
	default:
		if s.logger != nil {
			s.logger.Error("request failed", "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Detail: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
