package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer serves the persisted CLF run results over HTTP.
type WebServer struct {
	router *mux.Router
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/results", ws.handleListRuns).Methods("GET")
	api.HandleFunc("/results/latest", ws.handleGetLatestRun).Methods("GET")
	api.HandleFunc("/results/{date}", ws.handleGetRunByDate).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	var lastRun map[string]interface{}
	latest, err := state.GetLatestRun()
	if err == nil {
		lastRun = map[string]interface{}{
			"run_date":  latest.RunDate.UTC().Format("2006-01-02"),
			"end_block": latest.EndBlock,
			"saved_at":  latest.CreatedAt,
		}
	} else if !errors.Is(err, state.ErrRunNotFound) {
		hasErrors = true
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "clf-risk-engine",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"last_run":         lastRun,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleListRuns returns the most recent run dates
func (ws *WebServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 365 {
			limit = parsedLimit
		}
	}

	dates, err := state.ListRunDates(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list run dates")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve run dates")
		return
	}

	formatted := make([]string, len(dates))
	for i, date := range dates {
		formatted[i] = date.UTC().Format("2006-01-02")
	}

	response := map[string]interface{}{
		"dates": formatted,
		"count": len(formatted),
		"limit": limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestRun returns the most recent persisted run
func (ws *WebServer) handleGetLatestRun(w http.ResponseWriter, r *http.Request) {
	record, err := state.GetLatestRun()
	if err != nil {
		if errors.Is(err, state.ErrRunNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No runs found")
			return
		}
		webLogger.Error().Err(err).Msg("Failed to get latest run")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve latest run")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, record)
}

// handleGetRunByDate returns the persisted run for a specific date
func (ws *WebServer) handleGetRunByDate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dateStr := vars["date"]

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	record, err := state.GetRunByDate(date)
	if err != nil {
		if errors.Is(err, state.ErrRunNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No run found for date")
			return
		}
		webLogger.Error().Err(err).Str("date", dateStr).Msg("Failed to get run")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, record)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
