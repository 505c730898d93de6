// Package api provides REST API endpoints for load parsing and storage.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"load_parser/internal/extractor"
	"load_parser/internal/load"
	"load_parser/internal/storage"
)

// maxBodySize bounds the size of a load text submission.
const maxBodySize = 1 << 20

// Server provides REST API access to the load parser and its stores.
// Both stores are optional: with a nil PostgresDB the server runs in
// parse-only mode, with a nil ClickHouseDB parse auditing is skipped.
type Server struct {
	pg   *storage.PostgresDB
	ch   *storage.ClickHouseDB
	port int
}

// Config holds configuration for the API server.
type Config struct {
	Port int
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() Config {
	return Config{Port: 8080}
}

// NewServer creates a new load parser API server.
func NewServer(pg *storage.PostgresDB, ch *storage.ClickHouseDB, cfg Config) *Server {
	return &Server{
		pg:   pg,
		ch:   ch,
		port: cfg.Port,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Load parser API starting at http://localhost%s", addr)
	if s.pg == nil {
		log.Printf("Storage: DISABLED (parse-only mode)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Post("/loads/parse", s.handleParse)

	// Persistence endpoints require PostgreSQL.
	r.Post("/loads", s.handleCreateLoad)
	r.Get("/loads", s.handleListLoads)
	r.Get("/loads/{id}", s.handleGetLoad)
	r.Put("/loads/{id}/dispatcher/{dispatcher_id}", s.handleSetDispatcher)

	r.Post("/dispatchers", s.handleCreateDispatcher)
	r.Get("/dispatchers", s.handleListDispatchers)
	r.Get("/dispatchers/{id}", s.handleGetDispatcher)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// readLoadText reads the raw load text from the request body. Returns
// false after writing an error response when the body cannot be read.
func readLoadText(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return "", false
	}
	return string(body), true
}

// dispatcherOption builds the extractor options for an optional
// dispatcher_id query parameter.
func dispatcherOption(r *http.Request) ([]extractor.Option, error) {
	raw := r.URL.Query().Get("dispatcher_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New("dispatcher_id must be an integer")
	}
	return []extractor.Option{extractor.WithDispatcher(id)}, nil
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	text, ok := readLoadText(w, r)
	if !ok {
		return
	}

	opts, err := dispatcherOption(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	parsed, err := extractor.Parse(text, opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse load text")
		return
	}

	s.audit(r, parsed, text, time.Since(start), "api")

	writeJSON(w, http.StatusOK, parsed)
}

func (s *Server) handleCreateLoad(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	text, ok := readLoadText(w, r)
	if !ok {
		return
	}

	opts, err := dispatcherOption(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	parsed, err := extractor.Parse(text, opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse load text")
		return
	}

	id, err := s.pg.InsertLoad(r.Context(), parsed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.audit(r, parsed, text, time.Since(start), "api")

	stored, err := s.pg.GetLoad(r.Context(), id)
	if err != nil || stored == nil {
		// The load is saved even if the readback failed.
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
		return
	}

	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleListLoads(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	skip := 0
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			skip = v
		}
	}

	loads, err := s.pg.ListLoads(r.Context(), limit, skip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if loads == nil {
		loads = []storage.StoredLoad{}
	}

	writeJSON(w, http.StatusOK, loads)
}

func (s *Server) handleGetLoad(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid load id")
		return
	}

	stored, err := s.pg.GetLoad(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stored == nil {
		writeError(w, http.StatusNotFound, "Load not found")
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleSetDispatcher(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	loadID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid load id")
		return
	}
	dispatcherID, err := strconv.ParseInt(chi.URLParam(r, "dispatcher_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dispatcher id")
		return
	}

	disp, err := s.pg.GetDispatcher(r.Context(), dispatcherID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if disp == nil {
		writeError(w, http.StatusNotFound, "Dispatcher not found")
		return
	}

	if err := s.pg.SetDispatcher(r.Context(), loadID, dispatcherID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	stored, err := s.pg.GetLoad(r.Context(), loadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleCreateDispatcher(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	var disp storage.Dispatcher
	if err := json.NewDecoder(r.Body).Decode(&disp); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if disp.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := s.pg.CreateDispatcher(r.Context(), disp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	disp.ID = id

	writeJSON(w, http.StatusCreated, disp)
}

func (s *Server) handleListDispatchers(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	dispatchers, err := s.pg.ListDispatchers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dispatchers == nil {
		dispatchers = []storage.Dispatcher{}
	}

	writeJSON(w, http.StatusOK, dispatchers)
}

func (s *Server) handleGetDispatcher(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dispatcher id")
		return
	}

	disp, err := s.pg.GetDispatcher(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if disp == nil {
		writeError(w, http.StatusNotFound, "Dispatcher not found")
		return
	}

	writeJSON(w, http.StatusOK, disp)
}

// audit records a successful parse in ClickHouse. Failures are logged,
// never surfaced to the client.
func (s *Server) audit(r *http.Request, parsed *load.ParsedLoad, text string, duration time.Duration, source string) {
	if s.ch == nil {
		return
	}

	err := s.ch.InsertParseEvent(r.Context(), storage.ParseEvent{
		TripID:        parsed.Trip.TripID,
		Source:        source,
		LegCount:      uint8(len(parsed.Legs)),
		MissingFields: parsed.MissingFields(),
		RawText:       text,
		ParsedData:    parsed,
		Duration:      duration,
	})
	if err != nil {
		log.Printf("Failed to record parse event: %v", err)
	}
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
