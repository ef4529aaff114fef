package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"

	"github.com/kartoza/labcalc/internal/api"
	"github.com/kartoza/labcalc/internal/cache"
	"github.com/kartoza/labcalc/internal/config"
	"github.com/kartoza/labcalc/internal/logger"
	"github.com/kartoza/labcalc/internal/models"
)

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	cache      *cache.Cache
}

// New creates a new Server with all components initialized
func New(cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := cache.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	if c == nil {
		logger.Infof("response cache disabled")
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		cache:  c,
	}
	s.setupRoutes()

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.cfg, s.cache)
	apiHandler.RegisterRoutes(apiRouter)

	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
}

// Handler returns the router wrapped in the middleware chain. Compression is
// outermost so logged status codes are those the handlers chose.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = accessLog(h)
	h = requestID(h)
	h = cors(s.cfg.CORSOrigins)(h)
	return gzhttp.GzipHandler(h)
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Infof("server listening on http://localhost:%d", s.cfg.Port)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if st := s.cache.Stats(); st.Enabled {
		logger.Infof("response cache: %d entries, %d hits, %d misses", st.Size, st.Hits, st.Misses)
	}

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("labcalc API v%s is running", s.cfg.Version),
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, models.ErrorResponse{Detail: "Not Found"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("error encoding response: %v", err)
	}
}
