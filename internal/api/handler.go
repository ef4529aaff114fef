package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kartoza/labcalc/internal/cache"
	"github.com/kartoza/labcalc/internal/calcerr"
	"github.com/kartoza/labcalc/internal/config"
	"github.com/kartoza/labcalc/internal/fitting"
	"github.com/kartoza/labcalc/internal/logger"
	"github.com/kartoza/labcalc/internal/models"
	"github.com/kartoza/labcalc/internal/propagation"
	"github.com/kartoza/labcalc/internal/stats"
)

// Handler provides HTTP API endpoints
type Handler struct {
	cfg     config.Config
	cache   *cache.Cache
	fitOpts []fitting.Option
}

// NewHandler creates a new API handler. A nil cache disables response caching.
func NewHandler(cfg config.Config, c *cache.Cache) *Handler {
	opts, err := cfg.FitOptions()
	if err != nil {
		logger.Warnf("invalid fit configuration, using defaults: %v", err)
		opts = nil
	}
	return &Handler{
		cfg:     cfg,
		cache:   c,
		fitOpts: opts,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Catalogues
	r.HandleFunc("/operations", h.handleListOperations).Methods("GET")
	r.HandleFunc("/models", h.handleListModels).Methods("GET")

	// Computations
	r.HandleFunc("/calculate", h.cached(h.calculate)).Methods("POST")
	r.HandleFunc("/fit", h.cached(h.fit)).Methods("POST")
	r.HandleFunc("/gauss", h.cached(h.gauss)).Methods("POST")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("error encoding response: %v", err)
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Detail: message})
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":       h.cfg.Version,
		"operations":    len(propagation.Catalogue()),
		"models":        len(fitting.Models()),
		"strict_params": h.cfg.StrictParams,
		"cache":         h.cache.Stats(),
	}
	respondJSON(w, http.StatusOK, info)
}

// handleListOperations returns the propagation catalogue
func (h *Handler) handleListOperations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, propagation.Catalogue())
}

// handleListModels returns the fit models
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, fitting.Models())
}

// computeFunc turns a request body into a response value.
type computeFunc func(body []byte) (interface{}, error)

// cached reads the request body, serves a stored response for a body seen
// before, and otherwise computes, encodes and stores the response. Only
// successful responses are stored.
func (h *Handler) cached(compute computeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
				return
			}
			respondError(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		key := cache.Key(r.URL.Path, body)
		if data, ok := h.cache.Get(key); ok {
			writeEncoded(w, "HIT", data)
			return
		}

		resp, err := compute(body)
		if err != nil {
			status := calcerr.HTTPStatus(err)
			if status == http.StatusInternalServerError {
				logger.Errorf("%s: %v", r.URL.Path, err)
			}
			respondError(w, status, err.Error())
			return
		}

		data, err := json.Marshal(resp)
		if err != nil {
			logger.Errorf("error encoding response: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
		h.cache.Add(key, data)
		writeEncoded(w, "MISS", data)
	}
}

func writeEncoded(w http.ResponseWriter, cacheStatus string, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Errorf("error writing response: %v", err)
	}
}

func decode(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return calcerr.New(calcerr.InvalidInput, "invalid request body: %v", err)
	}
	return nil
}

// calculate propagates uncertainties through one catalogue operation
func (h *Handler) calculate(body []byte) (interface{}, error) {
	var req models.CalculationRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}

	op, err := propagation.Lookup(req.Operation)
	if err != nil {
		return nil, err
	}

	var res *propagation.Result
	if h.cfg.StrictParams {
		res, err = propagation.Strict(op, req.Inputs(), req.Supplied())
	} else {
		res, err = propagation.Propagate(op, req.Inputs())
	}
	if err != nil {
		return nil, err
	}
	return models.NewCalculationResponse(res, req.Gradient), nil
}

// fit runs a weighted curve fit
func (h *Handler) fit(body []byte) (interface{}, error) {
	var req models.FitRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}

	m, err := fitting.ParseModel(req.Model)
	if err != nil {
		return nil, err
	}

	opts := append([]fitting.Option(nil), h.fitOpts...)
	if req.ErrorScaling != "" {
		scaling, err := fitting.ParseErrorScaling(req.ErrorScaling)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fitting.WithErrorScaling(scaling))
	}

	res, err := fitting.Fit(req.Series(), m, opts...)
	if err != nil {
		return nil, err
	}
	logger.Debugf("%s fit: n=%d iterations=%d converged=%t chi2/ndof=%.4g",
		m, res.N, res.Iterations, res.Converged, res.Chi2NDOF)
	return models.NewFitResponse(res, req.Meta(m)), nil
}

// gauss summarises a sample of repeated measurements
func (h *Handler) gauss(body []byte) (interface{}, error) {
	var req models.GaussRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}

	res, err := stats.Describe(req.Sample())
	if err != nil {
		return nil, err
	}
	return models.NewGaussResponse(res), nil
}
