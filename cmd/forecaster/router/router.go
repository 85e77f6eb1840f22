// Package router configures HTTP routes for the forecasting service's API.
//
// The service exposes an HTTP server on port 8080 (configurable) that drives
// the per-user pipeline and serves its artifacts. This package sets up the
// routes for that HTTP server.
//
// Routes configured:
//   - POST /data/upload - Ingest raw sales records
//   - POST /pipeline/preprocess - Clean the uploaded data
//   - POST /pipeline/features - Build model features
//   - POST /pipeline/train - Fit the estimators
//   - POST /pipeline/forecast - Predict future demand
//   - GET /insights - Inventory insights for the latest forecast
//   - GET /alerts - Threshold alerts for the latest forecast
//   - GET /report - Plain-text summary report
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// Every pipeline route identifies the caller through the X-User-ID header;
// the same header always addresses the same session. Stage routes respond
// 409 Conflict when a prerequisite stage has not run yet, 400 Bad Request
// for malformed input, and 500 for everything else.
package router

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/features"
	"github.com/InsaneAbhishek/inventoryai/pkg/forecast"
	"github.com/InsaneAbhishek/inventoryai/pkg/httpx"
	"github.com/InsaneAbhishek/inventoryai/pkg/models"
	"github.com/InsaneAbhishek/inventoryai/pkg/preprocess"
	"github.com/InsaneAbhishek/inventoryai/pkg/session"
	"github.com/InsaneAbhishek/inventoryai/pkg/training"
)

// maxUploadBytes caps the request body read for uploads.
const maxUploadBytes = 50 << 20

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,127}$`)

// SetupRoutes configures HTTP endpoints for the forecasting service.
func SetupRoutes(manager *session.Manager, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", httpx.HealthHandler())
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /data/upload", handleUpload(manager, logger))
	mux.HandleFunc("POST /pipeline/preprocess", handlePreprocess(manager))
	mux.HandleFunc("POST /pipeline/features", handleFeatures(manager))
	mux.HandleFunc("POST /pipeline/train", handleTrain(manager))
	mux.HandleFunc("POST /pipeline/forecast", handleForecast(manager))
	mux.HandleFunc("GET /insights", handleInsights(manager))
	mux.HandleFunc("GET /alerts", handleAlerts(manager))
	mux.HandleFunc("GET /report", handleReport(manager))

	return mux
}

// sessionFor resolves the caller's session from the X-User-ID header.
// A missing or malformed header writes a 400 and returns nil.
func sessionFor(manager *session.Manager, w http.ResponseWriter, r *http.Request) *session.Session {
	user := r.Header.Get("X-User-ID")
	if user == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "X-User-ID header required")
		return nil
	}
	if !userIDRegex.MatchString(user) {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid X-User-ID format")
		return nil
	}
	return manager.Session(user)
}

// writeStageError maps pipeline errors onto HTTP status codes.
func writeStageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrMissingPrerequisite):
		httpx.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, forecast.ErrColumnMismatch):
		httpx.WriteError(w, http.StatusConflict, err)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err)
	}
}

func handleUpload(manager *session.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFor(manager, w, r)
		if s == nil {
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
		if err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		var records []dataset.Record
		if err := json.Unmarshal(body, &records); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "body must be a JSON array of records")
			return
		}
		if len(records) == 0 {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "no records in upload")
			return
		}

		rows, err := s.Ingest(r.Context(), records)
		if err != nil {
			logger.Error("upload failed", "error", err)
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, logger, map[string]any{
			"status": "uploaded",
			"rows":   rows,
		})
	}
}

func handlePreprocess(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFor(manager, w, r)
		if s == nil {
			return
		}

		opts := preprocess.DefaultOptions()
		if !decodeOptions(w, r, &opts) {
			return
		}

		if err := s.Preprocess(r.Context(), opts); err != nil {
			writeStageError(w, err)
			return
		}
		writeJSON(w, nil, map[string]any{"status": "preprocessed"})
	}
}

func handleFeatures(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFor(manager, w, r)
		if s == nil {
			return
		}

		opts := features.DefaultOptions()
		if !decodeOptions(w, r, &opts) {
			return
		}

		if err := s.BuildFeatures(r.Context(), opts); err != nil {
			writeStageError(w, err)
			return
		}
		writeJSON(w, nil, map[string]any{"status": "features built"})
	}
}

// trainRequest is the optional JSON body for POST /pipeline/train.
type trainRequest struct {
	Estimators   []string `json:"estimators"`
	TestFraction float64  `json:"test_fraction"`
}

func handleTrain(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFor(manager, w, r)
		if s == nil {
			return
		}

		var req trainRequest
		if !decodeOptions(w, r, &req) {
			return
		}

		opts := training.Options{TestFraction: req.TestFraction}
		for _, name := range req.Estimators {
			kind, err := models.ParseKind(name)
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, err)
				return
			}
			opts.Kinds = append(opts.Kinds, kind)
		}

		res, err := s.Train(r.Context(), opts)
		if err != nil {
			writeStageError(w, err)
			return
		}

		writeJSON(w, nil, map[string]any{
			"status":      "trained",
			"performance": res.Performance,
			"split":       res.Split,
		})
	}
}

// forecastRequest is the optional JSON body for POST /pipeline/forecast.
type forecastRequest struct {
	Horizon   int    `json:"horizon"`
	Estimator string `json:"estimator"`
}

func handleForecast(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFor(manager, w, r)
		if s == nil {
			return
		}

		var req forecastRequest
		if !decodeOptions(w, r, &req) {
			return
		}

		opts := forecast.Options{Horizon: req.Horizon}
		if req.Estimator != "" {
			kind, err := models.ParseKind(req.Estimator)
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, err)
				return
			}
			opts.Kind = kind
		}

		points, err := s.Forecast(r.Context(), opts)
		if err != nil {
			writeStageError(w, err)
			return
		}

		writeJSON(w, nil, map[string]any{
			"status":   "forecasted",
			"horizon":  len(points),
			"forecast": points,
		})
	}
}

func handleInsights(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFor(manager, w, r)
		if s == nil {
			return
		}

		res, err := s.Insights(r.Context())
		if err != nil {
			writeStageError(w, err)
			return
		}
		writeJSON(w, nil, res)
	}
}

func handleAlerts(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFor(manager, w, r)
		if s == nil {
			return
		}

		list, err := s.Alerts()
		if err != nil {
			writeStageError(w, err)
			return
		}
		writeJSON(w, nil, map[string]any{
			"count":  len(list),
			"alerts": list,
		})
	}
}

func handleReport(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFor(manager, w, r)
		if s == nil {
			return
		}

		text, err := s.Report(r.Context())
		if err != nil {
			writeStageError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(text)); err != nil {
			slog.Error("failed to write report response", "error", err)
		}
	}
}

// decodeOptions fills v from the request body when one is present. An empty
// body keeps the passed-in defaults. Returns false after writing a 400.
func decodeOptions(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	if err := httpx.WriteJSON(w, http.StatusOK, v); err != nil && logger != nil {
		logger.Error("failed to write JSON response", "error", err)
	}
}
