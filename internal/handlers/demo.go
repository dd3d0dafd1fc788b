package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/emotionink/engine/internal/reconciler"
	"github.com/emotionink/engine/pkg/demo"
)

// DemoHandler creates demo sessions and serves the walkthrough script.
type DemoHandler struct {
	reconciler *reconciler.Reconciler
	logger     *slog.Logger
}

func NewDemoHandler(rec *reconciler.Reconciler, logger *slog.Logger) *DemoHandler {
	return &DemoHandler{
		reconciler: rec,
		logger:     logger,
	}
}

// ServeHTTP handles demo routes.
// Routes:
// POST /v1/demo        - Create a scripted demo session
// GET  /v1/demo/guide  - Read the walkthrough steps
func (h *DemoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/v1/demo" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case r.URL.Path == "/v1/demo/guide" && r.Method == http.MethodGet:
		h.handleGuide(w)
	default:
		h.logger.Warn("Unknown demo route", "method", r.Method, "path", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: "Unknown demo route"}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
	}
}

func (h *DemoHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.StartDemo(r.Context())
	if err != nil {
		h.logger.Error("Failed to create demo session", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to create demo session"}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("Failed to encode demo session response", "error", err)
	}
}

func (h *DemoHandler) handleGuide(w http.ResponseWriter) {
	if err := json.NewEncoder(w).Encode(demo.GuideSteps); err != nil {
		h.logger.Error("Failed to encode guide steps", "error", err)
	}
}
