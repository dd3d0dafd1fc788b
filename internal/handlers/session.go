package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/emotionink/engine/internal/reconciler"
	"github.com/emotionink/engine/pkg/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// maxImageBytes caps the uploaded character sketch at 8 MiB.
const maxImageBytes = 8 << 20

// SessionHandler exposes session lifecycle operations over HTTP.
type SessionHandler struct {
	reconciler *reconciler.Reconciler
	logger     *slog.Logger
}

func NewSessionHandler(rec *reconciler.Reconciler, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		reconciler: rec,
		logger:     logger,
	}
}

// ServeHTTP handles HTTP requests for session operations.
// Routes:
// POST /v1/sessions                    - Create session from an uploaded image
// GET  /v1/sessions/{id}               - Read session by ID
// POST /v1/sessions/{id}/message       - Send one user message
// POST /v1/sessions/{id}/mode          - Switch between text and voice replies
// POST /v1/sessions/{id}/restart       - Reset session to the init phase
// POST /v1/sessions/{id}/guide/next    - Advance the demo walkthrough
// POST /v1/sessions/{id}/guide/end     - Dismiss the demo walkthrough
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/v1/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	sessionID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	action := strings.Join(parts[1:], "/")
	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleRead(w, r, sessionID)
	case action == "message" && r.Method == http.MethodPost:
		h.handleMessage(w, r, sessionID)
	case action == "mode" && r.Method == http.MethodPost:
		h.handleMode(w, r, sessionID)
	case action == "restart" && r.Method == http.MethodPost:
		h.handleRestart(w, r, sessionID)
	case action == "guide/next" && r.Method == http.MethodPost:
		h.handleGuideNext(w, r, sessionID)
	case action == "guide/end" && r.Method == http.MethodPost:
		h.handleGuideEnd(w, r, sessionID)
	default:
		h.logger.Warn("Unknown session route", "method", r.Method, "path", r.URL.Path)
		h.writeError(w, http.StatusNotFound, "Unknown session route")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Creating new session")

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		h.logger.Warn("Invalid multipart form", "error", err)
		h.writeError(w, http.StatusBadRequest, "Request must be multipart/form-data with an image field")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.logger.Warn("Missing image field", "error", err)
		h.writeError(w, http.StatusBadRequest, "image field is required")
		return
	}
	defer file.Close() //nolint:errcheck

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		h.logger.Error("Failed to read uploaded image", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to read uploaded image")
		return
	}
	if len(image) == 0 {
		h.writeError(w, http.StatusBadRequest, "image file is empty")
		return
	}
	if len(image) > maxImageBytes {
		h.writeError(w, http.StatusBadRequest, "image file is too large")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}

	result, err := h.reconciler.CreateSession(r.Context(), image, mimeType,
		r.FormValue("name_hint"), r.FormValue("vibe_hint"))
	if err != nil {
		h.logger.Error("Failed to create session", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, result)
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.reconciler.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, reconciler.ErrSessionNotFound) {
			h.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("Failed to load session", "error", err, "id", id.String())
		h.writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	h.writeJSON(w, s)
}

// MessageRequest is the body for sending one user message.
type MessageRequest struct {
	Text   string                `json:"text"`
	Target session.MessageTarget `json:"target,omitempty"`
}

func (h *SessionHandler) handleMessage(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "text field is required")
		return
	}

	result, err := h.reconciler.SendMessage(r.Context(), id, req.Text, req.Target)
	if err != nil {
		switch {
		case errors.Is(err, reconciler.ErrSessionNotFound):
			h.writeError(w, http.StatusNotFound, "Session not found")
		case errors.Is(err, reconciler.ErrSessionBusy):
			h.writeError(w, http.StatusConflict, "Session is processing another request")
		default:
			h.logger.Error("Failed to process message", "error", err, "id", id.String())
			h.writeError(w, http.StatusInternalServerError, "Failed to process message")
		}
		return
	}
	h.writeJSON(w, result)
}

// ModeRequest is the body for switching the reply communication mode.
type ModeRequest struct {
	Mode session.CommunicationMode `json:"mode"`
}

func (h *SessionHandler) handleMode(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Mode != session.ModeText && req.Mode != session.ModeVoice {
		h.writeError(w, http.StatusBadRequest, `mode must be "text" or "voice"`)
		return
	}

	s, err := h.reconciler.SetCommunicationMode(r.Context(), id, req.Mode)
	if err != nil {
		if errors.Is(err, reconciler.ErrSessionNotFound) {
			h.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("Failed to set communication mode", "error", err, "id", id.String())
		h.writeError(w, http.StatusInternalServerError, "Failed to set communication mode")
		return
	}
	h.writeJSON(w, s)
}

func (h *SessionHandler) handleRestart(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.reconciler.Restart(r.Context(), id)
	if err != nil {
		if errors.Is(err, reconciler.ErrSessionNotFound) {
			h.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("Failed to restart session", "error", err, "id", id.String())
		h.writeError(w, http.StatusInternalServerError, "Failed to restart session")
		return
	}
	h.writeJSON(w, s)
}

func (h *SessionHandler) handleGuideNext(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.reconciler.AdvanceDemoGuide(r.Context(), id)
	if err != nil {
		if errors.Is(err, reconciler.ErrSessionNotFound) {
			h.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("Failed to advance demo guide", "error", err, "id", id.String())
		h.writeError(w, http.StatusInternalServerError, "Failed to advance demo guide")
		return
	}
	h.writeJSON(w, s)
}

func (h *SessionHandler) handleGuideEnd(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.reconciler.EndDemoGuide(r.Context(), id)
	if err != nil {
		if errors.Is(err, reconciler.ErrSessionNotFound) {
			h.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("Failed to end demo guide", "error", err, "id", id.String())
		h.writeError(w, http.StatusInternalServerError, "Failed to end demo guide")
		return
	}
	h.writeJSON(w, s)
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
