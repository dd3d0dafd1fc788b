package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotionink/engine/internal/reconciler"
	"github.com/emotionink/engine/internal/services"
	"github.com/emotionink/engine/internal/storage"
	"github.com/emotionink/engine/pkg/session"
)

func newTestHandler(gw *services.MockGateway) (*SessionHandler, *reconciler.Reconciler, *storage.MockStorage) {
	store := storage.NewMockStorage()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := reconciler.New(store, gw, logger)
	rec.SetDemoDelay(0)
	return NewSessionHandler(rec, logger), rec, store
}

func initResultFixture() *session.InitResult {
	return &session.InitResult{
		Character:    session.Character{Name: "Wren", Traits: []string{"Curious"}},
		EmotionState: session.EmotionState{Courage: 40, Fear: 30, Curiosity: 80, Happiness: 50},
		MoodLabel:    "Wide-eyed",
		WorldSeed: session.WorldSeed{
			WorldName:            "The Clockwork Attic",
			StartingLocationName: "The Workbench",
		},
		BlueprintInfo: session.BlueprintInfo{
			Title:         "The Folding Bicycle Hinge",
			FirstFragment: "A sketch shows a pivot.",
		},
	}
}

func multipartImage(t *testing.T, fieldName string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, "sketch.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake-png-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestSessionHandler_Create(t *testing.T) {
	gw := services.NewMockGateway()
	gw.InitSessionFunc = func(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*session.InitResult, error) {
		return initResultFixture(), nil
	}
	handler, _, _ := newTestHandler(gw)

	body, contentType := multipartImage(t, "image")
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var result reconciler.TurnResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	assert.Equal(t, session.PhaseInteractive, result.Session.Phase)
	assert.Equal(t, "Wren", result.Session.Character.Name)
	require.NotEmpty(t, result.Effects)
	assert.Equal(t, session.SoundInit, result.Effects[0].Cue)
}

func TestSessionHandler_CreateMissingImage(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, _ := newTestHandler(gw)

	body, contentType := multipartImage(t, "picture") // wrong field name
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, gw.InitSessionCalls)
}

func TestSessionHandler_CreateNotMultipart(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, _ := newTestHandler(gw)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"image":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSessionHandler_Read(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, store := newTestHandler(gw)

	s := session.New()
	s.Phase = session.PhaseInteractive
	require.NoError(t, store.SaveSession(context.Background(), s))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+s.ID.String(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got session.Session
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, s.ID, got.ID)
}

func TestSessionHandler_ReadNotFound(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, _ := newTestHandler(gw)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionHandler_InvalidID(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, _ := newTestHandler(gw)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func sendTestMessage(t *testing.T, handler *SessionHandler, id uuid.UUID, text string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(MessageRequest{Text: text, Target: session.TargetCharacter})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id.String()+"/message", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestSessionHandler_Message(t *testing.T) {
	gw := services.NewMockGateway()
	gw.InitSessionFunc = func(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*session.InitResult, error) {
		res := initResultFixture()
		res.BlueprintState = session.BlueprintState{Progress: 0}
		return res, nil
	}
	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return &session.InteractResult{
			CharacterReply:        "The pivot locks from below.",
			UpdatedEmotionState:   session.EmotionState{Courage: 50},
			UpdatedBlueprintState: session.BlueprintState{Progress: 40},
			MoodLabel:             "Excited",
			WorldUpdate:           session.WorldUpdate{WorldMood: "Hopeful"},
		}, nil
	}
	handler, rec, _ := newTestHandler(gw)

	created, err := rec.CreateSession(context.Background(), []byte("img"), "image/png", "", "")
	require.NoError(t, err)

	rr := sendTestMessage(t, handler, created.Session.ID, "how does it lock?")

	require.Equal(t, http.StatusOK, rr.Code)
	var result reconciler.TurnResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	assert.Equal(t, 40.0, result.Session.BlueprintState.Progress)
	assert.Equal(t, session.SoundSendMessage, result.Effects[0].Cue)
}

func TestSessionHandler_MessageEmptyText(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, store := newTestHandler(gw)

	s := session.New()
	require.NoError(t, store.SaveSession(context.Background(), s))

	rr := sendTestMessage(t, handler, s.ID, "   ")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSessionHandler_MessageBusy(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, store := newTestHandler(gw)

	s := session.New()
	s.Phase = session.PhaseLoading
	require.NoError(t, store.SaveSession(context.Background(), s))

	rr := sendTestMessage(t, handler, s.ID, "impatient")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestSessionHandler_Restart(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, store := newTestHandler(gw)

	s := session.New()
	s.Phase = session.PhaseError
	s.ErrorMessage = "stuck"
	require.NoError(t, store.SaveSession(context.Background(), s))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+s.ID.String()+"/restart", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got session.Session
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, session.PhaseInit, got.Phase)
	assert.Empty(t, got.ErrorMessage)
}

func TestSessionHandler_SetMode(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, store := newTestHandler(gw)

	s := session.New()
	s.Phase = session.PhaseInteractive
	require.NoError(t, store.SaveSession(context.Background(), s))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+s.ID.String()+"/mode",
		strings.NewReader(`{"mode":"voice"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got session.Session
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, session.ModeVoice, got.CommunicationMode)

	saved, err := store.LoadSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ModeVoice, saved.CommunicationMode)
}

func TestSessionHandler_SetModeInvalid(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, store := newTestHandler(gw)

	s := session.New()
	require.NoError(t, store.SaveSession(context.Background(), s))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+s.ID.String()+"/mode",
		strings.NewReader(`{"mode":"telepathy"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSessionHandler_GuideRoutes(t *testing.T) {
	gw := services.NewMockGateway()
	handler, rec, _ := newTestHandler(gw)

	started, err := rec.StartDemo(context.Background())
	require.NoError(t, err)
	id := started.Session.ID

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id.String()+"/guide/next", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got session.Session
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, 1, got.DemoStep)

	req = httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id.String()+"/guide/end", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	got = session.Session{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, session.DemoStory, got.DemoStatus)
	assert.Zero(t, got.DemoStep)
}

func TestSessionHandler_UnknownRoute(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, _ := newTestHandler(gw)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+uuid.NewString()+"/teleport", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionHandler_MethodNotAllowed(t *testing.T) {
	gw := services.NewMockGateway()
	handler, _, _ := newTestHandler(gw)

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
