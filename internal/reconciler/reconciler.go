// Package reconciler owns the session lifecycle. It is the only writer
// of session state: every operation loads a session, drives the phase
// machine, merges gateway or scripted results through the shared merge
// contract, and persists the outcome along with the presentation
// effects it produced.
package reconciler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emotionink/engine/internal/metrics"
	"github.com/emotionink/engine/internal/services"
	"github.com/emotionink/engine/internal/storage"
	"github.com/emotionink/engine/pkg/demo"
	"github.com/emotionink/engine/pkg/session"
	"github.com/emotionink/engine/pkg/textfilter"
)

var (
	// ErrSessionNotFound is returned when the session ID does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy is returned when a gateway request is already
	// outstanding for the session.
	ErrSessionBusy = errors.New("session is processing another request")
)

// User-facing failure copy. Technical detail goes to the log, never to
// the player.
const (
	initErrorMessage     = "Failed to bring character to life. The AI may be experiencing heavy load. Please try again."
	interactErrorMessage = "An unexpected event occurred. The story is paused."
	fallbackSummary      = "You pieced the blueprint back together, one question at a time. The full design is restored."
)

const speechMimeType = "audio/mp3"

// TurnResult is the outcome of one reconciler operation: the committed
// session snapshot plus the ordered effects the presentation layer
// should play.
type TurnResult struct {
	Session *session.Session `json:"session"`
	Effects []session.Effect `json:"effects,omitempty"`
}

// Reconciler sequences gateway calls, state merges and persistence for
// every session operation.
type Reconciler struct {
	storage storage.Storage
	gateway services.Gateway
	filter  *textfilter.Filter
	logger  *slog.Logger

	// demoDelay simulates model thinking time between a demo message and
	// its scripted response. Zero in tests.
	demoDelay time.Duration
}

// New creates a reconciler.
func New(store storage.Storage, gateway services.Gateway, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		storage:   store,
		gateway:   gateway,
		filter:    textfilter.New(),
		logger:    logger,
		demoDelay: time.Second,
	}
}

// SetDemoDelay overrides the scripted thinking delay.
func (r *Reconciler) SetDemoDelay(d time.Duration) {
	r.demoDelay = d
}

// GetSession returns the current session snapshot.
func (r *Reconciler) GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	s, err := r.storage.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// CreateSession brings an uploaded character sketch to life. The
// session is persisted in the loading phase before the gateway call so
// its existence is observable immediately; a gateway failure commits
// the error phase rather than discarding the session.
func (r *Reconciler) CreateSession(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*TurnResult, error) {
	s := session.New()
	s.Phase = session.PhaseLoading
	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}

	log := r.logger.With("session_id", s.ID)
	log.Info("Creating session", "mime_type", mimeType, "image_bytes", len(image))

	res, err := r.gateway.InitSession(ctx, image, mimeType, nameHint, vibeHint)
	if err != nil {
		log.Error("Init failed", "error", err)
		s.Phase = session.PhaseError
		s.ErrorMessage = initErrorMessage
		if saveErr := r.storage.SaveSession(ctx, s); saveErr != nil {
			return nil, saveErr
		}
		return &TurnResult{Session: s}, nil
	}

	r.filterInit(res)
	imageRef := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	effects := session.ApplyInit(s, res, imageRef)
	s.Phase = session.PhaseInteractive

	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}

	metrics.SessionsCreated.WithLabelValues("live").Inc()
	log.Info("Session created", "character", res.Character.Name, "world", res.WorldSeed.WorldName)
	return &TurnResult{Session: s, Effects: effects}, nil
}

// SendMessage processes one user message. The user's history item is
// committed before the gateway round trip and is deliberately not
// rolled back on failure. Sessions in a terminal or init phase absorb
// the message without effect.
func (r *Reconciler) SendMessage(ctx context.Context, id uuid.UUID, text string, target session.MessageTarget) (*TurnResult, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Phase == session.PhaseLoading {
		return nil, ErrSessionBusy
	}

	switch s.Phase {
	case session.PhaseInteractive:
		return r.sendLive(ctx, s, text, target)
	case session.PhaseDemo:
		return r.sendDemo(ctx, s, text)
	default:
		return &TurnResult{Session: s}, nil
	}
}

func (r *Reconciler) sendLive(ctx context.Context, s *session.Session, text string, target session.MessageTarget) (*TurnResult, error) {
	if !s.Ready() {
		r.logger.Warn("Message against incomplete session ignored", "session_id", s.ID, "phase", s.Phase)
		return &TurnResult{Session: s}, nil
	}
	if target == "" {
		target = session.TargetCharacter
	}

	s.CinematicImageURL = ""
	effects := []session.Effect{s.AppendUserMessage(text)}

	req := &services.InteractRequest{
		Character:      *s.Character,
		EmotionState:   *s.EmotionState,
		BlueprintState: *s.BlueprintState,
		WorldContext:   *s.WorldContext,
		History:        s.RecentHistory(services.PromptHistoryLimit),
		Message:        text,
		Target:         target,
		MoodLabel:      s.MoodLabel,
	}

	s.Phase = session.PhaseLoading
	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}

	log := r.logger.With("session_id", s.ID, "turn", s.Turn)

	res, err := r.gateway.Interact(ctx, req)
	if err != nil {
		log.Error("Interaction failed", "error", err)
		metrics.Turns.WithLabelValues("live", "error").Inc()
		s.Phase = session.PhaseError
		s.ErrorMessage = interactErrorMessage
		if saveErr := r.storage.SaveSession(ctx, s); saveErr != nil {
			return nil, saveErr
		}
		return &TurnResult{Session: s, Effects: effects}, nil
	}

	r.filterInteraction(res)
	mergeEffects, complete := session.ApplyInteraction(s, res)
	effects = append(effects, mergeEffects...)

	if s.CommunicationMode == session.ModeVoice && res.CharacterReply != "" {
		if speech := r.synthesize(ctx, s, res.CharacterReply); speech != nil {
			effects = append(effects, *speech)
		}
	}

	if complete {
		r.conclude(ctx, s)
		metrics.Turns.WithLabelValues("live", "complete").Inc()
	} else {
		s.Phase = session.PhaseInteractive
		metrics.Turns.WithLabelValues("live", "ok").Inc()
	}

	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	log.Info("Turn applied", "complete", complete, "progress", s.BlueprintState.Progress)
	return &TurnResult{Session: s, Effects: effects}, nil
}

// conclude moves a completed session into the success phase. The full
// history goes to the summarizer; any windowing is the prompt builder's
// business. The summary is best-effort: a summarize failure falls back
// to fixed copy rather than tainting a finished story.
func (r *Reconciler) conclude(ctx context.Context, s *session.Session) {
	summary, err := r.gateway.Summarize(ctx, s.History, *s.BlueprintInfo)
	if err != nil {
		r.logger.Error("Summarize failed, using fallback", "session_id", s.ID, "error", err)
		summary = fallbackSummary
	}
	s.SuccessSummary = r.filter.Clean(summary)
	s.Phase = session.PhaseSuccess
}

// synthesize renders a character reply as audio. Failures and absent
// voice support are both swallowed; speech never blocks a turn from
// committing.
func (r *Reconciler) synthesize(ctx context.Context, s *session.Session, reply string) *session.Effect {
	audio, err := r.gateway.SynthesizeSpeech(ctx, reply, s.MoodLabel)
	if err != nil {
		r.logger.Warn("Speech synthesis failed", "session_id", s.ID, "error", err)
		return nil
	}
	if audio == nil {
		return nil
	}
	return &session.Effect{
		Type:     session.EffectSpeech,
		Turn:     s.Turn,
		Audio:    audio,
		MimeType: speechMimeType,
	}
}

// StartDemo creates a session pre-seeded with the scripted story,
// beginning in the guided walkthrough.
func (r *Reconciler) StartDemo(ctx context.Context) (*TurnResult, error) {
	s := demo.InitialSession()
	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	metrics.SessionsCreated.WithLabelValues("demo").Inc()
	r.logger.Info("Demo session created", "session_id", s.ID)
	return &TurnResult{
		Session: s,
		Effects: []session.Effect{{Type: session.EffectSound, Cue: session.SoundInit, Turn: s.Turn}},
	}, nil
}

func (r *Reconciler) sendDemo(ctx context.Context, s *session.Session, text string) (*TurnResult, error) {
	// A message during the walkthrough dismisses it. DemoStep switches
	// meaning here, from guide-step index to script cursor.
	if s.DemoStatus == session.DemoGuide {
		s.DemoStatus = session.DemoStory
		s.DemoStep = 0
	}

	s.CinematicImageURL = ""
	effects := []session.Effect{s.AppendUserMessage(text)}

	res, next, ok := demo.NextResponse(s.DemoStep)
	if !ok {
		// The concluded line is narration, not the character speaking,
		// and plays no cue.
		s.DemoStatus = session.DemoEnded
		s.History = append(s.History, session.HistoryItem{Role: session.RoleEvent, Text: demo.ConcludedLine})
		if err := r.storage.SaveSession(ctx, s); err != nil {
			return nil, err
		}
		metrics.Turns.WithLabelValues("demo", "ended").Inc()
		return &TurnResult{Session: s, Effects: effects}, nil
	}

	// Hold the session busy during the simulated thinking pause so the
	// demo races the same way the live path does.
	s.Phase = session.PhaseLoading
	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	if r.demoDelay > 0 {
		select {
		case <-ctx.Done():
			s.Phase = session.PhaseDemo
			if err := r.storage.SaveSession(ctx, s); err != nil {
				return nil, err
			}
			return nil, ctx.Err()
		case <-time.After(r.demoDelay):
		}
	}

	mergeEffects, complete := session.ApplyInteraction(s, res)
	effects = append(effects, mergeEffects...)
	s.DemoStep = next

	if complete {
		s.SuccessSummary = demo.SuccessSummary
		s.Phase = session.PhaseSuccess
		metrics.Turns.WithLabelValues("demo", "complete").Inc()
	} else {
		s.Phase = session.PhaseDemo
		metrics.Turns.WithLabelValues("demo", "ok").Inc()
	}

	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return &TurnResult{Session: s, Effects: effects}, nil
}

// AdvanceDemoGuide moves the walkthrough overlay one step forward.
func (r *Reconciler) AdvanceDemoGuide(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Phase != session.PhaseDemo || s.DemoStatus != session.DemoGuide {
		return s, nil
	}
	s.DemoStep = demo.AdvanceGuide(s.DemoStep)
	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// EndDemoGuide dismisses the walkthrough and starts the scripted story.
// The script cursor restarts from zero regardless of which guide step
// was showing.
func (r *Reconciler) EndDemoGuide(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Phase != session.PhaseDemo || s.DemoStatus != session.DemoGuide {
		return s, nil
	}
	s.DemoStatus = session.DemoStory
	s.DemoStep = 0
	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SetCommunicationMode switches a session between text-only and voice
// replies. It takes effect on the next live turn; the demo never
// synthesizes speech.
func (r *Reconciler) SetCommunicationMode(ctx context.Context, id uuid.UUID, mode session.CommunicationMode) (*session.Session, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	s.CommunicationMode = mode
	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Restart resets the session to the init phase. It is unconditional:
// valid from every phase, including loading and the terminal phases.
func (r *Reconciler) Restart(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Reset()
	if err := r.storage.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	r.logger.Info("Session restarted", "session_id", s.ID)
	return s, nil
}

// filterInit backstops narrative text in an init result.
func (r *Reconciler) filterInit(res *session.InitResult) {
	res.Character.Description = r.filter.Clean(res.Character.Description)
	res.BlueprintInfo.Summary = r.filter.Clean(res.BlueprintInfo.Summary)
	res.BlueprintInfo.FirstFragment = r.filter.Clean(res.BlueprintInfo.FirstFragment)
}

// filterInteraction backstops narrative text in an interaction result.
func (r *Reconciler) filterInteraction(res *session.InteractResult) {
	res.CharacterReply = r.filter.Clean(res.CharacterReply)
	res.StoryEvent = r.filter.Clean(res.StoryEvent)
	if res.BlueprintFragment != nil {
		res.BlueprintFragment.FromBlueprint = r.filter.Clean(res.BlueprintFragment.FromBlueprint)
	}
}
