package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotionink/engine/internal/services"
	"github.com/emotionink/engine/internal/storage"
	"github.com/emotionink/engine/pkg/demo"
	"github.com/emotionink/engine/pkg/session"
)

func newTestReconciler(gw *services.MockGateway) (*Reconciler, *storage.MockStorage) {
	store := storage.NewMockStorage()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(store, gw, logger)
	r.SetDemoDelay(0)
	return r, store
}

func testInitResult() *session.InitResult {
	return &session.InitResult{
		Character: session.Character{
			Name:        "Wren",
			ShortTitle:  "the Curious Tinkerer",
			Description: "A bright-eyed inventor's apprentice.",
			Archetype:   "The Explorer",
			Traits:      []string{"Curious", "Brave"},
		},
		EmotionState: session.EmotionState{Courage: 40, Fear: 30, Curiosity: 80, Happiness: 50},
		MoodLabel:    "Wide-eyed",
		WorldSeed: session.WorldSeed{
			WorldName:                   "The Clockwork Attic",
			WorldDescription:            "An attic full of half-finished machines.",
			StartingLocationName:        "The Workbench",
			StartingLocationDescription: "A cluttered bench under a round window.",
		},
		BlueprintState: session.BlueprintState{Progress: 0, Understanding: 5, Complexity: 40},
		BlueprintInfo: session.BlueprintInfo{
			Title:         "The Folding Bicycle Hinge",
			Summary:       "A hinge that lets a bicycle fold flat.",
			FirstFragment: "A sketch shows a pivot, but the locking part is torn away.",
		},
		AmbientSound:     session.AmbientCue{Cue: "ticking", Description: "Dozens of clocks tick out of step."},
		AmbientAnimation: session.AmbientCue{Cue: "dust_motes", Description: "Dust drifts through a sunbeam."},
	}
}

func testInteractResult(progress float64) *session.InteractResult {
	return &session.InteractResult{
		CharacterReply:        "The pivot! It must lock from below.",
		StoryEvent:            "Wren digs through a drawer of brass parts.",
		BlueprintFragment:     &session.BlueprintFragment{FromBlueprint: "A torn corner reads: 'spring-loaded catch'."},
		UpdatedEmotionState:   session.EmotionState{Courage: 55, Fear: 20, Curiosity: 85, Happiness: 60},
		UpdatedBlueprintState: session.BlueprintState{Progress: progress, Understanding: 40, Complexity: 35},
		MoodLabel:             "Excited",
		WorldUpdate: session.WorldUpdate{
			WorldMood:      "Hopeful",
			LocationChange: session.LocationChange{Type: session.LocationNone},
		},
		AmbientSound:     session.AmbientCue{Cue: "drawer", Description: "Brass parts rattle."},
		AmbientAnimation: session.AmbientCue{Cue: "sunbeam", Description: "The sunbeam shifts."},
	}
}

func createLiveSession(t *testing.T, r *Reconciler, gw *services.MockGateway) *session.Session {
	t.Helper()
	gw.InitSessionFunc = func(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*session.InitResult, error) {
		return testInitResult(), nil
	}
	result, err := r.CreateSession(context.Background(), []byte("png-bytes"), "image/png", "Wren", "")
	require.NoError(t, err)
	require.Equal(t, session.PhaseInteractive, result.Session.Phase)
	return result.Session
}

func TestCreateSession(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)

	s := createLiveSession(t, r, gw)

	assert.Equal(t, "Wren", s.Character.Name)
	require.Len(t, s.History, 3)
	assert.Equal(t, session.RoleUser, s.History[0].Role)
	assert.Contains(t, s.History[0].Text, "data:image/png;base64,")
	assert.Equal(t, "Wren comes to life in The Workbench!", s.History[1].Text)
	assert.Equal(t, session.RoleWorld, s.History[2].Role)
	assert.Equal(t, session.InitialWorldMood, s.WorldMood)

	saved, err := store.LoadSession(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, session.PhaseInteractive, saved.Phase)
}

func TestCreateSession_GatewayFailure(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)
	gw.InitSessionFunc = func(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*session.InitResult, error) {
		return nil, &services.GatewayError{Op: services.OpInit, Err: errors.New("model overloaded")}
	}

	result, err := r.CreateSession(context.Background(), []byte("img"), "image/png", "", "")
	require.NoError(t, err)

	assert.Equal(t, session.PhaseError, result.Session.Phase)
	assert.Equal(t, initErrorMessage, result.Session.ErrorMessage)
	assert.Empty(t, result.Effects)

	// The failed session is persisted so restart can recover it.
	saved, err := store.LoadSession(context.Background(), result.Session.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, session.PhaseError, saved.Phase)
}

func TestSendMessage_Live(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(45), nil
	}

	result, err := r.SendMessage(context.Background(), s.ID, "how does it lock?", session.TargetCharacter)
	require.NoError(t, err)

	updated := result.Session
	assert.Equal(t, session.PhaseInteractive, updated.Phase)
	assert.Equal(t, 45.0, updated.BlueprintState.Progress)

	// history: 3 init items + user + reply + event + fragment
	require.Len(t, updated.History, 7)
	assert.Equal(t, "how does it lock?", updated.History[3].Text)
	assert.Equal(t, session.RoleCharacter, updated.History[4].Role)
	assert.Equal(t, session.RoleEvent, updated.History[5].Role)
	assert.Equal(t, session.RoleWorld, updated.History[6].Role)

	// effects: send_message first, then the staggered merge cues
	require.NotEmpty(t, result.Effects)
	assert.Equal(t, session.SoundSendMessage, result.Effects[0].Cue)

	require.Len(t, gw.InteractCalls, 1)
	assert.Equal(t, "how does it lock?", gw.InteractCalls[0].Request.Message)
	assert.Equal(t, session.TargetCharacter, gw.InteractCalls[0].Request.Target)
}

func TestSendMessage_HistoryWindowTrimmed(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(10), nil
	}
	for i := 0; i < 4; i++ {
		_, err := r.SendMessage(context.Background(), s.ID, "again", session.TargetCharacter)
		require.NoError(t, err)
	}

	last := gw.InteractCalls[len(gw.InteractCalls)-1]
	assert.LessOrEqual(t, len(last.Request.History), services.PromptHistoryLimit)
}

func TestSendMessage_GatewayFailureKeepsUserMessage(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return nil, &services.GatewayError{Op: services.OpInteract, Err: errors.New("timeout")}
	}

	result, err := r.SendMessage(context.Background(), s.ID, "doomed question", session.TargetCharacter)
	require.NoError(t, err)

	assert.Equal(t, session.PhaseError, result.Session.Phase)
	assert.Equal(t, interactErrorMessage, result.Session.ErrorMessage)

	// The user message stays in history; the turn is not rolled back.
	saved, err := store.LoadSession(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, saved.History, 4)
	assert.Equal(t, "doomed question", saved.History[3].Text)
}

func TestSendMessage_CompletionTriggersSummary(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(100), nil
	}
	gw.SummarizeFunc = func(ctx context.Context, history []session.HistoryItem, info session.BlueprintInfo) (string, error) {
		return "You did it. The hinge folds perfectly.", nil
	}

	result, err := r.SendMessage(context.Background(), s.ID, "so it latches underneath!", session.TargetCharacter)
	require.NoError(t, err)

	assert.Equal(t, session.PhaseSuccess, result.Session.Phase)
	assert.Equal(t, "You did it. The hinge folds perfectly.", result.Session.SuccessSummary)
	assert.Equal(t, 1, gw.SummarizeCalls)
}

func TestSendMessage_SummarizeFailureFallsBack(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(100), nil
	}
	gw.SummarizeFunc = func(ctx context.Context, history []session.HistoryItem, info session.BlueprintInfo) (string, error) {
		return "", &services.GatewayError{Op: services.OpSummarize, Err: errors.New("quota")}
	}

	result, err := r.SendMessage(context.Background(), s.ID, "done!", session.TargetCharacter)
	require.NoError(t, err)

	assert.Equal(t, session.PhaseSuccess, result.Session.Phase)
	assert.Equal(t, fallbackSummary, result.Session.SuccessSummary)
}

// enableVoice switches the session to voice replies.
func enableVoice(t *testing.T, r *Reconciler, id uuid.UUID) {
	t.Helper()
	s, err := r.SetCommunicationMode(context.Background(), id, session.ModeVoice)
	require.NoError(t, err)
	require.Equal(t, session.ModeVoice, s.CommunicationMode)
}

func TestSendMessage_SpeechEffect(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)
	enableVoice(t, r, s.ID)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(20), nil
	}
	gw.SynthesizeSpeechFunc = func(ctx context.Context, text, moodLabel string) ([]byte, error) {
		return []byte("mp3-bytes"), nil
	}

	result, err := r.SendMessage(context.Background(), s.ID, "speak to me", session.TargetCharacter)
	require.NoError(t, err)

	var speech *session.Effect
	for i := range result.Effects {
		if result.Effects[i].Type == session.EffectSpeech {
			speech = &result.Effects[i]
		}
	}
	require.NotNil(t, speech)
	assert.Equal(t, []byte("mp3-bytes"), speech.Audio)
	assert.Equal(t, result.Session.Turn, speech.Turn)

	require.Len(t, gw.SpeechCalls, 1)
	assert.Equal(t, "The pivot! It must lock from below.", gw.SpeechCalls[0].Text)
}

func TestSendMessage_SpeechFailureSwallowed(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)
	enableVoice(t, r, s.ID)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(20), nil
	}
	gw.SynthesizeSpeechFunc = func(ctx context.Context, text, moodLabel string) ([]byte, error) {
		return nil, &services.GatewayError{Op: services.OpSpeech, Err: errors.New("tts down")}
	}

	result, err := r.SendMessage(context.Background(), s.ID, "speak", session.TargetCharacter)
	require.NoError(t, err)

	assert.Equal(t, session.PhaseInteractive, result.Session.Phase)
	for _, e := range result.Effects {
		assert.NotEqual(t, session.EffectSpeech, e.Type)
	}
}

func TestSendMessage_NoVoiceNoEffect(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)
	enableVoice(t, r, s.ID)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(20), nil
	}
	// Default SynthesizeSpeech returns nil, nil: voice unavailable.

	result, err := r.SendMessage(context.Background(), s.ID, "quiet", session.TargetCharacter)
	require.NoError(t, err)
	for _, e := range result.Effects {
		assert.NotEqual(t, session.EffectSpeech, e.Type)
	}
}

func TestSendMessage_TextModeSkipsSpeech(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(20), nil
	}
	gw.SynthesizeSpeechFunc = func(ctx context.Context, text, moodLabel string) ([]byte, error) {
		return []byte("mp3-bytes"), nil
	}

	// Sessions start in text mode: no synthesis call, no speech effect.
	result, err := r.SendMessage(context.Background(), s.ID, "tell me more", session.TargetCharacter)
	require.NoError(t, err)

	assert.Empty(t, gw.SpeechCalls)
	for _, e := range result.Effects {
		assert.NotEqual(t, session.EffectSpeech, e.Type)
	}
}

func TestSendMessage_SummarizeSeesFullHistory(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	// Grow the history well past the interaction prompt window.
	for i := 0; i < 14; i++ {
		s.History = append(s.History, session.HistoryItem{Role: session.RoleEvent, Text: "an earlier moment"})
	}
	require.NoError(t, store.SaveSession(context.Background(), s))

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(100), nil
	}
	var summarized int
	gw.SummarizeFunc = func(ctx context.Context, history []session.HistoryItem, info session.BlueprintInfo) (string, error) {
		summarized = len(history)
		return "The whole journey, remembered.", nil
	}

	result, err := r.SendMessage(context.Background(), s.ID, "finished!", session.TargetCharacter)
	require.NoError(t, err)

	assert.Equal(t, session.PhaseSuccess, result.Session.Phase)
	assert.Equal(t, len(result.Session.History), summarized)
	assert.Greater(t, summarized, services.PromptHistoryLimit)
}

func TestSendMessage_ProfanityFiltered(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		res := testInteractResult(20)
		res.CharacterReply = "Damn, that hinge is clever."
		return res, nil
	}

	result, err := r.SendMessage(context.Background(), s.ID, "well?", session.TargetCharacter)
	require.NoError(t, err)
	assert.Equal(t, "Dang, that hinge is clever.", result.Session.History[4].Text)
}

func TestSendMessage_BusyWhileLoading(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	s.Phase = session.PhaseLoading
	require.NoError(t, store.SaveSession(context.Background(), s))

	_, err := r.SendMessage(context.Background(), s.ID, "impatient", session.TargetCharacter)
	assert.ErrorIs(t, err, ErrSessionBusy)
}

func TestSendMessage_TerminalPhasesAbsorb(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)

	for _, phase := range []session.Phase{session.PhaseInit, session.PhaseSuccess, session.PhaseError} {
		t.Run(string(phase), func(t *testing.T) {
			s := session.New()
			s.Phase = phase
			require.NoError(t, store.SaveSession(context.Background(), s))

			result, err := r.SendMessage(context.Background(), s.ID, "hello?", session.TargetCharacter)
			require.NoError(t, err)
			assert.Empty(t, result.Effects)
			assert.Equal(t, phase, result.Session.Phase)
			assert.Empty(t, gw.InteractCalls)
		})
	}
}

func TestSendMessage_NotReadyIgnored(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)

	s := session.New()
	s.Phase = session.PhaseInteractive // interactive but missing aggregate parts
	require.NoError(t, store.SaveSession(context.Background(), s))

	result, err := r.SendMessage(context.Background(), s.ID, "hello", session.TargetCharacter)
	require.NoError(t, err)
	assert.Empty(t, result.Effects)
	assert.Empty(t, result.Session.History)
	assert.Empty(t, gw.InteractCalls)
}

func TestSendMessage_UnknownSession(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)

	_, err := r.SendMessage(context.Background(), uuid.New(), "anyone?", session.TargetCharacter)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSendMessage_ClearsStaleCinematic(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)
	s := createLiveSession(t, r, gw)

	s.CinematicImageURL = "data:image/png;base64,old"
	require.NoError(t, store.SaveSession(context.Background(), s))

	gw.InteractFunc = func(ctx context.Context, req *services.InteractRequest) (*session.InteractResult, error) {
		return testInteractResult(20), nil
	}

	result, err := r.SendMessage(context.Background(), s.ID, "next", session.TargetCharacter)
	require.NoError(t, err)
	assert.Empty(t, result.Session.CinematicImageURL)
}

func TestRestart_FromEveryPhase(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)

	phases := []session.Phase{
		session.PhaseInit, session.PhaseLoading, session.PhaseInteractive,
		session.PhaseDemo, session.PhaseSuccess, session.PhaseError,
	}
	for _, phase := range phases {
		t.Run(string(phase), func(t *testing.T) {
			s := session.New()
			s.Phase = phase
			s.Turn = 7
			s.ErrorMessage = "stuck"
			s.History = []session.HistoryItem{{Role: session.RoleUser, Text: "old"}}
			require.NoError(t, store.SaveSession(context.Background(), s))

			restarted, err := r.Restart(context.Background(), s.ID)
			require.NoError(t, err)

			assert.Equal(t, s.ID, restarted.ID)
			assert.Equal(t, session.PhaseInit, restarted.Phase)
			assert.Zero(t, restarted.Turn)
			assert.Empty(t, restarted.History)
			assert.Empty(t, restarted.ErrorMessage)
		})
	}
}

func TestDemo_FullPlaythrough(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	ctx := context.Background()

	start, err := r.StartDemo(ctx)
	require.NoError(t, err)
	s := start.Session
	assert.Equal(t, session.PhaseDemo, s.Phase)
	assert.Equal(t, session.DemoGuide, s.DemoStatus)
	assert.Equal(t, "Alex", s.Character.Name)
	require.Len(t, start.Effects, 1)
	assert.Equal(t, session.SoundInit, start.Effects[0].Cue)

	// Dismiss the walkthrough, then play the script to completion. Any
	// input advances it; the text is never validated.
	_, err = r.EndDemoGuide(ctx, s.ID)
	require.NoError(t, err)

	progressTrail := []float64{}
	var last *TurnResult
	for i := 0; i < 3; i++ {
		last, err = r.SendMessage(ctx, s.ID, "whatever I type", session.TargetCharacter)
		require.NoError(t, err)
		progressTrail = append(progressTrail, last.Session.BlueprintState.Progress)
	}

	assert.Equal(t, []float64{30, 80, 100}, progressTrail)
	assert.Equal(t, session.PhaseSuccess, last.Session.Phase)
	assert.Equal(t, demo.SuccessSummary, last.Session.SuccessSummary)
	assert.Empty(t, gw.InteractCalls)
}

func TestDemo_ExhaustionConcludes(t *testing.T) {
	gw := services.NewMockGateway()
	r, store := newTestReconciler(gw)
	ctx := context.Background()

	start, err := r.StartDemo(ctx)
	require.NoError(t, err)
	s := start.Session

	// Force the cursor past the end of the script while staying in the
	// demo phase, as if the completion turn had not flipped to success.
	s.DemoStatus = session.DemoStory
	s.DemoStep = 1000
	require.NoError(t, store.SaveSession(ctx, s))

	result, err := r.SendMessage(ctx, s.ID, "is anyone there?", session.TargetCharacter)
	require.NoError(t, err)

	assert.Equal(t, session.DemoEnded, result.Session.DemoStatus)
	lastItem := result.Session.History[len(result.Session.History)-1]
	assert.Equal(t, demo.ConcludedLine, lastItem.Text)
	assert.Equal(t, session.RoleEvent, lastItem.Role)

	// Narration, not a reply: no reply cue fires for the concluded line.
	for _, e := range result.Effects {
		assert.NotEqual(t, session.SoundCharacterReply, e.Cue)
	}
}

func TestDemo_GuideAdvanceAndClamp(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	ctx := context.Background()

	start, err := r.StartDemo(ctx)
	require.NoError(t, err)
	id := start.Session.ID

	var s *session.Session
	for i := 0; i < len(demo.GuideSteps)+3; i++ {
		s, err = r.AdvanceDemoGuide(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, len(demo.GuideSteps)-1, s.DemoStep)
	assert.Equal(t, session.DemoGuide, s.DemoStatus)

	s, err = r.EndDemoGuide(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.DemoStory, s.DemoStatus)
	assert.Zero(t, s.DemoStep)

	// Guide operations are no-ops once the story has started.
	s, err = r.AdvanceDemoGuide(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, s.DemoStep)
}

func TestDemo_CinematicPlaceholderSecondTurn(t *testing.T) {
	gw := services.NewMockGateway()
	r, _ := newTestReconciler(gw)
	ctx := context.Background()

	start, err := r.StartDemo(ctx)
	require.NoError(t, err)
	id := start.Session.ID
	_, err = r.EndDemoGuide(ctx, id)
	require.NoError(t, err)

	first, err := r.SendMessage(ctx, id, "one", session.TargetCharacter)
	require.NoError(t, err)
	assert.Empty(t, first.Session.CinematicImageURL)

	second, err := r.SendMessage(ctx, id, "two", session.TargetCharacter)
	require.NoError(t, err)
	assert.Equal(t, demo.CinematicPlaceholder, second.Session.CinematicImageURL)

	var sawCinematic bool
	for _, e := range second.Effects {
		if e.Type == session.EffectCinematic {
			sawCinematic = true
		}
	}
	assert.True(t, sawCinematic)

	// The next turn has no cinematic, so the stale image is cleared.
	third, err := r.SendMessage(ctx, id, "three", session.TargetCharacter)
	require.NoError(t, err)
	assert.Empty(t, third.Session.CinematicImageURL)
}
