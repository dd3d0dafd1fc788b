package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emotionink/engine/pkg/session"
)

func TestNextTarget_Cycles(t *testing.T) {
	assert.Equal(t, session.TargetWorld, nextTarget(session.TargetCharacter))
	assert.Equal(t, session.TargetBoth, nextTarget(session.TargetWorld))
	assert.Equal(t, session.TargetCharacter, nextTarget(session.TargetBoth))
}

func TestDescribeEffect(t *testing.T) {
	assert.Equal(t, "voice reply", describeEffect(session.Effect{Type: session.EffectSpeech}))
	assert.Equal(t, "cinematic moment", describeEffect(session.Effect{Type: session.EffectCinematic}))
	assert.Equal(t, "story event", describeEffect(session.Effect{Type: session.EffectSound, Cue: session.SoundStoryEvent}))
}

func newTestUI() ConsoleUI {
	cfg := &ConsoleConfig{APIBaseURL: "http://localhost:0", Timeout: time.Second}
	m := NewConsoleUI(cfg, &http.Client{})
	m.showStartModal = false
	m.sess = &session.Session{Phase: session.PhaseInteractive, Turn: 5}
	return m
}

func TestUpdate_DropsStaleEffect(t *testing.T) {
	m := newTestUI()

	// An effect from an earlier turn must not surface.
	updated, _ := m.Update(effectMsg{effect: session.Effect{
		Type: session.EffectSound, Cue: session.SoundCharacterReply, Turn: 3,
	}})
	assert.Empty(t, updated.(ConsoleUI).nowPlaying)

	// A current-turn effect does.
	updated, _ = m.Update(effectMsg{effect: session.Effect{
		Type: session.EffectSound, Cue: session.SoundCharacterReply, Turn: 5,
	}})
	assert.Equal(t, "character reply", updated.(ConsoleUI).nowPlaying)
}

func TestUpdate_MutedSuppressesCues(t *testing.T) {
	m := newTestUI()
	m.muted = true

	updated, _ := m.Update(effectMsg{effect: session.Effect{
		Type: session.EffectSound, Cue: session.SoundInit, Turn: 5,
	}})
	assert.Empty(t, updated.(ConsoleUI).nowPlaying)
}

func TestMeter_Bounds(t *testing.T) {
	full := meter("Courage", 100, 10)
	assert.Contains(t, full, "██████████")

	empty := meter("Fear", 0, 10)
	assert.Contains(t, empty, "░░░░░░░░░░")

	// Out-of-range values render without panicking.
	assert.NotPanics(t, func() { meter("X", 250, 10) })
	assert.NotPanics(t, func() { meter("X", -10, 10) })
}
