package services

import (
	"context"
	"fmt"

	"github.com/emotionink/engine/pkg/session"
)

// Gateway operations, used for error reporting and metrics labels.
const (
	OpInit      = "init"
	OpInteract  = "interact"
	OpSpeech    = "speech"
	OpSummarize = "summarize"
)

// GatewayError wraps any transport, parse or model failure from a
// gateway provider.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// InteractRequest is the session snapshot handed to the gateway for one
// story turn. History is trimmed to the recent window by the prompt
// builder.
type InteractRequest struct {
	Character      session.Character      `json:"character"`
	EmotionState   session.EmotionState   `json:"emotion_state"`
	BlueprintState session.BlueprintState `json:"blueprint_state"`
	WorldContext   session.WorldContext   `json:"world_context"`
	History        []session.HistoryItem  `json:"history"`
	Message        string                 `json:"user_message"`
	Target         session.MessageTarget  `json:"target"`
	MoodLabel      string                 `json:"mood_label"`
}

// Gateway is the contract with the generative-model backend. Any
// provider satisfying this shape can drive the engine.
type Gateway interface {
	// InitSession creates a character and the initial blueprint puzzle
	// from an uploaded character image.
	InitSession(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*session.InitResult, error)

	// Interact progresses the story by one turn.
	Interact(ctx context.Context, req *InteractRequest) (*session.InteractResult, error)

	// SynthesizeSpeech renders a character reply as audio. A nil result
	// with nil error means no voice is available; it is not a failure.
	SynthesizeSpeech(ctx context.Context, text, moodLabel string) ([]byte, error)

	// Summarize writes the closing reflection once the blueprint is
	// complete.
	Summarize(ctx context.Context, history []session.HistoryItem, info session.BlueprintInfo) (string, error)
}
