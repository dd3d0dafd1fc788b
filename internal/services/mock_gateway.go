package services

import (
	"context"
	"sync"

	"github.com/emotionink/engine/pkg/session"
)

// MockGateway is a scriptable Gateway implementation for testing.
type MockGateway struct {
	InitSessionFunc      func(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*session.InitResult, error)
	InteractFunc         func(ctx context.Context, req *InteractRequest) (*session.InteractResult, error)
	SynthesizeSpeechFunc func(ctx context.Context, text, moodLabel string) ([]byte, error)
	SummarizeFunc        func(ctx context.Context, history []session.HistoryItem, info session.BlueprintInfo) (string, error)

	// Call tracking.
	InitSessionCalls []InitSessionCall
	InteractCalls    []InteractCall
	SpeechCalls      []SpeechCall
	SummarizeCalls   int

	mu sync.Mutex
}

type InitSessionCall struct {
	MimeType string
	NameHint string
	VibeHint string
}

type InteractCall struct {
	Request *InteractRequest
}

type SpeechCall struct {
	Text      string
	MoodLabel string
}

var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a mock gateway with empty defaults.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) InitSession(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*session.InitResult, error) {
	m.mu.Lock()
	m.InitSessionCalls = append(m.InitSessionCalls, InitSessionCall{MimeType: mimeType, NameHint: nameHint, VibeHint: vibeHint})
	fn := m.InitSessionFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, image, mimeType, nameHint, vibeHint)
	}
	return &session.InitResult{}, nil
}

func (m *MockGateway) Interact(ctx context.Context, req *InteractRequest) (*session.InteractResult, error) {
	m.mu.Lock()
	m.InteractCalls = append(m.InteractCalls, InteractCall{Request: req})
	fn := m.InteractFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &session.InteractResult{}, nil
}

func (m *MockGateway) SynthesizeSpeech(ctx context.Context, text, moodLabel string) ([]byte, error) {
	m.mu.Lock()
	m.SpeechCalls = append(m.SpeechCalls, SpeechCall{Text: text, MoodLabel: moodLabel})
	fn := m.SynthesizeSpeechFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, moodLabel)
	}
	return nil, nil
}

func (m *MockGateway) Summarize(ctx context.Context, history []session.HistoryItem, info session.BlueprintInfo) (string, error) {
	m.mu.Lock()
	m.SummarizeCalls++
	fn := m.SummarizeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, history, info)
	}
	return "mock summary", nil
}
