package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/emotionink/engine/internal/metrics"
	"github.com/emotionink/engine/pkg/session"
)

// Default Gemini models. The story model handles init, interact and
// summarize; image and speech have dedicated models.
const (
	DefaultGeminiStoryModel  = "gemini-2.5-flash"
	DefaultGeminiImageModel  = "imagen-4.0-generate-001"
	DefaultGeminiSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultGeminiVoice       = "Kore"
)

// GeminiGateway implements Gateway against the Google GenAI API. It is
// the only provider with native structured output, image generation and
// speech synthesis.
type GeminiGateway struct {
	client      *genai.Client
	storyModel  string
	imageModel  string
	speechModel string
	voice       string
	logger      *slog.Logger
}

var _ Gateway = (*GeminiGateway)(nil)

// NewGeminiGateway creates a Gemini-backed gateway. Empty model names
// fall back to the defaults above.
func NewGeminiGateway(ctx context.Context, apiKey, storyModel, imageModel, speechModel, voice string, logger *slog.Logger) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if storyModel == "" {
		storyModel = DefaultGeminiStoryModel
	}
	if imageModel == "" {
		imageModel = DefaultGeminiImageModel
	}
	if speechModel == "" {
		speechModel = DefaultGeminiSpeechModel
	}
	if voice == "" {
		voice = DefaultGeminiVoice
	}

	return &GeminiGateway{
		client:      client,
		storyModel:  storyModel,
		imageModel:  imageModel,
		speechModel: speechModel,
		voice:       voice,
		logger:      logger,
	}, nil
}

func (g *GeminiGateway) generate(ctx context.Context, op string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.storyModel, contents, config)
	metrics.GatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GatewayErrors.WithLabelValues(op).Inc()
		return "", &GatewayError{Op: op, Err: err}
	}
	if result == nil {
		metrics.GatewayErrors.WithLabelValues(op).Inc()
		return "", &GatewayError{Op: op, Err: fmt.Errorf("empty response")}
	}
	return result.Text(), nil
}

func storyConfig(schema *genai.Schema) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
}

// InitSession sends the character image plus init hints and decodes the
// structured result.
func (g *GeminiGateway) InitSession(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*session.InitResult, error) {
	payload, err := buildInitPayload(nameHint, vibeHint)
	if err != nil {
		return nil, &GatewayError{Op: OpInit, Err: err}
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
			{Text: string(payload)},
		},
	}}

	text, err := g.generate(ctx, OpInit, contents, storyConfig(initResponseSchema))
	if err != nil {
		return nil, err
	}

	var res session.InitResult
	if err := json.Unmarshal([]byte(stripFences(text)), &res); err != nil {
		metrics.GatewayErrors.WithLabelValues(OpInit).Inc()
		return nil, &GatewayError{Op: OpInit, Err: fmt.Errorf("failed to parse init response: %w", err)}
	}
	return &res, nil
}

// Interact runs one story turn and, when the result flags a cinematic
// moment, renders the illustrative image. Image failures are swallowed:
// the turn proceeds without a picture.
func (g *GeminiGateway) Interact(ctx context.Context, req *InteractRequest) (*session.InteractResult, error) {
	payload, err := buildInteractPayload(req)
	if err != nil {
		return nil, &GatewayError{Op: OpInteract, Err: err}
	}

	text, err := g.generate(ctx, OpInteract, genai.Text(string(payload)), storyConfig(interactResponseSchema))
	if err != nil {
		return nil, err
	}

	var res session.InteractResult
	if err := json.Unmarshal([]byte(stripFences(text)), &res); err != nil {
		metrics.GatewayErrors.WithLabelValues(OpInteract).Inc()
		return nil, &GatewayError{Op: OpInteract, Err: fmt.Errorf("failed to parse interact response: %w", err)}
	}

	if moment := res.WorldUpdate.CinematicMoment; moment.Enabled && moment.Prompt != "" {
		res.CinematicImageURL = g.renderCinematic(ctx, moment.Prompt)
	}
	return &res, nil
}

func (g *GeminiGateway) renderCinematic(ctx context.Context, prompt string) string {
	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    "1:1",
	})
	if err != nil {
		g.logger.Warn("Cinematic image generation failed", "error", err)
		return ""
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return ""
	}
	encoded := base64.StdEncoding.EncodeToString(resp.GeneratedImages[0].Image.ImageBytes)
	return "data:image/png;base64," + encoded
}

// SynthesizeSpeech renders a reply as audio bytes. Returns nil bytes
// when the model yields no audio.
func (g *GeminiGateway) SynthesizeSpeech(ctx context.Context, text, moodLabel string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.speechModel, genai.Text(speechPrompt(text, moodLabel)), config)
	metrics.GatewayDuration.WithLabelValues(OpSpeech).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GatewayErrors.WithLabelValues(OpSpeech).Inc()
		return nil, &GatewayError{Op: OpSpeech, Err: err}
	}

	for _, cand := range result.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, nil
}

// Summarize writes the closing reflection. No schema: the output is
// free text.
func (g *GeminiGateway) Summarize(ctx context.Context, history []session.HistoryItem, info session.BlueprintInfo) (string, error) {
	text, err := g.generate(ctx, OpSummarize, genai.Text(buildSummarizePrompt(history, info)), nil)
	if err != nil {
		return "", err
	}
	return stripFences(text), nil
}
