package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/emotionink/engine/internal/metrics"
	"github.com/emotionink/engine/pkg/session"
)

// Default OpenAI models.
const (
	DefaultOpenAIStoryModel  = openai.GPT4o
	DefaultOpenAIImageModel  = openai.CreateImageModelDallE3
	DefaultOpenAISpeechModel = string(openai.TTSModel1)
	DefaultOpenAIVoice       = string(openai.VoiceNova)
)

// OpenAIGateway implements Gateway against the OpenAI API using JSON
// mode for structured responses.
type OpenAIGateway struct {
	client      *openai.Client
	storyModel  string
	imageModel  string
	speechModel string
	voice       string
	logger      *slog.Logger
}

var _ Gateway = (*OpenAIGateway)(nil)

// NewOpenAIGateway creates an OpenAI-backed gateway. Empty model names
// fall back to the defaults above.
func NewOpenAIGateway(apiKey, storyModel, imageModel, speechModel, voice string, logger *slog.Logger) *OpenAIGateway {
	if storyModel == "" {
		storyModel = DefaultOpenAIStoryModel
	}
	if imageModel == "" {
		imageModel = DefaultOpenAIImageModel
	}
	if speechModel == "" {
		speechModel = DefaultOpenAISpeechModel
	}
	if voice == "" {
		voice = DefaultOpenAIVoice
	}

	return &OpenAIGateway{
		client:      openai.NewClient(apiKey),
		storyModel:  storyModel,
		imageModel:  imageModel,
		speechModel: speechModel,
		voice:       voice,
		logger:      logger,
	}
}

func (o *OpenAIGateway) chat(ctx context.Context, op string, messages []openai.ChatCompletionMessage, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    o.storyModel,
		Messages: messages,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	metrics.GatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GatewayErrors.WithLabelValues(op).Inc()
		return "", &GatewayError{Op: op, Err: err}
	}
	if len(resp.Choices) == 0 {
		metrics.GatewayErrors.WithLabelValues(op).Inc()
		return "", &GatewayError{Op: op, Err: fmt.Errorf("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// InitSession sends the character image as a vision part alongside the
// init payload.
func (o *OpenAIGateway) InitSession(ctx context.Context, image []byte, mimeType, nameHint, vibeHint string) (*session.InitResult, error) {
	payload, err := buildInitPayload(nameHint, vibeHint)
	if err != nil {
		return nil, &GatewayError{Op: OpInit, Err: err}
	}

	imageURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction + "\n\n" + initFormatInstructions,
		},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
				{Type: openai.ChatMessagePartTypeText, Text: string(payload)},
			},
		},
	}

	text, err := o.chat(ctx, OpInit, messages, true)
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

// Interact runs one story turn; cinematic moments render through the
// image model, with failures swallowed.
func (o *OpenAIGateway) Interact(ctx context.Context, req *InteractRequest) (*session.InteractResult, error) {
	payload, err := buildInteractPayload(req)
	if err != nil {
		return nil, &GatewayError{Op: OpInteract, Err: err}
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemInstruction + "\n\n" + interactFormatInstructions},
		{Role: openai.ChatMessageRoleUser, Content: string(payload)},
	}

	text, err := o.chat(ctx, OpInteract, messages, true)
	if err != nil {
		return nil, err
	}

	var res session.InteractResult
	if err := json.Unmarshal([]byte(stripFences(text)), &res); err != nil {
		metrics.GatewayErrors.WithLabelValues(OpInteract).Inc()
		return nil, &GatewayError{Op: OpInteract, Err: fmt.Errorf("failed to parse interact response: %w", err)}
	}

	if moment := res.WorldUpdate.CinematicMoment; moment.Enabled && moment.Prompt != "" {
		res.CinematicImageURL = o.renderCinematic(ctx, moment.Prompt)
	}
	return &res, nil
}

func (o *OpenAIGateway) renderCinematic(ctx context.Context, prompt string) string {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          o.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		o.logger.Warn("Cinematic image generation failed", "error", err)
		return ""
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return ""
	}
	return "data:image/png;base64," + resp.Data[0].B64JSON
}

// SynthesizeSpeech renders the reply as audio. The mood is folded into
// the input text since the speech endpoint has no style control.
func (o *OpenAIGateway) SynthesizeSpeech(ctx context.Context, text, moodLabel string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	start := time.Now()
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(o.speechModel),
		Input: text,
		Voice: openai.SpeechVoice(o.voice),
	})
	metrics.GatewayDuration.WithLabelValues(OpSpeech).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GatewayErrors.WithLabelValues(OpSpeech).Inc()
		return nil, &GatewayError{Op: OpSpeech, Err: err}
	}
	defer func() { _ = resp.Close() }()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, &GatewayError{Op: OpSpeech, Err: err}
	}
	return audio, nil
}

// Summarize writes the closing reflection as free text.
func (o *OpenAIGateway) Summarize(ctx context.Context, history []session.HistoryItem, info session.BlueprintInfo) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: buildSummarizePrompt(history, info)},
	}
	text, err := o.chat(ctx, OpSummarize, messages, false)
	if err != nil {
		return "", err
	}
	return stripFences(text), nil
}
