package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotionink/engine/pkg/session"
)

func TestBuildInteractPayload_TrimsHistory(t *testing.T) {
	req := &InteractRequest{
		Message:   "what next?",
		Target:    session.TargetCharacter,
		MoodLabel: "Focused",
	}
	for i := 0; i < 9; i++ {
		req.History = append(req.History, session.HistoryItem{Role: session.RoleUser, Text: "m"})
	}

	data, err := buildInteractPayload(req)
	require.NoError(t, err)

	var decoded struct {
		Mode    string                `json:"mode"`
		History []session.HistoryItem `json:"history"`
		Message string                `json:"user_message"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "interact", decoded.Mode)
	assert.Len(t, decoded.History, PromptHistoryLimit)
	assert.Equal(t, "what next?", decoded.Message)
}

func TestBuildInitPayload(t *testing.T) {
	data, err := buildInitPayload("Wren", "curious inventor")
	require.NoError(t, err)

	var decoded initPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "init", decoded.Mode)
	assert.Equal(t, "Wren", decoded.HintName)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.input))
		})
	}
}

func TestBuildSummarizePrompt(t *testing.T) {
	history := []session.HistoryItem{
		{Role: session.RoleUser, Text: "how did it fold?"},
		{Role: session.RoleCharacter, Text: "the hinge!"},
	}
	info := session.BlueprintInfo{Title: "The Folding Bicycle Hinge"}

	prompt := buildSummarizePrompt(history, info)
	assert.Contains(t, prompt, `"The Folding Bicycle Hinge"`)
	assert.Contains(t, prompt, "the hinge!")
	assert.Contains(t, prompt, "Address them directly")
}

func TestSpeechPrompt(t *testing.T) {
	assert.Equal(t, "Say this in a way that sounds focused: hi", speechPrompt("hi", "Focused"))
	assert.Equal(t, "Say this in a way that sounds calm: hi", speechPrompt("hi", ""))
}
