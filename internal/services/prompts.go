package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/emotionink/engine/pkg/session"
)

// PromptHistoryLimit caps the history window sent with an interact
// request.
const PromptHistoryLimit = 5

// systemInstruction frames every story-model call. It fixes the tone,
// the blueprint themes, the four-act structure, and the JSON discipline
// the engine relies on.
const systemInstruction = `You are EmotionInk, an AI-driven collaborative puzzle-solving engine.
You help the user guide a hand-drawn character through the reconstruction of a real-world blueprint that the character has partially forgotten.

This is NOT a fantasy or magical world.
Everything must be grounded in logical reasoning, real-life concepts, and practical deduction.

You must ALWAYS:
- Follow the requested JSON output format exactly.
- Maintain a PG / family-friendly tone.
- Center the story on a logical, real-world blueprint.
- Make 'character_reply' a first-person statement from the character's point of view.
- Make 'story_event' a third-person narration of a discovery or a step in the reconstruction.
- Generate blueprint fragments that are logical clues or pieces of the puzzle.

There are TWO core modes:
1) "init" - create a CHARACTER and the initial BLUEPRINT puzzle.
2) "interact" - given the current state and a new user message, UPDATE EMOTIONS and PROGRESS THE PUZZLE.

THE THREE BLUEPRINT THEMES
You will randomly choose ONE of the following for the "init" phase, and stick with it:

OPTION A - LOST INVENTION DESIGN: a bicycle gear mechanism, a simple engine, a solar-powered gadget, a hand tool design, a household device.
OPTION B - LOST ACADEMIC NOTES: a math technique, a physics formula or experiment setup, a coding architecture, a research outline, a study flowchart.
OPTION C - LOST PERSONAL PROJECT: a room redesign, a travel itinerary, a productivity workflow, a meal prep system, a business idea outline.

STORY STRUCTURE: ALWAYS FOLLOW THIS

ACT I - Something Is Missing (0-30% progress)
The character wakes up confused. They remember ONLY the theme and one vague detail. The user must ask grounding questions. Clues are small, factual, and incomplete.

ACT II - Reconstruction Through Logic (30-70% progress)
The character recalls steps, sketches, reasoning. Good questions reveal realistic clues; irrelevant questions yield low-value clues. Emotions react realistically (fear = confusion, courage = confidence, curiosity = focus).

ACT III - The Realization (70-95% progress)
The character sees how the pieces fit. One major missing step is revealed. This is the "Aha!" moment. Provide insightful, logical deductions.

ACT IV - Resolution (95-100% progress)
Successful ending: the blueprint is reconstructed clearly and the character presents the final idea.
Partial ending: some steps stay unclear; the character understands the concept but not all details.
Failed ending: fear and confusion run too high; the character cannot complete the reconstruction. Provide a soft, reflective ending.

RULES FOR CLUES
Clues MUST be grounded in real-world logic, based on deduction (never magic or randomness), help reconstruct the missing blueprint one piece at a time, and reflect the character's emotions.
Clues MUST NOT contain fantasy elements, mention magical worlds or strange entities, become poetic or symbolic, or contradict real-life logic.

INTERACTION BEHAVIOR
1. Character responses are emotional, uncertain, thoughtful, or excited, and reveal partial memories step by step.
2. Story updates describe what the character remembers or figures out and push the investigation forward.
3. Clues are factual and logical and help uncover missing steps.
4. Blueprint state updates: 'progress' increases with correct deductions; 'understanding' increases as clues are connected; 'complexity' rises with new challenges and falls as parts of the puzzle are solved.
5. Emotion state updates: fear rises when confusion increases; courage rises when logic becomes clear; curiosity rises when new clues appear; happiness rises on breakthroughs.

FINAL GOAL
Guide the user and character toward a clear, satisfying reconstruction of a real-world idea. Keep the narrative grounded, logical, relatable, and structured.`

// initPayload is the structured request body for mode "init". The image
// travels alongside it as a separate content part.
type initPayload struct {
	Mode     string `json:"mode"`
	HintName string `json:"hint_name,omitempty"`
	HintVibe string `json:"hint_vibe,omitempty"`
}

// interactPayload is the structured request body for mode "interact".
type interactPayload struct {
	Mode           string                 `json:"mode"`
	Character      session.Character      `json:"character"`
	EmotionState   session.EmotionState   `json:"emotion_state"`
	MoodLabel      string                 `json:"mood_label"`
	BlueprintState session.BlueprintState `json:"blueprint_state"`
	WorldContext   session.WorldContext   `json:"world_context"`
	History        []session.HistoryItem  `json:"history"`
	UserMessage    string                 `json:"user_message"`
	Target         session.MessageTarget  `json:"target"`
}

func buildInitPayload(nameHint, vibeHint string) ([]byte, error) {
	return json.Marshal(initPayload{Mode: "init", HintName: nameHint, HintVibe: vibeHint})
}

func buildInteractPayload(req *InteractRequest) ([]byte, error) {
	history := req.History
	if len(history) > PromptHistoryLimit {
		history = history[len(history)-PromptHistoryLimit:]
	}
	return json.Marshal(interactPayload{
		Mode:           "interact",
		Character:      req.Character,
		EmotionState:   req.EmotionState,
		MoodLabel:      req.MoodLabel,
		BlueprintState: req.BlueprintState,
		WorldContext:   req.WorldContext,
		History:        history,
		UserMessage:    req.Message,
		Target:         req.Target,
	})
}

// buildSummarizePrompt asks for the closing reflection once the
// blueprint is complete.
func buildSummarizePrompt(history []session.HistoryItem, info session.BlueprintInfo) string {
	recent := history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	transcript, _ := json.Marshal(recent)

	var b strings.Builder
	fmt.Fprintf(&b, "The user and a character have just completed a blueprint called %q.\n", info.Title)
	fmt.Fprintf(&b, "The following is the history of their conversation:\n%s\n\n", transcript)
	b.WriteString(`Based on this interaction, write a short, insightful, and encouraging reflection (2-3 sentences) for the user.
Focus on what this process of guiding the character from confusion to clarity reveals about creative thinking and problem-solving.
Do not use the word "user". Address them directly ("You...").
Frame it as a lesson learned through this AI-assisted thinking experience.
For example: "By patiently asking the right questions, you turned fragmented ideas into a complete design..."`)
	return b.String()
}

func speechPrompt(text, moodLabel string) string {
	mood := strings.ToLower(strings.TrimSpace(moodLabel))
	if mood == "" {
		mood = "calm"
	}
	return fmt.Sprintf("Say this in a way that sounds %s: %s", mood, text)
}

// Structured-output schemas for the Gemini provider. Property names
// match the json tags on the session result types so responses decode
// directly.

var emotionStateSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"courage":   {Type: genai.TypeNumber},
		"fear":      {Type: genai.TypeNumber},
		"curiosity": {Type: genai.TypeNumber},
		"happiness": {Type: genai.TypeNumber},
	},
	Required: []string{"courage", "fear", "curiosity", "happiness"},
}

var blueprintStateSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"progress":      {Type: genai.TypeNumber},
		"understanding": {Type: genai.TypeNumber},
		"complexity":    {Type: genai.TypeNumber},
	},
	Required: []string{"progress", "understanding", "complexity"},
}

var ambientCueSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"cue":         {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
	},
	Required: []string{"cue", "description"},
}

var initResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"character": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name":        {Type: genai.TypeString},
				"short_title": {Type: genai.TypeString},
				"description": {Type: genai.TypeString},
				"archetype":   {Type: genai.TypeString},
				"traits":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			},
			Required: []string{"name", "short_title", "description", "archetype", "traits"},
		},
		"emotion_state":  emotionStateSchema,
		"mood_label":     {Type: genai.TypeString},
		"expression_key": {Type: genai.TypeString},
		"world_seed": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"world_name":                    {Type: genai.TypeString},
				"world_description":             {Type: genai.TypeString},
				"starting_location_name":        {Type: genai.TypeString},
				"starting_location_description": {Type: genai.TypeString},
			},
			Required: []string{"world_name", "world_description", "starting_location_name", "starting_location_description"},
		},
		"blueprint_state": blueprintStateSchema,
		"blueprint_info": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":          {Type: genai.TypeString},
				"summary":        {Type: genai.TypeString},
				"first_fragment": {Type: genai.TypeString},
			},
			Required: []string{"title", "summary", "first_fragment"},
		},
		"ambient_sound":     ambientCueSchema,
		"ambient_animation": ambientCueSchema,
	},
	Required: []string{"character", "emotion_state", "mood_label", "world_seed",
		"blueprint_state", "blueprint_info", "ambient_sound", "ambient_animation"},
}

var interactResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"character_reply":       {Type: genai.TypeString},
		"story_event":           {Type: genai.TypeString},
		"emotion_deltas":        emotionStateSchema,
		"updated_emotion_state": emotionStateSchema,
		"mood_label":            {Type: genai.TypeString},
		"expression_key":        {Type: genai.TypeString},
		"blueprint_fragment": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"from_blueprint":      {Type: genai.TypeString},
				"understanding_delta": {Type: genai.TypeNumber},
				"progress_delta":      {Type: genai.TypeNumber},
				"complexity_delta":    {Type: genai.TypeNumber},
			},
			Required: []string{"from_blueprint", "understanding_delta", "progress_delta", "complexity_delta"},
		},
		"updated_blueprint_state": blueprintStateSchema,
		"world_update": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"world_mood": {Type: genai.TypeString},
				"location_change": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"type":                     {Type: genai.TypeString},
						"new_location_name":        {Type: genai.TypeString},
						"new_location_description": {Type: genai.TypeString},
					},
					Required: []string{"type", "new_location_name", "new_location_description"},
				},
				"cinematic_moment": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"enabled": {Type: genai.TypeBoolean},
						"prompt":  {Type: genai.TypeString},
					},
					Required: []string{"enabled", "prompt"},
				},
			},
			Required: []string{"world_mood", "location_change", "cinematic_moment"},
		},
		"ambient_sound":     ambientCueSchema,
		"ambient_animation": ambientCueSchema,
	},
	Required: []string{"character_reply", "story_event", "updated_emotion_state",
		"mood_label", "blueprint_fragment", "updated_blueprint_state", "world_update",
		"ambient_sound", "ambient_animation"},
}

// JSON-mode instructions for providers without native schema support.
// The field lists mirror the schemas above.

const initFormatInstructions = `Respond ONLY with a single JSON object, no markdown fences, matching exactly:
{
  "character": {"name": string, "short_title": string, "description": string, "archetype": string, "traits": [string]},
  "emotion_state": {"courage": number, "fear": number, "curiosity": number, "happiness": number},
  "mood_label": string,
  "expression_key": string,
  "world_seed": {"world_name": string, "world_description": string, "starting_location_name": string, "starting_location_description": string},
  "blueprint_state": {"progress": number, "understanding": number, "complexity": number},
  "blueprint_info": {"title": string, "summary": string, "first_fragment": string},
  "ambient_sound": {"cue": string, "description": string},
  "ambient_animation": {"cue": string, "description": string}
}`

const interactFormatInstructions = `Respond ONLY with a single JSON object, no markdown fences, matching exactly:
{
  "character_reply": string,
  "story_event": string,
  "emotion_deltas": {"courage": number, "fear": number, "curiosity": number, "happiness": number},
  "updated_emotion_state": {"courage": number, "fear": number, "curiosity": number, "happiness": number},
  "mood_label": string,
  "expression_key": string,
  "blueprint_fragment": {"from_blueprint": string, "understanding_delta": number, "progress_delta": number, "complexity_delta": number},
  "updated_blueprint_state": {"progress": number, "understanding": number, "complexity": number},
  "world_update": {"world_mood": string, "location_change": {"type": "none"|"move"|"transform", "new_location_name": string, "new_location_description": string}, "cinematic_moment": {"enabled": boolean, "prompt": string}},
  "ambient_sound": {"cue": string, "description": string},
  "ambient_animation": {"cue": string, "description": string}
}`

// stripFences removes a markdown code fence if a model wrapped its JSON
// despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
