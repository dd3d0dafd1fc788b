// Package demo replays a fixed, hand-authored conversation without any
// gateway dependency. It reuses the session merge contract so the demo
// is behaviorally indistinguishable from the live experience except for
// its data source.
package demo

import "github.com/emotionink/engine/pkg/session"

// CharacterPlaceholder is a small inline SVG standing in for an uploaded
// character sketch.
const CharacterPlaceholder = "data:image/svg+xml;utf8,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><rect width='100' height='100' fill='%230f172a'/><circle cx='50' cy='30' r='12' fill='white'/><path d='M35 70 C 35 45, 65 45, 65 70 L 60 85 L 40 85 Z' fill='white'/></svg>"

// CinematicPlaceholder is shown when a scripted turn flags a cinematic
// moment; no image model is involved in demo mode.
const CinematicPlaceholder = "data:image/svg+xml;utf8,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><rect width='100' height='100' fill='%231e293b'/><circle cx='25' cy='25' r='10' fill='white'/><circle cx='50' cy='25' r='10' fill='white'/><rect x='65' y='45' width='25' height='40' rx='5' fill='%23a0aec0'/></svg>"

// ConcludedLine is appended when a message arrives after the script is
// exhausted.
const ConcludedLine = "This concludes the demo! Click the restart icon to create your own character."

// SuccessSummary replaces the live summarize call when the scripted
// story completes.
const SuccessSummary = "Through logical questioning and empathy, you guided Alex from a state of confusion to a moment of brilliant insight. This journey shows how breaking down a complex problem into smaller, manageable questions can pave the way for a creative breakthrough."

// Entry types. A "user" entry is the line the script expects next; it
// illustrates the walkthrough but is never enforced against actual
// input. A "response" entry is a complete scripted interaction payload.
const (
	EntryUser     = "user"
	EntryResponse = "response"
)

// Entry is one element of the scripted conversation.
type Entry struct {
	Type     string
	Line     string
	Response *session.InteractResult
}

// InitialSession builds a fresh demo session snapshot: a pre-authored
// character mid-way through discovering a lost breakfast meal plan.
func InitialSession() *session.Session {
	s := session.New()
	s.Phase = session.PhaseDemo
	s.DemoStatus = session.DemoGuide
	s.Character = &session.Character{
		Name:        "Alex",
		ShortTitle:  "the Meticulous Planner",
		Description: "An organized individual who designs every aspect of their day for peak performance, but has misplaced the crucial details of their morning fuel routine.",
		Archetype:   "The Strategist",
		Traits:      []string{"Focused", "Disciplined", "Forgetful", "Healthy"},
	}
	s.EmotionState = &session.EmotionState{Courage: 30, Fear: 40, Curiosity: 60, Happiness: 15}
	s.BlueprintState = &session.BlueprintState{Progress: 0, Understanding: 5, Complexity: 20}
	s.WorldContext = &session.WorldContext{
		WorldName:                  "The Kitchen Command Center",
		WorldDescription:           "A hyper-organized kitchen where every appliance has its place, but the central plan for the morning meal has vanished.",
		CurrentLocationName:        "The Blueprint Desk",
		CurrentLocationDescription: "A clean desk in the corner of the kitchen holds a blender, a notepad, and a few key ingredients. The core instructions are missing.",
	}
	s.BlueprintInfo = &session.BlueprintInfo{
		Title:         "The Ultimate Breakfast Fuel Blueprint",
		Summary:       "A precise meal plan designed for optimal morning energy, but the exact ingredient ratios and steps are jumbled.",
		FirstFragment: "A note on the counter says 'Protein: 40g target'. How was this achieved?",
	}
	s.MoodLabel = "Focused but Frazzled"
	s.WorldMood = "Calm and orderly"
	s.AmbientSound = &session.AmbientCue{Cue: "static_hum", Description: "A quiet, low hum from the nearby refrigerator."}
	s.AmbientAnimation = &session.AmbientCue{Cue: "morning_light", Description: "Early morning light streams in, highlighting specks of dust in the air."}
	s.History = []session.HistoryItem{
		{Role: session.RoleUser, Text: CharacterPlaceholder},
		{Role: session.RoleEvent, Text: "Alex, the Meticulous Planner, stares at the note on their desk, feeling a sense of unease."},
		{Role: session.RoleWorld, Text: "A note on the counter says 'Protein: 40g target'. How was this achieved?"},
	}
	return s
}

// Script is the fixed conversation, alternating between the line a user
// is expected to type and the scripted payload that answers it.
var Script = []Entry{
	{
		Type: EntryUser,
		Line: "40 grams of protein is a lot. What were the components of the breakfast?",
	},
	{
		Type: EntryResponse,
		Response: &session.InteractResult{
			CharacterReply:        "I know it was a three-part system. Eggs were definitely involved... something about 'H.B. x2'. And there was a shake, that was the main source.",
			StoryEvent:            "Alex glances at an egg carton and then at a large tub of protein powder. The memory feels disjointed, but the pieces are there.",
			BlueprintFragment:     &session.BlueprintFragment{FromBlueprint: "A faded sticky note is found: 'H.B. x2 = 12g protein'. The code is cracked: two hard-boiled eggs."},
			UpdatedEmotionState:   session.EmotionState{Courage: 45, Fear: 25, Curiosity: 75, Happiness: 30},
			UpdatedBlueprintState: session.BlueprintState{Progress: 30, Understanding: 35, Complexity: 30},
			MoodLabel:             "Puzzling it out",
			WorldUpdate: session.WorldUpdate{
				WorldMood:      "Intriguing",
				LocationChange: session.LocationChange{Type: session.LocationNone},
			},
			AmbientSound:     session.AmbientCue{Cue: "page_turn", Description: "The soft rustle of a notepad page turning."},
			AmbientAnimation: session.AmbientCue{Cue: "morning_light", Description: "The light catches the smooth surface of the eggs."},
		},
	},
	{
		Type: EntryUser,
		Line: "Okay, 2 hard-boiled eggs for 12g. What about the protein shake? What was in it?",
	},
	{
		Type: EntryResponse,
		Response: &session.InteractResult{
			CharacterReply:        "The shake... right. It was one scoop of whey protein. The liquid wasn't milk... it was almond milk! Unsweetened. To keep the calories controlled.",
			StoryEvent:            "With a surge of confidence, Alex finds the protein scoop inside the tub and measures out a perfect, level scoop. This feels correct.",
			BlueprintFragment:     &session.BlueprintFragment{FromBlueprint: "A calculation on the notepad becomes clear: '1 scoop whey = 25g protein'. This plus the eggs makes 37g. Almost there."},
			UpdatedEmotionState:   session.EmotionState{Courage: 70, Fear: 10, Curiosity: 65, Happiness: 60},
			UpdatedBlueprintState: session.BlueprintState{Progress: 80, Understanding: 85, Complexity: 15},
			MoodLabel:             "Recalling",
			WorldUpdate: session.WorldUpdate{
				WorldMood:      "Clarifying",
				LocationChange: session.LocationChange{Type: session.LocationNone},
			},
			AmbientSound:      session.AmbientCue{Cue: "blender_click", Description: "The satisfying click of the blender lid locking into place."},
			AmbientAnimation:  session.AmbientCue{Cue: "brightening", Description: "The kitchen seems to brighten as the plan solidifies."},
			CinematicImageURL: CinematicPlaceholder,
		},
	},
	{
		Type: EntryUser,
		Line: "37g of protein so far. There must be one last component. What about carbs for energy?",
	},
	{
		Type: EntryResponse,
		Response: &session.InteractResult{
			CharacterReply:        "Of course! The energy source. It was oatmeal! A small bowl. Topped with... blueberries for antioxidants, and sliced almonds for fats and the last bit of protein. That's it!",
			StoryEvent:            "Alex pulls the oats, blueberries, and almonds from the pantry and fridge, arranging them neatly next to the other ingredients. The full breakfast blueprint is visible.",
			BlueprintFragment:     &session.BlueprintFragment{FromBlueprint: "PROJECT COMPLETE: The blueprint for 'The Ultimate Breakfast Fuel' (2 H.B. Eggs, 1 Whey Shake, Oatmeal w/ Berries & Almonds) is restored."},
			UpdatedEmotionState:   session.EmotionState{Courage: 95, Fear: 5, Curiosity: 20, Happiness: 95},
			UpdatedBlueprintState: session.BlueprintState{Progress: 100, Understanding: 100, Complexity: 0},
			MoodLabel:             "Accomplished",
			WorldUpdate: session.WorldUpdate{
				WorldMood:      "Triumphant",
				LocationChange: session.LocationChange{Type: session.LocationNone},
			},
			AmbientSound:     session.AmbientCue{Cue: "confident_hum", Description: "A confident hum replaces the silence."},
			AmbientAnimation: session.AmbientCue{Cue: "bright_potential", Description: "The kitchen is filled with the bright potential of a perfectly planned meal."},
		},
	},
}

// GuideStep is one stop of the pre-story walkthrough overlay. Anchor
// names a presentation element; Side is where the callout prefers to sit.
type GuideStep struct {
	Anchor string `json:"anchor"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Side   string `json:"side"`
}

// GuideSteps is the fixed walkthrough shown before the scripted story
// begins.
var GuideSteps = []GuideStep{
	{Anchor: "character-image", Side: "right", Title: "It's Alive!", Body: "Your character drawing is brought to life, making them feel like a living part of the world."},
	{Anchor: "character-card", Side: "right", Title: "Your Character", Body: "This is your character. The AI creates their personality, mood, and traits based on your drawing."},
	{Anchor: "emotion-meters", Side: "right", Title: "Emotion Meters", Body: "Their feelings change based on your choices and story events. High fear might stall progress, while courage can unlock new paths."},
	{Anchor: "blueprint-tracker", Side: "left", Title: "The Blueprint", Body: "Reconstruct the forgotten plan. Your questions reveal clues, raise understanding, and chip away at complexity."},
	{Anchor: "world-display", Side: "top", Title: "The Living World", Body: "The world itself has a mood and can change locations. The sights and sounds are described here."},
	{Anchor: "chat-log", Side: "top", Title: "The Story Unfolds", Body: "Follow the narrative here. You'll see your messages, character replies, and key story events."},
	{Anchor: "chat-input", Side: "top", Title: "Drive the Story", Body: "Interact by typing here. You can talk to your Character, the World, or Both to see how they react."},
}
