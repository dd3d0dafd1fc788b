package session

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle state of a session. It drives which view is
// active and which operations are accepted.
type Phase string

const (
	PhaseInit        Phase = "init"        // no character yet
	PhaseLoading     Phase = "loading"     // a gateway request is outstanding
	PhaseInteractive Phase = "interactive" // awaiting user input, live mode
	PhaseDemo        Phase = "demo"        // awaiting user input, scripted mode
	PhaseSuccess     Phase = "success"     // terminal: blueprint complete
	PhaseError       Phase = "error"       // terminal until restart
)

// DemoStatus gates whether the guided walkthrough overlay or the
// scripted story itself is active.
type DemoStatus string

const (
	DemoGuide DemoStatus = "guide"
	DemoStory DemoStatus = "story"
	DemoEnded DemoStatus = "ended"
)

// MessageTarget is who an interaction message is addressed to.
type MessageTarget string

const (
	TargetCharacter MessageTarget = "character"
	TargetWorld     MessageTarget = "world"
	TargetBoth      MessageTarget = "both"
)

// CommunicationMode selects whether character replies are text only or
// also synthesized as speech. Text is the default; the empty value is
// treated as text.
type CommunicationMode string

const (
	ModeText  CommunicationMode = "text"
	ModeVoice CommunicationMode = "voice"
)

// History item roles. The first user item of a session is an image
// reference (data URL) rather than text; the presentation layer uses it
// to render the character portrait.
const (
	RoleUser      = "user"
	RoleCharacter = "character"
	RoleEvent     = "event"
	RoleWorld     = "world"
)

// Character is created once at session start and is immutable thereafter.
type Character struct {
	Name        string   `json:"name"`
	ShortTitle  string   `json:"short_title"`
	Description string   `json:"description"`
	Archetype   string   `json:"archetype"`
	Traits      []string `json:"traits"`
}

// EmotionState holds four independent sliders, each always in [0,100].
type EmotionState struct {
	Courage   float64 `json:"courage"`
	Fear      float64 `json:"fear"`
	Curiosity float64 `json:"curiosity"`
	Happiness float64 `json:"happiness"`
}

// BlueprintState tracks reconstruction of the forgotten blueprint.
// Values are trusted verbatim from the source; Progress >= 100 is the
// success trigger.
type BlueprintState struct {
	Progress      float64 `json:"progress"`
	Understanding float64 `json:"understanding"`
	Complexity    float64 `json:"complexity"`
}

// BlueprintInfo is set once at init and read-only afterward. FirstFragment
// doubles as the "current goal" before any clue arrives.
type BlueprintInfo struct {
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	FirstFragment string `json:"first_fragment"`
}

// WorldContext describes the story world. WorldName and WorldDescription
// are set once at init; the current-location fields are replaceable on
// location-change events.
type WorldContext struct {
	WorldName                  string `json:"world_name"`
	WorldDescription           string `json:"world_description"`
	CurrentLocationName        string `json:"current_location_name"`
	CurrentLocationDescription string `json:"current_location_description"`
}

// WorldSeed is the init-time source of a WorldContext.
type WorldSeed struct {
	WorldName                   string `json:"world_name"`
	WorldDescription            string `json:"world_description"`
	StartingLocationName        string `json:"starting_location_name"`
	StartingLocationDescription string `json:"starting_location_description"`
}

// AmbientCue is an opaque identifier plus a human-readable description.
// The cue string is interpreted only by the presentation layer.
type AmbientCue struct {
	Cue         string `json:"cue"`
	Description string `json:"description"`
}

// HistoryItem is a single line of the chat-style narrative log.
type HistoryItem struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// InitialWorldMood seeds the world mood at session creation; the model
// replaces it on the first interaction.
const InitialWorldMood = "calm and quiet"

// Session is the root aggregate. It is owned exclusively by the
// reconciler and mutated only through the merge functions in this
// package; Reset destroys it on restart.
type Session struct {
	ID    uuid.UUID `json:"id"`
	Phase Phase     `json:"phase"`

	// Turn increments on every effect-emitting operation. Effects carry
	// it so the presentation layer can drop stale async callbacks.
	Turn int `json:"turn"`

	Character      *Character      `json:"character,omitempty"`
	EmotionState   *EmotionState   `json:"emotion_state,omitempty"`
	BlueprintState *BlueprintState `json:"blueprint_state,omitempty"`
	BlueprintInfo  *BlueprintInfo  `json:"blueprint_info,omitempty"`
	WorldContext   *WorldContext   `json:"world_context,omitempty"`

	History []HistoryItem `json:"history,omitempty"`

	MoodLabel        string      `json:"mood_label,omitempty"`
	WorldMood        string      `json:"world_mood,omitempty"`
	AmbientSound     *AmbientCue `json:"ambient_sound,omitempty"`
	AmbientAnimation *AmbientCue `json:"ambient_animation,omitempty"`

	CinematicImageURL string `json:"cinematic_image_url,omitempty"`
	SuccessSummary    string `json:"success_summary,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`

	// CommunicationMode gates speech synthesis on live turns.
	CommunicationMode CommunicationMode `json:"communication_mode,omitempty"`

	// Demo script cursor and walkthrough status. Zero values outside
	// demo mode.
	DemoStep   int        `json:"demo_step,omitempty"`
	DemoStatus DemoStatus `json:"demo_status,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// New returns an empty session in the init phase.
func New() *Session {
	return &Session{
		ID:                uuid.New(),
		Phase:             PhaseInit,
		History:           make([]HistoryItem, 0),
		CommunicationMode: ModeText,
		CreatedAt:         time.Now(),
	}
}

// Reset returns the session to its initial empty state, keeping only the
// ID. It is unconditional and idempotent, valid from every phase.
func (s *Session) Reset() {
	s.Phase = PhaseInit
	s.Turn = 0
	s.Character = nil
	s.EmotionState = nil
	s.BlueprintState = nil
	s.BlueprintInfo = nil
	s.WorldContext = nil
	s.History = make([]HistoryItem, 0)
	s.MoodLabel = ""
	s.WorldMood = ""
	s.AmbientSound = nil
	s.AmbientAnimation = nil
	s.CinematicImageURL = ""
	s.SuccessSummary = ""
	s.ErrorMessage = ""
	s.CommunicationMode = ModeText
	s.DemoStep = 0
	s.DemoStatus = ""
}

// Ready reports whether the aggregate parts created together at init are
// all present. A send-message operation against a session that is not
// ready indicates a state inconsistency and must no-op.
func (s *Session) Ready() bool {
	return s.Character != nil &&
		s.EmotionState != nil &&
		s.BlueprintState != nil &&
		s.BlueprintInfo != nil &&
		s.WorldContext != nil
}

// RecentHistory returns at most the last n history items.
func (s *Session) RecentHistory(n int) []HistoryItem {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
