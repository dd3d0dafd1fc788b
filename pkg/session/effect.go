package session

// Effect kinds.
const (
	EffectSound     = "sound"
	EffectSpeech    = "speech"
	EffectCinematic = "cinematic"
)

// Sound cues emitted by the merge functions. Cue strings are opaque to
// the engine; the presentation layer decides what each one sounds like.
const (
	SoundInit            = "init"
	SoundSendMessage     = "send_message"
	SoundCharacterReply  = "character_reply"
	SoundStoryEvent      = "story_event"
	SoundWorldClue       = "world_clue"
	SoundCinematicMoment = "cinematic_moment"
)

// Audio-stagger offsets in milliseconds. These pace the perceived
// narrative reveal only; they never gate logic or subsequent turns.
const (
	StoryEventDelayMS = 300
	WorldClueDelayMS  = 600
)

// Effect is one timed presentation side effect produced by a state
// merge. Effects are dispatched after the merge commits, in order; the
// presentation layer honors DelayMS and drops effects whose Turn is
// older than the latest turn it has applied.
type Effect struct {
	Type    string `json:"type"`
	Cue     string `json:"cue,omitempty"`
	DelayMS int    `json:"delay_ms,omitempty"`
	Turn    int    `json:"turn"`

	// Audio carries synthesized speech bytes for speech effects.
	Audio []byte `json:"audio,omitempty"`
	// MimeType describes Audio, e.g. "audio/mp3".
	MimeType string `json:"mime_type,omitempty"`
}
