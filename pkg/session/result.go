package session

// InitResult is the structured payload the AI gateway returns when a
// character is brought to life.
type InitResult struct {
	Character        Character      `json:"character"`
	EmotionState     EmotionState   `json:"emotion_state"`
	MoodLabel        string         `json:"mood_label"`
	ExpressionKey    string         `json:"expression_key,omitempty"`
	WorldSeed        WorldSeed      `json:"world_seed"`
	BlueprintState   BlueprintState `json:"blueprint_state"`
	BlueprintInfo    BlueprintInfo  `json:"blueprint_info"`
	AmbientSound     AmbientCue     `json:"ambient_sound"`
	AmbientAnimation AmbientCue     `json:"ambient_animation"`
}

// LocationChange types. "none" leaves the world context untouched;
// "move" and "transform" replace only the current-location fields.
const (
	LocationNone      = "none"
	LocationMove      = "move"
	LocationTransform = "transform"
)

// LocationChange signals a change of the current location.
type LocationChange struct {
	Type                   string `json:"type"`
	NewLocationName        string `json:"new_location_name,omitempty"`
	NewLocationDescription string `json:"new_location_description,omitempty"`
}

// CinematicMoment flags a narratively significant turn that deserves an
// illustrative image.
type CinematicMoment struct {
	Enabled bool   `json:"enabled"`
	Prompt  string `json:"prompt,omitempty"`
}

// WorldUpdate carries per-turn world changes.
type WorldUpdate struct {
	WorldMood       string          `json:"world_mood"`
	LocationChange  LocationChange  `json:"location_change"`
	CinematicMoment CinematicMoment `json:"cinematic_moment"`
}

// BlueprintFragment is a piece of the blueprint revealed by a turn:
// narrative text plus numeric deltas. The deltas are advisory; the
// authoritative numbers arrive in UpdatedBlueprintState.
type BlueprintFragment struct {
	FromBlueprint      string  `json:"from_blueprint"`
	UnderstandingDelta float64 `json:"understanding_delta,omitempty"`
	ProgressDelta      float64 `json:"progress_delta,omitempty"`
	ComplexityDelta    float64 `json:"complexity_delta,omitempty"`
}

// InteractResult is the structured payload for one story turn, from the
// live gateway or the demo script. CharacterReply, StoryEvent and
// BlueprintFragment are all optional; the merge checks each for presence.
type InteractResult struct {
	CharacterReply        string             `json:"character_reply,omitempty"`
	StoryEvent            string             `json:"story_event,omitempty"`
	EmotionDeltas         *EmotionState      `json:"emotion_deltas,omitempty"`
	UpdatedEmotionState   EmotionState       `json:"updated_emotion_state"`
	MoodLabel             string             `json:"mood_label"`
	ExpressionKey         string             `json:"expression_key,omitempty"`
	BlueprintFragment     *BlueprintFragment `json:"blueprint_fragment,omitempty"`
	UpdatedBlueprintState BlueprintState     `json:"updated_blueprint_state"`
	WorldUpdate           WorldUpdate        `json:"world_update"`
	AmbientSound          AmbientCue         `json:"ambient_sound"`
	AmbientAnimation      AmbientCue         `json:"ambient_animation"`

	// CinematicImageURL is filled by the gateway when the cinematic
	// moment was rendered, or by the demo script's placeholder. Empty
	// means no image this turn.
	CinematicImageURL string `json:"cinematic_image_url,omitempty"`
}
