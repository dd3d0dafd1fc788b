package session

import "fmt"

// Clamp maps an incoming emotion value into [0,100]. Every emotion
// update passes through here; values are never assumed pre-clamped.
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampEmotions(e EmotionState) EmotionState {
	return EmotionState{
		Courage:   Clamp(e.Courage),
		Fear:      Clamp(e.Fear),
		Curiosity: Clamp(e.Curiosity),
		Happiness: Clamp(e.Happiness),
	}
}

// ApplyInit populates a fresh session from an init result. imageRef is
// the uploaded character image (a data URL) and becomes the first
// history item. Exactly three history items are appended, in order:
// the image, a "comes to life" event line, and the first blueprint
// fragment. The caller owns the phase transition.
func ApplyInit(s *Session, res *InitResult, imageRef string) []Effect {
	s.Turn++

	character := res.Character
	emotions := clampEmotions(res.EmotionState)
	blueprint := res.BlueprintState
	info := res.BlueprintInfo
	sound := res.AmbientSound
	animation := res.AmbientAnimation

	s.Character = &character
	s.EmotionState = &emotions
	s.BlueprintState = &blueprint
	s.BlueprintInfo = &info
	s.WorldContext = &WorldContext{
		WorldName:                  res.WorldSeed.WorldName,
		WorldDescription:           res.WorldSeed.WorldDescription,
		CurrentLocationName:        res.WorldSeed.StartingLocationName,
		CurrentLocationDescription: res.WorldSeed.StartingLocationDescription,
	}
	s.MoodLabel = res.MoodLabel
	s.WorldMood = InitialWorldMood
	s.AmbientSound = &sound
	s.AmbientAnimation = &animation

	s.History = append(s.History,
		HistoryItem{Role: RoleUser, Text: imageRef},
		HistoryItem{Role: RoleEvent, Text: fmt.Sprintf("%s comes to life in %s!",
			character.Name, s.WorldContext.CurrentLocationName)},
		HistoryItem{Role: RoleWorld, Text: info.FirstFragment},
	)

	return []Effect{{Type: EffectSound, Cue: SoundInit, Turn: s.Turn}}
}

// AppendUserMessage records an outgoing user message before the gateway
// round trip, so the history reflects the request immediately. The item
// is deliberately not rolled back if the turn later fails.
func (s *Session) AppendUserMessage(text string) Effect {
	s.Turn++
	s.History = append(s.History, HistoryItem{Role: RoleUser, Text: text})
	return Effect{Type: EffectSound, Cue: SoundSendMessage, Turn: s.Turn}
}

// ApplyInteraction merges one interaction result into the session. It is
// the single merge contract shared by the live and demo paths: emotions
// are clamped and replaced; blueprint state, mood labels and ambient
// cues are replaced wholesale; location changes touch only the
// current-location fields; up to three history items are appended in a
// fixed order with staggered sound cues. It reports completion when the
// updated blueprint progress reaches 100.
func ApplyInteraction(s *Session, res *InteractResult) (effects []Effect, complete bool) {
	emotions := clampEmotions(res.UpdatedEmotionState)
	s.EmotionState = &emotions

	blueprint := res.UpdatedBlueprintState
	s.BlueprintState = &blueprint
	s.MoodLabel = res.MoodLabel
	s.WorldMood = res.WorldUpdate.WorldMood

	sound := res.AmbientSound
	animation := res.AmbientAnimation
	s.AmbientSound = &sound
	s.AmbientAnimation = &animation

	if res.CinematicImageURL != "" {
		s.CinematicImageURL = res.CinematicImageURL
		effects = append(effects, Effect{Type: EffectCinematic, Turn: s.Turn})
		effects = append(effects, Effect{Type: EffectSound, Cue: SoundCinematicMoment, Turn: s.Turn})
	}

	if res.WorldUpdate.LocationChange.Type != LocationNone &&
		res.WorldUpdate.LocationChange.Type != "" && s.WorldContext != nil {
		s.WorldContext.CurrentLocationName = res.WorldUpdate.LocationChange.NewLocationName
		s.WorldContext.CurrentLocationDescription = res.WorldUpdate.LocationChange.NewLocationDescription
	}

	if res.CharacterReply != "" {
		s.History = append(s.History, HistoryItem{Role: RoleCharacter, Text: res.CharacterReply})
		effects = append(effects, Effect{Type: EffectSound, Cue: SoundCharacterReply, Turn: s.Turn})
	}
	if res.StoryEvent != "" {
		s.History = append(s.History, HistoryItem{Role: RoleEvent, Text: res.StoryEvent})
		effects = append(effects, Effect{Type: EffectSound, Cue: SoundStoryEvent, DelayMS: StoryEventDelayMS, Turn: s.Turn})
	}
	if res.BlueprintFragment != nil && res.BlueprintFragment.FromBlueprint != "" {
		s.History = append(s.History, HistoryItem{Role: RoleWorld, Text: res.BlueprintFragment.FromBlueprint})
		effects = append(effects, Effect{Type: EffectSound, Cue: SoundWorldClue, DelayMS: WorldClueDelayMS, Turn: s.Turn})
	}

	return effects, blueprint.Progress >= 100
}
