package demo

import "github.com/emotionink/engine/pkg/session"

// NextResponse scans the script forward from cursor for the next
// response entry. It returns a copy of the scripted payload and the
// cursor position just past the consumed entry. ok is false when no
// response remains, which marks the script as ended. The user's actual
// text is never validated against the script: any input advances to the
// next scripted response.
func NextResponse(cursor int) (res *session.InteractResult, next int, ok bool) {
	if cursor < 0 {
		cursor = 0
	}
	for i := cursor; i < len(Script); i++ {
		if Script[i].Type == EntryResponse && Script[i].Response != nil {
			r := *Script[i].Response
			if r.BlueprintFragment != nil {
				frag := *r.BlueprintFragment
				r.BlueprintFragment = &frag
			}
			return &r, i + 1, true
		}
	}
	return nil, cursor, false
}

// ResponsesRemaining counts scripted responses at or after cursor.
func ResponsesRemaining(cursor int) int {
	n := 0
	for i := cursor; i < len(Script); i++ {
		if i >= 0 && Script[i].Type == EntryResponse {
			n++
		}
	}
	return n
}

// AdvanceGuide moves the walkthrough one step forward, clamped at the
// last step.
func AdvanceGuide(step int) int {
	if step+1 >= len(GuideSteps) {
		return len(GuideSteps) - 1
	}
	return step + 1
}
