// Package textfilter keeps narrative output family friendly. The system
// prompt demands a PG tone, but model output is not guaranteed; this
// filter backstops the character replies, story events and blueprint
// fragments before they are merged into the session.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replacements maps disallowed words to family-friendly alternatives.
// Words with no acceptable stand-in map to the censored marker.
var replacements = map[string]string{
	"fuck":         "fudge",
	"shit":         "shoot",
	"damn":         "dang",
	"hell":         "heck",
	"ass":          "butt",
	"asshole":      "jerk",
	"bitch":        "jerk",
	"bastard":      "jerk",
	"crap":         "crud",
	"piss":         "ticked",
	"goddamn":      "gosh-dang",
	"motherfucker": "mother-trucker",
	"bullshit":     "baloney",
	"dumbass":      "dummy",
	"jackass":      "jerk",
	"dickhead":     "jerk",
	"prick":        "jerk",
	"whore":        censoredMarker,
	"slut":         censoredMarker,
	"cock":         censoredMarker,
	"pussy":        censoredMarker,
	"tits":         censoredMarker,
}

const censoredMarker = "[censored]"

// Filter replaces disallowed words in narrative text with
// family-friendly alternatives, preserving the case of the original.
type Filter struct {
	patterns map[string]*regexp.Regexp
}

// New builds a filter with the word patterns pre-compiled.
func New() *Filter {
	f := &Filter{patterns: make(map[string]*regexp.Regexp, len(replacements))}
	for word := range replacements {
		f.patterns[word] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	}
	return f
}

// Clean returns text with every disallowed word replaced.
func (f *Filter) Clean(text string) string {
	result := text
	for word, pattern := range f.patterns {
		replacement := replacements[word]
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if replacement == censoredMarker {
				return censoredMarker
			}
			return matchCase(match, replacement)
		})
	}
	return result
}

// Flagged reports whether text contains any disallowed word.
func (f *Filter) Flagged(text string) bool {
	for _, pattern := range f.patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// matchCase applies the case shape of the matched word to its
// replacement: all-caps stays all-caps, title stays title, anything
// else is copied character by character.
func matchCase(original, replacement string) string {
	if original == strings.ToUpper(original) {
		return strings.ToUpper(replacement)
	}
	if original == strings.ToLower(original) {
		return strings.ToLower(replacement)
	}

	title := cases.Title(language.English)
	if title.String(strings.ToLower(original)) == original {
		return title.String(replacement)
	}

	src := []rune(original)
	out := make([]rune, 0, len(replacement))
	for i, r := range []rune(replacement) {
		if i < len(src) && unicode.IsUpper(src[i]) {
			out = append(out, unicode.ToUpper(r))
		} else {
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}
