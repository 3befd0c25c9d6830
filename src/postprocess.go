package lyricflow

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	goaway "github.com/TwiN/go-away"
)

// Suggestion is one proposed edit of a text span.
// Offset and Length are byte positions in the checked text.
type Suggestion struct {
	Offset       int
	Length       int
	Replacements []string
	Rule         string
	Message      string
}

// GrammarChecker proposes and applies corrections
type GrammarChecker interface {
	Check(text string) ([]Suggestion, error)
	Correct(text string, suggestions []Suggestion) (string, error)
}

// Censor masks profane words
type Censor interface {
	Censor(text string) (string, error)
}

// =============================================================================
// RULE CHECKER
// Local grammar rules suited to normalized lyric text (lower case, no
// punctuation, no apostrophes).
// =============================================================================

const (
	RuleCapitalizeStart = "CAPITALIZE_START"
	RulePronounI        = "PRONOUN_I"
	RuleRepeatedWord    = "REPEATED_WORD"
	RuleArticle         = "A_AN"
	RuleContraction     = "CONTRACTION"
)

var (
	wordPattern = regexp.MustCompile(`[A-Za-z']+`)

	contractions = map[string]string{
		"aint":     "ain't",
		"arent":    "aren't",
		"cant":     "can't",
		"couldnt":  "couldn't",
		"didnt":    "didn't",
		"doesnt":   "doesn't",
		"dont":     "don't",
		"hasnt":    "hasn't",
		"havent":   "haven't",
		"im":       "I'm",
		"isnt":     "isn't",
		"ive":      "I've",
		"shouldnt": "shouldn't",
		"thats":    "that's",
		"theyre":   "they're",
		"theyve":   "they've",
		"wasnt":    "wasn't",
		"werent":   "weren't",
		"whats":    "what's",
		"wont":     "won't",
		"wouldnt":  "wouldn't",
		"youll":    "you'll",
		"youre":    "you're",
		"youve":    "you've",
	}

	// Words whose spelling and sound disagree on a vowel start
	anExceptions = []string{"hour", "honest", "honor", "heir"}
	aExceptions  = []string{"one", "once", "uni", "use", "usu", "eu", "ewe"}
)

// RuleChecker is a GrammarChecker built from fixed rules
type RuleChecker struct{}

func NewRuleChecker() *RuleChecker {
	return &RuleChecker{}
}

type wordSpan struct {
	start, end int
	text       string
}

func spans(text string) []wordSpan {
	locs := wordPattern.FindAllStringIndex(text, -1)
	out := make([]wordSpan, len(locs))
	for i, loc := range locs {
		out[i] = wordSpan{start: loc[0], end: loc[1], text: text[loc[0]:loc[1]]}
	}
	return out
}

// wantsAn reports whether the indefinite article before word is "an"
func wantsAn(word string) bool {
	w := strings.ToLower(word)
	for _, p := range anExceptions {
		if strings.HasPrefix(w, p) {
			return true
		}
	}
	for _, p := range aExceptions {
		if strings.HasPrefix(w, p) {
			return false
		}
	}
	return strings.ContainsRune("aeiou", rune(w[0]))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Check returns suggestions ordered by offset
func (c *RuleChecker) Check(text string) ([]Suggestion, error) {
	words := spans(text)
	var out []Suggestion

	for i, w := range words {
		lower := strings.ToLower(w.text)

		if i > 0 && strings.EqualFold(words[i-1].text, w.text) {
			out = append(out, Suggestion{
				Offset:       words[i-1].end,
				Length:       w.end - words[i-1].end,
				Replacements: []string{""},
				Rule:         RuleRepeatedWord,
				Message:      "Possible typo: you repeated a word",
			})
			continue
		}

		switch {
		case w.text == "i":
			out = append(out, Suggestion{
				Offset:       w.start,
				Length:       len(w.text),
				Replacements: []string{"I"},
				Rule:         RulePronounI,
				Message:      "The pronoun 'I' is always capitalized",
			})
		case contractions[lower] != "":
			fixed := contractions[lower]
			if w.text != lower {
				fixed = capitalize(fixed)
			}
			out = append(out, Suggestion{
				Offset:       w.start,
				Length:       len(w.text),
				Replacements: []string{fixed},
				Rule:         RuleContraction,
				Message:      "Missing apostrophe in contraction",
			})
		case (lower == "a" || lower == "an") && i+1 < len(words):
			want := "a"
			if wantsAn(words[i+1].text) {
				want = "an"
			}
			if lower != want {
				if w.text != lower {
					want = capitalize(want)
				}
				out = append(out, Suggestion{
					Offset:       w.start,
					Length:       len(w.text),
					Replacements: []string{want},
					Rule:         RuleArticle,
					Message:      "Use 'an' before a vowel sound and 'a' otherwise",
				})
			}
		}
	}

	// Sentence start: fold capitalization into an existing fix of the
	// first word, or add one of its own.
	if len(words) > 0 {
		first := words[0]
		merged := false
		for k := range out {
			if out[k].Offset == first.start {
				for r := range out[k].Replacements {
					out[k].Replacements[r] = capitalize(out[k].Replacements[r])
				}
				merged = true
			}
		}
		if !merged && capitalize(first.text) != first.text {
			out = append(out, Suggestion{
				Offset:       first.start,
				Length:       len(first.text),
				Replacements: []string{capitalize(first.text)},
				Rule:         RuleCapitalizeStart,
				Message:      "This sentence does not start with an uppercase letter",
			})
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Offset < out[b].Offset })
	return out, nil
}

// Correct applies the first replacement of each suggestion. A suggestion
// overlapping an earlier one is skipped.
func (c *RuleChecker) Correct(text string, suggestions []Suggestion) (string, error) {
	sorted := append([]Suggestion(nil), suggestions...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Offset < sorted[b].Offset })

	var b strings.Builder
	pos := 0
	for _, s := range sorted {
		if s.Offset < 0 || s.Length < 0 || s.Offset+s.Length > len(text) {
			return "", errorf("suggestion %s at %d+%d outside text of length %d", s.Rule, s.Offset, s.Length, len(text))
		}
		if len(s.Replacements) == 0 || s.Offset < pos {
			continue
		}
		b.WriteString(text[pos:s.Offset])
		b.WriteString(s.Replacements[0])
		pos = s.Offset + s.Length
	}
	b.WriteString(text[pos:])
	return b.String(), nil
}

// =============================================================================
// PROFANITY CENSOR
// =============================================================================

// ProfanityCensor masks profane words with '*' using go-away's detector
type ProfanityCensor struct {
	detector *goaway.ProfanityDetector
}

// NewProfanityCensor uses the default dictionary extended by cfg
func NewProfanityCensor(cfg CensorConfig) *ProfanityCensor {
	profanities := append([]string(nil), goaway.DefaultProfanities...)
	for _, w := range cfg.ExtraWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			profanities = append(profanities, w)
		}
	}
	falsePositives := append([]string(nil), goaway.DefaultFalsePositives...)
	for _, w := range cfg.FalsePositives {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			falsePositives = append(falsePositives, w)
		}
	}
	falseNegatives := append([]string(nil), goaway.DefaultFalseNegatives...)

	return &ProfanityCensor{
		detector: goaway.NewProfanityDetector().
			WithCustomDictionary(profanities, falsePositives, falseNegatives),
	}
}

func (p *ProfanityCensor) Censor(text string) (string, error) {
	return p.detector.Censor(text), nil
}

// IsProfane reports whether text contains any dictionary word
func (p *ProfanityCensor) IsProfane(text string) bool {
	return p.detector.IsProfane(text)
}
