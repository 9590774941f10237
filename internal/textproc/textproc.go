// Package textproc provides Russian text normalization for the
// interpretation pipeline.
//
// The normalizer is deliberately total: every operation accepts arbitrary
// input and returns a usable string. Cleanup failures degrade to the
// original text rather than surfacing errors, because downstream stages
// (temporal resolution, intent classification, entity extraction) all run
// over whatever the normalizer produces.
package textproc

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxLength is the maximum normalized text length in code points.
const DefaultMaxLength = 1000

var (
	whitespaceRE  = regexp.MustCompile(`\s+`)
	multiDotRE    = regexp.MustCompile(`[.]{2,}`)
	multiBangRE   = regexp.MustCompile(`[!]{2,}`)
	multiQuestRE  = regexp.MustCompile(`[?]{2,}`)
	nonWordRE     = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	sentenceEndRE = regexp.MustCompile(`[.!?]+`)
)

// Processor normalizes and lemmatizes Russian text.
type Processor struct {
	maxLength int
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxLength overrides the truncation limit (in code points).
func WithMaxLength(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxLength = n
		}
	}
}

// NewProcessor creates a text processor with the given options.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{maxLength: DefaultMaxLength}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Normalize cleans raw input text: newlines and whitespace runs collapse to
// single spaces, repeated terminal punctuation collapses to one instance,
// and the result is trimmed and truncated to the configured limit.
// Normalize never fails; empty input yields an empty string. It is
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func (p *Processor) Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = whitespaceRE.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	text = multiDotRE.ReplaceAllString(text, ".")
	text = multiBangRE.ReplaceAllString(text, "!")
	text = multiQuestRE.ReplaceAllString(text, "?")

	runes := []rune(text)
	if len(runes) > p.maxLength {
		text = strings.TrimSpace(string(runes[:p.maxLength]))
	}

	return text
}

// PrepareForClassification lowers the text and strips punctuation, keeping
// only letters, digits, and single spaces. Intent classification operates
// on this form.
func (p *Processor) PrepareForClassification(text string) string {
	text = p.Normalize(text)
	text = strings.ToLower(text)
	text = nonWordRE.ReplaceAllString(text, " ")
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SplitSentences segments text into sentences. Segmentation is
// abbreviation-aware for common Russian abbreviations; when the segmenter
// produces nothing usable it falls back to a plain split on `.`, `!`, `?`.
func (p *Processor) SplitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := segment(text)
	if len(sentences) == 0 {
		for _, part := range sentenceEndRE.Split(text, -1) {
			if s := strings.TrimSpace(part); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	return sentences
}

// abbreviations that a terminal dot does not end a sentence after.
var abbreviations = map[string]bool{
	"г":  true, // год / город
	"гг": true,
	"т":  true, // т.д., т.п.
	"д":  true,
	"п":  true,
	"ул": true,
	"др": true,
	"см": true,
	"им": true,
}

func segment(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && isAbbreviationBefore(runes, i) {
			continue
		}
		// Consume any run of terminal punctuation.
		for i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '!' || runes[i+1] == '?') {
			i++
			cur.WriteRune(runes[i])
		}
		flush()
	}
	flush()
	return out
}

// isAbbreviationBefore reports whether the word ending at position i (a dot)
// is a known abbreviation, or a single letter (initials like "А.").
func isAbbreviationBefore(runes []rune, i int) bool {
	j := i - 1
	for j >= 0 && unicode.IsLetter(runes[j]) {
		j--
	}
	word := strings.ToLower(string(runes[j+1 : i]))
	if word == "" {
		return false
	}
	if len([]rune(word)) == 1 {
		return true
	}
	return abbreviations[word]
}

// russianPrepositions is the set removed by StripPrepositions.
var russianPrepositions = map[string]bool{
	"в": true, "во": true, "на": true, "с": true, "со": true,
	"к": true, "ко": true, "у": true, "о": true, "об": true, "обо": true,
	"от": true, "до": true, "по": true, "за": true, "из": true,
	"под": true, "над": true, "при": true, "про": true,
	"без": true, "для": true, "через": true, "перед": true,
}

// StripPrepositions removes Russian prepositions from text, preserving the
// order and spacing of the remaining tokens.
func (p *Processor) StripPrepositions(text string) string {
	if text == "" {
		return ""
	}
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		bare := strings.ToLower(strings.Trim(f, ".,!?;:«»\"'()"))
		if russianPrepositions[bare] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// CleanEntityText applies label-specific cleanup to an extracted entity
// value: person values drop leading "с"/"со" and are title-cased, time and
// date values collapse whitespace, event values drop leading "на"/"в"/"о"/"про".
func (p *Processor) CleanEntityText(text, label string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}

	switch label {
	case "PERSON":
		text = trimLeadingWords(text, "с", "со")
		text = TitleCase(text)
	case "TIME", "DATE":
		text = whitespaceRE.ReplaceAllString(text, " ")
	case "EVENT", "EVENT_NAME":
		text = trimLeadingWords(text, "на", "в", "о", "про")
	}
	return strings.TrimSpace(text)
}

func trimLeadingWords(text string, words ...string) string {
	fields := strings.Fields(text)
	for len(fields) > 0 {
		first := strings.ToLower(fields[0])
		matched := false
		for _, w := range words {
			if first == w {
				fields = fields[1:]
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	return strings.Join(fields, " ")
}

// TitleCase capitalizes the first letter of each whitespace-separated word
// and lowers the rest, Unicode-aware.
func TitleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = Capitalize(f)
	}
	return strings.Join(fields, " ")
}

// Capitalize uppercases the first rune of s and lowercases the remainder.
func Capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
