package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"unicode"
)

var (
	// ErrTaggerNotTrained is returned when tagging or saving requires a
	// trained tagger.
	ErrTaggerNotTrained = errors.New("entity: tagger is not trained")

	// ErrNoTaggerData is returned by Train when the training set is empty.
	ErrNoTaggerData = errors.New("entity: no tagger training data")
)

const outsideTag = "O"

// TaggedSentence is one training sentence as tokens with BIO tags
// ("B-PERSON", "I-PERSON", "O", ...).
type TaggedSentence struct {
	Tokens []string `json:"tokens"`
	Tags   []string `json:"tags"`
}

// OffsetSpan is a labeled span given as rune offsets into a sentence.
type OffsetSpan struct {
	Start int
	End   int
	Label Label
}

// NewTaggedSentence tokenizes text and converts offset-labeled spans into
// BIO tags. Tokens that overlap a span take its label; the first token of
// each span gets the B- prefix.
func NewTaggedSentence(text string, spans []OffsetSpan) TaggedSentence {
	toks := tokenizeOffsets(text)
	sent := TaggedSentence{
		Tokens: make([]string, len(toks)),
		Tags:   make([]string, len(toks)),
	}
	for i, tok := range toks {
		sent.Tokens[i] = tok.text
		sent.Tags[i] = outsideTag
		for _, span := range spans {
			if tok.start >= span.End || tok.end <= span.Start {
				continue
			}
			prefix := "B-"
			if i > 0 && sent.Tags[i-1] == "B-"+string(span.Label) || i > 0 && sent.Tags[i-1] == "I-"+string(span.Label) {
				prefix = "I-"
			}
			sent.Tags[i] = prefix + string(span.Label)
			break
		}
	}
	return sent
}

type offsetToken struct {
	text       string
	start, end int
}

// tokenizeOffsets splits text into tokens of letters and digits, keeping
// ':' '.' '/' inside numeric tokens so times and dates stay whole.
func tokenizeOffsets(text string) []offsetToken {
	runes := []rune(text)
	var out []offsetToken
	i := 0
	for i < len(runes) {
		r := runes[i]
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			i++
			continue
		}
		start := i
		for i < len(runes) {
			r = runes[i]
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				i++
				continue
			}
			// Keep separators that glue a numeric token together.
			if (r == ':' || r == '.' || r == '/') && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) && i > start {
				i++
				continue
			}
			break
		}
		out = append(out, offsetToken{text: string(runes[start:i]), start: start, end: i})
	}
	return out
}

// tokenizeWords returns just the token texts of text.
func tokenizeWords(text string) []string {
	toks := tokenizeOffsets(text)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.text
	}
	return out
}

// PerceptronTagger is an averaged-perceptron sequence tagger over BIO
// tags. It is small enough to train in-process on a labeled corpus and
// serializes to a single JSON artifact.
type PerceptronTagger struct {
	weights map[string]map[string]float64
	tags    []string
	trained bool
}

// NewPerceptronTagger creates an untrained tagger.
func NewPerceptronTagger() *PerceptronTagger {
	return &PerceptronTagger{weights: make(map[string]map[string]float64)}
}

// Trained reports whether the tagger has been fitted or loaded.
func (t *PerceptronTagger) Trained() bool { return t.trained }

// features builds the feature set for token i. prevTag is the tag decided
// for the previous token (greedy decoding).
func features(tokens []string, i int, prevTag string) []string {
	word := strings.ToLower(tokens[i])
	runes := []rune(word)

	fs := []string{
		"bias",
		"w=" + word,
		"prevtag=" + prevTag,
	}
	if n := len(runes); n > 3 {
		fs = append(fs, "suf3="+string(runes[n-3:]))
	}
	if n := len(runes); n > 2 {
		fs = append(fs, "suf2="+string(runes[n-2:]))
	}
	fs = append(fs, "shape="+shape(tokens[i]))
	if i > 0 {
		fs = append(fs, "prev="+strings.ToLower(tokens[i-1]))
	} else {
		fs = append(fs, "prev=<s>")
	}
	if i+1 < len(tokens) {
		fs = append(fs, "next="+strings.ToLower(tokens[i+1]))
	} else {
		fs = append(fs, "next=</s>")
	}
	return fs
}

func shape(token string) string {
	runes := []rune(token)
	switch {
	case len(runes) == 0:
		return "empty"
	case unicode.IsDigit(runes[0]):
		return "num"
	case unicode.IsUpper(runes[0]):
		return "title"
	default:
		return "lower"
	}
}

func (t *PerceptronTagger) score(fs []string) map[string]float64 {
	scores := make(map[string]float64, len(t.tags))
	for _, f := range fs {
		for tag, w := range t.weights[f] {
			scores[tag] += w
		}
	}
	return scores
}

func (t *PerceptronTagger) predictTag(fs []string) string {
	scores := t.score(fs)
	best := outsideTag
	bestScore := scores[outsideTag]
	for _, tag := range t.tags {
		if s := scores[tag]; s > bestScore {
			best, bestScore = tag, s
		}
	}
	return best
}

// Train fits the tagger with averaged-perceptron updates over the given
// number of epochs (10 when epochs <= 0).
func (t *PerceptronTagger) Train(sentences []TaggedSentence, epochs int) error {
	if len(sentences) == 0 {
		return ErrNoTaggerData
	}
	if epochs <= 0 {
		epochs = 10
	}

	tagSet := map[string]bool{outsideTag: true}
	for _, s := range sentences {
		if len(s.Tokens) != len(s.Tags) {
			return fmt.Errorf("entity: sentence %q has %d tokens but %d tags",
				strings.Join(s.Tokens, " "), len(s.Tokens), len(s.Tags))
		}
		for _, tag := range s.Tags {
			tagSet[tag] = true
		}
	}
	t.tags = t.tags[:0]
	for tag := range tagSet {
		t.tags = append(t.tags, tag)
	}

	t.weights = make(map[string]map[string]float64)
	totals := make(map[string]map[string]float64)
	stamps := make(map[string]map[string]int)
	step := 0

	update := func(f, tag string, delta float64) {
		if t.weights[f] == nil {
			t.weights[f] = make(map[string]float64)
			totals[f] = make(map[string]float64)
			stamps[f] = make(map[string]int)
		}
		totals[f][tag] += float64(step-stamps[f][tag]) * t.weights[f][tag]
		stamps[f][tag] = step
		t.weights[f][tag] += delta
	}

	rng := rand.New(rand.NewSource(1))
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, si := range order {
			s := sentences[si]
			prevTag := outsideTag
			for i := range s.Tokens {
				step++
				fs := features(s.Tokens, i, prevTag)
				guess := t.predictTag(fs)
				if guess != s.Tags[i] {
					for _, f := range fs {
						update(f, s.Tags[i], 1)
						update(f, guess, -1)
					}
				}
				prevTag = s.Tags[i]
			}
		}
	}

	// Average the weights over all update steps.
	for f, tags := range t.weights {
		for tag, w := range tags {
			total := totals[f][tag] + float64(step-stamps[f][tag])*w
			t.weights[f][tag] = total / float64(step)
		}
	}

	t.trained = true
	return nil
}

// Tag runs greedy BIO decoding over text and returns the labeled spans.
func (t *PerceptronTagger) Tag(text string) ([]Span, error) {
	if !t.trained {
		return nil, ErrTaggerNotTrained
	}

	tokens := tokenizeWords(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	tags := make([]string, len(tokens))
	prevTag := outsideTag
	for i := range tokens {
		tags[i] = t.predictTag(features(tokens, i, prevTag))
		prevTag = tags[i]
	}

	return spansFromBIO(tokens, tags), nil
}

// spansFromBIO groups consecutive same-label BIO tags into spans. An I-
// tag without a preceding same-label tag opens a new span.
func spansFromBIO(tokens, tags []string) []Span {
	var spans []Span
	var cur *Span
	var curLabel string

	flush := func() {
		if cur != nil {
			spans = append(spans, *cur)
			cur = nil
			curLabel = ""
		}
	}

	for i, tag := range tags {
		if tag == outsideTag || len(tag) < 3 {
			flush()
			continue
		}
		prefix, label := tag[:2], tag[2:]
		if prefix == "I-" && cur != nil && curLabel == label {
			cur.Text += " " + tokens[i]
			continue
		}
		flush()
		cur = &Span{Label: Label(label), Text: tokens[i]}
		curLabel = label
	}
	flush()
	return spans
}

// SpanMetrics is a span-level precision/recall report.
type SpanMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Gold      int     `json:"gold"`
	Predicted int     `json:"predicted"`
}

// Evaluate scores the tagger span-for-span against a labeled set. A span
// counts as correct only when label and text both match.
func (t *PerceptronTagger) Evaluate(sentences []TaggedSentence) (SpanMetrics, error) {
	if !t.trained {
		return SpanMetrics{}, ErrTaggerNotTrained
	}
	if len(sentences) == 0 {
		return SpanMetrics{}, ErrNoTaggerData
	}

	var m SpanMetrics
	correct := 0
	for _, s := range sentences {
		gold := spansFromBIO(s.Tokens, s.Tags)
		pred, err := t.Tag(strings.Join(s.Tokens, " "))
		if err != nil {
			return SpanMetrics{}, err
		}
		m.Gold += len(gold)
		m.Predicted += len(pred)

		used := make([]bool, len(gold))
		for _, p := range pred {
			for gi, g := range gold {
				if !used[gi] && g.Label == p.Label && strings.EqualFold(g.Text, p.Text) {
					used[gi] = true
					correct++
					break
				}
			}
		}
	}

	if m.Predicted > 0 {
		m.Precision = float64(correct) / float64(m.Predicted)
	}
	if m.Gold > 0 {
		m.Recall = float64(correct) / float64(m.Gold)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m, nil
}

type taggerFile struct {
	Weights map[string]map[string]float64 `json:"weights"`
	Tags    []string                      `json:"tags"`
}

// Save writes the trained tagger to path as JSON.
func (t *PerceptronTagger) Save(path string) error {
	if !t.trained {
		return ErrTaggerNotTrained
	}
	data, err := json.Marshal(taggerFile{Weights: t.weights, Tags: t.tags})
	if err != nil {
		return fmt.Errorf("encoding entity tagger: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing entity tagger: %w", err)
	}
	return nil
}

// Load replaces the tagger state with the artifact at path.
func (t *PerceptronTagger) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading entity tagger: %w", err)
	}
	var file taggerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decoding entity tagger: %w", err)
	}
	if len(file.Tags) == 0 || len(file.Weights) == 0 {
		return fmt.Errorf("decoding entity tagger: empty artifact %q", path)
	}
	t.weights = file.Weights
	t.tags = file.Tags
	t.trained = true
	return nil
}
