// Package entity extracts typed entities (people, times, dates, events,
// locations, durations) from Russian scheduling text.
//
// Extraction merges two sources. A SpanTagger (a trained model) proposes
// labeled spans first; deterministic regex patterns fill in labels the
// model missed. A model-produced value is never overwritten by a pattern,
// and within one source the first span per label wins. Extract returns
// the raw surface forms; Postprocess derives the cleaned, lemmatized
// values from them. Callers keep both maps.
package entity

import (
	"log/slog"
	"strings"

	"github.com/sergeylevashov/schedy/internal/textproc"
)

// Label is an entity category.
type Label string

const (
	Person   Label = "PERSON"
	Time     Label = "TIME"
	Date     Label = "DATE"
	Event    Label = "EVENT"
	Location Label = "LOCATION"
	Duration Label = "DURATION"

	// EventName is produced only by taggers trained on corpora that
	// distinguish explicit event titles from generic event mentions.
	EventName Label = "EVENT_NAME"
)

// Span is one labeled text span proposed by a tagger.
type Span struct {
	Label Label
	Text  string
}

// SpanTagger proposes labeled spans for a text. Implementations include
// the trainable averaged-perceptron tagger and the ONNX transformer
// tagger; a failing tagger degrades extraction to pattern matching only.
type SpanTagger interface {
	Tag(text string) ([]Span, error)
}

// Set maps each extracted label to one value. Extract produces a Set of
// raw surface forms; Postprocess produces a Set of cleaned values.
type Set map[Label]string

// Extractor merges tagger output with pattern fallbacks and normalizes
// the resulting values.
type Extractor struct {
	tagger SpanTagger
	proc   *textproc.Processor
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTagger installs a model tagger. Without one the extractor runs on
// patterns alone.
func WithTagger(t SpanTagger) Option {
	return func(e *Extractor) { e.tagger = t }
}

// WithLogger overrides the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor creates an extractor backed by the given text processor.
func NewExtractor(proc *textproc.Processor, opts ...Option) *Extractor {
	if proc == nil {
		proc = textproc.NewProcessor()
	}
	e := &Extractor{
		proc:   proc,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the raw entities of text, in their surface form. It
// never fails: a tagger error is logged and extraction continues with
// patterns only.
func (e *Extractor) Extract(text string) Set {
	out := make(Set)
	if strings.TrimSpace(text) == "" {
		return out
	}

	if e.tagger != nil {
		spans, err := e.tagger.Tag(text)
		if err != nil {
			e.logger.Warn("entity tagger failed, falling back to patterns", "error", err)
		}
		for _, span := range spans {
			e.add(out, span.Label, span.Text)
		}
	}

	for _, span := range matchPatterns(text) {
		e.add(out, span.Label, span.Text)
	}

	return out
}

// add records the raw surface form for a label unless the label is
// already present.
func (e *Extractor) add(out Set, label Label, raw string) {
	if _, exists := out[label]; exists {
		return
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	out[label] = raw
}

// Postprocess derives the cleaned values from a raw extraction. Values
// that cleanup reduces to nothing are dropped. The input map is left
// untouched.
func (e *Extractor) Postprocess(raw Set) Set {
	out := make(Set, len(raw))
	for label, value := range raw {
		if v := e.normalize(label, value); v != "" {
			out[label] = v
		}
	}
	return out
}

// normalize applies label-specific cleanup and casing to a raw span:
// every word is lemmatized; person and location values are capitalized
// per word, event values at the phrase start only, everything else stays
// lowercase.
func (e *Extractor) normalize(label Label, raw string) string {
	cleaned := e.proc.CleanEntityText(raw, string(label))
	if cleaned == "" {
		return ""
	}

	switch label {
	case Time, Date, Duration:
		// Temporal values keep their surface form; lemmatizing "10:30"
		// or "завтра" would be a no-op at best.
		return strings.ToLower(cleaned)
	case Person, Location:
		return textproc.TitleCase(e.proc.LemmatizePhrase(cleaned))
	case Event, EventName:
		return textproc.Capitalize(e.proc.LemmatizePhrase(cleaned))
	default:
		return strings.ToLower(e.proc.LemmatizePhrase(cleaned))
	}
}
