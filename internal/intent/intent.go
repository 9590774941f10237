// Package intent classifies Russian scheduling requests into calendar
// intents.
//
// Two classifiers are provided. RuleClassifier matches keyword tables and
// needs no training. ModelClassifier is a TF-IDF linear model trained on
// labeled examples; it refuses low-margin predictions and reports UNKNOWN
// instead of guessing.
package intent

import (
	"errors"
	"strings"
)

// Intent is a recognized calendar operation.
type Intent string

const (
	AddEvent    Intent = "ADD_EVENT"
	DeleteEvent Intent = "DELETE_EVENT"
	MoveEvent   Intent = "MOVE_EVENT"
	CheckEvents Intent = "CHECK_EVENTS"
	Unknown     Intent = "UNKNOWN"
)

// Intents lists every known intent except Unknown, in rule priority order.
var Intents = []Intent{AddEvent, DeleteEvent, MoveEvent, CheckEvents}

var (
	// ErrNotTrained is returned when a model operation requires a trained
	// model (save, evaluate, classify through a model-only path).
	ErrNotTrained = errors.New("intent: model is not trained")

	// ErrNoTrainingData is returned by Train when no usable labeled
	// examples remain after filtering.
	ErrNoTrainingData = errors.New("intent: no usable training examples")
)

// Classification is one classifier verdict.
type Classification struct {
	Intent Intent
	// Confidence is 1.0 for rule hits and the decision margin for model
	// predictions. For Unknown it carries the best rejected margin.
	Confidence float64
	// Source names the classifier that produced the verdict.
	Source string
}

// Classifier assigns an intent to normalized text.
type Classifier interface {
	Classify(text string) Classification
}

// Example is one labeled training or evaluation sample.
type Example struct {
	Text  string
	Label Intent
}

// intentKeywords holds the keyword tables in priority order. Within a
// table, order is irrelevant; across tables the first table that matches
// wins, so "перенеси" in a text that also says "покажи" resolves to
// MOVE_EVENT only if no add or delete keyword occurred earlier in the
// priority order.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{AddEvent, []string{"добавь", "создай", "поставь", "запланируй", "занеси", "назначь"}},
	{DeleteEvent, []string{"удали", "отмени", "убери", "сотри"}},
	{MoveEvent, []string{"перенеси", "измени", "сдвинь", "перепланируй"}},
	{CheckEvents, []string{"покажи", "что у меня", "расписание", "планы", "события"}},
}

// RuleClassifier matches intent keyword tables against lowered text.
// It is stateless and safe for concurrent use.
type RuleClassifier struct{}

// NewRuleClassifier returns the keyword-table classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify returns the first intent whose keyword table matches a
// substring of the lowered text, or Unknown when none does.
func (c *RuleClassifier) Classify(text string) Classification {
	lower := strings.ToLower(text)
	for _, entry := range intentKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return Classification{Intent: entry.intent, Confidence: 1.0, Source: "rules"}
			}
		}
	}
	return Classification{Intent: Unknown, Source: "rules"}
}

// AutoLabel labels raw texts with the rule classifier and drops texts the
// rules cannot label. It is the bootstrap path for model training when no
// hand-labeled corpus exists.
func AutoLabel(texts []string) []Example {
	rules := NewRuleClassifier()
	out := make([]Example, 0, len(texts))
	for _, t := range texts {
		c := rules.Classify(t)
		if c.Intent == Unknown {
			continue
		}
		out = append(out, Example{Text: t, Label: c.Intent})
	}
	return out
}
