// Package pipeline orchestrates the interpretation stages: normalize the
// text, then resolve temporal expressions, classify the intent, and
// extract entities concurrently, and finally assemble an event draft.
//
// The orchestrator is total: stage panics and errors are captured into
// per-stage outcome records and an unsuccessful result. Callers never see
// a panic.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sergeylevashov/schedy/internal/assemble"
	"github.com/sergeylevashov/schedy/internal/calendar"
	"github.com/sergeylevashov/schedy/internal/entity"
	"github.com/sergeylevashov/schedy/internal/intent"
	"github.com/sergeylevashov/schedy/internal/temporal"
	"github.com/sergeylevashov/schedy/internal/textproc"
)

// Stage names in execution order.
const (
	StageNormalize = "normalize"
	StageTemporal  = "temporal"
	StageIntent    = "intent"
	StageEntities  = "entities"
	StageAssemble  = "assemble"
	StageCalendar  = "calendar"
)

// Stage records the outcome of one pipeline stage.
type Stage struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	// Degraded marks a stage that produced partial or fallback output.
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// TemporalInfo is the wire form of a resolved temporal result.
type TemporalInfo struct {
	Date       string     `json:"date,omitempty"`
	AllDay     bool       `json:"all_day,omitempty"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
	Recurrence string     `json:"recurrence,omitempty"`
	Matched    []string   `json:"matched,omitempty"`
}

func newTemporalInfo(tr temporal.Result) *TemporalInfo {
	if !tr.HasTimeInfo() && tr.Recurrence == "" && len(tr.Matched) == 0 {
		return nil
	}
	info := &TemporalInfo{
		AllDay:     tr.AllDay(),
		Start:      tr.Start,
		End:        tr.End,
		Recurrence: tr.Recurrence,
		Matched:    tr.Matched,
	}
	if tr.HasDate {
		info.Date = tr.Date.Format("2006-01-02")
	}
	return info
}

// Result is one interpretation outcome. RawEntities carries the surface
// forms as extracted; Entities the post-processed values.
type Result struct {
	RequestID    string                `json:"request_id"`
	OriginalText string                `json:"original_text"`
	CleanedText  string                `json:"cleaned_text"`
	Intent       intent.Classification `json:"intent"`
	RawEntities  entity.Set            `json:"raw_entities"`
	Entities     entity.Set            `json:"entities"`
	Temporal     temporal.Result       `json:"-"`
	TemporalInfo *TemporalInfo         `json:"temporal,omitempty"`
	Draft        *assemble.Draft       `json:"draft,omitempty"`

	// Message carries a user-facing clarification, e.g. the missing-time
	// prompt for an ADD_EVENT without any time anchor.
	Message string  `json:"message,omitempty"`
	Stages  []Stage `json:"stages"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`

	Elapsed time.Duration `json:"elapsed"`

	// Set by InterpretAndCreate.
	Event           *calendar.Event `json:"event,omitempty"`
	CalendarCreated bool            `json:"calendar_created"`
}

// Pipeline wires the interpretation stages together.
type Pipeline struct {
	proc       *textproc.Processor
	resolver   *temporal.Resolver
	classifier intent.Classifier
	extractor  *entity.Extractor
	assembler  *assemble.Assembler
	cal        calendar.Client

	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProcessor replaces the text processor.
func WithProcessor(p *textproc.Processor) Option {
	return func(pl *Pipeline) {
		if p != nil {
			pl.proc = p
		}
	}
}

// WithResolver replaces the temporal resolver.
func WithResolver(r *temporal.Resolver) Option {
	return func(pl *Pipeline) {
		if r != nil {
			pl.resolver = r
		}
	}
}

// WithClassifier replaces the intent classifier.
func WithClassifier(c intent.Classifier) Option {
	return func(pl *Pipeline) {
		if c != nil {
			pl.classifier = c
		}
	}
}

// WithExtractor replaces the entity extractor.
func WithExtractor(e *entity.Extractor) Option {
	return func(pl *Pipeline) {
		if e != nil {
			pl.extractor = e
		}
	}
}

// WithAssembler replaces the event assembler.
func WithAssembler(a *assemble.Assembler) Option {
	return func(pl *Pipeline) {
		if a != nil {
			pl.assembler = a
		}
	}
}

// WithCalendar attaches a calendar backend. Without one the pipeline
// still interprets; only creation and listing are unavailable.
func WithCalendar(c calendar.Client) Option {
	return func(pl *Pipeline) { pl.cal = c }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(pl *Pipeline) {
		if clock != nil {
			pl.clock = clock
		}
	}
}

// WithLogger overrides the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// New creates a pipeline with rule-based classification and pattern-only
// entity extraction unless options install trained components.
func New(loc *time.Location, opts ...Option) *Pipeline {
	if loc == nil {
		loc = time.Local
	}
	proc := textproc.NewProcessor()
	pl := &Pipeline{
		proc:       proc,
		resolver:   temporal.NewResolver(loc, nil),
		classifier: intent.NewRuleClassifier(),
		extractor:  entity.NewExtractor(proc),
		assembler:  assemble.NewAssembler(loc),
		clock:      time.Now,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Interpret runs the full pipeline over text. It always returns a
// result; failures are recorded in Stages, Error, and Success.
func (pl *Pipeline) Interpret(ctx context.Context, text string) *Result {
	started := pl.clock()
	result := &Result{
		RequestID:    uuid.NewString(),
		OriginalText: text,
		RawEntities:  entity.Set{},
		Entities:     entity.Set{},
	}
	defer func() {
		result.Elapsed = pl.clock().Sub(started)
		if r := recover(); r != nil {
			pl.logger.Error("pipeline panic", "request_id", result.RequestID, "panic", r)
			result.Success = false
			result.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	cleaned, ok := pl.normalize(result, text)
	if !ok {
		return result
	}
	result.CleanedText = cleaned

	pl.analyze(result, cleaned)

	pl.runStage(result, StageAssemble, func() {
		result.Draft = pl.assembler.Build(result.Intent.Intent, result.Entities, result.Temporal, cleaned)
	})

	if result.Intent.Intent == intent.AddEvent {
		result.Message = assemble.MissingTimeMessage(result.Temporal)
	}

	result.Success = result.Error == ""
	pl.logger.Info("interpreted text",
		"request_id", result.RequestID,
		"intent", result.Intent.Intent,
		"entities", len(result.Entities),
		"success", result.Success)
	return result
}

// normalize runs the first stage; an empty normalized text aborts the
// pipeline.
func (pl *Pipeline) normalize(result *Result, text string) (string, bool) {
	var cleaned string
	pl.runStage(result, StageNormalize, func() {
		cleaned = pl.proc.Normalize(text)
	})
	if cleaned == "" {
		result.Error = "empty input text"
		result.Stages[len(result.Stages)-1] = Stage{Name: StageNormalize, OK: false, Reason: result.Error}
		return "", false
	}
	return cleaned, true
}

// analyze runs the three independent middle stages concurrently. Each
// writes a disjoint result field; outcomes land in fixed slots so the
// stage order in the report is stable.
func (pl *Pipeline) analyze(result *Result, cleaned string) {
	outcomes := make([]Stage, 3)
	ref := pl.clock()

	var wg sync.WaitGroup
	run := func(slot int, name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					pl.logger.Warn("stage panic", "stage", name, "panic", r)
					outcomes[slot] = Stage{Name: name, OK: false, Degraded: true, Reason: fmt.Sprintf("panic: %v", r)}
				}
			}()
			fn()
			outcomes[slot] = Stage{Name: name, OK: true}
		}()
	}

	run(0, StageTemporal, func() {
		result.Temporal = pl.resolver.Resolve(cleaned, ref)
	})
	run(1, StageIntent, func() {
		prepared := pl.proc.PrepareForClassification(cleaned)
		result.Intent = pl.classifier.Classify(prepared)
	})
	run(2, StageEntities, func() {
		result.RawEntities = pl.extractor.Extract(cleaned)
		result.Entities = pl.extractor.Postprocess(result.RawEntities)
	})
	wg.Wait()

	// A degraded middle stage leaves its field at the zero value; the
	// pipeline still completes with whatever the other stages produced.
	if outcomes[1].Degraded {
		result.Intent = intent.Classification{Intent: intent.Unknown, Source: "none"}
	}
	if outcomes[2].Degraded {
		if result.RawEntities == nil {
			result.RawEntities = entity.Set{}
		}
		if result.Entities == nil {
			result.Entities = entity.Set{}
		}
	}
	result.TemporalInfo = newTemporalInfo(result.Temporal)
	result.Stages = append(result.Stages, outcomes...)
}

// runStage executes fn and records its outcome, converting panics into a
// failed stage record.
func (pl *Pipeline) runStage(result *Result, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			pl.logger.Warn("stage panic", "stage", name, "panic", r)
			result.Stages = append(result.Stages, Stage{Name: name, OK: false, Reason: fmt.Sprintf("panic: %v", r)})
			if result.Error == "" {
				result.Error = fmt.Sprintf("stage %s failed: %v", name, r)
			}
			return
		}
		result.Stages = append(result.Stages, Stage{Name: name, OK: true})
	}()
	fn()
}

// InterpretAndCreate interprets text and, for a successful ADD_EVENT with
// a draft, creates the event in the attached calendar. Calendar failures
// degrade the result instead of failing it: the interpretation stays
// usable.
func (pl *Pipeline) InterpretAndCreate(ctx context.Context, text string) *Result {
	result := pl.Interpret(ctx, text)
	if !result.Success || result.Draft == nil {
		return result
	}
	if pl.cal == nil {
		result.Stages = append(result.Stages, Stage{Name: StageCalendar, OK: false, Degraded: true, Reason: "no calendar configured"})
		return result
	}

	ev, err := pl.cal.CreateEvent(ctx, result.Draft)
	if err != nil {
		pl.logger.Warn("creating calendar event", "request_id", result.RequestID, "error", err)
		result.Stages = append(result.Stages, Stage{Name: StageCalendar, OK: false, Degraded: true, Reason: err.Error()})
		return result
	}
	result.Event = ev
	result.CalendarCreated = true
	result.Stages = append(result.Stages, Stage{Name: StageCalendar, OK: true})
	return result
}

// GetUpcomingEvents lists calendar events from now through the given
// number of days ahead.
func (pl *Pipeline) GetUpcomingEvents(ctx context.Context, days int) ([]calendar.Event, error) {
	if pl.cal == nil {
		return nil, fmt.Errorf("pipeline: no calendar configured")
	}
	if days <= 0 {
		days = 7
	}
	now := pl.clock()
	return pl.cal.ListEvents(ctx, now, now.AddDate(0, 0, days))
}
