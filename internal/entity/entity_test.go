package entity

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sergeylevashov/schedy/internal/textproc"
)

type stubTagger struct {
	spans []Span
	err   error
}

func (s *stubTagger) Tag(string) ([]Span, error) { return s.spans, s.err }

func newTestExtractor(opts ...Option) *Extractor {
	return NewExtractor(textproc.NewProcessor(), opts...)
}

func TestExtractWithPatterns(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name      string
		text      string
		wantRaw   Set
		wantClean Set
	}{
		{
			"meeting with person",
			"Поставь встречу с Кириллом на завтра в 10 утра",
			Set{Person: "Кириллом", Time: "10 утра", Date: "завтра"},
			Set{Person: "Кирилл", Time: "10 утра", Date: "завтра"},
		},
		{
			"named event",
			"Добавь событие тренировка на вечер",
			Set{Event: "тренировка"},
			Set{Event: "Тренировка"},
		},
		{
			"daypart keyword",
			"Добавь встречу вечером",
			Set{Time: "вечером"},
			Set{Time: "вечером"},
		},
		{
			"duration",
			"Запланируй звонок на 30 минут",
			Set{Event: "звонок", Duration: "30 минут"},
			Set{Event: "Звонок", Duration: "30 минут"},
		},
		{
			"empty", "", Set{}, Set{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := e.Extract(tt.text)
			for label, want := range tt.wantRaw {
				if raw[label] != want {
					t.Fatalf("Extract(%q)[%s] = %q, want raw %q (full: %v)", tt.text, label, raw[label], want, raw)
				}
			}
			clean := e.Postprocess(raw)
			for label, want := range tt.wantClean {
				if clean[label] != want {
					t.Fatalf("Postprocess(%q)[%s] = %q, want %q (full: %v)", tt.text, label, clean[label], want, clean)
				}
			}
			if len(tt.wantRaw) == 0 && len(raw) != 0 {
				t.Fatalf("Extract(%q) = %v, want empty", tt.text, raw)
			}
		})
	}
}

func TestPostprocessKeepsRawUntouched(t *testing.T) {
	e := newTestExtractor()

	raw := e.Extract("Поставь встречу с Кириллом на завтра")
	if raw[Person] != "Кириллом" {
		t.Fatalf("raw PERSON = %q, want surface form %q", raw[Person], "Кириллом")
	}

	clean := e.Postprocess(raw)
	if clean[Person] != "Кирилл" {
		t.Fatalf("clean PERSON = %q, want %q", clean[Person], "Кирилл")
	}
	if raw[Person] != "Кириллом" {
		t.Fatalf("Postprocess mutated the raw map: PERSON = %q", raw[Person])
	}
}

func TestExtractGenericEventFiltered(t *testing.T) {
	e := newTestExtractor()

	got := e.Postprocess(e.Extract("Поставь встречу с Кириллом на завтра в 10 утра"))
	if _, ok := got[Event]; ok {
		t.Fatalf("generic event capture should be dropped, got EVENT=%q", got[Event])
	}
	if got[Person] != "Кирилл" {
		t.Fatalf("PERSON = %q, want %q", got[Person], "Кирилл")
	}
}

func TestExtractLocation(t *testing.T) {
	e := newTestExtractor()

	got := e.Postprocess(e.Extract("Запиши прием в поликлинике на пятницу"))
	if got[Location] != "Поликлиника" {
		t.Fatalf("LOCATION = %q, want %q (full: %v)", got[Location], "Поликлиника", got)
	}
	if got[Date] != "пятницу" {
		t.Fatalf("DATE = %q, want %q", got[Date], "пятницу")
	}
}

func TestExtractModelValuesWin(t *testing.T) {
	tagger := &stubTagger{spans: []Span{
		{Person, "Анна"},
		{Person, "Борис"},
	}}
	e := newTestExtractor(WithTagger(tagger))

	got := e.Postprocess(e.Extract("Поставь встречу с Кириллом на завтра"))
	if got[Person] != "Анна" {
		t.Fatalf("PERSON = %q, want model value %q kept over later spans and patterns", got[Person], "Анна")
	}
}

func TestExtractTaggerFailureDegradesToPatterns(t *testing.T) {
	tagger := &stubTagger{err: errors.New("model unavailable")}
	e := newTestExtractor(WithTagger(tagger))

	got := e.Postprocess(e.Extract("Поставь встречу с Кириллом на завтра"))
	if got[Person] != "Кирилл" {
		t.Fatalf("PERSON = %q, want pattern fallback %q", got[Person], "Кирилл")
	}
}

func TestNewTaggedSentence(t *testing.T) {
	sent := NewTaggedSentence("встреча с Кириллом", []OffsetSpan{{10, 18, Person}})

	wantTokens := []string{"встреча", "с", "Кириллом"}
	wantTags := []string{"O", "O", "B-PERSON"}
	if len(sent.Tokens) != len(wantTokens) {
		t.Fatalf("tokens = %v, want %v", sent.Tokens, wantTokens)
	}
	for i := range wantTokens {
		if sent.Tokens[i] != wantTokens[i] || sent.Tags[i] != wantTags[i] {
			t.Fatalf("token %d = %s/%s, want %s/%s", i, sent.Tokens[i], sent.Tags[i], wantTokens[i], wantTags[i])
		}
	}
}

func TestTokenizeKeepsClockTokens(t *testing.T) {
	got := tokenizeWords("встреча в 10:30, дата 12.06")
	want := []string{"встреча", "в", "10:30", "дата", "12.06"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func taggerCorpus() []TaggedSentence {
	return []TaggedSentence{
		{Tokens: []string{"встреча", "с", "Кириллом", "завтра"}, Tags: []string{"O", "O", "B-PERSON", "B-DATE"}},
		{Tokens: []string{"созвон", "с", "Анной", "в", "10:30"}, Tags: []string{"O", "O", "B-PERSON", "O", "B-TIME"}},
		{Tokens: []string{"обед", "с", "Борисом", "сегодня"}, Tags: []string{"O", "O", "B-PERSON", "B-DATE"}},
		{Tokens: []string{"удали", "встречу", "с", "Кириллом"}, Tags: []string{"O", "O", "O", "B-PERSON"}},
		{Tokens: []string{"покажи", "планы", "на", "завтра"}, Tags: []string{"O", "O", "O", "B-DATE"}},
		{Tokens: []string{"звонок", "в", "15:00", "сегодня"}, Tags: []string{"O", "O", "B-TIME", "B-DATE"}},
	}
}

func TestPerceptronTagger(t *testing.T) {
	tagger := NewPerceptronTagger()

	if _, err := tagger.Tag("встреча с Кириллом"); !errors.Is(err, ErrTaggerNotTrained) {
		t.Fatalf("Tag before Train = %v, want ErrTaggerNotTrained", err)
	}
	if err := tagger.Train(nil, 10); !errors.Is(err, ErrNoTaggerData) {
		t.Fatalf("Train(nil) = %v, want ErrNoTaggerData", err)
	}

	if err := tagger.Train(taggerCorpus(), 10); err != nil {
		t.Fatalf("Train: %v", err)
	}

	spans, err := tagger.Tag("встреча с Кириллом завтра")
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	byLabel := make(map[Label]string)
	for _, s := range spans {
		if _, ok := byLabel[s.Label]; !ok {
			byLabel[s.Label] = s.Text
		}
	}
	if byLabel[Person] != "Кириллом" {
		t.Fatalf("tagged PERSON = %q (spans %v), want %q", byLabel[Person], spans, "Кириллом")
	}
	if byLabel[Date] != "завтра" {
		t.Fatalf("tagged DATE = %q (spans %v), want %q", byLabel[Date], spans, "завтра")
	}
}

func TestPerceptronEvaluate(t *testing.T) {
	tagger := NewPerceptronTagger()
	if _, err := tagger.Evaluate(taggerCorpus()); !errors.Is(err, ErrTaggerNotTrained) {
		t.Fatalf("Evaluate before Train = %v, want ErrTaggerNotTrained", err)
	}

	if err := tagger.Train(taggerCorpus(), 10); err != nil {
		t.Fatalf("Train: %v", err)
	}
	m, err := tagger.Evaluate(taggerCorpus())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Gold == 0 {
		t.Fatal("evaluation saw no gold spans")
	}
	if m.Recall < 0.5 {
		t.Fatalf("training-set recall = %.3f, want >= 0.5", m.Recall)
	}
}

func TestPerceptronSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagger.json")

	tagger := NewPerceptronTagger()
	if err := tagger.Save(path); !errors.Is(err, ErrTaggerNotTrained) {
		t.Fatalf("Save before Train = %v, want ErrTaggerNotTrained", err)
	}
	if err := tagger.Train(taggerCorpus(), 10); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if err := tagger.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := NewPerceptronTagger()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	orig, err := tagger.Tag("встреча с Кириллом завтра")
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	got, err := loaded.Tag("встреча с Кириллом завтра")
	if err != nil {
		t.Fatalf("loaded Tag: %v", err)
	}
	if len(got) != len(orig) {
		t.Fatalf("loaded tagger spans = %v, original %v", got, orig)
	}
	for i := range got {
		if got[i] != orig[i] {
			t.Fatalf("span %d = %+v, original %+v", i, got[i], orig[i])
		}
	}
}

func TestSpansFromBIO(t *testing.T) {
	tokens := []string{"встреча", "с", "Анной", "Петровой", "завтра"}
	tags := []string{"O", "O", "B-PERSON", "I-PERSON", "B-DATE"}

	spans := spansFromBIO(tokens, tags)
	if len(spans) != 2 {
		t.Fatalf("spans = %v, want 2", spans)
	}
	if spans[0].Label != Person || spans[0].Text != "Анной Петровой" {
		t.Fatalf("span 0 = %+v", spans[0])
	}
	if spans[1].Label != Date || spans[1].Text != "завтра" {
		t.Fatalf("span 1 = %+v", spans[1])
	}
}
