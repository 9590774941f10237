package dataset

import (
	"context"
	"fmt"

	"github.com/sergeylevashov/schedy/internal/entity"
	"github.com/sergeylevashov/schedy/internal/intent"
)

// SampleIntentExamples is a small starter corpus for the intent
// classifier, enough to bootstrap a usable model before real usage data
// accumulates.
func SampleIntentExamples() []intent.Example {
	return []intent.Example{
		{Text: "Поставь мне встречу с Кириллом на завтра в 10", Label: intent.AddEvent},
		{Text: "Добавь в календарь встречу c Андреем на 12 июня", Label: intent.AddEvent},
		{Text: "Запланируй презентацию на понедельник в 14:30", Label: intent.AddEvent},
		{Text: "Создай напоминание о докторе на среду в 9 утра", Label: intent.AddEvent},
		{Text: "Давай занесем событие на пятницу вечером", Label: intent.AddEvent},
		{Text: "Назначь собрание команды на четверг", Label: intent.AddEvent},

		{Text: "Отмени встречу на завтра", Label: intent.DeleteEvent},
		{Text: "Удали событие в пятницу", Label: intent.DeleteEvent},
		{Text: "Убери напоминание о докторе", Label: intent.DeleteEvent},
		{Text: "Сотри запись о собрании", Label: intent.DeleteEvent},

		{Text: "Перенеси встречу на час позже", Label: intent.MoveEvent},
		{Text: "Измени время презентации на 15:00", Label: intent.MoveEvent},
		{Text: "Сдвинь событие на завтра", Label: intent.MoveEvent},
		{Text: "Перепланируй собрание на среду", Label: intent.MoveEvent},

		{Text: "Что у меня на завтра", Label: intent.CheckEvents},
		{Text: "Покажи мое расписание на неделю", Label: intent.CheckEvents},
		{Text: "Какие у меня планы на пятницу", Label: intent.CheckEvents},
		{Text: "Покажи события на сегодня", Label: intent.CheckEvents},
	}
}

// sampleSentence pairs a sentence with its rune-offset spans.
type sampleSentence struct {
	text  string
	spans []entity.OffsetSpan
}

func sampleEntitySentences() []sampleSentence {
	return []sampleSentence{
		{
			text: "Поставь встречу с Кириллом на завтра в 10 утра",
			spans: []entity.OffsetSpan{
				{Start: 18, End: 26, Label: entity.Person},
				{Start: 30, End: 36, Label: entity.Date},
				{Start: 39, End: 46, Label: entity.Time},
			},
		},
		{
			text: "Добавь презентацию на понедельник в 14:30",
			spans: []entity.OffsetSpan{
				{Start: 7, End: 18, Label: entity.Event},
				{Start: 22, End: 33, Label: entity.Date},
				{Start: 36, End: 41, Label: entity.Time},
			},
		},
		{
			text: "Создай напоминание о враче на среду в 9 утра в поликлинике",
			spans: []entity.OffsetSpan{
				{Start: 21, End: 26, Label: entity.Event},
				{Start: 30, End: 35, Label: entity.Date},
				{Start: 38, End: 44, Label: entity.Time},
				{Start: 47, End: 58, Label: entity.Location},
			},
		},
		{
			text: "Запланируй созвон с Анной на вторник в 11:00",
			spans: []entity.OffsetSpan{
				{Start: 11, End: 17, Label: entity.Event},
				{Start: 20, End: 25, Label: entity.Person},
				{Start: 29, End: 36, Label: entity.Date},
				{Start: 39, End: 44, Label: entity.Time},
			},
		},
		{
			text: "Отмени обед с Борисом в пятницу",
			spans: []entity.OffsetSpan{
				{Start: 7, End: 11, Label: entity.Event},
				{Start: 14, End: 21, Label: entity.Person},
				{Start: 24, End: 31, Label: entity.Date},
			},
		},
	}
}

// SampleEntitySentences returns the starter corpus for the entity tagger
// in BIO-tagged form.
func SampleEntitySentences() []entity.TaggedSentence {
	samples := sampleEntitySentences()
	out := make([]entity.TaggedSentence, len(samples))
	for i, s := range samples {
		out[i] = entity.NewTaggedSentence(s.text, s.spans)
	}
	return out
}

// Seed inserts the sample corpora into the store. Existing rows are left
// alone, so seeding is idempotent.
func (s *Store) Seed(ctx context.Context) error {
	for _, ex := range SampleIntentExamples() {
		if err := s.AddIntentExample(ctx, ex.Text, ex.Label); err != nil {
			return fmt.Errorf("seeding intent examples: %w", err)
		}
	}
	for _, sent := range sampleEntitySentences() {
		if err := s.AddEntitySentence(ctx, sent.text, sent.spans); err != nil {
			return fmt.Errorf("seeding entity sentences: %w", err)
		}
	}
	return nil
}
