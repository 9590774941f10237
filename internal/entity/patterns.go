package entity

import (
	"regexp"
	"strings"
)

// Pattern fallbacks. Each label has an ordered list of expressions; the
// first hit per label produces at most one span. Person and location
// patterns run against the original-case text because capitalization is
// the signal; the rest run lowered.
var (
	personREs = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|\s)(?:[Вв]месте с|[Сс]о|[Сс])\s+([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+)?)`),
		regexp.MustCompile(`(?:^|\s)(?:[Кк]о|[Кк])\s+([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+)?)`),
	}

	timeREs = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}:\d{2}`),
		regexp.MustCompile(`\d{1,2}\s*час(?:а|ов)?(?:\s+\d{2})?`),
		regexp.MustCompile(`\d{1,2}\s*(?:утра|дня|вечера)`),
		regexp.MustCompile(`утром|днем|днём|вечером|ночью`),
	}

	dateREs = []*regexp.Regexp{
		regexp.MustCompile(`сегодня|послезавтра|завтра|вчера`),
		regexp.MustCompile(`понедельник\w*|вторник\w*|сред[ауы]|четверг\w*|пятниц[ауы]|суббот[ауы]|воскресень\w+`),
		regexp.MustCompile(`\d{1,2}\s+(?:января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря)`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`\d{1,2}[./]\d{1,2}(?:[./]\d{2,4})?`),
	}

	eventREs = []*regexp.Regexp{
		regexp.MustCompile(`(?:встречу|событие|мероприятие|презентацию|собрание)\s+(.+?)(?:\s+(?:на|в|с|со)\s|$)`),
		regexp.MustCompile(`(?:запланируй|добавь|создай|поставь|назначь)\s+(.+?)(?:\s+(?:на|в|с|со)\s|$)`),
	}

	locationREs = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|\s)(?:[Вв]|[Нн]а)\s+(офисе|доме|работе|поликлинике|школе|кафе|ресторане|парке|зале)`),
		regexp.MustCompile(`(?:^|\s)[Вв]\s+([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+)?)`),
		regexp.MustCompile(`(?:адрес|место|по адресу)\s+(.+)$`),
	}

	durationREs = []*regexp.Regexp{
		regexp.MustCompile(`на\s+(\d+\s*(?:минут[уы]?|час(?:а|ов)?))`),
		regexp.MustCompile(`в течение\s+(\d+\s*(?:минут[уы]?|час(?:а|ов)?))`),
	}
)

// genericEventWords are filler nouns that name the event kind, not the
// event itself. A capture consisting of one of them carries no title
// information, so it is dropped and the summary falls back to the person
// template.
var genericEventWords = map[string]bool{
	"встречу":     true,
	"встреча":     true,
	"событие":     true,
	"мероприятие": true,
	"презентацию": true,
	"собрание":    true,
	"напоминание": true,
}

// matchPatterns runs every fallback table over text and returns at most
// one span per label.
func matchPatterns(text string) []Span {
	lower := strings.ToLower(text)
	var spans []Span

	add := func(label Label, value string) {
		value = strings.TrimSpace(value)
		if value != "" {
			spans = append(spans, Span{Label: label, Text: value})
		}
	}

	for _, re := range personREs {
		if m := re.FindStringSubmatch(text); m != nil {
			add(Person, m[1])
			break
		}
	}

	for _, re := range timeREs {
		if m := re.FindString(lower); m != "" {
			add(Time, m)
			break
		}
	}

	for _, re := range dateREs {
		if m := re.FindString(lower); m != "" {
			add(Date, m)
			break
		}
	}

	for _, re := range eventREs {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		capture := strings.TrimSpace(m[1])
		if isGenericEvent(capture) {
			continue
		}
		add(Event, capture)
		break
	}

	for _, re := range locationREs {
		if m := re.FindStringSubmatch(text); m != nil && len([]rune(strings.TrimSpace(m[1]))) > 1 {
			add(Location, m[1])
			break
		}
	}

	for _, re := range durationREs {
		if m := re.FindStringSubmatch(lower); m != nil {
			add(Duration, m[1])
			break
		}
	}

	return spans
}

// isGenericEvent reports whether an event capture carries no usable title:
// a bare filler noun, or a phrase that is really a person reference
// ("с кириллом").
func isGenericEvent(capture string) bool {
	if capture == "" || genericEventWords[capture] {
		return true
	}
	return strings.HasPrefix(capture, "с ") || strings.HasPrefix(capture, "со ")
}
