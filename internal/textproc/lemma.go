package textproc

import (
	"strings"
	"unicode"
)

// lemmaExceptions maps inflected forms to their dictionary base form for
// words the suffix rules get wrong. Mostly high-frequency scheduling
// vocabulary and irregular nouns.
var lemmaExceptions = map[string]string{
	"встречу":      "встреча",
	"встречи":      "встреча",
	"встрече":      "встреча",
	"встречей":     "встреча",
	"событие":      "событие",
	"события":      "событие",
	"событий":      "событие",
	"мероприятие":  "мероприятие",
	"мероприятия":  "мероприятие",
	"презентацию":  "презентация",
	"презентации":  "презентация",
	"напоминание":  "напоминание",
	"напоминания":  "напоминание",
	"собрание":     "собрание",
	"собрания":     "собрание",
	"врача":        "врач",
	"врачу":        "врач",
	"враче":        "врач",
	"доктора":      "доктор",
	"доктору":      "доктор",
	"докторе":      "доктор",
	"офисе":        "офис",
	"офиса":        "офис",
	"работе":       "работа",
	"работу":       "работа",
	"доме":         "дом",
	"дома":         "дом",
	"поликлинике":  "поликлиника",
	"поликлинику":  "поликлиника",
	"понедельника": "понедельник",
	"вторника":     "вторник",
	"среду":        "среда",
	"среды":        "среда",
	"четверга":     "четверг",
	"пятницу":      "пятница",
	"пятницы":      "пятница",
	"субботу":      "суббота",
	"субботы":      "суббота",
	"воскресенье":  "воскресенье",
	"дела":         "дело",
	"делами":       "дело",
	"планы":        "план",
	"планов":       "план",
}

// suffixRule rewrites a word ending to the base-form ending.
type suffixRule struct {
	from string
	to   string
}

// suffixRules are tried in order; the first matching suffix wins. The table
// covers the frequent Russian noun declension endings. This is a shallow
// stand-in for a full morphological analyzer: wrong guesses are acceptable
// because lemmatization here is a best-effort display normalization.
var suffixRules = []suffixRule{
	{"иями", "ия"},
	{"иях", "ия"},
	{"иям", "ия"},
	{"ией", "ия"},
	{"ием", "ие"},
	{"ии", "ия"},
	{"ию", "ия"},
	{"ьями", "ья"},
	{"ьях", "ья"},
	{"ами", "а"},
	{"ями", "я"},
	{"ах", "а"},
	{"ях", "я"},
	{"ом", ""},
	{"ем", "й"},
	{"ей", "я"},
	{"ой", "а"},
	{"ую", "ая"},
	{"ого", "ый"},
	{"его", "ий"},
	{"ым", "ый"},
	{"им", "ий"},
	{"у", "а"},
	{"ю", "я"},
	{"ы", "а"},
}

// Lemmatize maps a single Russian token to its dictionary base form. The
// analyzer is best-effort: tokens it cannot analyze (numbers, short words,
// non-Cyrillic input) come back unchanged, never as an error.
func (p *Processor) Lemmatize(word string) string {
	if word == "" {
		return word
	}

	lower := strings.ToLower(strings.TrimSpace(word))
	if lower == "" || !isCyrillic(lower) {
		return word
	}

	if base, ok := lemmaExceptions[lower]; ok {
		return base
	}

	runes := []rune(lower)
	if len(runes) <= 3 {
		return lower
	}

	for _, rule := range suffixRules {
		if !strings.HasSuffix(lower, rule.from) {
			continue
		}
		stem := string(runes[:len(runes)-len([]rune(rule.from))])
		// Do not reduce a word to a stem that is too short to be a noun.
		if len([]rune(stem)) < 3 {
			break
		}
		return stem + rule.to
	}

	return lower
}

// LemmatizePhrase lemmatizes each whitespace-separated word of a phrase.
func (p *Processor) LemmatizePhrase(phrase string) string {
	fields := strings.Fields(phrase)
	for i, f := range fields {
		fields[i] = p.Lemmatize(f)
	}
	return strings.Join(fields, " ")
}

func isCyrillic(s string) bool {
	for _, r := range s {
		if !unicode.Is(unicode.Cyrillic, r) && r != '-' {
			return false
		}
	}
	return true
}
