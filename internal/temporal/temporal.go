// Package temporal resolves Russian natural-language date and time
// expressions into concrete calendar values.
//
// Resolution is layered rule matching, first match wins:
//  1. Relative-day keywords (сегодня, завтра, послезавтра, вчера)
//  2. Weekday names (next occurrence strictly after the reference date)
//  3. "<day> <month-name>" patterns (rolled to next year when already past)
//  4. Generic numeric date forms (DD.MM[.YYYY], YYYY-MM-DD)
//
// Every stage is independent: a stage that fails to match is skipped and
// the partial results of the other stages are preserved.
package temporal

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultDuration is assumed when only a start time is found.
const DefaultDuration = time.Hour

// Clock is a wall-clock time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

// Result aggregates everything resolved from one text.
type Result struct {
	// Date is the resolved calendar date (midnight in the resolver's
	// location). Valid only when HasDate is true.
	Date    time.Time
	HasDate bool

	// Start and End are set together and only when a time was resolved in
	// addition to a date. End is always strictly after Start.
	Start *time.Time
	End   *time.Time

	// Recurrence is an RRULE string such as "RRULE:FREQ=WEEKLY", empty when
	// the text carries no recurrence phrase.
	Recurrence string

	// Matched lists the input substrings consumed during resolution, for
	// diagnostics and for removing temporal noise from the text.
	Matched []string
}

// AllDay reports whether the result names a date without a concrete time.
func (r Result) AllDay() bool {
	return r.HasDate && r.Start == nil
}

// HasTimeInfo reports whether any time anchor was resolved at all. Callers
// that must reject time-free input check this before building an event.
func (r Result) HasTimeInfo() bool {
	return r.HasDate || r.Start != nil
}

// Resolver parses Russian temporal expressions against a fixed location.
type Resolver struct {
	loc    *time.Location
	logger *slog.Logger
}

// NewResolver creates a resolver that materializes dates in loc. A nil loc
// falls back to time.Local.
func NewResolver(loc *time.Location, logger *slog.Logger) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{loc: loc, logger: logger}
}

// relativeDays maps exact-token relative-day keywords to day offsets from
// the reference date.
var relativeDays = map[string]int{
	"сегодня":     0,
	"завтра":      1,
	"послезавтра": 2,
	"вчера":       -1,
}

// weekdays maps Russian weekday names (nominative, accusative, and
// two-letter abbreviations) to time.Weekday.
var weekdays = map[string]time.Weekday{
	"понедельник": time.Monday, "пн": time.Monday,
	"вторник": time.Tuesday, "вт": time.Tuesday,
	"среда": time.Wednesday, "среду": time.Wednesday, "ср": time.Wednesday,
	"четверг": time.Thursday, "чт": time.Thursday,
	"пятница": time.Friday, "пятницу": time.Friday, "пт": time.Friday,
	"суббота": time.Saturday, "субботу": time.Saturday, "сб": time.Saturday,
	"воскресенье": time.Sunday, "воскресение": time.Sunday, "вс": time.Sunday,
}

// months maps Russian month names and abbreviations to month numbers.
var months = map[string]time.Month{
	"январь": time.January, "января": time.January, "янв": time.January,
	"февраль": time.February, "февраля": time.February, "фев": time.February,
	"март": time.March, "марта": time.March, "мар": time.March,
	"апрель": time.April, "апреля": time.April, "апр": time.April,
	"май": time.May, "мая": time.May,
	"июнь": time.June, "июня": time.June, "июн": time.June,
	"июль": time.July, "июля": time.July, "июл": time.July,
	"август": time.August, "августа": time.August, "авг": time.August,
	"сентябрь": time.September, "сентября": time.September, "сен": time.September,
	"октябрь": time.October, "октября": time.October, "окт": time.October,
	"ноябрь": time.November, "ноября": time.November, "ноя": time.November,
	"декабрь": time.December, "декабря": time.December, "дек": time.December,
}

var (
	// dayMonthRE matches "12 июня" style dates. Built from the months table
	// so the alternation and the lookup stay in sync.
	dayMonthRE = regexp.MustCompile(`(\d{1,2})\s+(` + monthAlternation() + `)`)

	// numericDateRE matches DD.MM, DD.MM.YYYY, DD/MM and similar.
	numericDateRE = regexp.MustCompile(`(\d{1,2})[./](\d{1,2})(?:[./](\d{2,4}))?`)

	// isoDateRE matches YYYY-MM-DD.
	isoDateRE = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

	hourMinuteRE = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	hourWordRE   = regexp.MustCompile(`(\d{1,2})\s*ч(?:ас(?:а|ов)?)?\s*(\d{2})?`)
	morningRE    = regexp.MustCompile(`(\d{1,2})\s*утра`)
	afternoonRE  = regexp.MustCompile(`(\d{1,2})\s*дня`)
	eveningRE    = regexp.MustCompile(`(\d{1,2})\s*вечера`)

	rangePrepRE = regexp.MustCompile(`с\s+(\d{1,2}(?::\d{2})?)\s+до\s+(\d{1,2}(?::\d{2})?)`)
	rangeDashRE = regexp.MustCompile(`(\d{1,2}(?::\d{2})?)\s*-\s*(\d{1,2}(?::\d{2})?)`)

	clockTokenRE = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?$`)
)

func monthAlternation() string {
	names := make([]string, 0, len(months))
	for name := range months {
		names = append(names, name)
	}
	// Longer alternatives first so "января" is not eaten by "янв".
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			if len(names[j]) > len(names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return strings.Join(names, "|")
}

// tokenize splits lowered text into bare word tokens, trimming punctuation.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".,!?;:«»\"'()")
	}
	return fields
}

// ResolveDate extracts a calendar date from text relative to ref. The
// returned time is midnight in the resolver's location. ok is false when
// no rule matched.
func (r *Resolver) ResolveDate(text string, ref time.Time) (date time.Time, ok bool) {
	if text == "" {
		return time.Time{}, false
	}

	refDay := r.midnight(ref)
	tokens := tokenize(text)

	// 1. Relative-day keywords.
	for _, tok := range tokens {
		if delta, found := relativeDays[tok]; found {
			return refDay.AddDate(0, 0, delta), true
		}
	}

	// 2. Weekday names: next occurrence strictly after ref. A weekday equal
	// to today's resolves to next week, never to the reference date itself.
	for _, tok := range tokens {
		if wd, found := weekdays[tok]; found {
			ahead := (int(wd) - int(refDay.Weekday()) + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			return refDay.AddDate(0, 0, ahead), true
		}
	}

	// 3. "<day> <month-name>" with roll-over to next year for past dates.
	lower := strings.ToLower(text)
	if m := dayMonthRE.FindStringSubmatch(lower); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := months[m[2]]
		if d, valid := r.makeDate(refDay.Year(), month, day); valid {
			if d.Before(refDay) {
				if next, nextValid := r.makeDate(refDay.Year()+1, month, day); nextValid {
					return next, true
				}
			}
			return d, true
		}
	}

	// 4. Generic numeric forms.
	if m := isoDateRE.FindStringSubmatch(lower); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if d, valid := r.makeDate(year, time.Month(month), day); valid {
			return d, true
		}
	}
	if m := numericDateRE.FindStringSubmatch(lower); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := refDay.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		if d, valid := r.makeDate(year, time.Month(month), day); valid {
			return d, true
		}
	}

	return time.Time{}, false
}

// ResolveTime extracts a clock time from text. Numeric patterns are tried
// first; bare daypart keywords fall back to coarse defaults (morning 09:00,
// afternoon 14:00, evening 18:00, night 22:00).
func (r *Resolver) ResolveTime(text string) (Clock, bool) {
	if text == "" {
		return Clock{}, false
	}
	lower := strings.ToLower(text)

	if m := hourMinuteRE.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour < 24 && minute < 60 {
			return Clock{hour, minute}, true
		}
	}

	if m := hourWordRE.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 24 && minute < 60 {
			return Clock{hour, minute}, true
		}
	}

	// 12-hour adjustment: "утра" maps 12 to 0; "дня" and "вечера" add 12
	// to hours below noon.
	if m := morningRE.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour == 12 {
			hour = 0
		}
		if hour < 24 {
			return Clock{hour, 0}, true
		}
	}
	if m := afternoonRE.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 12 {
			hour += 12
		}
		if hour < 24 {
			return Clock{hour, 0}, true
		}
	}
	if m := eveningRE.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 12 {
			hour += 12
		}
		if hour < 24 {
			return Clock{hour, 0}, true
		}
	}

	switch {
	case strings.Contains(lower, "утром") || strings.Contains(lower, "утра"):
		return Clock{9, 0}, true
	case strings.Contains(lower, "днем") || strings.Contains(lower, "днём") || strings.Contains(lower, "дня"):
		return Clock{14, 0}, true
	case strings.Contains(lower, "вечером") || strings.Contains(lower, "вечера"):
		return Clock{18, 0}, true
	case strings.Contains(lower, "ночью") || strings.Contains(lower, "ночи"):
		return Clock{22, 0}, true
	}

	return Clock{}, false
}

// ResolveRange extracts a start/end pair anchored to date. It recognizes
// "с <T1> до <T2>" and "<T1>-<T2>" forms; a single time yields a one-hour
// event. An end that is not after its start rolls to the next calendar
// day, so End > Start always holds for a true result.
func (r *Resolver) ResolveRange(text string, date time.Time) (start, end time.Time, ok bool) {
	if text == "" || date.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	lower := strings.ToLower(text)

	for _, re := range []*regexp.Regexp{rangePrepRE, rangeDashRE} {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		startClock, startOK := parseClockToken(m[1])
		if !startOK {
			continue
		}
		start = r.at(date, startClock)

		endClock, endOK := parseClockToken(m[2])
		if !endOK {
			end = start.Add(DefaultDuration)
			return start, end, true
		}
		end = r.at(date, endClock)
		if !end.After(start) {
			// A range never has zero or negative length: assume the end
			// time belongs to the next day (e.g. "с 23 до 1").
			end = end.AddDate(0, 0, 1)
		}
		return start, end, true
	}

	if clock, found := r.ResolveTime(lower); found {
		start = r.at(date, clock)
		return start, start.Add(DefaultDuration), true
	}

	return time.Time{}, time.Time{}, false
}

// recurrencePhrases maps recurrence keyword phrases to rrule frequencies.
// Custom intervals are not supported.
var recurrencePhrases = []struct {
	phrases []string
	freq    rrule.Frequency
}{
	{[]string{"каждый день", "ежедневно"}, rrule.DAILY},
	{[]string{"каждую неделю", "еженедельно"}, rrule.WEEKLY},
	{[]string{"каждый месяц", "ежемесячно"}, rrule.MONTHLY},
	{[]string{"каждый год", "ежегодно"}, rrule.YEARLY},
}

// ResolveRecurrence maps daily/weekly/monthly/yearly phrases to an RRULE
// string such as "RRULE:FREQ=DAILY".
func (r *Resolver) ResolveRecurrence(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)

	for _, entry := range recurrencePhrases {
		for _, phrase := range entry.phrases {
			if !strings.Contains(lower, phrase) {
				continue
			}
			rule, err := rrule.NewRRule(rrule.ROption{Freq: entry.freq})
			if err != nil {
				r.logger.Warn("building recurrence rule", "freq", entry.freq, "error", err)
				return "", false
			}
			return "RRULE:" + rule.String(), true
		}
	}
	return "", false
}

// Resolve runs all resolution stages over text and aggregates the results
// along with the matched substrings. A stage that finds nothing leaves the
// other stages' results intact.
func (r *Resolver) Resolve(text string, ref time.Time) Result {
	var result Result
	if strings.TrimSpace(text) == "" {
		return result
	}
	lower := strings.ToLower(text)

	if date, ok := r.ResolveDate(lower, ref); ok {
		result.Date = date
		result.HasDate = true
		result.Matched = append(result.Matched, matchedDateText(lower)...)
	}

	if result.HasDate {
		if start, end, ok := r.ResolveRange(lower, result.Date); ok {
			result.Start = &start
			result.End = &end
			result.Matched = append(result.Matched, matchedTimeText(lower)...)
		}
	}

	if rec, ok := r.ResolveRecurrence(lower); ok {
		result.Recurrence = rec
		result.Matched = append(result.Matched, matchedRecurrenceText(lower)...)
	}

	result.Matched = dedupe(result.Matched)
	return result
}

// matchedDateText re-locates the date substrings that resolution consumed.
func matchedDateText(lower string) []string {
	var out []string
	for _, tok := range tokenize(lower) {
		if _, ok := relativeDays[tok]; ok {
			out = append(out, tok)
		}
		if _, ok := weekdays[tok]; ok {
			out = append(out, tok)
		}
	}
	if m := dayMonthRE.FindString(lower); m != "" {
		out = append(out, m)
	}
	return out
}

func matchedTimeText(lower string) []string {
	var out []string
	for _, re := range []*regexp.Regexp{rangePrepRE, rangeDashRE, hourMinuteRE, hourWordRE, morningRE, afternoonRE, eveningRE} {
		if m := re.FindString(lower); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func matchedRecurrenceText(lower string) []string {
	var out []string
	for _, entry := range recurrencePhrases {
		for _, phrase := range entry.phrases {
			if strings.Contains(lower, phrase) {
				out = append(out, phrase)
			}
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// parseClockToken parses a bare "H" or "H:MM" range boundary.
func parseClockToken(s string) (Clock, bool) {
	m := clockTokenRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Clock{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour >= 24 || minute >= 60 {
		return Clock{}, false
	}
	return Clock{hour, minute}, true
}

func (r *Resolver) midnight(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
}

func (r *Resolver) at(date time.Time, c Clock) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, r.loc)
}

func (r *Resolver) makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 || day > 31 || month < time.January || month > time.December {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, r.loc)
	// time.Date normalizes out-of-range days (Feb 30 -> Mar 2); reject those.
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}
