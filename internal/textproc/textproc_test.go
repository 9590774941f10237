package textproc

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "добавь встречу", "добавь встречу"},
		{"collapses whitespace", "добавь   встречу\n\tна завтра", "добавь встречу на завтра"},
		{"trims", "  добавь встречу  ", "добавь встречу"},
		{"collapses dots", "добавь встречу...", "добавь встречу."},
		{"collapses bangs", "срочно!!!", "срочно!"},
		{"collapses questions", "что у меня завтра??", "что у меня завтра?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Normalize(tt.in)
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := p.Normalize(got); again != got {
				t.Fatalf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestNormalizeTruncates(t *testing.T) {
	p := NewProcessor(WithMaxLength(10))

	got := p.Normalize("это очень длинный текст запроса")
	if n := len([]rune(got)); n > 10 {
		t.Fatalf("len = %d runes, want <= 10 (%q)", n, got)
	}
	if strings.HasSuffix(got, " ") {
		t.Fatalf("truncated text not trimmed: %q", got)
	}
}

func TestPrepareForClassification(t *testing.T) {
	p := NewProcessor()

	got := p.PrepareForClassification("  Добавь, пожалуйста, встречу!  ")
	want := "добавь пожалуйста встречу"
	if got != want {
		t.Fatalf("PrepareForClassification = %q, want %q", got, want)
	}
}

func TestSplitSentences(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"blank", "   ", nil},
		{"single", "добавь встречу на завтра", []string{"добавь встречу на завтра"}},
		{
			"two sentences",
			"Добавь встречу на завтра. Потом покажи расписание!",
			[]string{"Добавь встречу на завтра.", "Потом покажи расписание!"},
		},
		{
			"abbreviation does not split",
			"Встреча на ул. Ленина в 10",
			[]string{"Встреча на ул. Ленина в 10"},
		},
		{
			"initials do not split",
			"Встреча с А. Ивановым завтра",
			[]string{"Встреча с А. Ивановым завтра"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.SplitSentences(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitSentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestStripPrepositions(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		in   string
		want string
	}{
		{"встреча с Кириллом на завтра", "встреча Кириллом завтра"},
		{"в офисе", "офисе"},
		{"без предлогов тут нет", "предлогов тут нет"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := p.StripPrepositions(tt.in); got != tt.want {
			t.Fatalf("StripPrepositions(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanEntityText(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name  string
		text  string
		label string
		want  string
	}{
		{"person drops с and title-cases", "с кириллом", "PERSON", "Кириллом"},
		{"person drops со", "со светой", "PERSON", "Светой"},
		{"time collapses whitespace", "10  утра", "TIME", "10 утра"},
		{"event drops leading на", "на презентацию", "EVENT", "презентацию"},
		{"event drops leading про", "про отчет", "EVENT_NAME", "отчет"},
		{"unknown label passes through", "  как есть  ", "OTHER", "как есть"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.CleanEntityText(tt.text, tt.label); got != tt.want {
				t.Fatalf("CleanEntityText(%q, %s) = %q, want %q", tt.text, tt.label, got, tt.want)
			}
		})
	}
}

func TestLemmatize(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		in   string
		want string
	}{
		{"встречу", "встреча"},
		{"презентацию", "презентация"},
		{"поликлинике", "поликлиника"},
		{"кириллом", "кирилл"},
		{"андреем", "андрей"},
		{"анной", "анна"},
		{"пятницу", "пятница"},
		// Short words and non-Cyrillic input come back unchanged.
		{"дом", "дом"},
		{"10:30", "10:30"},
		{"meeting", "meeting"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := p.Lemmatize(tt.in); got != tt.want {
			t.Fatalf("Lemmatize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLemmatizePhrase(t *testing.T) {
	p := NewProcessor()

	got := p.LemmatizePhrase("встречу с кириллом")
	// "с" is too short to lemmatize and stays as is.
	want := "встреча с кирилл"
	if got != want {
		t.Fatalf("LemmatizePhrase = %q, want %q", got, want)
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("иван петров"); got != "Иван Петров" {
		t.Fatalf("TitleCase = %q", got)
	}
	if got := Capitalize("ВСТРЕЧА"); got != "Встреча" {
		t.Fatalf("Capitalize = %q", got)
	}
}
