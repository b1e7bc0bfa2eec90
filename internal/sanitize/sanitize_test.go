package sanitize

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"empty", "", 10, ""},
		{"plain", "AI will reshape work", 100, "AI will reshape work"},
		{"control chars", "solar\x00 energy\x07", 100, "solar energy"},
		{"tags stripped", "<b>climate</b> <script>x</script>crisis", 100, "climate xcrisis"},
		{"whitespace collapsed", "  war \n\n and \t peace  ", 100, "war and peace"},
		{"truncated", "abcdefghij", 4, "abcd"},
		{"no limit", "abcdefghij", 0, "abcdefghij"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input, tt.max); got != tt.want {
				t.Errorf("Text(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestText_TruncatesOnRuneBoundary(t *testing.T) {
	got := Text("технология", 5)
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
	if len(got) > 5 {
		t.Errorf("expected at most 5 bytes, got %d", len(got))
	}
}

func TestArgument_MaxLength(t *testing.T) {
	got := Argument(strings.Repeat("a", MaxArgumentLength+100))
	if len(got) != MaxArgumentLength {
		t.Errorf("expected %d bytes, got %d", MaxArgumentLength, len(got))
	}
}

func TestArgument(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"blank", "  \n\t ", ""},
		{"only control chars", "\x00\x01", ""},
		{"control chars stripped", "solar\x00 energy\x07", "solar energy"},
		{"inner whitespace kept", "not  technology", "not  technology"},
		{"markup kept", "<b>AI</b> wins", "<b>AI</b> wins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Argument(tt.input); got != tt.want {
				t.Errorf("Argument(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestScenarioName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"Tech-Acceleration", "Tech-Acceleration"},
		{"  Slow Decline  ", "Slow-Decline"},
		{"Green -- Future!!", "Green-Future"},
		{"<b>Bold</b>", "bBoldb"},
		{"Éco_Transition", "Éco_Transition"},
		{strings.Repeat("x", 100), strings.Repeat("x", MaxNameLength)},
	}

	for _, tt := range tests {
		if got := ScenarioName(tt.input); got != tt.want {
			t.Errorf("ScenarioName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords([]string{" AI ", "", "Quantum", "   ", "ai", "<i>neural</i>"})
	want := []string{"ai", "quantum", "ai", "neural"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords() = %v, want %v", got, want)
	}

	if got := Keywords(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}

	many := make([]string, MaxKeywords+5)
	for i := range many {
		many[i] = "kw"
	}
	if got := Keywords(many); len(got) != MaxKeywords {
		t.Errorf("expected %d keywords, got %d", MaxKeywords, len(got))
	}
}
