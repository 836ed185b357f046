package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessage(t *testing.T) {
	if got := SplitMessage("curta", 10); len(got) != 1 || got[0] != "curta" {
		t.Fatalf("SplitMessage(short) = %q", got)
	}

	text := strings.Repeat("linha de treino\n", 20)
	parts := SplitMessage(text, 100)
	if strings.Join(parts, "") != text {
		t.Fatal("parts do not reassemble the original text")
	}
	for i, p := range parts {
		if n := utf8.RuneCountInString(p); n > 100 {
			t.Errorf("part %d has %d runes", i, n)
		}
		if i < len(parts)-1 && !strings.HasSuffix(p, "\n") {
			t.Errorf("part %d does not end at a newline: %q", i, p)
		}
	}
}

func TestFixMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**Agachamento** 4x10", "*Agachamento* 4x10"},
		{"use `kg", "use `kg`"},
		{"```\ncódigo", "```\ncódigo\n```"},
		{"texto simples", "texto simples"},
	}
	for _, tt := range tests {
		if got := FixMarkdown(tt.in); got != tt.want {
			t.Errorf("FixMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Ana", "Ana"},
		{"ana_silva", `ana\_silva`},
		{"*Zé*", `\*Zé\*`},
		{"[jo`ão]", "\\[jo\\`ão]"},
	}
	for _, tt := range tests {
		if got := EscapeMarkdown(tt.in); got != tt.want {
			t.Errorf("EscapeMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
