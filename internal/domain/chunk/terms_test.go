package chunk

import (
	"slices"
	"strings"
	"testing"
)

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"How do I reset the Wi-Fi router?", []string{"how", "do", "reset", "the", "wi", "fi", "router"}},
		{"Passwort ändern, Passwort vergessen", []string{"passwort", "ändern", "vergessen"}},
		{"   ", []string{}},
		{"a b c", []string{}},
		{"port 8080", []string{"port", "8080"}},
	}
	for _, tt := range tests {
		if got := QueryTerms(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("QueryTerms(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestQueryTerms_Capped(t *testing.T) {
	var b strings.Builder
	for i := range MaxQueryTerms + 10 {
		b.WriteString("term")
		b.WriteRune(rune('a' + i%26))
		b.WriteRune(rune('a' + i/26))
		b.WriteByte(' ')
	}
	if got := len(QueryTerms(b.String())); got != MaxQueryTerms {
		t.Errorf("len = %d, want %d", got, MaxQueryTerms)
	}
}
