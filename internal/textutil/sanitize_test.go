package textutil

import "testing"

func TestMakeSafeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Gloomhaven", "Gloomhaven"},
		{"kept punctuation", "Root (2nd ed.) [v1.2] {fan}_x-y", "Root (2nd ed.) [v1.2] {fan}_x-y"},
		{"slashes and colons", "A/B:C*D?", "A-B-C-D-"},
		{"unicode letters", "Ça va 日本", "Ça va 日本"},
		{"trailing space", "Deck   ", "Deck"},
		{"quotes", `say "hi"`, "say -hi-"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MakeSafeFilename(tt.input); got != tt.want {
				t.Errorf("MakeSafeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
