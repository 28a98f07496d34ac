package textrepair

import "testing"

func TestFix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Clean ASCII unchanged",
			input:    "Strobe - deadmau5",
			expected: "Strobe - deadmau5",
		},
		{
			name:     "Clean Japanese unchanged",
			input:    "夜に駆ける",
			expected: "夜に駆ける",
		},
		{
			name:     "Latin-1 misread Japanese repaired",
			input:    mojibake("夜に駆ける"),
			expected: "夜に駆ける",
		},
		{
			name:     "HTML entity unescaped when it hides CJK",
			input:    "&#22812;に駆ける",
			expected: "夜に駆ける",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fix(tt.input); got != tt.expected {
				t.Errorf("Fix(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// mojibake simulates the classic corruption: UTF-8 bytes decoded as latin-1.
func mojibake(s string) string {
	out := make([]rune, 0, len(s))
	for _, b := range []byte(s) {
		out = append(out, rune(b))
	}
	return string(out)
}

func TestFix_DoesNotCorruptAccentedLatin(t *testing.T) {
	// Names like "Beyoncé" contain non-ASCII runes but no CJK; scoring must
	// not prefer a mangled reinterpretation over the original.
	got := Fix("Beyoncé")
	if got != "Beyoncé" {
		t.Errorf("Fix(Beyoncé) = %q", got)
	}
}
