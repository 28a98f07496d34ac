package trackkey

import (
	"strings"
	"testing"
)

func TestDerive_ISRCPriority(t *testing.T) {
	tests := []struct {
		name        string
		isrc        string
		wantPrimary string
		wantType    string
	}{
		{
			name:        "ISRC present",
			isrc:        "USUM71703861",
			wantPrimary: "isrc:USUM71703861",
			wantType:    TypeISRC,
		},
		{
			name:        "Lowercase ISRC uppercased",
			isrc:        "usum71703861",
			wantPrimary: "isrc:USUM71703861",
			wantType:    TypeISRC,
		},
		{
			name:        "Whitespace-only ISRC falls back",
			isrc:        "   ",
			wantPrimary: "norm:strobe|deadmau5|for lack of a better name",
			wantType:    TypeNorm,
		},
		{
			name:        "Empty ISRC falls back",
			isrc:        "",
			wantPrimary: "norm:strobe|deadmau5|for lack of a better name",
			wantType:    TypeNorm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := Derive("Strobe", "deadmau5", "For Lack of a Better Name", tt.isrc)
			if k.Primary != tt.wantPrimary {
				t.Errorf("Primary = %q, want %q", k.Primary, tt.wantPrimary)
			}
			if k.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", k.Type, tt.wantType)
			}
			if k.Version != "v1" {
				t.Errorf("Version = %q, want v1", k.Version)
			}
			if k.Primary == "" {
				t.Error("Primary must never be empty")
			}
			if tt.wantType == TypeNorm && k.Primary != k.Fallback {
				t.Error("without ISRC, primary must equal fallback")
			}
			if !strings.HasPrefix(k.Fallback, "norm:") {
				t.Errorf("Fallback = %q, want norm: prefix", k.Fallback)
			}
		})
	}
}

func TestFallbackKey_Deterministic(t *testing.T) {
	first := FallbackKey("Strobe (Club Edit)", "deadmau5, Kaskade", "Album")
	for i := 0; i < 50; i++ {
		if got := FallbackKey("Strobe (Club Edit)", "deadmau5, Kaskade", "Album"); got != first {
			t.Fatalf("iteration %d: key drifted from %q to %q", i, first, got)
		}
	}
}

func TestFallbackKey_OmitsEmptyAlbum(t *testing.T) {
	got := FallbackKey("Strobe", "deadmau5", "")
	want := "norm:strobe|deadmau5"
	if got != want {
		t.Errorf("FallbackKey = %q, want %q", got, want)
	}
}

func TestFallbackKey_DelimiterSafety(t *testing.T) {
	// Title "A|B" with artist "C" must not collide with title "A" and
	// artist "B|C" once the delimiter is escaped.
	a := FallbackKey("A|B", "C", "")
	b := FallbackKey("A", "B|C", "")
	if a == b {
		t.Fatalf("delimiter collision: %q", a)
	}

	// Each key must still split into the same number of segments as its
	// field count so a consumer can reconstruct fields.
	if got := len(strings.Split(strings.TrimPrefix(a, "norm:"), "|")); got != 2 {
		t.Errorf("key %q splits into %d segments, want 2", a, got)
	}
	if got := len(strings.Split(strings.TrimPrefix(b, "norm:"), "|")); got != 2 {
		t.Errorf("key %q splits into %d segments, want 2", b, got)
	}
}

func TestFallbackKey_BackslashEscaped(t *testing.T) {
	got := FallbackKey(`A\B`, "C", "")
	if strings.Contains(got, `\`) {
		t.Errorf("raw backslash survived in key %q", got)
	}
}
