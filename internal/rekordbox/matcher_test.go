package rekordbox

import (
	"testing"

	"cratedig/internal/core"
)

func testLibrary() *Library {
	return newLibrary([]Entry{
		newEntry("Animals", "Victor Ruiz", "Animals EP", "DEQ871901234"),
		newEntry("Your Mind (Extended Mix)", "Adam Beyer", "Your Mind", ""),
		newEntry("Space Date", "Bart Skils", "Roots Raver", ""),
		newEntry("abcdefghijklmnopqrstuvwxy", "Some Artist", "", ""),
		newEntry("abcdefghijklmnopqrstuvwx", "Other Artist", "", ""),
	})
}

func TestMatchCascade(t *testing.T) {
	lib := testLibrary()

	tests := []struct {
		name       string
		track      core.TrackRecord
		wantMethod core.MatchMethod
		wantNone   bool
	}{
		{
			name:       "ISRC hit is case insensitive",
			track:      core.TrackRecord{Title: "totally different", Artist: "someone else", ISRC: "deq871901234"},
			wantMethod: core.MatchISRC,
		},
		{
			name:       "ISRC wins over exact title and artist",
			track:      core.TrackRecord{Title: "Animals", Artist: "Victor Ruiz", ISRC: "DEQ871901234"},
			wantMethod: core.MatchISRC,
		},
		{
			name:       "Exact normalized title and artist",
			track:      core.TrackRecord{Title: "Your Mind (Radio Edit)", Artist: "Adam Beyer, Bart Skils"},
			wantMethod: core.MatchExact,
		},
		{
			name:       "Swapped artist-title reading",
			track:      core.TrackRecord{Title: "Bart Skils - Space Date", Artist: "Unknown Uploader"},
			wantMethod: core.MatchExact,
		},
		{
			name:       "Album pass catches renamed artist credit",
			track:      core.TrackRecord{Title: "Animals", Artist: "V. Ruiz", Album: "Animals EP"},
			wantMethod: core.MatchAlbum,
		},
		{
			name:     "Unknown ISRC alone does not match",
			track:    core.TrackRecord{Title: "Nothing Here", Artist: "Nobody", ISRC: "XXZZZ9999999"},
			wantNone: true,
		},
		{
			name:     "Different artist blocks fuzzy",
			track:    core.TrackRecord{Title: "abcdefghijklmnopqrstuvwzz", Artist: "Not That Artist"},
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lib.Match(tt.track)
			if tt.wantNone {
				if got != nil {
					t.Fatalf("Match() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Match() = nil, want a match")
			}
			if got.Method != tt.wantMethod {
				t.Errorf("Method = %v, want %v", got.Method, tt.wantMethod)
			}
		})
	}
}

func TestFuzzyThresholdBoundary(t *testing.T) {
	lib := testLibrary()

	// 25-character title, two substitutions: similarity exactly 1 - 2/25 = 0.92.
	got := lib.Match(core.TrackRecord{Title: "abcdefghijklmnopqrstuvwzz", Artist: "Some Artist"})
	if got == nil {
		t.Fatal("similarity at the threshold should match")
	}
	if got.Method != core.MatchFuzzy {
		t.Errorf("Method = %v, want fuzzy", got.Method)
	}
	if got.Score < 0.919 || got.Score > 0.921 {
		t.Errorf("Score = %v, want 0.92", got.Score)
	}
	if got.MatchedTitle != "abcdefghijklmnopqrstuvwxy" {
		t.Errorf("MatchedTitle = %q", got.MatchedTitle)
	}

	// 24-character title, two substitutions: 1 - 2/24 falls just under.
	got = lib.Match(core.TrackRecord{Title: "abcdefghijklmnopqrstuvzz", Artist: "Other Artist"})
	if got != nil {
		t.Fatalf("similarity below the threshold matched: %+v", got)
	}
}

func TestAnnotate(t *testing.T) {
	lib := testLibrary()
	tracks := []core.TrackRecord{
		{Title: "Animals", Artist: "Victor Ruiz", ISRC: "DEQ871901234"},
		{Title: "Unrelated", Artist: "Nobody"},
		{Title: "Your Mind", Artist: "Adam Beyer"},
	}

	matched := lib.Annotate(tracks)
	if matched != 2 {
		t.Fatalf("Annotate() = %d, want 2", matched)
	}
	if tracks[0].Owned == nil || tracks[0].Owned.Method != core.MatchISRC {
		t.Errorf("track 0 owned = %+v", tracks[0].Owned)
	}
	if tracks[1].Owned != nil {
		t.Errorf("track 1 should be unmatched, got %+v", tracks[1].Owned)
	}
	if tracks[2].Owned == nil || tracks[2].Owned.Method != core.MatchExact {
		t.Errorf("track 2 owned = %+v", tracks[2].Owned)
	}
}
