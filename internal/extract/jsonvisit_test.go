package extract

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return v
}

const catalogPayload = `{
  "data": [{
    "id": "pl.u-abc123",
    "attributes": {
      "name": "Peak Time Techno",
      "curatorName": "cratedig",
      "playParams": {"kind": "playlist"}
    },
    "relationships": {
      "tracks": {
        "data": [
          {"attributes": {"name": "Animals", "artistName": "Victor Ruiz",
            "albumName": "Animals EP", "isrc": "deq871901234",
            "url": "https://music.apple.com/jp/song/animals/1"}},
          {"attributes": {"name": "Your Mind", "artistName": "Adam Beyer",
            "albumName": "Your Mind - Single"}},
          {"attributes": {"name": "Animals", "artistName": "Victor Ruiz",
            "albumName": "Animals EP"}}
        ]
      }
    }
  }]
}`

func TestCollectTracksCatalogShape(t *testing.T) {
	tracks := CollectTracks(decode(t, catalogPayload))
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2 (duplicate dropped)", len(tracks))
	}

	first := tracks[0]
	if first.Title != "Animals" || first.Artist != "Victor Ruiz" {
		t.Errorf("first track = %q / %q", first.Title, first.Artist)
	}
	if first.ISRC != "DEQ871901234" {
		t.Errorf("ISRC not uppercased: %q", first.ISRC)
	}
	if first.SourceURLs.Apple == "" {
		t.Error("apple URL not captured")
	}
	if first.Album != "Animals EP" {
		t.Errorf("Album = %q", first.Album)
	}
}

func TestCollectTracksAlternateSpellings(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		title   string
		artist  string
	}{
		{
			name:    "iTunes lookup shape",
			payload: `{"results": [{"trackName": "Space Date", "artistName": "Bart Skils", "collectionName": "Roots Raver"}]}`,
			title:   "Space Date",
			artist:  "Bart Skils",
		},
		{
			name:    "Generic embedded shape",
			payload: `[{"title": "Consciousness", "artist": "Enrico Sangiuliano", "album": "Biomorph"}]`,
			title:   "Consciousness",
			artist:  "Enrico Sangiuliano",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracks := CollectTracks(decode(t, tt.payload))
			if len(tracks) != 1 {
				t.Fatalf("got %d tracks, want 1", len(tracks))
			}
			if tracks[0].Title != tt.title || tracks[0].Artist != tt.artist {
				t.Errorf("track = %q / %q, want %q / %q", tracks[0].Title, tracks[0].Artist, tt.title, tt.artist)
			}
		})
	}
}

func TestCollectTracksIgnoresPlaylistObject(t *testing.T) {
	payload := `{"attributes": {"name": "Peak Time Techno", "artistName": "Various", "curatorName": "someone"}}`
	if tracks := CollectTracks(decode(t, payload)); len(tracks) != 0 {
		t.Fatalf("playlist object misread as track: %+v", tracks)
	}
}

func TestCollectTracksDedupIsCaseInsensitive(t *testing.T) {
	payload := `[
	  {"title": "Animals", "artist": "Victor Ruiz"},
	  {"title": "ANIMALS", "artist": "victor ruiz"}
	]`
	if tracks := CollectTracks(decode(t, payload)); len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
}

func TestFindPlaylistName(t *testing.T) {
	if got := FindPlaylistName(decode(t, catalogPayload)); got != "Peak Time Techno" {
		t.Errorf("FindPlaylistName = %q", got)
	}
	if got := FindPlaylistName(decode(t, `{"data": []}`)); got != "" {
		t.Errorf("empty payload gave name %q", got)
	}
}
