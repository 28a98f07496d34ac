package extract

import (
	"strings"

	"cratedig/internal/core"
)

// trackFieldRules are the known field combinations that mark a JSON object
// as one track. Apple's catalog API, its embedded server data, and generic
// schema.org payloads all use different spellings; the first rule whose
// required fields are present wins.
var trackFieldRules = []struct {
	title, artist string
}{
	{"name", "artistName"},      // amp-api catalog attributes
	{"trackName", "artistName"}, // iTunes lookup
	{"title", "artist"},         // generic embedded data
}

var albumFields = []string{"albumName", "collectionName", "album"}
var isrcFields = []string{"isrc", "ISRC"}
var urlFields = []string{"url", "trackViewUrl"}

// CollectTracks walks an arbitrary decoded JSON value and gathers every
// object that looks like a track, deduplicated on the case-insensitive
// (title, artist, album) triple. Array order is preserved; a real payload
// keeps all its tracks in one array.
func CollectTracks(v any) []core.TrackRecord {
	var out []core.TrackRecord
	seen := map[string]struct{}{}
	visitJSON(v, func(obj map[string]any) {
		tr, ok := trackFromObject(obj)
		if !ok {
			return
		}
		key := strings.ToLower(tr.Title + "\x00" + tr.Artist + "\x00" + tr.Album)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, tr)
	})
	return out
}

// FindPlaylistName returns the display name of the playlist object inside a
// decoded payload, or "".
func FindPlaylistName(v any) string {
	name := ""
	visitJSON(v, func(obj map[string]any) {
		if name != "" {
			return
		}
		n := stringField(obj, "name")
		if n == "" {
			return
		}
		// A curator credit or a playlist playParams kind distinguishes the
		// playlist object from the track objects around it.
		if stringField(obj, "curatorName") != "" {
			name = n
			return
		}
		if pp, ok := obj["playParams"].(map[string]any); ok && stringField(pp, "kind") == "playlist" {
			name = n
		}
	})
	return name
}

func visitJSON(v any, fn func(map[string]any)) {
	switch t := v.(type) {
	case map[string]any:
		fn(t)
		for _, child := range t {
			visitJSON(child, fn)
		}
	case []any:
		for _, child := range t {
			visitJSON(child, fn)
		}
	}
}

func trackFromObject(obj map[string]any) (core.TrackRecord, bool) {
	for _, rule := range trackFieldRules {
		title := stringField(obj, rule.title)
		artist := stringField(obj, rule.artist)
		if title == "" || artist == "" {
			continue
		}
		// Apple's playlist object also carries name+curatorName; skip it.
		if rule.title == "name" && stringField(obj, "curatorName") != "" {
			continue
		}
		tr := core.TrackRecord{
			Title:  title,
			Artist: artist,
			Album:  firstStringField(obj, albumFields),
			ISRC:   strings.ToUpper(firstStringField(obj, isrcFields)),
		}
		if u := firstStringField(obj, urlFields); strings.Contains(u, "music.apple.com") {
			tr.SourceURLs.Apple = u
		}
		return tr, true
	}
	return core.TrackRecord{}, false
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func firstStringField(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringField(obj, k); s != "" {
			return s
		}
	}
	return ""
}
