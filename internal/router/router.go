// Package router classifies playlist requests by catalog source and
// normalizes their identifiers. All functions are pure.
package router

import (
	"net/url"
	"regexp"
	"strings"

	"cratedig/internal/core"
)

const appleHost = "music.apple.com"

var (
	playlistIDRegex  = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
	playlistRefRegex = regexp.MustCompile(`(?:playlist[/:])([A-Za-z0-9]{22})`)
)

// Route validates and normalizes a raw request. The declared source defaults
// to spotify; a URL whose host unambiguously belongs to Apple Music
// overrides it. For the spotify source the returned URL field carries the
// bare 22-character playlist ID.
func Route(source, rawURL string) (core.Source, string, error) {
	clean := Sanitize(rawURL)
	if clean == "" {
		return "", "", &core.ValidationError{Field: "url", Msg: "empty playlist URL or ID"}
	}

	src := core.SourceSpotify
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", string(core.SourceSpotify):
	case string(core.SourceApple):
		src = core.SourceApple
	default:
		return "", "", &core.ValidationError{Field: "source", Msg: "unsupported source: " + source}
	}

	// Host wins over the declared source; clients routinely paste an Apple
	// link while the source selector still says spotify.
	if isAppleURL(clean) {
		return core.SourceApple, clean, nil
	}

	if src == core.SourceApple {
		return "", "", &core.ValidationError{Field: "url", Msg: "not an Apple Music playlist URL: " + clean}
	}

	id, err := ExtractSpotifyPlaylistID(clean)
	if err != nil {
		return "", "", err
	}
	return core.SourceSpotify, id, nil
}

// Sanitize trims whitespace, surrounding angle brackets, and surrounding
// quotes from a pasted URL.
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") && len(s) >= 2 {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.Trim(s, `'"`)
	return s
}

// ExtractSpotifyPlaylistID accepts a bare ID, a spotify:playlist: URI, or an
// open.spotify.com URL and returns the 22-character playlist ID.
func ExtractSpotifyPlaylistID(s string) (string, error) {
	if playlistIDRegex.MatchString(s) {
		return s, nil
	}

	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
		if len(parts) > 0 {
			if cand := parts[len(parts)-1]; playlistIDRegex.MatchString(cand) {
				return cand, nil
			}
		}
	}

	if m := playlistRefRegex.FindStringSubmatch(s); len(m) > 1 {
		return m[1], nil
	}

	return "", &core.ValidationError{Field: "url", Msg: "invalid Spotify playlist URL or ID: " + s}
}

func isAppleURL(s string) bool {
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		return strings.EqualFold(u.Hostname(), appleHost)
	}
	return strings.Contains(strings.ToLower(s), appleHost)
}
