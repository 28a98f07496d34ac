// Package storelink synthesizes store search links for tracks so a DJ can
// jump straight to a purchasable copy.
package storelink

import (
	"net/url"
	"strings"
)

const (
	beatportSearchURL = "https://www.beatport.com/search?q="
	bandcampSearchURL = "https://bandcamp.com/search?q="
	itunesSearchURL   = "https://music.apple.com/search?term="
)

// Links holds the per-store search URLs for one track.
type Links struct {
	Beatport string
	Bandcamp string
	ITunes   string
}

// Build returns search links for the given track. Beatport indexes ISRCs, so
// when one is present it is preferred over the text query there; the other
// stores always get the title+artist(+album) query.
func Build(title, artist, album, isrc string) Links {
	query := textQuery(title, artist, album)
	q := url.QueryEscape(query)

	beatportQ := q
	if s := strings.TrimSpace(isrc); s != "" {
		beatportQ = url.QueryEscape(strings.ToUpper(s))
	}

	return Links{
		Beatport: beatportSearchURL + beatportQ,
		Bandcamp: bandcampSearchURL + q,
		ITunes:   itunesSearchURL + q,
	}
}

func textQuery(title, artist, album string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{title, artist, album} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
