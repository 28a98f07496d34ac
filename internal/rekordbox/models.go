// Package rekordbox parses exported Rekordbox collection XML and reconciles
// playlist tracks against the resulting library.
package rekordbox

import (
	"strings"

	"cratedig/pkg/trackkey"
)

// Entry is one track of the local library with its normalized lookup forms
// precomputed at parse time.
type Entry struct {
	Title  string
	Artist string
	Album  string
	ISRC   string

	TitleNorm  string
	ArtistNorm string
	AlbumNorm  string
}

// Library is an indexed, immutable view of a parsed collection. Indices map
// to positions in Entries; the artist index backs the fuzzy pass, which
// needs all titles filed under one artist.
type Library struct {
	Entries []Entry

	byISRC        map[string]int
	byTitleArtist map[string]int
	byTitleAlbum  map[string]int
	byArtist      map[string][]int
}

func newLibrary(entries []Entry) *Library {
	lib := &Library{
		Entries:       entries,
		byISRC:        make(map[string]int),
		byTitleArtist: make(map[string]int),
		byTitleAlbum:  make(map[string]int),
		byArtist:      make(map[string][]int),
	}
	for i, e := range entries {
		if e.ISRC != "" {
			if _, dup := lib.byISRC[e.ISRC]; !dup {
				lib.byISRC[e.ISRC] = i
			}
		}
		if e.TitleNorm != "" && e.ArtistNorm != "" {
			k := e.TitleNorm + "|" + e.ArtistNorm
			if _, dup := lib.byTitleArtist[k]; !dup {
				lib.byTitleArtist[k] = i
			}
		}
		if e.TitleNorm != "" && e.AlbumNorm != "" {
			k := e.TitleNorm + "|" + e.AlbumNorm
			if _, dup := lib.byTitleAlbum[k]; !dup {
				lib.byTitleAlbum[k] = i
			}
		}
		if e.ArtistNorm != "" {
			lib.byArtist[e.ArtistNorm] = append(lib.byArtist[e.ArtistNorm], i)
		}
	}
	return lib
}

func newEntry(title, artist, album, isrc string) Entry {
	return Entry{
		Title:  title,
		Artist: artist,
		Album:  album,
		ISRC:   strings.ToUpper(strings.TrimSpace(isrc)),

		TitleNorm:  trackkey.NormalizeTitle(title),
		ArtistNorm: trackkey.NormalizeArtist(artist),
		AlbumNorm:  trackkey.NormalizeAlbum(album),
	}
}
