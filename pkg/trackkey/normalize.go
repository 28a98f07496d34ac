// Package trackkey derives stable cross-session identity keys for tracks
// from normalized display text and ISRCs.
package trackkey

import (
	"regexp"
	"strings"
)

var (
	parenRegex   = regexp.MustCompile(`\([^)]*\)`)
	brackRegex   = regexp.MustCompile(`\[[^]]*\]`)
	featRegex    = regexp.MustCompile(`\s+(feat\.|ft\.|featuring)\s+.*$`)
	featSplitRE  = regexp.MustCompile(`\s+(feat\.|ft\.|featuring)\s+`)
	mixTailRegex = regexp.MustCompile(`\s*-\s*(original mix|extended mix|radio edit|club mix|dub mix|dub|vip|edit|remix.*|mix)$`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

// escapeDelims replaces characters that carry structure in fallback keys
// with visually similar fullwidth substitutes, so a key can be split on "|"
// unambiguously.
func escapeDelims(s string) string {
	s = strings.ReplaceAll(s, "\\", "＼")
	s = strings.ReplaceAll(s, "|", "／")
	return s
}

// NormalizeTitle lowercases, drops bracketed annotations, feat credits and
// trailing mix/edit qualifiers, and collapses whitespace.
func NormalizeTitle(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))

	s = parenRegex.ReplaceAllString(s, "")
	s = brackRegex.ReplaceAllString(s, "")
	s = featRegex.ReplaceAllString(s, "")
	s = mixTailRegex.ReplaceAllString(s, "")

	s = spaceRegex.ReplaceAllString(s, " ")
	return escapeDelims(strings.TrimSpace(s))
}

// NormalizeArtist lowercases, keeps only the lead artist of a joined credit
// and drops feat credits. Katakana and other scripts pass through untouched
// so transliterated spellings stay distinct keys.
func NormalizeArtist(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	for _, sep := range []string{",", "&", " and "} {
		if i := strings.Index(s, sep); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
	}
	if loc := featSplitRE.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}

	s = spaceRegex.ReplaceAllString(s, " ")
	return escapeDelims(strings.TrimSpace(s))
}

// NormalizeAlbum lowercases, drops bracketed annotations (deluxe, extended,
// ...) and collapses whitespace.
func NormalizeAlbum(album string) string {
	s := strings.ToLower(strings.TrimSpace(album))

	s = parenRegex.ReplaceAllString(s, "")
	s = brackRegex.ReplaceAllString(s, "")

	s = spaceRegex.ReplaceAllString(s, " ")
	return escapeDelims(strings.TrimSpace(s))
}

var artistTitleRegex = regexp.MustCompile(`^(.+?)\s*-\s*(.+)$`)

// TitleArtistPairs returns the (title_norm, artist_norm) candidate pairs for
// a track. Titles shaped like "ARTIST - TITLE" additionally yield the swapped
// reading, so libraries that file tracks under either convention still match.
func TitleArtistPairs(title, artist string) [][2]string {
	var pairs [][2]string

	baseTitle := NormalizeTitle(title)
	baseArtist := NormalizeArtist(artist)
	if baseTitle != "" && baseArtist != "" {
		pairs = append(pairs, [2]string{baseTitle, baseArtist})
	}

	if m := artistTitleRegex.FindStringSubmatch(strings.TrimSpace(title)); m != nil {
		candArtist := NormalizeArtist(m[1])
		candTitle := NormalizeTitle(m[2])
		if candArtist != "" && candTitle != "" {
			cand := [2]string{candTitle, candArtist}
			dup := false
			for _, p := range pairs {
				if p == cand {
					dup = true
					break
				}
			}
			if !dup {
				pairs = append(pairs, cand)
			}
		}
	}

	return pairs
}
