// Package textrepair recovers strings that arrived as mojibake: UTF-8 bytes
// misread as latin-1, percent-encoding left in place, or HTML entities.
package textrepair

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

var (
	asciiOnlyRegex = regexp.MustCompile(`^[\x00-\x7f]*$`)
	cjkRegex       = regexp.MustCompile(`[\x{4E00}-\x{9FFF}\x{3040}-\x{30FF}\x{31F0}-\x{31FF}\x{3000}-\x{303F}]`)
)

// mojibakeMarkers are glyphs that almost always indicate UTF-8 bytes decoded
// as latin-1/windows-1252.
var mojibakeMarkers = []string{"Ã", "Â", "â", "ã"}

// Fix attempts a set of plausible reparations and returns the best-scoring
// candidate, normalized to NFC. A clean ASCII string is returned unchanged.
func Fix(s string) string {
	if s == "" {
		return s
	}
	if asciiOnlyRegex.MatchString(s) && !hasMarker(s) {
		return norm.NFC.String(s)
	}

	candidates := []string{s}
	candidates = append(candidates, html.UnescapeString(s))
	if u, err := url.QueryUnescape(s); err == nil {
		candidates = append(candidates, u)
	}
	if r, ok := latin1Reinterpret(s); ok {
		candidates = append(candidates, r)
	}

	// Composed tries: unquote/unescape first, then reinterpret.
	for _, base := range candidates[:len(candidates):len(candidates)] {
		u := base
		if uq, err := url.QueryUnescape(base); err == nil {
			u = uq
		}
		h := html.UnescapeString(u)
		for _, cand := range []string{u, h} {
			candidates = append(candidates, cand)
			if r, ok := latin1Reinterpret(cand); ok {
				candidates = append(candidates, r)
			}
		}
	}

	best := s
	bestScore := score(s)
	seen := map[string]bool{s: true}
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		if sc := score(c); sc > bestScore {
			best = c
			bestScore = sc
		}
	}

	return norm.NFC.String(best)
}

// latin1Reinterpret re-encodes the string as latin-1 bytes and decodes those
// bytes as UTF-8, undoing the classic double-decode.
func latin1Reinterpret(s string) (string, bool) {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// Runes outside latin-1 mean this never was a latin-1 misread.
		return "", false
	}
	if !utf8.Valid(b) {
		return "", false
	}
	repaired := string(b)
	if repaired != s {
		return repaired, true
	}
	return "", false
}

// score prefers candidates with more CJK characters and penalizes
// replacement characters and leftover mojibake glyphs.
func score(s string) int {
	cjk := len(cjkRegex.FindAllString(s, -1))
	repl := strings.Count(s, "�")
	marker := 0
	for _, m := range mojibakeMarkers {
		marker += strings.Count(s, m)
	}
	return cjk*100 - repl*50 - marker*10
}

func hasMarker(s string) bool {
	for _, m := range mojibakeMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
