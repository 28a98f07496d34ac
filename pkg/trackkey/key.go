package trackkey

import "strings"

// Version tags every generated key pair. Bump only together with a change to
// the normalization rules; the key string format itself is a persisted
// contract with clients that store identity across sessions.
const Version = "v1"

const (
	// TypeISRC marks a primary key derived from an ISRC.
	TypeISRC = "isrc"
	// TypeNorm marks a primary key that fell back to normalized text.
	TypeNorm = "norm"
)

// Keys is the derived identity for one track.
type Keys struct {
	Primary  string
	Fallback string
	Type     string
	Version  string
}

// Derive builds the primary and fallback keys for a track. The primary key
// is ISRC-based whenever a non-empty ISRC is present, otherwise it equals
// the fallback key.
func Derive(title, artist, album, isrc string) Keys {
	fallback := FallbackKey(title, artist, album)

	k := Keys{
		Fallback: fallback,
		Version:  Version,
	}

	if s := strings.TrimSpace(isrc); s != "" {
		k.Primary = "isrc:" + strings.ToUpper(s)
		k.Type = TypeISRC
		return k
	}

	k.Primary = fallback
	k.Type = TypeNorm
	return k
}

// FallbackKey builds the "norm:" key from normalized fields joined with a
// pipe. The album segment is omitted when empty so sparse metadata still
// produces a usable key.
func FallbackKey(title, artist, album string) string {
	parts := []string{NormalizeTitle(title), NormalizeArtist(artist)}
	if a := NormalizeAlbum(album); a != "" {
		parts = append(parts, a)
	}
	return "norm:" + strings.Join(parts, "|")
}
