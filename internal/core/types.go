// Package core contains the shared domain model and the fetch pipeline.
package core

// Source identifies which catalog a playlist request targets.
type Source string

const (
	SourceSpotify Source = "spotify"
	SourceApple   Source = "apple"
)

// ExtractMode selects the extraction strategy for scrape-based sources.
type ExtractMode string

const (
	ModeAuto   ExtractMode = "auto"
	ModeFast   ExtractMode = "fast"
	ModeLegacy ExtractMode = "legacy"
)

// FetchRequest is the normalized form of an incoming playlist request.
type FetchRequest struct {
	Source  Source
	URL     string // canonical URL or bare ID, depending on source
	Mode    ExtractMode
	Enrich  bool // fill missing metadata/ISRCs via Spotify and MusicBrainz
	Refresh bool // bypass the result cache
}

// SourceURLs carries per-catalog track page URLs.
type SourceURLs struct {
	Spotify string `json:"spotify,omitempty"`
	Apple   string `json:"apple,omitempty"`
}

// StoreLinks are search links into the stores a DJ would buy from.
type StoreLinks struct {
	Beatport string `json:"beatport"`
	Bandcamp string `json:"bandcamp"`
	ITunes   string `json:"itunes"`
}

// MatchMethod records how a track was matched against the local library.
type MatchMethod string

const (
	MatchISRC  MatchMethod = "isrc"
	MatchExact MatchMethod = "exact"
	MatchAlbum MatchMethod = "album"
	MatchFuzzy MatchMethod = "fuzzy"
)

// OwnedMatch annotates a TrackRecord with the library reconciliation result.
type OwnedMatch struct {
	Method        MatchMethod `json:"method"`
	Score         float64     `json:"score"`
	MatchedTitle  string      `json:"matched_title"`
	MatchedArtist string      `json:"matched_artist"`
}

// TrackRecord is the canonical normalized form of a playlist track.
type TrackRecord struct {
	Title  string `json:"title"`
	Artist string `json:"artist"` // joined, order preserving
	Album  string `json:"album"`
	ISRC   string `json:"isrc,omitempty"`

	SourceURLs SourceURLs `json:"source_urls"`
	StoreLinks StoreLinks `json:"links"`

	TrackKeyPrimary  string `json:"track_key_primary"`
	TrackKeyFallback string `json:"track_key_fallback"`
	TrackKeyType     string `json:"track_key_type"` // "isrc" or "norm"
	TrackKeyVersion  string `json:"track_key_version"`

	Owned *OwnedMatch `json:"owned_match,omitempty"`
}

// PlaylistResult is the immutable output of a successful fetch.
type PlaylistResult struct {
	ID           string           `json:"playlist_id"`
	Name         string           `json:"playlist_name"`
	CanonicalURL string           `json:"playlist_url"`
	Tracks       []TrackRecord    `json:"tracks"`
	Meta         map[string]any   `json:"meta,omitempty"`
	Perf         map[string]int64 `json:"perf,omitempty"` // stage -> milliseconds
}

// Clone returns a copy whose track slice and maps are independent, so cached
// results stay immutable when a caller annotates tracks afterwards.
func (p *PlaylistResult) Clone() *PlaylistResult {
	if p == nil {
		return nil
	}
	out := *p
	out.Tracks = make([]TrackRecord, len(p.Tracks))
	copy(out.Tracks, p.Tracks)
	out.Meta = make(map[string]any, len(p.Meta))
	for k, v := range p.Meta {
		out.Meta[k] = v
	}
	out.Perf = make(map[string]int64, len(p.Perf))
	for k, v := range p.Perf {
		out.Perf[k] = v
	}
	return &out
}
