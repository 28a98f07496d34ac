package rekordbox

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"cratedig/internal/core"
	"cratedig/pkg/trackkey"
)

// fuzzyThreshold is the minimum Levenshtein similarity for a fuzzy title
// match within the same artist. Below it, near-misses like remix variants of
// a different track produce false positives.
const fuzzyThreshold = 0.92

// Match reconciles one playlist track against the library. The passes run
// strictest first; the first hit wins. A nil return means the track is not
// in the library.
func (lib *Library) Match(tr core.TrackRecord) *core.OwnedMatch {
	if isrc := strings.ToUpper(strings.TrimSpace(tr.ISRC)); isrc != "" {
		if i, ok := lib.byISRC[isrc]; ok {
			return lib.owned(core.MatchISRC, 1.0, i)
		}
	}

	pairs := trackkey.TitleArtistPairs(tr.Title, tr.Artist)
	for _, p := range pairs {
		if i, ok := lib.byTitleArtist[p[0]+"|"+p[1]]; ok {
			return lib.owned(core.MatchExact, 1.0, i)
		}
	}

	titleNorm := trackkey.NormalizeTitle(tr.Title)
	if albumNorm := trackkey.NormalizeAlbum(tr.Album); titleNorm != "" && albumNorm != "" {
		if i, ok := lib.byTitleAlbum[titleNorm+"|"+albumNorm]; ok {
			return lib.owned(core.MatchAlbum, 1.0, i)
		}
	}

	return lib.fuzzyMatch(pairs)
}

// fuzzyMatch compares the track title against every library title filed
// under the same artist and keeps the best score at or above the threshold.
func (lib *Library) fuzzyMatch(pairs [][2]string) *core.OwnedMatch {
	lev := metrics.NewLevenshtein()

	best := -1
	bestScore := 0.0
	for _, p := range pairs {
		title, artist := p[0], p[1]
		for _, i := range lib.byArtist[artist] {
			score := strutil.Similarity(title, lib.Entries[i].TitleNorm, lev)
			if score >= fuzzyThreshold && score > bestScore {
				best, bestScore = i, score
			}
		}
	}
	if best < 0 {
		return nil
	}
	return lib.owned(core.MatchFuzzy, bestScore, best)
}

func (lib *Library) owned(method core.MatchMethod, score float64, i int) *core.OwnedMatch {
	e := lib.Entries[i]
	return &core.OwnedMatch{
		Method:        method,
		Score:         score,
		MatchedTitle:  e.Title,
		MatchedArtist: e.Artist,
	}
}

// Annotate sets the Owned field on every track in place and returns how many
// matched.
func (lib *Library) Annotate(tracks []core.TrackRecord) int {
	matched := 0
	for i := range tracks {
		if m := lib.Match(tracks[i]); m != nil {
			tracks[i].Owned = m
			matched++
		}
	}
	return matched
}
