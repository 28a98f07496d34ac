// Package enrich fills metadata gaps in scraped tracks using external
// catalogs. Everything here is best effort: a track that cannot be enriched
// is returned unchanged, never dropped.
package enrich

import (
	"context"

	"go.uber.org/zap"

	"cratedig/internal/core"
)

// TrackSearcher is the catalog lookup used to complete scraped tracks.
type TrackSearcher interface {
	Search(ctx context.Context, title, artist string) (*core.TrackRecord, error)
}

type Enricher struct {
	cfg      core.EnrichConfig
	searcher TrackSearcher
	mb       *MusicBrainz
	log      *zap.Logger
}

func New(cfg core.EnrichConfig, searcher TrackSearcher, mb *MusicBrainz, log *zap.Logger) *Enricher {
	return &Enricher{cfg: cfg, searcher: searcher, mb: mb, log: log.Named("enrich")}
}

// FromCatalog completes scraped tracks with catalog metadata: missing
// artist, album, ISRC and the catalog track URL. The scrape-side URL is
// kept. Returns how many tracks were touched.
func (e *Enricher) FromCatalog(ctx context.Context, tracks []core.TrackRecord) int {
	if e.searcher == nil {
		return 0
	}
	touched := 0
	for i := range tracks {
		tr := &tracks[i]
		if tr.ISRC != "" && tr.Album != "" && tr.SourceURLs.Spotify != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return touched
		}

		hit, err := e.searcher.Search(ctx, tr.Title, tr.Artist)
		if err != nil {
			e.log.Debug("catalog search failed",
				zap.String("title", tr.Title),
				zap.String("artist", tr.Artist),
				zap.Error(err),
			)
			continue
		}
		if hit == nil {
			continue
		}

		changed := false
		if tr.Artist == "" && hit.Artist != "" {
			tr.Artist = hit.Artist
			changed = true
		}
		if tr.Album == "" && hit.Album != "" {
			tr.Album = hit.Album
			changed = true
		}
		if tr.ISRC == "" && hit.ISRC != "" {
			tr.ISRC = hit.ISRC
			changed = true
		}
		if tr.SourceURLs.Spotify == "" && hit.SourceURLs.Spotify != "" {
			tr.SourceURLs.Spotify = hit.SourceURLs.Spotify
			changed = true
		}
		if changed {
			touched++
		}
	}
	return touched
}

// ISRCs fills missing ISRCs from MusicBrainz for up to the configured
// number of tracks per call.
func (e *Enricher) ISRCs(ctx context.Context, tracks []core.TrackRecord) int {
	if e.mb == nil {
		return 0
	}
	filled := 0
	attempts := 0
	for i := range tracks {
		tr := &tracks[i]
		if tr.ISRC != "" || tr.Title == "" || tr.Artist == "" {
			continue
		}
		if e.cfg.ISRCLimit > 0 && attempts >= e.cfg.ISRCLimit {
			break
		}
		if err := ctx.Err(); err != nil {
			return filled
		}
		attempts++

		isrc, err := e.mb.LookupISRC(ctx, tr.Title, tr.Artist)
		if err != nil {
			e.log.Debug("musicbrainz lookup failed",
				zap.String("title", tr.Title),
				zap.Error(err),
			)
			continue
		}
		if isrc != "" {
			tr.ISRC = isrc
			filled++
		}
	}
	return filled
}
