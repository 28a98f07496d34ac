// Package pipeline wires the router, cache, fetchers and matcher into the
// read-through flow every playlist request goes through.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cratedig/internal/cache"
	"cratedig/internal/core"
	"cratedig/internal/extract"
	"cratedig/internal/rekordbox"
	"cratedig/internal/router"
	"cratedig/pkg/storelink"
	"cratedig/pkg/trackkey"
)

// Request is one playlist retrieval, as the HTTP layer hands it over.
type Request struct {
	Source  string
	URL     string
	Mode    core.ExtractMode
	Enrich  bool
	Refresh bool

	// Library, when present, gets every track annotated with its ownership
	// match. Matches are per-request and never cached.
	Library *rekordbox.Library
}

type playlistFetcher interface {
	FetchPlaylist(ctx context.Context, id string) (*core.PlaylistResult, error)
}

type pageExtractor interface {
	Extract(ctx context.Context, pageURL string, mode core.ExtractMode) (*extract.Result, error)
}

type enricher interface {
	FromCatalog(ctx context.Context, tracks []core.TrackRecord) int
	ISRCs(ctx context.Context, tracks []core.TrackRecord) int
}

type Pipeline struct {
	cache     *cache.ResultCache
	fetcher   playlistFetcher
	extractor pageExtractor
	enricher  enricher
	log       *zap.Logger
}

func New(c *cache.ResultCache, fetcher playlistFetcher, extractor pageExtractor, enr enricher, log *zap.Logger) *Pipeline {
	return &Pipeline{
		cache:     c,
		fetcher:   fetcher,
		extractor: extractor,
		enricher:  enr,
		log:       log.Named("pipeline"),
	}
}

// Fetch resolves one request end to end: route, cache lookup, source fetch,
// optional enrichment, identity keys, cache write-back, library annotation.
func (p *Pipeline) Fetch(ctx context.Context, req Request) (*core.PlaylistResult, error) {
	total := time.Now()

	src, target, err := router.Route(req.Source, req.URL)
	if err != nil {
		return nil, err
	}

	opts := cache.Options{Mode: req.Mode, Enrich: req.Enrich}
	key := p.cache.Key(src, target, opts)

	if !req.Refresh {
		if res, ok := p.cache.Get(key); ok {
			res.Meta["cache"] = "hit"
			p.annotate(res, req.Library)
			res.Perf["total_ms"] = time.Since(total).Milliseconds()
			return res, nil
		}
	}

	fetchStart := time.Now()
	var res *core.PlaylistResult
	switch src {
	case core.SourceSpotify:
		res, err = p.fetcher.FetchPlaylist(ctx, target)
	case core.SourceApple:
		res, err = p.extractApple(ctx, target, req)
	}
	if err != nil {
		return nil, err
	}
	res.Perf = ensurePerf(res.Perf)
	res.Perf["fetch_ms"] = time.Since(fetchStart).Milliseconds()

	if req.Enrich && src == core.SourceApple && p.enricher != nil {
		enrichStart := time.Now()
		fromCatalog := p.enricher.FromCatalog(ctx, res.Tracks)
		isrcs := p.enricher.ISRCs(ctx, res.Tracks)
		res.Perf["enrich_ms"] = time.Since(enrichStart).Milliseconds()
		p.log.Debug("enrichment done",
			zap.Int("from_catalog", fromCatalog),
			zap.Int("isrcs", isrcs),
		)
	}

	finalizeTracks(res.Tracks)

	res.Meta = ensureMeta(res.Meta)
	res.Meta["cache"] = "miss"

	// Written back before annotation so per-request ownership never sticks
	// to the shared entry. A refresh is a forced bypass, not a repopulation.
	if !req.Refresh {
		p.cache.Put(key, res)
	}

	p.annotate(res, req.Library)
	res.Perf["total_ms"] = time.Since(total).Milliseconds()
	return res, nil
}

func (p *Pipeline) extractApple(ctx context.Context, pageURL string, req Request) (*core.PlaylistResult, error) {
	out, err := p.extractor.Extract(ctx, pageURL, req.Mode)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"source":   string(core.SourceApple),
		"strategy": string(out.Strategy),
		"method":   string(out.Method),
	}
	return &core.PlaylistResult{
		ID:           cache.CanonicalURL(pageURL),
		Name:         out.Name,
		CanonicalURL: cache.CanonicalURL(pageURL),
		Tracks:       out.Tracks,
		Meta:         meta,
	}, nil
}

func (p *Pipeline) annotate(res *core.PlaylistResult, lib *rekordbox.Library) {
	if lib == nil {
		return
	}
	start := time.Now()
	matched := lib.Annotate(res.Tracks)
	res.Perf = ensurePerf(res.Perf)
	res.Perf["match_ms"] = time.Since(start).Milliseconds()
	res.Meta = ensureMeta(res.Meta)
	res.Meta["owned_matches"] = matched
}

// finalizeTracks guarantees identity keys and store links on every track,
// regardless of which source produced it. Runs after enrichment so filled
// ISRCs upgrade the primary key.
func finalizeTracks(tracks []core.TrackRecord) {
	for i := range tracks {
		tr := &tracks[i]

		keys := trackkey.Derive(tr.Title, tr.Artist, tr.Album, tr.ISRC)
		tr.TrackKeyPrimary = keys.Primary
		tr.TrackKeyFallback = keys.Fallback
		tr.TrackKeyType = keys.Type
		tr.TrackKeyVersion = keys.Version

		if tr.StoreLinks.Beatport == "" {
			links := storelink.Build(tr.Title, tr.Artist, tr.Album, tr.ISRC)
			tr.StoreLinks = core.StoreLinks{
				Beatport: links.Beatport,
				Bandcamp: links.Bandcamp,
				ITunes:   links.ITunes,
			}
		}
	}
}

func ensureMeta(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func ensurePerf(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}
