// Package cache holds recently fetched playlist results keyed by a
// versioned canonical form of the request, so that identical requests
// within the TTL window are served without touching the upstream catalog.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"cratedig/internal/core"
)

// Options are the request dimensions that change what a fetch returns and
// therefore must be part of the key. Mode and Enrich only apply to sources
// that go through the extraction engine.
type Options struct {
	Mode   core.ExtractMode
	Enrich bool
}

type ResultCache struct {
	lru     *lru.LRU[string, *core.PlaylistResult]
	version int
	log     *zap.Logger
}

func New(cfg core.CacheConfig, log *zap.Logger) *ResultCache {
	return &ResultCache{
		lru:     lru.NewLRU[string, *core.PlaylistResult](cfg.Size, nil, cfg.TTL),
		version: cfg.Version,
		log:     log.Named("cache"),
	}
}

// Key builds the canonical cache key. Mode and enrich dimensions are only
// appended for the apple source; Spotify results do not vary on them, and
// omitting them keeps spotify requests with different option noise on one
// entry.
func (c *ResultCache) Key(source core.Source, rawURL string, opts Options) string {
	key := fmt.Sprintf("v%d:%s:%s", c.version, source, CanonicalURL(rawURL))
	if source == core.SourceApple {
		enrich := 0
		if opts.Enrich {
			enrich = 1
		}
		mode := opts.Mode
		if mode == "" {
			mode = core.ModeAuto
		}
		key = fmt.Sprintf("%s:enrich=%d:mode=%s", key, enrich, mode)
	}
	return key
}

// Get returns a deep copy so callers can annotate the result (owned
// matches, perf timings) without mutating the cached value.
func (c *ResultCache) Get(key string) (*core.PlaylistResult, bool) {
	res, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	c.log.Debug("cache hit", zap.String("key", key))
	return res.Clone(), true
}

// Put stores a copy of the result. Empty results are not cached: an empty
// track list is far more often a transient extraction failure than a truly
// empty playlist, and negative caching would pin the failure for the TTL.
func (c *ResultCache) Put(key string, res *core.PlaylistResult) {
	if res == nil || len(res.Tracks) == 0 {
		return
	}
	c.lru.Add(key, res.Clone())
	c.log.Debug("cache store", zap.String("key", key), zap.Int("tracks", len(res.Tracks)))
}

func (c *ResultCache) Len() int {
	return c.lru.Len()
}
