package extract

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"cratedig/internal/core"
)

// Per-URL limiters are evicted once idle so the set stays bounded over a
// long-lived process.
const (
	maxTrackedURLs = 512
	limiterTTL     = 10 * time.Minute
)

// strategyResult is the output of one successful strategy run.
type strategyResult struct {
	Name   string
	Tracks []core.TrackRecord
	Method Method
}

type strategy interface {
	name() Strategy
	run(ctx context.Context, pageURL string, diag *Diagnostics) (*strategyResult, error)
}

// Result is a finished extraction with its provenance.
type Result struct {
	Name        string
	Tracks      []core.TrackRecord
	Strategy    Strategy
	Method      Method
	Diagnostics *Diagnostics
}

// Engine runs the strategy cascade for one page URL. Browser strategies
// share a concurrency gate; repeat requests for the same URL are throttled.
type Engine struct {
	cfg core.ExtractConfig
	log *zap.Logger
	sem *semaphore.Weighted

	mu       sync.Mutex
	limiters *lru.LRU[string, *rate.Limiter]

	order map[core.ExtractMode][]strategy
}

func NewEngine(cfg core.ExtractConfig, pool *BrowserPool, log *zap.Logger) *Engine {
	log = log.Named("extract")
	direct := newHTTPFirst(cfg, log)
	fast := newBrowserStrategy(pool, cfg, false, log)
	legacy := newBrowserStrategy(pool, cfg, true, log)

	e := &Engine{
		cfg:      cfg,
		log:      log,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		limiters: lru.NewLRU[string, *rate.Limiter](maxTrackedURLs, nil, limiterTTL),
	}
	// An explicit mode pins its strategy; auto escalates cheapest first.
	e.order = map[core.ExtractMode][]strategy{
		core.ModeAuto:   {direct, fast, legacy},
		core.ModeFast:   {fast},
		core.ModeLegacy: {legacy},
	}
	return e
}

// Extract runs the cascade for pageURL. On total failure the returned error
// is an ExtractionError carrying the most specific reason observed across
// all attempts.
func (e *Engine) Extract(ctx context.Context, pageURL string, mode core.ExtractMode) (*Result, error) {
	if mode == "" {
		mode = core.ModeAuto
	}
	strategies, ok := e.order[mode]
	if !ok {
		return nil, &core.ValidationError{Field: "mode", Msg: "unsupported extraction mode: " + string(mode)}
	}

	if err := e.throttle(ctx, pageURL); err != nil {
		return nil, err
	}

	diag := &Diagnostics{}
	started := time.Now()

	bestReason := ""
	lastStrategy := Strategy("")
	for _, s := range strategies {
		lastStrategy = s.name()

		res, err := e.runOne(ctx, s, pageURL, diag)
		if err == nil {
			e.log.Info("extraction succeeded",
				zap.String("strategy", string(s.name())),
				zap.String("method", string(res.Method)),
				zap.Int("tracks", len(res.Tracks)),
				zap.Duration("took", time.Since(started)),
			)
			return &Result{
				Name:        res.Name,
				Tracks:      res.Tracks,
				Strategy:    s.name(),
				Method:      res.Method,
				Diagnostics: diag,
			}, nil
		}

		aerr, ok := err.(*attemptError)
		if !ok {
			aerr = retryable("navigation_failed", err)
		}
		diag.addAttempt(s.name(), aerr.Reason)
		if reasonRank(aerr.Reason) >= reasonRank(bestReason) {
			bestReason = aerr.Reason
		}
		e.log.Warn("strategy failed",
			zap.String("strategy", string(s.name())),
			zap.String("reason", aerr.Reason),
			zap.Bool("retryable", aerr.Retryable),
			zap.Error(aerr.Err),
		)
		if !aerr.Retryable {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}
	}

	if bestReason == "" {
		bestReason = "no_dom_rows_no_api"
	}
	return nil, &core.ExtractionError{
		Reason:      bestReason,
		Strategy:    string(lastStrategy),
		Diagnostics: e.diagMap(diag),
	}
}

// runOne holds the browser concurrency gate for the duration of a browser
// strategy. HttpFirst stays outside the gate: it costs one HTTP request.
func (e *Engine) runOne(ctx context.Context, s strategy, pageURL string, diag *Diagnostics) (*strategyResult, error) {
	if s.name() != StrategyHTTPFirst {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, retryable("navigation_failed", err)
		}
		defer e.sem.Release(1)
	}
	return s.run(ctx, pageURL, diag)
}

// throttle waits out the per-URL interval so repeat requests cannot hammer
// one page.
func (e *Engine) throttle(ctx context.Context, pageURL string) error {
	if e.cfg.PerURLInterval <= 0 {
		return nil
	}
	e.mu.Lock()
	lim, ok := e.limiters.Get(pageURL)
	if !ok {
		lim = rate.NewLimiter(rate.Every(e.cfg.PerURLInterval), 1)
		e.limiters.Add(pageURL, lim)
	}
	e.mu.Unlock()
	return lim.Wait(ctx)
}

func (e *Engine) diagMap(diag *Diagnostics) map[string]any {
	if !e.cfg.Debug {
		return nil
	}
	m := map[string]any{}
	if diag.PageTitle != "" {
		m["page_title"] = diag.PageTitle
	}
	if len(diag.CandidateURLs) > 0 {
		m["candidate_urls"] = diag.CandidateURLs
	}
	if len(diag.ConsoleErrors) > 0 {
		m["console_errors"] = diag.ConsoleErrors
	}
	if len(diag.RowCounts) > 0 {
		m["row_counts"] = diag.RowCounts
	}
	if len(diag.Attempts) > 0 {
		m["attempts"] = diag.Attempts
	}
	return m
}
