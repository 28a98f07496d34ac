package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"cratedig/internal/core"
)

// catalogAPIRegex matches the first-party catalog requests a playlist page
// makes while hydrating. Their JSON is the highest-fidelity track source.
var catalogAPIRegex = regexp.MustCompile(`amp-api\.music\.apple\.com/v1/catalog/[^/]+/playlists`)

// rowSelector covers the current grid markup and the legacy songs-list
// markup in one query.
const rowSelector = `div[role="row"], .songs-list-row`

const collectRowsJS = `Array.from(document.querySelectorAll('div[role="row"], .songs-list-row')).map(r => ({
	label: r.getAttribute('aria-label') || '',
	links: Array.from(r.querySelectorAll('a[href]')).slice(0, 6).map(a => ({href: a.href, text: (a.textContent || '').trim()})),
	cells: Array.from(r.querySelectorAll('[role="cell"], .songs-list-row__song-name, .songs-list-row__by-line, .songs-list-row__album-name')).slice(0, 6).map(c => (c.textContent || '').trim()),
	text: (r.textContent || '').trim().replace(/\s+/g, ' ').slice(0, 200)
}))`

const scrollJS = `window.scrollBy(0, window.innerHeight * 2)`

const pageProbeJS = `({
	title: document.title || '',
	body: document.body ? document.body.innerText.slice(0, 4096) : ''
})`

// confirmRegionJS dismisses the country/region confirmation interstitial by
// clicking its affirmative button, and reports whether a click happened.
const confirmRegionJS = `(() => {
	const labels = ['continue', 'confirm', '続ける', '続行', '確認'];
	const dialog = document.querySelector('[role="dialog"], .dialog');
	if (!dialog) return false;
	for (const btn of dialog.querySelectorAll('button, a[role="button"]')) {
		const text = (btn.textContent || '').trim().toLowerCase();
		if (labels.some(l => text.includes(l))) {
			btn.click();
			return true;
		}
	}
	return false;
})()`

// BrowserPool owns one shared headless browser process, started lazily on
// first use. Each extraction gets its own tab so page state never leaks
// between requests.
type BrowserPool struct {
	cfg core.ExtractConfig
	log *zap.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewBrowserPool(cfg core.ExtractConfig, log *zap.Logger) *BrowserPool {
	return &BrowserPool{cfg: cfg, log: log.Named("browser")}
}

// Tab returns a fresh tab context tied to the caller's context lifetime.
func (p *BrowserPool) Tab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	if p.allocCtx == nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent(p.cfg.UserAgent),
			chromedp.Flag("lang", p.cfg.Locale),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		// The allocator outlives individual requests; it is torn down by
		// Close on shutdown.
		p.allocCtx, p.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		p.log.Info("browser allocator started")
	}
	alloc := p.allocCtx
	p.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(alloc)
	stop := context.AfterFunc(ctx, tabCancel)
	cancel := func() {
		stop()
		tabCancel()
	}
	return tabCtx, cancel, nil
}

func (p *BrowserPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocCancel != nil {
		p.allocCancel()
		p.allocCtx, p.allocCancel = nil, nil
		p.log.Info("browser allocator stopped")
	}
}

// browserStrategy drives a real page load. The fast variant blocks heavy
// resources and uses short windows; the legacy variant loads everything,
// waits out network quiescence, and uses generous windows for slow or
// partially broken pages.
type browserStrategy struct {
	pool   *BrowserPool
	cfg    core.ExtractConfig
	legacy bool
	log    *zap.Logger
}

func newBrowserStrategy(pool *BrowserPool, cfg core.ExtractConfig, legacy bool, log *zap.Logger) *browserStrategy {
	name := string(StrategyBrowserFast)
	if legacy {
		name = string(StrategyBrowserLegacy)
	}
	return &browserStrategy{pool: pool, cfg: cfg, legacy: legacy, log: log.Named(name)}
}

func (b *browserStrategy) name() Strategy {
	if b.legacy {
		return StrategyBrowserLegacy
	}
	return StrategyBrowserFast
}

func (b *browserStrategy) windows() (nav, selector, api time.Duration) {
	if b.legacy {
		return b.cfg.NavTimeoutLegacy, b.cfg.SelectorWindowLegacy, b.cfg.APIWindowLegacy
	}
	return b.cfg.NavTimeoutFast, b.cfg.SelectorWindowFast, b.cfg.APIWindowFast
}

func (b *browserStrategy) run(ctx context.Context, pageURL string, diag *Diagnostics) (*strategyResult, error) {
	tabCtx, cancel, err := b.pool.Tab(ctx)
	if err != nil {
		return nil, retryable("navigation_failed", err)
	}
	defer cancel()

	capture := &apiCapture{}
	net := &netTracker{}
	b.listen(tabCtx, capture, net, diag)

	actions := []chromedp.Action{network.Enable()}
	if !b.legacy {
		actions = append(actions, blockHeavyResources())
	}
	actions = append(actions, chromedp.Navigate(pageURL))

	navWindow, _, _ := b.windows()
	navCtx, navCancel := context.WithTimeout(tabCtx, navWindow)
	defer navCancel()
	if err := chromedp.Run(navCtx, actions...); err != nil {
		return nil, retryable("navigation_failed", err)
	}
	// The fast variant proceeds on navigation commit; the legacy variant
	// additionally waits out network quiescence, like a network-idle load.
	if b.legacy {
		net.settle(navCtx, 500*time.Millisecond)
	}

	return b.resolvePage(ctx, &livePage{tabCtx: tabCtx, capture: capture, log: b.log}, diag)
}

// pageDriver is the per-tab surface the post-navigation flow drives. The
// live implementation wraps an open tab; tests script it directly.
type pageDriver interface {
	probe() (title, body string, ok bool)
	confirmRegion() bool
	waitRows(window time.Duration) bool
	rows() rowSource
	awaitAPI(window time.Duration) bool
	apiResult(pageTitle string) *strategyResult
}

// resolvePage runs the post-navigation flow. The blocked gate is checked
// both before and after the selector wait, since some interstitials swap in
// late. Once rows are mounted, DOM extraction wins and returns immediately;
// the captured catalog response is only consulted as the fallback.
func (b *browserStrategy) resolvePage(ctx context.Context, page pageDriver, diag *Diagnostics) (*strategyResult, error) {
	_, selectorWindow, apiWindow := b.windows()

	title, body, ok := page.probe()
	if ok {
		diag.PageTitle = title
		if IsBlockedPage(title, body) {
			return nil, retryable("blocked_variant", nil)
		}
	}

	if page.confirmRegion() {
		b.log.Debug("region confirmation dismissed")
	}

	rowsVisible := page.waitRows(selectorWindow)

	if t, bd, ok := page.probe(); ok {
		title = t
		diag.PageTitle = t
		if IsBlockedPage(t, bd) {
			return nil, retryable("blocked_variant", nil)
		}
	}

	if rowsVisible {
		tracks, err := harvestRows(ctx, page.rows(), b.cfg.MaxScrollRounds, b.cfg.ScrollStableRounds, diag, b.log)
		if err == nil && len(tracks) > 0 {
			return &strategyResult{
				Name:   cleanPageTitle(title),
				Tracks: tracks,
				Method: MethodDOMRows,
			}, nil
		}
	}

	if page.awaitAPI(apiWindow) {
		if res := page.apiResult(title); res != nil {
			return res, nil
		}
		return nil, retryable("api_not_parseable", nil)
	}
	return nil, retryable("no_dom_rows_no_api", nil)
}

// listen wires CDP event handlers before navigation so early responses are
// not missed.
func (b *browserStrategy) listen(tabCtx context.Context, capture *apiCapture, net *netTracker, diag *Diagnostics) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			net.start()
		case *network.EventLoadingFinished:
			net.done()
		case *network.EventLoadingFailed:
			net.done()
		case *network.EventResponseReceived:
			if catalogAPIRegex.MatchString(e.Response.URL) {
				capture.add(e.RequestID, e.Response.URL)
				diag.addURL(e.Response.URL)
			}
		case *runtime.EventExceptionThrown:
			diag.addConsole(e.ExceptionDetails.Error())
		case *fetch.EventRequestPaused:
			// Only the blocked resource types are ever paused.
			go func() {
				_ = chromedp.Run(tabCtx, fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient))
			}()
		}
	})
}

// blockHeavyResources pauses only images, media, and fonts; the paused
// requests are then failed by the event handler. Scripts and XHR must run
// for hydration.
func blockHeavyResources() chromedp.Action {
	patterns := make([]*fetch.RequestPattern, 0, 3)
	for _, rt := range []network.ResourceType{
		network.ResourceTypeImage,
		network.ResourceTypeMedia,
		network.ResourceTypeFont,
	} {
		patterns = append(patterns, &fetch.RequestPattern{
			URLPattern:   "*",
			ResourceType: rt,
			RequestStage: fetch.RequestStageRequest,
		})
	}
	return fetch.Enable().WithPatterns(patterns)
}

// netTracker counts in-flight requests so the legacy variant can tell when
// the page has gone quiet.
type netTracker struct {
	mu       sync.Mutex
	inflight int
}

func (n *netTracker) start() {
	n.mu.Lock()
	n.inflight++
	n.mu.Unlock()
}

func (n *netTracker) done() {
	n.mu.Lock()
	if n.inflight > 0 {
		n.inflight--
	}
	n.mu.Unlock()
}

func (n *netTracker) idle() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inflight == 0
}

// settle blocks until no request has been in flight for quiet, or the
// context expires. The context deadline is the hard bound; a page that never
// goes quiet just uses its whole window.
func (n *netTracker) settle(ctx context.Context, quiet time.Duration) {
	quietSince := time.Now()
	for {
		if n.idle() {
			if time.Since(quietSince) >= quiet {
				return
			}
		} else {
			quietSince = time.Now()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// livePage adapts an open tab to the post-navigation flow.
type livePage struct {
	tabCtx  context.Context
	capture *apiCapture
	log     *zap.Logger
}

func (p *livePage) probe() (string, string, bool) {
	var probe struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := chromedp.Run(p.tabCtx, chromedp.Evaluate(pageProbeJS, &probe)); err != nil {
		return "", "", false
	}
	return probe.Title, probe.Body, true
}

func (p *livePage) confirmRegion() bool {
	var clicked bool
	if err := chromedp.Run(p.tabCtx, chromedp.Evaluate(confirmRegionJS, &clicked)); err != nil {
		return false
	}
	return clicked
}

// waitRows polls for rendered track rows until the window closes.
func (p *livePage) waitRows(window time.Duration) bool {
	deadline := time.Now().Add(window)
	countExpr := fmt.Sprintf(`document.querySelectorAll('%s').length`, rowSelector)
	for time.Now().Before(deadline) {
		var count int
		if err := chromedp.Run(p.tabCtx, chromedp.Evaluate(countExpr, &count)); err != nil {
			return false
		}
		if count > 0 {
			return true
		}
		select {
		case <-p.tabCtx.Done():
			return false
		case <-time.After(250 * time.Millisecond):
		}
	}
	return false
}

func (p *livePage) rows() rowSource {
	return &liveRowSource{tabCtx: p.tabCtx}
}

func (p *livePage) awaitAPI(window time.Duration) bool {
	return p.capture.wait(p.tabCtx, window)
}

// apiResult pulls the captured catalog response bodies and parses the first
// one that yields tracks.
func (p *livePage) apiResult(pageTitle string) *strategyResult {
	for _, id := range p.capture.requestIDs() {
		var body []byte
		err := chromedp.Run(p.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(id).Do(ctx)
			return err
		}))
		if err != nil {
			p.log.Debug("response body unavailable", zap.String("request_id", string(id)), zap.Error(err))
			continue
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			continue
		}
		tracks := CollectTracks(payload)
		if len(tracks) == 0 {
			continue
		}
		name := FindPlaylistName(payload)
		if name == "" {
			name = cleanPageTitle(pageTitle)
		}
		return &strategyResult{Name: name, Tracks: tracks, Method: MethodAPIJSON}
	}
	return nil
}

type apiCapture struct {
	mu   sync.Mutex
	ids  []network.RequestID
	urls []string
}

func (c *apiCapture) add(id network.RequestID, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
	c.urls = append(c.urls, url)
}

func (c *apiCapture) requestIDs() []network.RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]network.RequestID(nil), c.ids...)
}

// wait blocks until at least one catalog response was seen or the window
// closes, and reports whether anything was captured.
func (c *apiCapture) wait(ctx context.Context, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for {
		c.mu.Lock()
		n := len(c.ids)
		c.mu.Unlock()
		if n > 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// liveRowSource adapts the open tab to the harvest loop.
type liveRowSource struct {
	tabCtx context.Context
}

func (s *liveRowSource) Rows(ctx context.Context) ([]RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []RawRow
	if err := chromedp.Run(s.tabCtx, chromedp.Evaluate(collectRowsJS, &rows)); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *liveRowSource) Scroll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.tabCtx, chromedp.Evaluate(scrollJS, nil)); err != nil {
		return err
	}
	// Let the virtualized list re-render before the next read.
	select {
	case <-s.tabCtx.Done():
		return s.tabCtx.Err()
	case <-time.After(350 * time.Millisecond):
	}
	return nil
}
