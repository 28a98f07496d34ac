package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"cratedig/internal/core"
)

// maxHTMLBytes caps how much of a playlist page is buffered. Embedded
// server data sits in the head; pages past this size are not static pages.
const maxHTMLBytes = 4 << 20

var (
	titleTagRegex  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTagRegex = regexp.MustCompile(`(?is)<script[^>]*(?:id="serialized-server-data"|type="application/(?:ld\+)?json")[^>]*>(.*?)</script>`)
)

// httpFirst fetches the page without a browser and mines the embedded JSON
// payloads modern playlist pages ship for hydration. Cheapest strategy, so
// it always goes first under auto mode.
type httpFirst struct {
	cfg    core.ExtractConfig
	client *http.Client
	log    *zap.Logger
}

func newHTTPFirst(cfg core.ExtractConfig, log *zap.Logger) *httpFirst {
	return &httpFirst{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		log:    log.Named("http_first"),
	}
}

func (h *httpFirst) name() Strategy { return StrategyHTTPFirst }

func (h *httpFirst) run(ctx context.Context, pageURL string, diag *Diagnostics) (*strategyResult, error) {
	body, err := h.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title := ""
	if m := titleTagRegex.FindStringSubmatch(body); m != nil {
		title = html.UnescapeString(strings.TrimSpace(m[1]))
	}
	diag.PageTitle = title

	if IsBlockedPage(title, body) {
		return nil, retryable("blocked_variant", nil)
	}

	for _, m := range scriptTagRegex.FindAllStringSubmatch(body, -1) {
		var payload any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &payload); err != nil {
			continue
		}
		tracks := CollectTracks(payload)
		if len(tracks) == 0 {
			continue
		}
		name := FindPlaylistName(payload)
		if name == "" {
			name = cleanPageTitle(title)
		}
		h.log.Debug("embedded payload parsed", zap.Int("tracks", len(tracks)))
		return &strategyResult{Name: name, Tracks: tracks, Method: MethodEmbeddedJSON}, nil
	}

	return nil, retryable("no_embedded_json", nil)
}

// get retries transport failures and 5xx with linear backoff; other
// statuses fail the strategy immediately since retrying cannot change them.
func (h *httpFirst) get(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= h.cfg.HTTPAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", retryable("navigation_failed", ctx.Err())
			case <-time.After(time.Duration(attempt-1) * h.cfg.HTTPBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return "", fatal("navigation_failed", err)
		}
		req.Header.Set("User-Agent", h.cfg.UserAgent)
		req.Header.Set("Accept-Language", h.cfg.Locale+",en;q=0.8")

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			h.log.Debug("request failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", retryable(fmt.Sprintf("http_%d", resp.StatusCode), nil)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTMLBytes))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return string(data), nil
	}
	return "", retryable("navigation_failed", lastErr)
}

var titleSuffixes = []string{
	" - Playlist - Apple Music",
	" - Apple Music",
	" on Apple Music",
	" - プレイリスト - Apple Music",
}

func cleanPageTitle(title string) string {
	t := strings.TrimSpace(title)
	for _, suffix := range titleSuffixes {
		if i := strings.Index(t, suffix); i >= 0 {
			t = t[:i]
			break
		}
	}
	return strings.TrimSpace(t)
}
