package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"cratedig/internal/core"
)

// fakeStrategy scripts one rung of the cascade.
type fakeStrategy struct {
	strategy Strategy
	result   *strategyResult
	err      error
	calls    int
}

func (f *fakeStrategy) name() Strategy { return f.strategy }

func (f *fakeStrategy) run(context.Context, string, *Diagnostics) (*strategyResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newFakeEngine(t *testing.T, cfg core.ExtractConfig, auto, fast, legacy strategy) *Engine {
	t.Helper()
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 3
	}
	e := NewEngine(cfg, nil, zap.NewNop())
	e.order = map[core.ExtractMode][]strategy{
		core.ModeAuto:   {auto, fast, legacy},
		core.ModeFast:   {fast},
		core.ModeLegacy: {legacy},
	}
	return e
}

func okResult(n int) *strategyResult {
	tracks := make([]core.TrackRecord, n)
	for i := range tracks {
		tracks[i] = core.TrackRecord{Title: "t", Artist: "a"}
	}
	return &strategyResult{Name: "Fixture", Tracks: tracks, Method: MethodDOMRows}
}

func TestExtractAutoEscalatesToLegacy(t *testing.T) {
	direct := &fakeStrategy{strategy: StrategyHTTPFirst, err: retryable("no_embedded_json", nil)}
	fast := &fakeStrategy{strategy: StrategyBrowserFast, err: retryable("blocked_variant", nil)}
	legacy := &fakeStrategy{strategy: StrategyBrowserLegacy, result: okResult(3)}
	e := newFakeEngine(t, core.ExtractConfig{}, direct, fast, legacy)

	res, err := e.Extract(context.Background(), "https://music.apple.com/jp/playlist/pl.u-abc", core.ModeAuto)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if res.Strategy != StrategyBrowserLegacy {
		t.Errorf("Strategy = %v, want browser_legacy", res.Strategy)
	}
	if direct.calls != 1 || fast.calls != 1 || legacy.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want 1/1/1", direct.calls, fast.calls, legacy.calls)
	}
}

func TestExtractFastModeDoesNotEscalate(t *testing.T) {
	direct := &fakeStrategy{strategy: StrategyHTTPFirst, result: okResult(1)}
	fast := &fakeStrategy{strategy: StrategyBrowserFast, err: retryable("blocked_variant", nil)}
	legacy := &fakeStrategy{strategy: StrategyBrowserLegacy, result: okResult(3)}
	e := newFakeEngine(t, core.ExtractConfig{}, direct, fast, legacy)

	_, err := e.Extract(context.Background(), "https://music.apple.com/jp/playlist/pl.u-abc", core.ModeFast)
	var xerr *core.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("got %v, want ExtractionError", err)
	}
	if xerr.Reason != "blocked_variant" {
		t.Errorf("Reason = %q, want blocked_variant", xerr.Reason)
	}
	if direct.calls != 0 || legacy.calls != 0 {
		t.Errorf("pinned mode leaked into other strategies: %d/%d", direct.calls, legacy.calls)
	}
}

func TestExtractFatalStopsCascade(t *testing.T) {
	direct := &fakeStrategy{strategy: StrategyHTTPFirst, err: fatal("http_404", nil)}
	fast := &fakeStrategy{strategy: StrategyBrowserFast, result: okResult(3)}
	legacy := &fakeStrategy{strategy: StrategyBrowserLegacy, result: okResult(3)}
	e := newFakeEngine(t, core.ExtractConfig{}, direct, fast, legacy)

	_, err := e.Extract(context.Background(), "https://music.apple.com/jp/playlist/pl.u-abc", core.ModeAuto)
	var xerr *core.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("got %v, want ExtractionError", err)
	}
	if xerr.Reason != "http_404" {
		t.Errorf("Reason = %q, want http_404", xerr.Reason)
	}
	if fast.calls != 0 || legacy.calls != 0 {
		t.Errorf("cascade continued past a fatal failure: %d/%d", fast.calls, legacy.calls)
	}
}

func TestExtractSurfacesMostSpecificReason(t *testing.T) {
	direct := &fakeStrategy{strategy: StrategyHTTPFirst, err: retryable("http_403", nil)}
	fast := &fakeStrategy{strategy: StrategyBrowserFast, err: retryable("blocked_variant", nil)}
	legacy := &fakeStrategy{strategy: StrategyBrowserLegacy, err: retryable("navigation_failed", nil)}
	e := newFakeEngine(t, core.ExtractConfig{}, direct, fast, legacy)

	_, err := e.Extract(context.Background(), "https://music.apple.com/jp/playlist/pl.u-abc", core.ModeAuto)
	var xerr *core.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("got %v, want ExtractionError", err)
	}
	if xerr.Reason != "blocked_variant" {
		t.Errorf("Reason = %q, want blocked_variant", xerr.Reason)
	}
	if xerr.Strategy != string(StrategyBrowserLegacy) {
		t.Errorf("Strategy = %q, want browser_legacy", xerr.Strategy)
	}
}

func TestExtractDiagnosticsOnlyInDebug(t *testing.T) {
	mk := func(debug bool) error {
		direct := &fakeStrategy{strategy: StrategyHTTPFirst, err: retryable("no_embedded_json", nil)}
		fast := &fakeStrategy{strategy: StrategyBrowserFast, err: retryable("no_dom_rows_no_api", nil)}
		legacy := &fakeStrategy{strategy: StrategyBrowserLegacy, err: retryable("no_dom_rows_no_api", nil)}
		e := newFakeEngine(t, core.ExtractConfig{Debug: debug}, direct, fast, legacy)
		_, err := e.Extract(context.Background(), "https://music.apple.com/jp/playlist/pl.u-abc", core.ModeAuto)
		return err
	}

	var xerr *core.ExtractionError
	if err := mk(false); !errors.As(err, &xerr) {
		t.Fatalf("got %v, want ExtractionError", err)
	} else if xerr.Diagnostics != nil {
		t.Errorf("diagnostics populated without debug: %v", xerr.Diagnostics)
	}

	if err := mk(true); !errors.As(err, &xerr) {
		t.Fatalf("got %v, want ExtractionError", err)
	} else if len(xerr.Diagnostics) == 0 {
		t.Error("debug mode produced no diagnostics")
	}
}

func TestExtractThrottlesRepeatURL(t *testing.T) {
	direct := &fakeStrategy{strategy: StrategyHTTPFirst, result: okResult(1)}
	fast := &fakeStrategy{strategy: StrategyBrowserFast, result: okResult(1)}
	legacy := &fakeStrategy{strategy: StrategyBrowserLegacy, result: okResult(1)}
	e := newFakeEngine(t, core.ExtractConfig{PerURLInterval: 150 * time.Millisecond}, direct, fast, legacy)

	url := "https://music.apple.com/jp/playlist/pl.u-abc"
	if _, err := e.Extract(context.Background(), url, core.ModeAuto); err != nil {
		t.Fatalf("first extract: %v", err)
	}

	start := time.Now()
	if _, err := e.Extract(context.Background(), url, core.ModeAuto); err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("repeat request not throttled: took %v", elapsed)
	}

	// A different URL has its own limiter and goes straight through.
	start = time.Now()
	if _, err := e.Extract(context.Background(), url+"2", core.ModeAuto); err != nil {
		t.Fatalf("third extract: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("distinct URL was throttled: took %v", elapsed)
	}
}

func TestThrottleTrackedURLsStayBounded(t *testing.T) {
	direct := &fakeStrategy{strategy: StrategyHTTPFirst, result: okResult(1)}
	fast := &fakeStrategy{strategy: StrategyBrowserFast, result: okResult(1)}
	legacy := &fakeStrategy{strategy: StrategyBrowserLegacy, result: okResult(1)}
	e := newFakeEngine(t, core.ExtractConfig{PerURLInterval: time.Millisecond}, direct, fast, legacy)

	ctx := context.Background()
	for i := 0; i < maxTrackedURLs+64; i++ {
		url := fmt.Sprintf("https://music.apple.com/jp/playlist/pl.u-%04d", i)
		if err := e.throttle(ctx, url); err != nil {
			t.Fatalf("throttle(%s): %v", url, err)
		}
	}
	if n := e.limiters.Len(); n > maxTrackedURLs {
		t.Errorf("tracked limiters = %d, want at most %d", n, maxTrackedURLs)
	}
}

func TestExtractUnknownMode(t *testing.T) {
	e := newFakeEngine(t, core.ExtractConfig{}, &fakeStrategy{strategy: StrategyHTTPFirst}, &fakeStrategy{strategy: StrategyBrowserFast}, &fakeStrategy{strategy: StrategyBrowserLegacy})
	_, err := e.Extract(context.Background(), "https://music.apple.com/jp/playlist/pl.u-abc", core.ExtractMode("turbo"))
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}
