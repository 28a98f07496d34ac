package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"cratedig/internal/core"
)

type fakeSearcher struct {
	hits  map[string]*core.TrackRecord
	err   error
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, title, _ string) (*core.TrackRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[title], nil
}

func TestFromCatalogFillsOnlyMissingFields(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string]*core.TrackRecord{
		"Animals": {
			Title:  "Animals",
			Artist: "Victor Ruiz",
			Album:  "Animals EP",
			ISRC:   "DEQ871901234",
			SourceURLs: core.SourceURLs{
				Spotify: "https://open.spotify.com/track/abc",
			},
		},
	}}
	e := New(core.EnrichConfig{}, searcher, nil, zap.NewNop())

	tracks := []core.TrackRecord{{
		Title:  "Animals",
		Artist: "Victor Ruiz",
		Album:  "Scraped Album Name",
		SourceURLs: core.SourceURLs{
			Apple: "https://music.apple.com/jp/song/animals/1",
		},
	}}
	if touched := e.FromCatalog(context.Background(), tracks); touched != 1 {
		t.Fatalf("touched = %d, want 1", touched)
	}

	tr := tracks[0]
	if tr.ISRC != "DEQ871901234" {
		t.Errorf("ISRC not filled: %q", tr.ISRC)
	}
	if tr.Album != "Scraped Album Name" {
		t.Errorf("existing album overwritten: %q", tr.Album)
	}
	if tr.SourceURLs.Apple == "" {
		t.Error("apple URL lost during enrichment")
	}
	if tr.SourceURLs.Spotify != "https://open.spotify.com/track/abc" {
		t.Errorf("spotify URL not filled: %q", tr.SourceURLs.Spotify)
	}
}

func TestFromCatalogSwallowsErrors(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("rate limited")}
	e := New(core.EnrichConfig{}, searcher, nil, zap.NewNop())

	tracks := []core.TrackRecord{
		{Title: "A", Artist: "B"},
		{Title: "C", Artist: "D"},
	}
	if touched := e.FromCatalog(context.Background(), tracks); touched != 0 {
		t.Fatalf("touched = %d, want 0", touched)
	}
	if searcher.calls != 2 {
		t.Errorf("one failure stopped the loop: %d calls", searcher.calls)
	}
}

func TestFromCatalogSkipsCompleteTracks(t *testing.T) {
	searcher := &fakeSearcher{}
	e := New(core.EnrichConfig{}, searcher, nil, zap.NewNop())

	tracks := []core.TrackRecord{{
		Title:      "Done",
		Artist:     "Artist",
		Album:      "Album",
		ISRC:       "XX1234567890",
		SourceURLs: core.SourceURLs{Spotify: "https://open.spotify.com/track/x"},
	}}
	e.FromCatalog(context.Background(), tracks)
	if searcher.calls != 0 {
		t.Errorf("complete track was searched anyway")
	}
}

func mbServer(t *testing.T, handler http.HandlerFunc) *MusicBrainz {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	mb := NewMusicBrainz(zap.NewNop())
	mb.baseURL = srv.URL
	mb.limiter = rate.NewLimiter(rate.Inf, 1)
	return mb
}

func TestISRCsRespectsScoreFloor(t *testing.T) {
	mb := mbServer(t, func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" || ua == "Go-http-client/1.1" {
			t.Errorf("missing identifying User-Agent: %q", ua)
		}
		w.Write([]byte(`{"recordings": [
			{"score": 75, "title": "Wrong One", "isrcs": ["XX0000000000"]},
			{"score": 95, "title": "Animals", "isrcs": ["deq871901234"]}
		]}`))
	})
	e := New(core.EnrichConfig{ISRCLimit: 25}, nil, mb, zap.NewNop())

	tracks := []core.TrackRecord{{Title: "Animals", Artist: "Victor Ruiz"}}
	if filled := e.ISRCs(context.Background(), tracks); filled != 1 {
		t.Fatalf("filled = %d, want 1", filled)
	}
	if tracks[0].ISRC != "DEQ871901234" {
		t.Errorf("ISRC = %q, want the high-score recording's ISRC uppercased", tracks[0].ISRC)
	}
}

func TestISRCsBoundedByLimit(t *testing.T) {
	requests := 0
	mb := mbServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"recordings": []}`))
	})
	e := New(core.EnrichConfig{ISRCLimit: 2}, nil, mb, zap.NewNop())

	tracks := []core.TrackRecord{
		{Title: "A", Artist: "X"},
		{Title: "B", Artist: "X"},
		{Title: "C", Artist: "X"},
		{Title: "D", Artist: "X"},
	}
	e.ISRCs(context.Background(), tracks)
	if requests != 2 {
		t.Errorf("made %d requests, want 2 (limit)", requests)
	}
}

func TestISRCsSkipsTracksWithISRC(t *testing.T) {
	requests := 0
	mb := mbServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"recordings": []}`))
	})
	e := New(core.EnrichConfig{ISRCLimit: 10}, nil, mb, zap.NewNop())

	tracks := []core.TrackRecord{
		{Title: "A", Artist: "X", ISRC: "XX1111111111"},
		{Title: "B", Artist: "X"},
	}
	e.ISRCs(context.Background(), tracks)
	if requests != 1 {
		t.Errorf("made %d requests, want 1", requests)
	}
}

func TestMusicBrainzRateLimiterConfigured(t *testing.T) {
	mb := NewMusicBrainz(zap.NewNop())
	if mb.limiter.Limit() != rate.Every(time.Second) {
		t.Errorf("limit = %v, want 1 req/s", mb.limiter.Limit())
	}
}
