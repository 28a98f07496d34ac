package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"cratedig/internal/core"
)

// RawRow is one visible track row as lifted out of the page by the in-page
// collector script. All interpretation happens here, on the Go side.
type RawRow struct {
	Label string    `json:"label"` // aria-label of the row, if any
	Links []RawLink `json:"links"`
	Cells []string  `json:"cells"` // per-column text content
	Text  string    `json:"text"`  // flattened row text
}

type RawLink struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

var (
	labelPlayRegex  = regexp.MustCompile(`^(?:play\s+|再生\s*)`)
	labelSplitRegex = regexp.MustCompile(`^(.+?)\s+by\s+(.+)$`)
	durationRegex   = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// ParseRow interprets a raw row into a track. Evidence is consulted in a
// fixed priority order: the accessibility label, then anchors classified by
// URL shape, then bare cell text. A row without at least a title and an
// artist is rejected.
func ParseRow(r RawRow) (core.TrackRecord, bool) {
	var tr core.TrackRecord

	if label := strings.TrimSpace(r.Label); label != "" {
		if loc := labelPlayRegex.FindStringIndex(strings.ToLower(label)); loc != nil {
			label = strings.TrimSpace(label[loc[1]:])
		}
		if m := labelSplitRegex.FindStringSubmatch(label); m != nil {
			tr.Title = strings.TrimSpace(m[1])
			tr.Artist = strings.TrimSpace(m[2])
		}
	}

	var artists []string
	for _, link := range r.Links {
		text := strings.TrimSpace(link.Text)
		if text == "" {
			continue
		}
		switch {
		// A song page, or an album page pinned to one track (?i=).
		case strings.Contains(link.Href, "/song/") || strings.Contains(link.Href, "?i=") || strings.Contains(link.Href, "&i="):
			if tr.Title == "" {
				tr.Title = text
			}
			if tr.SourceURLs.Apple == "" {
				tr.SourceURLs.Apple = link.Href
			}
		case strings.Contains(link.Href, "/artist/"):
			artists = append(artists, text)
		case strings.Contains(link.Href, "/album/"):
			if tr.Album == "" {
				tr.Album = text
			}
		}
	}
	if tr.Artist == "" && len(artists) > 0 {
		tr.Artist = strings.Join(artists, ", ")
	}

	cells := nonEmptyCells(r.Cells)
	if tr.Title == "" && len(cells) > 0 {
		tr.Title = cells[0]
	}
	if tr.Artist == "" && len(cells) > 1 {
		tr.Artist = cells[1]
	}
	if tr.Album == "" && len(cells) > 2 {
		tr.Album = cells[2]
	}

	if tr.Title == "" || tr.Artist == "" {
		return core.TrackRecord{}, false
	}
	return tr, true
}

func nonEmptyCells(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" || durationRegex.MatchString(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Fingerprint identifies a row across scroll rounds: virtualized lists
// recycle DOM nodes, so identity has to come from content, not position.
func Fingerprint(r RawRow) string {
	parts := []string{strings.TrimSpace(r.Label)}
	for i, link := range r.Links {
		if i == 2 {
			break
		}
		parts = append(parts, strings.TrimSpace(link.Text))
	}
	parts = append(parts, strings.Join(strings.Fields(r.Text), " "))
	return strings.Join(parts, "|")
}

// seenStore is a two-tier membership check for row fingerprints. The bloom
// filter rejects most repeats cheaply; the LRU confirms, so bloom false
// positives cannot drop a genuinely new row.
type seenStore struct {
	bloom *bloom.BloomFilter
	lru   *lru.Cache[string, struct{}]
}

func newSeenStore(capacity int) (*seenStore, error) {
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &seenStore{
		bloom: bloom.NewWithEstimates(uint(capacity)*4, 0.01),
		lru:   cache,
	}, nil
}

func (s *seenStore) seen(fp string) bool {
	if !s.bloom.TestString(fp) {
		return false
	}
	return s.lru.Contains(fp)
}

func (s *seenStore) add(fp string) {
	s.bloom.AddString(fp)
	s.lru.Add(fp, struct{}{})
}

// rowSource yields the currently rendered rows and advances the viewport.
// The browser strategies implement it against a live page; tests implement
// it against synthetic windows.
type rowSource interface {
	Rows(ctx context.Context) ([]RawRow, error)
	Scroll(ctx context.Context) error
}

// harvestRows drains a virtualized track list: read the rendered window,
// keep unseen rows, scroll, repeat. The loop stops after stableRounds
// consecutive rounds produce nothing new, or at maxRounds as a hard cap for
// pages that keep mutating.
func harvestRows(ctx context.Context, src rowSource, maxRounds, stableRounds int, diag *Diagnostics, log *zap.Logger) ([]core.TrackRecord, error) {
	store, err := newSeenStore(4096)
	if err != nil {
		return nil, err
	}

	var tracks []core.TrackRecord
	stable := 0
	for round := 0; round < maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return tracks, err
		}

		rows, err := src.Rows(ctx)
		if err != nil {
			return tracks, err
		}
		diag.addRowCount(len(rows))

		fresh := 0
		for _, row := range rows {
			fp := Fingerprint(row)
			if store.seen(fp) {
				continue
			}
			store.add(fp)
			fresh++
			if tr, ok := ParseRow(row); ok {
				tracks = append(tracks, tr)
			}
		}
		log.Debug("scroll round",
			zap.Int("round", round),
			zap.Int("rendered", len(rows)),
			zap.Int("fresh", fresh),
			zap.Int("total", len(tracks)),
		)

		if fresh == 0 {
			stable++
			if stable >= stableRounds {
				break
			}
		} else {
			stable = 0
		}

		if err := src.Scroll(ctx); err != nil {
			return tracks, err
		}
	}
	return tracks, nil
}
